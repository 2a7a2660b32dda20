package loam_test

import (
	"context"
	"testing"

	"github.com/aretw0/loam"
	"github.com/aretw0/loam/pkg/core"
	"github.com/aretw0/wayfarer/internal/testutils"
	loamAdapter "github.com/aretw0/wayfarer/pkg/adapters/loam"
	"github.com/aretw0/wayfarer/pkg/domain"
	"github.com/aretw0/wayfarer/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRepo(t *testing.T, docs ...core.Document) core.Repository {
	t.Helper()
	_, repo := testutils.SetupTestRepo(t, loam.WithVersioning(false))

	for _, doc := range docs {
		require.NoError(t, repo.Save(context.Background(), doc))
	}
	return repo
}

func TestSource_Load(t *testing.T) {
	repo := setupRepo(t,
		core.Document{
			ID: "planner.md",
			Content: `---
name: Trip Planner
role: planning
order: 1
keywords: [trip, itinerary]
default: true
downstream_hint: [calm]
---
Plans routes and schedules.`,
		},
		core.Document{
			ID: "calm.md",
			Content: `---
id: calm
name: Calm Practice
role: wellbeing
order: 2
keywords: [anxious, panic]
priority_weight: 2.5
high_priority: true
---
`,
		},
	)

	src := loamAdapter.New(loam.NewTypedRepository[loamAdapter.CapabilityMetadata](repo), "trips")
	descriptors, err := src.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, descriptors, 2)

	assert.Equal(t, "planner", descriptors[0].ID, "id falls back to the file name")
	assert.Equal(t, "Plans routes and schedules.", descriptors[0].Description)
	assert.True(t, descriptors[0].Default)
	assert.Equal(t, []string{"calm"}, descriptors[0].DownstreamHint)

	assert.Equal(t, "calm", descriptors[1].ID)
	assert.Equal(t, 2.5, descriptors[1].PriorityWeight)
	assert.True(t, descriptors[1].HighPriority)

	reg, err := registry.New(src.Name(), descriptors)
	require.NoError(t, err)
	assert.Equal(t, "planner", reg.Default().ID)
}

func TestSource_DuplicateIDs(t *testing.T) {
	repo := setupRepo(t,
		core.Document{ID: "a.md", Content: "---\nid: same\nkeywords: [x]\n---\n"},
		core.Document{ID: "b.md", Content: "---\nid: same\nkeywords: [y]\n---\n"},
	)

	_, err := loamAdapter.New(loam.NewTypedRepository[loamAdapter.CapabilityMetadata](repo), "").Load(context.Background())

	var cfgErr *domain.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "same", cfgErr.ID)
	assert.Equal(t, "loam", cfgErr.Source)
}
