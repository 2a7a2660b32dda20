package cli

import (
	"bytes"
	"encoding/base64"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/loam"
	"github.com/aretw0/wayfarer/internal/config"
	"github.com/aretw0/wayfarer/internal/logging"
	"github.com/aretw0/wayfarer/internal/testutils"
	"github.com/aretw0/wayfarer/pkg/domain"
	"github.com/aretw0/wayfarer/pkg/gateway"
	"github.com/aretw0/wayfarer/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func offlineConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Gateway.Backend = config.BackendOffline
	return cfg
}

func TestNewRuntime_Offline(t *testing.T) {
	rt, err := NewRuntime(offlineConfig(t), logging.NewNop())
	require.NoError(t, err)
	defer rt.Engine.Close()

	res, err := rt.Engine.RunTurn(context.Background(), "xyzzy", "", domain.ProfileFast)
	require.NoError(t, err)
	assert.True(t, res.UsedFallback)
	assert.Equal(t, []string{"trip_analyzer"}, res.ContributingResponderIDs)
}

func TestNewRuntime_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := offlineConfig(t)
	cfg.Store.Backend = config.StoreRedis
	cfg.Store.Redis.Addr = mr.Addr()
	cfg.Store.Redis.Prefix = "cli-test:"

	rt, err := NewRuntime(cfg, logging.NewNop())
	require.NoError(t, err)
	defer rt.Engine.Close()

	_, err = rt.Engine.RunTurn(context.Background(), "plan a trip to tokyo", "traveler", domain.ProfileFast)
	require.NoError(t, err)

	keys, err := rt.Engine.ListSessions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"traveler"}, keys)
	assert.True(t, mr.Exists("cli-test:traveler"))
}

func TestNewRuntime_FileRegistry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalogue.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`responders:
  - id: planner
    role: planning
    default: true
    keywords: [trip]
`), 0o644))

	cfg := offlineConfig(t)
	cfg.Registry.Path = path

	rt, err := NewRuntime(cfg, logging.NewNop())
	require.NoError(t, err)
	defer rt.Engine.Close()

	caps := rt.Engine.Capabilities()
	require.Len(t, caps, 1)
	assert.Equal(t, "planner", caps[0].ID)
}

func TestNewSource(t *testing.T) {
	src, err := NewSource(config.RegistryConfig{})
	require.NoError(t, err)
	assert.IsType(t, &registry.BytesSource{}, src)

	src, err = NewSource(config.RegistryConfig{Path: "x.yaml"})
	require.NoError(t, err)
	assert.Equal(t, "x.yaml", src.Name())
}

func TestNewGateway(t *testing.T) {
	logger := logging.NewNop()

	gw, err := NewGateway(config.GatewayConfig{Backend: config.BackendOffline, Retries: 2}, logger)
	require.NoError(t, err)
	assert.IsType(t, gateway.Offline{}, gw)

	gw, err = NewGateway(config.GatewayConfig{Backend: config.BackendOllama, Retries: 1}, logger)
	require.NoError(t, err)
	assert.IsType(t, &gateway.Retry{}, gw)

	gw, err = NewGateway(config.GatewayConfig{Backend: config.BackendOllama, FallbackBackend: config.BackendOffline}, logger)
	require.NoError(t, err)
	assert.IsType(t, &gateway.Failover{}, gw)

	_, err = NewGateway(config.GatewayConfig{Backend: "carrier-pigeon"}, logger)
	assert.ErrorContains(t, err, "unknown gateway backend")
}

type scriptedTurner struct {
	utterances []string
}

func (s *scriptedTurner) RunTurn(_ context.Context, utterance, sessionKey, profile string) (*domain.TurnResult, error) {
	s.utterances = append(s.utterances, utterance)
	return &domain.TurnResult{
		Reply:                    "reply to " + utterance,
		ContributingResponderIDs: []string{"trip_analyzer"},
	}, nil
}

func TestChat(t *testing.T) {
	turner := &scriptedTurner{}
	in := strings.NewReader("plan a trip\n\n  \nquit\nnever read\n")
	var out bytes.Buffer

	err := Chat(context.Background(), turner, in, &out, ChatOptions{SessionKey: "k"})
	require.NoError(t, err)

	assert.Equal(t, []string{"plan a trip"}, turner.utterances)
	assert.Contains(t, out.String(), "reply to plan a trip")
	assert.Contains(t, out.String(), "trip_analyzer")
}

func TestChat_EndOfInput(t *testing.T) {
	turner := &scriptedTurner{}
	err := Chat(context.Background(), turner, strings.NewReader("hello"), &bytes.Buffer{}, ChatOptions{})
	assert.True(t, IsInterrupted(err))
	assert.NoError(t, HandleExecutionError(err))
	assert.Equal(t, []string{"hello"}, turner.utterances)
}

func TestPrintRoute(t *testing.T) {
	rt, err := NewRuntime(offlineConfig(t), logging.NewNop())
	require.NoError(t, err)
	defer rt.Engine.Close()
	ctx := context.Background()

	d, err := rt.Engine.Route(ctx, "I'm anxious about flying", "", domain.ProfileInteractive)
	require.NoError(t, err)
	ex, err := rt.Engine.Explain(ctx, "I'm anxious about flying", "")
	require.NoError(t, err)

	var out bytes.Buffer
	PrintRoute(&out, d, ex)
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.GreaterOrEqual(t, len(lines), 3)
	assert.Contains(t, lines[0], "RESPONDER")
	assert.Contains(t, out.String(), "calm_practice")
	assert.Contains(t, out.String(), "anxious")
}

func TestPrintCapabilities(t *testing.T) {
	var out bytes.Buffer
	PrintCapabilities(&out, []domain.CapabilityDescriptor{
		{ID: "planner", Name: "Planner", Role: "planning", Keywords: []string{"trip"}, Default: true},
	})
	assert.Contains(t, out.String(), "planner*")
	assert.Contains(t, out.String(), "Planner")
}

func TestNewRuntime_PrivacyMiddleware(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := offlineConfig(t)
	cfg.Store.Backend = config.StoreRedis
	cfg.Store.Redis.Addr = mr.Addr()
	cfg.Store.Redis.Prefix = "private:"
	cfg.Store.Privacy.RedactUtterances = true
	cfg.Store.Privacy.EncryptionKey = base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{7}, 32))

	rt, err := NewRuntime(cfg, logging.NewNop())
	require.NoError(t, err)
	defer rt.Engine.Close()
	ctx := context.Background()

	_, err = rt.Engine.RunTurn(ctx, "plan a trip, mail me at ana@example.com", "traveler", domain.ProfileFast)
	require.NoError(t, err)

	raw, err := mr.Get("private:traveler")
	require.NoError(t, err)
	assert.NotContains(t, raw, "ana@example.com")
	assert.NotContains(t, raw, "plan a trip")

	snap, err := rt.Engine.Session(ctx, "traveler")
	require.NoError(t, err)
	assert.Equal(t, []string{"plan a trip, mail me at ***"}, snap.RecentUtterances(1))
}

func TestNewStoreMiddleware_BadKey(t *testing.T) {
	_, err := NewStoreMiddleware(config.PrivacyConfig{EncryptionKey: "c2hvcnQ="})
	assert.ErrorContains(t, err, "32 bytes")
}

func TestNewRuntime_FileStore(t *testing.T) {
	dir := t.TempDir()
	cfg := offlineConfig(t)
	cfg.Store.Backend = config.StoreFile
	cfg.Store.Dir = dir

	rt, err := NewRuntime(cfg, logging.NewNop())
	require.NoError(t, err)
	defer rt.Engine.Close()

	_, err = rt.Engine.RunTurn(context.Background(), "plan a trip", "on-disk", domain.ProfileFast)
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "on-disk.json"))
	assert.NoError(t, err)
}

func TestNewRuntime_LoamRegistry(t *testing.T) {
	dir, repo := testutils.SetupTestRepo(t, loam.WithVersioning(false))
	testutils.SeedCatalogue(t, repo, map[string]string{
		"planner.md": "---\nrole: planning\ndefault: true\nkeywords: [trip]\norder: 1\n---\nPlans trips.",
		"calm.md":    "---\nrole: wellbeing\nkeywords: [anxious]\norder: 2\n---\n",
	})

	cfg := offlineConfig(t)
	cfg.Registry.Dir = dir

	rt, err := NewRuntime(cfg, logging.NewNop())
	require.NoError(t, err)
	defer rt.Engine.Close()

	caps := rt.Engine.Capabilities()
	require.Len(t, caps, 2)
	assert.Equal(t, "planner", caps[0].ID)
	assert.Equal(t, "calm", caps[1].ID)
}
