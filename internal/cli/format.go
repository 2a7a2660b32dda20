package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/aretw0/wayfarer/pkg/domain"
	"github.com/aretw0/wayfarer/pkg/router"
)

// PrintRoute writes the selection and the full score breakdown as a table.
func PrintRoute(out io.Writer, d domain.RoutingDecision, explanations []router.Explanation) {
	selected := make(map[string]int, len(d.Entries))
	for i, e := range d.Entries {
		selected[e.ID] = i + 1
	}

	sort.SliceStable(explanations, func(i, j int) bool {
		return explanations[i].Score > explanations[j].Score
	})

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tRESPONDER\tSCORE\tMATCHED")
	for _, e := range explanations {
		rank := "-"
		if n, ok := selected[e.ID]; ok {
			rank = fmt.Sprint(n)
		}
		matched := append(append(append([]string{}, e.Exact...), e.Partial...), e.Patterns...)
		fmt.Fprintf(tw, "%s\t%s\t%.2f\t%s\n", rank, e.ID, e.Score, strings.Join(matched, ","))
	}
	_ = tw.Flush()

	switch {
	case d.Forced:
		fmt.Fprintln(out, "nothing cleared the relevance floor; default responder forced")
	case d.Cached:
		fmt.Fprintln(out, "served from the routing cache")
	}
}

// PrintCapabilities lists the catalogue.
func PrintCapabilities(out io.Writer, caps []domain.CapabilityDescriptor) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tROLE\tKEYWORDS")
	for _, c := range caps {
		id := c.ID
		if c.Default {
			id += "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", id, c.Label(), c.Role, strings.Join(c.Keywords, ","))
	}
	_ = tw.Flush()
}
