package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/aretw0/wayfarer/internal/cli"
	"github.com/aretw0/wayfarer/internal/presentation/graph"
	"github.com/aretw0/wayfarer/pkg/domain"
	"github.com/spf13/cobra"
)

var routeCmd = &cobra.Command{
	Use:   "route [utterance...]",
	Short: "Show which responders an utterance would reach",
	Long:  `Scores the utterance against the catalogue without contacting any model backend.`,
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, _, _, err := newRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Engine.Close()

		session, _ := cmd.Flags().GetString("session")
		profile, _ := cmd.Flags().GetString("profile")
		utterance := strings.Join(args, " ")
		ctx := context.Background()

		d, err := rt.Engine.Route(ctx, utterance, session, profile)
		if err != nil {
			return err
		}
		if asGraph, _ := cmd.Flags().GetBool("mermaid"); asGraph {
			var prior *domain.SessionSnapshot
			if session != "" {
				prior, _ = rt.Engine.Session(ctx, session)
			}
			fmt.Print(graph.GenerateMermaid(rt.Engine.Capabilities(), graph.OverlayFrom(d, prior)))
			return nil
		}

		ex, err := rt.Engine.Explain(ctx, utterance, session)
		if err != nil {
			return err
		}
		cli.PrintRoute(os.Stdout, d, ex)
		return nil
	},
}

var capabilitiesCmd = &cobra.Command{
	Use:   "capabilities",
	Short: "List the responders in the catalogue",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, _, _, err := newRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Engine.Close()

		if asGraph, _ := cmd.Flags().GetBool("mermaid"); asGraph {
			fmt.Print(graph.GenerateMermaid(rt.Engine.Capabilities(), nil))
			return nil
		}
		cli.PrintCapabilities(os.Stdout, rt.Engine.Capabilities())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(routeCmd, capabilitiesCmd)
	routeCmd.Flags().StringP("session", "s", "", "Session key whose active responders count as continuity")
	routeCmd.Flags().StringP("profile", "p", "", "SLA profile (fast, interactive, deep)")
	routeCmd.Flags().Bool("mermaid", false, "Print the catalogue as a Mermaid graph with the selection highlighted")
	capabilitiesCmd.Flags().Bool("mermaid", false, "Print the catalogue as a Mermaid graph")
}
