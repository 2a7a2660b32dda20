package main

import (
	"context"
	"encoding/json"
	"os"
	"strings"

	"github.com/aretw0/wayfarer/internal/cli"
	"github.com/aretw0/wayfarer/internal/presentation/tui"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var askCmd = &cobra.Command{
	Use:   "ask [utterance...]",
	Short: "Run a single turn and print the reply",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, _, _, err := newRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Engine.Close()

		session, _ := cmd.Flags().GetString("session")
		profile, _ := cmd.Flags().GetString("profile")
		asJSON, _ := cmd.Flags().GetBool("json")

		ctx := cli.NewSignalContext(context.Background())
		defer ctx.Cancel()

		res, err := rt.Engine.RunTurn(ctx, strings.Join(args, " "), session, profile)
		if err != nil {
			return cli.HandleExecutionError(err)
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}
		return cli.PrintResult(os.Stdout, res, renderer())
	},
}

// renderer picks markdown rendering for terminals and plain text for pipes.
func renderer() tui.Renderer {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return tui.Plain
	}
	width, _, err := term.GetSize(fd)
	if err != nil {
		width = 80
	}
	return tui.NewRenderer(width)
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().StringP("session", "s", "", "Session key to continue")
	askCmd.Flags().StringP("profile", "p", "", "SLA profile (fast, interactive, deep)")
	askCmd.Flags().Bool("json", false, "Print the full turn result as JSON")
	askCmd.Flags().Bool("offline", false, "Answer from fallback tables without a model backend")
}
