package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/aretw0/wayfarer/internal/cli"
	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:     "sessions",
	Aliases: []string{"session"},
	Short:   "Inspect and reset stored sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List session keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, _, _, err := newRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Engine.Close()

		keys, err := rt.Engine.ListSessions(cmd.Context())
		if err != nil {
			return err
		}
		if len(keys) == 0 {
			cli.PrintSystemMessage(os.Stdout, "no sessions")
			return nil
		}
		for _, k := range keys {
			fmt.Println(k)
		}
		return nil
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <key>",
	Short: "Print a session snapshot as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, _, _, err := newRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Engine.Close()

		snap, err := rt.Engine.Session(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	},
}

var sessionsResetCmd = &cobra.Command{
	Use:   "reset <key>",
	Short: "Delete a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, _, _, err := newRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Engine.Close()

		if err := rt.Engine.ResetSession(cmd.Context(), args[0]); err != nil {
			return err
		}
		cli.PrintSystemMessage(os.Stdout, "session %s reset", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsListCmd, sessionsShowCmd, sessionsResetCmd)
}
