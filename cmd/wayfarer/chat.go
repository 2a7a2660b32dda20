package main

import (
	"context"
	"os"

	"github.com/aretw0/wayfarer"
	"github.com/aretw0/wayfarer/internal/cli"
	"github.com/aretw0/wayfarer/internal/presentation/tui"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive conversation",
	Long:  `Reads one utterance per line and replies until EOF, Ctrl+C or "exit".`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, _, logger, err := newRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Engine.Close()

		session, _ := cmd.Flags().GetString("session")
		if session == "" {
			session = uuid.NewString()
		}
		profile, _ := cmd.Flags().GetString("profile")

		if term.IsTerminal(int(os.Stdout.Fd())) {
			tui.PrintBanner(os.Stdout, wayfarer.Version)
			cli.PrintSystemMessage(os.Stdout, "session %s", session)
		}
		logger.Debug("chat started", "session_key", session, "profile", profile)

		ctx := cli.NewSignalContext(context.Background())
		defer ctx.Cancel()

		err = cli.Chat(ctx, rt.Engine, os.Stdin, os.Stdout, cli.ChatOptions{
			SessionKey: session,
			Profile:    profile,
			Render:     renderer(),
		})
		if sig := ctx.Signal(); sig != nil {
			cli.PrintSystemMessage(os.Stdout, "received %v, goodbye", sig)
		}
		return cli.HandleExecutionError(err)
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringP("session", "s", "", "Session key (random when empty)")
	chatCmd.Flags().StringP("profile", "p", "", "SLA profile (fast, interactive, deep)")
	chatCmd.Flags().Bool("offline", false, "Answer from fallback tables without a model backend")
}
