package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/wayfarer/internal/presentation/tui"
	"github.com/aretw0/wayfarer/pkg/domain"
)

// Turner runs one turn; *wayfarer.Engine satisfies it.
type Turner interface {
	RunTurn(ctx context.Context, utterance, sessionKey, profile string) (*domain.TurnResult, error)
}

// ChatOptions configures the chat loop.
type ChatOptions struct {
	SessionKey string
	Profile    string
	Render     tui.Renderer
	Prompt     string
}

// Chat reads utterances line by line and prints each reply until the input
// ends, ctx is cancelled or the user types exit or quit.
func Chat(ctx context.Context, eng Turner, in io.Reader, out io.Writer, opts ChatOptions) error {
	if opts.Render == nil {
		opts.Render = tui.Plain
	}
	if opts.Prompt == "" {
		opts.Prompt = "> "
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			readErr <- err
			return
		}
		readErr <- io.EOF
	}()

	for {
		fmt.Fprint(out, opts.Prompt)

		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return ctx.Err()
		case err := <-readErr:
			fmt.Fprintln(out)
			return err
		case line = <-lines:
		}

		line = strings.TrimSpace(line)
		switch strings.ToLower(line) {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		res, err := eng.RunTurn(ctx, line, opts.SessionKey, opts.Profile)
		if err != nil {
			return err
		}
		if err := PrintResult(out, res, opts.Render); err != nil {
			return err
		}
	}
}

// PrintResult renders a reply followed by its attribution line.
func PrintResult(out io.Writer, res *domain.TurnResult, render tui.Renderer) error {
	text, err := render(res.Reply)
	if err != nil {
		text = res.Reply + "\n"
	}
	fmt.Fprint(out, text)
	fmt.Fprintln(out, tui.Attribution(res.ContributingResponderIDs, res.UsedFallback))
	return nil
}
