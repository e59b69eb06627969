package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/experimentein/research-agent/internal/agent"
)

func newChatCmd() *cobra.Command {
	var session string

	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Chat with the agent from the terminal",
		Long:  "With a message argument, runs a single turn and prints the reply. Without one, starts an interactive session.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			comp, err := buildComponents(cfg)
			if err != nil {
				return err
			}
			defer comp.Close()

			comp.runner.OnEvent(func(evt agent.TurnEvent) {
				if evt.Type == "tool" {
					fmt.Fprintf(os.Stderr, "· %s\n", evt.Tool)
				}
			})

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if len(args) == 1 {
				return runTurn(ctx, comp, session, args[0])
			}
			return runInteractive(ctx, comp, session)
		},
	}

	cmd.Flags().StringVar(&session, "session", "cli", "session key, turns with the same key share a conversation")

	return cmd
}

func runTurn(ctx context.Context, comp *components, session, message string) error {
	result, err := comp.runner.Run(ctx, session, message)
	if err != nil {
		return err
	}
	fmt.Println(result.Reply)
	return nil
}

func runInteractive(ctx context.Context, comp *components, session string) error {
	fmt.Println("Interactive session. Empty line or /quit to exit.")
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" || line == "/quit" {
			return nil
		}

		if err := runTurn(ctx, comp, session, line); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		fmt.Println()
	}
}
