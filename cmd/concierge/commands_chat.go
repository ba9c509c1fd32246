package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bookday/concierge/internal/channels"
	"github.com/bookday/concierge/internal/config"
)

// stdoutSender prints replies to the terminal so chat reads like a
// conversation rather than a log stream.
type stdoutSender struct{}

func (stdoutSender) Send(ctx context.Context, conversationID string, msg channels.OutboundMessage) error {
	if msg.MediaURL != "" {
		fmt.Printf("assistant> [media] %s %s\n", msg.MediaURL, msg.Caption)
		return nil
	}
	fmt.Printf("assistant> %s\n", msg.Text)
	return nil
}

// buildChatCmd creates the "chat" command: a local REPL that drives the full
// engine, tools included, from the terminal.
func buildChatCmd() *cobra.Command {
	var (
		configPath string
		companyID  string
		clientID   string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the engine from the terminal",
		Example: `  # Chat as the first configured company
  concierge chat --config concierge.yaml --company co-1`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context(), configPath, companyID, clientID, debug)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "concierge.yaml",
		"Path to YAML configuration file")
	cmd.Flags().StringVar(&companyID, "company", "",
		"Company id to chat as (defaults to the first configured company)")
	cmd.Flags().StringVar(&clientID, "client", "local",
		"Client id for the conversation")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false,
		"Enable debug logging (verbose output)")

	return cmd
}

func runChat(ctx context.Context, configPath, companyID, clientID string, debug bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := buildLogger(cfg, debug)

	if companyID == "" {
		if len(cfg.Companies) == 0 {
			return fmt.Errorf("no companies configured")
		}
		companyID = cfg.Companies[0].ID
	}

	eng, err := buildEngine(cfg, stdoutSender{}, logger)
	if err != nil {
		return err
	}

	fmt.Printf("chatting as company %s (client %s); empty line or Ctrl-D to quit\n", companyID, clientID)
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("you> ")
		if !scanner.Scan() {
			break
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			break
		}

		result, err := eng.receptionist.HandleInbound(ctx, companyID, clientID, text)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		if result.Handoff {
			fmt.Println("[conversation escalated to a human operator]")
		}
	}
	return scanner.Err()
}
