// Package main provides the CLI entry point for the concierge engine.
//
// Concierge is a multi-tenant virtual receptionist: it turns inbound customer
// messages into LLM tool-calling turns that can check availability, book,
// cancel, and reschedule appointments, list services and prices, send media,
// and escalate to a human.
//
// Start the server:
//
//	concierge serve --config concierge.yaml
//
// Talk to the engine locally:
//
//	concierge chat --config concierge.yaml --company co-1
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Build information, populated by ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := buildRootCmd().Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "concierge",
		Short: "Concierge - virtual receptionist engine",
		Long: `Concierge runs a tool-calling agent loop over a scheduling backend.

Supported LLM providers: Anthropic (Claude), OpenAI (GPT)
Tools: availability, booking, cancellation, rescheduling, service catalog,
media delivery, human handoff`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildServeCmd(),
		buildChatCmd(),
		buildVersionCmd(),
	)

	return rootCmd
}

func buildVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("concierge %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}
