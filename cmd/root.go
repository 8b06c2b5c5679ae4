// Package cmd implements the gateway's command line interface.
package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "chat-gateway",
	Short: "chat-gateway is a streaming proxy for LLM chat APIs",
	Long: `chat-gateway accepts provider-agnostic chat requests and relays them to
OpenAI-compatible, Anthropic and Google Gemini APIs, streaming the model
output back as plain text.`,
	SilenceUsage: true,
}

// Execute runs the CLI, honouring cancellation of the provided context.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newVersionCommand())
}
