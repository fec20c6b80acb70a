package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "openresponses",
	Short: "Self-hosted gateway implementing the Responses and Chat Completions wire protocols",
	Long: `openresponses is an HTTP gateway that speaks OpenAI's Responses API and
Chat Completions API, executing native and MCP tools server-side and
routing model calls to OpenAI, Anthropic, Groq, xAI, Together AI, or
Bedrock depending on the request's model identifier.`,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// Execute runs the root command, exiting the process with status 1 on
// failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
