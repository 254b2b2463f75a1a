package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/parley-labs/parley/internal/cli"
	"github.com/parley-labs/parley/internal/cli/client"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "parley",
		Short: "Parley CLI - Chat with your documents",
		Long: `Parley CLI uploads documents and asks questions grounded in them.

Environment variables:
  PARLEY_API_KEY   API key for authentication (required)
  PARLEY_API_URL   API base URL (default: http://localhost:8080)`,
		Version: version,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	rootCmd.PersistentFlags().String("api-key", "", "API key for authentication (overrides env and config)")
	rootCmd.PersistentFlags().String("api-url", "", "API base URL (overrides env and config)")
	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(client.InitCmd())
	rootCmd.AddCommand(client.AskCmd())
	rootCmd.AddCommand(client.UploadCmd())
	rootCmd.AddCommand(client.DocumentsCmd())
	rootCmd.AddCommand(client.ContextCmd())
	rootCmd.AddCommand(client.ClearCmd())
	rootCmd.AddCommand(client.TranscriptCmd())
	rootCmd.AddCommand(client.AuthCmd())

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
