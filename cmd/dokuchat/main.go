package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/doku-labs/dokuchat/internal/cli"
	"github.com/doku-labs/dokuchat/internal/cli/client"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "dokuchat",
		Short: "Dokuchat CLI - ask questions against your documentation",
		Long: `Dokuchat CLI asks questions against an ingested documentation corpus.

Environment variables:
  DOKUCHAT_API_URL   API base URL (default: http://localhost:8080)`,
		Version: version,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	rootCmd.PersistentFlags().String("api-url", "", "API base URL (overrides env)")
	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(client.AskCmd())

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
