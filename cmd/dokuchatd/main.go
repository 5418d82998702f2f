package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/doku-labs/dokuchat/internal/cli"
	"github.com/doku-labs/dokuchat/internal/cli/admin"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "dokuchatd",
		Short: "Dokuchat daemon",
		Long:  "Dokuchat daemon for serving the answering API and ingesting documentation corpora",
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.IngestCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
