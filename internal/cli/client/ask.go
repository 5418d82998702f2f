package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// AskRequest represents the ask API request.
type AskRequest struct {
	Query       string `json:"query"`
	ChatHistory string `json:"chat_history,omitempty"`
}

// DiagnosticEvent represents one timed pipeline stage.
type DiagnosticEvent struct {
	Stage          string  `json:"stage"`
	DurationMS     float64 `json:"duration_ms"`
	DocCount       int     `json:"doc_count"`
	ContextPreview string  `json:"context_preview,omitempty"`
}

// AskResponse represents the ask API response.
type AskResponse struct {
	Answer         string              `json:"answer"`
	Source         string              `json:"source"`
	ContextDocs    []map[string]string `json:"context_docs"`
	Diagnostics    []DiagnosticEvent   `json:"diagnostics"`
	Query          string              `json:"query"`
	RewrittenQuery string              `json:"rewritten_query,omitempty"`
}

// AskCmd creates the ask command.
func AskCmd() *cobra.Command {
	var (
		history string
		verbose bool
	)

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question",
		Long:  "Asks a question against the ingested documentation corpus.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runAsk(cmd, args[0], history, verbose, outputJSON)
		},
	}

	cmd.Flags().StringVar(&history, "history", "", "Prior conversation transcript, one message per line")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print retrieved sources and stage timings")

	return cmd
}

func runAsk(cmd *cobra.Command, question, history string, verbose, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Post("/v1/ask", AskRequest{Query: question, ChatHistory: history})
	if err != nil {
		return err
	}

	var result AskResponse
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	fmt.Println(result.Answer)

	if result.Source == "error" {
		fmt.Println("\n(answer generation reported an error)")
	}

	if verbose {
		if result.RewrittenQuery != "" {
			fmt.Printf("\nRewritten query: %s\n", result.RewrittenQuery)
		}
		if len(result.ContextDocs) > 0 {
			fmt.Println("\nSources:")
			for _, doc := range result.ContextDocs {
				source := doc["source"]
				if source == "" {
					source = doc["filename"]
				}
				fmt.Printf("  - %s\n", source)
			}
		}
		if len(result.Diagnostics) > 0 {
			fmt.Println("\nStages:")
			for _, ev := range result.Diagnostics {
				fmt.Printf("  %-25s %8.1fms  %d docs\n", ev.Stage, ev.DurationMS, ev.DocCount)
			}
		}
	}

	return nil
}
