package main

import (
	"encoding/json"
	"fmt"

	"github.com/liliang-cn/askpaper/internal/domain"
	"github.com/spf13/cobra"
)

var (
	queryPapers   []string
	queryResearch string
	queryLimit    int
)

func newQueryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query <question>",
		Short: "Ask a question and print the answer as JSON",
		Long: `Ask a question over the ingested papers. The full response,
including citations and confidence scores, is printed as JSON.

Examples:
  askpaper query "Summarize all papers"
  askpaper query --paper attention.pdf "What were the results?"
  askpaper query --research <id> "Compare the methods"`,
		Args: cobra.ExactArgs(1),
		RunE: runQuery,
	}

	cmd.Flags().StringSliceVar(&queryPapers, "paper", nil, "Restrict retrieval to these paper file names")
	cmd.Flags().StringVar(&queryResearch, "research", "", "Restrict retrieval to the papers of this research topic")
	cmd.Flags().IntVar(&queryLimit, "limit", 0, "Maximum chunks to retrieve (0 uses the configured default)")
	return cmd
}

func runQuery(cmd *cobra.Command, args []string) error {
	if queryLimit < 0 {
		return fmt.Errorf("limit must not be negative, got %d", queryLimit)
	}

	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	resp, err := a.query.Query(cmd.Context(), &domain.QueryRequest{
		Question:    args[0],
		PaperFilter: queryPapers,
		ResearchID:  queryResearch,
		Limit:       queryLimit,
	})
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	out, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s\n", out)
	return nil
}
