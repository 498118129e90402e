package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/liliang-cn/askpaper/internal/domain"
	"github.com/spf13/cobra"
)

func newIngestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <chunks.json>",
		Short: "Ingest a paper from a JSON file of labeled chunks",
		Long: `Ingest a paper whose text has already been extracted and split.
The file holds the same body as POST /api/admin/papers:

  {
    "file_name": "attention.pdf",
    "title": "Attention Is All You Need",
    "chunks": [{"text": "...", "section": "Methodology", "page": 3}]
  }`,
		Args: cobra.ExactArgs(1),
		RunE: runIngest,
	}
}

func runIngest(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading %s: %w", args[0], err)
	}
	var req domain.IngestPaperRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return fmt.Errorf("parsing %s: %w", args[0], err)
	}

	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	paper, err := a.ingest.IngestPaper(cmd.Context(), &req)
	if err != nil {
		return fmt.Errorf("ingesting %s: %w", req.FileName, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Ingested %s (%d chunks, id %s)\n", paper.FileName, paper.VectorCount, paper.ID)
	return nil
}
