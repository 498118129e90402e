package main

import (
	"github.com/spf13/cobra"
)

var configPath string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "askpaper",
		Short: "Question answering over research papers",
		Long: `askpaper answers questions about ingested research papers with
section-aware retrieval and cited, grounded answers.

Examples:
  askpaper serve --config config.yaml
  askpaper ingest attention.json
  askpaper query "What methodology does the transformer paper use?"`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newQueryCmd())
	cmd.AddCommand(newIngestCmd())
	return cmd
}
