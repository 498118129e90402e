package domain

import "context"

// CompletionRequest is a single prompt sent to a generative model
type CompletionRequest struct {
	Prompt      string
	Temperature float32
	MaxTokens   int
}

// Completer produces text from a prompt
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// Embedder converts text into a fixed-dimension vector. Identical input
// yields identical output.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorIndex stores chunk vectors and answers similarity searches. Papers
// are identified by file name, the value chunks carry as SourcePaper.
type VectorIndex interface {
	Upsert(ctx context.Context, chunks []Chunk, vectors [][]float32) error
	Search(ctx context.Context, vector []float32, filter *PaperFilter, k int) ([]RetrievalHit, error)
	DeletePaper(ctx context.Context, fileName string) error
	Close() error
}

// DocumentStore is the slice of paper persistence the query pipeline needs.
// Paper identifiers here are file names.
type DocumentStore interface {
	GetPaperIDs(ctx context.Context, filter *PaperFilter) ([]string, error)
	UpdatePaperStats(ctx context.Context, fileName string, update PaperStatsUpdate) error
}
