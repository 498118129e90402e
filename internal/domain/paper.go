package domain

import "time"

// Section fallbacks assigned by the chunker when no heading was detected
const (
	SectionContent   = "Content"
	SectionParagraph = "Paragraph"
)

// Vector payload keys. Ingestion historically stored the paper identifier
// under either file_name or source, so both are written and both are read.
const (
	PayloadKeyText       = "text"
	PayloadKeySection    = "section"
	PayloadKeyPage       = "page"
	PayloadKeyFileName   = "file_name"
	PayloadKeySource     = "source"
	PayloadKeyChunkIndex = "chunk_index"
	PayloadKeyVectorID   = "vector_id"
)

// Paper represents an ingested research paper
type Paper struct {
	ID             string     `json:"id"`
	FileName       string     `json:"file_name"`
	Title          string     `json:"title"`
	PageCount      int        `json:"page_count"`
	VectorCount    int        `json:"vector_count"`
	TotalQueries   int        `json:"total_queries"`
	TotalCitations int        `json:"total_citations"`
	LastQueried    *time.Time `json:"last_queried,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// Chunk is a unit of indexed text. VectorID is shared between the vector
// index and the document store.
type Chunk struct {
	VectorID    string `json:"vector_id"`
	Text        string `json:"text"`
	Section     string `json:"section"`
	Page        int    `json:"page"`
	SourcePaper string `json:"source_paper"`
	ChunkIndex  int    `json:"chunk_index"`
}

// PaperStatsUpdate is applied to a paper after it contributed to an answer
type PaperStatsUpdate struct {
	CitationCount int
	LastQueried   time.Time
}

// ChunkInput is one pre-extracted, labeled piece of paper text
type ChunkInput struct {
	Text    string `json:"text" binding:"required"`
	Section string `json:"section,omitempty"`
	Page    int    `json:"page,omitempty"`
}

// IngestPaperRequest is the request to index a paper's chunks
type IngestPaperRequest struct {
	FileName  string       `json:"file_name" binding:"required"`
	Title     string       `json:"title,omitempty"`
	PageCount int          `json:"page_count,omitempty"`
	Chunks    []ChunkInput `json:"chunks" binding:"required"`
}
