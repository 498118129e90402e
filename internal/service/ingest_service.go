package service

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/liliang-cn/askpaper/internal/domain"
	"github.com/liliang-cn/askpaper/internal/repository"
	"go.uber.org/zap"
)

const embedBatchSize = 32

// FileType constants
const (
	FileTypePDF = "pdf"
	FileTypeMD  = "md"
	FileTypeTXT = "txt"
)

// DetectFileType detects file type from filename
func DetectFileType(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".pdf":
		return FileTypePDF
	case ".md", ".markdown":
		return FileTypeMD
	case ".txt":
		return FileTypeTXT
	case "":
		return ""
	default:
		return ext[1:]
	}
}

// IsSupported checks if file type is supported
func IsSupported(fileType string) bool {
	switch fileType {
	case FileTypePDF, FileTypeMD, FileTypeTXT:
		return true
	}
	return false
}

// IngestService indexes pre-extracted paper chunks
type IngestService struct {
	paperRepo *repository.PaperRepository
	embedder  domain.Embedder
	index     domain.VectorIndex
	logger    *zap.Logger
}

// NewIngestService creates a new ingest service
func NewIngestService(
	paperRepo *repository.PaperRepository,
	embedder domain.Embedder,
	index domain.VectorIndex,
	logger *zap.Logger,
) *IngestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IngestService{
		paperRepo: paperRepo,
		embedder:  embedder,
		index:     index,
		logger:    logger,
	}
}

// IngestPaper embeds and indexes a paper's chunks and stores its metadata.
// The duplicate check is best-effort under concurrent uploads.
func (s *IngestService) IngestPaper(ctx context.Context, req *domain.IngestPaperRequest) (*domain.Paper, error) {
	fileName := strings.TrimSpace(req.FileName)
	if fileName == "" {
		return nil, fmt.Errorf("%w: file_name is required", domain.ErrInvalidRequest)
	}
	if fileType := DetectFileType(fileName); !IsSupported(fileType) {
		return nil, fmt.Errorf("%w: unsupported file type %q", domain.ErrInvalidRequest, fileType)
	}

	chunks, err := buildChunks(fileName, req.Chunks)
	if err != nil {
		return nil, err
	}

	exists, err := s.paperRepo.Exists(ctx, fileName)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: %s", domain.ErrPaperExists, fileName)
	}

	vectors, err := s.embedChunks(ctx, chunks)
	if err != nil {
		return nil, err
	}
	if err := s.index.Upsert(ctx, chunks, vectors); err != nil {
		return nil, fmt.Errorf("%w: storing vectors: %v", domain.ErrUpstreamUnavailable, err)
	}

	paper := &domain.Paper{
		FileName:  fileName,
		Title:     strings.TrimSpace(req.Title),
		PageCount: req.PageCount,
	}
	if paper.Title == "" {
		paper.Title = strings.TrimSuffix(fileName, filepath.Ext(fileName))
	}
	for _, c := range chunks {
		if c.Page > paper.PageCount {
			paper.PageCount = c.Page
		}
	}

	if err := s.paperRepo.Create(ctx, paper, chunks); err != nil {
		// The index must not hold chunks of a paper the store does not know
		if derr := s.index.DeletePaper(ctx, fileName); derr != nil {
			s.logger.Error("Failed to remove vectors after store failure", zap.String("paper", fileName), zap.Error(derr))
		}
		return nil, err
	}

	s.logger.Info("Paper ingested",
		zap.String("paper", fileName),
		zap.Int("chunks", len(chunks)),
		zap.Int("pages", paper.PageCount),
	)
	return paper, nil
}

func buildChunks(fileName string, inputs []domain.ChunkInput) ([]domain.Chunk, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w: at least one chunk is required", domain.ErrInvalidRequest)
	}

	chunks := make([]domain.Chunk, len(inputs))
	for i, in := range inputs {
		text := strings.TrimSpace(in.Text)
		if text == "" {
			return nil, fmt.Errorf("%w: chunk %d is empty", domain.ErrInvalidRequest, i)
		}
		section := strings.TrimSpace(in.Section)
		if section == "" {
			section = domain.SectionContent
		}
		page := in.Page
		if page <= 0 {
			page = 1
		}
		chunks[i] = domain.Chunk{
			VectorID:    uuid.New().String(),
			Text:        text,
			Section:     section,
			Page:        page,
			SourcePaper: fileName,
			ChunkIndex:  i,
		}
	}
	return chunks, nil
}

func (s *IngestService) embedChunks(ctx context.Context, chunks []domain.Chunk) ([][]float32, error) {
	vectors := make([][]float32, 0, len(chunks))
	for start := 0; start < len(chunks); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		texts := make([]string, 0, end-start)
		for _, c := range chunks[start:end] {
			texts = append(texts, c.Text)
		}

		batch, err := s.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("%w: embedding chunks: %v", domain.ErrUpstreamUnavailable, err)
		}
		if len(batch) != len(texts) {
			return nil, fmt.Errorf("%w: got %d embeddings for %d chunks", domain.ErrUpstreamUnavailable, len(batch), len(texts))
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}
