// Package vectorstore implements domain.VectorIndex over Qdrant and over
// process memory.
package vectorstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/liliang-cn/askpaper/internal/domain"
	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
)

// QdrantConfig holds Qdrant connection settings
type QdrantConfig struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
	Dimension  int
}

// QdrantStore is a VectorIndex backed by a Qdrant collection over gRPC
type QdrantStore struct {
	client     *qdrant.Client
	collection string
	dimension  int
	logger     *zap.Logger
}

// NewQdrantStore connects to Qdrant. Call EnsureCollection before use.
func NewQdrantStore(cfg QdrantConfig, logger *zap.Logger) (*QdrantStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Collection == "" {
		return nil, errors.New("qdrant collection name is required")
	}
	if cfg.Dimension <= 0 {
		return nil, errors.New("invalid dimension")
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to qdrant: %w", err)
	}

	return &QdrantStore{
		client:     client,
		collection: cfg.Collection,
		dimension:  cfg.Dimension,
		logger:     logger,
	}, nil
}

// EnsureCollection creates the cosine collection and its keyword indexes
// when missing
func (s *QdrantStore) EnsureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(s.dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	for _, field := range []string{domain.PayloadKeyFileName, domain.PayloadKeySource} {
		_, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: s.collection,
			FieldName:      field,
			FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
		})
		if err != nil {
			s.logger.Warn("Failed to create payload index", zap.String("field", field), zap.Error(err))
		}
	}

	s.logger.Info("Created qdrant collection",
		zap.String("collection", s.collection),
		zap.Int("dimension", s.dimension),
	)
	return nil
}

// Upsert writes one point per chunk. Chunks without a VectorID get a new
// UUID.
func (s *QdrantStore) Upsert(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return errors.New("chunks and vectors length mismatch")
	}
	if len(chunks) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, len(chunks))
	for i, c := range chunks {
		if len(vectors[i]) != s.dimension {
			return fmt.Errorf("vector %d has dimension %d, want %d", i, len(vectors[i]), s.dimension)
		}
		if c.VectorID == "" {
			c.VectorID = uuid.New().String()
		}
		payload, err := qdrant.TryValueMap(chunkPayload(c))
		if err != nil {
			return fmt.Errorf("failed to encode payload: %w", err)
		}
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(c.VectorID),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: payload,
		}
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert points: %w", err)
	}
	return nil
}

// Search runs a nearest-neighbour query
func (s *QdrantStore) Search(ctx context.Context, vector []float32, filter *domain.PaperFilter, k int) ([]domain.RetrievalHit, error) {
	if k <= 0 {
		k = 5
	}

	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Filter:         paperFilter(filter),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query points: %w", err)
	}

	return hitsFromPoints(points), nil
}

func hitsFromPoints(points []*qdrant.ScoredPoint) []domain.RetrievalHit {
	hits := make([]domain.RetrievalHit, 0, len(points))
	for _, p := range points {
		hits = append(hits, domain.RetrievalHit{
			Chunk: chunkFromPayload(p.GetId().GetUuid(), p.GetPayload()),
			Score: similarity(float64(p.GetScore())),
		})
	}
	return hits
}

// DeletePaper removes every point whose file_name or source is fileName
func (s *QdrantStore) DeletePaper(ctx context.Context, fileName string) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrant.NewPointsSelectorFilter(paperFilter(&domain.PaperFilter{Papers: []string{fileName}})),
	})
	if err != nil {
		return fmt.Errorf("failed to delete points: %w", err)
	}
	return nil
}

// Close closes the gRPC connection
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

// paperFilter matches points whose file_name OR source is one of the
// filter's papers. Older ingests wrote only one of the two keys.
func paperFilter(filter *domain.PaperFilter) *qdrant.Filter {
	if filter.Empty() {
		return nil
	}
	return &qdrant.Filter{
		Should: []*qdrant.Condition{
			qdrant.NewMatchKeywords(domain.PayloadKeyFileName, filter.Papers...),
			qdrant.NewMatchKeywords(domain.PayloadKeySource, filter.Papers...),
		},
	}
}

func chunkPayload(c domain.Chunk) map[string]any {
	return map[string]any{
		domain.PayloadKeyText:       c.Text,
		domain.PayloadKeySection:    c.Section,
		domain.PayloadKeyPage:       int64(c.Page),
		domain.PayloadKeyFileName:   c.SourcePaper,
		domain.PayloadKeySource:     c.SourcePaper,
		domain.PayloadKeyChunkIndex: int64(c.ChunkIndex),
		domain.PayloadKeyVectorID:   c.VectorID,
	}
}

func chunkFromPayload(id string, payload map[string]*qdrant.Value) domain.Chunk {
	str := func(key string) string {
		if v, ok := payload[key]; ok {
			return v.GetStringValue()
		}
		return ""
	}
	num := func(key string) int {
		v, ok := payload[key]
		if !ok {
			return 0
		}
		if n := v.GetIntegerValue(); n != 0 {
			return int(n)
		}
		return int(v.GetDoubleValue())
	}

	source := str(domain.PayloadKeyFileName)
	if source == "" {
		source = str(domain.PayloadKeySource)
	}
	if vid := str(domain.PayloadKeyVectorID); vid != "" {
		id = vid
	}
	section := str(domain.PayloadKeySection)
	if section == "" {
		section = domain.SectionContent
	}

	return domain.Chunk{
		VectorID:    id,
		Text:        str(domain.PayloadKeyText),
		Section:     section,
		Page:        num(domain.PayloadKeyPage),
		SourcePaper: source,
		ChunkIndex:  num(domain.PayloadKeyChunkIndex),
	}
}
