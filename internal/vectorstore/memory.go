package vectorstore

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"

	"github.com/liliang-cn/askpaper/internal/domain"
)

// MemoryStore is an in-process vector index using brute-force cosine
// similarity. Suitable for tests and small single-node deployments.
type MemoryStore struct {
	mu        sync.RWMutex
	dimension int
	vectors   [][]float32
	chunks    []domain.Chunk
}

// NewMemoryStore creates an empty store accepting vectors of dimension
func NewMemoryStore(dimension int) (*MemoryStore, error) {
	if dimension <= 0 {
		return nil, errors.New("invalid dimension")
	}
	return &MemoryStore{dimension: dimension}, nil
}

// Upsert adds chunks, replacing any with the same VectorID
func (s *MemoryStore) Upsert(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return errors.New("chunks and vectors length mismatch")
	}
	for _, v := range vectors {
		if len(v) != s.dimension {
			return errors.New("vector dimension mismatch")
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	index := make(map[string]int, len(s.chunks))
	for i, c := range s.chunks {
		index[c.VectorID] = i
	}
	for i, c := range chunks {
		if j, ok := index[c.VectorID]; ok && c.VectorID != "" {
			s.chunks[j] = c
			s.vectors[j] = vectors[i]
			continue
		}
		index[c.VectorID] = len(s.chunks)
		s.chunks = append(s.chunks, c)
		s.vectors = append(s.vectors, vectors[i])
	}
	return nil
}

// Search returns the k most similar chunks, optionally restricted to papers
func (s *MemoryStore) Search(ctx context.Context, vector []float32, filter *domain.PaperFilter, k int) ([]domain.RetrievalHit, error) {
	if k <= 0 {
		k = 5
	}
	allowed := filterSet(filter)

	s.mu.RLock()
	defer s.mu.RUnlock()

	hits := make([]domain.RetrievalHit, 0, len(s.chunks))
	for i, c := range s.chunks {
		if allowed != nil && !allowed[c.SourcePaper] {
			continue
		}
		hits = append(hits, domain.RetrievalHit{Chunk: c, Score: similarity(cosine(s.vectors[i], vector))})
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// DeletePaper removes every chunk of the paper
func (s *MemoryStore) DeletePaper(ctx context.Context, fileName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	chunks := s.chunks[:0]
	vectors := s.vectors[:0]
	for i, c := range s.chunks {
		if c.SourcePaper == fileName {
			continue
		}
		chunks = append(chunks, c)
		vectors = append(vectors, s.vectors[i])
	}
	s.chunks = chunks
	s.vectors = vectors
	return nil
}

// Len reports the number of stored chunks
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

// Close is a no-op
func (s *MemoryStore) Close() error { return nil }

func filterSet(filter *domain.PaperFilter) map[string]bool {
	if filter.Empty() {
		return nil
	}
	set := make(map[string]bool, len(filter.Papers))
	for _, p := range filter.Papers {
		set[p] = true
	}
	return set
}

func cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// similarity maps a raw index score onto [0, 1]; opposed vectors score 0
func similarity(score float64) float64 {
	if score < 0 || math.IsNaN(score) {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
