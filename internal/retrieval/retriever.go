// Package retrieval fetches chunks from the vector index for a query,
// re-ranking toward a requested paper section when one is known.
package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/liliang-cn/askpaper/internal/domain"
	"github.com/liliang-cn/askpaper/internal/taxonomy"
	"go.uber.org/zap"
)

// Section boosts
const (
	ExactSectionBoost  = 0.25
	AliasSectionBoost  = 0.15
	KeywordBoostPerHit = 0.03
	MaxKeywordBoost    = 0.15
	DefaultGlobalCap   = 20
	defaultLimit       = 5
)

// SectionAwareRetriever runs the similarity searches of the query pipeline
type SectionAwareRetriever struct {
	embedder  domain.Embedder
	index     domain.VectorIndex
	globalCap int
	logger    *zap.Logger
}

// NewSectionAwareRetriever creates a retriever. globalCap bounds the number
// of candidates a GLOBAL query may request.
func NewSectionAwareRetriever(embedder domain.Embedder, index domain.VectorIndex, globalCap int, logger *zap.Logger) *SectionAwareRetriever {
	if globalCap <= 0 {
		globalCap = DefaultGlobalCap
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SectionAwareRetriever{
		embedder:  embedder,
		index:     index,
		globalCap: globalCap,
		logger:    logger,
	}
}

// RetrieveSection searches with the section name appended to the query,
// over-fetches 2x, boosts candidates tagged with the target section and
// returns the best limit hits.
func (r *SectionAwareRetriever) RetrieveSection(ctx context.Context, query, section string, filter *domain.PaperFilter, limit int) ([]domain.RetrievalHit, error) {
	if limit <= 0 {
		limit = defaultLimit
	}

	hits, err := r.search(ctx, query+" "+section, filter, limit*2)
	if err != nil {
		return nil, err
	}

	boosted := BoostBySection(hits, section)
	if len(boosted) > limit {
		boosted = boosted[:limit]
	}

	r.logger.Debug("Section retrieval",
		zap.String("section", section),
		zap.Int("candidates", len(hits)),
		zap.Int("returned", len(boosted)),
	)
	return boosted, nil
}

// RetrieveGlobal asks for up to 2x limit chunks, capped, without section
// augmentation or boosting.
func (r *SectionAwareRetriever) RetrieveGlobal(ctx context.Context, query string, filter *domain.PaperFilter, limit int) ([]domain.RetrievalHit, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	k := limit * 2
	if k > r.globalCap {
		k = r.globalCap
	}
	return r.search(ctx, query, filter, k)
}

// Search is a plain similarity search with the raw query
func (r *SectionAwareRetriever) Search(ctx context.Context, query string, filter *domain.PaperFilter, limit int) ([]domain.RetrievalHit, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	return r.search(ctx, query, filter, limit)
}

func (r *SectionAwareRetriever) search(ctx context.Context, text string, filter *domain.PaperFilter, k int) ([]domain.RetrievalHit, error) {
	vector, err := r.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding query: %v", domain.ErrUpstreamUnavailable, err)
	}

	hits, err := r.index.Search(ctx, vector, filter, k)
	if err != nil {
		return nil, fmt.Errorf("%w: searching vectors: %v", domain.ErrUpstreamUnavailable, err)
	}
	return hits, nil
}

// SectionBoost is the additive score adjustment for a chunk given a target
// section: exact label match, alias match, or a capped bonus per keyword
// found in the chunk text.
func SectionBoost(chunk domain.Chunk, target string) float64 {
	targetLabel := taxonomy.Normalize(target)
	if taxonomy.Normalize(chunk.Section) == targetLabel {
		return ExactSectionBoost
	}

	def, ok := taxonomy.Lookup(targetLabel)
	if !ok {
		return 0
	}

	detected := strings.ToLower(strings.TrimSpace(chunk.Section))
	if detected != "" {
		for _, alias := range def.Aliases {
			if detected == alias || strings.Contains(detected, alias) {
				return AliasSectionBoost
			}
		}
	}

	if n := taxonomy.CountSubstrings(chunk.Text, def.Keywords); n > 0 {
		boost := float64(n) * KeywordBoostPerHit
		if boost > MaxKeywordBoost {
			boost = MaxKeywordBoost
		}
		return boost
	}
	return 0
}

// BoostBySection applies SectionBoost to every hit, clamps scores to [0,1]
// and sorts by boosted score descending. Ties keep search order.
func BoostBySection(hits []domain.RetrievalHit, target string) []domain.RetrievalHit {
	out := make([]domain.RetrievalHit, len(hits))
	for i, h := range hits {
		boost := SectionBoost(h.Chunk, target)
		h.SectionBoost = boost
		h.Score = clamp01(h.Score + boost)
		out[i] = h
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
