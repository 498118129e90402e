// Package grounding turns retrieved chunks into an answer that cites only
// the chunks it was given.
package grounding

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/liliang-cn/askpaper/internal/domain"
	"go.uber.org/zap"
)

const (
	DefaultFoundInfoThreshold = 0.4
	FallbackConfidence        = 0.5
	NoInformationAnswer       = "I'm sorry, I couldn't find relevant information in the uploaded papers to answer this question."

	answerTemperature = 0.1
	answerMaxTokens   = 1500
)

const answerPrompt = `You are a research assistant answering questions about academic papers.
Use ONLY the context below. Do not use outside knowledge.
If the context does not contain the answer, say so politely and set "found_relevant_info" to false.
Cite only the sources you actually used, copying paper, section and page exactly as given.

Context:
%s
Question: %s

Respond with a single JSON object and nothing else:
{
  "answer": "your answer",
  "citations": [{"paper_title": "...", "section": "...", "page": 1, "relevance_score": 0.0}],
  "sources_used": ["paper file name"],
  "confidence": 0.0,
  "found_relevant_info": true
}`

// AnswerGrounder asks a generative model for an answer over retrieved hits
type AnswerGrounder struct {
	backend   domain.Completer
	timeout   time.Duration
	threshold float64
	logger    *zap.Logger
}

// NewAnswerGrounder creates a grounder. threshold decides found_relevant_info
// when the model omits it.
func NewAnswerGrounder(backend domain.Completer, timeout time.Duration, threshold float64, logger *zap.Logger) *AnswerGrounder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if threshold <= 0 {
		threshold = DefaultFoundInfoThreshold
	}
	return &AnswerGrounder{
		backend:   backend,
		timeout:   timeout,
		threshold: threshold,
		logger:    logger,
	}
}

// Ground generates an answer for query over hits. Backend failures and
// timeouts are returned wrapped in domain.ErrUpstreamUnavailable; a
// malformed model reply degrades to FallbackAnswer.
func (g *AnswerGrounder) Ground(ctx context.Context, query string, hits []domain.RetrievalHit) (domain.GroundedAnswer, error) {
	if len(hits) == 0 {
		return domain.GroundedAnswer{
			Answer:      NoInformationAnswer,
			Citations:   []domain.Citation{},
			SourcesUsed: []string{},
		}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	raw, err := g.backend.Complete(ctx, domain.CompletionRequest{
		Prompt:      BuildPrompt(query, hits),
		Temperature: answerTemperature,
		MaxTokens:   answerMaxTokens,
	})
	if err != nil {
		return domain.GroundedAnswer{}, fmt.Errorf("%w: generating answer: %v", domain.ErrUpstreamUnavailable, err)
	}

	answer, err := ParseAnswer(raw, hits, g.threshold)
	if err != nil {
		g.logger.Warn("Malformed grounding response, using raw text",
			zap.Error(err),
			zap.Int("length", len(raw)),
		)
		return FallbackAnswer(raw, hits), nil
	}
	return answer, nil
}

// BuildPrompt renders hits as numbered sources followed by the question
func BuildPrompt(query string, hits []domain.RetrievalHit) string {
	var b strings.Builder
	for i, h := range hits {
		fmt.Fprintf(&b, "[Source %d] Paper: %s | Section: %s | Page: %d\n%s\n\n",
			i+1, h.Chunk.SourcePaper, h.Chunk.Section, h.Chunk.Page, strings.TrimSpace(h.Chunk.Text))
	}
	return fmt.Sprintf(answerPrompt, b.String(), query)
}

type modelCitation struct {
	PaperTitle     string  `json:"paper_title"`
	Paper          string  `json:"paper"`
	Section        string  `json:"section"`
	Page           int     `json:"page"`
	RelevanceScore float64 `json:"relevance_score"`
}

type modelAnswer struct {
	Answer            string          `json:"answer"`
	Citations         []modelCitation `json:"citations"`
	SourcesUsed       []string        `json:"sources_used"`
	Confidence        *float64        `json:"confidence"`
	FoundRelevantInfo *bool           `json:"found_relevant_info"`
}

// ParseAnswer decodes the first JSON object in the model's reply, tolerating
// code fences and surrounding prose. Citations that do not correspond to one
// of hits are dropped. An empty answer is a refusal and reads as
// NoInformationAnswer.
func ParseAnswer(raw string, hits []domain.RetrievalHit, threshold float64) (domain.GroundedAnswer, error) {
	m, err := decodeAnswer(raw)
	if err != nil {
		return domain.GroundedAnswer{}, err
	}

	confidence := FallbackConfidence
	if m.Confidence != nil {
		confidence = clamp01(*m.Confidence)
	}
	text := strings.TrimSpace(m.Answer)
	found := text != "" && confidence > threshold
	if m.FoundRelevantInfo != nil {
		found = *m.FoundRelevantInfo
	}
	if text == "" {
		text = NoInformationAnswer
	}

	cited := make([]domain.Citation, 0, len(m.Citations))
	for _, c := range m.Citations {
		paper := c.PaperTitle
		if paper == "" {
			paper = c.Paper
		}
		cited = append(cited, domain.Citation{
			PaperTitle:     paper,
			Section:        c.Section,
			Page:           c.Page,
			RelevanceScore: c.RelevanceScore,
		})
	}
	citations := FilterCitations(cited, hits)

	return domain.GroundedAnswer{
		Answer:            text,
		Citations:         citations,
		SourcesUsed:       resolveSources(m.SourcesUsed, citations, hits),
		Confidence:        confidence,
		FoundRelevantInfo: found,
	}, nil
}

// FallbackAnswer is the degraded result for an unparseable reply: the raw
// text, no citations, every candidate source, fixed confidence.
func FallbackAnswer(raw string, hits []domain.RetrievalHit) domain.GroundedAnswer {
	return domain.GroundedAnswer{
		Answer:            strings.TrimSpace(raw),
		Citations:         []domain.Citation{},
		SourcesUsed:       hitSources(hits),
		Confidence:        FallbackConfidence,
		FoundRelevantInfo: false,
	}
}

type citationKey struct {
	paper   string
	section string
	page    int
}

func keyOf(paper, section string, page int) citationKey {
	return citationKey{
		paper:   strings.ToLower(strings.TrimSpace(paper)),
		section: strings.ToLower(strings.TrimSpace(section)),
		page:    page,
	}
}

// FilterCitations keeps citations whose (paper, section, page) matches a
// hit, rewrites them to the hit's spelling, clamps relevance and merges
// duplicates keeping the highest relevance. Order of first appearance is
// preserved.
func FilterCitations(citations []domain.Citation, hits []domain.RetrievalHit) []domain.Citation {
	known := make(map[citationKey]domain.Chunk, len(hits))
	for _, h := range hits {
		k := keyOf(h.Chunk.SourcePaper, h.Chunk.Section, h.Chunk.Page)
		if _, ok := known[k]; !ok {
			known[k] = h.Chunk
		}
	}

	out := make([]domain.Citation, 0, len(citations))
	pos := make(map[citationKey]int, len(citations))
	for _, c := range citations {
		k := keyOf(c.PaperTitle, c.Section, c.Page)
		chunk, ok := known[k]
		if !ok {
			continue
		}
		score := clamp01(c.RelevanceScore)
		if i, seen := pos[k]; seen {
			if score > out[i].RelevanceScore {
				out[i].RelevanceScore = score
			}
			continue
		}
		pos[k] = len(out)
		out = append(out, domain.Citation{
			PaperTitle:     chunk.SourcePaper,
			Section:        chunk.Section,
			Page:           chunk.Page,
			RelevanceScore: score,
		})
	}
	return out
}

// resolveSources keeps model-reported sources that were actually retrieved
// and adds any cited paper the model forgot to list.
func resolveSources(reported []string, citations []domain.Citation, hits []domain.RetrievalHit) []string {
	canonical := make(map[string]string)
	for _, s := range hitSources(hits) {
		canonical[strings.ToLower(s)] = s
	}

	seen := make(map[string]bool)
	out := []string{}
	add := func(name string) {
		s, ok := canonical[strings.ToLower(strings.TrimSpace(name))]
		if !ok || seen[s] {
			return
		}
		seen[s] = true
		out = append(out, s)
	}
	for _, s := range reported {
		add(s)
	}
	for _, c := range citations {
		add(c.PaperTitle)
	}
	return out
}

func hitSources(hits []domain.RetrievalHit) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, h := range hits {
		s := h.Chunk.SourcePaper
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// decodeAnswer tries each opening brace in turn and decodes the first
// complete object found there, ignoring whatever follows it.
func decodeAnswer(raw string) (modelAnswer, error) {
	err := fmt.Errorf("no JSON object in response")
	for i := strings.Index(raw, "{"); i >= 0; {
		var m modelAnswer
		decErr := json.NewDecoder(strings.NewReader(raw[i:])).Decode(&m)
		if decErr == nil {
			return m, nil
		}
		err = fmt.Errorf("decode answer: %w", decErr)

		next := strings.Index(raw[i+1:], "{")
		if next < 0 {
			break
		}
		i += next + 1
	}
	return modelAnswer{}, err
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
