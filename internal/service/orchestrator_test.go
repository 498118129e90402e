package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/liliang-cn/askpaper/internal/domain"
	"github.com/liliang-cn/askpaper/internal/grounding"
	"github.com/liliang-cn/askpaper/internal/scoring"
)

const methodologyAnswer = `{
  "answer": "They train an encoder-decoder transformer.",
  "citations": [{"paper_title": "attention.pdf", "section": "Methodology", "page": 3, "relevance_score": 0.9}],
  "sources_used": ["attention.pdf"],
  "confidence": 0.85,
  "found_relevant_info": true
}`

func TestQuery_GreetingIsOutOfContext(t *testing.T) {
	p := newPipeline("", nil, "")

	resp, err := p.orchestrator.Query(context.Background(), "hello", nil, 0)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if resp.Scope != domain.ScopeOutOfContext || resp.Category != "greeting" {
		t.Errorf("scope/category = %s/%s, want out_of_context/greeting", resp.Scope, resp.Category)
	}
	if resp.Confidence != 1.0 || resp.ContextScore != 1.0 {
		t.Errorf("confidence/context = %f/%f, want 1.0/1.0", resp.Confidence, resp.ContextScore)
	}
	if len(resp.Citations) != 0 || resp.RetrievalCount != 0 {
		t.Errorf("citations = %v, retrieval = %d", resp.Citations, resp.RetrievalCount)
	}
	if p.index.calls != 0 || p.answer.Calls() != 0 {
		t.Errorf("out-of-context query touched the index (%d) or answer backend (%d)", p.index.calls, p.answer.Calls())
	}
}

func TestQuery_OutOfContextCategoryFromKeywords(t *testing.T) {
	p := newPipeline("SCOPE: out_of_context\nREASON: small talk", nil, "")

	resp, err := p.orchestrator.Query(context.Background(), "hey, thanks a lot", nil, 0)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if resp.Category == "" {
		t.Fatal("Category is empty, want a keyword-derived category")
	}
	if resp.Answer == "" {
		t.Error("canned answer is empty")
	}
}

func TestQuery_HighConfidenceSectionAnswer(t *testing.T) {
	hits := []domain.RetrievalHit{chunkHit("attention.pdf", "Methodology", 3, 0.85)}
	p := newPipeline("SCOPE: local\nREASON: asks about methods", hits, methodologyAnswer)

	resp, err := p.orchestrator.Query(context.Background(), "what is the methodology", nil, 0)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if resp.DetectedSection != "methodology" {
		t.Errorf("DetectedSection = %q, want methodology", resp.DetectedSection)
	}
	if resp.ContextScore < 0.7 || resp.ConfidenceLevel != domain.ConfidenceHigh {
		t.Errorf("context = %f (%s), want high", resp.ContextScore, resp.ConfidenceLevel)
	}
	if resp.ClarificationNeeded || resp.Warning != "" {
		t.Errorf("clarification = %v, warning = %q; want neither", resp.ClarificationNeeded, resp.Warning)
	}
	if len(resp.Citations) != 1 || resp.Confidence != 0.85 || !resp.FoundRelevantInfo {
		t.Errorf("grounded fields = %+v", resp)
	}

	p.orchestrator.Wait()
	update, ok := p.store.updates["attention.pdf"]
	if !ok || update.CitationCount != 1 || update.LastQueried.IsZero() {
		t.Errorf("stats update = %+v (recorded %v)", update, ok)
	}
}

func TestQuery_EmptyRetrievalAsksForClarification(t *testing.T) {
	p := newPipeline("", nil, "")

	resp, err := p.orchestrator.Query(context.Background(), "asdkj", nil, 0)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if !resp.ClarificationNeeded || resp.ClarificationPrompt == "" {
		t.Errorf("clarification = %v / %q", resp.ClarificationNeeded, resp.ClarificationPrompt)
	}
	if resp.ContextScore != 0 || resp.ConfidenceLevel != domain.ConfidenceVeryLow || resp.RetrievalCount != 0 {
		t.Errorf("score = %f (%s), retrieval = %d", resp.ContextScore, resp.ConfidenceLevel, resp.RetrievalCount)
	}
	if p.answer.Calls() != 0 {
		t.Error("answer backend called for an empty hit list")
	}
}

func TestQuery_GlobalSummaryIsUnfilteredAndUnboosted(t *testing.T) {
	hits := []domain.RetrievalHit{
		chunkHit("a.pdf", "Abstract", 1, 0.6),
		chunkHit("b.pdf", "Abstract", 1, 0.5),
	}
	p := newPipeline("", hits, `{"answer": "Both papers study attention.", "confidence": 0.7}`)

	resp, err := p.orchestrator.Query(context.Background(), "summarize all papers", nil, 0)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if resp.Scope != domain.ScopeGlobal || resp.Operation != "summary" {
		t.Errorf("scope/operation = %s/%s, want global/summary", resp.Scope, resp.Operation)
	}
	if !p.index.filter.Empty() {
		t.Errorf("global retrieval was filtered: %v", p.index.filter)
	}
	if p.index.k != 20 {
		t.Errorf("k = %d, want 20", p.index.k)
	}
	if resp.DetectedSection != "" {
		t.Errorf("DetectedSection = %q, want none for global queries", resp.DetectedSection)
	}
}

func TestQuery_PaperFilterForwarded(t *testing.T) {
	hits := []domain.RetrievalHit{chunkHit("a.pdf", "Results", 4, 0.8)}
	p := newPipeline("SCOPE: local", hits, `{"answer": "x", "confidence": 0.6}`)

	if _, err := p.orchestrator.Query(context.Background(), "what were the results", []string{"a.pdf"}, 3); err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if p.index.filter.Empty() || p.index.filter.Papers[0] != "a.pdf" {
		t.Errorf("filter = %v, want [a.pdf]", p.index.filter)
	}
	if p.index.k != 6 {
		t.Errorf("k = %d, want 2x limit", p.index.k)
	}
}

func TestQuery_FirstWarningWins(t *testing.T) {
	hits := []domain.RetrievalHit{
		chunkHit("a.pdf", "Content", 1, 0.2),
		chunkHit("a.pdf", "Content", 2, 0.2),
	}
	p := newPipeline("SCOPE: local", hits, `{"answer": "Not much here.", "confidence": 0.2, "found_relevant_info": false}`)

	resp, err := p.orchestrator.Query(context.Background(), "tell me something about the data", nil, 0)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if resp.HallucinationRisk <= scoring.WarningRiskThreshold {
		t.Fatalf("risk = %f, test needs a high-risk hit list", resp.HallucinationRisk)
	}
	if want := scoring.LowConfidenceWarning(resp.ContextScore); resp.Warning != want {
		t.Errorf("Warning = %q, want the low-confidence warning %q", resp.Warning, want)
	}
	if !resp.ClarificationNeeded {
		t.Error("low score with few hits should request clarification")
	}
	if resp.Answer != "Not much here." {
		t.Errorf("clarification must not replace the answer, got %q", resp.Answer)
	}
}

func TestQuery_MalformedAnswerDegrades(t *testing.T) {
	hits := []domain.RetrievalHit{
		chunkHit("a.pdf", "Results", 1, 0.9),
		chunkHit("b.pdf", "Results", 2, 0.8),
	}
	p := newPipeline("SCOPE: local", hits, "Plain text, no JSON.")

	resp, err := p.orchestrator.Query(context.Background(), "what were the results", nil, 0)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if resp.Confidence != grounding.FallbackConfidence || resp.FoundRelevantInfo {
		t.Errorf("confidence/found = %f/%v", resp.Confidence, resp.FoundRelevantInfo)
	}
	if len(resp.SourcesUsed) != 2 || len(resp.Citations) != 0 {
		t.Errorf("sources = %v, citations = %v", resp.SourcesUsed, resp.Citations)
	}
}

func TestQuery_UpstreamFailuresPropagate(t *testing.T) {
	p := newPipeline("SCOPE: local", nil, "")
	p.index.err = errors.New("connection refused")
	if _, err := p.orchestrator.Query(context.Background(), "what were the results", nil, 0); !errors.Is(err, domain.ErrUpstreamUnavailable) {
		t.Errorf("index failure err = %v, want ErrUpstreamUnavailable", err)
	}

	p = newPipeline("SCOPE: local", []domain.RetrievalHit{chunkHit("a.pdf", "Results", 1, 0.9)}, "")
	p.answer.err = errBackendDown
	if _, err := p.orchestrator.Query(context.Background(), "what were the results", nil, 0); !errors.Is(err, domain.ErrUpstreamUnavailable) {
		t.Errorf("answer failure err = %v, want ErrUpstreamUnavailable", err)
	}
}

func TestQuery_StatsFailureIsNotSurfaced(t *testing.T) {
	hits := []domain.RetrievalHit{chunkHit("attention.pdf", "Methodology", 3, 0.85)}
	p := newPipeline("SCOPE: local", hits, methodologyAnswer)
	p.store.err = errors.New("disk full")

	if _, err := p.orchestrator.Query(context.Background(), "what is the methodology", nil, 0); err != nil {
		t.Fatalf("Query() error = %v, stats failures must be swallowed", err)
	}
	p.orchestrator.Wait()
}

func TestQuery_EmptyQuestion(t *testing.T) {
	p := newPipeline("", nil, "")
	if _, err := p.orchestrator.Query(context.Background(), "   ", nil, 0); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("err = %v, want ErrInvalidRequest", err)
	}
}

func TestQuery_CitationsAlwaysReferenceHits(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	papers := []string{"a.pdf", "b.pdf"}
	sections := []string{"Abstract", "Results", "Conclusion"}

	for round := 0; round < 50; round++ {
		var hits []domain.RetrievalHit
		for i := 0; i < 1+rng.Intn(4); i++ {
			hits = append(hits, chunkHit(papers[rng.Intn(2)], sections[rng.Intn(3)], 1+rng.Intn(3), rng.Float64()))
		}
		var cited []map[string]any
		for i := 0; i < rng.Intn(6); i++ {
			cited = append(cited, map[string]any{
				"paper_title":     papers[rng.Intn(2)],
				"section":         sections[rng.Intn(3)],
				"page":            1 + rng.Intn(3),
				"relevance_score": rng.Float64(),
			})
		}
		body, _ := json.Marshal(map[string]any{"answer": fmt.Sprintf("round %d", round), "citations": cited, "confidence": 0.6})

		p := newPipeline("SCOPE: local", hits, string(body))
		resp, err := p.orchestrator.Query(context.Background(), "what does the evidence show about the results", nil, 5)
		if err != nil {
			t.Fatalf("round %d: Query() error = %v", round, err)
		}
		for _, c := range resp.Citations {
			found := false
			for _, h := range hits {
				if h.Chunk.SourcePaper == c.PaperTitle && h.Chunk.Section == c.Section && h.Chunk.Page == c.Page {
					found = true
				}
			}
			if !found {
				t.Fatalf("round %d: citation %+v not among hits", round, c)
			}
		}
		p.orchestrator.Wait()
	}
}
