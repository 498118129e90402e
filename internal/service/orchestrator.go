package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/liliang-cn/askpaper/internal/classifier"
	"github.com/liliang-cn/askpaper/internal/domain"
	"github.com/liliang-cn/askpaper/internal/grounding"
	"github.com/liliang-cn/askpaper/internal/retrieval"
	"github.com/liliang-cn/askpaper/internal/scoring"
	"go.uber.org/zap"
)

const (
	DefaultQueryLimit = 10
	statsTimeout      = 10 * time.Second
)

// QueryOrchestrator runs one question through classify, retrieve, score
// and ground, and assembles the response
type QueryOrchestrator struct {
	scope        *classifier.ScopeClassifier
	keywords     *classifier.SectionKeywordClassifier
	retriever    *retrieval.SectionAwareRetriever
	grounder     *grounding.AnswerGrounder
	store        domain.DocumentStore
	defaultLimit int
	logger       *zap.Logger

	// Pending stats updates
	wg sync.WaitGroup
}

// NewQueryOrchestrator creates an orchestrator. store may be nil, in which
// case paper statistics are not updated.
func NewQueryOrchestrator(
	scope *classifier.ScopeClassifier,
	retriever *retrieval.SectionAwareRetriever,
	grounder *grounding.AnswerGrounder,
	store domain.DocumentStore,
	defaultLimit int,
	logger *zap.Logger,
) *QueryOrchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaultLimit <= 0 {
		defaultLimit = DefaultQueryLimit
	}
	return &QueryOrchestrator{
		scope:        scope,
		keywords:     classifier.NewSectionKeywordClassifier(),
		retriever:    retriever,
		grounder:     grounder,
		store:        store,
		defaultLimit: defaultLimit,
		logger:       logger,
	}
}

// Query answers question. Retrieval and grounding failures are returned
// wrapped in domain.ErrUpstreamUnavailable; classification failures never
// are.
func (o *QueryOrchestrator) Query(ctx context.Context, question string, paperFilter []string, limit int) (*domain.QueryResponse, error) {
	start := time.Now()
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is required", domain.ErrInvalidRequest)
	}
	if limit <= 0 {
		limit = o.defaultLimit
	}
	filter := &domain.PaperFilter{Papers: paperFilter}

	// CLASSIFY
	cls := o.scope.Classify(ctx, question)
	kw := o.keywords.Classify(question)

	if cls.Scope == domain.ScopeOutOfContext {
		category := cls.Category
		if category == "" {
			category = kw.OutOfContextCategory
		}
		resp := &domain.QueryResponse{
			Answer:          classifier.CategoryResponse(category),
			Citations:       []domain.Citation{},
			SourcesUsed:     []string{},
			Confidence:      1.0,
			Scope:           domain.ScopeOutOfContext,
			Category:        category,
			ContextScore:    1.0,
			ConfidenceLevel: domain.ConfidenceHigh,
			RiskLevel:       domain.RiskLow,
		}
		return o.finish(resp, start), nil
	}

	// RETRIEVE
	var (
		hits    []domain.RetrievalHit
		section string
		err     error
	)
	switch {
	case cls.Scope == domain.ScopeGlobal:
		hits, err = o.retriever.RetrieveGlobal(ctx, question, filter, limit)
	case kw.HasSection():
		section = kw.DetectedSection
		hits, err = o.retriever.RetrieveSection(ctx, question, section, filter, limit)
	default:
		hits, err = o.retriever.Search(ctx, question, filter, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("retrieval failed: %w", err)
	}

	// SCORE
	assessment := scoring.Assess(hits)
	resp := &domain.QueryResponse{
		Citations:         []domain.Citation{},
		SourcesUsed:       []string{},
		Scope:             cls.Scope,
		Operation:         cls.Operation,
		DetectedSection:   section,
		ContextScore:      assessment.ContextScore,
		ConfidenceLevel:   assessment.ConfidenceLevel,
		HallucinationRisk: assessment.HallucinationRisk,
		RiskLevel:         assessment.RiskLevel,
		RetrievalCount:    len(hits),
	}

	if len(hits) == 0 {
		prompt := clarificationFor(section, assessment.ContextScore)
		resp.Answer = prompt
		resp.ClarificationNeeded = true
		resp.ClarificationPrompt = prompt
		resp.Warning = scoring.LowConfidenceWarning(0)
		return o.finish(resp, start), nil
	}

	resp.Warning = scoring.LowConfidenceWarning(assessment.ContextScore)
	if assessment.ConfidenceLevel != domain.ConfidenceHigh &&
		scoring.ShouldAskForClarification(assessment.ContextScore, len(question), len(hits)) {
		resp.ClarificationNeeded = true
		resp.ClarificationPrompt = clarificationFor(section, assessment.ContextScore)
	}

	// GROUND
	answer, err := o.grounder.Ground(ctx, question, hits)
	if err != nil {
		return nil, fmt.Errorf("grounding failed: %w", err)
	}
	if assessment.HallucinationRisk > scoring.WarningRiskThreshold && resp.Warning == "" {
		resp.Warning = scoring.HallucinationPreventionMessage(assessment.ContextScore)
	}

	// RESPOND
	resp.Answer = answer.Answer
	resp.Citations = answer.Citations
	resp.SourcesUsed = answer.SourcesUsed
	resp.Confidence = answer.Confidence
	resp.FoundRelevantInfo = answer.FoundRelevantInfo

	o.updateStats(ctx, answer)
	return o.finish(resp, start), nil
}

// Wait blocks until pending statistics updates are done
func (o *QueryOrchestrator) Wait() {
	o.wg.Wait()
}

func (o *QueryOrchestrator) finish(resp *domain.QueryResponse, start time.Time) *domain.QueryResponse {
	resp.ProcessingTime = time.Since(start).Seconds()
	o.logger.Info("Query answered",
		zap.String("scope", string(resp.Scope)),
		zap.String("section", resp.DetectedSection),
		zap.Int("hits", resp.RetrievalCount),
		zap.Float64("context_score", resp.ContextScore),
		zap.Bool("clarification", resp.ClarificationNeeded),
		zap.Float64("seconds", resp.ProcessingTime),
	)
	return resp
}

// updateStats records usage for every paper in the answer without holding
// up the response
func (o *QueryOrchestrator) updateStats(ctx context.Context, answer domain.GroundedAnswer) {
	if o.store == nil || len(answer.SourcesUsed) == 0 {
		return
	}

	counts := make(map[string]int, len(answer.SourcesUsed))
	for _, c := range answer.Citations {
		counts[c.PaperTitle]++
	}
	sources := append([]string(nil), answer.SourcesUsed...)
	now := time.Now()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), statsTimeout)
		defer cancel()

		for _, paper := range sources {
			update := domain.PaperStatsUpdate{CitationCount: counts[paper], LastQueried: now}
			if err := o.store.UpdatePaperStats(ctx, paper, update); err != nil {
				o.logger.Warn("Failed to update paper stats", zap.String("paper", paper), zap.Error(err))
			}
		}
	}()
}

func clarificationFor(section string, score float64) string {
	switch {
	case section != "":
		return classifier.SectionClarificationPrompt(section)
	case score < scoring.LowConfidenceThreshold:
		return classifier.ClarificationPrompt(classifier.IssueLowContext)
	default:
		return classifier.ClarificationPrompt(classifier.IssueAmbiguous)
	}
}
