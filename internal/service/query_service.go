package service

import (
	"context"
	"fmt"
	"time"

	"github.com/liliang-cn/askpaper/internal/domain"
	"github.com/liliang-cn/askpaper/internal/repository"
	"go.uber.org/zap"
)

// QueryService answers questions and records every attempt in the history
type QueryService struct {
	orchestrator *QueryOrchestrator
	papers       domain.DocumentStore
	researchRepo *repository.ResearchRepository
	historyRepo  *repository.HistoryRepository
	logger       *zap.Logger
}

// NewQueryService creates a new query service. historyRepo may be nil.
// Research-scoped queries need both papers and researchRepo.
func NewQueryService(
	orchestrator *QueryOrchestrator,
	papers domain.DocumentStore,
	researchRepo *repository.ResearchRepository,
	historyRepo *repository.HistoryRepository,
	logger *zap.Logger,
) *QueryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryService{
		orchestrator: orchestrator,
		papers:       papers,
		researchRepo: researchRepo,
		historyRepo:  historyRepo,
		logger:       logger,
	}
}

// Query runs the pipeline. Failing to record history never fails the query.
func (s *QueryService) Query(ctx context.Context, req *domain.QueryRequest) (*domain.QueryResponse, error) {
	start := time.Now()
	filter, err := s.resolveFilter(ctx, req)
	if err != nil {
		return nil, err
	}
	resp, err := s.orchestrator.Query(ctx, req.Question, filter, req.Limit)

	entry := &domain.HistoryEntry{
		ResearchID:   req.ResearchID,
		Question:     req.Question,
		ResponseTime: time.Since(start).Seconds(),
		Success:      err == nil,
		CreatedAt:    start,
	}
	if err != nil {
		entry.ErrorMessage = err.Error()
	} else {
		entry.Answer = resp.Answer
		entry.Scope = resp.Scope
		entry.Operation = resp.Operation
		entry.DetectedSection = resp.DetectedSection
		entry.Confidence = resp.Confidence
		entry.ContextScore = resp.ContextScore
		entry.SourcesUsed = resp.SourcesUsed
		entry.Citations = resp.Citations
	}
	s.record(ctx, entry)

	return resp, err
}

// resolveFilter narrows the paper filter to the papers of req.ResearchID.
// An explicit paper filter is intersected with the research papers.
func (s *QueryService) resolveFilter(ctx context.Context, req *domain.QueryRequest) ([]string, error) {
	if req.ResearchID == "" {
		return req.PaperFilter, nil
	}
	if s.researchRepo == nil || s.papers == nil {
		return nil, fmt.Errorf("%w: research topics are not available", domain.ErrInvalidRequest)
	}

	research, err := s.researchRepo.Get(ctx, req.ResearchID)
	if err != nil {
		return nil, err
	}

	var papers []string
	if len(research.Papers) > 0 {
		papers, err = s.papers.GetPaperIDs(ctx, &domain.PaperFilter{Papers: research.Papers})
		if err != nil {
			return nil, err
		}
	}
	if len(req.PaperFilter) > 0 {
		wanted := make(map[string]bool, len(req.PaperFilter))
		for _, p := range req.PaperFilter {
			wanted[p] = true
		}
		kept := papers[:0]
		for _, p := range papers {
			if wanted[p] {
				kept = append(kept, p)
			}
		}
		papers = kept
	}
	if len(papers) == 0 {
		return nil, fmt.Errorf("%w: research topic has no papers", domain.ErrInvalidRequest)
	}

	s.logger.Debug("Query scoped to research",
		zap.String("research_id", research.ID),
		zap.Strings("papers", papers),
	)
	return papers, nil
}

func (s *QueryService) record(ctx context.Context, entry *domain.HistoryEntry) {
	if s.historyRepo == nil {
		return
	}
	if err := s.historyRepo.Create(context.WithoutCancel(ctx), entry); err != nil {
		s.logger.Warn("Failed to record query history", zap.Error(err))
	}
}
