package service

import (
	"context"
	"fmt"

	"github.com/liliang-cn/askpaper/internal/domain"
	"github.com/liliang-cn/askpaper/internal/repository"
	"go.uber.org/zap"
)

// AdminService handles admin operations
type AdminService struct {
	paperRepo    *repository.PaperRepository
	researchRepo *repository.ResearchRepository
	historyRepo  *repository.HistoryRepository
	index        domain.VectorIndex
	logger       *zap.Logger
}

// NewAdminService creates a new admin service
func NewAdminService(
	paperRepo *repository.PaperRepository,
	researchRepo *repository.ResearchRepository,
	historyRepo *repository.HistoryRepository,
	index domain.VectorIndex,
	logger *zap.Logger,
) *AdminService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminService{
		paperRepo:    paperRepo,
		researchRepo: researchRepo,
		historyRepo:  historyRepo,
		index:        index,
		logger:       logger,
	}
}

// Paper operations

func (s *AdminService) ListPapers(ctx context.Context) ([]*domain.Paper, error) {
	return s.paperRepo.List(ctx)
}

func (s *AdminService) GetPaper(ctx context.Context, id string) (*domain.Paper, error) {
	return s.paperRepo.Get(ctx, id)
}

// DeletePaper removes the paper's vectors, then the paper and its chunks
func (s *AdminService) DeletePaper(ctx context.Context, id string) error {
	paper, err := s.paperRepo.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.index.DeletePaper(ctx, paper.FileName); err != nil {
		return fmt.Errorf("%w: deleting vectors: %v", domain.ErrUpstreamUnavailable, err)
	}
	if err := s.paperRepo.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("Paper deleted", zap.String("id", id), zap.String("paper", paper.FileName))
	return nil
}

// Research operations

func (s *AdminService) CreateResearch(ctx context.Context, req *domain.CreateResearchRequest) (*domain.Research, error) {
	research := &domain.Research{
		Name:        req.Name,
		Description: req.Description,
		Papers:      req.Papers,
		Tags:        req.Tags,
	}
	if err := s.researchRepo.Create(ctx, research); err != nil {
		return nil, err
	}

	s.logger.Info("Research created", zap.String("id", research.ID), zap.String("name", research.Name))
	return research, nil
}

func (s *AdminService) ListResearches(ctx context.Context, includeArchived bool) ([]*domain.Research, error) {
	return s.researchRepo.List(ctx, includeArchived)
}

func (s *AdminService) GetResearch(ctx context.Context, id string) (*domain.Research, error) {
	return s.researchRepo.Get(ctx, id)
}

func (s *AdminService) UpdateResearch(ctx context.Context, id string, req *domain.UpdateResearchRequest) (*domain.Research, error) {
	research, err := s.researchRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		research.Name = *req.Name
	}
	if req.Description != nil {
		research.Description = *req.Description
	}
	if req.Papers != nil {
		research.Papers = *req.Papers
	}
	if req.Tags != nil {
		research.Tags = *req.Tags
	}
	if req.IsArchived != nil {
		research.IsArchived = *req.IsArchived
	}

	if err := s.researchRepo.Update(ctx, research); err != nil {
		return nil, err
	}
	return research, nil
}

func (s *AdminService) AddPaperToResearch(ctx context.Context, id, fileName string) (*domain.Research, error) {
	if err := s.researchRepo.AddPaper(ctx, id, fileName); err != nil {
		return nil, err
	}
	return s.researchRepo.Get(ctx, id)
}

func (s *AdminService) RemovePaperFromResearch(ctx context.Context, id, fileName string) (*domain.Research, error) {
	if err := s.researchRepo.RemovePaper(ctx, id, fileName); err != nil {
		return nil, err
	}
	return s.researchRepo.Get(ctx, id)
}

// DeleteResearch deletes the topic and its query history. Papers stay.
func (s *AdminService) DeleteResearch(ctx context.Context, id string) error {
	if err := s.researchRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Research deleted", zap.String("id", id))
	return nil
}

func (s *AdminService) ResearchHistory(ctx context.Context, id string, limit, offset int) ([]*domain.HistoryEntry, error) {
	if _, err := s.researchRepo.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.historyRepo.ListByResearch(ctx, id, limit, offset)
}

func (s *AdminService) ResearchHistoryStats(ctx context.Context, id string) (*domain.HistoryStats, error) {
	if _, err := s.researchRepo.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.historyRepo.StatsByResearch(ctx, id)
}

// DeleteResearchHistory clears the topic's history and returns how many
// entries were removed
func (s *AdminService) DeleteResearchHistory(ctx context.Context, id string) (int, error) {
	if _, err := s.researchRepo.Get(ctx, id); err != nil {
		return 0, err
	}
	return s.historyRepo.DeleteByResearch(ctx, id)
}

// History operations

func (s *AdminService) ListHistory(ctx context.Context, limit, offset int) ([]*domain.HistoryEntry, error) {
	return s.historyRepo.List(ctx, limit, offset)
}

func (s *AdminService) HistoryStats(ctx context.Context) (*domain.HistoryStats, error) {
	return s.historyRepo.Stats(ctx)
}

func (s *AdminService) RateHistory(ctx context.Context, id string, rating int) error {
	return s.historyRepo.Rate(ctx, id, rating)
}

// Stats

func (s *AdminService) GetStats(ctx context.Context) (*domain.Stats, error) {
	papers, err := s.paperRepo.Count(ctx)
	if err != nil {
		return nil, err
	}
	chunks, err := s.paperRepo.CountChunks(ctx)
	if err != nil {
		return nil, err
	}
	researches, err := s.researchRepo.Count(ctx)
	if err != nil {
		return nil, err
	}
	queries, err := s.historyRepo.Count(ctx)
	if err != nil {
		return nil, err
	}

	return &domain.Stats{
		TotalPapers:     papers,
		TotalChunks:     chunks,
		TotalResearches: researches,
		TotalQueries:    queries,
	}, nil
}
