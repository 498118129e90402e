package service

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/liliang-cn/askpaper/internal/domain"
)

func TestQueryService_RecordsHistory(t *testing.T) {
	ctx := context.Background()
	repos := newTestRepos(t)
	hits := []domain.RetrievalHit{chunkHit("attention.pdf", "Methodology", 3, 0.85)}
	p := newPipeline("SCOPE: local", hits, methodologyAnswer)
	svc := NewQueryService(p.orchestrator, repos.papers, repos.researches, repos.history, nil)
	admin := repos.admin(&fakeIndex{})

	resp, err := svc.Query(ctx, &domain.QueryRequest{Question: "what is the methodology"})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	p.orchestrator.Wait()

	entries, err := admin.ListHistory(ctx, 10, 0)
	if err != nil {
		t.Fatalf("ListHistory() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d history entries, want 1", len(entries))
	}
	e := entries[0]
	if !e.Success || e.Answer != resp.Answer || e.DetectedSection != "methodology" || len(e.Citations) != 1 {
		t.Errorf("history entry = %+v", e)
	}

	if err := admin.RateHistory(ctx, e.ID, 5); err != nil {
		t.Fatalf("RateHistory() error = %v", err)
	}
	stats, err := admin.HistoryStats(ctx)
	if err != nil {
		t.Fatalf("HistoryStats() error = %v", err)
	}
	if stats.TotalQueries != 1 || len(stats.MostReferencedPapers) != 1 || stats.MostReferencedPapers[0].Paper != "attention.pdf" {
		t.Errorf("stats = %+v", stats)
	}
}

func TestQueryService_RecordsFailures(t *testing.T) {
	ctx := context.Background()
	repos := newTestRepos(t)
	p := newPipeline("SCOPE: local", nil, "")
	p.index.err = errors.New("qdrant down")
	svc := NewQueryService(p.orchestrator, repos.papers, repos.researches, repos.history, nil)

	if _, err := svc.Query(ctx, &domain.QueryRequest{Question: "what were the results"}); !errors.Is(err, domain.ErrUpstreamUnavailable) {
		t.Fatalf("err = %v, want ErrUpstreamUnavailable", err)
	}

	entries, _ := repos.history.List(ctx, 10, 0)
	if len(entries) != 1 || entries[0].Success || entries[0].ErrorMessage == "" {
		t.Errorf("failure not recorded: %+v", entries)
	}
}

func TestQueryService_NilHistory(t *testing.T) {
	p := newPipeline("", nil, "")
	svc := NewQueryService(p.orchestrator, nil, nil, nil, nil)
	if _, err := svc.Query(context.Background(), &domain.QueryRequest{Question: "hello"}); err != nil {
		t.Errorf("Query() error = %v", err)
	}
}

func TestQueryService_ResearchScope(t *testing.T) {
	ctx := context.Background()
	repos := newTestRepos(t)
	for _, name := range []string{"a.pdf", "b.pdf", "c.pdf"} {
		if err := repos.papers.Create(ctx, &domain.Paper{FileName: name}, nil); err != nil {
			t.Fatalf("Create(%s) error = %v", name, err)
		}
	}
	admin := repos.admin(&fakeIndex{})
	research, err := admin.CreateResearch(ctx, &domain.CreateResearchRequest{Name: "r", Papers: []string{"b.pdf", "a.pdf"}})
	if err != nil {
		t.Fatalf("CreateResearch() error = %v", err)
	}
	empty, err := admin.CreateResearch(ctx, &domain.CreateResearchRequest{Name: "empty"})
	if err != nil {
		t.Fatalf("CreateResearch() error = %v", err)
	}

	tests := []struct {
		name        string
		req         domain.QueryRequest
		wantFilter  []string
		wantErr     error
		wantHistory int
	}{
		{
			name:        "research papers",
			req:         domain.QueryRequest{Question: "what were the results", ResearchID: research.ID},
			wantFilter:  []string{"a.pdf", "b.pdf"},
			wantHistory: 1,
		},
		{
			name:        "intersected with paper filter",
			req:         domain.QueryRequest{Question: "what were the results", ResearchID: research.ID, PaperFilter: []string{"b.pdf", "c.pdf"}},
			wantFilter:  []string{"b.pdf"},
			wantHistory: 2,
		},
		{
			name:    "disjoint paper filter",
			req:     domain.QueryRequest{Question: "what were the results", ResearchID: research.ID, PaperFilter: []string{"c.pdf"}},
			wantErr: domain.ErrInvalidRequest,
		},
		{
			name:    "research without papers",
			req:     domain.QueryRequest{Question: "what were the results", ResearchID: empty.ID},
			wantErr: domain.ErrInvalidRequest,
		},
		{
			name:    "unknown research",
			req:     domain.QueryRequest{Question: "what were the results", ResearchID: "missing"},
			wantErr: domain.ErrNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hits := []domain.RetrievalHit{chunkHit("b.pdf", "Results", 4, 0.8)}
			p := newPipeline("SCOPE: local", hits, methodologyAnswer)
			svc := NewQueryService(p.orchestrator, repos.papers, repos.researches, repos.history, nil)

			_, err := svc.Query(ctx, &tt.req)
			p.orchestrator.Wait()
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				if p.index.calls != 0 {
					t.Errorf("index searched %d times for a rejected query", p.index.calls)
				}
				return
			}
			if err != nil {
				t.Fatalf("Query() error = %v", err)
			}
			if p.index.filter == nil || !slices.Equal(p.index.filter.Papers, tt.wantFilter) {
				t.Errorf("search filter = %+v, want %v", p.index.filter, tt.wantFilter)
			}

			entries, err := admin.ResearchHistory(ctx, research.ID, 10, 0)
			if err != nil {
				t.Fatalf("ResearchHistory() error = %v", err)
			}
			if len(entries) != tt.wantHistory || entries[0].ResearchID != research.ID {
				t.Errorf("research history = %+v, want %d entries", entries, tt.wantHistory)
			}
		})
	}

	stats, err := admin.ResearchHistoryStats(ctx, research.ID)
	if err != nil || stats.TotalQueries != 2 {
		t.Errorf("ResearchHistoryStats() = %+v, %v", stats, err)
	}
	n, err := admin.DeleteResearchHistory(ctx, research.ID)
	if err != nil || n != 2 {
		t.Errorf("DeleteResearchHistory() = %d, %v, want 2", n, err)
	}
}

func TestQueryService_ResearchUnavailable(t *testing.T) {
	p := newPipeline("", nil, "")
	svc := NewQueryService(p.orchestrator, nil, nil, nil, nil)
	_, err := svc.Query(context.Background(), &domain.QueryRequest{Question: "hello", ResearchID: "r"})
	if !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("err = %v, want ErrInvalidRequest", err)
	}
}
