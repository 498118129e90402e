package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/liliang-cn/askpaper/internal/domain"
)

func TestResearchRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	papers := NewPaperRepository(db)
	repo := NewResearchRepository(db)
	createPaper(t, papers, "b.pdf", 1)
	createPaper(t, papers, "a.pdf", 1)

	research := &domain.Research{
		Name:   "  Transformers  ",
		Papers: []string{"b.pdf", "a.pdf", "b.pdf", ""},
		Tags:   []string{"nlp", "nlp"},
	}
	if err := repo.Create(ctx, research); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if research.ID == "" {
		t.Fatal("Create() did not assign an ID")
	}

	got, err := repo.Get(ctx, research.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Name != "Transformers" || got.IsArchived {
		t.Errorf("Get() = %+v", got)
	}
	if len(got.Papers) != 2 || got.Papers[0] != "b.pdf" || got.Papers[1] != "a.pdf" {
		t.Errorf("Papers = %v, want [b.pdf a.pdf]", got.Papers)
	}
	if len(got.Tags) != 1 || got.Tags[0] != "nlp" {
		t.Errorf("Tags = %v, want [nlp]", got.Tags)
	}
}

func TestResearchRepository_UnknownPaper(t *testing.T) {
	ctx := context.Background()
	repo := NewResearchRepository(newTestDB(t))

	err := repo.Create(ctx, &domain.Research{Name: "r", Papers: []string{"missing.pdf"}})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Create() err = %v, want ErrNotFound", err)
	}
	list, _ := repo.List(ctx, true)
	if len(list) != 0 {
		t.Errorf("List() = %+v, want nothing after a failed create", list)
	}

	if err := repo.Create(ctx, &domain.Research{Name: "   "}); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("Create(blank name) err = %v, want ErrInvalidRequest", err)
	}
}

func TestResearchRepository_ListArchived(t *testing.T) {
	ctx := context.Background()
	repo := NewResearchRepository(newTestDB(t))

	active := &domain.Research{Name: "active"}
	archived := &domain.Research{Name: "archived"}
	for _, r := range []*domain.Research{active, archived} {
		if err := repo.Create(ctx, r); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}
	archived.IsArchived = true
	if err := repo.Update(ctx, archived); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	visible, _ := repo.List(ctx, false)
	if len(visible) != 1 || visible[0].ID != active.ID {
		t.Errorf("List(false) = %+v", visible)
	}
	all, _ := repo.List(ctx, true)
	if len(all) != 2 {
		t.Errorf("List(true) returned %d topics, want 2", len(all))
	}
}

func TestResearchRepository_AddRemovePaper(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	papers := NewPaperRepository(db)
	repo := NewResearchRepository(db)
	createPaper(t, papers, "a.pdf", 1)
	createPaper(t, papers, "b.pdf", 1)

	research := &domain.Research{Name: "r", Papers: []string{"a.pdf"}}
	if err := repo.Create(ctx, research); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := repo.AddPaper(ctx, research.ID, "b.pdf"); err != nil {
		t.Fatalf("AddPaper() error = %v", err)
	}
	if err := repo.AddPaper(ctx, research.ID, "b.pdf"); err != nil {
		t.Fatalf("AddPaper() twice error = %v", err)
	}
	got, _ := repo.Get(ctx, research.ID)
	if len(got.Papers) != 2 || got.Papers[1] != "b.pdf" {
		t.Errorf("Papers after add = %v", got.Papers)
	}

	tests := []struct {
		name     string
		id, file string
	}{
		{"unknown research", "missing", "a.pdf"},
		{"unknown paper", research.ID, "missing.pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := repo.AddPaper(ctx, tt.id, tt.file); !errors.Is(err, domain.ErrNotFound) {
				t.Errorf("AddPaper() err = %v, want ErrNotFound", err)
			}
		})
	}

	if err := repo.RemovePaper(ctx, research.ID, "a.pdf"); err != nil {
		t.Fatalf("RemovePaper() error = %v", err)
	}
	if err := repo.RemovePaper(ctx, research.ID, "a.pdf"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("RemovePaper() twice err = %v, want ErrNotFound", err)
	}
	got, _ = repo.Get(ctx, research.ID)
	if len(got.Papers) != 1 || got.Papers[0] != "b.pdf" {
		t.Errorf("Papers after remove = %v", got.Papers)
	}
}

func TestResearchRepository_PaperDeleteCascades(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	papers := NewPaperRepository(db)
	repo := NewResearchRepository(db)
	paper := createPaper(t, papers, "gone.pdf", 1)
	createPaper(t, papers, "kept.pdf", 1)

	research := &domain.Research{Name: "r", Papers: []string{"gone.pdf", "kept.pdf"}}
	if err := repo.Create(ctx, research); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := papers.Delete(ctx, paper.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	got, _ := repo.Get(ctx, research.ID)
	if len(got.Papers) != 1 || got.Papers[0] != "kept.pdf" {
		t.Errorf("Papers = %v, want [kept.pdf]", got.Papers)
	}
}

func TestResearchRepository_DeleteRemovesHistory(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewResearchRepository(db)
	history := NewHistoryRepository(db)

	research := &domain.Research{Name: "r"}
	if err := repo.Create(ctx, research); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	scoped := &domain.HistoryEntry{ResearchID: research.ID, Question: "scoped", Success: true}
	unscoped := &domain.HistoryEntry{Question: "unscoped", Success: true}
	for _, e := range []*domain.HistoryEntry{scoped, unscoped} {
		if err := history.Create(ctx, e); err != nil {
			t.Fatalf("history.Create() error = %v", err)
		}
	}

	if err := repo.Delete(ctx, research.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := repo.Get(ctx, research.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Get() after delete err = %v, want ErrNotFound", err)
	}
	if _, err := history.Get(ctx, scoped.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("scoped history entry survived delete: %v", err)
	}
	if _, err := history.Get(ctx, unscoped.ID); err != nil {
		t.Errorf("unscoped history entry err = %v", err)
	}
	if err := repo.Delete(ctx, research.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Delete() twice err = %v, want ErrNotFound", err)
	}
}

func TestHistoryRepository_ByResearch(t *testing.T) {
	ctx := context.Background()
	repo := NewHistoryRepository(newTestDB(t))

	entries := []domain.HistoryEntry{
		{ResearchID: "r1", Question: "q1", Success: true, Confidence: 0.8, SourcesUsed: []string{"a.pdf"}},
		{ResearchID: "r1", Question: "q2", Success: false},
		{ResearchID: "r2", Question: "q3", Success: true, SourcesUsed: []string{"b.pdf"}},
		{Question: "q4", Success: true},
	}
	for i := range entries {
		if err := repo.Create(ctx, &entries[i]); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	list, err := repo.ListByResearch(ctx, "r1", 10, 0)
	if err != nil {
		t.Fatalf("ListByResearch() error = %v", err)
	}
	if len(list) != 2 || list[0].ResearchID != "r1" || list[1].ResearchID != "r1" {
		t.Errorf("ListByResearch(r1) = %+v", list)
	}

	stats, err := repo.StatsByResearch(ctx, "r1")
	if err != nil {
		t.Fatalf("StatsByResearch() error = %v", err)
	}
	if stats.TotalQueries != 2 || stats.SuccessfulQueries != 1 {
		t.Errorf("StatsByResearch(r1) = %+v", stats)
	}
	if len(stats.MostReferencedPapers) != 1 || stats.MostReferencedPapers[0].Paper != "a.pdf" {
		t.Errorf("MostReferencedPapers = %+v, want only a.pdf", stats.MostReferencedPapers)
	}

	n, err := repo.DeleteByResearch(ctx, "r1")
	if err != nil || n != 2 {
		t.Fatalf("DeleteByResearch() = %d, %v, want 2", n, err)
	}
	total, _ := repo.Count(ctx)
	if total != 2 {
		t.Errorf("Count() = %d after delete, want 2", total)
	}
	all, _ := repo.List(ctx, 10, 0)
	for _, e := range all {
		if e.Question == "q4" && e.ResearchID != "" {
			t.Errorf("unscoped entry read back with ResearchID %q", e.ResearchID)
		}
	}
}
