package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/liliang-cn/askpaper/internal/classifier"
	"github.com/liliang-cn/askpaper/internal/domain"
	"github.com/liliang-cn/askpaper/internal/grounding"
	"github.com/liliang-cn/askpaper/internal/repository"
	"github.com/liliang-cn/askpaper/internal/retrieval"
)

var errBackendDown = errors.New("backend down")

type fakeCompleter struct {
	mu       sync.Mutex
	response string
	err      error
	calls    int
}

func (f *fakeCompleter) Complete(ctx context.Context, req domain.CompletionRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.response, f.err
}

func (f *fakeCompleter) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeEmbedder returns a 3-dimensional vector derived from the text length
type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{float32(len(text)%7 + 1), 1, 0}, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := f.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

type fakeIndex struct {
	mu     sync.Mutex
	hits   []domain.RetrievalHit
	err    error
	calls  int
	k      int
	filter *domain.PaperFilter
}

func (f *fakeIndex) Upsert(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) error {
	return f.err
}

func (f *fakeIndex) Search(ctx context.Context, vector []float32, filter *domain.PaperFilter, k int) ([]domain.RetrievalHit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.k = k
	f.filter = filter
	if f.err != nil {
		return nil, f.err
	}
	out := append([]domain.RetrievalHit(nil), f.hits...)
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func (f *fakeIndex) DeletePaper(ctx context.Context, fileName string) error { return f.err }

func (f *fakeIndex) Close() error { return nil }

type fakeStore struct {
	mu      sync.Mutex
	updates map[string]domain.PaperStatsUpdate
	err     error
}

func (f *fakeStore) GetPaperIDs(ctx context.Context, filter *domain.PaperFilter) ([]string, error) {
	return nil, nil
}

func (f *fakeStore) UpdatePaperStats(ctx context.Context, fileName string, update domain.PaperStatsUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updates == nil {
		f.updates = map[string]domain.PaperStatsUpdate{}
	}
	f.updates[fileName] = update
	return f.err
}

type pipeline struct {
	orchestrator *QueryOrchestrator
	scope        *fakeCompleter
	answer       *fakeCompleter
	index        *fakeIndex
	store        *fakeStore
}

// newPipeline wires a real orchestrator over fake backends. An empty
// scopeResponse makes the scope backend fail, forcing the keyword path.
func newPipeline(scopeResponse string, hits []domain.RetrievalHit, answer string) *pipeline {
	p := &pipeline{
		scope:  &fakeCompleter{response: scopeResponse},
		answer: &fakeCompleter{response: answer},
		index:  &fakeIndex{hits: hits},
		store:  &fakeStore{},
	}
	if scopeResponse == "" {
		p.scope.err = errBackendDown
	}

	scope := classifier.NewScopeClassifier(p.scope, time.Second, nil)
	retriever := retrieval.NewSectionAwareRetriever(&fakeEmbedder{}, p.index, 20, nil)
	grounder := grounding.NewAnswerGrounder(p.answer, time.Second, 0.4, nil)
	p.orchestrator = NewQueryOrchestrator(scope, retriever, grounder, p.store, 10, nil)
	return p
}

func chunkHit(paper, section string, page int, score float64) domain.RetrievalHit {
	return domain.RetrievalHit{
		Chunk: domain.Chunk{
			VectorID:    paper + section,
			Text:        "relevant text from " + section,
			Section:     section,
			Page:        page,
			SourcePaper: paper,
		},
		Score: score,
	}
}

type testRepos struct {
	papers     *repository.PaperRepository
	researches *repository.ResearchRepository
	history    *repository.HistoryRepository
}

func newTestRepos(t *testing.T) testRepos {
	t.Helper()
	db, err := repository.NewDB(filepath.Join(t.TempDir(), "askpaper.db"))
	if err != nil {
		t.Fatalf("NewDB() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return testRepos{
		papers:     repository.NewPaperRepository(db),
		researches: repository.NewResearchRepository(db),
		history:    repository.NewHistoryRepository(db),
	}
}

func (r testRepos) admin(index domain.VectorIndex) *AdminService {
	return NewAdminService(r.papers, r.researches, r.history, index, nil)
}
