package main

import (
	"context"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/liliang-cn/askpaper/internal/classifier"
	"github.com/liliang-cn/askpaper/internal/config"
	"github.com/liliang-cn/askpaper/internal/domain"
	"github.com/liliang-cn/askpaper/internal/grounding"
	"github.com/liliang-cn/askpaper/internal/llm"
	"github.com/liliang-cn/askpaper/internal/repository"
	"github.com/liliang-cn/askpaper/internal/retrieval"
	"github.com/liliang-cn/askpaper/internal/service"
	"github.com/liliang-cn/askpaper/internal/vectorstore"
	"go.uber.org/zap"
)

// app holds the wired services shared by every command
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *repository.DB
	index  domain.VectorIndex

	orchestrator *service.QueryOrchestrator
	query        *service.QueryService
	ingest       *service.IngestService
	admin        *service.AdminService
}

func newApp(ctx context.Context) (*app, error) {
	// A missing .env is fine
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logger, err := newLogger(cfg.Log.Development)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	db, err := repository.NewDB(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("initializing database: %w", err)
	}

	index, err := newVectorIndex(ctx, cfg, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	paperRepo := repository.NewPaperRepository(db)
	historyRepo := repository.NewHistoryRepository(db)
	researchRepo := repository.NewResearchRepository(db)

	client := llm.NewClient(llm.ClientConfig{
		BaseURL:        cfg.LLM.BaseURL,
		APIKey:         cfg.LLM.APIKey,
		ChatModel:      cfg.LLM.ChatModel,
		EmbeddingModel: cfg.LLM.EmbeddingModel,
		MaxRetries:     cfg.LLM.MaxRetries,
		RetryDelay:     cfg.LLM.RetryDelay,
	}, logger)

	// The classifier gets one attempt so a slow backend falls back to
	// keyword rules within its timeout.
	scope := classifier.NewScopeClassifier(client.WithMaxRetries(0), cfg.LLM.ClassifierTimeout, logger)
	retriever := retrieval.NewSectionAwareRetriever(client, index, cfg.Retrieval.GlobalCap, logger)
	grounder := grounding.NewAnswerGrounder(client, cfg.LLM.AnswerTimeout, cfg.Grounding.FoundInfoThreshold, logger)
	orchestrator := service.NewQueryOrchestrator(scope, retriever, grounder, paperRepo, cfg.Retrieval.DefaultLimit, logger)

	return &app{
		cfg:          cfg,
		logger:       logger,
		db:           db,
		index:        index,
		orchestrator: orchestrator,
		query:        service.NewQueryService(orchestrator, paperRepo, researchRepo, historyRepo, logger),
		ingest:       service.NewIngestService(paperRepo, client, index, logger),
		admin:        service.NewAdminService(paperRepo, researchRepo, historyRepo, index, logger),
	}, nil
}

func newLogger(development bool) (*zap.Logger, error) {
	if development {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func newVectorIndex(ctx context.Context, cfg *config.Config, logger *zap.Logger) (domain.VectorIndex, error) {
	switch cfg.VectorStore.Type {
	case config.VectorStoreMemory:
		logger.Warn("Using in-memory vector store, vectors are lost on exit")
		store, err := vectorstore.NewMemoryStore(cfg.VectorStore.Dimension)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		q := cfg.VectorStore.Qdrant
		store, err := vectorstore.NewQdrantStore(vectorstore.QdrantConfig{
			Host:       q.Host,
			Port:       q.Port,
			APIKey:     q.APIKey,
			UseTLS:     q.UseTLS,
			Collection: q.Collection,
			Dimension:  cfg.VectorStore.Dimension,
		}, logger)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureCollection(ctx); err != nil {
			store.Close()
			return nil, err
		}
		return store, nil
	}
}

// Close waits for pending stats updates, then releases the stores
func (a *app) Close() {
	a.orchestrator.Wait()
	if err := a.index.Close(); err != nil {
		a.logger.Warn("Failed to close vector store", zap.Error(err))
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warn("Failed to close database", zap.Error(err))
	}
	_ = a.logger.Sync()
}
