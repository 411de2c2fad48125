package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/partwise/parts-assistant/internal/catalog"
	"github.com/partwise/parts-assistant/internal/config"
	"github.com/partwise/parts-assistant/internal/core/domain"
	"github.com/partwise/parts-assistant/internal/core/ports"
	"github.com/partwise/parts-assistant/internal/core/usecase"
	"github.com/partwise/parts-assistant/internal/infrastructure/chunking"
	"github.com/partwise/parts-assistant/internal/infrastructure/extractor/plaintext"
	"github.com/partwise/parts-assistant/internal/infrastructure/llm/ollama"
	"github.com/partwise/parts-assistant/internal/infrastructure/llm/openai"
	"github.com/partwise/parts-assistant/internal/infrastructure/queue/nats"
	"github.com/partwise/parts-assistant/internal/infrastructure/repository/postgres"
	"github.com/partwise/parts-assistant/internal/infrastructure/resilience"
	"github.com/partwise/parts-assistant/internal/infrastructure/session"
	"github.com/partwise/parts-assistant/internal/infrastructure/storage/localfs"
	"github.com/partwise/parts-assistant/internal/infrastructure/vector/qdrant"
	"github.com/partwise/parts-assistant/internal/observability/logging"
)

// App wires every adapter behind the core ports. One App backs one process;
// the api, indexer, and mcp binaries pick the pieces they serve.
type App struct {
	Config  config.Config
	Logger  *slog.Logger
	Catalog domain.Catalog

	Queue ports.MessageQueue
	Docs  ports.DocumentReader

	TurnUC    ports.TurnService
	IngestUC  ports.DocumentIngestor
	ProcessUC ports.DocumentProcessor

	Classifier *usecase.Classifier
	Builder    *usecase.QueryBuilder
	Structured ports.StructuredStore
	Retriever  *usecase.SemanticRetriever

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, service string) (*App, error) {
	logger := logging.NewJSONLogger(service, cfg.LogLevel)
	slog.SetDefault(logger)

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	partsRepo := postgres.NewPartsRepository(db, cat)
	docRepo := postgres.NewDocumentRepository(db)

	var sessions ports.ConversationStore
	switch cfg.SessionStore {
	case "postgres":
		sessions = postgres.NewConversationRepository(db)
	default:
		sessions = session.NewMemoryStore()
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	var (
		completion ports.CompletionClient
		embedder   ports.Embedder
	)
	switch cfg.LLMProvider {
	case "openai":
		client := openai.New(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIChatModel, cfg.OpenAIEmbedModel)
		completion = client
		embedder = client
	default:
		client := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, executor)
		completion = ollama.NewCompleter(client)
		embedder = ollama.NewEmbedder(client)
	}

	vectorDB := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection)
	chunker := chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	extractor := plaintext.NewExtractor(storage)

	classifier := usecase.NewClassifier(cat, cfg.HistoryWindow, cfg.IntentThreshold)
	builder := usecase.NewQueryBuilder(cat, cfg.StructuredMaxRows)
	retriever := usecase.NewSemanticRetriever(embedder, vectorDB, cfg.RetrievalTopK, cfg.SimilarityFloor)
	fuser := usecase.NewFuser(cfg.ContextBudgetChars, cfg.StructuredBaseScore)
	composer := usecase.NewComposer(completion, cfg.HistoryWindow)

	turnUC := usecase.NewTurnUseCase(
		classifier, builder, partsRepo, retriever, fuser, composer, sessions,
		usecase.TurnTimeouts{
			Structured: time.Duration(cfg.StructuredTimeoutSeconds) * time.Second,
			Semantic:   time.Duration(cfg.SemanticTimeoutSeconds) * time.Second,
			Completion: time.Duration(cfg.CompletionTimeoutSeconds) * time.Second,
		},
		cfg.HistoryWindow,
		logger,
	)
	ingestUC := usecase.NewIngestDocumentUseCase(docRepo, storage, queue)
	processUC := usecase.NewProcessDocumentUseCase(docRepo, extractor, chunker, embedder, vectorDB)

	return &App{
		Config:  cfg,
		Logger:  logger,
		Catalog: cat,

		Queue: queue,
		Docs:  docRepo,

		TurnUC:    turnUC,
		IngestUC:  ingestUC,
		ProcessUC: processUC,

		Classifier: classifier,
		Builder:    builder,
		Structured: partsRepo,
		Retriever:  retriever,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
