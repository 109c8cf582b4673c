package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"athena-backend/internal/enrichment"
	"athena-backend/internal/extraction"
	"athena-backend/internal/ingest"
	"athena-backend/internal/llm"
	"athena-backend/internal/llm/gemini"
	"athena-backend/internal/llm/openai"
	"athena-backend/internal/pipeline"
	"athena-backend/internal/quant"
	"athena-backend/internal/queue"
	"athena-backend/internal/risk"
	"athena-backend/internal/scoring"
	"athena-backend/internal/services/health"
	"athena-backend/internal/shared/config"
	"athena-backend/internal/shared/server"
	"athena-backend/internal/shared/storage/db"
	"athena-backend/internal/shared/storage/object"
	localstore "athena-backend/internal/shared/storage/object/local"
	s3store "athena-backend/internal/shared/storage/object/s3"
	"athena-backend/internal/shared/telemetry"
	"athena-backend/internal/synthesis"
)

// App holds shared dependencies for every entrypoint.
type App struct {
	Config       config.Config
	Router       *gin.Engine
	DB           *sql.DB
	Store        object.ObjectStore
	Queue        queue.Client
	Checkpoints  pipeline.CheckpointStore
	Orchestrator *pipeline.Orchestrator
	Handler      *pipeline.Handler
}

// Build wires the pipeline from cfg.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	queueClient, err := buildQueue(ctx, cfg)
	if err != nil {
		return nil, err
	}

	client, media, err := buildLLM(ctx, cfg)
	if err != nil {
		return nil, err
	}

	workers, err := buildWorkers(cfg, sqlDB, store, client, media)
	if err != nil {
		return nil, err
	}

	var checkpoints pipeline.CheckpointStore
	if sqlDB != nil {
		checkpoints = pipeline.NewPGStore(sqlDB)
	} else {
		checkpoints = pipeline.NewMemoryStore()
	}

	orch, err := pipeline.NewOrchestrator(pipeline.Options{
		Store:        checkpoints,
		Workers:      workers,
		Sink:         buildSink(cfg, sqlDB, store),
		Queue:        queueClient,
		StageTimeout: cfg.StageTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("build orchestrator: %w", err)
	}

	app := &App{
		Config:       cfg,
		DB:           sqlDB,
		Store:        store,
		Queue:        queueClient,
		Checkpoints:  checkpoints,
		Orchestrator: orch,
		Handler:      pipeline.NewHandler(orch, store),
	}
	app.Router = server.NewRouter(server.RouterDeps{
		Config:          cfg,
		Health:          health.NewService(sqlDB),
		PipelineHandler: app.Handler,
	})

	telemetry.Info("bootstrap.ready", map[string]any{
		"env":          cfg.Env,
		"llm_provider": cfg.LLMProvider,
		"object_store": cfg.ObjectStoreType,
		"database":     sqlDB != nil,
		"queue":        queueClient != nil,
	})
	return app, nil
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.database_missing", map[string]any{"fallback": "memory"})
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	var (
		sqlDB *sql.DB
		err   error
	)
	if db.IsLambdaRuntime() {
		sqlDB, err = db.Shared(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultLambdaOptions()))
	} else {
		sqlDB, err = db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultServerOptions()))
	}
	if err == nil {
		err = db.RunMigrations(ctx, sqlDB)
	}
	if err != nil {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.database_unavailable", map[string]any{"fallback": "memory", "error": err.Error()})
			return nil, nil
		}
		return nil, err
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildQueue(ctx context.Context, cfg config.Config) (queue.Client, error) {
	if strings.TrimSpace(cfg.QueueURL) == "" {
		return nil, nil
	}
	return queue.NewSQSClient(ctx, cfg.AWSRegion, cfg.QueueURL)
}

// buildLLM returns the text client and, for providers that accept inline
// media, the media client. Without a provider every worker uses its defaults.
func buildLLM(ctx context.Context, cfg config.Config) (llm.Client, llm.MediaClient, error) {
	switch cfg.LLMProvider {
	case "openai":
		c, err := openai.NewClient(cfg.OpenAIAPIKey, cfg.LLMModel)
		if err != nil {
			return nil, nil, err
		}
		return llm.WithRetry(c), nil, nil
	case "gemini":
		c, err := gemini.NewClient(ctx, cfg.GeminiAPIKey, cfg.LLMModel)
		if err != nil {
			return nil, nil, err
		}
		return llm.WithRetry(c), c, nil
	default:
		return llm.Unconfigured{}, nil, nil
	}
}

func buildWorkers(cfg config.Config, sqlDB *sql.DB, store object.ObjectStore, client llm.Client, media llm.MediaClient) (pipeline.Workers, error) {
	thesis, err := scoring.NewAggregator(scoring.ThesisWeights{
		Team:     cfg.Pipeline.ThesisWeights.Team,
		Market:   cfg.Pipeline.ThesisWeights.Market,
		Traction: cfg.Pipeline.ThesisWeights.Traction,
		Moat:     cfg.Pipeline.ThesisWeights.Moat,
	})
	if err != nil {
		return pipeline.Workers{}, fmt.Errorf("thesis weights: %w", err)
	}
	risks, err := scoring.NewRiskAggregator(scoring.RiskWeights{
		Team:        cfg.Pipeline.RiskWeights.Team,
		Market:      cfg.Pipeline.RiskWeights.Market,
		Financial:   cfg.Pipeline.RiskWeights.Financial,
		Execution:   cfg.Pipeline.RiskWeights.Execution,
		Competitive: cfg.Pipeline.RiskWeights.Competitive,
		Technical:   cfg.Pipeline.RiskWeights.Technical,
	})
	if err != nil {
		return pipeline.Workers{}, fmt.Errorf("risk weights: %w", err)
	}

	var benchmarks quant.BenchmarkSource
	if sqlDB != nil {
		benchmarks = quant.NewPGBenchmarkSource(sqlDB)
	}

	searcher := enrichment.NewWebSearcher(nil, cfg.NewsSearchURL)
	return pipeline.Workers{
		Ingest:     ingest.NewService(store, client, media),
		Extract:    extraction.NewService(client),
		Enrich:     enrichment.NewCoordinator(enrichment.DefaultLookups(searcher, client)),
		Quant:      quant.NewService(benchmarks, client),
		Risk:       risk.NewService(client, risks),
		Synthesize: synthesis.NewService(client, thesis),
	}, nil
}

func buildSink(cfg config.Config, sqlDB *sql.DB, store object.ObjectStore) pipeline.Sink {
	switch cfg.SinkType {
	case "none":
		return pipeline.NopSink{}
	case "object":
		return &pipeline.ObjectSink{Store: store}
	case "postgres":
		if sqlDB != nil {
			return &pipeline.PGSink{DB: sqlDB}
		}
		telemetry.Warn("bootstrap.sink_unavailable", map[string]any{"sink": "postgres", "fallback": "none"})
		return pipeline.NopSink{}
	default:
		if sqlDB != nil {
			return &pipeline.PGSink{DB: sqlDB}
		}
		return &pipeline.ObjectSink{Store: store}
	}
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
