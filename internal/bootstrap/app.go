package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"iprisk-backend/internal/conflicts"
	"iprisk-backend/internal/execlog"
	"iprisk-backend/internal/invoker"
	"iprisk-backend/internal/llm"
	"iprisk-backend/internal/llm/anthropic"
	"iprisk-backend/internal/llm/openai"
	"iprisk-backend/internal/notify"
	"iprisk-backend/internal/patents"
	"iprisk-backend/internal/pipeline"
	"iprisk-backend/internal/reports"
	"iprisk-backend/internal/retry"
	"iprisk-backend/internal/runs"
	"iprisk-backend/internal/services/health"
	"iprisk-backend/internal/shared/config"
	"iprisk-backend/internal/shared/server"
	"iprisk-backend/internal/shared/storage/db"
	"iprisk-backend/internal/shared/storage/object"
	localstore "iprisk-backend/internal/shared/storage/object/local"
	s3store "iprisk-backend/internal/shared/storage/object/s3"
	"iprisk-backend/internal/shared/telemetry"
	"iprisk-backend/internal/users"
)

const stageHTTPTimeout = 30 * time.Second

// App holds shared dependencies.
type App struct {
	Config          config.Config
	Router          *gin.Engine
	DB              *sql.DB
	Redis           *redis.Client
	Store           object.Store
	Invoker         invoker.Invoker
	Guard           invoker.Guard
	RunsRepo        runs.Repo
	ConflictsRepo   conflicts.Repo
	ReportsRepo     reports.Repo
	ExecLogRepo     execlog.Repo
	UsersRepo       users.Repo
	LLM             *llm.Chain
	Patents         patents.Client
	Notifier        notify.Client
	Pipeline        *pipeline.Service
	UsersService    *users.Service
	PipelineHandler *pipeline.Handler
	UsersHandler    *users.Handler
	Health          *health.Service
}

// Build prepares shared dependencies and the router.
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

	guard, redisClient, err := buildGuard(ctx, cfg)
	if err != nil {
		return nil, err
	}

	inv, err := buildInvoker(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:  cfg,
		DB:      sqlDB,
		Redis:   redisClient,
		Store:   store,
		Invoker: inv,
		Guard:   guard,
	}

	if err := buildServices(app); err != nil {
		return nil, err
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config:          app.Config,
		PipelineHandler: app.PipelineHandler,
		UsersHandler:    app.UsersHandler,
		Health:          app.Health,
	})

	return app, nil
}

// Close releases connections held by the app.
func (a *App) Close() {
	if a == nil {
		return
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.DB != nil && !db.IsLambdaRuntime() {
		_ = a.DB.Close()
	}
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if cfg.IsDevLike() {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory repositories")
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	var (
		sqlDB *sql.DB
		err   error
	)
	if db.IsLambdaRuntime() {
		opts := db.OptionsFromEnv(db.DefaultLambdaOptions())
		sqlDB, err = db.GetSingleton(ctx, cfg.DatabaseURL, opts)
	} else {
		opts := db.OptionsFromEnv(db.DefaultServerOptions())
		sqlDB, err = db.Connect(ctx, cfg.DatabaseURL, opts)
	}
	if err != nil {
		if cfg.IsDevLike() {
			log.Printf("bootstrap: database connect failed; using in-memory repositories: %v", err)
			return nil, nil
		}
		return nil, err
	}

	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.Store, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.AWSRegion) == "" || strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires AWS_REGION and S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildGuard(ctx context.Context, cfg config.Config) (invoker.Guard, *redis.Client, error) {
	if cfg.RedisURL == "" {
		if !cfg.IsDevLike() && cfg.StageTransport != "async" {
			log.Printf("bootstrap: REDIS_URL empty; stage idempotency is per process only")
		}
		return invoker.NewMemoryGuard(cfg.IdempotencyTTL), nil, nil
	}
	guard, client, err := invoker.NewRedisGuard(ctx, cfg.RedisURL, cfg.IdempotencyTTL)
	if err != nil {
		if cfg.IsDevLike() {
			log.Printf("bootstrap: redis unavailable; using in-memory idempotency guard: %v", err)
			return invoker.NewMemoryGuard(cfg.IdempotencyTTL), nil, nil
		}
		return nil, nil, err
	}
	return guard, client, nil
}

func buildInvoker(ctx context.Context, cfg config.Config) (invoker.Invoker, error) {
	switch cfg.StageTransport {
	case "sqs":
		return invoker.NewSQS(ctx, cfg.AWSRegion, cfg.StageQueueURLs)
	case "http":
		return invoker.NewHTTP(cfg.StageBaseURL, cfg.InternalAPIToken, stageHTTPTimeout)
	default:
		return invoker.NewAsync(), nil
	}
}

func buildChain(cfg config.Config, opts retry.Options) (*llm.Chain, error) {
	var providers []llm.Generator
	if cfg.OpenAIAPIKey != "" {
		client, err := openai.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.LLMTimeout)
		if err != nil {
			return nil, fmt.Errorf("openai client: %w", err)
		}
		providers = append(providers, client)
	}
	if cfg.AnthropicAPIKey != "" {
		client, err := anthropic.NewClient(anthropic.Options{
			APIKey:  cfg.AnthropicAPIKey,
			Model:   cfg.AnthropicModel,
			Timeout: cfg.LLMTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("anthropic client: %w", err)
		}
		providers = append(providers, client)
	}
	if len(providers) == 0 {
		if !cfg.IsDevLike() {
			return nil, errors.New("OPENAI_API_KEY or ANTHROPIC_API_KEY is required")
		}
		log.Printf("bootstrap: no LLM keys configured; using offline generator")
	}
	if cfg.IsDevLike() {
		providers = append(providers, llm.Offline{})
	}
	return llm.NewChain(opts, providers...), nil
}

func buildPatents(cfg config.Config) (patents.Client, error) {
	if cfg.PatentSearchURL == "" {
		if !cfg.IsDevLike() {
			return nil, errors.New("PATENT_SEARCH_URL is required")
		}
		log.Printf("bootstrap: PATENT_SEARCH_URL empty; using static patent catalog")
		return patents.NewStaticClient(), nil
	}
	return patents.NewHTTPClient(cfg.PatentSearchURL, cfg.PatentSearchAPIKey, cfg.LLMTimeout)
}

func buildServices(app *App) error {
	cfg := app.Config
	if app.DB != nil {
		app.RunsRepo = &runs.PGRepo{DB: app.DB}
		app.ConflictsRepo = &conflicts.PGRepo{DB: app.DB}
		app.ReportsRepo = &reports.PGRepo{DB: app.DB}
		app.ExecLogRepo = &execlog.PGRepo{DB: app.DB}
		app.UsersRepo = &users.PGRepo{DB: app.DB}
	} else {
		app.RunsRepo = runs.NewMemoryRepo()
		app.ConflictsRepo = conflicts.NewMemoryRepo()
		app.ReportsRepo = reports.NewMemoryRepo()
		app.ExecLogRepo = execlog.NewMemoryRepo()
		app.UsersRepo = users.NewMemoryRepo()
	}

	retryOpts := retry.Options{MaxRetries: cfg.RetryMaxAttempts, InitialDelay: cfg.RetryInitialDelay}
	chain, err := buildChain(cfg, retryOpts)
	if err != nil {
		return err
	}
	patentClient, err := buildPatents(cfg)
	if err != nil {
		return err
	}
	notifier, err := notify.NewSendGrid(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		BaseURL:   cfg.SendGridBaseURL,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
	})
	if err != nil {
		return fmt.Errorf("sendgrid client: %w", err)
	}

	svc := &pipeline.Service{
		Runs:            app.RunsRepo,
		Conflicts:       app.ConflictsRepo,
		Reports:         app.ReportsRepo,
		ExecLog:         app.ExecLogRepo,
		Users:           app.UsersRepo,
		Store:           app.Store,
		LLM:             chain,
		Patents:         patentClient,
		Notifier:        notifier,
		Invoker:         app.Invoker,
		Guard:           app.Guard,
		Retry:           retryOpts,
		ScoringInterval: cfg.ScoringInterval,
		MaxCandidates:   cfg.MaxConflictCandidates,
		AppBaseURL:      cfg.AppBaseURL,
	}
	if async, ok := app.Invoker.(*invoker.AsyncInvoker); ok {
		async.Bind(svc)
	}

	checks := map[string]health.Pinger{}
	if app.DB != nil {
		checks["database"] = app.DB
	}
	if app.Redis != nil {
		client := app.Redis
		checks["redis"] = health.PingFunc(func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
	}

	app.LLM = chain
	app.Patents = patentClient
	app.Notifier = notifier
	app.Pipeline = svc
	app.UsersService = users.NewService(app.UsersRepo)
	app.PipelineHandler = pipeline.NewHandler(svc)
	app.UsersHandler = users.NewHandler(app.UsersService)
	app.Health = health.NewService(checks)

	telemetry.Info("bootstrap.ready", map[string]any{
		"env":             cfg.Env,
		"stage_transport": cfg.StageTransport,
		"llm_providers":   chain.Names(),
		"notifications":   notifier.Enabled(),
		"database":        app.DB != nil,
		"redis":           app.Redis != nil,
	})
	return nil
}
