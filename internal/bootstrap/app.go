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

	"markupcheck-backend/internal/analyses"
	"markupcheck-backend/internal/cache"
	"markupcheck-backend/internal/fetch"
	"markupcheck-backend/internal/markup"
	"markupcheck-backend/internal/queue"
	"markupcheck-backend/internal/services/health"
	"markupcheck-backend/internal/shared/config"
	"markupcheck-backend/internal/shared/server"
	"markupcheck-backend/internal/shared/server/middleware"
	"markupcheck-backend/internal/shared/storage/db"
	"markupcheck-backend/internal/shared/storage/object"
	localstore "markupcheck-backend/internal/shared/storage/object/local"
	s3store "markupcheck-backend/internal/shared/storage/object/s3"
)

const (
	memoryCacheEntries  = 512
	memoryCacheSweep    = time.Minute
	redisFetchKeyPrefix = "markupcheck:"
)

// App holds shared dependencies.
type App struct {
	Config          config.Config
	Router          *gin.Engine
	DB              *sql.DB
	Store           object.ObjectStore
	Cache           cache.Backend
	Fetcher         *fetch.Fetcher
	Queue           *queue.RedisQueue
	AnalysesRepo    analyses.Repo
	AnalysesService *analyses.Service
	AnalysisHandler *analyses.Handler
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

	jobs, err := buildQueue(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		DB:     sqlDB,
		Store:  store,
		Cache:  buildCache(ctx, cfg),
		Queue:  jobs,
		Health: health.NewService(),
	}

	if err := buildServices(app); err != nil {
		return nil, err
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config:          app.Config,
		AnalysisHandler: app.AnalysisHandler,
		Health:          app.Health,
		RateLimiter:     middleware.NewRateLimiter(nil),
	})

	return app, nil
}

// Close releases connections held by the app.
func (a *App) Close() error {
	var errs []error
	if a.Queue != nil {
		errs = append(errs, a.Queue.Close())
	}
	if a.Cache != nil {
		errs = append(errs, a.Cache.Close())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	return errors.Join(errs...)
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory repositories")
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	opts := db.OptionsFromEnv(db.DefaultServerOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: database connect failed; using in-memory repositories: %v", err)
			return nil, nil
		}
		return nil, err
	}
	if isDevLike(cfg.Env) {
		if err := db.RunMigrations(ctx, sqlDB); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
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

// buildCache prefers Redis and falls back to an in-process cache when Redis
// is unset or unreachable.
func buildCache(ctx context.Context, cfg config.Config) cache.Backend {
	if strings.TrimSpace(cfg.RedisURL) != "" {
		redisCache, err := cache.NewRedisCache(ctx, cfg.RedisURL, redisFetchKeyPrefix)
		if err == nil {
			log.Printf("bootstrap: using redis fetch cache")
			return redisCache
		}
		log.Printf("bootstrap: redis unavailable; using memory fetch cache: %v", err)
	}
	return cache.NewMemoryCache(memoryCacheEntries, memoryCacheSweep)
}

// buildQueue connects the analysis job queue when dispatch is "queue". Dev
// environments fall back to inline processing when Redis is unusable.
func buildQueue(ctx context.Context, cfg config.Config) (*queue.RedisQueue, error) {
	if cfg.Dispatch != config.DispatchQueue {
		return nil, nil
	}
	if strings.TrimSpace(cfg.RedisURL) == "" {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: REDIS_URL empty; processing analyses inline")
			return nil, nil
		}
		return nil, fmt.Errorf("REDIS_URL is required when DISPATCH=queue")
	}
	jobs, err := queue.NewRedisQueue(ctx, cfg.RedisURL, cfg.QueueName)
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: job queue unavailable; processing analyses inline: %v", err)
			return nil, nil
		}
		return nil, fmt.Errorf("job queue: %w", err)
	}
	log.Printf("bootstrap: dispatching analyses to redis queue %s", cfg.QueueName)
	return jobs, nil
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}

func buildServices(app *App) error {
	var analysisRepo analyses.Repo
	if app.DB != nil {
		analysisRepo = &analyses.PGRepo{DB: app.DB}
		sqlDB := app.DB
		app.Health.Register("database", func(ctx context.Context) error {
			return db.Check(ctx, sqlDB)
		})
	} else {
		analysisRepo = analyses.NewMemoryRepo()
	}
	if pinger, ok := app.Cache.(interface{ Ping(context.Context) error }); ok {
		app.Health.Register("cache", pinger.Ping)
	}

	app.Fetcher = fetch.New(fetch.Options{
		Timeout:      app.Config.FetchTimeout,
		MaxBytes:     app.Config.FetchMaxBytes,
		UserAgent:    app.Config.FetchUserAgent,
		Cache:        app.Cache,
		CacheTTL:     app.Config.FetchCacheTTL,
		AllowPrivate: app.Config.FetchAllowPrivate,
	})

	app.AnalysesRepo = analysisRepo
	app.AnalysesService = &analyses.Service{
		Repo:         analysisRepo,
		Store:        app.Store,
		Fetcher:      app.Fetcher,
		Analyzer:     markup.Analyzer{ContextRadius: app.Config.ContextRadius},
		MaxHTMLBytes: app.Config.MaxHTMLBytes,
	}
	if app.Queue != nil {
		app.AnalysesService.Queue = app.Queue
		app.Health.Register("queue", app.Queue.Ping)
	}
	app.AnalysisHandler = analyses.NewHandler(app.AnalysesService)

	if app.AnalysisHandler == nil {
		return errors.New("failed to initialize handlers")
	}
	return nil
}
