// Package app собирает зависимости сервиса. Используется и API-сервером,
// и worker-ом, чтобы оба процесса работали с одинаковым стеком.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/alem-hub/academic-risk-hub/config"
	"github.com/alem-hub/academic-risk-hub/internal/application/command"
	"github.com/alem-hub/academic-risk-hub/internal/application/eventhandler"
	"github.com/alem-hub/academic-risk-hub/internal/application/query"
	"github.com/alem-hub/academic-risk-hub/internal/domain/features"
	"github.com/alem-hub/academic-risk-hub/internal/domain/patterns"
	"github.com/alem-hub/academic-risk-hub/internal/domain/recommendation"
	"github.com/alem-hub/academic-risk-hub/internal/domain/risk"
	"github.com/alem-hub/academic-risk-hub/internal/domain/shared"
	"github.com/alem-hub/academic-risk-hub/internal/infrastructure/external/deepseek"
	"github.com/alem-hub/academic-risk-hub/internal/infrastructure/messaging"
	"github.com/alem-hub/academic-risk-hub/internal/infrastructure/metrics"
	"github.com/alem-hub/academic-risk-hub/internal/infrastructure/persistence/postgres"
	"github.com/alem-hub/academic-risk-hub/internal/infrastructure/persistence/redis"
	"github.com/alem-hub/academic-risk-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// EVENT BUS
// ══════════════════════════════════════════════════════════════════════════════

// EventBus - шина событий процесса.
type EventBus interface {
	shared.EventPublisher
	shared.EventSubscriber
	Close() error
}

// ══════════════════════════════════════════════════════════════════════════════
// APP
// ══════════════════════════════════════════════════════════════════════════════

// App содержит собранные зависимости.
type App struct {
	Config  *config.Config
	Logger  *logger.Logger
	Metrics *metrics.Metrics

	DB    *postgres.Connection
	Redis *redis.Cache // nil, если Redis выключен или недоступен
	Bus   EventBus
	Prose *deepseek.Client // nil без API-ключа

	Students  *postgres.StudentRepository
	Results   recommendation.Repository
	Estimator *risk.Estimator

	Pipeline       *command.TriggerPipelineHandler
	GetOrGenerate  *command.GetOrGenerateHandler
	GenerateAI     *command.GenerateAIHandler
	Analytics      *query.GetAnalyticsSummaryHandler
	StudentInsight *query.GetStudentInsightsHandler

	closers []func()
}

// NewLogger создаёт логгер из настроек наблюдаемости.
func NewLogger(cfg *config.Config) *logger.Logger {
	opts := logger.DefaultOptions()
	opts.Output = os.Stdout
	opts.Level = logger.ParseLevel(cfg.Observability.LogLevel)
	if cfg.App.Debug {
		opts.Level = logger.LevelDebug
	}
	opts.Format = logger.FormatJSON
	if cfg.Observability.LogFormat == string(logger.FormatConsole) {
		opts.Format = logger.FormatConsole
	}
	opts.AddCaller = cfg.IsDevelopment()

	return logger.New(opts).With(
		logger.String("service", cfg.App.Name),
		logger.String("version", cfg.App.Version),
	)
}

// New подключается к хранилищам и собирает обработчики.
// При ошибке всё уже открытое закрывается.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (_ *App, err error) {
	a := &App{
		Config:  cfg,
		Logger:  log,
		Metrics: metrics.New(),
	}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 1. POSTGRESQL
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to database...")
	a.DB, err = postgres.NewConnection(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	a.closers = append(a.closers, func() {
		log.Info("closing database connection...")
		a.DB.Close()
	})

	if cfg.Database.RunMigrations {
		log.Info("running database migrations...")
		if err = postgres.NewMigrator(a.DB).Migrate(ctx); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. REDIS (опционально)
	// ─────────────────────────────────────────────────────────────────────────
	var client *goredis.Client
	if !cfg.Redis.Disabled && (cfg.Redis.URL != "" || cfg.Redis.Host != "") {
		client, a.Redis = connectRedis(ctx, cfg.Redis, log)
	}
	if a.Redis != nil {
		a.closers = append(a.closers, func() {
			log.Info("closing Redis connection...")
			_ = a.Redis.Close()
		})
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 3. РЕПОЗИТОРИИ
	// ─────────────────────────────────────────────────────────────────────────
	a.Students = postgres.NewStudentRepository(a.DB)
	stored := postgres.NewRecommendationRepository(a.DB)

	var latestCache eventhandler.LatestResultCache
	a.Results = stored
	if a.Redis != nil {
		cached := redis.NewRecommendationCache(stored, a.Redis, redis.RecommendationCacheConfig{
			TTL:     cfg.Redis.CacheTTL,
			Flags:   cfg.Features,
			Metrics: a.Metrics,
			Logger:  log,
		})
		a.Results = cached
		latestCache = cached
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. ШИНА СОБЫТИЙ
	// ─────────────────────────────────────────────────────────────────────────
	busCfg := messaging.DefaultInMemoryEventBusConfig()
	busCfg.Logger = log
	busCfg.Metrics = a.Metrics
	if client != nil {
		redisBus, busErr := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
			Client:         messaging.NewGoRedisPubSub(client),
			LocalBusConfig: busCfg,
			Logger:         log,
		})
		if busErr != nil {
			log.Warn("redis event bus unavailable, using in-memory bus", logger.Err(busErr))
		} else {
			a.Bus = redisBus
		}
	}
	if a.Bus == nil {
		a.Bus = messaging.NewInMemoryEventBus(busCfg)
	}
	// Шина закрывается раньше Redis: её подписка использует клиент.
	a.closers = append(a.closers, func() {
		log.Info("closing event bus...")
		_ = a.Bus.Close()
	})

	onGenerated := eventhandler.NewOnRecommendationGeneratedHandler(latestCache, a.Metrics, log)
	if err = onGenerated.Register(a.Bus); err != nil {
		return nil, fmt.Errorf("subscribe event handler: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. ВНЕШНИЙ ТЕКСТОВЫЙ API
	// ─────────────────────────────────────────────────────────────────────────
	var prose command.ProseGenerator
	if cfg.Prose.Enabled() {
		a.Prose = deepseek.NewClient(cfg.Prose,
			deepseek.WithMetrics(a.Metrics),
			deepseek.WithLogger(log),
		)
		prose = a.Prose
		log.Info("prose API enabled", logger.String("model", cfg.Prose.Model))
	} else {
		log.Info("prose API disabled, deterministic recommendations only")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. ДОМЕН И ОБРАБОТЧИКИ
	// ─────────────────────────────────────────────────────────────────────────
	p := cfg.Pipeline
	a.Estimator = risk.NewEstimator(risk.EstimatorConfig{
		MinTrainingRecords: p.MinTrainingRecords,
		HoldoutRatio:       p.HoldoutRatio,
		Forest: risk.ForestConfig{
			Trees:    p.ForestTrees,
			MaxDepth: p.ForestMaxDepth,
			Seed:     p.ForestSeed,
		},
	})
	miner := patterns.NewMiner(patterns.MinerConfig{
		MinSupport:      p.MinSupport,
		MinConfidence:   p.MinConfidence,
		MinTransactions: p.MinTransactions,
	})
	extractor := features.NewExtractor(a.Students)

	runner := command.NewRunPipelineHandler(command.RunPipelineDeps{
		Students:  a.Students,
		Extractor: extractor,
		Estimator: a.Estimator,
		Miner:     miner,
		Results:   a.Results,
		Publisher: a.Bus,
		Flags:     cfg.Features,
		Metrics:   a.Metrics,
		Logger:    log,
	})
	a.Pipeline = command.NewTriggerPipelineHandler(runner, p.RunTimeout, log)

	a.GetOrGenerate = command.NewGetOrGenerateHandler(a.Students, extractor, a.Estimator, a.Results, a.Bus, log)
	a.GenerateAI = command.NewGenerateAIHandler(command.GenerateAIDeps{
		Extractor: extractor,
		Peers:     a.Students,
		Estimator: a.Estimator,
		Results:   a.Results,
		Prose:     prose,
		Flags:     cfg.Features,
		Publisher: a.Bus,
		Logger:    log,
	})
	a.Analytics = query.NewGetAnalyticsSummaryHandler(a.Students, a.Results)
	a.StudentInsight = query.NewGetStudentInsightsHandler(extractor, a.Students, a.Estimator, log)

	return a, nil
}

func connectRedis(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) (*goredis.Client, *redis.Cache) {
	log.Info("connecting to Redis...")
	client, err := redis.NewClient(cfg)
	if err != nil {
		log.Warn("invalid Redis settings, caching disabled", logger.Err(err))
		return nil, nil
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cache, err := redis.NewCache(pingCtx, client)
	if err != nil {
		_ = client.Close()
		log.Warn("failed to connect to Redis, caching disabled", logger.Err(err))
		return nil, nil
	}
	log.Info("Redis connection established")
	return client, cache
}

// Shutdown дожидается фонового прогона пайплайна.
func (a *App) Shutdown(ctx context.Context) error {
	if a.Pipeline == nil {
		return nil
	}
	if err := a.Pipeline.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("pipeline shutdown: %w", err)
	}
	return nil
}

// Close закрывает соединения в обратном порядке.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
