// Package main - точка входа API-сервера рекомендаций.
//
// Сервер отвечает на запросы по отдельным студентам, запускает пересчёт
// всех рекомендаций в фоне и отдаёт аналитику, health-пробы и метрики.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alem-hub/academic-risk-hub/config"
	"github.com/alem-hub/academic-risk-hub/internal/app"
	httpapi "github.com/alem-hub/academic-risk-hub/internal/interface/http"
	"github.com/alem-hub/academic-risk-hub/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. КОНФИГУРАЦИЯ И ЛОГИРОВАНИЕ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := app.NewLogger(cfg)
	log.Info("starting academic risk API server",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("address", cfg.HTTP.Addr()),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 2. ЗАВИСИМОСТИ
	// ─────────────────────────────────────────────────────────────────────────
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	// ─────────────────────────────────────────────────────────────────────────
	// 3. HEALTH CHECKS
	// ─────────────────────────────────────────────────────────────────────────
	health := httpapi.NewHealthChecker(cfg.App.Version)
	health.AddCheck("database", httpapi.PingCheck(a.DB))
	if a.Redis != nil {
		health.AddCheck("redis", httpapi.PingCheck(a.Redis))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	deps := httpapi.Dependencies{
		Recommendations:   a.GetOrGenerate,
		AIRecommendations: a.GenerateAI,
		Pipeline:          a.Pipeline,
		Analytics:         a.Analytics,
		Insights:          a.StudentInsight,
		Health:            health,
		Metrics:           a.Metrics,
		Logger:            log,
	}
	if cfg.Observability.MetricsEnabled {
		deps.MetricsHandler = a.Metrics.Handler()
	}
	server := httpapi.NewServer(cfg.HTTP, deps)

	// ─────────────────────────────────────────────────────────────────────────
	// 5. ЗАПУСК И GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)

	g.Go(server.Start)

	g.Go(func() error {
		<-gctx.Done()
		log.Info("starting graceful shutdown...", logger.Duration("timeout", cfg.App.ShutdownTimeout))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("http server shutdown failed", logger.Err(err))
		}
		if err := a.Shutdown(shutdownCtx); err != nil {
			log.Error("pipeline did not stop in time", logger.Err(err))
		}
		return nil
	})

	start := time.Now()
	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("shutdown completed", logger.Duration("uptime", time.Since(start)))
	return nil
}
