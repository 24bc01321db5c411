// Package main - точка входа фонового процесса (Worker).
//
// Worker по расписанию пересчитывает риск всех студентов и сохраняет
// свежие рекомендации. Расписание задаётся интервалом или cron-выражением.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alem-hub/academic-risk-hub/config"
	"github.com/alem-hub/academic-risk-hub/internal/app"
	"github.com/alem-hub/academic-risk-hub/internal/infrastructure/scheduler"
	"github.com/alem-hub/academic-risk-hub/internal/infrastructure/scheduler/jobs"
	"github.com/alem-hub/academic-risk-hub/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
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

	log := app.NewLogger(cfg).With(logger.Component("worker"))
	if !cfg.Scheduler.Enabled {
		log.Info("scheduler is disabled, nothing to do")
		return nil
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. ЗАВИСИМОСТИ
	// ─────────────────────────────────────────────────────────────────────────
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ПЛАНИРОВЩИК
	// ─────────────────────────────────────────────────────────────────────────
	sc := cfg.Scheduler
	schedule, err := scheduler.ParseSchedule(sc.GenerateRecommendationsCron, sc.GenerateRecommendationsInterval)
	if err != nil {
		return fmt.Errorf("invalid schedule: %w", err)
	}

	sched := scheduler.New(scheduler.Config{
		Logger:            log,
		Metrics:           a.Metrics,
		MaxConcurrentJobs: sc.MaxConcurrentJobs,
		JobTimeout:        sc.JobTimeout,
		RunOnStart:        sc.RunOnStart,
	})

	job := jobs.NewGenerateRecommendationsJob(a.Pipeline, log)
	if err := sched.Register(job, schedule); err != nil {
		return fmt.Errorf("register job: %w", err)
	}

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	log.Info("worker is running",
		logger.String("job", job.Name()),
		logger.String("schedule", schedule.String()),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 4. МЕТРИКИ
	// ─────────────────────────────────────────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)

	var metricsSrv *http.Server
	if cfg.Observability.MetricsEnabled {
		// Worker не обслуживает API, поэтому метрики слушают на следующем порту.
		metricsSrv = &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port+1),
			Handler:           a.Metrics.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	g.Go(func() error {
		<-gctx.Done()
		log.Info("starting graceful shutdown...", logger.Duration("timeout", cfg.App.ShutdownTimeout))

		if err := sched.Stop(); err != nil {
			log.Warn("scheduler stop failed", logger.Err(err))
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()

		if metricsSrv != nil {
			_ = metricsSrv.Shutdown(shutdownCtx)
		}
		if err := a.Shutdown(shutdownCtx); err != nil {
			log.Error("pipeline did not stop in time", logger.Err(err))
		}

		if stats := job.LastStats(); stats != nil {
			log.Info("last scheduled run",
				logger.String("run_id", stats.RunID),
				logger.Bool("skipped", stats.Skipped),
				logger.Int("generated", stats.Generated),
				logger.Int("failed", stats.Failed),
			)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("shutdown completed successfully")
	return nil
}
