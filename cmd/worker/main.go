package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dfalcao/precario/config"
	"github.com/dfalcao/precario/internal/classify"
	"github.com/dfalcao/precario/internal/email"
	"github.com/dfalcao/precario/internal/extract"
	"github.com/dfalcao/precario/internal/health"
	"github.com/dfalcao/precario/internal/infrastructure/postgres"
	ctxlog "github.com/dfalcao/precario/internal/log"
	"github.com/dfalcao/precario/internal/metrics"
	"github.com/dfalcao/precario/internal/provider/serp"
	"github.com/dfalcao/precario/internal/search"
	"github.com/dfalcao/precario/internal/worker"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := newLogger(cfg.Env, cfg.SlogLevel())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		stop()
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	logger.Info("db connected")

	metrics.Register()
	checker := health.NewChecker(pool, logger, prometheus.DefaultRegisterer)

	surveyRepo := postgres.NewSurveyRepository(pool)
	scheduleRepo := postgres.NewScheduleRepository(pool, logger)

	if err := os.MkdirAll(cfg.EvidenceDir, 0o755); err != nil {
		stop()
		log.Fatalf("evidence dir: %v", err)
	}

	serpClient := serp.NewClient(cfg.SerpBaseURL, cfg.SerpAPIKey, time.Duration(cfg.SerpTimeoutSec)*time.Second, logger)

	var extractor search.Extractor
	if cfg.BrowserEnabled {
		browser, err := extract.NewBrowserExtractor(time.Duration(cfg.BrowserTimeoutSec)*time.Second, cfg.EvidenceDir, logger)
		if err != nil {
			stop()
			log.Fatalf("browser: %v", err)
		}
		defer browser.Close()
		extractor = browser
	} else {
		extractor = extract.NewStaticExtractor(time.Duration(cfg.BrowserTimeoutSec)*time.Second, cfg.EvidenceDir, logger)
	}

	w := worker.NewWorker(worker.Deps{
		Repo:        surveyRepo,
		Searcher:    serpClient,
		Resolver:    serpClient,
		Extractor:   extractor,
		Classifier:  classify.New(cfg.ClassifierConfig()),
		SearchCfg:   cfg.SearchConfig(),
		Locale:      cfg.SerpLocale,
		Sender:      email.NewSender(cfg.Env, cfg.ResendAPIKey, cfg.ResendFrom, logger),
		ReviewEmail: cfg.ReviewEmail,
	}, logger, time.Duration(cfg.PollIntervalSec)*time.Second, cfg.WorkerCount)
	go w.Start(ctx)

	// heartbeat fires every 10s — 30s timeout means 3 missed beats before a survey is stale
	reaper := worker.NewReaper(surveyRepo, logger, 30*time.Second, 30*time.Second)
	go reaper.Start(ctx)

	dispatcher := worker.NewDispatcher(scheduleRepo, logger, time.Duration(cfg.DispatchIntervalSec)*time.Second)
	go dispatcher.Start(ctx)

	metricsSrv := metrics.NewServer(":"+cfg.MetricsPort, checker)
	go func() {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	<-ctx.Done()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}

	logger.Info("worker shut down")
}

func newLogger(env string, level slog.Level) *slog.Logger {
	var inner slog.Handler
	if env == "local" {
		inner = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	} else {
		inner = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}
	return slog.New(ctxlog.NewContextHandler(inner))
}
