package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	appcfg "github.com/pgnlab/insight/internal/config"
	"github.com/pgnlab/insight/internal/obslog"
	"github.com/pgnlab/insight/internal/opening"
	"github.com/pgnlab/insight/internal/server"
	"github.com/pgnlab/insight/internal/service/analytics"
	"github.com/pgnlab/insight/internal/store"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer obslog.Sync()
	logger := obslog.L()

	catalog, err := opening.Load(cfg.OpeningCatalogDir, cfg.OpeningMaxPly)
	if err != nil {
		logger.Fatal("opening catalog init", zap.Error(err))
	}

	svc, err := analytics.New(catalog, analytics.Config{Workers: cfg.AnalysisWorkers}, logger)
	if err != nil {
		logger.Fatal("analytics init", zap.Error(err))
	}

	if cfg.RedisURL != "" {
		reports, err := store.NewReportStore(cfg.RedisURL, cfg.ReportTTL)
		if err != nil {
			logger.Fatal("report store init", zap.Error(err))
		}
		defer reports.Close()
		svc.AttachReportStore(reports)
	} else {
		logger.Warn("REDIS_URL not set; batch reports will not be retrievable after the response")
	}

	if cfg.DatabaseURL != "" {
		archive, err := store.NewArchive(cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("archive init", zap.Error(err))
		}
		defer archive.Close()
		svc.AttachArchive(archive)
	} else {
		svc.AttachArchive(store.NewMemoryArchive())
		logger.Info("DATABASE_URL not set; using in-memory archive")
	}

	srv := server.New(svc, cfg.MaxUploadBytes, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe(cfg.ListenAddr) }()
	logger.Info("insightd listening",
		zap.String("addr", cfg.ListenAddr),
		zap.Int("workers", cfg.AnalysisWorkers),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
		if err := srv.Shutdown(); err != nil {
			logger.Error("shutdown", zap.Error(err))
		}
	case err := <-errCh:
		if err != nil {
			logger.Fatal("server stopped", zap.Error(err))
		}
	}
}
