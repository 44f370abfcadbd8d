package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/daniacca/chromasim/internal/logging"
	"github.com/daniacca/chromasim/internal/store"
)

func main() {
	cfg := loadServerConfig()
	logger := logging.NewLogger(cfg.LogLevel)

	srv := NewServer(logger)
	srv.SetFramesDir(cfg.FramesDir)
	srv.SetStepInterval(cfg.StepInterval)

	tissueCfg, err := loadDefaultTissueConfig(cfg.ConfigFile)
	if err != nil {
		logger.Fatalf("Failed to load tissue config: file=%s error=%v", cfg.ConfigFile, err)
	}
	srv.SetDefaultConfig(tissueCfg)

	if cfg.DBPath != "" {
		st, err := store.Open(cfg.DBPath)
		if err != nil {
			logger.Fatalf("Failed to open database: path=%s error=%v", cfg.DBPath, err)
		}
		defer st.Close()
		if err := srv.SetStore(st); err != nil {
			logger.Fatalf("Failed to attach database: %v", err)
		}
		logger.Infof("Recording frames to %s", cfg.DBPath)
	}

	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Infof("chromasim-server listening on %s (log_level=%s config=%s)", cfg.Addr, logger.Level(), tissueCfg.Name)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("HTTP shutdown: %v", err)
	}
	if err := srv.Close(); err != nil {
		logger.Errorf("Closing notifiers: %v", err)
	}
}
