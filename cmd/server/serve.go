package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"ace-hls-relay/internal/api"
	"ace-hls-relay/internal/engine"
	"ace-hls-relay/internal/health"
	"ace-hls-relay/internal/platform/config"
	"ace-hls-relay/internal/platform/logger"
	"ace-hls-relay/internal/platform/metrics"
	"ace-hls-relay/internal/proxy"
	"ace-hls-relay/internal/stream"
)

func newServeCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP relay",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(v)
		},
	}
}

func runServe(v *viper.Viper) error {
	cfg, err := config.New(v)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	met := metrics.New()

	eng := engine.New(engine.Config{
		BaseURL: cfg.EngineBaseURL(),
		Timeout: cfg.EngineTimeout,
		Logger:  log,
	})
	reg := stream.NewInMemoryRegistry()
	mgr := stream.NewManager(reg, eng, stream.ManagerConfig{
		CheckDelay:   cfg.StatusCheckDelay,
		CheckWorkers: cfg.StatusCheckWorkers,
	}, log, met)
	prx := proxy.New(reg, eng, proxy.Config{}, log, met)

	mon, err := health.NewMonitor(eng, met, cfg.EngineHealthSchedule, log)
	if err != nil {
		mgr.Close()
		return err
	}

	h := api.NewHandler(mgr, prx, log, api.Options{
		Prefix:        cfg.APIPrefix,
		PublicBaseURL: cfg.PublicBaseURL,
		FrontendURL:   cfg.FrontendURL,
		Version:       version,
	})
	r := api.NewRouter(h, health.NewHandler(eng, log).Routes(), met, log)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	mon.Start()

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	log.Info("server starting",
		"addr", cfg.Addr(),
		"api_prefix", cfg.APIPrefix,
		"engine", cfg.EngineBaseURL(),
		"status_check_delay", cfg.StatusCheckDelay.String(),
		"log_level", cfg.LogLevel,
		"version", version,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-sigCh:
		log.Info("shutdown signal received, draining connections")
	case err := <-errCh:
		log.Error("server error", "error", err)
		mon.Stop()
		mgr.Close()
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	shutdownErr := srv.Shutdown(ctx)
	mon.Stop()
	mgr.Close()
	if shutdownErr != nil {
		log.Error("shutdown error", "error", shutdownErr)
		return shutdownErr
	}

	log.Info("server stopped", "sessions_dropped", mgr.ActiveCount())
	return nil
}
