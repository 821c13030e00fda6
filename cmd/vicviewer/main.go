package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/emertechie/vic-viewer/internal/config"
	"github.com/emertechie/vic-viewer/internal/cursor"
	"github.com/emertechie/vic-viewer/internal/engine"
	"github.com/emertechie/vic-viewer/internal/metrics"
	"github.com/emertechie/vic-viewer/internal/profile"
	"github.com/emertechie/vic-viewer/internal/server"
	"github.com/emertechie/vic-viewer/internal/source"
)

func main() {
	// Command-line flags
	configPath := flag.String("config", "", "Path to a YAML config file")
	addrFlag := flag.String("addr", "", "Listen address, overrides api.host and api.port")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	if err := run(cfg, *addrFlag, logger); err != nil {
		logger.Error("vicviewer stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, addr string, logger *slog.Logger) error {
	if addr == "" {
		addr = cfg.Addr()
	}
	rec := metrics.NewRecorder()

	// 1. Log profile, hot-reloaded when backed by a file
	profiles, err := openProfiles(cfg, logger)
	if err != nil {
		return err
	}
	profiles.OnReload = rec.ObserveReload
	active := profiles.Active()
	logger.Info("log profile active", "id", active.ID, "version", active.Version)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	go func() {
		if err := profiles.Watch(ctx); err != nil {
			logger.Warn("log profile watcher stopped", "error", err)
		}
	}()

	// 2. Record source
	src, err := newSource(cfg, logger)
	if err != nil {
		return err
	}

	// 3. Paginator and HTTP server
	mode := cursor.ModeEncoded
	if cfg.Logs.CursorDebugRaw {
		mode = cursor.ModeJSON
	}
	pg := engine.NewPaginator(src, profiles, engine.Options{CursorMode: mode, Logger: logger, Metrics: rec})
	srv := server.New(server.Options{
		Pager:    pg,
		Profiles: profiles,
		Metrics:  rec,
		Upstream: cfg.Logs.Mode,
		Logger:   logger,
	})

	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr, "mode", cfg.Logs.Mode, "cursorMode", mode)
		errc <- srv.Start(addr)
	}()

	// 4. Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errc:
		return err
	case sig := <-quit:
		logger.Info("shutting down", "signal", sig.String())
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	logger.Info("vicviewer exited gracefully")
	return nil
}

func newLogger(cfg config.Config) *slog.Logger {
	level, _ := cfg.LogLevel()
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func openProfiles(cfg config.Config, logger *slog.Logger) (*profile.Store, error) {
	if cfg.Profile.Path == "" {
		return profile.NewStore(profile.Fallback()), nil
	}
	return profile.OpenStore(cfg.Profile.Path, cfg.Profile.ID, logger)
}

func newSource(cfg config.Config, logger *slog.Logger) (engine.RecordSource, error) {
	if cfg.Logs.Mode == config.ModeFake {
		p, err := source.ParseSyntheticProfile(cfg.Fake.Profile)
		if err != nil {
			return nil, err
		}
		logger.Info("using synthetic logs", "profile", p, "seed", cfg.Fake.Seed)
		return source.NewSynthetic(source.SyntheticConfig{
			Profile:  p,
			Seed:     cfg.Fake.Seed,
			Lookback: cfg.Fake.Lookback,
		})
	}
	return source.NewVictoria(source.VictoriaConfig{
		BaseURL: cfg.Victoria.URL,
		Timeout: cfg.Victoria.Timeout,
		Logger:  logger,
	})
}
