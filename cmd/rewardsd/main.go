package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rewards-backend/config"
	"rewards-backend/container"
	"rewards-backend/middleware"
	"rewards-backend/scheduler"
	auth "rewards-backend/storage/auth"
	"rewards-backend/telemetry"
)

func envDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	configPath := flag.String("config", envDefault("REWARDS_CONFIG", "rewards.yaml"), "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	level := new(slog.LevelVar)
	level.Set(telemetry.ParseLevel(cfg.Log.Level))
	logger := telemetry.NewLogger(os.Stderr, level, cfg.Log.Format)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, level, logger); err != nil {
		logger.Error("rewardsd exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, level *slog.LevelVar, logger *slog.Logger) error {
	mcpIdentity := auth.APIKey{Label: "mcp", Role: auth.RoleOperator, Source: "mcp"}
	c, err := container.NewContainer(ctx, cfg, logger, mcpIdentity)
	if err != nil {
		return err
	}
	defer c.Close()
	engine := c.Engine

	if cfg.EpochSchedule != "" {
		schedule, err := config.ParseSchedule(cfg.EpochSchedule)
		if err != nil {
			return err
		}
		sched := scheduler.New(scheduler.Config{Builder: engine, Schedule: schedule, Logger: logger})
		sched.Start(ctx)
		defer sched.Stop()
	}

	router := c.Router(middleware.NewRateLimiter(60, 5))

	if cfg.Path != "" {
		watcher := config.NewWatcher(cfg.Path, logger)
		if err := watcher.Start(ctx); err != nil {
			logger.Warn("config watcher disabled", "error", err)
		} else {
			go watchConfig(ctx, watcher, cfg, c, level, logger)
		}
	}

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("rewardsd listening", "addr", cfg.HTTPAddr, "store", cfg.Store.Driver, "ticket_gate", engine.TicketGate())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// watchConfig applies the hot-reloadable parts of the config file: API keys,
// log level and task definitions. Store and gate changes need a restart.
func watchConfig(ctx context.Context, w *config.Watcher, current config.Config, c *container.Container, level *slog.LevelVar, logger *slog.Logger) {
	for ev := range w.Events() {
		next, err := config.Load(current.Path)
		if err != nil {
			logger.Warn("config reload rejected", "path", ev.Path, "error", err)
			continue
		}
		c.Keys.Reload("config", next.AdminKeys, next.APIKeys)
		level.Set(telemetry.ParseLevel(next.Log.Level))
		if err := c.SeedTasks(ctx, next.Tasks); err != nil {
			logger.Warn("config task reload failed", "error", err)
		}
		if next.Store != current.Store || next.Gate() != current.Gate() || next.HTTPAddr != current.HTTPAddr {
			logger.Warn("store, ticket gate and listen address changes take effect after restart")
		}
		logger.Info("config reloaded", "path", ev.Path, "op", ev.Op.String())
	}
}
