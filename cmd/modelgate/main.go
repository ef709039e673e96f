// Package main is the entry point for the modelgate LLM gateway.
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

	"github.com/prometheus/client_golang/prometheus"

	"modelgate/config"
	"modelgate/internal/adapters"
	"modelgate/internal/adapters/anthropic"
	"modelgate/internal/adapters/google"
	"modelgate/internal/adapters/groq"
	"modelgate/internal/adapters/openai"
	"modelgate/internal/auditlog"
	"modelgate/internal/history"
	"modelgate/internal/logging"
	"modelgate/internal/observability"
	"modelgate/internal/server"
	"modelgate/internal/version"
)

func main() {
	versionFlag := flag.Bool("version", false, "Print version information")
	flag.Parse()

	if *versionFlag {
		fmt.Println(version.String())
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logging.Setup(cfg.Environment, logging.ParseLevel(os.Getenv("LOG_LEVEL")))

	slog.Info("starting modelgate",
		"version", version.Version,
		"commit", version.Commit,
		"build_date", version.Date,
		"environment", cfg.Environment,
	)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.New(prometheus.DefaultRegisterer)
		slog.Info("prometheus metrics enabled", "endpoint", cfg.Metrics.Endpoint)
	} else {
		slog.Info("prometheus metrics disabled")
	}

	factory := adapters.NewFactory(adapters.Options{
		Hooks:   metrics.UpstreamHooks(),
		Timeout: cfg.Server.RequestTimeout,
	},
		openai.Registration,
		anthropic.Registration,
		groq.Registration,
		google.Registration,
	)

	auditResult, err := auditlog.New(context.Background(), cfg)
	if err != nil {
		slog.Error("failed to initialize audit logging", "error", err)
		os.Exit(1)
	}
	defer auditResult.Close()

	if cfg.Audit.Enabled {
		slog.Info("audit logging enabled",
			"storage_type", cfg.Storage.Type,
			"retention_days", cfg.Audit.RetentionDays,
		)
	} else {
		slog.Info("audit logging disabled")
	}

	hist, err := history.NewStore(cfg.History.Dir)
	if err != nil {
		slog.Error("failed to initialize chat history", "error", err)
		os.Exit(1)
	}

	srv := server.New(server.Deps{
		Config:  cfg,
		Factory: factory,
		History: hist,
		Audit:   auditResult.Logger,
		Metrics: metrics,
	})

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		slog.Info("shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	if err := srv.Start(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped gracefully")
}
