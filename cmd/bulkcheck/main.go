package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/samvad-hq/bulkcheck/internal/app"
	"github.com/samvad-hq/bulkcheck/internal/config"
	"github.com/samvad-hq/bulkcheck/internal/logger"
	"github.com/samvad-hq/bulkcheck/internal/observability"
)

func main() {
	os.Exit(exitCode(os.Stderr, run()))
}

func exitCode(stderr io.Writer, err error) int {
	if err == nil {
		return 0
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return 1
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.Init(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	logger.DebugObj("bulkcheck starting", "config", cfg.Redacted())
	if cfg.UsingPlaceholderKey() {
		logger.WarnObj("no api key configured; set TWITTER_API_KEY", "api_key", config.PlaceholderAPIKey)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewMetrics()
	if cfg.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.MetricsAddr); err != nil {
				logger.ErrorObj("metrics server failed", "error", err.Error())
			}
		}()
		logger.InfoObj("metrics server listening", "metrics_addr", cfg.MetricsAddr)
	}

	rt, err := app.NewRuntime(ctx, cfg, log, metrics)
	if err != nil {
		logger.ErrorObj("failed to initialize runtime", "error", err.Error())
		return err
	}
	defer rt.Close()

	return newRootCmd(rt, cfg, os.Stdout).ExecuteContext(ctx)
}
