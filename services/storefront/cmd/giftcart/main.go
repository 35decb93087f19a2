package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/utafrali/giftcart/pkg/logger"
	"github.com/utafrali/giftcart/pkg/tracing"
	"github.com/utafrali/giftcart/services/storefront/internal/cli"
	"github.com/utafrali/giftcart/services/storefront/internal/config"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Load configuration from environment variables.
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "giftcart:", err)
		return cli.ExitFailure
	}

	// Logs go to stderr so command output stays clean.
	log := logger.NewWithOptions(logger.Options{
		Service: "storefront",
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Writer:  os.Stderr,
	})
	slog.SetDefault(log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	tracerShutdown, err := tracing.InitTracer(ctx, cfg.Tracing)
	if err != nil {
		fmt.Fprintln(os.Stderr, "giftcart:", err)
		return cli.ExitFailure
	}
	defer func() {
		flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer flushCancel()
		if err := tracerShutdown(flushCtx); err != nil {
			log.Warn("tracer shutdown", slog.String("error", err.Error()))
		}
	}()

	env := &cli.Env{
		Config: cfg,
		Logger: log,
		Out:    os.Stdout,
		ErrOut: os.Stderr,
	}
	defer func() { _ = env.Close() }()

	err = cli.NewRootCommand(env).ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "giftcart:", err)
	}
	return cli.ExitCode(err)
}
