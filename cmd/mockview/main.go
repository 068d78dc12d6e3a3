package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/harunnryd/mockview/pkg/logging"
	"github.com/harunnryd/mockview/pkg/mockview"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "mockview:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to the YAML config; mock providers are used when empty")
	envFile := flag.String("env", ".env", "dotenv file loaded before the config")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load %s: %w", *envFile, err)
	}

	cfg := mockview.DefaultConfig()
	if *configPath != "" {
		loaded, err := mockview.LoadConfig(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	logger := logging.InitLogger(logging.LogConfig{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})

	providers := mockview.NewProviderRegistry()
	registerProviders(providers)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := mockview.NewEngine(ctx, mockview.EngineOptions{
		Config:    cfg,
		Providers: providers,
		Logger:    logger,
	})
	if err != nil {
		return err
	}
	if err := app.Run(ctx); err != nil {
		slog.Error("engine_stopped", slog.String("error", err.Error()))
		return err
	}
	return nil
}
