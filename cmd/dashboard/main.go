package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/0x7030676e31/mediaplayer/internal/config"
	"github.com/0x7030676e31/mediaplayer/internal/log"
	"github.com/0x7030676e31/mediaplayer/internal/stream"
)

func main() {
	if err := run(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "dashboard: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to config file")
	serverURL := flag.String("server", "", "backend base URL (overrides config)")
	logLevel := flag.String("log-level", "", "log level (overrides config)")
	flag.Parse()

	logger := log.New(os.Stdout, "info")

	cfg, path, err := config.Load(logger, *configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *serverURL != "" {
		cfg.ServerURL = *serverURL
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	logger = log.New(os.Stdout, cfg.LogLevel)
	logger.Info().Str("config", path).Str("server", cfg.ServerURL).Msg("starting dashboard engine")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine := stream.New(cfg, logger)

	unsubscribe := engine.OnActivity(func(state string, id uint16) {
		logger.Info().Str("state", state).Uint16("client", id).Msg("client activity")
	})
	defer unsubscribe()

	engine.OnConnectivity(func(connected bool) {
		logger.Info().Bool("connected", connected).Msg("stream connectivity")
	})

	return engine.Run(ctx)
}
