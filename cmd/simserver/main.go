package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/0x7030676e31/mediaplayer/internal/config"
	"github.com/0x7030676e31/mediaplayer/internal/log"
	"github.com/0x7030676e31/mediaplayer/internal/simserver"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "simserver: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to config file")
	addr := flag.String("addr", "", "listen address (overrides config)")
	flag.Parse()

	logger := log.New(os.Stdout, "debug")

	cfg, path, err := config.Load(logger, *configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	logger.Info().Str("config", path).Str("addr", cfg.Addr).Msg("starting backend simulator")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return simserver.New(cfg, logger).Run(ctx)
}
