package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/thisisjab/logtable/api"
	"github.com/thisisjab/logtable/config"
)

func main() {
	// Create a context that can be cancelled
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfgPath := flag.String("config", "./.config.yaml", "path to config file")
	addr := flag.String("addr", "", "listen address, overrides api.addr")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		panic(err)
	}
	config.FromEnv(&cfg)

	if cfg.API == nil {
		cfg.API = &api.Config{Addr: "localhost:8000"}
	}
	if *addr != "" {
		cfg.API.Addr = *addr
	}
	// The server ingests over HTTP only.
	cfg.Sources = nil

	components, logger, err := cfg.Parse(ctx)
	if err != nil {
		if logger != nil {
			logger.Error("cannot parse config file", "error", err)
			os.Exit(1)
		}
		panic(fmt.Errorf("cannot parse config file: %w", err))
	}

	// Panic recovery
	defer func() {
		if r := recover(); r != nil {
			logger.Error("server panic", "error", r)
		}
	}()

	// Setup signal handling to catch Ctrl+C (SIGINT) or Terminate (SIGTERM)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Run the server in a separate goroutine so we can wait for signals
	go func() {
		sig := <-sigChan
		logger.Info("received signal. shutting down.", "signal", sig)
		cancel()
	}()

	// Create server
	server, err := api.NewServer(*cfg.API, api.Services{
		Writer:   components.Target,
		Stats:    components.Target,
		Gatherer: components.Registry,
	}, logger)
	if err != nil {
		logger.Error("server error.", "error", err)
		components.Close(context.Background()) //nolint:errcheck
		os.Exit(1)
	}

	// Run server
	serveErr := server.Serve(ctx)
	if serveErr != nil {
		logger.Error("server error.", "error", serveErr)
	}

	if err := components.Close(context.Background()); err != nil {
		logger.Error("target did not drain cleanly", "error", err, "stats", components.Target.Stats())
		os.Exit(1)
	}
	logger.Info("server stopped.", "stats", components.Target.Stats())

	if serveErr != nil {
		os.Exit(1)
	}
}
