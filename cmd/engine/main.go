package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/thisisjab/logtable/api"
	"github.com/thisisjab/logtable/config"
	"github.com/thisisjab/logtable/engine"
)

func main() {
	// Create a context that can be cancelled
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfgPath := flag.String("config", "./.config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		panic(err)
	}
	config.FromEnv(&cfg)

	components, logger, err := cfg.Parse(ctx)
	if err != nil {
		if logger != nil {
			logger.Error("cannot parse config file", "error", err)
			os.Exit(1)
		}
		panic(fmt.Errorf("cannot parse config file: %w", err))
	}

	if components.Engine == nil {
		logger.Error("no log sources are configured")
		components.Close(context.Background()) //nolint:errcheck
		os.Exit(1)
	}

	// Setup signal handling to catch Ctrl+C (SIGINT) or Terminate (SIGTERM)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("received signal. shutting down.", "signal", sig)
		cancel()
	}()

	e, err := engine.New(*components.Engine, logger)
	if err != nil {
		logger.Error("engine error.", "error", err)
		components.Close(context.Background()) //nolint:errcheck
		os.Exit(1)
	}

	var wg sync.WaitGroup

	// The API runs next to the pipeline when configured, sharing its target.
	if components.API != nil {
		server, err := api.NewServer(*components.API, api.Services{
			Writer:   components.Target,
			Stats:    components.Target,
			Gatherer: components.Registry,
		}, logger)
		if err != nil {
			logger.Error("server error.", "error", err)
			components.Close(context.Background()) //nolint:errcheck
			os.Exit(1)
		}
		wg.Go(func() {
			if err := server.Serve(ctx); err != nil {
				logger.Error("server error.", "error", err)
				cancel()
			}
		})
	}

	if err := e.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("engine error.", "error", err)
	}
	logger.Info("engine stopped.")

	// Sources like stdin end on their own; keep serving the API until a signal.
	if components.API != nil {
		<-ctx.Done()
	}
	cancel()
	wg.Wait()

	if err := components.Close(context.Background()); err != nil {
		logger.Error("target did not drain cleanly", "error", err, "stats", components.Target.Stats())
		os.Exit(1)
	}
	logger.Info("target drained.", "stats", components.Target.Stats())
}
