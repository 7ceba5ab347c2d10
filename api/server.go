package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/thisisjab/logtable/engine"
	"github.com/thisisjab/logtable/processor"
)

const shutdownTimeout = 10 * time.Second

// StatsProvider reports target counters. *engine.Target implements it.
type StatsProvider interface {
	Stats() engine.Stats
	TableName() string
}

// Services are the components the handlers talk to.
type Services struct {
	// Writer receives ingested records.
	Writer engine.RecordWriter
	Stats  StatsProvider
	// Processor decodes ingested records. Defaults to the JSON processor.
	Processor engine.LogProcessor
	// Gatherer backs /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
}

type server struct {
	cfg      Config
	logger   *slog.Logger
	services Services
	limiter  *clientLimiter
}

func NewServer(cfg Config, services Services, logger *slog.Logger) (*server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.MaxBodyBytes == 0 {
		cfg.MaxBodyBytes = 1_048_576
	}
	if cfg.MaxRecords == 0 {
		cfg.MaxRecords = 1000
	}

	if services.Processor == nil {
		p, err := processor.NewJsonLogProcessor(processor.JsonLogProcessorConfig{Name: "api"})
		if err != nil {
			return nil, err
		}
		services.Processor = p
	}

	s := &server{
		cfg:      cfg,
		logger:   logger,
		services: services,
	}
	if cfg.RateLimit.RequestsPerSecond > 0 {
		s.limiter = newClientLimiter(cfg.RateLimit)
	}

	return s, nil
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/healthcheck", s.healthCheckHandler)
	mux.HandleFunc("GET /api/stats", s.statsHandler)
	mux.Handle("POST /api/logs", s.rateLimitMiddleware(http.HandlerFunc(s.ingestLogsHandler)))

	if s.services.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.services.Gatherer, promhttp.HandlerOpts{}))
	}

	return s.recoverPanicMiddleware(s.requestLoggerMiddleware(s.corsMiddleware(mux)))
}

func (s *server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.Addr,
		Handler: s.routes(),
	}

	go func() {
		<-ctx.Done()
		s.logger.Info("shutting down server", "addr", s.cfg.Addr)
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("failed to shutdown server", "addr", s.cfg.Addr, "error", err)
		}
	}()

	var serverErr error
	if s.cfg.CertFile != "" && s.cfg.KeyFile != "" {
		s.logger.Info("starting server with TLS", "addr", s.cfg.Addr)
		serverErr = srv.ListenAndServeTLS(s.cfg.CertFile, s.cfg.KeyFile)
	} else {
		s.logger.Info("starting server without TLS", "addr", s.cfg.Addr)
		serverErr = srv.ListenAndServe()
	}

	if serverErr != nil && serverErr != http.ErrServerClosed {
		return serverErr
	}

	return nil
}
