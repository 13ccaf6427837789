package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tracesanford134/aksol-dapp/service/activity"
	"github.com/tracesanford134/aksol-dapp/service/config"
	"github.com/tracesanford134/aksol-dapp/service/db"
	"github.com/tracesanford134/aksol-dapp/service/metrics"
	natspkg "github.com/tracesanford134/aksol-dapp/service/nats"
	"github.com/tracesanford134/aksol-dapp/service/pipeline"
	solanasvc "github.com/tracesanford134/aksol-dapp/service/solana"
	"github.com/tracesanford134/aksol-dapp/service/ticker"
	"github.com/tracesanford134/aksol-dapp/service/wallet"
)

// Server is the HTTP server for the transfer panel.
type Server struct {
	addr         string
	cfg          *config.Config
	pipeline     *pipeline.Pipeline
	signer       wallet.Signer
	activityLog  *activity.Log
	chain        *solanasvc.Client
	ticker       *ticker.Ticker
	store        *db.Store
	publisher    natspkg.Publisher
	ssePublisher *SSEPublisher
	metrics      *metrics.Metrics
	logger       *slog.Logger
	server       *http.Server
}

// New creates a new HTTP server with the given dependencies.
// The ticker, store, publisher, ssePublisher and metrics are optional; when
// nil the corresponding endpoints are disabled and the rest of the panel
// keeps working.
func New(addr string, cfg *config.Config, pl *pipeline.Pipeline, signer wallet.Signer, chain *solanasvc.Client, tk *ticker.Ticker, store *db.Store, publisher natspkg.Publisher, ssePublisher *SSEPublisher, m *metrics.Metrics, logger *slog.Logger) *Server {
	return &Server{
		addr:         addr,
		cfg:          cfg,
		pipeline:     pl,
		signer:       signer,
		activityLog:  pl.Activity(),
		chain:        chain,
		ticker:       tk,
		store:        store,
		publisher:    publisher,
		ssePublisher: ssePublisher,
		metrics:      m,
		logger:       logger,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	mux := http.NewServeMux()

	// Pipeline routes
	mux.Handle("POST /api/v1/transfers", handleSubmitTransfer(s.pipeline, s.signer, s.store, s.publisher, s.cfg, s.logger))
	mux.Handle("POST /api/v1/swaps", handleSubmitSwap(s.pipeline, s.signer, s.store, s.publisher, s.cfg, s.logger))

	// Panel read routes
	mux.Handle("GET /api/v1/activity", handleGetActivity(s.activityLog, s.logger))
	mux.Handle("GET /api/v1/transactions/{signature}", handleLookupSignature(s.chain, s.logger))
	mux.Handle("GET /api/v1/balance/{address}", handleGetBalance(s.chain, s.cfg, s.logger))
	mux.Handle("GET /api/v1/price", handleGetPrice(s.ticker, s.logger))
	mux.Handle("GET /api/v1/history", handleListHistory(s.store, s.logger))

	// SSE streaming endpoints (if SSE publisher is configured)
	if s.ssePublisher != nil {
		mux.Handle("GET /api/v1/stream/activity", handleStreamActivity(s.ssePublisher, s.logger))
		mux.Handle("GET /api/v1/stream/activity/{address}", handleStreamActivity(s.ssePublisher, s.logger))
		s.logger.Info("SSE streaming endpoints enabled")
	} else {
		s.logger.Warn("SSE publisher not configured, streaming endpoints disabled")
	}

	// Health check endpoint
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Prometheus metrics endpoint (if metrics collector is configured)
	if s.metrics != nil {
		mux.Handle("GET /metrics", promhttp.Handler())
		s.logger.Info("Prometheus metrics endpoint enabled")
	}

	var handler http.Handler = mux
	if s.metrics != nil {
		handler = metrics.HTTPMetricsMiddleware(s.metrics, "panel")(handler)
	}
	handler = corsMiddleware(handler)

	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		// Pipeline executions hold the request open through the confirmation
		// wait, so the write timeout must exceed the confirmation bound.
		WriteTimeout: s.cfg.ConfirmTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting HTTP server", "addr", s.addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	// Close SSE publisher first (disconnects all clients)
	if s.ssePublisher != nil {
		s.ssePublisher.Close()
	}

	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// corsMiddleware adds CORS headers to all responses and handles OPTIONS preflight requests.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
