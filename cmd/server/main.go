package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gagliardetto/solana-go/rpc/ws"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/tracesanford134/aksol-dapp/service/activity"
	"github.com/tracesanford134/aksol-dapp/service/backend"
	"github.com/tracesanford134/aksol-dapp/service/config"
	"github.com/tracesanford134/aksol-dapp/service/db"
	"github.com/tracesanford134/aksol-dapp/service/metrics"
	natspkg "github.com/tracesanford134/aksol-dapp/service/nats"
	"github.com/tracesanford134/aksol-dapp/service/pipeline"
	"github.com/tracesanford134/aksol-dapp/service/server"
	solanasvc "github.com/tracesanford134/aksol-dapp/service/solana"
	"github.com/tracesanford134/aksol-dapp/service/ticker"
	"github.com/tracesanford134/aksol-dapp/service/wallet"
)

func main() {
	// Load and validate configuration from environment
	// This fails fast if any required config is missing or invalid
	cfg := config.MustLoad()

	logger := setupLogger(cfg.LogLevel)
	logger.Info("starting panel server",
		"addr", cfg.ServerAddr,
		"cluster", cfg.Cluster,
		"log_level", cfg.LogLevel,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.NewMetrics(prometheus.DefaultRegisterer)

	// Solana RPC + websocket clients for the configured cluster
	wsClient, err := ws.Connect(ctx, cfg.WSURL())
	if err != nil {
		logger.Error("failed to connect to solana websocket", "url", cfg.WSURL(), "error", err)
		os.Exit(1)
	}
	defer wsClient.Close()

	solanaRPC := solanasvc.NewRPCClient(cfg.RPCURL(), wsClient)
	chain := solanasvc.NewClient(solanaRPC, cfg.Cluster, m, logger)
	logger.Info("initialized solana RPC client", "url", cfg.RPCURL())

	// Wallet signer. Without a keypair the panel runs in read-only mode and
	// the pipeline rejects submissions during validation.
	var signer wallet.Signer
	if cfg.KeypairPath != "" {
		keypairSigner, err := wallet.LoadKeypairSigner(cfg.KeypairPath, chain, logger)
		if err != nil {
			logger.Error("failed to load wallet keypair", "path", cfg.KeypairPath, "error", err)
			os.Exit(1)
		}
		signer = keypairSigner
		logger.Info("wallet loaded", "address", signer.PublicKey().String())
	} else {
		signer = wallet.NewDisconnectedSigner()
		logger.Warn("no wallet keypair configured, submissions will be rejected")
	}

	backendClient := backend.NewClient(cfg.BackendBaseURL, nil, m, logger)

	activityLog := activity.NewLog(activity.DefaultCapacity)
	pl := pipeline.New(pipeline.Params{
		Backend:        backendClient,
		Signer:         signer,
		Confirmer:      chain,
		Activity:       activityLog,
		Commitment:     cfg.CommitmentType(),
		ConfirmTimeout: cfg.ConfirmTimeout,
		Metrics:        m,
		Logger:         logger,
	})

	// Optional persistent history store
	var store *db.Store
	if cfg.DatabaseURL != "" {
		dbPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer dbPool.Close()

		if err := dbPool.Ping(ctx); err != nil {
			logger.Error("failed to ping database", "error", err)
			os.Exit(1)
		}

		store = db.NewStore(dbPool, m)
		if err := store.EnsureSchema(ctx); err != nil {
			logger.Error("failed to ensure database schema", "error", err)
			os.Exit(1)
		}
		logger.Info("connected to database")
	} else {
		logger.Warn("DATABASE_URL not set, history endpoint disabled")
	}

	// Optional NATS outcome publisher + SSE stream
	var publisher natspkg.Publisher
	var ssePublisher *server.SSEPublisher
	if cfg.NATSURL != "" {
		jsPublisher, err := natspkg.NewPublisher(cfg.NATSURL, m, logger)
		if err != nil {
			logger.Error("failed to initialize NATS publisher", "error", err)
			os.Exit(1)
		}
		defer jsPublisher.Close()
		publisher = jsPublisher

		ssePublisher, err = server.NewSSEPublisher(cfg.NATSURL, m, logger)
		if err != nil {
			logger.Error("failed to initialize SSE publisher", "error", err)
			os.Exit(1)
		}
	} else {
		logger.Warn("NATS_URL not set, outcome events and streaming disabled")
	}

	// Price ticker polls in the background for the panel's SOL/USD display
	tk := ticker.New(cfg.PriceAPIURL, cfg.PricePollInterval, nil, m, logger)
	go tk.Run(ctx)

	httpServer := server.New(cfg.ServerAddr, cfg, pl, signer, chain, tk, store, publisher, ssePublisher, m, logger)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- httpServer.Start()
	}()

	// Wait for shutdown signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("server error", "error", err)
		os.Exit(1)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown server gracefully", "error", err)
			os.Exit(1)
		}

		logger.Info("server shutdown complete")
	}
}

// setupLogger creates a structured logger with the given log level.
func setupLogger(levelStr string) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
