package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"tickex/internal/config"
	"tickex/internal/exchange"
	"tickex/internal/journal"
	"tickex/internal/liquidity"
	"tickex/internal/logging"
	"tickex/internal/msg"
	"tickex/internal/observability"
	"tickex/internal/server"
	"tickex/internal/store"
)

func main() {
	// Load configuration
	cfg := config.LoadConfig("exchanged")

	// Initialize logger
	logger, err := logging.NewLogger(cfg.ServiceName, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting exchange server",
		zap.Int("http_port", cfg.HTTPPort),
		zap.Int("health_port", cfg.HealthPort),
		zap.Strings("instruments", cfg.Instruments),
		zap.Bool("maker_enabled", cfg.MakerEnabled),
		zap.Int64("maker_seed", cfg.MakerSeed),
		zap.Bool("journal_enabled", cfg.JournalEnabled),
		zap.Bool("kafka_enabled", cfg.KafkaEnabled),
	)

	// Create data directory
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		logger.Fatal("failed to create data directory", zap.Error(err))
	}

	// Build the exchange
	ex, err := exchange.New(logger, instrumentConfigs(cfg))
	if err != nil {
		logger.Fatal("failed to create exchange", zap.Error(err))
	}

	// Open trade store
	dbPath := filepath.Join(cfg.DataDir, "trades.db")
	st, err := store.Open(dbPath)
	if err != nil {
		logger.Fatal("failed to open trade store", zap.Error(err))
	}
	defer st.Close()
	logger.Info("trade store opened", zap.String("path", dbPath))

	// Open request journal, replay prior state, then attach it so new
	// requests are recorded without re-recording the replayed ones
	if cfg.JournalEnabled {
		jnlPath := filepath.Join(cfg.DataDir, "journal")
		jnl, err := journal.Open(jnlPath)
		if err != nil {
			logger.Fatal("failed to open journal", zap.Error(err))
		}
		defer jnl.Close()

		if n := jnl.Len(); n > 0 {
			logger.Info("replaying journal", zap.Uint64("records", n))
			start := time.Now()
			if err := server.Replay(context.Background(), jnl, ex, st); err != nil {
				logger.Fatal("journal replay failed", zap.Error(err))
			}
			logger.Info("journal replayed",
				zap.Uint64("records", n),
				zap.Uint64("tick", ex.CurrentTick()),
				zap.Duration("elapsed", time.Since(start)),
			)
		}
		ex.SetJournal(jnl)
	}

	// Health checker
	health := observability.NewHealthChecker(logger)
	go func() {
		if err := health.StartHTTPServer(cfg.HealthAddr()); err != nil && err != http.ErrServerClosed {
			logger.Error("health server failed", zap.Error(err))
		}
	}()

	// Kafka producer (optional)
	var producer *msg.Producer
	if cfg.KafkaEnabled {
		brokers := strings.Split(cfg.KafkaBrokers, ",")
		producer, err = msg.NewProducer(brokers, logger)
		if err != nil {
			logger.Fatal("failed to create kafka producer", zap.Error(err))
		}
		defer producer.Close()
		health.SetKafkaReady(true)
	}

	// HTTP API
	srv := server.New(ex, st, producer, logger)
	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr(),
		Handler: srv.Routes(),
	}
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr()))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown failed", zap.Error(err))
	}
	if err := health.Shutdown(shutdownCtx); err != nil {
		logger.Error("health shutdown failed", zap.Error(err))
	}
	logger.Info("shutdown complete", zap.Uint64("tick", ex.CurrentTick()))
}

func instrumentConfigs(cfg *config.Config) []exchange.InstrumentConfig {
	out := make([]exchange.InstrumentConfig, 0, len(cfg.Instruments))
	for i, sym := range cfg.Instruments {
		ic := exchange.InstrumentConfig{Symbol: sym}
		if cfg.MakerEnabled {
			ic.Maker = &liquidity.Config{
				Mid:        cfg.MakerMid,
				HalfSpread: cfg.MakerHalfSpread,
				Quantity:   cfg.MakerQuantity,
				Walk:       cfg.MakerWalk,
				// Offset per instrument so books do not quote in lockstep.
				Seed: cfg.MakerSeed + int64(i),
			}
		}
		out = append(out, ic)
	}
	return out
}
