package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"github.com/samber/lo"

	"messenger/api"
	"messenger/auth"
	"messenger/domain"
	"messenger/internal"
	"messenger/observability"
	"messenger/repositories"
	"messenger/runtime"
	"messenger/runtime/workers"
	"messenger/services"
)

const searchBatchSize = 50

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and centralizes error reporting.
// This pattern is preferred over calling os.Exit or panic directly because:
// 1. It ensures all 'defer' statements (like database cleanup) are executed before the program exits.
// 2. It improves testability by decoupling the initialization logic from the main entry point.
// 3. It provides a structured way to handle graceful shutdowns for the API and background workers.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Storage (BadgerDB + Bluge)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING).
		WithLogger(repositories.NewBadgerLogger(log)))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	//  Defer will be executed before run() returned anything to main()
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	blugeWriter, err := bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
	if err != nil {
		return fmt.Errorf("search index opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing Bluge writer...")
		_ = blugeWriter.Close()
	}()

	// 3. Repositories & Telemetry
	messageRepository := repositories.NewMessageRepository(db, log)
	userRepository := repositories.NewUserRepository(db)
	chatRepository := repositories.NewChatRepository(db)
	watermarkRepository := repositories.NewWatermarkRepository(db)
	searchRepository := repositories.NewSearchRepository(db, blugeWriter, log,
		lo.ToPtr(config.HistoryPageSize), searchBatchSize)

	stats := observability.NewDeliveryStats(log)
	indexQueue := make(chan domain.Message, config.IndexQueueSize)

	// 4. Identity & Delivery Engine
	issuer := auth.NewTokenIssuer(config.AccessTokenSecret, config.RefreshTokenSecret,
		config.AccessTokenDuration, config.RefreshTokenDuration)
	gate := auth.NewGate(log, issuer, chatRepository)
	engine := runtime.NewEngine(log, gate, messageRepository, watermarkRepository, stats, indexQueue,
		runtime.Options{
			SoftCap:     config.ConnectionBufferSize,
			Grace:       config.SlowConsumerGrace,
			PageSize:    config.HistoryPageSize,
			MaxLength:   config.MessageMaxLength,
			Attempts:    config.PersistAttempts,
			BackoffBase: config.PersistBackoffBase,
		})

	// 5. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 6. Background workers under supervision
	sup := workers.NewSupervisor(log, config.RestartInterval)
	sup.Add(
		workers.NewSearchIndexer(log, searchRepository, indexQueue, config.IndexFlushInterval),
		workers.NewBadgerGC(log, db, config.GCInterval),
		workers.NewStatsSampler(log, stats, config.StatsInterval),
	)
	go sup.Run(ctx)

	// Optional storage dashboard, same pages the viewer binary serves
	if config.DebugPort > 0 {
		internal.StartDebugServer(db, config.DebugPort, "/inspect", nil, func() map[string]any {
			snapshot := stats.Snapshot()
			return map[string]any{
				"ConnectionsActive": snapshot.ConnectionsActive,
				"MessagesAccepted":  snapshot.MessagesAccepted,
				"MessageRate":       fmt.Sprintf("%.2f msg/s", snapshot.MessageRate),
				"Goroutines":        snapshot.Goroutines,
			}
		})
	}

	// 7. Services & API Server
	accountService := services.NewAccountService(userRepository, issuer)
	chatService := services.NewChatService(chatRepository, userRepository)
	historyService := services.NewHistoryService(messageRepository, chatRepository,
		searchRepository, config.HistoryPageSize)

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := api.NewServer(log, address, accountService, chatService, historyService,
		issuer, engine, stats, config.ReadLimitBytes)

	// Use an error channel to capture Listen() issues
	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting API server", "address", address, "at", time.Now().UTC())
		if err := server.Listen(); err != nil {
			errChan <- fmt.Errorf("api server error: %w", err)
		}
	}()

	// 8. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 9. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("API shutdown failed", "error", err)
	}
	sup.Stop()
	log.Info("Program stopped cleanly")

	return nil
}
