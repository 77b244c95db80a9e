package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"fintrack/internal/amqp"
	"fintrack/internal/config"
	"fintrack/internal/ledger"
	"fintrack/internal/log"
	"fintrack/internal/sheets"
	gsheet "fintrack/internal/sheets/google"
	"fintrack/internal/storage"
	"fintrack/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := log.New(log.DefaultConfig())
	log.SetDefault(logger)

	logger.Info("Starting fintrack-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	if err := storage.RunMigrations(cfg.SQLiteDBPath); err != nil {
		logger.Error("Migrations failed", log.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}

	db, err := storage.Open(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to open database", log.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer db.Close()

	repo := storage.NewRepository(db)
	engine := ledger.NewEngine(repo, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Google Sheets summary mirror is optional.
	var sheetsClient *gsheet.Client
	if cfg.GoogleSpreadsheetID != "" {
		sheetsClient, err = gsheet.NewFromEnv(ctx)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
			os.Exit(1)
		}
		logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	var writer sheets.SummaryWriter
	if sheetsClient != nil {
		writer = sheetsClient
	}
	subWorker := worker.NewSubscriptionWorker(repo, engine, writer, logger)

	amqpClient := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	defer amqpClient.Close()

	go func() {
		err := amqpClient.ConsumeSubscriptionEvents(ctx, func(msg *amqp.SubscriptionEventMessage) error {
			return subWorker.HandleSubscriptionEvent(ctx, msg)
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", log.FieldError, err)
		}
		cancel()
	}()

	// Periodic summary push keeps the spreadsheet mirror fresh.
	if sheetsClient != nil && cfg.SummaryOwnerEmail != "" {
		ticker := time.NewTicker(cfg.SummarySyncInterval)
		defer ticker.Stop()

		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					owner, err := repo.GetUserByEmail(ctx, cfg.SummaryOwnerEmail)
					if err != nil {
						logger.Error("Summary owner lookup failed",
							log.FieldError, err,
							log.FieldEmail, cfg.SummaryOwnerEmail)
						continue
					}
					if err := subWorker.PushMonthlySummaries(ctx, owner.ID); err != nil {
						logger.Error("Summary push failed", log.FieldError, err)
					}
				}
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	cancel()
	logger.Info("Worker shutdown complete")
}
