package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"carbon-market/mrv-backend/internal/config"
	"carbon-market/mrv-backend/internal/issuance"
	"carbon-market/mrv-backend/internal/verification"
)

// The issuance worker drains the credit issuance outbox on a schedule,
// redelivering requests the API could not publish inline. Delivery stays
// at-most-once per report: published rows are marked and skipped.
func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logger.Sync()

	db, err := sqlx.Connect("postgres", cfg.Database.GetDatabaseURL())
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	var publisher issuance.Publisher
	if cfg.Issuance.TopicARN != "" {
		publisher, err = issuance.NewSNSPublisher(context.Background(),
			cfg.Issuance.Region, cfg.Issuance.TopicARN, logger)
		if err != nil {
			logger.Fatal("Failed to create issuance publisher", zap.Error(err))
		}
	} else {
		logger.Warn("No issuance topic configured, using log publisher")
		publisher = &issuance.LogPublisher{Logger: logger}
	}

	dispatcher := issuance.NewDispatcher(verification.NewRepository(db), publisher, logger)

	interval := cfg.Issuance.DispatchInterval
	if interval <= 0 {
		interval = time.Minute
	}
	batch := cfg.Issuance.DispatchBatch
	if batch <= 0 {
		batch = 50
	}

	c := cron.New()
	_, err = c.AddFunc(fmt.Sprintf("@every %s", interval), func() {
		ctx, cancel := context.WithTimeout(context.Background(), interval)
		defer cancel()
		if err := dispatcher.DispatchPending(ctx, batch); err != nil {
			logger.Error("Issuance dispatch run failed", zap.Error(err))
		}
	})
	if err != nil {
		logger.Fatal("Failed to schedule dispatcher", zap.Error(err))
	}

	c.Start()
	logger.Info("Issuance worker started", zap.Duration("interval", interval))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx := c.Stop()
	<-ctx.Done()
	logger.Info("Issuance worker stopped")
}
