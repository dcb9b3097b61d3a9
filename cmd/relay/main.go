package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"commerce-backoffice/internal/config"
	"commerce-backoffice/internal/db"
	"commerce-backoffice/internal/events"
	outboxrepo "commerce-backoffice/internal/repository/outbox"
)

func main() {
	cfg := config.FromEnv()
	logger := log.New(os.Stdout, "[relay] ", log.LstdFlags|log.LUTC|log.Lshortfile)

	if len(cfg.KafkaBrokers) == 0 {
		logger.Fatalf("KAFKA_BROKERS is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.DBConnString, cfg.DBMaxConns)
	if err != nil {
		logger.Fatalf("connect db: %v", err)
	}
	defer pool.Close()

	writer := events.NewWriter(cfg.KafkaBrokers)
	defer writer.Close()

	relay := events.NewRelay(outboxrepo.NewPostgres(pool), writer, cfg.RelayInterval, logger)
	logger.Printf("relaying outbox to brokers=%v", cfg.KafkaBrokers)
	if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("relay stopped: %v", err)
	}
	logger.Println("relay stopped")
}
