package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/finvolt/ledgercore/internal/clock"
	"github.com/finvolt/ledgercore/internal/config"
	"github.com/finvolt/ledgercore/internal/db"
	"github.com/finvolt/ledgercore/internal/messaging"
	"github.com/finvolt/ledgercore/internal/outbox"
	"github.com/finvolt/ledgercore/internal/queue"
	"github.com/finvolt/ledgercore/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := cfg.Logger.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting ledger worker",
		"log_level", cfg.Logger.Level,
		"outbox_batch_size", cfg.Outbox.BatchSize,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.Connect(ctx, &cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	clk := clock.System{}

	eventPublisher := messaging.NewRabbitMQPublisher(&cfg.RabbitMQ, logger)
	defer eventPublisher.Close()

	outboxPublisher := outbox.NewPublisher(database, eventPublisher, clk, cfg.Outbox.BatchSize, logger)

	processor := service.NewProcessor(
		database,
		clk,
		service.RetryPolicyFromConfig(&cfg.Processor),
		cfg.Processor.LockTimeout,
		logger,
	)
	queueProcessor := queue.NewProcessor(database, processor, clk, logger)

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		outboxPublisher.Run(ctx, cfg.Outbox.PollInterval)
	}()

	go func() {
		defer wg.Done()
		queueProcessor.Run(ctx, cfg.Queue.PollInterval)
	}()

	<-ctx.Done()
	logger.Info("shutting down worker...")
	wg.Wait()
	logger.Info("worker stopped")
}
