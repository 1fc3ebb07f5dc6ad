package main

import (
	"context"
	"log"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/landsales/internal/config"
	"gitlab.ozon.dev/pupkingeorgij/landsales/internal/kafka"
	"gitlab.ozon.dev/pupkingeorgij/landsales/internal/logger"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}

	l, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Logger init error: %v", err)
	}
	defer func() { _ = l.Sync() }()

	consumer := kafka.NewAuditConsumer(cfg.KafkaBrokers, cfg.AuditTopic, cfg.ConsumerGroup, l.Named("consumer"))
	defer func() {
		l.Info("closing kafka reader")
		if err := consumer.Close(); err != nil {
			l.Error("error closing kafka reader", zap.Error(err))
		}
	}()

	l.Info("consumer connected",
		zap.String("topic", cfg.AuditTopic),
		zap.String("brokers", strings.Join(cfg.KafkaBrokers, ",")),
		zap.String("group", cfg.ConsumerGroup))

	if err := consumer.Run(ctx, kafka.LogAudit(l.Named("audit"))); err != nil {
		l.Error("consumer stopped", zap.Error(err))
		return
	}
	l.Info("shutdown signal received, consumer stopped")
}
