package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/landsales/internal/repository"
)

type messageReader interface {
	ReadMessage(ctx context.Context) (kafkago.Message, error)
	Close() error
}

type AuditHandler func(ctx context.Context, entry repository.SaleAuditEntry, msg kafkago.Message) error

// AuditConsumer decodes sale audit entries from the audit topic.
type AuditConsumer struct {
	reader     messageReader
	logger     *zap.Logger
	retryDelay time.Duration
}

func NewAuditConsumer(brokers []string, topic, groupID string, logger *zap.Logger) *AuditConsumer {
	return newAuditConsumer(kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:        brokers,
		GroupID:        groupID,
		Topic:          topic,
		MinBytes:       10e3,
		MaxBytes:       10e6,
		CommitInterval: time.Second,
		MaxWait:        3 * time.Second,
	}), logger)
}

func newAuditConsumer(r messageReader, logger *zap.Logger) *AuditConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditConsumer{reader: r, logger: logger, retryDelay: 5 * time.Second}
}

// Run reads until ctx is cancelled. Malformed messages and handler errors are
// logged and skipped.
func (c *AuditConsumer) Run(ctx context.Context, handle AuditHandler) error {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("failed to read message", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.retryDelay):
			}
			continue
		}

		l := c.logger.With(zap.Int("partition", msg.Partition), zap.Int64("offset", msg.Offset))

		var entry repository.SaleAuditEntry
		if err := json.Unmarshal(msg.Value, &entry); err != nil {
			l.Warn("skipping malformed audit message", zap.Error(err))
			continue
		}
		if err := handle(ctx, entry, msg); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			l.Error("audit handler failed", zap.String("sale_id", entry.SaleID), zap.Error(err))
		}
	}
}

func (c *AuditConsumer) Close() error {
	if err := c.reader.Close(); err != nil {
		return fmt.Errorf("close kafka reader: %w", err)
	}
	return nil
}

// LogAudit is an AuditHandler that writes each entry to logger.
func LogAudit(logger *zap.Logger) AuditHandler {
	return func(_ context.Context, entry repository.SaleAuditEntry, msg kafkago.Message) error {
		logger.Info("sale audit entry",
			zap.String("action", entry.Action),
			zap.String("sale_id", entry.SaleID),
			zap.String("piece_id", entry.PieceID),
			zap.String("client_id", entry.Snapshot.ClientID),
			zap.String("price", entry.Snapshot.Price.String()),
			zap.String("deposit", entry.Snapshot.Deposit.String()),
			zap.String("fee", entry.Snapshot.Fee.String()),
			zap.String("reason", entry.Reason),
			zap.Time("recorded_at", entry.RecordedAt),
			zap.Time("message_time", msg.Time))
		return nil
	}
}
