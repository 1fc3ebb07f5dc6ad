package kafka

import (
	"context"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type Producer interface {
	SendMessage(ctx context.Context, topic string, key []byte, value []byte) error
	Close() error
}

// messageWriter is the part of *kafkago.Writer the producer needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

type BrokerProducer struct {
	writer messageWriter
	logger *zap.Logger
}

// NewBrokerProducer writes to the given brokers. The topic is set per message,
// so one producer serves every outbox topic.
func NewBrokerProducer(brokers []string, logger *zap.Logger) *BrokerProducer {
	return newBrokerProducer(&kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
	}, logger)
}

func newBrokerProducer(w messageWriter, logger *zap.Logger) *BrokerProducer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BrokerProducer{writer: w, logger: logger}
}

func (p *BrokerProducer) SendMessage(ctx context.Context, topic string, key []byte, value []byte) error {
	err := p.writer.WriteMessages(ctx, kafkago.Message{
		Topic: topic,
		Key:   key,
		Value: value,
		Time:  time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("write message to %s: %w", topic, err)
	}
	p.logger.Debug("message written", zap.String("topic", topic), zap.ByteString("key", key))
	return nil
}

func (p *BrokerProducer) Close() error {
	p.logger.Info("closing kafka producer")
	return p.writer.Close()
}

// LogProducer logs messages instead of sending them. It stands in for a broker
// in local runs.
type LogProducer struct {
	logger *zap.Logger
}

func NewLogProducer(logger *zap.Logger) *LogProducer {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("using log producer, audit messages are not sent to kafka")
	return &LogProducer{logger: logger}
}

func (p *LogProducer) SendMessage(ctx context.Context, topic string, key []byte, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.logger.Info("audit message",
		zap.String("topic", topic),
		zap.ByteString("key", key),
		zap.ByteString("value", value))
	return nil
}

func (p *LogProducer) Close() error {
	return nil
}
