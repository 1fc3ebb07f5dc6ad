package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/landsales/internal/db"
	"gitlab.ozon.dev/pupkingeorgij/landsales/internal/metrics"
	"gitlab.ozon.dev/pupkingeorgij/landsales/internal/repository"
	"gitlab.ozon.dev/pupkingeorgij/landsales/internal/storage"
)

var errShuttingDown = errors.New("publisher shutting down")

type PublisherConfig struct {
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
}

// Publisher relays outbox tasks written next to sale audit rows to the broker.
// Tasks are claimed in a short transaction and sent outside of it, so a crash
// between the two leaves them PROCESSING for an operator to inspect.
type Publisher struct {
	db             db.DB
	repo           storage.OutboxTaskRepository
	producer       Producer
	config         PublisherConfig
	logger         *zap.Logger
	timeNow        func() time.Time
	wg             sync.WaitGroup
	shutdownSignal chan struct{}
	stopOnce       sync.Once
}

func NewPublisher(database db.DB, repo storage.OutboxTaskRepository, producer Producer, config PublisherConfig, logger *zap.Logger) *Publisher {
	if config.PollInterval <= 0 {
		config.PollInterval = 2 * time.Second
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 50
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{
		db:             database,
		repo:           repo,
		producer:       producer,
		config:         config,
		logger:         logger,
		timeNow:        time.Now,
		shutdownSignal: make(chan struct{}),
	}
}

func (p *Publisher) Run(ctx context.Context) {
	p.logger.Info("starting outbox publisher", zap.Duration("poll_interval", p.config.PollInterval))
	p.wg.Add(1)
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := p.ProcessBatch(ctx); err != nil && !errors.Is(err, errShuttingDown) {
				p.logger.Error("outbox batch failed", zap.Error(err))
			}
		case <-p.shutdownSignal:
			p.logger.Info("outbox publisher stopped")
			return
		case <-ctx.Done():
			p.logger.Info("outbox publisher context cancelled")
			return
		}
	}
}

// Shutdown stops Run, waits for the current batch and closes the producer.
func (p *Publisher) Shutdown() {
	p.stopOnce.Do(func() {
		close(p.shutdownSignal)

		done := make(chan struct{})
		go func() {
			p.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(30 * time.Second):
			p.logger.Warn("outbox publisher shutdown timed out")
		}

		if err := p.producer.Close(); err != nil {
			p.logger.Error("failed to close producer", zap.Error(err))
		}
	})
}

// ProcessBatch claims up to BatchSize tasks and sends them. It returns how many
// were delivered.
func (p *Publisher) ProcessBatch(ctx context.Context) (int, error) {
	var tasks []*repository.OutboxTask
	err := db.InTx(ctx, p.db, func(tx db.Tx) error {
		var err error
		tasks, err = p.repo.GetProcessableTasksTx(ctx, tx, p.config.BatchSize)
		if err != nil {
			return err
		}
		for _, task := range tasks {
			if err := p.repo.UpdateTaskStatusTx(ctx, tx, task.ID, repository.TaskStatusProcessing, task.Attempts, nil, nil); err != nil {
				return fmt.Errorf("mark task %s processing: %w", task.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("claim outbox tasks: %w", err)
	}
	if len(tasks) == 0 {
		return 0, nil
	}
	p.logger.Debug("claimed outbox tasks", zap.Int("count", len(tasks)))

	delivered := 0
	for _, task := range tasks {
		select {
		case <-p.shutdownSignal:
			return delivered, errShuttingDown
		case <-ctx.Done():
			return delivered, ctx.Err()
		default:
		}

		if err := p.processSingleTask(ctx, task); err != nil {
			p.logger.Error("outbox task failed", zap.String("task_id", task.ID.String()), zap.Error(err))
			continue
		}
		delivered++
	}
	return delivered, nil
}

func (p *Publisher) processSingleTask(ctx context.Context, task *repository.OutboxTask) error {
	l := p.logger.With(zap.String("task_id", task.ID.String()), zap.Int("attempt", task.Attempts+1))

	sendErr := p.producer.SendMessage(ctx, task.Topic, []byte(task.ID.String()), task.Payload)
	if sendErr != nil {
		attempts := task.Attempts + 1
		errMsg := sendErr.Error()
		if attempts >= p.config.MaxAttempts {
			l.Warn("outbox task reached max attempts, it will not be retried")
		}
		if err := p.repo.UpdateTaskStatus(ctx, p.db, task.ID, repository.TaskStatusFailed, attempts, &errMsg, nil); err != nil {
			return fmt.Errorf("record send failure: %w (send error: %v)", err, sendErr)
		}
		return sendErr
	}

	now := p.timeNow().UTC()
	if err := p.repo.UpdateTaskStatus(ctx, p.db, task.ID, repository.TaskStatusDone, task.Attempts+1, nil, &now); err != nil {
		return fmt.Errorf("mark task done: %w", err)
	}
	metrics.OutboxDeliveredTotal.Inc()
	l.Debug("outbox task delivered")
	return nil
}
