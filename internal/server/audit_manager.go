package server

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// AuditManager batches request audit entries and writes them from a small
// worker pool so handlers never wait on logging.
type AuditManager struct {
	workerCount int
	batchSize   int
	timeout     time.Duration
	logger      *zap.Logger

	// flush is swapped in tests.
	flush func(workerID int, batch []AuditLogEntry)

	inputChan  chan AuditLogEntry
	batchChan  chan []AuditLogEntry
	shutdownCh chan struct{}
	startOnce  sync.Once
	once       sync.Once

	wg           sync.WaitGroup
	pendingMu    sync.Mutex
	pendingCount int
}

func NewAuditManager(workerCount, batchSize int, timeout time.Duration, logger *zap.Logger) *AuditManager {
	if workerCount <= 0 {
		workerCount = 1
	}
	if batchSize <= 0 {
		batchSize = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &AuditManager{
		workerCount: workerCount,
		batchSize:   batchSize,
		timeout:     timeout,
		logger:      logger,
		inputChan:   make(chan AuditLogEntry, workerCount*batchSize*2),
		batchChan:   make(chan []AuditLogEntry, workerCount*2),
		shutdownCh:  make(chan struct{}),
	}
	m.flush = m.logBatch
	return m
}

func (m *AuditManager) Start(ctx context.Context) {
	m.startOnce.Do(func() {
		m.logger.Debug("starting audit manager", zap.Int("workers", m.workerCount))
		m.wg.Add(1)
		go m.runAggregator(ctx)

		for i := 0; i < m.workerCount; i++ {
			m.wg.Add(1)
			go m.runWorker(i)
		}

		go m.monitorShutdown(ctx)
	})
}

func (m *AuditManager) Shutdown(ctx context.Context) {
	m.once.Do(func() {
		m.logger.Debug("stopping audit manager")
		close(m.shutdownCh)

		done := make(chan struct{})
		go func() {
			m.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			m.logger.Debug("audit manager stopped")
		case <-ctx.Done():
			m.logger.Warn("audit manager shutdown interrupted", zap.Int("pending", m.Pending()))
		}
	})
}

func (m *AuditManager) monitorShutdown(ctx context.Context) {
	select {
	case <-ctx.Done():
		m.Shutdown(context.Background())
	case <-m.shutdownCh:
	}
}

// LogEntry queues entry. Once the manager is stopped the entry is written
// synchronously instead.
func (m *AuditManager) LogEntry(ctx context.Context, entry AuditLogEntry) {
	select {
	case <-m.shutdownCh:
		m.flush(-1, []AuditLogEntry{entry})
		return
	default:
	}

	m.updatePendingCount(1)
	select {
	case m.inputChan <- entry:
	case <-m.shutdownCh:
		m.updatePendingCount(-1)
		m.flush(-1, []AuditLogEntry{entry})
	case <-ctx.Done():
		m.updatePendingCount(-1)
		m.flush(-1, []AuditLogEntry{entry})
	}
}

func (m *AuditManager) Pending() int {
	m.pendingMu.Lock()
	defer m.pendingMu.Unlock()
	return m.pendingCount
}

func (m *AuditManager) runAggregator(ctx context.Context) {
	defer m.wg.Done()

	var (
		batch    []AuditLogEntry
		timer    *time.Timer
		timeoutC <-chan time.Time
	)

	defer func() {
		if timer != nil {
			timer.Stop()
		}
		// entries already queued are still written
	drain:
		for {
			select {
			case entry := <-m.inputChan:
				batch = append(batch, entry)
			default:
				break drain
			}
		}
		if len(batch) > 0 {
			m.dispatchBatch(batch)
		}
		close(m.batchChan)
	}()

	for {
		select {
		case entry := <-m.inputChan:
			batch = append(batch, entry)
			if len(batch) >= m.batchSize {
				m.dispatchBatch(batch)
				batch = nil
				timeoutC = nil
			} else if len(batch) == 1 {
				if timer != nil {
					timer.Stop()
				}
				timer = time.NewTimer(m.timeout)
				timeoutC = timer.C
			}

		case <-timeoutC:
			m.dispatchBatch(batch)
			batch = nil
			timeoutC = nil

		case <-ctx.Done():
			return

		case <-m.shutdownCh:
			return
		}
	}
}

func (m *AuditManager) dispatchBatch(batch []AuditLogEntry) {
	batchCopy := make([]AuditLogEntry, len(batch))
	copy(batchCopy, batch)

	select {
	case m.batchChan <- batchCopy:
	default:
		m.flush(-1, batchCopy)
		m.updatePendingCount(-len(batchCopy))
	}
}

func (m *AuditManager) runWorker(id int) {
	defer m.wg.Done()

	for batch := range m.batchChan {
		m.flush(id, batch)
		m.updatePendingCount(-len(batch))
	}
}

func (m *AuditManager) logBatch(workerID int, batch []AuditLogEntry) {
	for _, entry := range batch {
		m.logger.Info("operator request", zap.Int("worker", workerID), auditField(entry))
	}
}

func (m *AuditManager) updatePendingCount(delta int) {
	m.pendingMu.Lock()
	defer m.pendingMu.Unlock()
	m.pendingCount += delta
}
