// Package notify fans consistency events out to in-process subscribers.
package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

type EventType string

const (
	SaleCancelled        EventType = "sale_cancelled"
	PieceFixed           EventType = "piece_fixed"
	ManualReviewRequired EventType = "manual_review_required"
	ClaimRejected        EventType = "claim_rejected"
	SweepCompleted       EventType = "sweep_completed"
)

type Event struct {
	Type    EventType
	PieceID string
	SaleID  string
	Message string
	At      time.Time
}

// Broadcaster delivers every published event to every live subscriber.
// Publishing never blocks: a subscriber whose buffer is full misses the event.
// A nil *Broadcaster is valid: it discards events and hands out closed channels.
type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[int]chan Event
	nextID int
	buffer int
	closed bool
	logger *zap.Logger
}

func NewBroadcaster(buffer int, logger *zap.Logger) *Broadcaster {
	if buffer <= 0 {
		buffer = 16
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broadcaster{
		subs:   make(map[int]chan Event),
		buffer: buffer,
		logger: logger,
	}
}

// Subscribe returns a receive channel and a func that detaches it. The channel
// is closed by the cancel func or by Close, whichever comes first.
func (b *Broadcaster) Subscribe() (<-chan Event, func()) {
	if b == nil {
		ch := make(chan Event)
		close(ch)
		return ch, func() {}
	}
	ch := make(chan Event, b.buffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub)
			}
		})
	}
}

func (b *Broadcaster) Publish(e Event) {
	if b == nil {
		return
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for id, ch := range b.subs {
		select {
		case ch <- e:
		default:
			b.logger.Warn("subscriber buffer full, event dropped",
				zap.Int("subscriber", id),
				zap.String("event", string(e.Type)),
				zap.String("piece_id", e.PieceID))
		}
	}
}

func (b *Broadcaster) Close() {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		close(ch)
		delete(b.subs, id)
	}
}

// Consume calls fn for each event until ctx is done or the channel closes.
func Consume(ctx context.Context, events <-chan Event, fn func(Event)) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			fn(e)
		}
	}
}

// LogEvents writes every event to logger until ctx is done.
func LogEvents(ctx context.Context, b *Broadcaster, logger *zap.Logger) {
	events, cancel := b.Subscribe()
	defer cancel()
	Consume(ctx, events, func(e Event) {
		logger.Info("consistency event",
			zap.String("event", string(e.Type)),
			zap.String("piece_id", e.PieceID),
			zap.String("sale_id", e.SaleID),
			zap.String("message", e.Message),
			zap.Time("at", e.At))
	})
}
