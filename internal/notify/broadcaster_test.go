package notify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBroadcaster_FanOut(t *testing.T) {
	b := NewBroadcaster(4, zap.NewNop())
	defer b.Close()

	first, cancelFirst := b.Subscribe()
	defer cancelFirst()
	second, cancelSecond := b.Subscribe()
	defer cancelSecond()

	b.Publish(Event{Type: PieceFixed, PieceID: "p1"})

	for _, ch := range []<-chan Event{first, second} {
		select {
		case e := <-ch:
			assert.Equal(t, PieceFixed, e.Type)
			assert.Equal(t, "p1", e.PieceID)
			assert.False(t, e.At.IsZero())
		default:
			t.Fatal("event was not delivered")
		}
	}
}

func TestBroadcaster_FullSubscriberDoesNotBlock(t *testing.T) {
	b := NewBroadcaster(1, zap.NewNop())
	defer b.Close()

	ch, cancel := b.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		b.Publish(Event{Type: SaleCancelled, SaleID: "s1"})
		b.Publish(Event{Type: SaleCancelled, SaleID: "s2"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}

	e := <-ch
	assert.Equal(t, "s1", e.SaleID)
}

func TestBroadcaster_CancelClosesChannel(t *testing.T) {
	b := NewBroadcaster(1, zap.NewNop())
	defer b.Close()

	ch, cancel := b.Subscribe()
	cancel()
	cancel()

	_, ok := <-ch
	assert.False(t, ok)

	b.Publish(Event{Type: SweepCompleted})
}

func TestBroadcaster_NilIsSafe(t *testing.T) {
	var b *Broadcaster
	assert.NotPanics(t, func() {
		b.Publish(Event{Type: PieceFixed})
		events, cancel := b.Subscribe()
		cancel()
		_, ok := <-events
		assert.False(t, ok)
		b.Close()
		LogEvents(context.Background(), b, zap.NewNop())
	})
}

func TestBroadcaster_CloseEndsConsume(t *testing.T) {
	b := NewBroadcaster(4, zap.NewNop())
	ch, cancel := b.Subscribe()
	defer cancel()

	var got []EventType
	done := make(chan struct{})
	go func() {
		Consume(context.Background(), ch, func(e Event) { got = append(got, e.Type) })
		close(done)
	}()

	b.Publish(Event{Type: ClaimRejected})
	b.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("consume did not return after close")
	}
	require.Len(t, got, 1)
	assert.Equal(t, ClaimRejected, got[0])

	late, _ := b.Subscribe()
	_, ok := <-late
	assert.False(t, ok)
}
