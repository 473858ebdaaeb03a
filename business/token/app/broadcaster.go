package app

import (
	"context"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/fd1az/ledger-bridge/business/token/domain"
)

const meterName = "github.com/fd1az/ledger-bridge/business/token/app"

// Broadcaster fans Transfer events out to listeners. Each listener owns a
// bounded channel; when it is full the event is dropped for that listener
// only.
type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[uint64]chan domain.TransferEvent
	nextID uint64
	closed bool

	dropped  atomic.Uint64
	drops    metric.Int64Counter
	received metric.Int64Counter
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	meter := otel.Meter(meterName)
	drops, _ := meter.Int64Counter("token_transfer_drops_total",
		metric.WithDescription("Transfer events dropped for slow listeners"))
	received, _ := meter.Int64Counter("token_transfer_deliveries_total",
		metric.WithDescription("Transfer events delivered to listeners"))

	return &Broadcaster{
		subs:     make(map[uint64]chan domain.TransferEvent),
		drops:    drops,
		received: received,
	}
}

// Subscribe registers a listener with the given channel capacity. The
// returned func unsubscribes and closes the channel; it is safe to call
// more than once.
func (b *Broadcaster) Subscribe(buffer int) (<-chan domain.TransferEvent, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan domain.TransferEvent, buffer)

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
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
		})
	}
}

// Publish delivers ev to every listener without blocking and returns how
// many received it.
func (b *Broadcaster) Publish(ctx context.Context, ev domain.TransferEvent) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	delivered := 0
	for _, ch := range b.subs {
		select {
		case ch <- ev:
			delivered++
		default:
			b.dropped.Add(1)
			b.drops.Add(ctx, 1)
		}
	}
	b.received.Add(ctx, int64(delivered))
	return delivered
}

// Listeners returns the number of registered listeners.
func (b *Broadcaster) Listeners() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Dropped returns the total number of dropped deliveries.
func (b *Broadcaster) Dropped() uint64 {
	return b.dropped.Load()
}

// Close closes every listener channel. Later subscriptions get a closed
// channel.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
