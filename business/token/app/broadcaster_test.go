package app_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/fd1az/ledger-bridge/business/token/app"
	"github.com/fd1az/ledger-bridge/business/token/domain"
)

func TestBroadcaster_FanOut(t *testing.T) {
	b := app.NewBroadcaster()
	defer b.Close()

	first, unsubFirst := b.Subscribe(2)
	defer unsubFirst()
	second, unsubSecond := b.Subscribe(2)
	defer unsubSecond()

	ev := domain.TransferEvent{BlockHeight: 1, Amount: decimal.RequireFromString("0.25")}
	if n := b.Publish(context.Background(), ev); n != 2 {
		t.Fatalf("delivered to %d listeners", n)
	}

	for _, ch := range []<-chan domain.TransferEvent{first, second} {
		if got := <-ch; !got.Amount.Equal(ev.Amount) {
			t.Errorf("amount = %s", got.Amount)
		}
	}
}

func TestBroadcaster_SlowListenerDrops(t *testing.T) {
	b := app.NewBroadcaster()
	defer b.Close()

	slow, unsubSlow := b.Subscribe(1)
	defer unsubSlow()
	fast, unsubFast := b.Subscribe(8)
	defer unsubFast()

	ctx := context.Background()
	for i := uint64(1); i <= 3; i++ {
		b.Publish(ctx, domain.TransferEvent{BlockHeight: i})
	}

	if b.Dropped() != 2 {
		t.Errorf("dropped = %d", b.Dropped())
	}
	if got := <-slow; got.BlockHeight != 1 {
		t.Errorf("slow listener got block %d", got.BlockHeight)
	}
	if len(fast) != 3 {
		t.Errorf("fast listener queued %d", len(fast))
	}
}

func TestBroadcaster_UnsubscribeAndClose(t *testing.T) {
	b := app.NewBroadcaster()

	ch, unsubscribe := b.Subscribe(1)
	unsubscribe()
	unsubscribe()
	if _, ok := <-ch; ok {
		t.Error("unsubscribed channel should be closed")
	}
	if b.Listeners() != 0 {
		t.Errorf("listeners = %d", b.Listeners())
	}

	other, _ := b.Subscribe(1)
	b.Close()
	if _, ok := <-other; ok {
		t.Error("Close should close listener channels")
	}

	late, _ := b.Subscribe(1)
	if _, ok := <-late; ok {
		t.Error("subscription after Close should be closed")
	}
	if n := b.Publish(context.Background(), domain.TransferEvent{}); n != 0 {
		t.Errorf("publish after close delivered %d", n)
	}
}
