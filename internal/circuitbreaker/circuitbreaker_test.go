package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/fd1az/ledger-bridge/internal/apperror"
)

func TestCircuitBreaker_TripsAfterThreshold(t *testing.T) {
	cfg := DefaultConfig("test-node")
	cfg.FailureThreshold = 2
	cfg.Timeout = time.Minute
	cb := New[int](cfg)

	boom := errors.New("node down")
	for i := 0; i < 2; i++ {
		if _, err := cb.Execute(func() (int, error) { return 0, boom }); !errors.Is(err, boom) {
			t.Fatalf("attempt %d: expected underlying error, got %v", i, err)
		}
	}

	if cb.State() != gobreaker.StateOpen {
		t.Fatalf("expected open, got %s", cb.State())
	}

	_, err := cb.Execute(func() (int, error) { return 1, nil })
	if apperror.GetCode(err) != apperror.CodeCircuitOpen {
		t.Fatalf("expected CIRCUIT_OPEN, got %v", err)
	}
}

func TestCircuitBreaker_CancellationDoesNotTrip(t *testing.T) {
	cfg := DefaultConfig("test-cancel")
	cfg.FailureThreshold = 1
	cb := New[int](cfg)

	_, _ = cb.Execute(func() (int, error) { return 0, context.Canceled })

	if cb.State() != gobreaker.StateClosed {
		t.Fatalf("expected closed, got %s", cb.State())
	}

	got, err := cb.Execute(func() (int, error) { return 7, nil })
	if err != nil || got != 7 {
		t.Fatalf("got %d, %v", got, err)
	}
}

func TestCircuitBreaker_IsSuccessfulSkipsFailure(t *testing.T) {
	rejected := errors.New("execution reverted")
	cfg := DefaultConfig("test-remote")
	cfg.FailureThreshold = 1
	cfg.IsSuccessful = func(err error) bool { return errors.Is(err, rejected) }
	cb := New[int](cfg)

	for i := 0; i < 3; i++ {
		if _, err := cb.Execute(func() (int, error) { return 0, rejected }); !errors.Is(err, rejected) {
			t.Fatalf("attempt %d: expected underlying error, got %v", i, err)
		}
	}
	if cb.State() != gobreaker.StateClosed {
		t.Fatalf("expected closed, got %s", cb.State())
	}

	_, _ = cb.Execute(func() (int, error) { return 0, errors.New("dial tcp: refused") })
	if cb.State() != gobreaker.StateOpen {
		t.Fatalf("expected open, got %s", cb.State())
	}
}
