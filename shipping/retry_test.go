package shipping

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	var delays []time.Duration
	last := time.Now()

	value, err := Retry(context.Background(), 3, 10*time.Millisecond, func(context.Context) (string, error) {
		now := time.Now()
		if calls > 0 {
			delays = append(delays, now.Sub(last))
		}
		last = now
		calls++
		if calls < 3 {
			return "", errors.New("transient")
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("expected success on third attempt, got %v", err)
	}
	if value != "ok" {
		t.Fatalf("expected success value, got %q", value)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
	if len(delays) != 2 {
		t.Fatalf("expected 2 waits, got %d", len(delays))
	}
	if delays[0] < 10*time.Millisecond || delays[1] < 20*time.Millisecond {
		t.Fatalf("expected exponential waits of >=10ms then >=20ms, got %v", delays)
	}
}

func TestRetry_ExhaustionReturnsLastErrorUnchanged(t *testing.T) {
	finalErr := errors.New("still broken")
	calls := 0

	_, err := Retry(context.Background(), 3, time.Millisecond, func(context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("earlier failure")
		}
		return 0, finalErr
	})
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
	if err != finalErr {
		t.Fatalf("expected the final attempt's error unchanged, got %v", err)
	}
}

func TestRetry_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	_, err := Retry(ctx, 3, time.Hour, func(context.Context) (int, error) {
		calls++
		cancel()
		return 0, errors.New("fail")
	})
	if calls != 1 {
		t.Fatalf("expected a single attempt before cancellation, got %d", calls)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRetry_DefaultsApplied(t *testing.T) {
	calls := 0
	value, err := Retry(context.Background(), 0, 0, func(context.Context) (int, error) {
		calls++
		return 42, nil
	})
	if err != nil || value != 42 {
		t.Fatalf("expected immediate success, got %d, %v", value, err)
	}
	if calls != 1 {
		t.Fatalf("expected one attempt, got %d", calls)
	}
}
