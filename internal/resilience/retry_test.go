package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2.0,
	}
}

func TestDo_SuccessOnFirstAttempt(t *testing.T) {
	var calls int
	err := Do(context.Background(), DefaultRetryConfig(), func(_ context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDo_SuccessAfterRetry(t *testing.T) {
	var calls int
	err := Do(context.Background(), fastConfig(), func(_ context.Context) error {
		calls++
		if calls < 3 {
			return NewTransientError(errors.New("bucket busy"), 503)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDo_ExhaustsRetries(t *testing.T) {
	var calls int
	err := Do(context.Background(), fastConfig(), func(_ context.Context) error {
		calls++
		return NewTransientError(errors.New("always fails"), 500)
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDo_PermanentErrorStopsImmediately(t *testing.T) {
	var calls int
	err := Do(context.Background(), fastConfig(), func(_ context.Context) error {
		calls++
		return errors.New("invalid logo format")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls int
	cfg := fastConfig()
	cfg.InitialBackoff = time.Second
	cfg.MaxBackoff = time.Second
	cfg.OnRetry = func(int, error) { cancel() }

	start := time.Now()
	err := Do(ctx, cfg, func(_ context.Context) error {
		calls++
		return NewTransientError(errors.New("slow"), 503)
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Error("cancellation did not interrupt backoff")
	}
}

func TestDoVal_CustomShouldRetry(t *testing.T) {
	errTaken := errors.New("taken")
	var calls int
	cfg := ImmediateRetryConfig(5, func(err error) bool { return errors.Is(err, errTaken) })

	var retried []int
	cfg.OnRetry = func(attempt int, _ error) { retried = append(retried, attempt) }

	got, err := DoVal(context.Background(), cfg, func(_ context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errTaken
		}
		return "12345678", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "12345678" {
		t.Errorf("got %q", got)
	}
	if len(retried) != 2 || retried[0] != 1 || retried[1] != 2 {
		t.Errorf("unexpected retry callbacks: %v", retried)
	}
}

func TestBackoff_CappedAndJittered(t *testing.T) {
	cfg := applyDefaults(RetryConfig{
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     300 * time.Millisecond,
		Multiplier:     2,
		JitterFraction: 0.5,
	})
	for attempt := 0; attempt < 6; attempt++ {
		d := backoff(attempt, cfg)
		if d < 0 || d > 450*time.Millisecond {
			t.Errorf("attempt %d: backoff %v out of range", attempt, d)
		}
	}

	cfg.JitterFraction = 0
	if d := backoff(5, cfg); d != 300*time.Millisecond {
		t.Errorf("expected cap 300ms, got %v", d)
	}
}

func TestRetryLogger(t *testing.T) {
	// zap.L() is a no-op logger in tests; this only checks it does not panic.
	RetryLogger("files", "open")(1, errors.New("boom"))
}
