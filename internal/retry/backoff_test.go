package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	ierrors "goirc/internal/errors"
)

func fastBackoff(attempts int) *Backoff {
	return &Backoff{
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   1.5,
		MaxAttempts:  attempts,
	}
}

func TestBackoff_SuccessAfterRetries(t *testing.T) {
	calls := 0
	err := fastBackoff(10).Do(context.Background(), func(attempt int) error {
		calls++
		if attempt < 3 {
			return fmt.Errorf("transient")
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

func TestBackoff_PermanentError(t *testing.T) {
	calls := 0
	err := fastBackoff(10).Do(context.Background(), func(_ int) error {
		calls++
		return Permanent(fmt.Errorf("fatal"))
	})
	if err == nil || err.Error() != "fatal" {
		t.Fatalf("err = %v, want fatal", err)
	}
	if calls != 1 {
		t.Errorf("permanent error should stop after 1 call, got %d", calls)
	}
}

func TestBackoff_MaxAttempts(t *testing.T) {
	calls := 0
	sentinel := errors.New("always fails")
	err := fastBackoff(3).Do(context.Background(), func(_ int) error {
		calls++
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("err = %v, want wrapped sentinel", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestBackoff_RetryableFilter(t *testing.T) {
	b := fastBackoff(5)
	b.Retryable = ierrors.IsRetryable

	calls := 0
	err := b.Do(context.Background(), func(_ int) error {
		calls++
		return errors.New("bad address")
	})
	if err == nil || calls != 1 {
		t.Errorf("unclassified error retried: calls=%d err=%v", calls, err)
	}

	calls = 0
	refused := ierrors.Wrap("dial", "127.0.0.1:1", &net.OpError{Op: "dial", Err: errors.New("refused")})
	b.Do(context.Background(), func(_ int) error { //nolint:errcheck
		calls++
		return refused
	})
	if calls != 5 {
		t.Errorf("refused dial tried %d times, want 5", calls)
	}
}

func TestBackoff_OnRetry(t *testing.T) {
	b := fastBackoff(3)
	var seen []int
	b.OnRetry = func(attempt int, wait time.Duration, err error) {
		seen = append(seen, attempt)
		if wait <= 0 || err == nil {
			t.Errorf("OnRetry(%d, %v, %v)", attempt, wait, err)
		}
	}
	b.Do(context.Background(), func(_ int) error { return errors.New("x") }) //nolint:errcheck
	if len(seen) != 2 || seen[0] != 1 || seen[1] != 2 {
		t.Errorf("OnRetry attempts = %v, want [1 2]", seen)
	}
}

func TestBackoff_ContextCancelled(t *testing.T) {
	b := &Backoff{InitialDelay: 5 * time.Second}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := b.Do(ctx, func(_ int) error { return fmt.Errorf("fail") })
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("cancellation did not interrupt the wait")
	}
}

func TestBackoff_Delay(t *testing.T) {
	b := &Backoff{InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second, Multiplier: 2}
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, time.Second},
		{50, time.Second},
	}
	for _, tt := range tests {
		if got := b.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}

	var zero Backoff
	if got := zero.Delay(1); got != 250*time.Millisecond {
		t.Errorf("zero-value Delay(1) = %v, want 250ms", got)
	}
}

func TestDialBackoff(t *testing.T) {
	tests := []struct {
		retries      int
		wantAttempts int
	}{
		{0, 1},
		{5, 6},
		{-3, 1},
	}
	for _, tt := range tests {
		b := DialBackoff(tt.retries)
		if b.MaxAttempts != tt.wantAttempts {
			t.Errorf("DialBackoff(%d).MaxAttempts = %d, want %d", tt.retries, b.MaxAttempts, tt.wantAttempts)
		}
		if b.Retryable == nil {
			t.Error("DialBackoff should classify errors")
		}
	}
}

func TestPermanent_Nil(t *testing.T) {
	if Permanent(nil) != nil {
		t.Error("Permanent(nil) should be nil")
	}
}

func TestIsPermanent(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"permanent", Permanent(fmt.Errorf("x")), true},
		{"wrapped permanent", fmt.Errorf("ctx: %w", Permanent(fmt.Errorf("x"))), true},
		{"not permanent", fmt.Errorf("x"), false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsPermanent(tt.err); got != tt.want {
				t.Errorf("IsPermanent() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestJitter_Range(t *testing.T) {
	d := 100 * time.Millisecond
	lower := time.Duration(float64(d) * 0.74)
	upper := time.Duration(float64(d) * 1.26)
	for i := 0; i < 100; i++ {
		if j := addJitter(d); j < lower || j > upper {
			t.Errorf("jitter %v out of range [%v, %v]", j, lower, upper)
		}
	}
}
