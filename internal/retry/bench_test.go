package retry

import (
	"context"
	"fmt"
	"testing"
	"time"
)

// BenchmarkBackoff_ImmediateSuccess measures overhead when the first
// dial succeeds (the common case).
func BenchmarkBackoff_ImmediateSuccess(b *testing.B) {
	bo := DialBackoff(5)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		bo.Do(ctx, func(_ int) error { return nil }) //nolint:errcheck
	}
}

// BenchmarkBackoff_NotRetryable measures the early exit for errors the
// classifier rejects.
func BenchmarkBackoff_NotRetryable(b *testing.B) {
	bo := DialBackoff(5)
	ctx := context.Background()
	err := fmt.Errorf("bad address")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		bo.Do(ctx, func(_ int) error { return err }) //nolint:errcheck
	}
}

func BenchmarkDelay(b *testing.B) {
	bo := DialBackoff(5)
	for i := 0; i < b.N; i++ {
		_ = bo.Delay(i%8 + 1)
	}
}

func BenchmarkJitter(b *testing.B) {
	d := 100 * time.Millisecond
	for i := 0; i < b.N; i++ {
		_ = addJitter(d)
	}
}
