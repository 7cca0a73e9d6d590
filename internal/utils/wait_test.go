package utils

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWaitForCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WaitFor(ctx, time.Hour)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestWaitForElapses(t *testing.T) {
	if err := WaitFor(context.Background(), time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestBackoff(t *testing.T) {
	got := []time.Duration{Backoff(time.Second, 0), Backoff(time.Second, 1), Backoff(time.Second, 2)}
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}

	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("attempt %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}
