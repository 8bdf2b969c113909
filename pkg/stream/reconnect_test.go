package stream

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestReconnect_SucceedsAfterFailures(t *testing.T) {
	logger := zap.NewNop()
	cfg := ReconnectConfig{
		InitialDelay:      5 * time.Millisecond,
		MaxDelay:          50 * time.Millisecond,
		BackoffMultiplier: 2.0,
		JitterPercent:     0,
		MaxAttempts:       5,
	}

	rm := NewReconnectManager(cfg, logger)

	attempts := 0
	connectFunc := func(_ context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("connection failed")
		}
		return nil
	}

	err := rm.Reconnect(context.Background(), connectFunc)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestReconnect_MaxAttemptsExceeded(t *testing.T) {
	logger := zap.NewNop()
	cfg := ReconnectConfig{
		InitialDelay:      time.Millisecond,
		MaxDelay:          10 * time.Millisecond,
		BackoffMultiplier: 2.0,
		JitterPercent:     0,
		MaxAttempts:       5,
	}

	rm := NewReconnectManager(cfg, logger)

	attempts := 0
	connectFunc := func(_ context.Context) error {
		attempts++
		return errors.New("connection failed")
	}

	err := rm.Reconnect(context.Background(), connectFunc)
	if !errors.Is(err, ErrMaxAttemptsExceeded) {
		t.Fatalf("expected ErrMaxAttemptsExceeded, got %v", err)
	}
	if attempts != 5 {
		t.Errorf("expected exactly 5 attempts, got %d", attempts)
	}
}

func TestReconnect_BackoffGrowsAndCaps(t *testing.T) {
	logger := zap.NewNop()
	cfg := ReconnectConfig{
		InitialDelay:      10 * time.Millisecond,
		MaxDelay:          40 * time.Millisecond,
		BackoffMultiplier: 2.0,
		JitterPercent:     0,
	}

	rm := NewReconnectManager(cfg, logger)

	// 10 -> 20 -> 40 -> capped at 40
	for i := 0; i < 3; i++ {
		rm.incrementBackoff()
	}
	if got := rm.nextBackoff(); got != 40*time.Millisecond {
		t.Errorf("expected backoff capped at 40ms, got %v", got)
	}

	rm.Reset()
	if got := rm.nextBackoff(); got != 10*time.Millisecond {
		t.Errorf("expected backoff reset to 10ms, got %v", got)
	}
}

func TestReconnect_ContextCancellation(t *testing.T) {
	logger := zap.NewNop()
	cfg := ReconnectConfig{
		InitialDelay:      time.Millisecond,
		MaxDelay:          10 * time.Millisecond,
		BackoffMultiplier: 2.0,
		JitterPercent:     0,
	}

	rm := NewReconnectManager(cfg, logger)

	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	connectFunc := func(_ context.Context) error {
		attempts++
		if attempts >= 2 {
			cancel()
		}
		return errors.New("connection failed")
	}

	err := rm.Reconnect(ctx, connectFunc)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
