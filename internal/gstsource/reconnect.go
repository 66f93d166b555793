package gstsource

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// ReconnectConfig contains configuration for exponential backoff reconnection
type ReconnectConfig struct {
	MaxRetries    int           // Maximum number of consecutive failed attempts (default: 5)
	RetryDelay    time.Duration // Initial retry delay (default: 1 second)
	MaxRetryDelay time.Duration // Maximum retry delay cap (default: 30 seconds)
}

// DefaultReconnectConfig returns default reconnection configuration
func DefaultReconnectConfig() ReconnectConfig {
	return ReconnectConfig{
		MaxRetries:    5,
		RetryDelay:    1 * time.Second,
		MaxRetryDelay: 30 * time.Second,
	}
}

// ReconnectState tracks the current state of reconnection attempts.
// CurrentRetries is reset whenever the pipeline reaches PLAYING.
type ReconnectState struct {
	CurrentRetries atomic.Int32
	Reconnects     atomic.Uint32
}

// Reset clears the consecutive failure count.
func (s *ReconnectState) Reset() {
	s.CurrentRetries.Store(0)
}

// ConnectFunc runs one pipeline session. It returns nil only on graceful
// shutdown; any error triggers a reconnect.
type ConnectFunc func(ctx context.Context) error

// RunWithReconnect runs connectFn until it returns nil, retrying failures
// with exponential backoff.
//
// Backoff schedule with the default config: 1s, 2s, 4s, 8s, 16s, then
// stop (max retries exceeded).
func RunWithReconnect(
	ctx context.Context,
	connectFn ConnectFunc,
	cfg ReconnectConfig,
	state *ReconnectState,
) error {
	for {
		select {
		case <-ctx.Done():
			slog.Info("gstsource: context cancelled, stopping reconnection")
			return ctx.Err()
		default:
		}

		err := connectFn(ctx)
		if err == nil {
			state.Reset()
			return nil
		}

		slog.Error("gstsource: pipeline session failed", "error", err)

		retries := int(state.CurrentRetries.Add(1))
		state.Reconnects.Add(1)

		if retries > cfg.MaxRetries {
			return fmt.Errorf("gstsource: max retries exceeded (%d attempts): %w", cfg.MaxRetries, err)
		}

		delay := calculateBackoff(retries, cfg)

		slog.Warn("gstsource: retrying pipeline",
			"attempt", retries,
			"max_retries", cfg.MaxRetries,
			"delay", delay,
		)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			slog.Info("gstsource: context cancelled during backoff")
			return ctx.Err()
		}
	}
}

// calculateBackoff returns retryDelay * 2^(attempt-1), capped at maxRetryDelay.
func calculateBackoff(attempt int, cfg ReconnectConfig) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 30 {
		return cfg.MaxRetryDelay
	}
	delay := cfg.RetryDelay * time.Duration(1<<uint(attempt-1))
	if delay > cfg.MaxRetryDelay || delay <= 0 {
		delay = cfg.MaxRetryDelay
	}
	return delay
}
