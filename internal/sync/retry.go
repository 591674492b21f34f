package sync

import (
	"context"
	"errors"
	"time"

	"github.com/DUYLINH1402/orderfood-client/internal/models"
)

// RetryConfig bounds the retry loop applied to idempotent GET operations.
// The observed client contract is no retries at all, so MaxAttempts defaults
// to 1; enabling it is a deliberate deviation, opted into via config.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Factor       float64
}

func DefaultRetryConfig(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:  attempts,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Factor:       2.0,
	}
}

// WithRetry decorates only the read-side methods of b. Mutations pass
// through untouched: they are not idempotent and the optimistic layer owns
// their failure handling.
func WithRetry(b Backend, cfg RetryConfig) Backend {
	if cfg.MaxAttempts <= 1 {
		return b
	}
	return &retryBackend{Backend: b, cfg: cfg}
}

type retryBackend struct {
	Backend
	cfg RetryConfig
}

func (r *retryBackend) retry(ctx context.Context, fn func() error) error {
	delay := r.cfg.InitialDelay
	var lastErr error
	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		// API-level rejections are deterministic; retrying them only delays
		// the failure.
		var ae *APIError
		if errors.As(lastErr, &ae) {
			return lastErr
		}
		if attempt == r.cfg.MaxAttempts {
			break
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay = time.Duration(float64(delay) * r.cfg.Factor)
		if delay > r.cfg.MaxDelay {
			delay = r.cfg.MaxDelay
		}
	}
	return lastErr
}

func (r *retryBackend) FetchCart(ctx context.Context, token string) ([]models.CartItem, error) {
	var out []models.CartItem
	err := r.retry(ctx, func() error {
		var e error
		out, e = r.Backend.FetchCart(ctx, token)
		return e
	})
	return out, err
}

func (r *retryBackend) FetchFavorites(ctx context.Context, token string) ([]models.FavoriteEntry, error) {
	var out []models.FavoriteEntry
	err := r.retry(ctx, func() error {
		var e error
		out, e = r.Backend.FetchFavorites(ctx, token)
		return e
	})
	return out, err
}

func (r *retryBackend) ChatHistory(ctx context.Context, sessionID string) ([]models.ChatMessage, error) {
	var out []models.ChatMessage
	err := r.retry(ctx, func() error {
		var e error
		out, e = r.Backend.ChatHistory(ctx, sessionID)
		return e
	})
	return out, err
}

func (r *retryBackend) CurrentPoints(ctx context.Context, token string) (int64, error) {
	var out int64
	err := r.retry(ctx, func() error {
		var e error
		out, e = r.Backend.CurrentPoints(ctx, token)
		return e
	})
	return out, err
}

func (r *retryBackend) PointsHistory(ctx context.Context, token string) ([]models.PointsEntry, error) {
	var out []models.PointsEntry
	err := r.retry(ctx, func() error {
		var e error
		out, e = r.Backend.PointsHistory(ctx, token)
		return e
	})
	return out, err
}

func (r *retryBackend) AvailableCoupons(ctx context.Context, token string) ([]models.Coupon, error) {
	var out []models.Coupon
	err := r.retry(ctx, func() error {
		var e error
		out, e = r.Backend.AvailableCoupons(ctx, token)
		return e
	})
	return out, err
}
