// Package sync is the remote adapter layer: one method per (domain,
// operation) pair, each performing exactly one call against the configured
// backend and returning either a parsed payload or a normalized *APIError.
// Adapters never retry on their own and never touch local state.
package sync

import (
	"context"
	"errors"
	"fmt"

	"github.com/DUYLINH1402/orderfood-client/internal/models"
)

// Backend is implemented once per deployment flavor (REST API or document
// store). The concrete implementation is chosen a single time at startup;
// nothing re-evaluates the choice per call.
type Backend interface {
	FetchCart(ctx context.Context, token string) ([]models.CartItem, error)
	AddCartItem(ctx context.Context, token string, item models.CartItem) error
	UpdateCartItem(ctx context.Context, token string, ref models.ItemRef, quantity int) error
	RemoveCartItem(ctx context.Context, token string, ref models.ItemRef) error
	ClearCart(ctx context.Context, token string) error

	FetchFavorites(ctx context.Context, token string) ([]models.FavoriteEntry, error)
	AddFavorite(ctx context.Context, token string, ref models.ItemRef) error
	RemoveFavorite(ctx context.Context, token string, ref models.ItemRef) error

	SendChat(ctx context.Context, sessionID, text string) (string, error)
	ChatHistory(ctx context.Context, sessionID string) ([]models.ChatMessage, error)

	CurrentPoints(ctx context.Context, token string) (int64, error)
	PointsHistory(ctx context.Context, token string) ([]models.PointsEntry, error)

	AvailableCoupons(ctx context.Context, token string) ([]models.Coupon, error)
	ValidateCoupon(ctx context.Context, token, code string) (models.Coupon, error)
	RedeemCoupon(ctx context.Context, token, code string) error
}

// Server error codes the client distinguishes.
const (
	CodeTokenExpired  = "TOKEN_EXPIRED"
	CodeInvalidCoupon = "INVALID_COUPON"
)

// APIError is the normalized failure shape every adapter returns for a
// non-2xx response. Transport failures are wrapped with %w instead and carry
// no status.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status %d code %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status %d: %s", e.Status, e.Message)
}

// IsAuthExpired reports whether err means the session credentials are no
// longer accepted: plain 401, or 403 carrying the expiry code.
func IsAuthExpired(err error) bool {
	var ae *APIError
	if !errors.As(err, &ae) {
		return false
	}
	return ae.Status == 401 || (ae.Status == 403 && ae.Code == CodeTokenExpired)
}

// IsValidation reports a server-side validation rejection (e.g. an invalid
// coupon code): the request was understood and refused, so no compensation
// or credential wipe applies.
func IsValidation(err error) bool {
	var ae *APIError
	if !errors.As(err, &ae) {
		return false
	}
	return ae.Status == 400 || ae.Status == 422
}

// UserMessage extracts the server-provided message for display, falling back
// to a generic transport failure text.
func UserMessage(err error) string {
	var ae *APIError
	if errors.As(err, &ae) && ae.Message != "" {
		return ae.Message
	}
	return "Không thể kết nối tới máy chủ. Vui lòng thử lại."
}
