package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/DUYLINH1402/orderfood-client/internal/models"
)

type restBackend struct {
	baseURL    string
	httpClient *http.Client
}

// NewREST builds the REST adapter against baseURL. The client reuses one
// pooled http.Client for every call.
func NewREST(baseURL string, timeout time.Duration) Backend {
	return &restBackend{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// errorBody is the failure envelope the backend sends with non-2xx statuses.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

// do performs one request and decodes a 2xx body into out (when non-nil).
// Non-2xx responses become *APIError; transport and decode failures are
// wrapped plain errors.
func (b *restBackend) do(ctx context.Context, method, path, token string, body, out any) error {
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var eb errorBody
		_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&eb)
		msg := eb.Message
		if msg == "" {
			msg = eb.Error
		}
		return &APIError{Status: resp.StatusCode, Code: eb.Code, Message: msg}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

type cartItemPayload struct {
	FoodID    int64  `json:"foodId"`
	VariantID *int64 `json:"variantId"`
	FoodName  string `json:"foodName"`
	Price     int64  `json:"price"`
	ImageURL  string `json:"imageUrl"`
	Variant   string `json:"variant"`
	Quantity  int    `json:"quantity"`
}

func toCartItem(p cartItemPayload) models.CartItem {
	return models.CartItem{
		ItemRef:  models.ItemRef{FoodID: p.FoodID, VariantID: p.VariantID},
		FoodName: p.FoodName,
		Price:    p.Price,
		ImageURL: p.ImageURL,
		Variant:  p.Variant,
		Quantity: p.Quantity,
	}
}

func (b *restBackend) FetchCart(ctx context.Context, token string) ([]models.CartItem, error) {
	var payload []cartItemPayload
	if err := b.do(ctx, http.MethodGet, "/api/cart", token, nil, &payload); err != nil {
		return nil, err
	}
	items := make([]models.CartItem, 0, len(payload))
	for _, p := range payload {
		items = append(items, toCartItem(p))
	}
	return items, nil
}

func (b *restBackend) AddCartItem(ctx context.Context, token string, item models.CartItem) error {
	req := cartItemPayload{
		FoodID:    item.FoodID,
		VariantID: item.VariantID,
		FoodName:  item.FoodName,
		Price:     item.Price,
		ImageURL:  item.ImageURL,
		Variant:   item.Variant,
		Quantity:  item.Quantity,
	}
	return b.do(ctx, http.MethodPost, "/api/cart/add", token, req, nil)
}

func (b *restBackend) UpdateCartItem(ctx context.Context, token string, ref models.ItemRef, quantity int) error {
	req := struct {
		FoodID    int64  `json:"foodId"`
		VariantID *int64 `json:"variantId"`
		Quantity  int    `json:"quantity"`
	}{ref.FoodID, ref.VariantID, quantity}
	return b.do(ctx, http.MethodPost, "/api/cart/update", token, req, nil)
}

func (b *restBackend) RemoveCartItem(ctx context.Context, token string, ref models.ItemRef) error {
	req := struct {
		FoodID    int64  `json:"foodId"`
		VariantID *int64 `json:"variantId"`
	}{ref.FoodID, ref.VariantID}
	return b.do(ctx, http.MethodDelete, "/api/cart/remove", token, req, nil)
}

func (b *restBackend) ClearCart(ctx context.Context, token string) error {
	return b.do(ctx, http.MethodDelete, "/api/cart/clear", token, nil, nil)
}

func (b *restBackend) FetchFavorites(ctx context.Context, token string) ([]models.FavoriteEntry, error) {
	var payload []struct {
		FoodID    int64  `json:"foodId"`
		VariantID *int64 `json:"variantId"`
	}
	if err := b.do(ctx, http.MethodGet, "/api/favorites", token, nil, &payload); err != nil {
		return nil, err
	}
	entries := make([]models.FavoriteEntry, 0, len(payload))
	for _, p := range payload {
		entries = append(entries, models.FavoriteEntry{
			ItemRef: models.ItemRef{FoodID: p.FoodID, VariantID: p.VariantID},
		})
	}
	return entries, nil
}

func (b *restBackend) AddFavorite(ctx context.Context, token string, ref models.ItemRef) error {
	return b.do(ctx, http.MethodPost, "/api/favorites", token, ref, nil)
}

func (b *restBackend) RemoveFavorite(ctx context.Context, token string, ref models.ItemRef) error {
	return b.do(ctx, http.MethodDelete, "/api/favorites", token, ref, nil)
}

func (b *restBackend) SendChat(ctx context.Context, sessionID, text string) (string, error) {
	req := struct {
		SessionID string `json:"sessionId"`
		Message   string `json:"message"`
	}{sessionID, text}
	var resp struct {
		Reply string `json:"reply"`
	}
	if err := b.do(ctx, http.MethodPost, "/api/chatbot/chat", "", req, &resp); err != nil {
		return "", err
	}
	return resp.Reply, nil
}

func (b *restBackend) ChatHistory(ctx context.Context, sessionID string) ([]models.ChatMessage, error) {
	var msgs []models.ChatMessage
	if err := b.do(ctx, http.MethodGet, "/api/chatbot/history/"+sessionID, "", nil, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

func (b *restBackend) CurrentPoints(ctx context.Context, token string) (int64, error) {
	var resp struct {
		Balance int64 `json:"balance"`
	}
	if err := b.do(ctx, http.MethodGet, "/api/points/current", token, nil, &resp); err != nil {
		return 0, err
	}
	return resp.Balance, nil
}

func (b *restBackend) PointsHistory(ctx context.Context, token string) ([]models.PointsEntry, error) {
	var entries []models.PointsEntry
	if err := b.do(ctx, http.MethodGet, "/api/points/history", token, nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (b *restBackend) AvailableCoupons(ctx context.Context, token string) ([]models.Coupon, error) {
	var coupons []models.Coupon
	if err := b.do(ctx, http.MethodGet, "/api/coupons/available", token, nil, &coupons); err != nil {
		return nil, err
	}
	return coupons, nil
}

func (b *restBackend) ValidateCoupon(ctx context.Context, token, code string) (models.Coupon, error) {
	req := struct {
		Code string `json:"code"`
	}{code}
	var c models.Coupon
	if err := b.do(ctx, http.MethodPost, "/api/coupons/validate", token, req, &c); err != nil {
		return models.Coupon{}, err
	}
	return c, nil
}

func (b *restBackend) RedeemCoupon(ctx context.Context, token, code string) error {
	req := struct {
		Code string `json:"code"`
	}{code}
	return b.do(ctx, http.MethodPost, "/api/coupons/redeem", token, req, nil)
}
