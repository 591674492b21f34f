package sync

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/DUYLINH1402/orderfood-client/internal/models"
)

// docBackend keeps every domain as JSON documents in Redis. It exists for
// deployments that run without the REST API; the calling code cannot tell
// the two implementations apart.
type docBackend struct {
	rdb *redis.Client
}

func NewDocument(rdb *redis.Client) Backend {
	return &docBackend{rdb: rdb}
}

// owner derives a stable per-user document id from the opaque token. The
// token itself never appears in a key.
func owner(token string) (string, error) {
	if token == "" {
		return "", &APIError{Status: 401, Message: "missing access token"}
	}
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:8]), nil
}

func (b *docBackend) getDoc(ctx context.Context, key string, out any) error {
	raw, err := b.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("document get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("document decode %s: %w", key, err)
	}
	return nil
}

func (b *docBackend) putDoc(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("document encode %s: %w", key, err)
	}
	if err := b.rdb.Set(ctx, key, raw, 0).Err(); err != nil {
		return fmt.Errorf("document put %s: %w", key, err)
	}
	return nil
}

func (b *docBackend) FetchCart(ctx context.Context, token string) ([]models.CartItem, error) {
	id, err := owner(token)
	if err != nil {
		return nil, err
	}
	var items []models.CartItem
	if err := b.getDoc(ctx, "orderfood:cart:"+id, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (b *docBackend) AddCartItem(ctx context.Context, token string, item models.CartItem) error {
	id, err := owner(token)
	if err != nil {
		return err
	}
	key := "orderfood:cart:" + id
	var items []models.CartItem
	if err := b.getDoc(ctx, key, &items); err != nil {
		return err
	}
	merged := false
	for i := range items {
		if items[i].ItemRef.Equal(item.ItemRef) {
			items[i].Quantity += item.Quantity
			merged = true
			break
		}
	}
	if !merged {
		items = append(items, item)
	}
	return b.putDoc(ctx, key, items)
}

func (b *docBackend) UpdateCartItem(ctx context.Context, token string, ref models.ItemRef, quantity int) error {
	id, err := owner(token)
	if err != nil {
		return err
	}
	key := "orderfood:cart:" + id
	var items []models.CartItem
	if err := b.getDoc(ctx, key, &items); err != nil {
		return err
	}
	for i := range items {
		if items[i].ItemRef.Equal(ref) {
			items[i].Quantity = quantity
			return b.putDoc(ctx, key, items)
		}
	}
	return nil
}

func (b *docBackend) RemoveCartItem(ctx context.Context, token string, ref models.ItemRef) error {
	id, err := owner(token)
	if err != nil {
		return err
	}
	key := "orderfood:cart:" + id
	var items []models.CartItem
	if err := b.getDoc(ctx, key, &items); err != nil {
		return err
	}
	next := items[:0]
	for _, it := range items {
		if !it.ItemRef.Equal(ref) {
			next = append(next, it)
		}
	}
	return b.putDoc(ctx, key, next)
}

func (b *docBackend) ClearCart(ctx context.Context, token string) error {
	id, err := owner(token)
	if err != nil {
		return err
	}
	if err := b.rdb.Del(ctx, "orderfood:cart:"+id).Err(); err != nil {
		return fmt.Errorf("document clear cart: %w", err)
	}
	return nil
}

func (b *docBackend) FetchFavorites(ctx context.Context, token string) ([]models.FavoriteEntry, error) {
	id, err := owner(token)
	if err != nil {
		return nil, err
	}
	var entries []models.FavoriteEntry
	if err := b.getDoc(ctx, "orderfood:favorites:"+id, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (b *docBackend) AddFavorite(ctx context.Context, token string, ref models.ItemRef) error {
	id, err := owner(token)
	if err != nil {
		return err
	}
	key := "orderfood:favorites:" + id
	var entries []models.FavoriteEntry
	if err := b.getDoc(ctx, key, &entries); err != nil {
		return err
	}
	for _, e := range entries {
		if e.ItemRef.Equal(ref) {
			return nil
		}
	}
	entries = append(entries, models.FavoriteEntry{ItemRef: ref})
	return b.putDoc(ctx, key, entries)
}

func (b *docBackend) RemoveFavorite(ctx context.Context, token string, ref models.ItemRef) error {
	id, err := owner(token)
	if err != nil {
		return err
	}
	key := "orderfood:favorites:" + id
	var entries []models.FavoriteEntry
	if err := b.getDoc(ctx, key, &entries); err != nil {
		return err
	}
	next := entries[:0]
	for _, e := range entries {
		if !e.ItemRef.Equal(ref) {
			next = append(next, e)
		}
	}
	return b.putDoc(ctx, key, next)
}

func (b *docBackend) SendChat(ctx context.Context, sessionID, text string) (string, error) {
	msg := models.ChatMessage{
		Role:      models.RoleUser,
		Kind:      models.KindNormal,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
	raw, _ := json.Marshal(msg)
	if err := b.rdb.RPush(ctx, "orderfood:chat:"+sessionID, raw).Err(); err != nil {
		return "", fmt.Errorf("document chat push: %w", err)
	}
	// No assistant runs behind the document store; acknowledge and point the
	// guest at the hotline instead.
	reply := "Cảm ơn bạn! Nhân viên sẽ phản hồi sớm, hoặc gọi hotline 1900 0000."
	rawReply, _ := json.Marshal(models.ChatMessage{
		Role: models.RoleBot, Kind: models.KindNormal, Text: reply, CreatedAt: time.Now().UTC(),
	})
	if err := b.rdb.RPush(ctx, "orderfood:chat:"+sessionID, rawReply).Err(); err != nil {
		return "", fmt.Errorf("document chat push: %w", err)
	}
	return reply, nil
}

func (b *docBackend) ChatHistory(ctx context.Context, sessionID string) ([]models.ChatMessage, error) {
	rows, err := b.rdb.LRange(ctx, "orderfood:chat:"+sessionID, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("document chat history: %w", err)
	}
	msgs := make([]models.ChatMessage, 0, len(rows))
	for _, row := range rows {
		var m models.ChatMessage
		if err := json.Unmarshal([]byte(row), &m); err != nil {
			return nil, fmt.Errorf("document chat decode: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

func (b *docBackend) CurrentPoints(ctx context.Context, token string) (int64, error) {
	id, err := owner(token)
	if err != nil {
		return 0, err
	}
	n, err := b.rdb.Get(ctx, "orderfood:points:"+id).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("document points: %w", err)
	}
	return n, nil
}

func (b *docBackend) PointsHistory(ctx context.Context, token string) ([]models.PointsEntry, error) {
	id, err := owner(token)
	if err != nil {
		return nil, err
	}
	var entries []models.PointsEntry
	if err := b.getDoc(ctx, "orderfood:pointslog:"+id, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (b *docBackend) AvailableCoupons(ctx context.Context, token string) ([]models.Coupon, error) {
	if _, err := owner(token); err != nil {
		return nil, err
	}
	rows, err := b.rdb.HVals(ctx, "orderfood:coupons").Result()
	if err != nil {
		return nil, fmt.Errorf("document coupons: %w", err)
	}
	coupons := make([]models.Coupon, 0, len(rows))
	for _, row := range rows {
		var c models.Coupon
		if err := json.Unmarshal([]byte(row), &c); err != nil {
			return nil, fmt.Errorf("document coupon decode: %w", err)
		}
		coupons = append(coupons, c)
	}
	return coupons, nil
}

func (b *docBackend) ValidateCoupon(ctx context.Context, token, code string) (models.Coupon, error) {
	if _, err := owner(token); err != nil {
		return models.Coupon{}, err
	}
	raw, err := b.rdb.HGet(ctx, "orderfood:coupons", code).Result()
	if errors.Is(err, redis.Nil) {
		return models.Coupon{}, &APIError{Status: 400, Code: CodeInvalidCoupon, Message: "Mã giảm giá không hợp lệ"}
	}
	if err != nil {
		return models.Coupon{}, fmt.Errorf("document coupon validate: %w", err)
	}
	var c models.Coupon
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return models.Coupon{}, fmt.Errorf("document coupon decode: %w", err)
	}
	if !c.ExpiresAt.IsZero() && c.ExpiresAt.Before(time.Now()) {
		return models.Coupon{}, &APIError{Status: 400, Code: CodeInvalidCoupon, Message: "Mã giảm giá đã hết hạn"}
	}
	return c, nil
}

func (b *docBackend) RedeemCoupon(ctx context.Context, token, code string) error {
	id, err := owner(token)
	if err != nil {
		return err
	}
	if _, err := b.ValidateCoupon(ctx, token, code); err != nil {
		return err
	}
	added, err := b.rdb.SAdd(ctx, "orderfood:redeemed:"+id, code).Result()
	if err != nil {
		return fmt.Errorf("document coupon redeem: %w", err)
	}
	if added == 0 {
		return &APIError{Status: 400, Code: CodeInvalidCoupon, Message: "Mã giảm giá đã được sử dụng"}
	}
	return nil
}
