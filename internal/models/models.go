package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ItemRef identifies one sellable position: a food plus an optional variant
// (size, topping set). Two refs with the same food but different variants are
// distinct cart/favorite entries.
type ItemRef struct {
	FoodID    int64  `json:"foodId"`
	VariantID *int64 `json:"variantId"`
}

func (r ItemRef) Equal(o ItemRef) bool {
	if r.FoodID != o.FoodID {
		return false
	}
	if (r.VariantID == nil) != (o.VariantID == nil) {
		return false
	}
	return r.VariantID == nil || *r.VariantID == *o.VariantID
}

// CacheKey returns a stable string form usable as a map / lock key.
func (r ItemRef) CacheKey() string {
	if r.VariantID == nil {
		return fmt.Sprintf("%d:-", r.FoodID)
	}
	return fmt.Sprintf("%d:%d", r.FoodID, *r.VariantID)
}

type CartItem struct {
	ItemRef
	FoodName string `json:"foodName"`
	Price    int64  `json:"price"`
	ImageURL string `json:"imageUrl"`
	Variant  string `json:"variant"`
	Quantity int    `json:"quantity"`
}

type FavoriteEntry struct {
	ItemRef
}

type User struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatarUrl"`
}

var ErrMalformedUser = errors.New("malformed user payload")

// ParseUser decodes a stored or server-sent user payload. Server responses
// historically carried the avatar under several names, so normalization
// happens here and nowhere else.
func ParseUser(raw []byte) (*User, error) {
	s := string(raw)
	if s == "" || s == "undefined" || s == "null" {
		return nil, ErrMalformedUser
	}

	var payload struct {
		ID        int64  `json:"id"`
		Name      string `json:"name"`
		FullName  string `json:"fullName"`
		Email     string `json:"email"`
		AvatarURL string `json:"avatarUrl"`
		Avatar    string `json:"avatar"`
		PhotoURL  string `json:"photoURL"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedUser, err)
	}
	if payload.ID == 0 {
		return nil, ErrMalformedUser
	}

	u := &User{ID: payload.ID, Name: payload.Name, Email: payload.Email}
	if u.Name == "" {
		u.Name = payload.FullName
	}
	switch {
	case payload.AvatarURL != "":
		u.AvatarURL = payload.AvatarURL
	case payload.Avatar != "":
		u.AvatarURL = payload.Avatar
	default:
		u.AvatarURL = payload.PhotoURL
	}
	return u, nil
}

type PointsEntry struct {
	ID          int64     `json:"id"`
	Delta       int64     `json:"delta"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Coupon struct {
	Code        string    `json:"code"`
	Description string    `json:"description"`
	Discount    int64     `json:"discount"`
	MinOrder    int64     `json:"minOrder"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

type ChatRole string

const (
	RoleUser   ChatRole = "user"
	RoleBot    ChatRole = "bot"
	RoleSystem ChatRole = "system"
)

type ChatKind string

const (
	KindNormal  ChatKind = "normal"
	KindWelcome ChatKind = "welcome"
	KindLoading ChatKind = "loading"
	KindError   ChatKind = "error"
)

type ChatMessage struct {
	ID        string    `json:"id"`
	Role      ChatRole  `json:"role"`
	Kind      ChatKind  `json:"kind"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}
