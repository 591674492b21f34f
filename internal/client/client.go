// Package client is the composition façade of the storefront SDK: it wires
// the state containers, the durable store, the remote backend, the
// optimistic controller, and the session bootstrapper into the operations
// the UI shell calls. Business logic never reaches for a global store; the
// one process-wide instance lives at the composition root in cmd.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/DUYLINH1402/orderfood-client/internal/notify"
	"github.com/DUYLINH1402/orderfood-client/internal/optimistic"
	"github.com/DUYLINH1402/orderfood-client/internal/session"
	authstate "github.com/DUYLINH1402/orderfood-client/internal/state/auth"
	cartstate "github.com/DUYLINH1402/orderfood-client/internal/state/cart"
	chatstate "github.com/DUYLINH1402/orderfood-client/internal/state/chat"
	favstate "github.com/DUYLINH1402/orderfood-client/internal/state/favorites"
	pointsstate "github.com/DUYLINH1402/orderfood-client/internal/state/points"
	"github.com/DUYLINH1402/orderfood-client/internal/storage"
	"github.com/DUYLINH1402/orderfood-client/internal/store"
	remote "github.com/DUYLINH1402/orderfood-client/internal/sync"

	"github.com/DUYLINH1402/orderfood-client/internal/models"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrNotLoggedIn     = errors.New("not logged in")
)

type Options struct {
	// FavoritesDedupe selects whether adding an existing favorite is a
	// no-op. The historical web client appended unconditionally.
	FavoritesDedupe bool
}

type Client struct {
	log      *slog.Logger
	storage  *storage.Store
	backend  remote.Backend
	notifier *notify.Center
	ctrl     *optimistic.Controller
	boot     *session.Bootstrapper

	cart      *store.Container[cartstate.State, cartstate.Action]
	favorites *store.Container[favstate.State, favstate.Action]
	auth      *store.Container[authstate.State, authstate.Action]
	points    *store.Container[pointsstate.State, pointsstate.Action]
	chat      *store.Container[chatstate.State, chatstate.Action]

	// cartGate puts per-item cart mutations and the cart-wide clear in one
	// serialization domain: per-item operations hold it shared next to their
	// own key lock, the clear holds it exclusively. Without it the clear's
	// whole-list compensation could discard a remotely confirmed concurrent
	// edit.
	cartGate sync.RWMutex

	expired atomic.Bool
}

// New wires a client from its constructed dependencies, rehydrates the
// persisted slices, and registers the persistence subscribers. It does not
// touch the network; call Bootstrap for that.
func New(st *storage.Store, backend remote.Backend, log *slog.Logger, opts Options) *Client {
	c := &Client{
		log:      log,
		storage:  st,
		backend:  backend,
		notifier: notify.NewCenter(log),

		cart:      store.New(cartstate.State{}, cartstate.Reduce),
		favorites: store.New(favstate.Initial(opts.FavoritesDedupe), favstate.Reduce),
		auth:      store.New(authstate.State{}, authstate.Reduce),
		points:    store.New(pointsstate.State{}, pointsstate.Reduce),
		chat:      store.New(chatstate.State{}, chatstate.Reduce),
	}
	c.ctrl = optimistic.NewController(c.notifier, log)
	c.boot = session.NewBootstrapper(st, c.auth, c.fetchFavorites, log)

	c.rehydrate()
	c.wirePersistence()
	return c
}

func (c *Client) rehydrate() {
	var items []models.CartItem
	if ok, err := c.storage.GetJSON(storage.Namespace, storage.KeyCart, &items); err != nil {
		c.log.Warn("cart slice unreadable, starting empty", "error", err)
	} else if ok {
		c.cart.Dispatch(cartstate.Replace{Items: items})
	}

	var entries []models.FavoriteEntry
	if ok, err := c.storage.GetJSON(storage.Namespace, storage.KeyFavorites, &entries); err != nil {
		c.log.Warn("favorites slice unreadable, starting empty", "error", err)
	} else if ok {
		c.favorites.Dispatch(favstate.SetAll{Entries: entries})
	}

	var pts pointsstate.State
	if ok, err := c.storage.GetJSON(storage.Namespace, storage.KeyPoints, &pts); err != nil {
		c.log.Warn("points slice unreadable, starting empty", "error", err)
	} else if ok {
		c.points.Dispatch(pointsstate.SetBalance{Balance: pts.Balance})
		c.points.Dispatch(pointsstate.SetHistory{History: pts.History})
	}
}

// wirePersistence registers the per-slice storage subscribers. Each slice
// has exactly one writer, so namespaced rows never race within the process.
// Chat is deliberately not persisted; a support conversation does not
// survive a restart.
func (c *Client) wirePersistence() {
	c.cart.Subscribe(func(s cartstate.State) {
		if err := c.storage.PutJSON(storage.Namespace, storage.KeyCart, s.Items); err != nil {
			c.log.Error("persist cart", "error", err)
		}
		count := strconv.Itoa(cartstate.Count(s))
		if err := c.storage.Put(storage.Namespace, storage.KeyCartCount, []byte(count)); err != nil {
			c.log.Error("persist cart count", "error", err)
		}
	})

	c.favorites.Subscribe(func(s favstate.State) {
		if err := c.storage.PutJSON(storage.Namespace, storage.KeyFavorites, s.Entries); err != nil {
			c.log.Error("persist favorites", "error", err)
		}
	})

	c.points.Subscribe(func(s pointsstate.State) {
		if err := c.storage.PutJSON(storage.Namespace, storage.KeyPoints, s); err != nil {
			c.log.Error("persist points", "error", err)
		}
	})

	c.auth.Subscribe(func(s authstate.State) {
		if !s.LoggedIn() {
			for _, key := range []string{storage.KeyAuth, storage.KeyUser, storage.KeyAccessToken} {
				if err := c.storage.Delete(storage.Namespace, key); err != nil {
					c.log.Error("wipe auth key", "key", key, "error", err)
				}
			}
			return
		}
		// Fresh credentials re-arm the one-shot expiry guard no matter how
		// they arrived: Login, bootstrap, or a watcher reconcile.
		c.expired.Store(false)
		if err := c.putSealedJSON(storage.KeyAuth, s); err != nil {
			c.log.Error("persist auth slice", "error", err)
		}
		if err := c.storage.PutJSON(storage.Namespace, storage.KeyUser, s.User); err != nil {
			c.log.Error("persist user", "error", err)
		}
		if err := c.storage.PutSealed(storage.Namespace, storage.KeyAccessToken, []byte(s.AccessToken)); err != nil {
			c.log.Error("persist token", "error", err)
		}
	})
}

func (c *Client) putSealedJSON(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.storage.PutSealed(storage.Namespace, key, raw)
}

// Bootstrap restores the persisted session. Safe to call more than once;
// only the first call does anything.
func (c *Client) Bootstrap(ctx context.Context) error {
	return c.boot.Bootstrap(ctx)
}

// Watch blocks, reconciling against external storage writers until ctx
// ends. Run in its own goroutine.
func (c *Client) Watch(ctx context.Context, interval time.Duration) {
	c.boot.Watch(ctx, interval)
}

func (c *Client) SessionPhase() session.Phase { return c.boot.Phase() }

func (c *Client) Notifications() (<-chan notify.Notification, func()) {
	return c.notifier.Subscribe()
}

// State accessors return value copies; mutate only through operations.
func (c *Client) Cart() cartstate.State     { return c.cart.State() }
func (c *Client) Favorites() favstate.State { return c.favorites.State() }
func (c *Client) Auth() authstate.State     { return c.auth.State() }
func (c *Client) Points() pointsstate.State { return c.points.State() }
func (c *Client) Chat() chatstate.State     { return c.chat.State() }

func (c *Client) token() string { return c.auth.State().AccessToken }

// remoteErr funnels every authenticated call's failure through the auth
// expiry check: expired credentials end the session exactly once.
func (c *Client) remoteErr(err error) error {
	if err == nil {
		return nil
	}
	if remote.IsAuthExpired(err) {
		c.expireSession()
	}
	return err
}

func (c *Client) expireSession() {
	if !c.expired.CompareAndSwap(false, true) {
		return
	}
	c.auth.Dispatch(authstate.Clear{})
	if err := c.storage.Delete(storage.Namespace, storage.KeyCartCount); err != nil {
		c.log.Error("wipe cart count", "error", err)
	}
	c.log.Info("session expired, credentials wiped")
	c.notifier.AuthExpired("Phiên đăng nhập đã hết hạn. Vui lòng đăng nhập lại.")
}

// AddToCart applies the merge-or-append mutation locally, then confirms it
// with the backend, reverting just this key on failure.
func (c *Client) AddToCart(ctx context.Context, item models.CartItem) error {
	if item.Quantity < 1 {
		return ErrInvalidQuantity
	}
	c.cartGate.RLock()
	defer c.cartGate.RUnlock()
	return c.ctrl.Do(ctx, optimistic.Mutation{
		Key: "cart:" + item.CacheKey(),
		Apply: func() func() {
			prev := snapshotCartItem(c.cart.State(), item.ItemRef)
			c.cart.Dispatch(cartstate.AddItem{Item: item})
			return func() {
				c.cart.Dispatch(cartstate.RestoreItem{Ref: item.ItemRef, Prev: prev})
			}
		},
		Remote: func(ctx context.Context) error {
			return c.remoteErr(c.backend.AddCartItem(ctx, c.token(), item))
		},
		FailureMessage: "Không thể thêm món vào giỏ hàng. Vui lòng thử lại.",
	})
}

// UpdateQuantity sets the quantity for an existing entry. Quantities below 1
// are rejected here, never clamped; removal is its own operation. An absent
// key is a local and remote no-op.
func (c *Client) UpdateQuantity(ctx context.Context, ref models.ItemRef, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}
	c.cartGate.RLock()
	defer c.cartGate.RUnlock()
	if _, ok := cartstate.Find(c.cart.State(), ref); !ok {
		return nil
	}
	return c.ctrl.Do(ctx, optimistic.Mutation{
		Key: "cart:" + ref.CacheKey(),
		Apply: func() func() {
			prev := snapshotCartItem(c.cart.State(), ref)
			c.cart.Dispatch(cartstate.UpdateQuantity{Ref: ref, Quantity: quantity})
			return func() {
				c.cart.Dispatch(cartstate.RestoreItem{Ref: ref, Prev: prev})
			}
		},
		Remote: func(ctx context.Context) error {
			return c.remoteErr(c.backend.UpdateCartItem(ctx, c.token(), ref, quantity))
		},
		FailureMessage: "Không thể cập nhật số lượng. Vui lòng thử lại.",
	})
}

// RemoveFromCart drops one entry. Removing an absent key is a no-op and
// performs no remote call, making double-removal harmless.
func (c *Client) RemoveFromCart(ctx context.Context, ref models.ItemRef) error {
	c.cartGate.RLock()
	defer c.cartGate.RUnlock()
	if _, ok := cartstate.Find(c.cart.State(), ref); !ok {
		return nil
	}
	return c.ctrl.Do(ctx, optimistic.Mutation{
		Key: "cart:" + ref.CacheKey(),
		Apply: func() func() {
			prev := snapshotCartItem(c.cart.State(), ref)
			c.cart.Dispatch(cartstate.RemoveItem{Ref: ref})
			return func() {
				c.cart.Dispatch(cartstate.RestoreItem{Ref: ref, Prev: prev})
			}
		},
		Remote: func(ctx context.Context) error {
			return c.remoteErr(c.backend.RemoveCartItem(ctx, c.token(), ref))
		},
		FailureMessage: "Không thể xoá món khỏi giỏ hàng. Vui lòng thử lại.",
	})
}

// ClearCart empties the whole cart. It holds the cart gate exclusively for
// the whole protocol, so no per-item mutation can confirm between the wipe
// and its compensation.
func (c *Client) ClearCart(ctx context.Context) error {
	c.cartGate.Lock()
	defer c.cartGate.Unlock()
	return c.ctrl.Do(ctx, optimistic.Mutation{
		Key: "cart",
		Apply: func() func() {
			prev := c.cart.State().Items
			c.cart.Dispatch(cartstate.Clear{})
			return func() {
				c.cart.Dispatch(cartstate.Replace{Items: prev})
			}
		},
		Remote: func(ctx context.Context) error {
			return c.remoteErr(c.backend.ClearCart(ctx, c.token()))
		},
		FailureMessage: "Không thể xoá giỏ hàng. Vui lòng thử lại.",
	})
}

// RefreshCart replaces the local cart with the server's authoritative copy.
func (c *Client) RefreshCart(ctx context.Context) error {
	items, err := c.backend.FetchCart(ctx, c.token())
	if err != nil {
		return c.remoteErr(err)
	}
	c.cart.Dispatch(cartstate.Replace{Items: items})
	return nil
}

func (c *Client) AddFavorite(ctx context.Context, ref models.ItemRef) error {
	return c.ctrl.Do(ctx, optimistic.Mutation{
		Key: "fav:" + ref.CacheKey(),
		Apply: func() func() {
			before := len(c.favorites.State().Entries)
			c.favorites.Dispatch(favstate.Add{Entry: models.FavoriteEntry{ItemRef: ref}})
			appended := len(c.favorites.State().Entries) > before
			return func() {
				if appended {
					c.favorites.Dispatch(favstate.RemoveOne{Ref: ref})
				}
			}
		},
		Remote: func(ctx context.Context) error {
			return c.remoteErr(c.backend.AddFavorite(ctx, c.token(), ref))
		},
		FailureMessage: "Không thể thêm vào mục yêu thích. Vui lòng thử lại.",
	})
}

func (c *Client) RemoveFavorite(ctx context.Context, ref models.ItemRef) error {
	if !favstate.Contains(c.favorites.State(), ref) {
		return nil
	}
	return c.ctrl.Do(ctx, optimistic.Mutation{
		Key: "fav:" + ref.CacheKey(),
		Apply: func() func() {
			wasPresent := favstate.Contains(c.favorites.State(), ref)
			c.favorites.Dispatch(favstate.Remove{Ref: ref})
			return func() {
				if wasPresent {
					c.favorites.Dispatch(favstate.Add{Entry: models.FavoriteEntry{ItemRef: ref}})
				}
			}
		},
		Remote: func(ctx context.Context) error {
			return c.remoteErr(c.backend.RemoveFavorite(ctx, c.token(), ref))
		},
		FailureMessage: "Không thể xoá khỏi mục yêu thích. Vui lòng thử lại.",
	})
}

// ToggleFavorite adds or removes depending on current membership.
func (c *Client) ToggleFavorite(ctx context.Context, ref models.ItemRef) error {
	if favstate.Contains(c.favorites.State(), ref) {
		return c.RemoveFavorite(ctx, ref)
	}
	return c.AddFavorite(ctx, ref)
}

func (c *Client) fetchFavorites(ctx context.Context) {
	entries, err := c.backend.FetchFavorites(ctx, c.token())
	if err != nil {
		c.log.Warn("favorites fetch failed", "error", err)
		_ = c.remoteErr(err)
		return
	}
	c.favorites.Dispatch(favstate.SetAll{Entries: entries})
}

// SendChatMessage runs the loading-placeholder protocol: the user message
// and a single placeholder appear immediately, and the placeholder is
// replaced (never accompanied by a second one) when the round-trip resolves.
func (c *Client) SendChatMessage(ctx context.Context, text string) (string, error) {
	c.chat.Dispatch(chatstate.InitSession{})
	c.chat.Dispatch(chatstate.AddUserMessage{Text: text})
	s := c.chat.Dispatch(chatstate.AddLoading{})

	reply, err := c.backend.SendChat(ctx, s.SessionID, text)
	c.chat.Dispatch(chatstate.ResolveLoading{Reply: reply, Err: err})
	if err != nil {
		return "", err
	}
	return reply, nil
}

// ChatHistory fetches the transcript the backend holds for this session.
func (c *Client) ChatHistory(ctx context.Context) ([]models.ChatMessage, error) {
	s := c.chat.Dispatch(chatstate.InitSession{})
	return c.backend.ChatHistory(ctx, s.SessionID)
}

func (c *Client) ResetChat() {
	c.chat.Dispatch(chatstate.ClearSession{})
}

func (c *Client) RefreshPoints(ctx context.Context) error {
	balance, err := c.backend.CurrentPoints(ctx, c.token())
	if err != nil {
		return c.remoteErr(err)
	}
	c.points.Dispatch(pointsstate.SetBalance{Balance: balance})
	return nil
}

func (c *Client) LoadPointsHistory(ctx context.Context) error {
	history, err := c.backend.PointsHistory(ctx, c.token())
	if err != nil {
		return c.remoteErr(err)
	}
	c.points.Dispatch(pointsstate.SetHistory{History: history})
	return nil
}

// Coupon operations are not optimistic: the server is the only authority on
// validity and nothing mutates locally. A rejection comes back as the
// server's own message for the UI to show verbatim.
func (c *Client) AvailableCoupons(ctx context.Context) ([]models.Coupon, error) {
	coupons, err := c.backend.AvailableCoupons(ctx, c.token())
	return coupons, c.remoteErr(err)
}

func (c *Client) ValidateCoupon(ctx context.Context, code string) (models.Coupon, error) {
	coupon, err := c.backend.ValidateCoupon(ctx, c.token(), code)
	return coupon, c.remoteErr(err)
}

func (c *Client) RedeemCoupon(ctx context.Context, code string) error {
	return c.remoteErr(c.backend.RedeemCoupon(ctx, c.token(), code))
}

// Login installs credentials obtained by the external auth flow, persists
// them via the auth subscriber, and kicks off the favorites fetch.
func (c *Client) Login(ctx context.Context, token string, user *models.User) error {
	if user == nil || token == "" {
		return ErrNotLoggedIn
	}
	c.auth.Dispatch(authstate.Populate{User: user, AccessToken: token})
	c.fetchFavorites(ctx)
	return nil
}

// Logout clears the auth slice and the cartCount cache key. The cart item
// list itself is kept: a guest returning to the same device sees their
// drafted order. The session stays READY.
func (c *Client) Logout() {
	c.auth.Dispatch(authstate.Clear{})
	if err := c.storage.Delete(storage.Namespace, storage.KeyCartCount); err != nil {
		c.log.Error("wipe cart count", "error", err)
	}
	c.notifier.Info("Đã đăng xuất.")
}

func snapshotCartItem(s cartstate.State, ref models.ItemRef) *models.CartItem {
	if it, ok := cartstate.Find(s, ref); ok {
		return &it
	}
	return nil
}
