package client

import (
	"context"
	"log/slog"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/DUYLINH1402/orderfood-client/internal/models"
	"github.com/DUYLINH1402/orderfood-client/internal/notify"
	cartstate "github.com/DUYLINH1402/orderfood-client/internal/state/cart"
	"github.com/DUYLINH1402/orderfood-client/internal/storage"
	remote "github.com/DUYLINH1402/orderfood-client/internal/sync"
)

// fakeBackend satisfies remote.Backend with injectable failures and call
// counters. Zero value answers every call successfully.
type fakeBackend struct {
	addCartCalls   int
	updateCalls    int
	removeCalls    int
	clearCalls     int
	addFavCalls    int
	removeFavCalls int
	fetchFavCalls  int
	chatCalls      int
	failWith       error
	favorites      []models.FavoriteEntry
	chatReply      string
}

func (f *fakeBackend) FetchCart(ctx context.Context, token string) ([]models.CartItem, error) {
	return nil, f.failWith
}

func (f *fakeBackend) AddCartItem(ctx context.Context, token string, item models.CartItem) error {
	f.addCartCalls++
	return f.failWith
}

func (f *fakeBackend) UpdateCartItem(ctx context.Context, token string, ref models.ItemRef, quantity int) error {
	f.updateCalls++
	return f.failWith
}

func (f *fakeBackend) RemoveCartItem(ctx context.Context, token string, ref models.ItemRef) error {
	f.removeCalls++
	return f.failWith
}

func (f *fakeBackend) ClearCart(ctx context.Context, token string) error {
	f.clearCalls++
	return f.failWith
}

func (f *fakeBackend) FetchFavorites(ctx context.Context, token string) ([]models.FavoriteEntry, error) {
	f.fetchFavCalls++
	return f.favorites, f.failWith
}

func (f *fakeBackend) AddFavorite(ctx context.Context, token string, ref models.ItemRef) error {
	f.addFavCalls++
	return f.failWith
}

func (f *fakeBackend) RemoveFavorite(ctx context.Context, token string, ref models.ItemRef) error {
	f.removeFavCalls++
	return f.failWith
}

func (f *fakeBackend) SendChat(ctx context.Context, sessionID, text string) (string, error) {
	f.chatCalls++
	return f.chatReply, f.failWith
}

func (f *fakeBackend) ChatHistory(ctx context.Context, sessionID string) ([]models.ChatMessage, error) {
	return nil, f.failWith
}

func (f *fakeBackend) CurrentPoints(ctx context.Context, token string) (int64, error) {
	return 120, f.failWith
}

func (f *fakeBackend) PointsHistory(ctx context.Context, token string) ([]models.PointsEntry, error) {
	return []models.PointsEntry{{ID: 1, Delta: 120, Description: "Đơn hàng #1"}}, f.failWith
}

func (f *fakeBackend) AvailableCoupons(ctx context.Context, token string) ([]models.Coupon, error) {
	return nil, f.failWith
}

func (f *fakeBackend) ValidateCoupon(ctx context.Context, token, code string) (models.Coupon, error) {
	return models.Coupon{Code: code}, f.failWith
}

func (f *fakeBackend) RedeemCoupon(ctx context.Context, token, code string) error {
	return f.failWith
}

func newTestClient(t *testing.T, backend remote.Backend) (*Client, *storage.Store) {
	t.Helper()
	st, err := storage.Open(filepath.Join(t.TempDir(), "client.db"), nil)
	require.NoError(t, err)
	return New(st, backend, slog.Default(), Options{FavoritesDedupe: true}), st
}

func item(foodID int64, qty int) models.CartItem {
	return models.CartItem{
		ItemRef:  models.ItemRef{FoodID: foodID},
		FoodName: "Cơm tấm",
		Price:    55000,
		Quantity: qty,
	}
}

func drainNotifications(ch <-chan notify.Notification) []notify.Notification {
	var out []notify.Notification
	for {
		select {
		case n := <-ch:
			out = append(out, n)
		case <-time.After(20 * time.Millisecond):
			return out
		}
	}
}

func TestAddToCartPersists(t *testing.T) {
	f := &fakeBackend{}
	c, st := newTestClient(t, f)

	require.NoError(t, c.AddToCart(context.Background(), item(1, 2)))
	require.NoError(t, c.AddToCart(context.Background(), item(1, 1)))

	s := c.Cart()
	require.Len(t, s.Items, 1)
	require.Equal(t, 3, s.Items[0].Quantity)
	require.Equal(t, 2, f.addCartCalls)

	var persisted []models.CartItem
	ok, err := st.GetJSON(storage.Namespace, storage.KeyCart, &persisted)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, s.Items, persisted)

	raw, ok, err := st.Get(storage.Namespace, storage.KeyCartCount)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, strconv.Itoa(3), string(raw))
}

func TestAddToCartRejectsNonPositiveQuantity(t *testing.T) {
	f := &fakeBackend{}
	c, _ := newTestClient(t, f)

	require.ErrorIs(t, c.AddToCart(context.Background(), item(1, 0)), ErrInvalidQuantity)
	require.Zero(t, f.addCartCalls)
	require.Empty(t, c.Cart().Items)
}

func TestUpdateQuantityAbsentKeySkipsRemote(t *testing.T) {
	f := &fakeBackend{}
	c, _ := newTestClient(t, f)

	require.NoError(t, c.UpdateQuantity(context.Background(), models.ItemRef{FoodID: 1}, 5))
	require.Zero(t, f.updateCalls)
	require.Empty(t, c.Cart().Items)
}

func TestUpdateQuantityRejectsZero(t *testing.T) {
	f := &fakeBackend{}
	c, _ := newTestClient(t, f)
	require.NoError(t, c.AddToCart(context.Background(), item(1, 2)))

	require.ErrorIs(t, c.UpdateQuantity(context.Background(), models.ItemRef{FoodID: 1}, 0), ErrInvalidQuantity)
	require.Equal(t, 2, c.Cart().Items[0].Quantity)
}

func TestRemoveFromCartIdempotent(t *testing.T) {
	f := &fakeBackend{}
	c, _ := newTestClient(t, f)
	require.NoError(t, c.AddToCart(context.Background(), item(1, 2)))

	require.NoError(t, c.RemoveFromCart(context.Background(), models.ItemRef{FoodID: 1}))
	require.NoError(t, c.RemoveFromCart(context.Background(), models.ItemRef{FoodID: 1}))

	require.Equal(t, 1, f.removeCalls)
	require.Empty(t, c.Cart().Items)
}

func TestFailedCartMutationCompensates(t *testing.T) {
	f := &fakeBackend{}
	c, _ := newTestClient(t, f)
	require.NoError(t, c.AddToCart(context.Background(), item(1, 2)))

	notifications, stop := c.Notifications()
	defer stop()

	f.failWith = &remote.APIError{Status: 500, Message: "boom"}
	require.Error(t, c.UpdateQuantity(context.Background(), models.ItemRef{FoodID: 1}, 9))

	require.Equal(t, 2, c.Cart().Items[0].Quantity)
	got := drainNotifications(notifications)
	require.Len(t, got, 1)
	require.Equal(t, notify.LevelError, got[0].Level)
}

func TestFailedAddFavoriteRevertsAndNotifiesOnce(t *testing.T) {
	f := &fakeBackend{failWith: &remote.APIError{Status: 500, Message: "boom"}}
	c, _ := newTestClient(t, f)

	notifications, stop := c.Notifications()
	defer stop()

	err := c.AddFavorite(context.Background(), models.ItemRef{FoodID: 7})
	require.Error(t, err)
	require.Empty(t, c.Favorites().Entries)

	got := drainNotifications(notifications)
	require.Len(t, got, 1)
	require.Equal(t, notify.KindTransient, got[0].Kind)
}

func TestToggleFavorite(t *testing.T) {
	f := &fakeBackend{}
	c, _ := newTestClient(t, f)

	require.NoError(t, c.ToggleFavorite(context.Background(), models.ItemRef{FoodID: 7}))
	require.Len(t, c.Favorites().Entries, 1)
	require.Equal(t, 1, f.addFavCalls)

	require.NoError(t, c.ToggleFavorite(context.Background(), models.ItemRef{FoodID: 7}))
	require.Empty(t, c.Favorites().Entries)
	require.Equal(t, 1, f.removeFavCalls)
}

func TestLoginFetchesFavorites(t *testing.T) {
	f := &fakeBackend{favorites: []models.FavoriteEntry{{ItemRef: models.ItemRef{FoodID: 3}}}}
	c, _ := newTestClient(t, f)

	err := c.Login(context.Background(), "tok", &models.User{ID: 9, Name: "Duy"})
	require.NoError(t, err)

	require.True(t, c.Auth().LoggedIn())
	require.Equal(t, 1, f.fetchFavCalls)
	require.Len(t, c.Favorites().Entries, 1)
}

func TestLogoutClearsAuthAndCartCountButKeepsCart(t *testing.T) {
	f := &fakeBackend{}
	c, st := newTestClient(t, f)
	require.NoError(t, c.Login(context.Background(), "tok", &models.User{ID: 9}))
	for i := int64(1); i <= 3; i++ {
		require.NoError(t, c.AddToCart(context.Background(), item(i, 1)))
	}

	c.Logout()

	require.False(t, c.Auth().LoggedIn())
	require.Len(t, c.Cart().Items, 3)

	_, ok, err := st.Get(storage.Namespace, storage.KeyCartCount)
	require.NoError(t, err)
	require.False(t, ok)
	_, ok, err = st.Get(storage.Namespace, storage.KeyAccessToken)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestAuthExpiryEndsSessionExactlyOnce(t *testing.T) {
	f := &fakeBackend{}
	c, st := newTestClient(t, f)
	require.NoError(t, c.Login(context.Background(), "tok", &models.User{ID: 9}))
	require.NoError(t, c.AddToCart(context.Background(), item(1, 1)))

	notifications, stop := c.Notifications()
	defer stop()

	f.failWith = &remote.APIError{Status: 401, Message: "expired"}
	require.Error(t, c.AddToCart(context.Background(), item(2, 1)))
	require.Error(t, c.RefreshPoints(context.Background()))

	require.False(t, c.Auth().LoggedIn())
	_, ok, err := st.Get(storage.Namespace, storage.KeyAccessToken)
	require.NoError(t, err)
	require.False(t, ok)

	var expiries int
	for _, n := range drainNotifications(notifications) {
		if n.Kind == notify.KindAuthExpired {
			expiries++
		}
	}
	require.Equal(t, 1, expiries)
}

// gatedClearBackend holds ClearCart open until released, then fails it.
type gatedClearBackend struct {
	*fakeBackend
	clearEntered chan struct{}
	clearRelease chan struct{}
}

func (g *gatedClearBackend) ClearCart(ctx context.Context, token string) error {
	close(g.clearEntered)
	<-g.clearRelease
	return &remote.APIError{Status: 500, Message: "boom"}
}

func TestClearCartSerializesWithItemMutations(t *testing.T) {
	g := &gatedClearBackend{
		fakeBackend:  &fakeBackend{},
		clearEntered: make(chan struct{}),
		clearRelease: make(chan struct{}),
	}
	c, _ := newTestClient(t, g)
	require.NoError(t, c.AddToCart(context.Background(), item(1, 1)))

	clearDone := make(chan error, 1)
	go func() { clearDone <- c.ClearCart(context.Background()) }()
	<-g.clearEntered

	addDone := make(chan error, 1)
	go func() { addDone <- c.AddToCart(context.Background(), item(2, 1)) }()
	select {
	case <-addDone:
		t.Fatal("item mutation ran while the cart-wide clear was in flight")
	case <-time.After(30 * time.Millisecond):
	}

	close(g.clearRelease)
	require.Error(t, <-clearDone)
	require.NoError(t, <-addDone)

	s := c.Cart()
	require.Len(t, s.Items, 2)
	_, ok := cartstate.Find(s, models.ItemRef{FoodID: 1})
	require.True(t, ok, "failed clear must restore the pre-clear entry")
	_, ok = cartstate.Find(s, models.ItemRef{FoodID: 2})
	require.True(t, ok, "add issued during the clear must land after it resolves")
}

// switchableBackend fails CurrentPoints with a 401 while fail is set; every
// other call goes to the embedded fake.
type switchableBackend struct {
	*fakeBackend
	fail atomic.Bool
}

func (s *switchableBackend) CurrentPoints(ctx context.Context, token string) (int64, error) {
	if s.fail.Load() {
		return 0, &remote.APIError{Status: 401, Message: "expired"}
	}
	return 120, nil
}

func TestExpiryRearmsAfterExternalLogin(t *testing.T) {
	b := &switchableBackend{fakeBackend: &fakeBackend{}}
	c, st := newTestClient(t, b)
	require.NoError(t, c.Bootstrap(context.Background()))
	require.NoError(t, c.Login(context.Background(), "tok-1", &models.User{ID: 9, Name: "Duy"}))

	notifications, stop := c.Notifications()
	defer stop()

	b.fail.Store(true)
	require.Error(t, c.RefreshPoints(context.Background()))
	require.False(t, c.Auth().LoggedIn())
	b.fail.Store(false)

	// Another process signs in and writes credentials into the shared store;
	// the watcher picks them up.
	require.NoError(t, st.PutSealed(storage.Namespace, storage.KeyAccessToken, []byte("tok-2")))
	require.NoError(t, st.PutJSON(storage.Namespace, storage.KeyUser, &models.User{ID: 9, Name: "Duy"}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	watchDone := make(chan struct{})
	go func() {
		c.Watch(ctx, 5*time.Millisecond)
		close(watchDone)
	}()
	require.Eventually(t, func() bool { return c.Auth().LoggedIn() }, 2*time.Second, 5*time.Millisecond)
	cancel()
	<-watchDone

	b.fail.Store(true)
	require.Error(t, c.RefreshPoints(context.Background()))

	require.False(t, c.Auth().LoggedIn())
	_, ok, err := st.Get(storage.Namespace, storage.KeyAccessToken)
	require.NoError(t, err)
	require.False(t, ok)

	var expiries int
	for _, n := range drainNotifications(notifications) {
		if n.Kind == notify.KindAuthExpired {
			expiries++
		}
	}
	require.Equal(t, 2, expiries)
}

func TestRehydrationAcrossRestart(t *testing.T) {
	f := &fakeBackend{}
	st, err := storage.Open(filepath.Join(t.TempDir(), "restart.db"), nil)
	require.NoError(t, err)

	first := New(st, f, slog.Default(), Options{FavoritesDedupe: true})
	require.NoError(t, first.AddToCart(context.Background(), item(1, 2)))
	require.NoError(t, first.ToggleFavorite(context.Background(), models.ItemRef{FoodID: 7}))

	second := New(st, f, slog.Default(), Options{FavoritesDedupe: true})
	require.Equal(t, first.Cart().Items, second.Cart().Items)
	require.Equal(t, first.Favorites().Entries, second.Favorites().Entries)
}

func TestSendChatMessage(t *testing.T) {
	f := &fakeBackend{chatReply: "Dạ có ạ!"}
	c, _ := newTestClient(t, f)

	reply, err := c.SendChatMessage(context.Background(), "Có cơm tấm không?")
	require.NoError(t, err)
	require.Equal(t, "Dạ có ạ!", reply)

	s := c.Chat()
	require.NotEmpty(t, s.SessionID)
	require.False(t, s.Loading)
	last := s.Messages[len(s.Messages)-1]
	require.Equal(t, models.RoleBot, last.Role)
	require.Equal(t, "Dạ có ạ!", last.Text)
}

func TestSendChatMessageFailureReplacesPlaceholder(t *testing.T) {
	f := &fakeBackend{failWith: &remote.APIError{Status: 502, Message: "bad gateway"}}
	c, _ := newTestClient(t, f)

	_, err := c.SendChatMessage(context.Background(), "alo?")
	require.Error(t, err)

	s := c.Chat()
	require.False(t, s.Loading)
	last := s.Messages[len(s.Messages)-1]
	require.Equal(t, models.KindError, last.Kind)
}

func TestRefreshPointsUpdatesSlice(t *testing.T) {
	f := &fakeBackend{}
	c, _ := newTestClient(t, f)

	require.NoError(t, c.RefreshPoints(context.Background()))
	require.NoError(t, c.LoadPointsHistory(context.Background()))

	s := c.Points()
	require.Equal(t, int64(120), s.Balance)
	require.Len(t, s.History, 1)
}

func TestBootstrapRestoresPersistedLogin(t *testing.T) {
	f := &fakeBackend{favorites: []models.FavoriteEntry{{ItemRef: models.ItemRef{FoodID: 5}}}}
	st, err := storage.Open(filepath.Join(t.TempDir(), "boot.db"), nil)
	require.NoError(t, err)

	first := New(st, f, slog.Default(), Options{FavoritesDedupe: true})
	require.NoError(t, first.Login(context.Background(), "tok", &models.User{ID: 9, Name: "Duy"}))

	second := New(st, f, slog.Default(), Options{FavoritesDedupe: true})
	require.NoError(t, second.Bootstrap(context.Background()))

	require.True(t, second.Auth().LoggedIn())
	require.Equal(t, int64(9), second.Auth().User.ID)
	require.Len(t, second.Favorites().Entries, 1)
}
