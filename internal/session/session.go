// Package session owns startup rehydration of the auth slice: read the
// persisted credentials once, populate the container exactly once, and kick
// off the favorites fetch for a signed-in user. It also watches the durable
// store for writes from another process and reconciles.
package session

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/DUYLINH1402/orderfood-client/internal/models"
	authstate "github.com/DUYLINH1402/orderfood-client/internal/state/auth"
	"github.com/DUYLINH1402/orderfood-client/internal/storage"
	"github.com/DUYLINH1402/orderfood-client/internal/store"
)

type Phase int32

const (
	PhaseUninitialized Phase = iota
	PhaseInitializing
	PhaseReady
)

func (p Phase) String() string {
	switch p {
	case PhaseInitializing:
		return "initializing"
	case PhaseReady:
		return "ready"
	default:
		return "uninitialized"
	}
}

type Bootstrapper struct {
	storage *storage.Store
	auth    *store.Container[authstate.State, authstate.Action]
	log     *slog.Logger

	// onAuthenticated fires after a successful populate, at bootstrap and on
	// a watcher reconcile. Wired to the favorites fetch.
	onAuthenticated func(ctx context.Context)

	phase atomic.Int32

	mu       sync.Mutex
	lastSeen time.Time
}

func NewBootstrapper(
	st *storage.Store,
	auth *store.Container[authstate.State, authstate.Action],
	onAuthenticated func(ctx context.Context),
	log *slog.Logger,
) *Bootstrapper {
	return &Bootstrapper{storage: st, auth: auth, onAuthenticated: onAuthenticated, log: log}
}

func (b *Bootstrapper) Phase() Phase {
	return Phase(b.phase.Load())
}

// Bootstrap runs the read step exactly once per process lifetime. Re-entrant
// calls, however they are triggered, are no-ops. The terminal phase is
// READY; logout never moves the phase back.
func (b *Bootstrapper) Bootstrap(ctx context.Context) error {
	if !b.phase.CompareAndSwap(int32(PhaseUninitialized), int32(PhaseInitializing)) {
		return nil
	}
	defer b.phase.Store(int32(PhaseReady))

	b.mu.Lock()
	b.lastSeen = time.Now().UTC()
	b.mu.Unlock()

	user, token, ok := b.readCredentials()
	if !ok {
		return nil
	}

	b.auth.Dispatch(authstate.Populate{User: user, AccessToken: token})
	b.log.Info("session restored", "user_id", user.ID)
	if b.onAuthenticated != nil {
		b.onAuthenticated(ctx)
	}
	return nil
}

// readCredentials loads the legacy user/accessToken keys. Anything malformed
// wipes both entries and reports no session; corruption is recovered
// locally, never surfaced as a blocking error.
func (b *Bootstrapper) readCredentials() (*models.User, string, bool) {
	rawToken, hasToken, err := b.storage.GetSealed(storage.Namespace, storage.KeyAccessToken)
	if err != nil {
		b.log.Warn("stored token unreadable, discarding", "error", err)
		b.wipeCredentials()
		return nil, "", false
	}
	rawUser, hasUser, err := b.storage.Get(storage.Namespace, storage.KeyUser)
	if err != nil {
		b.log.Warn("stored user unreadable, discarding", "error", err)
		b.wipeCredentials()
		return nil, "", false
	}
	if !hasToken || !hasUser {
		if hasToken || hasUser {
			b.wipeCredentials()
		}
		return nil, "", false
	}

	user, err := models.ParseUser(rawUser)
	if err != nil {
		b.log.Warn("stored user malformed, discarding", "error", err)
		b.wipeCredentials()
		return nil, "", false
	}

	token := string(rawToken)
	if token == "" || tokenExpired(token) {
		b.log.Info("stored token expired or empty, discarding")
		b.wipeCredentials()
		return nil, "", false
	}
	return user, token, true
}

func (b *Bootstrapper) wipeCredentials() {
	if err := b.storage.Delete(storage.Namespace, storage.KeyUser); err != nil {
		b.log.Warn("wipe user key", "error", err)
	}
	if err := b.storage.Delete(storage.Namespace, storage.KeyAccessToken); err != nil {
		b.log.Warn("wipe token key", "error", err)
	}
}

// tokenExpired inspects the exp claim without verifying the signature; the
// token is opaque to the client, but a JWT that is already expired would
// only produce a doomed session. Tokens that do not parse as JWTs pass.
func tokenExpired(token string) bool {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Before(time.Now())
}

// Watch polls the durable store and re-runs the read step when another
// writer changed it, reconciling this process's auth slice with the shared
// storage. Blocks until ctx is done; run it in its own goroutine.
func (b *Bootstrapper) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.reconcile(ctx)
		}
	}
}

func (b *Bootstrapper) reconcile(ctx context.Context) {
	if b.Phase() != PhaseReady {
		return
	}
	b.mu.Lock()
	since := b.lastSeen
	b.mu.Unlock()

	changed, err := b.storage.ChangedSince(storage.Namespace, since)
	if err != nil {
		b.log.Warn("storage watch", "error", err)
		return
	}
	if !changed {
		return
	}
	b.mu.Lock()
	b.lastSeen = time.Now().UTC()
	b.mu.Unlock()

	user, token, ok := b.readCredentials()
	current := b.auth.State()
	switch {
	case ok && !current.LoggedIn():
		b.auth.Dispatch(authstate.Populate{User: user, AccessToken: token})
		b.log.Info("session picked up from external write", "user_id", user.ID)
		if b.onAuthenticated != nil {
			b.onAuthenticated(ctx)
		}
	case !ok && current.LoggedIn():
		b.auth.Dispatch(authstate.Clear{})
		b.log.Info("session cleared after external write")
	}
}
