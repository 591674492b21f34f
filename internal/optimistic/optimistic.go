// Package optimistic implements the one update protocol every server-backed
// mutation goes through: apply locally first, confirm remotely, compensate
// the single affected key on failure. The web client repeated this pattern
// inline per feature; here it is a single reusable controller.
package optimistic

import (
	"context"
	"log/slog"
	"sync"
)

// Notifier is the user-facing failure surface. Satisfied by *notify.Center.
type Notifier interface {
	Error(msg string)
}

// Mutation describes one optimistic update.
type Mutation struct {
	// Key names the mutated entity, e.g. "cart:12:3". Mutations sharing a
	// key serialize; mutations on different keys run concurrently.
	Key string

	// Apply performs the local dispatch and returns the compensation closure
	// capturing the pre-mutation snapshot for this key. It runs under the
	// key lock, so the snapshot always includes every earlier mutation on
	// the same key.
	Apply func() (revert func())

	// Remote performs exactly one adapter call confirming the mutation.
	Remote func(ctx context.Context) error

	// OnSuccess optionally merges server-authoritative fields after the
	// remote call confirms. May be nil.
	OnSuccess func()

	// FailureMessage is shown to the user exactly once when Remote fails.
	FailureMessage string
}

type Controller struct {
	mu       sync.Mutex
	keyLocks map[string]*sync.Mutex

	notifier Notifier
	log      *slog.Logger
}

func NewController(notifier Notifier, log *slog.Logger) *Controller {
	return &Controller{
		keyLocks: make(map[string]*sync.Mutex),
		notifier: notifier,
		log:      log,
	}
}

func (c *Controller) lockFor(key string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.keyLocks[key]
	if !ok {
		l = &sync.Mutex{}
		c.keyLocks[key] = l
	}
	return l
}

// Do runs one mutation to completion and returns the remote error, if any.
// The key lock is held across the whole protocol: a second mutation on the
// same key does not even take its snapshot until this one has either been
// confirmed or compensated, so a revert can never clobber an intervening
// successful change. Remote confirmations for different keys still resolve
// in any order.
func (c *Controller) Do(ctx context.Context, m Mutation) error {
	l := c.lockFor(m.Key)
	l.Lock()
	defer l.Unlock()

	revert := m.Apply()

	if err := m.Remote(ctx); err != nil {
		revert()
		c.log.Warn("optimistic mutation reverted", "key", m.Key, "error", err)
		if m.FailureMessage != "" {
			c.notifier.Error(m.FailureMessage)
		}
		return err
	}

	if m.OnSuccess != nil {
		m.OnSuccess()
	}
	return nil
}
