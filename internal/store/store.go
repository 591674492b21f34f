// Package store provides the state container primitive every application
// slice (cart, favorites, auth, points, chat) is built on. A container owns
// exactly one slice of state, mutated only through its reducer; side effects
// live in the sync and optimistic layers, never here.
package store

import "sync"

// Container holds one state slice S mutated through actions of type A.
// Dispatches are serialized: actions applied from the same call stack take
// effect in dispatch order, and subscribers observe every intermediate state
// in that same order.
type Container[S any, A any] struct {
	mu     sync.Mutex
	state  S
	reduce func(S, A) S
	subs   []func(S)
}

// New builds a container around a pure reducer. The reducer must not perform
// I/O and must return a fresh value rather than mutating its input.
func New[S any, A any](initial S, reduce func(S, A) S) *Container[S, A] {
	return &Container[S, A]{state: initial, reduce: reduce}
}

// Dispatch applies one action and returns the resulting state. Subscribers
// run synchronously before the next dispatch is admitted, which is what lets
// the persistence subscriber act as the single writer for its namespace.
func (c *Container[S, A]) Dispatch(a A) S {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = c.reduce(c.state, a)
	for _, fn := range c.subs {
		fn(c.state)
	}
	return c.state
}

// State returns the current slice value.
func (c *Container[S, A]) State() S {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe registers fn to run after every dispatch. There is no
// unsubscribe: subscribers are wired once at composition time and must
// tolerate dispatches that arrive after their consumer went away.
func (c *Container[S, A]) Subscribe(fn func(S)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs = append(c.subs, fn)
}
