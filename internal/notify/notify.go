// Package notify carries transient user-facing notifications from the sync
// and optimistic layers to whatever surface renders them. Publishing never
// blocks: a slow or absent consumer drops messages rather than stalling a
// dispatch.
package notify

import (
	"log/slog"
	"sync"
	"time"
)

type Level string

const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

type Kind string

const (
	// KindTransient is an ordinary dismissible toast.
	KindTransient Kind = "transient"
	// KindAuthExpired tells the shell to wipe its view of the session and
	// route the user back to login.
	KindAuthExpired Kind = "auth_expired"
)

type Notification struct {
	Level   Level     `json:"level"`
	Kind    Kind      `json:"kind"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

type Center struct {
	mu   sync.Mutex
	subs []chan Notification
	log  *slog.Logger
}

func NewCenter(log *slog.Logger) *Center {
	return &Center{log: log}
}

// Subscribe returns a buffered channel of notifications and a cancel func.
// After cancel the channel is closed and no longer published to.
func (c *Center) Subscribe() (<-chan Notification, func()) {
	ch := make(chan Notification, 16)
	c.mu.Lock()
	c.subs = append(c.subs, ch)
	c.mu.Unlock()

	cancel := func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, s := range c.subs {
			if s == ch {
				c.subs = append(c.subs[:i], c.subs[i+1:]...)
				close(ch)
				return
			}
		}
	}
	return ch, cancel
}

func (c *Center) publish(n Notification) {
	n.Time = time.Now().UTC()
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range c.subs {
		select {
		case ch <- n:
		default:
			c.log.Warn("notification dropped", "kind", n.Kind, "message", n.Message)
		}
	}
}

func (c *Center) Info(msg string) {
	c.publish(Notification{Level: LevelInfo, Kind: KindTransient, Message: msg})
}

func (c *Center) Error(msg string) {
	c.publish(Notification{Level: LevelError, Kind: KindTransient, Message: msg})
}

func (c *Center) AuthExpired(msg string) {
	c.publish(Notification{Level: LevelError, Kind: KindAuthExpired, Message: msg})
}
