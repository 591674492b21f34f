// Package chat owns the support chatbot slice: a client-generated session id
// and the ordered message transcript. At most one loading placeholder may
// exist at a time; it is always replaced in place, never appended past.
package chat

import (
	"time"

	"github.com/google/uuid"

	"github.com/DUYLINH1402/orderfood-client/internal/models"
)

const welcomeText = "Xin chào! Mình có thể giúp gì cho bạn hôm nay?"

type State struct {
	SessionID string               `json:"sessionId"`
	Messages  []models.ChatMessage `json:"messages"`
	Loading   bool                 `json:"loading"`
}

type Action interface{ chatAction() }

// InitSession starts a fresh session with a single welcome message. It is a
// no-op when a session already exists, so callers may fire it eagerly.
type InitSession struct{}

type AddUserMessage struct {
	Text string
}

// AddLoading appends the single loading placeholder. The one-at-a-time
// contract is enforced here: a second AddLoading while one is pending is a
// no-op.
type AddLoading struct{}

// ResolveLoading replaces the first pending placeholder with either the bot
// reply or a generated error message. Without a pending placeholder it is a
// no-op.
type ResolveLoading struct {
	Reply string
	Err   error
}

type ClearSession struct{}

func (InitSession) chatAction()    {}
func (AddUserMessage) chatAction() {}
func (AddLoading) chatAction()     {}
func (ResolveLoading) chatAction() {}
func (ClearSession) chatAction()   {}

func newMessage(role models.ChatRole, kind models.ChatKind, text string) models.ChatMessage {
	return models.ChatMessage{
		ID:        uuid.NewString(),
		Role:      role,
		Kind:      kind,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
}

func Reduce(s State, a Action) State {
	switch act := a.(type) {
	case InitSession:
		if s.SessionID != "" {
			return s
		}
		return State{
			SessionID: uuid.NewString(),
			Messages:  []models.ChatMessage{newMessage(models.RoleBot, models.KindWelcome, welcomeText)},
		}

	case AddUserMessage:
		return State{
			SessionID: s.SessionID,
			Messages:  append(copyMessages(s.Messages), newMessage(models.RoleUser, models.KindNormal, act.Text)),
			Loading:   s.Loading,
		}

	case AddLoading:
		if s.Loading {
			return s
		}
		return State{
			SessionID: s.SessionID,
			Messages:  append(copyMessages(s.Messages), newMessage(models.RoleBot, models.KindLoading, "")),
			Loading:   true,
		}

	case ResolveLoading:
		if !s.Loading {
			return s
		}
		next := copyMessages(s.Messages)
		for i := range next {
			if next[i].Kind == models.KindLoading {
				if act.Err != nil {
					next[i] = newMessage(models.RoleSystem, models.KindError,
						"Không thể kết nối tới trợ lý. Vui lòng thử lại sau.")
				} else {
					next[i] = newMessage(models.RoleBot, models.KindNormal, act.Reply)
				}
				break
			}
		}
		return State{SessionID: s.SessionID, Messages: next}

	case ClearSession:
		return State{}
	}
	return s
}

func copyMessages(in []models.ChatMessage) []models.ChatMessage {
	out := make([]models.ChatMessage, len(in))
	copy(out, in)
	return out
}

// PendingCount reports how many loading placeholders the transcript holds.
// The invariant is that this never exceeds one.
func PendingCount(s State) int {
	n := 0
	for _, m := range s.Messages {
		if m.Kind == models.KindLoading {
			n++
		}
	}
	return n
}
