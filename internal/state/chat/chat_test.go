package chat

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/DUYLINH1402/orderfood-client/internal/models"
)

func TestInitSessionSeedsWelcome(t *testing.T) {
	s := Reduce(State{}, InitSession{})

	require.NotEmpty(t, s.SessionID)
	require.Len(t, s.Messages, 1)
	require.Equal(t, models.KindWelcome, s.Messages[0].Kind)
	require.Equal(t, models.RoleBot, s.Messages[0].Role)
}

func TestInitSessionIsIdempotent(t *testing.T) {
	s := Reduce(State{}, InitSession{})
	again := Reduce(s, InitSession{})

	require.Equal(t, s.SessionID, again.SessionID)
	require.Len(t, again.Messages, 1)
}

func TestAtMostOneLoadingPlaceholder(t *testing.T) {
	s := Reduce(State{}, InitSession{})
	s = Reduce(s, AddUserMessage{Text: "Món nào đang giảm giá?"})
	s = Reduce(s, AddLoading{})
	s = Reduce(s, AddLoading{})

	require.Equal(t, 1, PendingCount(s))
}

func TestResolveLoadingReplacesWithReply(t *testing.T) {
	s := Reduce(State{}, InitSession{})
	s = Reduce(s, AddUserMessage{Text: "xin chào"})
	s = Reduce(s, AddLoading{})
	before := len(s.Messages)

	s = Reduce(s, ResolveLoading{Reply: "Chào bạn!"})

	require.Equal(t, before, len(s.Messages))
	require.Equal(t, 0, PendingCount(s))
	last := s.Messages[len(s.Messages)-1]
	require.Equal(t, models.RoleBot, last.Role)
	require.Equal(t, models.KindNormal, last.Kind)
	require.Equal(t, "Chào bạn!", last.Text)
}

func TestResolveLoadingReplacesWithError(t *testing.T) {
	s := Reduce(State{}, InitSession{})
	s = Reduce(s, AddLoading{})
	s = Reduce(s, ResolveLoading{Err: errors.New("boom")})

	require.Equal(t, 0, PendingCount(s))
	last := s.Messages[len(s.Messages)-1]
	require.Equal(t, models.KindError, last.Kind)
	require.Equal(t, models.RoleSystem, last.Role)
}

func TestResolveWithoutPendingIsNoop(t *testing.T) {
	s := Reduce(State{}, InitSession{})
	resolved := Reduce(s, ResolveLoading{Reply: "ok"})

	require.Equal(t, len(s.Messages), len(resolved.Messages))
}

func TestInterleavedRounds(t *testing.T) {
	s := Reduce(State{}, InitSession{})
	for i := 0; i < 5; i++ {
		s = Reduce(s, AddUserMessage{Text: "hỏi"})
		s = Reduce(s, AddLoading{})
		require.Equal(t, 1, PendingCount(s))
		s = Reduce(s, ResolveLoading{Reply: "đáp"})
		require.Equal(t, 0, PendingCount(s))
	}
	// welcome + 5*(user+reply)
	require.Len(t, s.Messages, 11)
}

func TestClearSession(t *testing.T) {
	s := Reduce(State{}, InitSession{})
	s = Reduce(s, ClearSession{})

	require.Empty(t, s.SessionID)
	require.Empty(t, s.Messages)
}
