// Package favorites owns the favorites slice. The list behaves as a set
// keyed by (foodID, variantID); whether Add deduplicates is a construction
// choice because the historical web client appended unconditionally.
package favorites

import "github.com/DUYLINH1402/orderfood-client/internal/models"

type State struct {
	Entries []models.FavoriteEntry `json:"entries"`

	// Dedupe makes Add a no-op for an already-present key. Set once when the
	// initial state is built, carried through every reduction.
	Dedupe bool `json:"-"`
}

func Initial(dedupe bool) State {
	return State{Dedupe: dedupe}
}

type Action interface{ favoritesAction() }

type Add struct {
	Entry models.FavoriteEntry
}

type Remove struct {
	Ref models.ItemRef
}

// RemoveOne drops only the last occurrence of the key. It is the
// compensating action for a failed Add when deduplication is off, where a
// plain Remove would also discard a pre-existing entry.
type RemoveOne struct {
	Ref models.ItemRef
}

// SetAll replaces the whole list, e.g. after the bootstrap fetch.
type SetAll struct {
	Entries []models.FavoriteEntry
}

func (Add) favoritesAction()       {}
func (Remove) favoritesAction()    {}
func (RemoveOne) favoritesAction() {}
func (SetAll) favoritesAction()    {}

func Reduce(s State, a Action) State {
	switch act := a.(type) {
	case Add:
		if s.Dedupe && Contains(s, act.Entry.ItemRef) {
			return s
		}
		next := make([]models.FavoriteEntry, len(s.Entries), len(s.Entries)+1)
		copy(next, s.Entries)
		return State{Entries: append(next, act.Entry), Dedupe: s.Dedupe}

	case Remove:
		next := make([]models.FavoriteEntry, 0, len(s.Entries))
		for _, e := range s.Entries {
			if !e.ItemRef.Equal(act.Ref) {
				next = append(next, e)
			}
		}
		return State{Entries: next, Dedupe: s.Dedupe}

	case RemoveOne:
		last := -1
		for i, e := range s.Entries {
			if e.ItemRef.Equal(act.Ref) {
				last = i
			}
		}
		if last < 0 {
			return s
		}
		next := make([]models.FavoriteEntry, 0, len(s.Entries)-1)
		next = append(next, s.Entries[:last]...)
		next = append(next, s.Entries[last+1:]...)
		return State{Entries: next, Dedupe: s.Dedupe}

	case SetAll:
		next := make([]models.FavoriteEntry, len(act.Entries))
		copy(next, act.Entries)
		return State{Entries: next, Dedupe: s.Dedupe}
	}
	return s
}

func Contains(s State, ref models.ItemRef) bool {
	for _, e := range s.Entries {
		if e.ItemRef.Equal(ref) {
			return true
		}
	}
	return false
}
