// Package cart owns the shopping cart slice. Entries are keyed by
// (foodID, variantID); the same food in two variants is two entries.
package cart

import "github.com/DUYLINH1402/orderfood-client/internal/models"

type State struct {
	Items []models.CartItem `json:"items"`
}

type Action interface{ cartAction() }

// AddItem merges into an existing entry (quantity accumulates) or appends.
type AddItem struct {
	Item models.CartItem
}

// UpdateQuantity replaces the quantity for an existing key. Callers must
// pass a positive quantity; removal is a distinct action, never an update
// to zero. An absent key makes this a no-op.
type UpdateQuantity struct {
	Ref      models.ItemRef
	Quantity int
}

// RemoveItem drops the matching entry. Absent key is a no-op.
type RemoveItem struct {
	Ref models.ItemRef
}

// Clear resets the cart to empty.
type Clear struct{}

// Replace swaps the whole item list. Used for rehydration and for restoring
// a server-fetched cart, not for ordinary mutations.
type Replace struct {
	Items []models.CartItem
}

// RestoreItem is the compensating action for a failed optimistic mutation on
// one key: Prev == nil removes the entry, otherwise the entry is put back to
// its snapshotted value. Only the named key is touched.
type RestoreItem struct {
	Ref  models.ItemRef
	Prev *models.CartItem
}

func (AddItem) cartAction()        {}
func (UpdateQuantity) cartAction() {}
func (RemoveItem) cartAction()     {}
func (Clear) cartAction()          {}
func (Replace) cartAction()        {}
func (RestoreItem) cartAction()    {}

func Reduce(s State, a Action) State {
	switch act := a.(type) {
	case AddItem:
		next := make([]models.CartItem, len(s.Items))
		copy(next, s.Items)
		for i := range next {
			if next[i].ItemRef.Equal(act.Item.ItemRef) {
				next[i].Quantity += act.Item.Quantity
				return State{Items: next}
			}
		}
		return State{Items: append(next, act.Item)}

	case UpdateQuantity:
		next := make([]models.CartItem, len(s.Items))
		copy(next, s.Items)
		for i := range next {
			if next[i].ItemRef.Equal(act.Ref) {
				next[i].Quantity = act.Quantity
				return State{Items: next}
			}
		}
		return s

	case RemoveItem:
		next := make([]models.CartItem, 0, len(s.Items))
		for _, it := range s.Items {
			if !it.ItemRef.Equal(act.Ref) {
				next = append(next, it)
			}
		}
		return State{Items: next}

	case Clear:
		return State{}

	case Replace:
		next := make([]models.CartItem, len(act.Items))
		copy(next, act.Items)
		return State{Items: next}

	case RestoreItem:
		next := make([]models.CartItem, 0, len(s.Items)+1)
		for _, it := range s.Items {
			if !it.ItemRef.Equal(act.Ref) {
				next = append(next, it)
			}
		}
		if act.Prev != nil {
			next = append(next, *act.Prev)
		}
		return State{Items: next}
	}
	return s
}

// Find returns a copy of the entry for ref, if present.
func Find(s State, ref models.ItemRef) (models.CartItem, bool) {
	for _, it := range s.Items {
		if it.ItemRef.Equal(ref) {
			return it, true
		}
	}
	return models.CartItem{}, false
}

// Count is the total number of units across all entries. It backs the
// legacy cartCount cache key.
func Count(s State) int {
	n := 0
	for _, it := range s.Items {
		n += it.Quantity
	}
	return n
}

// Subtotal sums price*quantity in the smallest currency unit.
func Subtotal(s State) int64 {
	var total int64
	for _, it := range s.Items {
		total += it.Price * int64(it.Quantity)
	}
	return total
}
