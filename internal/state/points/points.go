// Package points owns the loyalty points slice: current balance plus the
// accounting history fetched from the backend. All arithmetic is server
// side; the client only mirrors what it was told.
package points

import "github.com/DUYLINH1402/orderfood-client/internal/models"

type State struct {
	Balance int64                `json:"balance"`
	History []models.PointsEntry `json:"history"`
}

type Action interface{ pointsAction() }

type SetBalance struct {
	Balance int64
}

type SetHistory struct {
	History []models.PointsEntry
}

type Clear struct{}

func (SetBalance) pointsAction() {}
func (SetHistory) pointsAction() {}
func (Clear) pointsAction()      {}

func Reduce(s State, a Action) State {
	switch act := a.(type) {
	case SetBalance:
		return State{Balance: act.Balance, History: s.History}
	case SetHistory:
		next := make([]models.PointsEntry, len(act.History))
		copy(next, act.History)
		return State{Balance: s.Balance, History: next}
	case Clear:
		return State{}
	}
	return s
}
