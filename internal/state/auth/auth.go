// Package auth owns the authentication slice: the opaque access token plus
// the profile of the signed-in user. The slice is populated exactly once per
// session, by the bootstrapper or by an explicit login.
package auth

import "github.com/DUYLINH1402/orderfood-client/internal/models"

type State struct {
	User        *models.User `json:"user"`
	AccessToken string       `json:"accessToken"`
}

// LoggedIn is derived: both the profile and the token must be present.
func (s State) LoggedIn() bool {
	return s.User != nil && s.AccessToken != ""
}

type Action interface{ authAction() }

type Populate struct {
	User        *models.User
	AccessToken string
}

type Clear struct{}

func (Populate) authAction() {}
func (Clear) authAction()    {}

func Reduce(s State, a Action) State {
	switch act := a.(type) {
	case Populate:
		if act.User == nil || act.AccessToken == "" {
			return s
		}
		u := *act.User
		return State{User: &u, AccessToken: act.AccessToken}
	case Clear:
		return State{}
	}
	return s
}
