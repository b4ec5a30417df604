// Package authz decides who may change whose map pin.
//
// THE RULE:
// A requester may pin, move, or delete a target user's location when
//
//	requester is an admin   OR   requester.UserID == target.ID
//
// Admins are the emails listed in configuration (ADMIN_EMAILS). The API-key
// service principal counts as an admin because the key itself is an
// explicitly configured credential.
//
// Everything here is a pure function of its arguments. Clients may run the
// same rules to hide buttons, but the server always re-checks before it
// writes anything.
package authz

import (
	"strings"

	"github.com/sakif/teamterrain/internal/model"
)

// Action names the kind of location change being attempted.
type Action string

const (
	ActionPin    Action = "pin"
	ActionMove   Action = "move"
	ActionDelete Action = "delete"
)

// Level is the coarse permission label shown to clients.
type Level string

const (
	LevelAdmin Level = "admin"
	LevelUser  Level = "user"
)

// Policy holds the admin allow-list. Build it once at startup with
// NewPolicy and share it; it is read-only after construction.
type Policy struct {
	admins map[string]struct{}
}

// NewPolicy builds a Policy from a list of admin emails. Entries are
// trimmed and blanks dropped. Matching is exact: "Admin@x.io" and
// "admin@x.io" are different emails, as they are in the users table.
func NewPolicy(adminEmails []string) *Policy {
	admins := make(map[string]struct{}, len(adminEmails))
	for _, e := range adminEmails {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		admins[e] = struct{}{}
	}
	return &Policy{admins: admins}
}

// IsAdmin reports whether the requester has admin rights.
func (p *Policy) IsAdmin(requester model.Principal) bool {
	if requester.Service {
		return true
	}
	return p.IsAdminEmail(requester.Email)
}

// IsAdminEmail reports whether email is on the admin list. Whoever holds
// such an email is an admin, so only admins may assign one to an account.
func (p *Policy) IsAdminEmail(email string) bool {
	if email == "" {
		return false
	}
	_, ok := p.admins[email]
	return ok
}

// Level returns the permission label for the requester.
func (p *Policy) Level(requester model.Principal) Level {
	if p.IsAdmin(requester) {
		return LevelAdmin
	}
	return LevelUser
}

// CanPin reports whether requester may place target on the map.
func (p *Policy) CanPin(requester model.Principal, target model.User) bool {
	return p.allowed(requester, target)
}

// CanMove reports whether requester may move target's existing pin.
func (p *Policy) CanMove(requester model.Principal, target model.User) bool {
	return p.allowed(requester, target)
}

// CanDelete reports whether requester may remove target's pin or history.
func (p *Policy) CanDelete(requester model.Principal, target model.User) bool {
	return p.allowed(requester, target)
}

// CanMoveAny reports whether requester may move pins other than their own.
func (p *Policy) CanMoveAny(requester model.Principal) bool {
	return p.IsAdmin(requester)
}

// Can dispatches on action.
func (p *Policy) Can(requester model.Principal, action Action, target model.User) bool {
	switch action {
	case ActionPin:
		return p.CanPin(requester, target)
	case ActionMove:
		return p.CanMove(requester, target)
	case ActionDelete:
		return p.CanDelete(requester, target)
	default:
		return false
	}
}

func (p *Policy) allowed(requester model.Principal, target model.User) bool {
	if p.IsAdmin(requester) {
		return true
	}
	return requester.UserID != "" && requester.UserID == target.ID
}

// ActionFor classifies applying change to target: clearing is a delete,
// placing an unpinned user is a pin, anything else is a move.
func ActionFor(target model.User, change model.LocationChange) Action {
	switch {
	case change.Clears():
		return ActionDelete
	case !target.Pinned():
		return ActionPin
	default:
		return ActionMove
	}
}
