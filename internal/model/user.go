// Package model defines the data structures used throughout the application.
package model

import (
	"time"

	"github.com/sakif/teamterrain/internal/geo"
)

// User is a registered account and its current map position.
//
// Coordinates is a pointer because "never pinned" (or "cleared") is a real
// state distinct from any coordinate value; it maps to SQL NULL. City, State
// and Country are plain strings stored verbatim, empty when unknown.
//
// PasswordHash carries json:"-" so a User can never leak its bcrypt hash
// through an accidental writeJSON(w, 200, user).
type User struct {
	ID           string    `json:"id"          db:"id"`
	Name         string    `json:"name"        db:"name"`
	Email        string    `json:"email"       db:"email"`
	PasswordHash string    `json:"-"           db:"password"`
	Coordinates  *string   `json:"coordinates" db:"coordinates"` // "<lng>, <lat>" or nil
	City         string    `json:"city"        db:"city"`
	State        string    `json:"state"       db:"state"`
	Country      string    `json:"country"     db:"country"`
	CreatedAt    time.Time `json:"created_at"  db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"  db:"updated_at"`
}

// Pinned reports whether the user currently has a position on the map.
func (u *User) Pinned() bool {
	return u.Coordinates != nil && *u.Coordinates != ""
}

// Profile is what clients see for a user: everything except the password,
// plus the decoded location.
type Profile struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Coordinates *string   `json:"coordinates"`
	City        string    `json:"city"`
	State       string    `json:"state"`
	Country     string    `json:"country"`
	Location    []float64 `json:"location"` // [lng, lat] or null
	Pinned      bool      `json:"pinned"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Profile builds the client view. Stored coordinates that fail to decode are
// reported as unpinned rather than failing the whole response.
func (u *User) Profile() Profile {
	p := Profile{
		ID:          u.ID,
		Name:        u.Name,
		Email:       u.Email,
		Coordinates: u.Coordinates,
		City:        u.City,
		State:       u.State,
		Country:     u.Country,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
	if u.Pinned() {
		if pt, err := geo.Parse(*u.Coordinates); err == nil {
			p.Location = pt.Pair()
			p.Pinned = true
		}
	}
	return p
}

// Profiles maps a slice of users to their client views.
func Profiles(users []User) []Profile {
	out := make([]Profile, len(users))
	for i := range users {
		out[i] = users[i].Profile()
	}
	return out
}

// UserPatch is a partial update. A nil field is left untouched; a non-nil
// field is written, including a non-nil empty Coordinates which clears the
// pin.
type UserPatch struct {
	Name        *string
	Email       *string
	Coordinates *string
	City        *string
	State       *string
	Country     *string
}

// Empty reports whether the patch would change nothing.
func (p UserPatch) Empty() bool {
	return p.Name == nil && p.Email == nil && p.Coordinates == nil &&
		p.City == nil && p.State == nil && p.Country == nil
}

// ClearsLocation reports whether the patch removes the user's pin.
func (p UserPatch) ClearsLocation() bool {
	return p.Coordinates != nil && *p.Coordinates == ""
}
