package model

import "time"

// LocationUpdate is one row of a user's append-only position history.
//
// UserName and UserEmail are only populated by the cross-user "recent
// activity" listing, which joins the users table.
type LocationUpdate struct {
	ID          int64     `json:"id"          db:"id"`
	UserID      string    `json:"user_id"     db:"user_id"`
	Coordinates string    `json:"coordinates" db:"coordinates"`
	City        string    `json:"city"        db:"city"`
	State       string    `json:"state"       db:"state"`
	Country     string    `json:"country"     db:"country"`
	Timestamp   time.Time `json:"timestamp"   db:"timestamp"`
	UserName    string    `json:"user_name,omitempty"  db:"user_name"`
	UserEmail   string    `json:"user_email,omitempty" db:"user_email"`
}

// LocationChange is what a store applies to a user's current position.
// An empty Coordinates clears the pin and appends nothing to history.
type LocationChange struct {
	Coordinates string
	City        string
	State       string
	Country     string
}

// Clears reports whether applying the change removes the pin.
func (c LocationChange) Clears() bool {
	return c.Coordinates == ""
}

// HistoryPage is one page of a user's history, newest first.
type HistoryPage struct {
	Locations []LocationUpdate
	Total     int
	Limit     int
	Offset    int
}

// HasMore reports whether rows exist past this page.
func (p HistoryPage) HasMore() bool {
	return p.Total > p.Offset+p.Limit
}
