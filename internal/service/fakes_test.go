package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/sakif/teamterrain/internal/apperror"
	"github.com/sakif/teamterrain/internal/auth"
	"github.com/sakif/teamterrain/internal/authz"
	"github.com/sakif/teamterrain/internal/model"
	"github.com/sakif/teamterrain/internal/repository"
)

// =========================================================================
// FAKE STORE
// =========================================================================
//
// fakeStore implements repository.UserRepository and
// repository.LocationRepository in memory, so these tests exercise the
// business rules without a database. Store-level behaviour (transactions,
// ordering under concurrency) is covered by the sqlite and postgres tests.

type fakeStore struct {
	mu      sync.Mutex
	users   map[string]*model.User
	history []model.LocationUpdate
	nextID  int
	nextLoc int64
	clock   time.Time

	// failWith, when set, is returned by every call.
	failWith error
}

var (
	_ repository.UserRepository     = (*fakeStore)(nil)
	_ repository.LocationRepository = (*fakeStore)(nil)
)

func newFakeStore() *fakeStore {
	return &fakeStore{
		users: make(map[string]*model.User),
		clock: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// tick returns a strictly increasing timestamp.
func (f *fakeStore) tick() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

func (f *fakeStore) CreateUser(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	for _, existing := range f.users {
		if existing.Email == u.Email {
			return apperror.Conflict("user", "email "+u.Email)
		}
	}
	if u.ID == "" {
		f.nextID++
		u.ID = fmt.Sprintf("user-%d", f.nextID)
	}
	now := f.tick()
	u.CreatedAt, u.UpdatedAt = now, now
	stored := *u
	f.users[u.ID] = &stored
	return nil
}

func (f *fakeStore) GetUserByID(_ context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	result := *u
	return &result, nil
}

func (f *fakeStore) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	for _, u := range f.users {
		if u.Email == email {
			result := *u
			return &result, nil
		}
	}
	return nil, &apperror.AppError{Err: apperror.ErrNotFound, Message: "user not found"}
}

func (f *fakeStore) ListUsers(_ context.Context) ([]model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	out := make([]model.User, 0, len(f.users))
	for _, u := range f.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeStore) UpdateUser(_ context.Context, id string, p model.UserPatch) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.City != nil {
		u.City = *p.City
	}
	if p.State != nil {
		u.State = *p.State
	}
	if p.Country != nil {
		u.Country = *p.Country
	}
	if p.Coordinates != nil {
		if *p.Coordinates == "" {
			u.Coordinates = nil
			u.City, u.State, u.Country = "", "", ""
		} else {
			c := *p.Coordinates
			u.Coordinates = &c
			f.appendHistory(u)
		}
	}
	u.UpdatedAt = f.tick()
	result := *u
	return &result, nil
}

func (f *fakeStore) DeleteUser(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	if _, ok := f.users[id]; !ok {
		return apperror.NotFound("user", id)
	}
	delete(f.users, id)
	kept := f.history[:0]
	for _, l := range f.history {
		if l.UserID != id {
			kept = append(kept, l)
		}
	}
	f.history = kept
	return nil
}

func (f *fakeStore) TouchUser(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	u, ok := f.users[id]
	if !ok {
		return apperror.NotFound("user", id)
	}
	u.UpdatedAt = f.tick()
	return nil
}

func (f *fakeStore) ApplyLocation(_ context.Context, userID string, c model.LocationChange) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	u, ok := f.users[userID]
	if !ok {
		return nil, apperror.NotFound("user", userID)
	}
	if c.Clears() {
		u.Coordinates = nil
		u.City, u.State, u.Country = "", "", ""
	} else {
		coords := c.Coordinates
		u.Coordinates = &coords
		u.City, u.State, u.Country = c.City, c.State, c.Country
		f.appendHistory(u)
	}
	u.UpdatedAt = f.tick()
	result := *u
	return &result, nil
}

// appendHistory records u's current snapshot. Callers hold f.mu.
func (f *fakeStore) appendHistory(u *model.User) {
	f.nextLoc++
	f.history = append(f.history, model.LocationUpdate{
		ID:          f.nextLoc,
		UserID:      u.ID,
		Coordinates: *u.Coordinates,
		City:        u.City,
		State:       u.State,
		Country:     u.Country,
		Timestamp:   f.tick(),
	})
}

// newestFirst returns history rows matching keep, newest first.
func (f *fakeStore) newestFirst(keep func(model.LocationUpdate) bool) []model.LocationUpdate {
	out := []model.LocationUpdate{}
	for i := len(f.history) - 1; i >= 0; i-- {
		if keep(f.history[i]) {
			out = append(out, f.history[i])
		}
	}
	return out
}

func (f *fakeStore) ListHistory(_ context.Context, userID string, opts repository.ListOptions) ([]model.LocationUpdate, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, 0, f.failWith
	}
	if _, ok := f.users[userID]; !ok {
		return nil, 0, apperror.NotFound("user", userID)
	}
	all := f.newestFirst(func(l model.LocationUpdate) bool { return l.UserID == userID })
	total := len(all)
	if opts.Offset >= total {
		return []model.LocationUpdate{}, total, nil
	}
	page := all[opts.Offset:]
	if !opts.Unbounded() && opts.Limit < len(page) {
		page = page[:opts.Limit]
	}
	return page, total, nil
}

func (f *fakeStore) ClearHistory(_ context.Context, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return 0, f.failWith
	}
	if _, ok := f.users[userID]; !ok {
		return 0, apperror.NotFound("user", userID)
	}
	var n int64
	kept := f.history[:0]
	for _, l := range f.history {
		if l.UserID == userID {
			n++
			continue
		}
		kept = append(kept, l)
	}
	f.history = kept
	return n, nil
}

func (f *fakeStore) ListRecent(_ context.Context, limit int) ([]model.LocationUpdate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	if limit <= 0 {
		return nil, apperror.ValidationFailed("limit", "limit must be positive")
	}
	all := f.newestFirst(func(model.LocationUpdate) bool { return true })
	if limit < len(all) {
		all = all[:limit]
	}
	for i := range all {
		if u, ok := f.users[all[i].UserID]; ok {
			all[i].UserName, all[i].UserEmail = u.Name, u.Email
		}
	}
	return all, nil
}

// historyLen counts the stored history rows for userID.
func (f *fakeStore) historyLen(userID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, l := range f.history {
		if l.UserID == userID {
			n++
		}
	}
	return n
}

// =========================================================================
// TEST HELPERS
// =========================================================================

const testAdminEmail = "admin@teamterrain.com"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testPolicy() *authz.Policy {
	return authz.NewPolicy([]string{testAdminEmail})
}

// addUser stores a user directly, bypassing registration.
func addUser(t *testing.T, store *fakeStore, name, email string) *model.User {
	t.Helper()
	u := &model.User{Name: name, Email: email}
	if err := store.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("addUser(%s): %v", email, err)
	}
	return u
}

func principalOf(u *model.User) model.Principal {
	return model.Principal{UserID: u.ID, Email: u.Email, Name: u.Name}
}

func newTestAuthService(t *testing.T) (*AuthService, *fakeStore) {
	t.Helper()
	store := newFakeStore()
	tokens, err := auth.NewTokenService("test-secret-at-least-16-chars", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	// bcrypt.MinCost keeps the suite fast.
	passwords := auth.NewPasswordService(4)
	return NewAuthService(store, tokens, passwords, testPolicy(), testLogger()), store
}

func strPtr(s string) *string { return &s }

func intPtr(n int) *int { return &n }
