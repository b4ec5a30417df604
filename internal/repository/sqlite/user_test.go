package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/teamterrain/internal/apperror"
	"github.com/sakif/teamterrain/internal/model"
)

// TESTING WITH IN-MEMORY SQLITE:
// ":memory:" gives every test a fresh, private database that disappears when
// the connection closes. t.Helper() makes failures point at the caller.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:", Options{})
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createTestUser(t *testing.T, db *DB, name, email string) *model.User {
	t.Helper()
	u := &model.User{Name: name, Email: email, PasswordHash: "$2a$04$not-a-real-hash"}
	if err := db.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return u
}

func strPtr(s string) *string { return &s }

// =========================================================================
// CREATE / GET
// =========================================================================

func TestCreateUser(t *testing.T) {
	db := newTestDB(t)

	u := createTestUser(t, db, "Ada", "ada@example.com")

	if u.ID == "" {
		t.Error("CreateUser() did not set ID")
	}
	if u.CreatedAt.IsZero() || u.UpdatedAt.IsZero() {
		t.Error("CreateUser() did not set timestamps")
	}

	got, err := db.GetUserByID(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("GetUserByID() error = %v", err)
	}
	if got.Email != "ada@example.com" || got.PasswordHash != u.PasswordHash {
		t.Errorf("GetUserByID() = %+v", got)
	}
	if got.Coordinates != nil {
		t.Errorf("new user should be unpinned, got %q", *got.Coordinates)
	}
}

func TestCreateUser_KeepsGivenID(t *testing.T) {
	db := newTestDB(t)

	u := &model.User{ID: "admin-001", Name: "Administrator", Email: "admin@example.com", PasswordHash: "x"}
	if err := db.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	if u.ID != "admin-001" {
		t.Errorf("ID = %q, want admin-001", u.ID)
	}
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "First", "dup@example.com")

	err := db.CreateUser(context.Background(), &model.User{Name: "Second", Email: "dup@example.com", PasswordHash: "x"})
	if !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("CreateUser() error = %v, want ErrConflict", err)
	}
}

func TestGetUser_NotFound(t *testing.T) {
	db := newTestDB(t)

	if _, err := db.GetUserByID(context.Background(), "missing"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetUserByID() error = %v, want ErrNotFound", err)
	}
	if _, err := db.GetUserByEmail(context.Background(), "missing@example.com"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetUserByEmail() error = %v, want ErrNotFound", err)
	}
}

func TestListUsers(t *testing.T) {
	db := newTestDB(t)

	users, err := db.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("ListUsers() error = %v", err)
	}
	if users == nil || len(users) != 0 {
		t.Errorf("ListUsers() on empty db = %v, want empty non-nil slice", users)
	}

	createTestUser(t, db, "A", "a@example.com")
	createTestUser(t, db, "B", "b@example.com")

	users, err = db.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("ListUsers() error = %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("ListUsers() returned %d users, want 2", len(users))
	}
}

// =========================================================================
// UPDATE
// =========================================================================

func TestUpdateUser_PartialFields(t *testing.T) {
	db := newTestDB(t)
	u := createTestUser(t, db, "Ada", "ada@example.com")

	got, err := db.UpdateUser(context.Background(), u.ID, model.UserPatch{City: strPtr("Nairobi")})
	if err != nil {
		t.Fatalf("UpdateUser() error = %v", err)
	}
	if got.City != "Nairobi" {
		t.Errorf("City = %q, want Nairobi", got.City)
	}
	if got.Name != "Ada" || got.Email != "ada@example.com" {
		t.Errorf("untouched fields changed: %+v", got)
	}
}

func TestUpdateUser_CoordinatesAppendHistory(t *testing.T) {
	db := newTestDB(t)
	u := createTestUser(t, db, "Ada", "ada@example.com")
	ctx := context.Background()

	got, err := db.UpdateUser(ctx, u.ID, model.UserPatch{Coordinates: strPtr("36.8219, -1.2921"), Country: strPtr("Kenya")})
	if err != nil {
		t.Fatalf("UpdateUser() error = %v", err)
	}
	if got.Coordinates == nil || *got.Coordinates != "36.8219, -1.2921" {
		t.Fatalf("Coordinates = %v", got.Coordinates)
	}

	history, total, err := db.ListHistory(ctx, u.ID, pageOf(50, 0))
	if err != nil {
		t.Fatalf("ListHistory() error = %v", err)
	}
	if total != 1 || history[0].Coordinates != "36.8219, -1.2921" || history[0].Country != "Kenya" {
		t.Errorf("history = %+v (total %d), want one Kenya row", history, total)
	}

	// Clearing through a patch removes the pin without touching history.
	got, err = db.UpdateUser(ctx, u.ID, model.UserPatch{Coordinates: strPtr("")})
	if err != nil {
		t.Fatalf("UpdateUser(clear) error = %v", err)
	}
	if got.Coordinates != nil {
		t.Errorf("Coordinates after clear = %q, want nil", *got.Coordinates)
	}
	if _, total, _ := db.ListHistory(ctx, u.ID, pageOf(50, 0)); total != 1 {
		t.Errorf("history total after clear = %d, want 1", total)
	}
}

func TestUpdateUser_ClearBlanksDescriptors(t *testing.T) {
	db := newTestDB(t)
	u := createTestUser(t, db, "Ada", "ada@example.com")
	ctx := context.Background()

	if _, err := db.UpdateUser(ctx, u.ID, model.UserPatch{
		Coordinates: strPtr("36.8219, -1.2921"),
		City:        strPtr("Nairobi"),
		State:       strPtr("Nairobi County"),
		Country:     strPtr("Kenya"),
	}); err != nil {
		t.Fatalf("UpdateUser(pin) error = %v", err)
	}

	// A city sent alongside the clear is ignored; there is no pin to describe.
	got, err := db.UpdateUser(ctx, u.ID, model.UserPatch{Coordinates: strPtr(""), City: strPtr("Mombasa")})
	if err != nil {
		t.Fatalf("UpdateUser(clear) error = %v", err)
	}
	if got.Coordinates != nil {
		t.Errorf("Coordinates = %q, want nil", *got.Coordinates)
	}
	if got.City != "" || got.State != "" || got.Country != "" {
		t.Errorf("descriptors after clear = %q/%q/%q, want all empty", got.City, got.State, got.Country)
	}
}

func TestUpdateUser_EmailConflict(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "A", "a@example.com")
	b := createTestUser(t, db, "B", "b@example.com")

	_, err := db.UpdateUser(context.Background(), b.ID, model.UserPatch{Email: strPtr("a@example.com")})
	if !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("UpdateUser() error = %v, want ErrConflict", err)
	}
}

func TestUpdateUser_Errors(t *testing.T) {
	db := newTestDB(t)
	u := createTestUser(t, db, "A", "a@example.com")

	if _, err := db.UpdateUser(context.Background(), u.ID, model.UserPatch{}); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("empty patch error = %v, want ErrValidation", err)
	}
	if _, err := db.UpdateUser(context.Background(), "missing", model.UserPatch{Name: strPtr("X")}); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("missing user error = %v, want ErrNotFound", err)
	}
}

func TestTouchUser(t *testing.T) {
	db := newTestDB(t)
	u := createTestUser(t, db, "A", "a@example.com")

	if err := db.TouchUser(context.Background(), u.ID); err != nil {
		t.Fatalf("TouchUser() error = %v", err)
	}
	if err := db.TouchUser(context.Background(), "missing"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("TouchUser(missing) error = %v, want ErrNotFound", err)
	}
}

// =========================================================================
// DELETE
// =========================================================================

func TestDeleteUser_CascadesHistory(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := createTestUser(t, db, "A", "a@example.com")
	other := createTestUser(t, db, "B", "b@example.com")

	for _, c := range []string{"1, 1", "2, 2", "3, 3"} {
		if _, err := db.ApplyLocation(ctx, u.ID, model.LocationChange{Coordinates: c}); err != nil {
			t.Fatalf("ApplyLocation() error = %v", err)
		}
	}
	if _, err := db.ApplyLocation(ctx, other.ID, model.LocationChange{Coordinates: "9, 9"}); err != nil {
		t.Fatalf("ApplyLocation(other) error = %v", err)
	}

	if err := db.DeleteUser(ctx, u.ID); err != nil {
		t.Fatalf("DeleteUser() error = %v", err)
	}

	if _, err := db.GetUserByID(ctx, u.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetUserByID after delete error = %v, want ErrNotFound", err)
	}
	if _, _, err := db.ListHistory(ctx, u.ID, pageOf(50, 0)); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("ListHistory after delete error = %v, want ErrNotFound", err)
	}

	var orphans int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM location_updates WHERE user_id = ?`, u.ID).Scan(&orphans); err != nil {
		t.Fatalf("counting orphans: %v", err)
	}
	if orphans != 0 {
		t.Errorf("%d history rows survived user deletion", orphans)
	}

	// Other users' history is untouched.
	if _, total, _ := db.ListHistory(ctx, other.ID, pageOf(50, 0)); total != 1 {
		t.Errorf("other user's history total = %d, want 1", total)
	}
}

func TestDeleteUser_NotFound(t *testing.T) {
	db := newTestDB(t)

	if err := db.DeleteUser(context.Background(), "missing"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("DeleteUser() error = %v, want ErrNotFound", err)
	}
}
