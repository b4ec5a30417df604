package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"

	"github.com/sakif/teamterrain/internal/apperror"
	"github.com/sakif/teamterrain/internal/model"
)

func TestTranslateError(t *testing.T) {
	tests := []struct {
		name string
		in   error
		want error
	}{
		{"unique violation", &pq.Error{Code: "23505"}, apperror.ErrConflict},
		{"foreign key violation", &pq.Error{Code: "23503"}, apperror.ErrValidation},
		{"wrapped unique violation", fmt.Errorf("postgres: inserting: %w", &pq.Error{Code: "23505"}), apperror.ErrConflict},
		{"deadline", fmt.Errorf("postgres: listing: %w", context.DeadlineExceeded), apperror.ErrUnavailable},
		{"app error passes through", apperror.NotFound("user", "x"), apperror.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := translateError(tt.in); !errors.Is(got, tt.want) {
				t.Errorf("translateError(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}

	if translateError(nil) != nil {
		t.Error("translateError(nil) should be nil")
	}

	other := errors.New("connection reset")
	if got := translateError(other); got != other {
		t.Errorf("unknown errors should pass through unchanged, got %v", got)
	}
}

func TestPatchAssignments(t *testing.T) {
	name, empty := "Ada", ""
	sets, args := patchAssignments(model.UserPatch{Name: &name, Coordinates: &empty})

	if len(sets) != 2 || sets[0] != "name = ?" || sets[1] != "coordinates = ?" {
		t.Fatalf("sets = %q", sets)
	}
	if args[0] != "Ada" || args[1] != nil {
		t.Errorf("args = %v, want [Ada <nil>]", args)
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	for _, f := range []string{"migrations/000001_init.up.sql", "migrations/000001_init.down.sql"} {
		if _, err := migrationsFS.ReadFile(f); err != nil {
			t.Errorf("embedded migration %s missing: %v", f, err)
		}
	}
}
