package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/teamterrain/internal/apperror"
	"github.com/sakif/teamterrain/internal/auth"
	"github.com/sakif/teamterrain/internal/geo"
	"github.com/sakif/teamterrain/internal/model"
	"github.com/sakif/teamterrain/internal/repository"
)

// SeedUser is one demo account.
type SeedUser struct {
	Name        string
	Email       string
	Password    string
	Coordinates string
	City        string
	State       string
	Country     string
}

// DemoUsers is the default demo team, one per continent-ish.
var DemoUsers = []SeedUser{
	{"John Doe", "john.doe@teamterrain.com", "password123", "36.8219, -1.2921", "Nairobi", "Nairobi County", "Kenya"},
	{"Jane Smith", "jane.smith@teamterrain.com", "password123", "-74.0060, 40.7128", "New York", "New York", "United States"},
	{"Bob Johnson", "bob.johnson@teamterrain.com", "password123", "-0.1278, 51.5074", "London", "England", "United Kingdom"},
	{"Alice Williams", "alice.williams@teamterrain.com", "password123", "139.6503, 35.6762", "Tokyo", "Tokyo", "Japan"},
	{"Charlie Brown", "charlie.brown@teamterrain.com", "password123", "151.2093, -33.8688", "Sydney", "New South Wales", "Australia"},
}

// Seeder loads demo accounts. Re-running it replaces accounts with the
// same emails; every other user is left alone.
type Seeder struct {
	users     repository.UserRepository
	locations repository.LocationRepository
	passwords *auth.PasswordService
	logger    *slog.Logger
}

func NewSeeder(
	users repository.UserRepository,
	locations repository.LocationRepository,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *Seeder {
	return &Seeder{
		users:     users,
		locations: locations,
		passwords: passwords,
		logger:    logger,
	}
}

// Seed creates each account with an initial pin and one history row.
// Entries with invalid coordinates are skipped and logged.
func (s *Seeder) Seed(ctx context.Context, seeds []SeedUser) ([]model.User, error) {
	created := make([]model.User, 0, len(seeds))

	for _, seed := range seeds {
		coords, err := geo.Canonical(seed.Coordinates)
		if err != nil {
			s.logger.Warn("skipping seed user with invalid coordinates",
				slog.String("email", seed.Email),
				slog.String("coordinates", seed.Coordinates),
				slog.Any("error", err),
			)
			continue
		}

		if err := s.remove(ctx, seed.Email); err != nil {
			return created, err
		}

		hash, err := s.passwords.Hash(seed.Password)
		if err != nil {
			return created, fmt.Errorf("service/seed: hashing password for %s: %w", seed.Email, err)
		}

		user := &model.User{
			Name:         seed.Name,
			Email:        seed.Email,
			PasswordHash: hash,
		}
		if err := s.users.CreateUser(ctx, user); err != nil {
			return created, fmt.Errorf("service/seed: creating %s: %w", seed.Email, err)
		}

		pinned, err := s.locations.ApplyLocation(ctx, user.ID, model.LocationChange{
			Coordinates: coords,
			City:        seed.City,
			State:       seed.State,
			Country:     seed.Country,
		})
		if err != nil {
			return created, fmt.Errorf("service/seed: pinning %s: %w", seed.Email, err)
		}

		s.logger.Info("seeded user",
			slog.String("name", pinned.Name),
			slog.String("email", pinned.Email),
			slog.String("coordinates", coords),
		)
		created = append(created, *pinned)
	}

	return created, nil
}

func (s *Seeder) remove(ctx context.Context, email string) error {
	existing, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("service/seed: looking up %s: %w", email, err)
	}
	if err := s.users.DeleteUser(ctx, existing.ID); err != nil {
		return fmt.Errorf("service/seed: removing %s: %w", email, err)
	}
	return nil
}
