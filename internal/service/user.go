package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/teamterrain/internal/apperror"
	"github.com/sakif/teamterrain/internal/authz"
	"github.com/sakif/teamterrain/internal/metrics"
	"github.com/sakif/teamterrain/internal/model"
	"github.com/sakif/teamterrain/internal/repository"
	"github.com/sakif/teamterrain/internal/validation"
)

// UserService is the user directory: listing, profile edits, deletion.
type UserService struct {
	users     repository.UserRepository
	locations repository.LocationRepository
	policy    *authz.Policy
	logger    *slog.Logger
}

func NewUserService(
	users repository.UserRepository,
	locations repository.LocationRepository,
	policy *authz.Policy,
	logger *slog.Logger,
) *UserService {
	return &UserService{
		users:     users,
		locations: locations,
		policy:    policy,
		logger:    logger,
	}
}

// UpdateUserInput is the body of PUT /users/{id}. A nil field is left
// alone; an empty coordinates string removes the pin.
type UpdateUserInput struct {
	Name        *string `json:"name"        validate:"omitnil,min=2,max=100"`
	Email       *string `json:"email"       validate:"omitnil,email"`
	Coordinates *string `json:"coordinates" validate:"omitnil,coordinates"`
	City        *string `json:"city"        validate:"omitnil,max=100"`
	State       *string `json:"state"       validate:"omitnil,max=100"`
	Country     *string `json:"country"     validate:"omitnil,max=100"`
}

func (in UpdateUserInput) patch() model.UserPatch {
	return model.UserPatch{
		Name:        in.Name,
		Email:       in.Email,
		Coordinates: in.Coordinates,
		City:        in.City,
		State:       in.State,
		Country:     in.Country,
	}
}

// List returns every user, newest account first.
func (s *UserService) List(ctx context.Context) ([]model.User, error) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/user: listing users: %w", err)
	}
	return users, nil
}

func (s *UserService) Get(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, apperror.ValidationFailed("id", "user ID is required")
	}
	return s.users.GetUserByID(ctx, id)
}

// Update applies a partial profile edit. Only the user themself or an
// admin may edit a profile. Setting coordinates goes through the same
// pin/move check as POST /location/update and is recorded in history.
func (s *UserService) Update(ctx context.Context, requester model.Principal, id string, input UpdateUserInput) (*model.User, error) {
	input.Name = trimmed(input.Name)
	input.Email = trimmed(input.Email)
	input.Coordinates = trimmed(input.Coordinates)

	patch := input.patch()
	if patch.Empty() {
		return nil, apperror.ValidationFailed("", "No valid fields to update")
	}
	if err := validation.Validate(&input); err != nil {
		return nil, err
	}
	if patch.Coordinates != nil {
		c, err := canonicalCoordinates(*patch.Coordinates)
		if err != nil {
			return nil, err
		}
		patch.Coordinates = &c
	}

	target, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}

	action := authz.ActionMove
	if patch.Coordinates != nil {
		action = authz.ActionFor(*target, model.LocationChange{Coordinates: *patch.Coordinates})
	}
	if !s.policy.Can(requester, action, *target) {
		metrics.RecordAuthorizationDenied(string(action))
		return nil, apperror.Forbidden("You can only update your own profile")
	}

	if patch.Email != nil && *patch.Email != target.Email {
		if s.policy.IsAdminEmail(*patch.Email) && !s.policy.IsAdmin(requester) {
			metrics.RecordAuthorizationDenied("claim_admin_email")
			return nil, &apperror.AppError{Err: apperror.ErrForbidden, Message: "Only an admin can assign an admin email", Field: "email"}
		}
		owner, err := s.users.GetUserByEmail(ctx, *patch.Email)
		switch {
		case err == nil && owner.ID != target.ID:
			return nil, &apperror.AppError{Err: apperror.ErrConflict, Message: "Email already taken by another user", Field: "email"}
		case err != nil && !errors.Is(err, apperror.ErrNotFound):
			return nil, fmt.Errorf("service/user: checking email: %w", err)
		}
	}

	updated, err := s.users.UpdateUser(ctx, id, patch)
	if err != nil {
		return nil, err
	}

	if patch.Coordinates != nil {
		metrics.RecordLocationUpdate(string(action))
	}
	s.logger.Info("user updated",
		slog.String("userID", id),
		slog.String("by", requester.UserID),
	)
	return updated, nil
}

// Delete removes a user and their whole history.
func (s *UserService) Delete(ctx context.Context, requester model.Principal, id string) error {
	target, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return err
	}
	if !s.policy.CanDelete(requester, *target) {
		metrics.RecordAuthorizationDenied(string(authz.ActionDelete))
		return apperror.Forbidden("You can only delete your own account")
	}

	if err := s.users.DeleteUser(ctx, id); err != nil {
		return err
	}

	s.logger.Info("user deleted",
		slog.String("userID", id),
		slog.String("by", requester.UserID),
	)
	return nil
}

// FullHistory returns a user's entire location history, newest first.
func (s *UserService) FullHistory(ctx context.Context, id string) ([]model.LocationUpdate, error) {
	locations, _, err := s.locations.ListHistory(ctx, id, repository.ListOptions{})
	if err != nil {
		return nil, err
	}
	return locations, nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	return &t
}
