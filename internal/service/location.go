package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/sakif/teamterrain/internal/apperror"
	"github.com/sakif/teamterrain/internal/authz"
	"github.com/sakif/teamterrain/internal/metrics"
	"github.com/sakif/teamterrain/internal/model"
	"github.com/sakif/teamterrain/internal/repository"
	"github.com/sakif/teamterrain/internal/validation"
)

// LocationService places, moves, and removes map pins and serves history.
//
// Every write follows the same steps:
//
//  1. resolve the target user (body id, else the caller)
//  2. validate and canonicalise the coordinates
//  3. classify the change as pin, move, or delete
//  4. check the policy for that action
//  5. persist the user row and the history row in one transaction
type LocationService struct {
	users     repository.UserRepository
	locations repository.LocationRepository
	policy    *authz.Policy
	logger    *slog.Logger
}

func NewLocationService(
	users repository.UserRepository,
	locations repository.LocationRepository,
	policy *authz.Policy,
	logger *slog.Logger,
) *LocationService {
	return &LocationService{
		users:     users,
		locations: locations,
		policy:    policy,
		logger:    logger,
	}
}

// LocationInput is the body of POST /location/update. Older clients send
// user_id instead of userId; both are accepted.
type LocationInput struct {
	UserID       string `json:"userId"`
	LegacyUserID string `json:"user_id"`
	Coordinates  string `json:"coordinates" validate:"coordinates"`
	City         string `json:"city"        validate:"max=100"`
	State        string `json:"state"       validate:"max=100"`
	Country      string `json:"country"     validate:"max=100"`
	Action       string `json:"action"      validate:"omitempty,oneof=pin move delete"`
}

// target picks the user the update is for.
func (in LocationInput) target(requester model.Principal) string {
	switch {
	case in.UserID != "":
		return in.UserID
	case in.LegacyUserID != "":
		return in.LegacyUserID
	default:
		return requester.UserID
	}
}

// change builds the stored snapshot. An explicit delete action wins over
// any coordinates sent alongside it.
func (in LocationInput) change() model.LocationChange {
	if in.Action == string(authz.ActionDelete) || in.Coordinates == "" {
		return model.LocationChange{}
	}
	return model.LocationChange{
		Coordinates: in.Coordinates,
		City:        in.City,
		State:       in.State,
		Country:     in.Country,
	}
}

// Update applies a location change and returns the updated user.
func (s *LocationService) Update(ctx context.Context, requester model.Principal, input LocationInput) (*model.User, error) {
	input.UserID = strings.TrimSpace(input.UserID)
	input.LegacyUserID = strings.TrimSpace(input.LegacyUserID)
	input.Coordinates = strings.TrimSpace(input.Coordinates)

	userID := input.target(requester)
	if userID == "" {
		return nil, apperror.ValidationFailed("userId", "User ID is required")
	}
	if err := validation.Validate(&input); err != nil {
		return nil, err
	}

	change := input.change()
	if !change.Clears() {
		c, err := canonicalCoordinates(change.Coordinates)
		if err != nil {
			return nil, err
		}
		change.Coordinates = c
	}

	target, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	action := authz.ActionFor(*target, change)
	if !s.policy.Can(requester, action, *target) {
		metrics.RecordAuthorizationDenied(string(action))
		s.logger.Warn("location change denied",
			slog.String("action", string(action)),
			slog.String("targetID", target.ID),
			slog.String("requesterID", requester.UserID),
		)
		return nil, apperror.Forbidden("You can only " + string(action) + " your own location")
	}

	updated, err := s.locations.ApplyLocation(ctx, userID, change)
	if err != nil {
		return nil, err
	}

	metrics.RecordLocationUpdate(string(action))
	s.logger.Info("location updated",
		slog.String("action", string(action)),
		slog.String("userID", userID),
		slog.String("coordinates", change.Coordinates),
	)
	return updated, nil
}

// HistoryQuery is the paging window for History. A nil Limit means the
// default page size.
type HistoryQuery struct {
	Limit  *int
	Offset int
}

// History returns one page of a user's history, newest first.
func (s *LocationService) History(ctx context.Context, userID string, q HistoryQuery) (*model.HistoryPage, error) {
	limit := DefaultHistoryLimit
	if q.Limit != nil {
		limit = clamp(*q.Limit, 1, MaxHistoryLimit)
	}
	offset := max(q.Offset, 0)

	locations, total, err := s.locations.ListHistory(ctx, userID, repository.ListOptions{Limit: limit, Offset: offset})
	if err != nil {
		return nil, err
	}

	return &model.HistoryPage{
		Locations: locations,
		Total:     total,
		Limit:     limit,
		Offset:    offset,
	}, nil
}

// ClearHistory deletes a user's history and reports how many rows went.
// The current pin stays where it is.
func (s *LocationService) ClearHistory(ctx context.Context, requester model.Principal, userID string) (int64, error) {
	target, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return 0, err
	}
	if !s.policy.CanDelete(requester, *target) {
		metrics.RecordAuthorizationDenied(string(authz.ActionDelete))
		return 0, apperror.Forbidden("You can only clear your own location history")
	}

	n, err := s.locations.ClearHistory(ctx, userID)
	if err != nil {
		return 0, err
	}

	s.logger.Info("location history cleared",
		slog.String("userID", userID),
		slog.Int64("deleted", n),
	)
	return n, nil
}

// Recent returns the latest updates across all users. A nil limit means
// DefaultRecentLimit.
func (s *LocationService) Recent(ctx context.Context, limit *int) ([]model.LocationUpdate, error) {
	n := DefaultRecentLimit
	if limit != nil {
		n = clamp(*limit, 1, MaxRecentLimit)
	}
	return s.locations.ListRecent(ctx, n)
}
