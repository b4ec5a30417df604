package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/teamterrain/internal/apperror"
	"github.com/sakif/teamterrain/internal/auth"
	"github.com/sakif/teamterrain/internal/authz"
	"github.com/sakif/teamterrain/internal/metrics"
	"github.com/sakif/teamterrain/internal/model"
	"github.com/sakif/teamterrain/internal/repository"
	"github.com/sakif/teamterrain/internal/validation"
)

// Messages shown to clients for failed sign-in. Login never says which of
// email or password was wrong.
const (
	msgInvalidCredentials = "Invalid email or password"
	msgEmailTaken         = "User already exists with this email"
	msgAdminEmail         = "This email is reserved for an administrator"
	msgPasswordTooLong    = "password must be 72 bytes or fewer"
)

// AuthService handles registration, login, and session verification.
//
//	AuthHandler (HTTP) → AuthService → UserRepository (DB)
//	                   ↘ TokenService (JWT), PasswordService (bcrypt)
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	policy    *authz.Policy
	logger    *slog.Logger
}

// NewAuthService creates an AuthService with all required dependencies.
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	policy *authz.Policy,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		policy:    policy,
		logger:    logger,
	}
}

// RegisterInput is the body of POST /auth/register.
type RegisterInput struct {
	Name     string `json:"name"     validate:"required,min=2,max=100"`
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

// LoginInput is the body of POST /auth/login.
type LoginInput struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResult bundles the user record and the issued JWT so the handler can
// respond in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// Register creates an account and signs it in. Emails on the admin list
// cannot be self-registered; those accounts come from EnsureUser.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	return s.register(ctx, input, false)
}

func (s *AuthService) register(ctx context.Context, input RegisterInput, allowAdmin bool) (*AuthResult, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Email = strings.TrimSpace(input.Email)

	if err := validation.Validate(&input); err != nil {
		metrics.RecordAuthAttempt("register", "invalid")
		return nil, err
	}
	if !allowAdmin && s.policy.IsAdminEmail(input.Email) {
		metrics.RecordAuthAttempt("register", "denied")
		return nil, &apperror.AppError{Err: apperror.ErrForbidden, Message: msgAdminEmail, Field: "email"}
	}

	_, err := s.users.GetUserByEmail(ctx, input.Email)
	switch {
	case err == nil:
		metrics.RecordAuthAttempt("register", "conflict")
		return nil, &apperror.AppError{Err: apperror.ErrConflict, Message: msgEmailTaken, Field: "email"}
	case !errors.Is(err, apperror.ErrNotFound):
		return nil, fmt.Errorf("service/auth: checking email: %w", err)
	}

	hash, err := s.passwords.Hash(input.Password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			metrics.RecordAuthAttempt("register", "invalid")
			return nil, apperror.ValidationFailed("password", msgPasswordTooLong)
		}
		return nil, fmt.Errorf("service/auth: hashing password: %w", err)
	}

	user := &model.User{
		Name:         input.Name,
		Email:        input.Email,
		PasswordHash: hash,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		// Lost a race with another registration for the same email.
		if errors.Is(err, apperror.ErrConflict) {
			metrics.RecordAuthAttempt("register", "conflict")
			return nil, &apperror.AppError{Err: apperror.ErrConflict, Message: msgEmailTaken, Field: "email"}
		}
		return nil, fmt.Errorf("service/auth: creating user: %w", err)
	}

	token, err := s.tokens.Generate(user)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}

	metrics.RecordAuthAttempt("register", "success")
	s.logger.Info("user registered",
		slog.String("userID", user.ID),
		slog.String("email", user.Email),
	)

	return &AuthResult{User: user, Token: token}, nil
}

// Login checks the password and issues a fresh token. A successful login
// also bumps the user's updated_at.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*AuthResult, error) {
	input.Email = strings.TrimSpace(input.Email)

	if err := validation.Validate(&input); err != nil {
		metrics.RecordAuthAttempt("login", "invalid")
		return nil, err
	}

	user, err := s.users.GetUserByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			metrics.RecordAuthAttempt("login", "failure")
			return nil, apperror.Unauthorized(msgInvalidCredentials)
		}
		return nil, fmt.Errorf("service/auth: looking up %s: %w", input.Email, err)
	}

	if err := s.passwords.Verify(user.PasswordHash, input.Password); err != nil {
		metrics.RecordAuthAttempt("login", "failure")
		s.logger.Warn("failed login", slog.String("userID", user.ID))
		return nil, apperror.Unauthorized(msgInvalidCredentials)
	}

	if err := s.users.TouchUser(ctx, user.ID); err != nil {
		return nil, fmt.Errorf("service/auth: touching user %s: %w", user.ID, err)
	}

	token, err := s.tokens.Generate(user)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}

	metrics.RecordAuthAttempt("login", "success")
	s.logger.Info("user logged in", slog.String("userID", user.ID))

	return &AuthResult{User: user, Token: token}, nil
}

// Verify validates a session token and reloads its user. A token whose user
// has since been deleted yields NotFound.
func (s *AuthService) Verify(ctx context.Context, token string) (*model.User, error) {
	if token == "" {
		return nil, apperror.Unauthorized("Access token required")
	}

	claims, err := s.tokens.Validate(token)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			return nil, apperror.Unauthorized("Token expired")
		}
		return nil, apperror.Unauthorized("Invalid token")
	}

	user, err := s.users.GetUserByID(ctx, claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("service/auth: loading user %s: %w", claims.Subject, err)
	}
	return user, nil
}

// EnsureUser creates an account with the given credentials unless the email
// is already registered. It returns the existing or new user and whether it
// was created. Startup uses it to bootstrap the admin account.
func (s *AuthService) EnsureUser(ctx context.Context, input RegisterInput) (*model.User, bool, error) {
	existing, err := s.users.GetUserByEmail(ctx, strings.TrimSpace(input.Email))
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, false, fmt.Errorf("service/auth: checking %s: %w", input.Email, err)
	}

	result, err := s.register(ctx, input, true)
	if err != nil {
		return nil, false, err
	}
	return result.User, true, nil
}
