package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/sakif/teamterrain/internal/apperror"
	"github.com/sakif/teamterrain/internal/model"
)

// ErrNoMatch tells the Authenticator that a strategy does not recognise the
// credential and the next strategy should try.
var ErrNoMatch = errors.New("auth: credential not recognised")

// ErrUnauthenticated is returned when no strategy accepts the credential.
var ErrUnauthenticated = errors.New("auth: unauthenticated")

// Strategy verifies one kind of bearer credential.
type Strategy interface {
	Name() string
	Authenticate(ctx context.Context, credential string) (model.Principal, error)
}

// APIKeyStrategy accepts the single shared key from API_AUTH_TOKEN and maps
// it to the service principal. An empty configured key disables it, so an
// empty header can never match.
type APIKeyStrategy struct {
	key []byte
}

func NewAPIKeyStrategy(key string) *APIKeyStrategy {
	return &APIKeyStrategy{key: []byte(key)}
}

func (s *APIKeyStrategy) Name() string { return "api_key" }

func (s *APIKeyStrategy) Authenticate(_ context.Context, credential string) (model.Principal, error) {
	if len(s.key) == 0 || credential == "" {
		return model.Principal{}, ErrNoMatch
	}
	if subtle.ConstantTimeCompare(s.key, []byte(credential)) != 1 {
		return model.Principal{}, ErrNoMatch
	}
	return model.Principal{Name: "api-key", Service: true}, nil
}

// UserLookup loads the current user row behind a token subject.
type UserLookup interface {
	GetUserByID(ctx context.Context, id string) (*model.User, error)
}

// TokenStrategy accepts session JWTs issued by TokenService.
type TokenStrategy struct {
	tokens *TokenService
	users  UserLookup
}

func NewTokenStrategy(tokens *TokenService) *TokenStrategy {
	return &TokenStrategy{tokens: tokens}
}

// WithUsers makes the strategy refresh the principal's email and name from
// the users table. Admin rights follow the account's current email, not the
// one captured when the token was signed. A token whose user is gone keeps
// only its subject.
func (s *TokenStrategy) WithUsers(users UserLookup) *TokenStrategy {
	s.users = users
	return s
}

func (s *TokenStrategy) Name() string { return "session_token" }

func (s *TokenStrategy) Authenticate(ctx context.Context, credential string) (model.Principal, error) {
	claims, err := s.tokens.Validate(credential)
	if err != nil {
		return model.Principal{}, err
	}
	p := claims.Principal()
	if s.users == nil {
		return p, nil
	}

	user, err := s.users.GetUserByID(ctx, p.UserID)
	switch {
	case err == nil:
		p.Email, p.Name = user.Email, user.Name
	case errors.Is(err, apperror.ErrNotFound):
		p.Email, p.Name = "", ""
	default:
		return model.Principal{}, fmt.Errorf("loading user %s: %w", p.UserID, err)
	}
	return p, nil
}

// Authenticator tries its strategies in order and returns the first
// principal any of them accepts. Callers only ever see a principal or
// ErrUnauthenticated; which strategy matched is not part of the result.
type Authenticator struct {
	strategies []Strategy
}

// NewAuthenticator builds an Authenticator. The server wires it as
// API key first, then session token.
func NewAuthenticator(strategies ...Strategy) *Authenticator {
	return &Authenticator{strategies: strategies}
}

func (a *Authenticator) Authenticate(ctx context.Context, credential string) (model.Principal, error) {
	if credential == "" {
		return model.Principal{}, fmt.Errorf("%w: missing credential", ErrUnauthenticated)
	}

	var lastErr error
	for _, s := range a.strategies {
		p, err := s.Authenticate(ctx, credential)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, ErrNoMatch) {
			lastErr = fmt.Errorf("%s: %w", s.Name(), err)
		}
	}

	if lastErr != nil {
		return model.Principal{}, fmt.Errorf("%w: %w", ErrUnauthenticated, lastErr)
	}
	return model.Principal{}, ErrUnauthenticated
}
