// Package auth provides credentials for the teamterrain API: bcrypt password
// hashing, JWT session tokens, and the strategies that turn an
// "Authorization: Bearer ..." header into a model.Principal.
//
// SESSION FLOW:
// 1. POST /auth/register or /auth/login checks the password
// 2. Server issues a JWT carrying the user's id, email and name
// 3. Client sends it back as "Authorization: Bearer <jwt>"
// 4. RequireAuth validates it and puts a Principal in the request context
//
// JWT STRUCTURE (three base64-encoded parts separated by dots):
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header: {"alg":"HS256","typ":"JWT"}
//	- Payload: {"sub":"<user id>","email":"...","name":"...","jti":"<uuid>","exp":...}
//	- Signature: HMAC-SHA256(header+"."+payload, secretKey)
//
// The server verifies the signature with the secret alone, no DB lookup.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/sakif/teamterrain/internal/model"
)

const (
	issuer = "teamterrain"

	// DefaultTokenExpiry matches the original seven-day session.
	DefaultTokenExpiry = 7 * 24 * time.Hour
)

// TokenService handles JWT creation and validation.
type TokenService struct {
	secret []byte
	expiry time.Duration
}

// NewTokenService creates a TokenService with the given secret and token
// lifetime. A zero expiry falls back to DefaultTokenExpiry.
// Example: JWT_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string, expiry time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	if expiry <= 0 {
		expiry = DefaultTokenExpiry
	}
	return &TokenService{secret: []byte(secret), expiry: expiry}, nil
}

// Claims is the JWT payload. "sub" holds the user id; email and name ride
// along so the admin check and log lines need no DB lookup.
//
// The email in a token is a snapshot from issue time. A user who changes
// their email keeps the old one in their claims until they log in again.
type Claims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	jwt.RegisteredClaims
}

// Principal converts validated claims into a request principal.
func (c *Claims) Principal() model.Principal {
	return model.Principal{UserID: c.Subject, Email: c.Email, Name: c.Name}
}

// Generate signs a session token for user with the configured lifetime.
func (s *TokenService) Generate(user *model.User) (string, error) {
	return s.GenerateWithDuration(user, s.expiry)
}

// GenerateWithDuration signs a token with a custom lifetime. Tests use a
// negative duration to mint already-expired tokens.
func (s *TokenService) GenerateWithDuration(user *model.User, d time.Duration) (string, error) {
	if user == nil || user.ID == "" {
		return "", errors.New("auth: cannot issue token without a user id")
	}

	now := time.Now()
	c := Claims{
		Email: user.Email,
		Name:  user.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    issuer,
		},
	}

	// jwt.NewWithClaims creates an unsigned token with the given algorithm.
	// SignedString(key) signs it and returns the complete JWT string.
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Validate parses and verifies a JWT string and returns its claims.
//
// VALIDATION CHECKS (performed by the jwt library):
//   - Signature is valid (wasn't tampered with)
//   - Token is not expired and carries an expiry at all
//   - Issuer matches "teamterrain"
//   - Algorithm is HS256 (blocks the "alg: none" confusion attack)
func (s *TokenService) Validate(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&Claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("auth: invalid token claims")
	}
	if c.Subject == "" {
		return nil, errors.New("auth: token has no subject")
	}

	return c, nil
}

// ErrTokenExpired is returned by Validate for well-formed but expired tokens.
var ErrTokenExpired = errors.New("auth: token expired")
