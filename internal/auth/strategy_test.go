package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/teamterrain/internal/apperror"
	"github.com/sakif/teamterrain/internal/model"
)

const testAPIKey = "integration-key-0123456789"

func newTestAuthenticator(t *testing.T) (*Authenticator, *TokenService) {
	t.Helper()
	ts := newTestTokenService(t)
	return NewAuthenticator(NewAPIKeyStrategy(testAPIKey), NewTokenStrategy(ts)), ts
}

func TestAPIKeyStrategy(t *testing.T) {
	s := NewAPIKeyStrategy(testAPIKey)

	p, err := s.Authenticate(context.Background(), testAPIKey)
	require.NoError(t, err)
	assert.True(t, p.Service)

	_, err = s.Authenticate(context.Background(), "wrong")
	assert.ErrorIs(t, err, ErrNoMatch)
}

func TestAPIKeyStrategy_EmptyKeyDisabled(t *testing.T) {
	s := NewAPIKeyStrategy("")

	_, err := s.Authenticate(context.Background(), "")
	assert.ErrorIs(t, err, ErrNoMatch)
	_, err = s.Authenticate(context.Background(), "anything")
	assert.ErrorIs(t, err, ErrNoMatch)
}

func TestAuthenticator_AcceptsEitherCredential(t *testing.T) {
	authn, ts := newTestAuthenticator(t)

	token, err := ts.Generate(&model.User{ID: "u1", Email: "u1@example.com"})
	require.NoError(t, err)

	p, err := authn.Authenticate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "u1", p.UserID)
	assert.False(t, p.Service)

	p, err = authn.Authenticate(context.Background(), testAPIKey)
	require.NoError(t, err)
	assert.True(t, p.Service)
}

func TestAuthenticator_Rejects(t *testing.T) {
	authn, ts := newTestAuthenticator(t)

	expired, err := ts.GenerateWithDuration(&model.User{ID: "u1"}, -time.Minute)
	require.NoError(t, err)

	for name, credential := range map[string]string{
		"missing": "",
		"garbage": "definitely-not-valid",
		"expired": expired,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := authn.Authenticate(context.Background(), credential)
			assert.True(t, errors.Is(err, ErrUnauthenticated), "got %v", err)
		})
	}
}

// recordingStrategy remembers whether it was consulted.
type recordingStrategy struct {
	called bool
	result error
}

func (s *recordingStrategy) Name() string { return "recording" }

func (s *recordingStrategy) Authenticate(context.Context, string) (model.Principal, error) {
	s.called = true
	if s.result != nil {
		return model.Principal{}, s.result
	}
	return model.Principal{UserID: "from-recording"}, nil
}

func TestAuthenticator_TriesInOrder(t *testing.T) {
	first := &recordingStrategy{}
	second := &recordingStrategy{}

	p, err := NewAuthenticator(first, second).Authenticate(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "from-recording", p.UserID)
	assert.True(t, first.called)
	assert.False(t, second.called, "later strategies must not run once one accepts")

	miss := &recordingStrategy{result: ErrNoMatch}
	hit := &recordingStrategy{}
	_, err = NewAuthenticator(miss, hit).Authenticate(context.Background(), "x")
	require.NoError(t, err)
	assert.True(t, miss.called)
	assert.True(t, hit.called)
}

// userTable is a UserLookup over a fixed set of users.
type userTable map[string]*model.User

func (u userTable) GetUserByID(_ context.Context, id string) (*model.User, error) {
	if user, ok := u[id]; ok {
		return user, nil
	}
	return nil, apperror.NotFound("user", id)
}

func TestTokenStrategy_WithUsersRefreshesEmail(t *testing.T) {
	ts := newTestTokenService(t)
	users := userTable{"u1": {ID: "u1", Name: "Renamed", Email: "now@example.com"}}
	s := NewTokenStrategy(ts).WithUsers(users)

	// Signed while the account still had its old email.
	token, err := ts.Generate(&model.User{ID: "u1", Name: "Old", Email: "then@example.com"})
	require.NoError(t, err)

	p, err := s.Authenticate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "u1", p.UserID)
	assert.Equal(t, "now@example.com", p.Email)
	assert.Equal(t, "Renamed", p.Name)

	gone, err := ts.Generate(&model.User{ID: "u2", Email: "gone@example.com"})
	require.NoError(t, err)
	p, err = s.Authenticate(context.Background(), gone)
	require.NoError(t, err)
	assert.Equal(t, "u2", p.UserID)
	assert.Empty(t, p.Email, "a deleted account keeps no email")
}

func TestRequireAuth(t *testing.T) {
	authn, ts := newTestAuthenticator(t)
	token, err := ts.Generate(&model.User{ID: "u42", Email: "u42@example.com"})
	require.NoError(t, err)

	var seen model.Principal
	protected := RequireAuth(authn)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + token, http.StatusUnauthorized},
		{"bad token", "Bearer nope", http.StatusUnauthorized},
		{"session token", "Bearer " + token, http.StatusNoContent},
		{"api key", "Bearer " + testAPIKey, http.StatusNoContent},
		{"lowercase scheme", "bearer " + token, http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/users", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			protected.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusUnauthorized {
				assert.JSONEq(t, unauthorizedBody, rec.Body.String())
			}
		})
	}

	// The last successful request above used the session token variant.
	assert.Equal(t, "u42", seen.UserID)
}

func TestPrincipalFromContext_Empty(t *testing.T) {
	_, ok := PrincipalFromContext(context.Background())
	assert.False(t, ok)
}
