package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/sakif/teamterrain/internal/metrics"
	"github.com/sakif/teamterrain/internal/model"
)

// contextKey is an unexported type used for context keys in this package.
//
// context.WithValue accepts any key. A package-private type means only this
// package can create the key, so no other package can read or shadow the
// principal by guessing a string.
type contextKey string

const principalKey contextKey = "principal"

const unauthorizedBody = `{"success":false,"error":"unauthorized","message":"valid authentication required"}`

// RequireAuth is a middleware that enforces authentication on protected routes.
//
// It reads "Authorization: Bearer <credential>", hands the credential to the
// Authenticator, and stores the resulting Principal in the request context.
// A missing header or a credential no strategy accepts ends the request with
// 401 before the handler runs.
//
// MIDDLEWARE PATTERN IN GO:
//
//	func Middleware(next http.Handler) http.Handler {
//	    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
//	        // ... before ...
//	        next.ServeHTTP(w, r)
//	        // ... after ...
//	    })
//	}
func RequireAuth(authn *Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, err := authn.Authenticate(r.Context(), BearerToken(r))
			if err != nil {
				metrics.RecordAuthAttempt("bearer", "failure")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(unauthorizedBody))
				return
			}
			metrics.RecordAuthAttempt("bearer", "success")

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

// BearerToken extracts the credential from "Authorization: Bearer <x>".
// It returns "" when the header is absent or uses another scheme.
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	scheme, credential, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(credential)
}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p model.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext retrieves the authenticated caller.
//
// Returns (Principal{}, false) when RequireAuth did not run for this request.
//
//	p, ok := auth.PrincipalFromContext(r.Context())
//	if !ok {
//	    // anonymous
//	}
func PrincipalFromContext(ctx context.Context) (model.Principal, bool) {
	p, ok := ctx.Value(principalKey).(model.Principal)
	return p, ok
}
