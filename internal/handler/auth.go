package handler

import (
	"net/http"

	"github.com/sakif/teamterrain/internal/auth"
	"github.com/sakif/teamterrain/internal/model"
	"github.com/sakif/teamterrain/internal/service"
)

// AuthHandler serves registration, login, and token verification.
//
//   - HandleRegister → POST /auth/register
//   - HandleLogin    → POST /auth/login
//   - HandleVerify   → GET  /auth/verify
//
// Sessions are stateless: the client keeps the JWT and sends it back as
// "Authorization: Bearer <token>".
type AuthHandler struct {
	auth *service.AuthService
	errs *ErrorWriter
}

func NewAuthHandler(svc *service.AuthService, errs *ErrorWriter) *AuthHandler {
	return &AuthHandler{auth: svc, errs: errs}
}

// UserResponse wraps a single user profile.
type UserResponse struct {
	Success bool          `json:"success"`
	User    model.Profile `json:"user"`
	Token   string        `json:"token,omitempty"`
	Message string        `json:"message,omitempty"`
}

// HandleRegister creates an account.
//
// HTTP: POST /auth/register
// REQUEST BODY: {"name": "Ada", "email": "ada@x.io", "password": "secret1"}
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var in service.RegisterInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.errs.Write(w, r, err)
		return
	}

	result, err := h.auth.Register(r.Context(), in)
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, UserResponse{
		Success: true,
		User:    result.User.Profile(),
		Token:   result.Token,
		Message: "User registered successfully",
	})
}

// HandleLogin exchanges email and password for a token.
//
// HTTP: POST /auth/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var in service.LoginInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.errs.Write(w, r, err)
		return
	}

	result, err := h.auth.Login(r.Context(), in)
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, UserResponse{
		Success: true,
		User:    result.User.Profile(),
		Token:   result.Token,
		Message: "Login successful",
	})
}

// HandleVerify checks the bearer token and returns its current user.
// Only session tokens are accepted here; the API key has no user.
//
// HTTP: GET /auth/verify
func (h *AuthHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	user, err := h.auth.Verify(r.Context(), auth.BearerToken(r))
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, UserResponse{
		Success: true,
		User:    user.Profile(),
		Message: "Token is valid",
	})
}
