package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/teamterrain/internal/auth"
	"github.com/sakif/teamterrain/internal/model"
	"github.com/sakif/teamterrain/internal/service"
)

// UserHandler serves the user directory under /users.
type UserHandler struct {
	users *service.UserService
	errs  *ErrorWriter
}

func NewUserHandler(svc *service.UserService, errs *ErrorWriter) *UserHandler {
	return &UserHandler{users: svc, errs: errs}
}

// UsersResponse wraps a list of profiles.
type UsersResponse struct {
	Success bool            `json:"success"`
	Users   []model.Profile `json:"users"`
	Count   int             `json:"count"`
}

// LocationsResponse wraps an unpaginated list of history rows.
type LocationsResponse struct {
	Success   bool                   `json:"success"`
	Locations []model.LocationUpdate `json:"locations"`
	Count     int                    `json:"count"`
}

// MessageResponse is a bare acknowledgement.
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// HandleList returns every user with their pin state.
//
// HTTP: GET /users
func (h *UserHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, UsersResponse{
		Success: true,
		Users:   model.Profiles(users),
		Count:   len(users),
	})
}

// HandleGet returns one user.
//
// HTTP: GET /users/{id}
func (h *UserHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, UserResponse{Success: true, User: user.Profile()})
}

// HandleUpdate applies a partial profile edit.
//
// HTTP: PUT /users/{id}
// REQUEST BODY: any of name, email, coordinates, city, state, country
func (h *UserHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var in service.UpdateUserInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.errs.Write(w, r, err)
		return
	}

	principal, _ := auth.PrincipalFromContext(r.Context())
	user, err := h.users.Update(r.Context(), principal, chi.URLParam(r, "id"), in)
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, UserResponse{
		Success: true,
		User:    user.Profile(),
		Message: "User updated successfully",
	})
}

// HandleDelete removes a user and their history.
//
// HTTP: DELETE /users/{id}
func (h *UserHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())
	if err := h.users.Delete(r.Context(), principal, chi.URLParam(r, "id")); err != nil {
		h.errs.Write(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Success: true, Message: "User deleted successfully"})
}

// HandleLocations returns a user's full history, newest first.
//
// HTTP: GET /users/{id}/locations
func (h *UserHandler) HandleLocations(w http.ResponseWriter, r *http.Request) {
	locations, err := h.users.FullHistory(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, LocationsResponse{
		Success:   true,
		Locations: locations,
		Count:     len(locations),
	})
}
