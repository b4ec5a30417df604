package handler

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/teamterrain/internal/auth"
	"github.com/sakif/teamterrain/internal/model"
	"github.com/sakif/teamterrain/internal/service"
)

// LocationHandler serves pin updates and history under /location.
type LocationHandler struct {
	locations *service.LocationService
	errs      *ErrorWriter
}

func NewLocationHandler(svc *service.LocationService, errs *ErrorWriter) *LocationHandler {
	return &LocationHandler{locations: svc, errs: errs}
}

// Pagination describes the window of a HistoryResponse.
type Pagination struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"hasMore"`
}

type HistoryResponse struct {
	Success    bool                   `json:"success"`
	Locations  []model.LocationUpdate `json:"locations"`
	Pagination Pagination             `json:"pagination"`
}

type ClearHistoryResponse struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	DeletedCount int64  `json:"deletedCount"`
}

// HandleUpdate pins, moves, or clears a user's location.
//
// HTTP: POST /location/update
// REQUEST BODY:
//
//	{"userId": "...", "coordinates": "36.8219, -1.2921", "city": "Nairobi", "country": "Kenya"}
//
// userId defaults to the caller. Empty coordinates (or "action": "delete")
// remove the pin.
func (h *LocationHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var in service.LocationInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.errs.Write(w, r, err)
		return
	}

	principal, _ := auth.PrincipalFromContext(r.Context())
	user, err := h.locations.Update(r.Context(), principal, in)
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, UserResponse{
		Success: true,
		User:    user.Profile(),
		Message: "Location updated successfully",
	})
}

// HandleHistory returns one page of a user's history.
//
// HTTP: GET /location/history/{userId}?limit=50&offset=0
func (h *LocationHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}

	q := service.HistoryQuery{Limit: limit}
	if offset != nil {
		q.Offset = *offset
	}

	page, err := h.locations.History(r.Context(), chi.URLParam(r, "userId"), q)
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, HistoryResponse{
		Success:   true,
		Locations: page.Locations,
		Pagination: Pagination{
			Total:   page.Total,
			Limit:   page.Limit,
			Offset:  page.Offset,
			HasMore: page.HasMore(),
		},
	})
}

// HandleClearHistory deletes a user's history; the current pin stays.
//
// HTTP: DELETE /location/history/{userId}
func (h *LocationHandler) HandleClearHistory(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())
	n, err := h.locations.ClearHistory(r.Context(), principal, chi.URLParam(r, "userId"))
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, ClearHistoryResponse{
		Success:      true,
		Message:      fmt.Sprintf("Deleted %d location records", n),
		DeletedCount: n,
	})
}

// HandleRecent returns the latest updates across every user.
//
// HTTP: GET /location/all?limit=100
func (h *LocationHandler) HandleRecent(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}

	locations, err := h.locations.Recent(r.Context(), limit)
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
