// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, authorizes, orchestrates
//	Repository (Data layer)  → reads/writes the database
//
// Services never see an *http.Request. They take a context, the caller's
// model.Principal when the operation is permission-checked, and a plain
// input struct. They return models or *apperror.AppError values, which the
// handler package maps to status codes.
//
// DEPENDENCY INJECTION:
// Every service takes repository interfaces, not *sqlite.DB or *postgres.DB.
// main.go picks the engine; tests pass in-memory fakes (see fakes_test.go).
package service

import (
	"strings"

	"github.com/sakif/teamterrain/internal/apperror"
	"github.com/sakif/teamterrain/internal/geo"
)

// Paging limits for history and the global feed.
const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 500
	DefaultRecentLimit  = 100
	MaxRecentLimit      = 1000
)

// clamp pins n into [lo, hi].
func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

// canonicalCoordinates normalises a non-empty coordinate string to the
// stored "lng, lat" form. Empty input is returned as is (it means "clear").
func canonicalCoordinates(s string) (string, error) {
	if s == "" {
		return "", nil
	}
	c, err := geo.Canonical(s)
	if err != nil {
		return "", apperror.ValidationFailed("coordinates", strings.TrimPrefix(err.Error(), "geo: "))
	}
	return c, nil
}
