package handler

// RESPONSE HELPERS:
// These functions standardise how we send JSON responses and errors.
//
// Every success body carries "success": true next to its payload, and every
// error body has the same shape:
//
//	{"success": false, "error": "not_found", "message": "user not found with id abc123"}
//
// so clients can branch on "error" without looking at the status code.

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/teamterrain/internal/apperror"
)

// maxBodyBytes caps request bodies. Nothing this API accepts is close.
const maxBodyBytes = 1 << 20

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`   // Machine-readable error type (e.g., "not_found")
	Message string `json:"message"` // Human-readable description
	Field   string `json:"field,omitempty"`

	// Only set on 500s outside production. Stack is the error's wrap
	// chain, outermost layer first, so each entry names where the error
	// passed through on its way up.
	Detail string   `json:"detail,omitempty"`
	Stack  []string `json:"stack,omitempty"`
}

// writeJSON sends a JSON response with the given status code.
//
// HEADER ORDER MATTERS:
// Headers and status must be set before the body is written. Once Encode
// writes, later header changes are silently ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// ErrorWriter maps domain errors to HTTP responses. One is shared by all
// handlers so the mapping lives in one place.
type ErrorWriter struct {
	logger *slog.Logger
	debug  bool
}

// NewErrorWriter creates an ErrorWriter. With debug on, 500 responses
// include the underlying error and its wrap chain.
func NewErrorWriter(logger *slog.Logger, debug bool) *ErrorWriter {
	return &ErrorWriter{logger: logger, debug: debug}
}

// statusFor maps an error to its status code and error type.
//
// errors.Is walks the whole chain, so a service error like
//
//	fmt.Errorf("service/user: %w", apperror.NotFound("user", id))
//
// still matches ErrNotFound.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperror.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, apperror.ErrUnavailable):
		return http.StatusServiceUnavailable, "service_unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// Write sends err as a JSON error response. 5xx errors are logged with
// the request id so a client report can be matched to the server log.
func (e *ErrorWriter) Write(w http.ResponseWriter, r *http.Request, err error) {
	status, errorType := statusFor(err)
	resp := ErrorResponse{Error: errorType}

	if status >= http.StatusInternalServerError {
		e.logger.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("requestID", chimiddleware.GetReqID(r.Context())),
			slog.Int("status", status),
			slog.String("error", err.Error()),
		)
	}

	var appErr *apperror.AppError
	if status != http.StatusInternalServerError && errors.As(err, &appErr) {
		resp.Message = appErr.Message
		resp.Field = appErr.Field
		writeJSON(w, status, resp)
		return
	}

	// Unknown errors never leak their text in production: it may contain
	// SQL, file paths, or connection strings.
	resp.Message = "An internal error occurred"
	if e.debug {
		resp.Detail = err.Error()
		resp.Stack = errorChain(err)
	}
	writeJSON(w, status, resp)
}

// errorChain flattens err and everything it wraps, depth first.
func errorChain(err error) []string {
	var chain []string
	var walk func(error)
	walk = func(err error) {
		if err == nil {
			return
		}
		chain = append(chain, err.Error())
		switch u := err.(type) {
		case interface{ Unwrap() error }:
			walk(u.Unwrap())
		case interface{ Unwrap() []error }:
			for _, e := range u.Unwrap() {
				walk(e)
			}
		}
	}
	walk(err)
	return chain
}

// decodeJSON reads the request body into dst. An empty body decodes as
// the zero value.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return apperror.ValidationFailed("", "Invalid JSON body")
	}
	return nil
}

// queryInt reads an optional integer query parameter. It returns nil when
// the parameter is absent.
func queryInt(r *http.Request, name string) (*int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, apperror.ValidationFailed(name, name+" must be an integer")
	}
	return &n, nil
}
