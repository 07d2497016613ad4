package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sispromo/sispromo/internal/domain"
	"github.com/sispromo/sispromo/internal/domain/user"
	"github.com/sispromo/sispromo/internal/middleware"
	"github.com/sispromo/sispromo/internal/service"
)

// ---------------------------------------------------------------------------
// Request helpers
// ---------------------------------------------------------------------------

// readJSON decodes a JSON request body with a size limit.
func readJSON[T any](w http.ResponseWriter, r *http.Request, bodyLimit int64) (T, bool) {
	var v T
	r.Body = http.MaxBytesReader(w, r.Body, bodyLimit)
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		} else {
			writeError(w, http.StatusBadRequest, "invalid request body")
		}
		return v, false
	}
	return v, true
}

// urlParam is a short alias for chi.URLParam.
func urlParam(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}

// actor returns the authenticated caller. The auth middleware guarantees one
// on every non-public route.
func actor(r *http.Request) *user.User {
	return middleware.UserFromContext(r.Context())
}

// queryInt reads a non-negative integer query parameter. Missing values
// yield def.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, domain.Invalid(errors.New(name + " must be a non-negative integer"))
	}
	return n, nil
}

// ---------------------------------------------------------------------------
// Response helpers
// ---------------------------------------------------------------------------

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to write JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeDomainError maps service and domain errors onto status codes.
// fallbackMsg is used for not-found responses.
func writeDomainError(w http.ResponseWriter, err error, fallbackMsg string) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, service.ErrInvalidCredentials.Error())
	case errors.Is(err, service.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, service.ErrInvalidToken.Error())
	case errors.Is(err, service.ErrAccountInactive):
		writeError(w, http.StatusForbidden, service.ErrAccountInactive.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, fallbackMsg)
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, detail(err, domain.ErrConflict, "resource already exists"))
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, detail(err, domain.ErrValidation, "invalid request"))
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, detail(err, domain.ErrForbidden, "permission denied"))
	default:
		slog.Error("unhandled domain error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// detail returns the text following "<sentinel>: " in err's message, so
// wrapping context added by lower layers never reaches the client.
func detail(err, sentinel error, fallback string) string {
	msg := err.Error()
	marker := sentinel.Error() + ": "
	if i := strings.LastIndex(msg, marker); i >= 0 {
		if d := msg[i+len(marker):]; d != "" {
			return d
		}
	}
	return fallback
}

// writeInternalError logs the actual error server-side and returns a generic message to the client.
func writeInternalError(w http.ResponseWriter, err error) {
	slog.Error("request failed", "error", err)
	writeError(w, http.StatusInternalServerError, "internal server error")
}
