package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"sensorium.org/internal/audit"
	"sensorium.org/internal/auth"
	"sensorium.org/internal/iot"
	"sensorium.org/internal/obs"
)

// auditCtx carries the request id into the audit trail.
func auditCtx(r *http.Request) context.Context {
	return audit.WithRequestID(r.Context(), RequestIDFromContext(r.Context()))
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

// writeError emits the error envelope: a JSON object with a message field,
// plus the request id when one is attached.
func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"message": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

// handleDomainError maps the service error taxonomy onto HTTP statuses.
// Every failure is terminal; unexpected ones are logged and surfaced as a
// generic internal error without leaking details.
func handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidInput), errors.Is(err, iot.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, "invalid request")
	case errors.Is(err, auth.ErrConflict):
		writeError(w, r, http.StatusConflict, "username is already taken")
	case errors.Is(err, iot.ErrConflict):
		writeError(w, r, http.StatusConflict, "you already have a location with this name")
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, r, http.StatusUnauthorized, "invalid username or password")
	case errors.Is(err, auth.ErrUnauthenticated):
		writeError(w, r, http.StatusUnauthorized, "token required")
	case errors.Is(err, auth.ErrRevoked):
		writeError(w, r, http.StatusUnauthorized, "token has been revoked")
	case errors.Is(err, auth.ErrTokenExpired):
		writeError(w, r, http.StatusUnauthorized, "token expired")
	case auth.IsInvalidToken(err):
		writeError(w, r, http.StatusForbidden, "invalid token")
	case errors.Is(err, auth.ErrForbidden):
		writeError(w, r, http.StatusForbidden, "access denied")
	case errors.Is(err, auth.ErrNotFound), errors.Is(err, iot.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "not found")
	case errors.Is(err, iot.ErrLocationInUse):
		writeError(w, r, http.StatusConflict, "location still has sensors assigned")
	case errors.Is(err, iot.ErrInvalidAPIKey):
		writeError(w, r, http.StatusUnauthorized, "invalid api key")
	case errors.Is(err, iot.ErrSensorInactive):
		writeError(w, r, http.StatusForbidden, "sensor is inactive")
	default:
		obs.Error("internal error", map[string]any{
			"request_id": RequestIDFromContext(r.Context()),
			"path":       r.URL.Path,
			"error":      err.Error(),
		})
		writeError(w, r, http.StatusInternalServerError, "internal server error")
	}
}

// principal returns the authenticated principal or writes a 401.
func principal(w http.ResponseWriter, r *http.Request) (auth.Principal, bool) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "token required")
		return auth.Principal{}, false
	}
	return p, true
}
