package httpapi

import (
	"net/http"
	"time"

	"sensorium.org/internal/audit"
	"sensorium.org/internal/auth"
)

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	role, err := auth.ParseRole(req.Role)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "unknown role")
		return
	}
	acc, err := a.auth.Register(r.Context(), req.Username, req.Password, role)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	_ = audit.LogEvent(auditCtx(r), "auth.register", map[string]any{"new_user": acc.Username})
	writeJSON(w, http.StatusCreated, acc)
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	token, expiresAt, err := a.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		_ = audit.LogEvent(auditCtx(r), "auth.login", map[string]any{"attempted_user": req.Username, "outcome": "failure"})
		handleDomainError(w, r, err)
		return
	}
	_ = audit.LogEvent(auditCtx(r), "auth.login", map[string]any{"attempted_user": req.Username, "outcome": "success"})
	writeJSON(w, http.StatusOK, tokenResponse{Token: token, ExpiresAt: expiresAt})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	token, _ := auth.TokenFromContext(r.Context())
	if err := a.auth.Logout(r.Context(), token); err != nil {
		handleDomainError(w, r, err)
		return
	}
	_ = audit.LogEvent(auditCtx(r), "auth.logout", nil)
	writeJSON(w, http.StatusOK, map[string]any{"message": "logged out"})
}

func (a *API) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.auth.ChangePassword(r.Context(), p.Username, req.OldPassword, req.NewPassword); err != nil {
		handleDomainError(w, r, err)
		return
	}
	_ = audit.LogEvent(auditCtx(r), "auth.change_password", nil)
	writeJSON(w, http.StatusOK, map[string]any{"message": "password changed"})
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	p, ok := principal(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, p)
}
