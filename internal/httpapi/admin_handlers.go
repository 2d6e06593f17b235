package httpapi

import (
	"net/http"
	"strings"

	"sensorium.org/internal/audit"
)

type transferRequest struct {
	NewOwner string `json:"new_owner"`
}

// handleAdmin routes everything under /api/admin/. Authorization is enforced
// by the services; handlers here only parse paths and bodies.
func (a *API) handleAdmin(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/api/admin/")
	head, tail, _ := strings.Cut(rest, "/")

	switch head {
	case "users":
		a.handleAdminUsers(w, r, tail)
	case "sensors":
		a.handleAdminSensors(w, r, tail)
	case "locations":
		if tail != "" {
			writeError(w, r, http.StatusNotFound, "resource not found")
			return
		}
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		locs, err := a.iot.AllLocations(r.Context(), p)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, locs)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) handleAdminUsers(w http.ResponseWriter, r *http.Request, tail string) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	if tail == "" {
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		accounts, err := a.iot.ListAccounts(r.Context(), p)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, accounts)
		return
	}

	username, sub, _ := strings.Cut(tail, "/")
	switch sub {
	case "":
		if r.Method != http.MethodDelete {
			methodNotAllowed(w, r, http.MethodDelete)
			return
		}
		deleted, err := a.iot.DeleteUser(r.Context(), p, username)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		_ = audit.LogEvent(auditCtx(r), "admin.delete_user", map[string]any{
			"deleted_user": username,
			"sensors":      deleted.Sensors,
			"locations":    deleted.Locations,
			"measurements": deleted.Measurements,
		})
		writeJSON(w, http.StatusOK, deleted)
	case "sensors":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		sensors, err := a.iot.SensorsOf(r.Context(), p, username)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, sensors)
	case "locations":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		locs, err := a.iot.LocationsOf(r.Context(), p, username)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, locs)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) handleAdminSensors(w http.ResponseWriter, r *http.Request, tail string) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	if tail == "" {
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		sensors, err := a.iot.AllSensors(r.Context(), p)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, sensors)
		return
	}

	id, sub, _ := strings.Cut(tail, "/")
	switch sub {
	case "":
		if r.Method != http.MethodDelete {
			methodNotAllowed(w, r, http.MethodDelete)
			return
		}
		if err := a.iot.AdminDeleteSensor(r.Context(), p, id); err != nil {
			handleDomainError(w, r, err)
			return
		}
		_ = audit.LogEvent(auditCtx(r), "admin.delete_sensor", map[string]any{"sensor_id": id})
		writeJSON(w, http.StatusOK, map[string]any{"message": "sensor deleted"})
	case "transfer":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		var req transferRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		sensor, err := a.iot.TransferSensor(r.Context(), p, id, req.NewOwner)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		_ = audit.LogEvent(auditCtx(r), "admin.transfer_sensor", map[string]any{
			"sensor_id": id,
			"new_owner": sensor.Owner,
		})
		writeJSON(w, http.StatusOK, sensor)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}
