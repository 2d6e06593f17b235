package httpapi

import (
	"net/http"
	"strings"
)

type locationCreateRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type locationUpdateRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

func (a *API) handleLocationsCollection(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		locs, err := a.iot.ListLocations(r.Context(), p)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, locs)
	case http.MethodPost:
		var req locationCreateRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		loc, err := a.iot.CreateLocation(r.Context(), p, req.Name, req.Description)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, loc)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleLocationResource(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/locations/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		loc, err := a.iot.GetLocation(r.Context(), p, id)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, loc)
	case http.MethodPatch:
		var req locationUpdateRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		loc, err := a.iot.UpdateLocation(r.Context(), p, id, req.Name, req.Description)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, loc)
	case http.MethodDelete:
		if err := a.iot.DeleteLocation(r.Context(), p, id); err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"message": "location deleted"})
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPatch, http.MethodDelete)
	}
}
