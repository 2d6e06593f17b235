package httpapi

import (
	"net/http"
	"strings"

	"sensorium.org/internal/iot"
)

type sensorCreateRequest struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	LocationID string `json:"location_id,omitempty"`
}

type sensorUpdateRequest struct {
	Name       *string `json:"name,omitempty"`
	Type       *string `json:"type,omitempty"`
	LocationID *string `json:"location_id,omitempty"`
	IsActive   *bool   `json:"is_active,omitempty"`
}

func (a *API) handleSensorsCollection(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		filter := r.URL.Query().Get("location")
		sensors, err := a.iot.ListSensors(r.Context(), p, filter)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, sensors)
	case http.MethodPost:
		var req sensorCreateRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		sensor, err := a.iot.CreateSensor(r.Context(), p, req.Name, req.Type, req.LocationID)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, sensor)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleSensorResource(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/api/sensors/")
	id, sub, _ := strings.Cut(rest, "/")
	if id == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	if sub == "measurements" {
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		ms, err := a.iot.SensorMeasurements(r.Context(), p, id)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, ms)
		return
	}
	if sub != "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		sensor, err := a.iot.GetSensor(r.Context(), p, id)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, sensor)
	case http.MethodPatch:
		var req sensorUpdateRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		sensor, err := a.iot.UpdateSensor(r.Context(), p, id, iot.SensorUpdate{
			Name:       req.Name,
			Type:       req.Type,
			LocationID: req.LocationID,
			IsActive:   req.IsActive,
		})
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, sensor)
	case http.MethodDelete:
		if err := a.iot.DeleteSensor(r.Context(), p, id); err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"message": "sensor deleted"})
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPatch, http.MethodDelete)
	}
}
