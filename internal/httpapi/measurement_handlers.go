package httpapi

import (
	"net/http"

	"sensorium.org/internal/obs"
)

type ingestRequest struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit,omitempty"`
}

// handleMeasurements is the device-facing ingestion endpoint. Devices
// authenticate with their sensor API key, never with bearer tokens.
func (a *API) handleMeasurements(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	apiKey := r.Header.Get("X-Api-Key")
	if apiKey == "" {
		writeError(w, r, http.StatusUnauthorized, "x-api-key header required")
		return
	}
	var req ingestRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	m, err := a.iot.Ingest(r.Context(), apiKey, req.Value, req.Unit)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	obs.MeasurementIngested()
	writeJSON(w, http.StatusCreated, m)
}
