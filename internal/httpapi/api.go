package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"

	"sensorium.org/internal/auth"
	"sensorium.org/internal/iot"
	"sensorium.org/internal/obs"
)

// ReadyProbe checks readiness (database ping).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Options carries transport-level knobs from configuration.
type Options struct {
	Version        string
	MaxBodyBytes   int64
	RateLimitRPS   int
	RateLimitBurst int
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	auth       *auth.Service
	iot        *iot.Service
	readyProbe ReadyProbe
	opts       Options
}

// New wires all routes.
func New(authSvc *auth.Service, iotSvc *iot.Service, rp ReadyProbe, opts Options) *API {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	if opts.RateLimitRPS <= 0 {
		opts.RateLimitRPS = 20
	}
	if opts.RateLimitBurst <= 0 {
		opts.RateLimitBurst = 40
	}

	a := &API{
		mux:        http.NewServeMux(),
		auth:       authSvc,
		iot:        iotSvc,
		readyProbe: rp,
		opts:       opts,
	}

	// health/ready
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	// auth
	a.mux.HandleFunc("/api/auth/register", a.handleRegister)
	a.mux.HandleFunc("/api/auth/login", a.handleLogin)
	a.mux.HandleFunc("/api/auth/logout", a.handleLogout)
	a.mux.HandleFunc("/api/auth/change-password", a.handleChangePassword)
	a.mux.HandleFunc("/api/auth/me", a.handleMe)

	// tenant resources
	a.mux.HandleFunc("/api/locations", a.handleLocationsCollection)
	a.mux.HandleFunc("/api/locations/", a.handleLocationResource)
	a.mux.HandleFunc("/api/sensors", a.handleSensorsCollection)
	a.mux.HandleFunc("/api/sensors/", a.handleSensorResource)

	// device ingestion (x-api-key, not bearer tokens)
	a.mux.HandleFunc("/api/measurements", a.handleMeasurements)

	// admin
	a.mux.HandleFunc("/api/admin/", a.handleAdmin)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "resource not found")
	})

	return a
}

// Handler returns the fully assembled middleware chain.
func (a *API) Handler() http.Handler {
	h := http.Handler(a.mux)
	h = a.withAuth(h)
	h = MaxBodyBytes(h, a.opts.MaxBodyBytes)
	h = RateLimit(h, a.opts.RateLimitBurst, a.opts.RateLimitRPS)
	h = LoggingJSON(h)
	h = RequestID(h)
	h = CORS(h)
	h = SecurityHeaders(h)
	return obs.Instrument(h)
}

// --- health handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "sensorium-api",
		"version": a.opts.Version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":  "not_ready",
			"message": "database unavailable",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

// --- shared helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
