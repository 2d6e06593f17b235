package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"sensorium.org/internal/auth"
	"sensorium.org/internal/ids"
	"sensorium.org/internal/iot"
)

// In-memory stores backing the handler tests. They mirror the Postgres
// stores' contracts, including conflict and not-found behavior.

type memAccounts struct {
	mu       sync.Mutex
	accounts map[string]*auth.Account
	order    []string
}

func newMemAccounts() *memAccounts {
	return &memAccounts{accounts: map[string]*auth.Account{}}
}

func (s *memAccounts) Create(_ context.Context, a *auth.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[a.Username]; ok {
		return auth.ErrConflict
	}
	cp := *a
	s.accounts[a.Username] = &cp
	s.order = append(s.order, a.Username)
	return nil
}

func (s *memAccounts) Find(_ context.Context, username string) (*auth.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[username]
	if !ok {
		return nil, auth.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *memAccounts) UpdatePassword(_ context.Context, username, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[username]
	if !ok {
		return auth.ErrNotFound
	}
	a.PasswordHash = hash
	return nil
}

func (s *memAccounts) List(_ context.Context) ([]*auth.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*auth.Account, 0, len(s.order))
	for _, name := range s.order {
		if a, ok := s.accounts[name]; ok {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memAccounts) Delete(_ context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[username]; !ok {
		return auth.ErrNotFound
	}
	delete(s.accounts, username)
	return nil
}

type memIOT struct {
	mu           sync.Mutex
	locations    map[string]*iot.Location
	sensors      map[string]*iot.Sensor
	measurements map[string][]*iot.Measurement
}

func newMemIOT() *memIOT {
	return &memIOT{
		locations:    map[string]*iot.Location{},
		sensors:      map[string]*iot.Sensor{},
		measurements: map[string][]*iot.Measurement{},
	}
}

func (s *memIOT) Locations() iot.LocationStore       { return (*memLocations)(s) }
func (s *memIOT) Sensors() iot.SensorStore           { return (*memSensors)(s) }
func (s *memIOT) Measurements() iot.MeasurementStore { return (*memMeasurements)(s) }

type memLocations memIOT

func (s *memLocations) Create(_ context.Context, loc *iot.Location) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.locations {
		if l.Owner == loc.Owner && l.Name == loc.Name {
			return iot.ErrConflict
		}
	}
	if loc.ID == "" {
		loc.ID = ids.New()
	}
	now := time.Now().UTC()
	loc.CreatedAt, loc.UpdatedAt = now, now
	cp := *loc
	s.locations[loc.ID] = &cp
	return nil
}

func (s *memLocations) Find(_ context.Context, id string) (*iot.Location, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locations[id]
	if !ok {
		return nil, iot.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (s *memLocations) ListByOwner(_ context.Context, owner string) ([]*iot.Location, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*iot.Location
	for _, l := range s.locations {
		if l.Owner == owner {
			cp := *l
			out = append(out, &cp)
		}
	}
	sortLocations(out)
	return out, nil
}

func (s *memLocations) ListAll(_ context.Context) ([]*iot.Location, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*iot.Location
	for _, l := range s.locations {
		cp := *l
		out = append(out, &cp)
	}
	sortLocations(out)
	return out, nil
}

func (s *memLocations) Update(_ context.Context, loc *iot.Location) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.locations[loc.ID]; !ok {
		return iot.ErrNotFound
	}
	cp := *loc
	s.locations[loc.ID] = &cp
	return nil
}

func (s *memLocations) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.locations[id]; !ok {
		return iot.ErrNotFound
	}
	delete(s.locations, id)
	return nil
}

func (s *memLocations) DeleteByOwner(_ context.Context, owner string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, l := range s.locations {
		if l.Owner == owner {
			delete(s.locations, id)
			n++
		}
	}
	return n, nil
}

type memSensors memIOT

func (s *memSensors) Create(_ context.Context, sensor *iot.Sensor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sensor.ID == "" {
		sensor.ID = ids.New()
	}
	now := time.Now().UTC()
	sensor.CreatedAt, sensor.UpdatedAt = now, now
	cp := *sensor
	s.sensors[sensor.ID] = &cp
	return nil
}

func (s *memSensors) Find(_ context.Context, id string) (*iot.Sensor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sn, ok := s.sensors[id]
	if !ok {
		return nil, iot.ErrNotFound
	}
	cp := *sn
	return &cp, nil
}

func (s *memSensors) FindByAPIKey(_ context.Context, apiKey string) (*iot.Sensor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sn := range s.sensors {
		if sn.APIKey == apiKey {
			cp := *sn
			return &cp, nil
		}
	}
	return nil, iot.ErrNotFound
}

func (s *memSensors) ListByOwner(_ context.Context, owner string) ([]*iot.Sensor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*iot.Sensor
	for _, sn := range s.sensors {
		if sn.Owner == owner {
			cp := *sn
			out = append(out, &cp)
		}
	}
	sortSensors(out)
	return out, nil
}

func (s *memSensors) ListAll(_ context.Context) ([]*iot.Sensor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*iot.Sensor
	for _, sn := range s.sensors {
		cp := *sn
		out = append(out, &cp)
	}
	sortSensors(out)
	return out, nil
}

func (s *memSensors) Update(_ context.Context, sensor *iot.Sensor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sensors[sensor.ID]; !ok {
		return iot.ErrNotFound
	}
	cp := *sensor
	s.sensors[sensor.ID] = &cp
	return nil
}

func (s *memSensors) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sensors[id]; !ok {
		return iot.ErrNotFound
	}
	delete(s.sensors, id)
	return nil
}

func (s *memSensors) DeleteByOwner(_ context.Context, owner string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, sn := range s.sensors {
		if sn.Owner == owner {
			delete(s.sensors, id)
			n++
		}
	}
	return n, nil
}

func (s *memSensors) CountByLocation(_ context.Context, locationID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, sn := range s.sensors {
		if sn.LocationID == locationID {
			n++
		}
	}
	return n, nil
}

type memMeasurements memIOT

func (s *memMeasurements) Create(_ context.Context, m *iot.Measurement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ID == "" {
		m.ID = ids.New()
	}
	cp := *m
	s.measurements[m.SensorID] = append(s.measurements[m.SensorID], &cp)
	return nil
}

func (s *memMeasurements) ListBySensor(_ context.Context, sensorID string) ([]*iot.Measurement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.measurements[sensorID]
	out := make([]*iot.Measurement, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		cp := *all[i]
		out = append(out, &cp)
	}
	return out, nil
}

func (s *memMeasurements) DeleteBySensor(_ context.Context, sensorID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.measurements[sensorID])
	delete(s.measurements, sensorID)
	return n, nil
}

func sortLocations(ls []*iot.Location) {
	sort.Slice(ls, func(i, j int) bool { return ls[i].ID < ls[j].ID })
}

func sortSensors(ss []*iot.Sensor) {
	sort.Slice(ss, func(i, j int) bool { return ss[i].ID < ss[j].ID })
}

// testServer wires the full handler chain over in-memory stores.
type testServer struct {
	*httptest.Server
	authSvc *auth.Service
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	issuer, err := auth.NewIssuer([]byte("test-secret"), time.Hour)
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	accounts := newMemAccounts()
	authSvc := auth.NewService(accounts, issuer, auth.NewBlacklist())
	iotSvc := iot.NewService(newMemIOT(), accounts, authSvc)
	api := New(authSvc, iotSvc, ReadyProbe{}, Options{
		Version:        "test",
		RateLimitRPS:   1000,
		RateLimitBurst: 1000,
	})
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, authSvc: authSvc}
}

// do issues a JSON request and decodes the response body into out when the
// pointer is non-nil.
func (ts *testServer) do(t *testing.T, method, path, token string, body, out any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, ts.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s response: %v", method, path, err)
		}
	}
	return resp
}

// register creates an account and returns a fresh token for it.
func (ts *testServer) register(t *testing.T, username, password, role string) string {
	t.Helper()
	resp := ts.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": username,
		"password": password,
		"role":     role,
	}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register %s: status %d", username, resp.StatusCode)
	}
	var tok struct {
		Token string `json:"token"`
	}
	resp = ts.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": username,
		"password": password,
	}, &tok)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login %s: status %d", username, resp.StatusCode)
	}
	return tok.Token
}
