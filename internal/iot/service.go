package iot

import (
	"context"
	"errors"
	"strings"
	"time"

	"sensorium.org/internal/auth"
)

// Service implements the tenant-facing and admin operations over locations,
// sensors and measurements. Every operation takes the authenticated
// principal and applies the role/ownership policy before touching the
// store; device ingestion is the one exception, authenticated by API key.
type Service struct {
	store    Store
	accounts auth.AccountStore
	guard    *auth.Service
	now      func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs a Service.
func NewService(store Store, accounts auth.AccountStore, guard *auth.Service, opts ...ServiceOption) *Service {
	svc := &Service{
		store:    store,
		accounts: accounts,
		guard:    guard,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Locations ----------------------------------------------------------------

// CreateLocation registers a location owned by the principal. Names are
// unique per owner.
func (s *Service) CreateLocation(ctx context.Context, p auth.Principal, name, description string) (*Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidInput
	}
	loc := &Location{
		Name:        name,
		Description: description,
		Owner:       p.Username,
	}
	if err := s.store.Locations().Create(ctx, loc); err != nil {
		return nil, err
	}
	return s.store.Locations().Find(ctx, loc.ID)
}

// ListLocations returns the principal's own locations. Listing is
// owner-scoped unconditionally; the global view is an admin operation.
func (s *Service) ListLocations(ctx context.Context, p auth.Principal) ([]*Location, error) {
	return s.store.Locations().ListByOwner(ctx, p.Username)
}

// GetLocation fetches a location the principal owns (or any, for admins).
func (s *Service) GetLocation(ctx context.Context, p auth.Principal, id string) (*Location, error) {
	loc, err := s.store.Locations().Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.guard.Authorize(p, loc.Owner, false); err != nil {
		return nil, err
	}
	return loc, nil
}

// UpdateLocation renames a location or changes its description. Nil fields
// are left unchanged.
func (s *Service) UpdateLocation(ctx context.Context, p auth.Principal, id string, name, description *string) (*Location, error) {
	loc, err := s.store.Locations().Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.guard.Authorize(p, loc.Owner, false); err != nil {
		return nil, err
	}
	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" {
			return nil, ErrInvalidInput
		}
		loc.Name = trimmed
	}
	if description != nil {
		loc.Description = *description
	}
	if err := s.store.Locations().Update(ctx, loc); err != nil {
		return nil, err
	}
	return s.store.Locations().Find(ctx, id)
}

// DeleteLocation removes a location. Deletion is refused while sensors are
// still assigned to it.
func (s *Service) DeleteLocation(ctx context.Context, p auth.Principal, id string) error {
	loc, err := s.store.Locations().Find(ctx, id)
	if err != nil {
		return err
	}
	if err := s.guard.Authorize(p, loc.Owner, false); err != nil {
		return err
	}
	count, err := s.store.Sensors().CountByLocation(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrLocationInUse
	}
	return s.store.Locations().Delete(ctx, id)
}

// Sensors ------------------------------------------------------------------

// CreateSensor registers a sensor owned by the principal and mints its API
// key. Sensors may only be assigned to the caller's own locations — this
// holds for admins too.
func (s *Service) CreateSensor(ctx context.Context, p auth.Principal, name, sensorType, locationID string) (*Sensor, error) {
	name = strings.TrimSpace(name)
	sensorType = strings.TrimSpace(sensorType)
	if name == "" || sensorType == "" {
		return nil, ErrInvalidInput
	}
	if locationID != "" {
		if err := s.checkLocationAssignable(ctx, p, locationID); err != nil {
			return nil, err
		}
	}
	apiKey, err := NewAPIKey()
	if err != nil {
		return nil, err
	}
	sensor := &Sensor{
		Name:       name,
		Type:       sensorType,
		LocationID: locationID,
		Owner:      p.Username,
		APIKey:     apiKey,
		IsActive:   true,
	}
	if err := s.store.Sensors().Create(ctx, sensor); err != nil {
		return nil, err
	}
	return s.store.Sensors().Find(ctx, sensor.ID)
}

// ListSensors returns the principal's own sensors. locationFilter narrows
// the result: "" means all, "none" means unattached sensors only, any other
// value matches a location id.
func (s *Service) ListSensors(ctx context.Context, p auth.Principal, locationFilter string) ([]*Sensor, error) {
	sensors, err := s.store.Sensors().ListByOwner(ctx, p.Username)
	if err != nil {
		return nil, err
	}
	if locationFilter == "" {
		return sensors, nil
	}
	filtered := sensors[:0]
	for _, sensor := range sensors {
		switch {
		case locationFilter == "none" && sensor.LocationID == "":
			filtered = append(filtered, sensor)
		case sensor.LocationID == locationFilter:
			filtered = append(filtered, sensor)
		}
	}
	return filtered, nil
}

// GetSensor fetches a sensor the principal owns (or any, for admins).
func (s *Service) GetSensor(ctx context.Context, p auth.Principal, id string) (*Sensor, error) {
	sensor, err := s.store.Sensors().Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.guard.Authorize(p, sensor.Owner, false); err != nil {
		return nil, err
	}
	return sensor, nil
}

// UpdateSensor applies a partial update to a sensor.
func (s *Service) UpdateSensor(ctx context.Context, p auth.Principal, id string, update SensorUpdate) (*Sensor, error) {
	sensor, err := s.store.Sensors().Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.guard.Authorize(p, sensor.Owner, false); err != nil {
		return nil, err
	}
	if update.Name != nil {
		trimmed := strings.TrimSpace(*update.Name)
		if trimmed == "" {
			return nil, ErrInvalidInput
		}
		sensor.Name = trimmed
	}
	if update.Type != nil {
		trimmed := strings.TrimSpace(*update.Type)
		if trimmed == "" {
			return nil, ErrInvalidInput
		}
		sensor.Type = trimmed
	}
	if update.LocationID != nil {
		if *update.LocationID != "" {
			if err := s.checkLocationAssignable(ctx, p, *update.LocationID); err != nil {
				return nil, err
			}
		}
		sensor.LocationID = *update.LocationID
	}
	if update.IsActive != nil {
		sensor.IsActive = *update.IsActive
	}
	if err := s.store.Sensors().Update(ctx, sensor); err != nil {
		return nil, err
	}
	return s.store.Sensors().Find(ctx, id)
}

// DeleteSensor removes a sensor and all of its measurements.
func (s *Service) DeleteSensor(ctx context.Context, p auth.Principal, id string) error {
	sensor, err := s.store.Sensors().Find(ctx, id)
	if err != nil {
		return err
	}
	if err := s.guard.Authorize(p, sensor.Owner, false); err != nil {
		return err
	}
	if _, err := s.store.Measurements().DeleteBySensor(ctx, id); err != nil {
		return err
	}
	return s.store.Sensors().Delete(ctx, id)
}

// SensorMeasurements lists a sensor's measurements, newest first.
func (s *Service) SensorMeasurements(ctx context.Context, p auth.Principal, id string) ([]*Measurement, error) {
	sensor, err := s.store.Sensors().Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.guard.Authorize(p, sensor.Owner, false); err != nil {
		return nil, err
	}
	return s.store.Measurements().ListBySensor(ctx, sensor.ID)
}

func (s *Service) checkLocationAssignable(ctx context.Context, p auth.Principal, locationID string) error {
	loc, err := s.store.Locations().Find(ctx, locationID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrInvalidInput
		}
		return err
	}
	if loc.Owner != p.Username {
		return auth.ErrForbidden
	}
	return nil
}

// Ingestion ----------------------------------------------------------------

// Ingest records a measurement pushed by a device identified by its API
// key. This is a separate, simpler authentication channel than the token
// machinery: a static key equality lookup.
func (s *Service) Ingest(ctx context.Context, apiKey string, value float64, unit string) (*Measurement, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrInvalidAPIKey
	}
	sensor, err := s.store.Sensors().FindByAPIKey(ctx, apiKey)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidAPIKey
		}
		return nil, err
	}
	if !sensor.IsActive {
		return nil, ErrSensorInactive
	}
	m := &Measurement{
		SensorID:  sensor.ID,
		Value:     value,
		Unit:      unit,
		Timestamp: s.now().UTC(),
	}
	if err := s.store.Measurements().Create(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// Admin --------------------------------------------------------------------

// ListAccounts returns every registered account. Admin only.
func (s *Service) ListAccounts(ctx context.Context, p auth.Principal) ([]*auth.Account, error) {
	if err := s.guard.Authorize(p, "", true); err != nil {
		return nil, err
	}
	return s.accounts.List(ctx)
}

// AllSensors returns every sensor across tenants. Admin only.
func (s *Service) AllSensors(ctx context.Context, p auth.Principal) ([]*Sensor, error) {
	if err := s.guard.Authorize(p, "", true); err != nil {
		return nil, err
	}
	return s.store.Sensors().ListAll(ctx)
}

// AllLocations returns every location across tenants. Admin only.
func (s *Service) AllLocations(ctx context.Context, p auth.Principal) ([]*Location, error) {
	if err := s.guard.Authorize(p, "", true); err != nil {
		return nil, err
	}
	return s.store.Locations().ListAll(ctx)
}

// SensorsOf returns another user's sensors. Admin only.
func (s *Service) SensorsOf(ctx context.Context, p auth.Principal, username string) ([]*Sensor, error) {
	if err := s.guard.Authorize(p, "", true); err != nil {
		return nil, err
	}
	return s.store.Sensors().ListByOwner(ctx, username)
}

// LocationsOf returns another user's locations. Admin only.
func (s *Service) LocationsOf(ctx context.Context, p auth.Principal, username string) ([]*Location, error) {
	if err := s.guard.Authorize(p, "", true); err != nil {
		return nil, err
	}
	return s.store.Locations().ListByOwner(ctx, username)
}

// DeleteUser removes an account and everything it owns: measurements of its
// sensors first, then sensors, then locations, then the account itself.
// Admins cannot delete themselves through this path.
func (s *Service) DeleteUser(ctx context.Context, p auth.Principal, username string) (*DeletedUserData, error) {
	if err := s.guard.Authorize(p, "", true); err != nil {
		return nil, err
	}
	if username == p.Username {
		return nil, ErrInvalidInput
	}
	if _, err := s.accounts.Find(ctx, username); err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	sensors, err := s.store.Sensors().ListByOwner(ctx, username)
	if err != nil {
		return nil, err
	}
	deleted := &DeletedUserData{Username: username}
	for _, sensor := range sensors {
		n, err := s.store.Measurements().DeleteBySensor(ctx, sensor.ID)
		if err != nil {
			return nil, err
		}
		deleted.Measurements += n
	}
	if deleted.Sensors, err = s.store.Sensors().DeleteByOwner(ctx, username); err != nil {
		return nil, err
	}
	if deleted.Locations, err = s.store.Locations().DeleteByOwner(ctx, username); err != nil {
		return nil, err
	}
	if err := s.accounts.Delete(ctx, username); err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return deleted, nil
}

// AdminDeleteSensor removes any sensor and its measurements. Admin only.
func (s *Service) AdminDeleteSensor(ctx context.Context, p auth.Principal, id string) error {
	if err := s.guard.Authorize(p, "", true); err != nil {
		return err
	}
	if _, err := s.store.Sensors().Find(ctx, id); err != nil {
		return err
	}
	if _, err := s.store.Measurements().DeleteBySensor(ctx, id); err != nil {
		return err
	}
	return s.store.Sensors().Delete(ctx, id)
}

// TransferSensor moves a sensor to another user. The sensor is detached
// from its location and gets a fresh API key so the previous owner's
// devices stop authenticating as it. Admin only.
func (s *Service) TransferSensor(ctx context.Context, p auth.Principal, id, newOwner string) (*Sensor, error) {
	if err := s.guard.Authorize(p, "", true); err != nil {
		return nil, err
	}
	newOwner = strings.TrimSpace(newOwner)
	if newOwner == "" {
		return nil, ErrInvalidInput
	}
	sensor, err := s.store.Sensors().Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.accounts.Find(ctx, newOwner); err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if sensor.Owner == newOwner {
		return nil, ErrInvalidInput
	}
	apiKey, err := NewAPIKey()
	if err != nil {
		return nil, err
	}
	sensor.Owner = newOwner
	sensor.LocationID = ""
	sensor.APIKey = apiKey
	if err := s.store.Sensors().Update(ctx, sensor); err != nil {
		return nil, err
	}
	return s.store.Sensors().Find(ctx, id)
}
