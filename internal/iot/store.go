package iot

import "context"

// LocationStore persists locations.
type LocationStore interface {
	// Create persists a new location. Returns ErrConflict if the owner
	// already has a location with the same name.
	Create(ctx context.Context, loc *Location) error
	Find(ctx context.Context, id string) (*Location, error)
	ListByOwner(ctx context.Context, owner string) ([]*Location, error)
	ListAll(ctx context.Context) ([]*Location, error)
	Update(ctx context.Context, loc *Location) error
	Delete(ctx context.Context, id string) error
	// DeleteByOwner removes every location owned by owner and returns the
	// number removed.
	DeleteByOwner(ctx context.Context, owner string) (int, error)
}

// SensorStore persists sensors.
type SensorStore interface {
	Create(ctx context.Context, sensor *Sensor) error
	Find(ctx context.Context, id string) (*Sensor, error)
	FindByAPIKey(ctx context.Context, apiKey string) (*Sensor, error)
	ListByOwner(ctx context.Context, owner string) ([]*Sensor, error)
	ListAll(ctx context.Context) ([]*Sensor, error)
	Update(ctx context.Context, sensor *Sensor) error
	Delete(ctx context.Context, id string) error
	DeleteByOwner(ctx context.Context, owner string) (int, error)
	// CountByLocation returns how many sensors reference the location.
	CountByLocation(ctx context.Context, locationID string) (int, error)
}

// MeasurementStore persists measurements.
type MeasurementStore interface {
	Create(ctx context.Context, m *Measurement) error
	// ListBySensor returns measurements newest first.
	ListBySensor(ctx context.Context, sensorID string) ([]*Measurement, error)
	// DeleteBySensor removes all measurements for a sensor and returns the
	// number removed.
	DeleteBySensor(ctx context.Context, sensorID string) (int, error)
}

// Store bundles the three domain stores.
type Store interface {
	Locations() LocationStore
	Sensors() SensorStore
	Measurements() MeasurementStore
}
