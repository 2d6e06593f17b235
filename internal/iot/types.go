package iot

import "time"

// Location groups sensors under a user-chosen name. Names are unique per
// owner, not globally.
type Location struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Owner       string    `json:"owner"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Sensor is a registered device. APIKey is the static credential the device
// presents on ingestion; it is minted at creation and re-minted on ownership
// transfer. An empty LocationID means the sensor is unattached.
type Sensor struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Type       string    `json:"type"`
	LocationID string    `json:"location_id,omitempty"`
	Owner      string    `json:"owner"`
	APIKey     string    `json:"api_key"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Measurement is one reading pushed by a device.
type Measurement struct {
	ID        string    `json:"id"`
	SensorID  string    `json:"sensor_id"`
	Value     float64   `json:"value"`
	Unit      string    `json:"unit,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// SensorUpdate carries the mutable sensor fields. Nil pointers leave the
// field unchanged; an explicit empty LocationID detaches the sensor.
type SensorUpdate struct {
	Name       *string
	Type       *string
	LocationID *string
	IsActive   *bool
}

// DeletedUserData reports what a cascading user deletion removed.
type DeletedUserData struct {
	Username     string `json:"user"`
	Sensors      int    `json:"sensors"`
	Locations    int    `json:"locations"`
	Measurements int    `json:"measurements"`
}
