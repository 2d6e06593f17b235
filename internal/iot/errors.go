package iot

import "errors"

var (
	ErrNotFound       = errors.New("iot: not found")
	ErrInvalidInput   = errors.New("iot: invalid input")
	ErrConflict       = errors.New("iot: conflict")
	ErrLocationInUse  = errors.New("iot: location still has sensors assigned")
	ErrInvalidAPIKey  = errors.New("iot: unknown api key")
	ErrSensorInactive = errors.New("iot: sensor is inactive")
)
