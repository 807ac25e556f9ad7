package fleet

import (
	"time"
)

type VehicleStatus string

const (
	VehicleStatusActive      VehicleStatus = "Active"
	VehicleStatusMaintenance VehicleStatus = "Maintenance"
	VehicleStatusOffline     VehicleStatus = "Offline"
	VehicleStatusInAccident  VehicleStatus = "InAccident"
)

// KnownStatus reports whether s is one of the enumerated vehicle statuses.
func KnownStatus(s VehicleStatus) bool {
	switch s {
	case VehicleStatusActive, VehicleStatusMaintenance, VehicleStatusOffline, VehicleStatusInAccident:
		return true
	}
	return false
}

// LiveLocation is the most recent position report for a vehicle. It is
// replaced wholesale on every update, never merged field by field.
type LiveLocation struct {
	Latitude      float64   `json:"latitude" groups:"basic,detail"`
	Longitude     float64   `json:"longitude" groups:"basic,detail"`
	SpeedKmh      float64   `json:"speedKmh" groups:"basic,detail"`
	LastUpdateUTC time.Time `json:"lastUpdateUtc" groups:"basic,detail"`
}

// VehicleLiveState is the latest known state of one tracked vehicle.
// A vehicle appears on first snapshot or first telemetry event referencing
// its id and is never removed for the lifetime of the session.
type VehicleLiveState struct {
	VehicleID    int64         `json:"vehicleId" groups:"basic,detail"`
	PlateNumber  string        `json:"plateNumber" groups:"basic,detail"`
	Status       VehicleStatus `json:"status" groups:"basic,detail"`
	LiveLocation *LiveLocation `json:"liveLocation,omitempty" groups:"basic,detail"`

	// Stale is derived at read time against the configured freshness
	// threshold, it is never stored.
	Stale bool `json:"stale" groups:"detail"`
}

// TelemetryUpdate is the flat wire event received from the push channel.
// It is consumed immediately to replace a VehicleLiveState and not retained.
type TelemetryUpdate struct {
	VehicleID   int64     `json:"vehicleId"`
	PlateNumber string    `json:"plateNumber"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	SpeedKmh    float64   `json:"speedKmh"`
	EventType   string    `json:"eventType"`
	Timestamp   time.Time `json:"timestamp"`
}

type AlertSeverity string

const (
	AlertSeverityCritical AlertSeverity = "Critical"
	AlertSeverityHigh     AlertSeverity = "High"
)

// AlertNotification is a driver-safety event. Critical and high alerts share
// the same wire shape and differ only in severity and presentation.
type AlertNotification struct {
	EventID        string        `json:"eventId" groups:"basic,detail"`
	PlateNumber    string        `json:"plateNumber" groups:"basic,detail"`
	DriverState    string        `json:"driverState" groups:"basic,detail"`
	AlertLevel     string        `json:"alertLevel" groups:"basic,detail"`
	Message        string        `json:"message" groups:"basic,detail"`
	MapLink        string        `json:"mapLink" groups:"detail"`
	SpeedKmh       float64       `json:"speedKmh" groups:"basic,detail"`
	Timestamp      time.Time     `json:"timestamp" groups:"basic,detail"`
	DriverImageURL string        `json:"driverImageUrl,omitempty" groups:"detail"`
	Severity       AlertSeverity `json:"severity" groups:"basic,detail"`
}

type ConnectionState string

const (
	ConnectionStateDisconnected ConnectionState = "Disconnected"
	ConnectionStateConnecting   ConnectionState = "Connecting"
	ConnectionStateConnected    ConnectionState = "Connected"
	ConnectionStateReconnecting ConnectionState = "Reconnecting"
)

// PlannedRoute is a navigation path supplied by the trip planner, rendered
// as a static overlay. Coordinates arrive in [longitude, latitude] order.
type PlannedRoute struct {
	Type        string      `json:"type"`
	Coordinates [][]float64 `json:"coordinates"`
}

// PagedResult mirrors the fleet API list envelope used by the snapshot
// endpoint.
type PagedResult[T any] struct {
	Items      []T `json:"items"`
	TotalItems int `json:"totalItems"`
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	TotalPages int `json:"totalPages"`
}
