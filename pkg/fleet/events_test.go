package fleet

import (
	"errors"
	"testing"
)

func TestDecodeTelemetryUpdate(t *testing.T) {
	raw := []byte(`{
		"type": "telemetry-update",
		"data": {
			"vehicleId": 12,
			"plateNumber": "ABC-123",
			"latitude": 30.0444,
			"longitude": 31.2357,
			"speedKmh": 55,
			"eventType": "TelemetryUpdate",
			"timestamp": "2026-08-01T12:00:00Z"
		}
	}`)

	message, err := DecodeChannelMessage(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if message.Type != MessageTypeTelemetryUpdate {
		t.Errorf("unexpected type %q", message.Type)
	}
	if message.Telemetry == nil {
		t.Fatal("expected telemetry payload")
	}
	if message.Alert != nil {
		t.Error("expected alert payload to be nil")
	}
	if message.Telemetry.VehicleID != 12 || message.Telemetry.SpeedKmh != 55 {
		t.Errorf("unexpected payload %+v", message.Telemetry)
	}
}

func TestDecodeAlertSeverityFollowsType(t *testing.T) {
	tests := []struct {
		messageType string
		severity    AlertSeverity
	}{
		{messageType: MessageTypeCriticalAlert, severity: AlertSeverityCritical},
		{messageType: MessageTypeHighAlert, severity: AlertSeverityHigh},
	}

	for _, tt := range tests {
		t.Run(tt.messageType, func(t *testing.T) {
			raw := []byte(`{
				"type": "` + tt.messageType + `",
				"data": {
					"eventId": "evt-9",
					"plateNumber": "ABC-123",
					"driverState": "Drowsiness",
					"message": "Driver drowsiness detected",
					"severity": "Bogus"
				}
			}`)

			message, err := DecodeChannelMessage(raw)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if message.Alert == nil {
				t.Fatal("expected alert payload")
			}
			// The envelope type is authoritative over whatever the payload
			// claims.
			if message.Alert.Severity != tt.severity {
				t.Errorf("expected severity %q, got %q", tt.severity, message.Alert.Severity)
			}
		})
	}
}

func TestDecodeRejectsBadFrames(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		unknown bool
	}{
		{name: "unknown type", raw: `{"type": "driver-chat", "data": {}}`, unknown: true},
		{name: "empty type", raw: `{"data": {}}`, unknown: true},
		{name: "invalid json", raw: `{"type": "telemetry-update", "data"`},
		{name: "telemetry payload wrong shape", raw: `{"type": "telemetry-update", "data": {"vehicleId": "twelve"}}`},
		{name: "telemetry missing vehicle id", raw: `{"type": "telemetry-update", "data": {"speedKmh": 10}}`},
		{name: "alert missing event id", raw: `{"type": "critical-alert", "data": {"message": "x"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeChannelMessage([]byte(tt.raw))
			if err == nil {
				t.Fatal("expected an error")
			}
			if tt.unknown != errors.Is(err, ErrUnknownMessageType) {
				t.Errorf("unexpected error class: %v", err)
			}
		})
	}
}
