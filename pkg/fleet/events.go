package fleet

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Push channel message types. Anything else is dropped at the boundary.
const (
	MessageTypeTelemetryUpdate = "telemetry-update"
	MessageTypeCriticalAlert   = "critical-alert"
	MessageTypeHighAlert       = "high-alert"
)

var ErrUnknownMessageType = errors.New("unknown message type")

type channelEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// ChannelMessage is the tagged union of everything the push channel can
// carry. Exactly one payload field is set, matching Type.
type ChannelMessage struct {
	Type      string
	Telemetry *TelemetryUpdate
	Alert     *AlertNotification
}

// DecodeChannelMessage validates a raw push-channel frame into a typed
// message. Unknown types return ErrUnknownMessageType so callers can drop
// them quietly; malformed payloads return a decode error.
func DecodeChannelMessage(raw []byte) (ChannelMessage, error) {
	var envelope channelEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return ChannelMessage{}, fmt.Errorf("decode envelope: %w", err)
	}

	message := ChannelMessage{Type: envelope.Type}

	switch envelope.Type {
	case MessageTypeTelemetryUpdate:
		var update TelemetryUpdate
		if err := json.Unmarshal(envelope.Data, &update); err != nil {
			return ChannelMessage{}, fmt.Errorf("decode telemetry update: %w", err)
		}
		if update.VehicleID == 0 {
			return ChannelMessage{}, errors.New("telemetry update missing vehicle id")
		}
		message.Telemetry = &update
	case MessageTypeCriticalAlert, MessageTypeHighAlert:
		var alert AlertNotification
		if err := json.Unmarshal(envelope.Data, &alert); err != nil {
			return ChannelMessage{}, fmt.Errorf("decode alert: %w", err)
		}
		if alert.EventID == "" {
			return ChannelMessage{}, errors.New("alert missing event id")
		}
		if envelope.Type == MessageTypeCriticalAlert {
			alert.Severity = AlertSeverityCritical
		} else {
			alert.Severity = AlertSeverityHigh
		}
		message.Alert = &alert
	default:
		return ChannelMessage{}, fmt.Errorf("%w: %q", ErrUnknownMessageType, envelope.Type)
	}

	return message, nil
}
