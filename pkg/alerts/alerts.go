// Package alerts routes severity-tagged safety events to their presentation
// surfaces: a single acknowledgeable critical slot plus a fire-and-forget
// toast stream.
package alerts

import (
	"sync"
	"time"

	"github.com/aegisfleet/console/pkg/fleet"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Toast is a transient operator notification. Persistent toasts stay on
// screen until dismissed client-side, transient ones time out there.
type Toast struct {
	ID         string    `json:"id"`
	Level      string    `json:"level"`
	Message    string    `json:"message"`
	Persistent bool      `json:"persistent"`
	Timestamp  time.Time `json:"timestamp"`
}

const (
	ToastLevelError   = "error"
	ToastLevelWarning = "warning"
	ToastLevelInfo    = "info"
)

const subscriberBuffer = 16

// Manager owns the active critical alert and fans toasts out to whoever is
// listening. Delivery is best effort, a subscriber that cannot keep up
// loses toasts rather than blocking the handler chain.
type Manager struct {
	mu          sync.Mutex
	active      *fleet.AlertNotification
	subscribers map[int64]chan Toast
	nextID      int64
}

func NewManager() *Manager {
	return &Manager{subscribers: map[int64]chan Toast{}}
}

// HandleCritical replaces the active critical slot, superseding any alert
// the operator has not yet dismissed, and emits a persistent backup toast
// in case the modal is missed.
func (m *Manager) HandleCritical(alert fleet.AlertNotification) {
	m.mu.Lock()
	m.active = &alert
	m.mu.Unlock()

	log.Warn().
		Str("event", alert.EventID).
		Str("plate", alert.PlateNumber).
		Str("state", alert.DriverState).
		Msg("Critical driver alert")

	m.publish(Toast{
		ID:         uuid.NewString(),
		Level:      ToastLevelError,
		Message:    "CRITICAL: " + alert.Message,
		Persistent: true,
		Timestamp:  alert.Timestamp,
	})
}

// HandleHigh emits a transient toast only. No modal, no retained state.
func (m *Manager) HandleHigh(alert fleet.AlertNotification) {
	log.Info().
		Str("event", alert.EventID).
		Str("plate", alert.PlateNumber).
		Msg("High driver alert")

	m.publish(Toast{
		ID:        uuid.NewString(),
		Level:     ToastLevelWarning,
		Message:   alert.Message,
		Timestamp: alert.Timestamp,
	})
}

// Notify emits an operational toast, e.g. a failed snapshot fetch.
func (m *Manager) Notify(level string, message string) {
	m.publish(Toast{
		ID:        uuid.NewString(),
		Level:     level,
		Message:   message,
		Timestamp: time.Now().UTC(),
	})
}

// Active returns a copy of the active critical alert, or nil when the slot
// is clear.
func (m *Manager) Active() *fleet.AlertNotification {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active == nil {
		return nil
	}

	alert := *m.active
	return &alert
}

// Dismiss clears the active critical slot. Local UI state only, the
// underlying incident is not acknowledged server-side.
func (m *Manager) Dismiss() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.active = nil
}

// Subscribe returns a toast channel and its cancel function.
func (m *Manager) Subscribe() (<-chan Toast, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++

	channel := make(chan Toast, subscriberBuffer)
	m.subscribers[id] = channel

	return channel, func() {
		m.mu.Lock()
		defer m.mu.Unlock()

		if existing, ok := m.subscribers[id]; ok {
			delete(m.subscribers, id)
			close(existing)
		}
	}
}

func (m *Manager) publish(toast Toast) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, subscriber := range m.subscribers {
		select {
		case subscriber <- toast:
		default:
		}
	}
}
