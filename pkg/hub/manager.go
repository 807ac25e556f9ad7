// Package hub owns the life cycle of the push-channel connection to the
// fleet hub: establish, authenticate, auto-reconnect, teardown. Exactly one
// live connection exists per session.
package hub

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/aegisfleet/console/pkg/fleet"
	"github.com/aegisfleet/console/pkg/identity"
	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const stateSubscriberBuffer = 4

// Manager maintains the websocket connection to the fleet hub. It is
// constructed once per session and handed by reference to consumers, with
// an explicit Start/Stop life cycle.
type Manager struct {
	url               string
	tokens            identity.TokenSource
	router            *Router
	maxReconnectDelay time.Duration

	dialer *websocket.Dialer

	mu          sync.Mutex
	conn        *websocket.Conn
	state       fleet.ConnectionState
	inflight    bool
	cancel      context.CancelFunc
	stateSubs   map[int64]chan fleet.ConnectionState
	nextSubID   int64
	reconnected []func()

	// session increments on every Stop so a handshake still in flight at
	// teardown can tell its session is over and discard the connection.
	session uint64
}

func NewManager(url string, tokens identity.TokenSource, router *Router, maxReconnectDelay time.Duration) *Manager {
	return &Manager{
		url:               url,
		tokens:            tokens,
		router:            router,
		maxReconnectDelay: maxReconnectDelay,
		dialer:            websocket.DefaultDialer,
		state:             fleet.ConnectionStateDisconnected,
		stateSubs:         map[int64]chan fleet.ConnectionState{},
	}
}

// State returns the current connection state. Read-only to everything
// outside the manager.
func (m *Manager) State() fleet.ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.state
}

// SubscribeState returns a channel of state transitions and its cancel
// function, for the connection chrome.
func (m *Manager) SubscribeState() (<-chan fleet.ConnectionState, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextSubID
	m.nextSubID++

	channel := make(chan fleet.ConnectionState, stateSubscriberBuffer)
	m.stateSubs[id] = channel

	return channel, func() {
		m.mu.Lock()
		defer m.mu.Unlock()

		if existing, ok := m.stateSubs[id]; ok {
			delete(m.stateSubs, id)
			close(existing)
		}
	}
}

// OnReconnected registers a hook fired after every successful automatic
// reconnect, once the connection is live again. Register before Start.
func (m *Manager) OnReconnected(hook func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.reconnected = append(m.reconnected, hook)
}

// Start performs the initial handshake. It is idempotent: a second call
// while a connection is pending or active returns immediately, the
// in-flight guard makes duplicate connections impossible. A failed initial
// handshake is returned to the caller and not retried, only established
// connections that later drop are retried automatically.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.inflight {
		m.mu.Unlock()
		return nil
	}
	m.inflight = true
	session := m.session
	m.setStateLocked(fleet.ConnectionStateConnecting)
	m.mu.Unlock()

	conn, err := m.dial(ctx)

	m.mu.Lock()
	if m.session != session {
		// Stopped while the handshake was in flight. Stop already reset
		// the guard and the state, discard the late connection.
		m.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return nil
	}
	if err != nil {
		m.inflight = false
		m.setStateLocked(fleet.ConnectionStateDisconnected)
		m.mu.Unlock()

		log.Error().Err(err).Str("url", m.url).Msg("Push channel handshake failed")
		return err
	}

	runContext, cancel := context.WithCancel(ctx)

	m.conn = conn
	m.cancel = cancel
	m.setStateLocked(fleet.ConnectionStateConnected)
	m.mu.Unlock()

	log.Info().Str("url", m.url).Msg("Push channel connected")

	go m.readLoop(runContext)

	return nil
}

// Stop tears the connection down and clears the in-flight guard so a later
// Start can re-establish. Safe to call at any point, including before Start
// ever completed.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.session++

	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
	}

	m.inflight = false
	m.setStateLocked(fleet.ConnectionStateDisconnected)
}

func (m *Manager) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}

	// The token is requested fresh on every attempt so an expired
	// credential never gets baked into the reconnect loop.
	if m.tokens != nil {
		token, err := m.tokens.Token(ctx)
		if err != nil {
			return nil, err
		}
		header.Set("Authorization", "Bearer "+token)
	}

	conn, response, err := m.dialer.DialContext(ctx, m.url, header)
	if response != nil && response.Body != nil {
		response.Body.Close()
	}
	if err != nil {
		return nil, err
	}

	return conn, nil
}

func (m *Manager) readLoop(ctx context.Context) {
	for {
		m.mu.Lock()
		conn := m.conn
		m.mu.Unlock()

		if conn == nil || ctx.Err() != nil {
			return
		}

		_, raw, err := conn.ReadMessage()
		if err == nil {
			m.router.Dispatch(raw)
			continue
		}

		if ctx.Err() != nil {
			return
		}

		log.Warn().Err(err).Msg("Push channel dropped, reconnecting")

		if !m.reconnect(ctx) {
			return
		}
	}
}

// reconnect re-dials with exponential backoff until it succeeds or the
// manager is stopped. Returns false when the session is over.
func (m *Manager) reconnect(ctx context.Context) bool {
	m.mu.Lock()
	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
	}
	m.setStateLocked(fleet.ConnectionStateReconnecting)
	m.mu.Unlock()

	retryBackoff := backoff.NewExponentialBackOff()
	retryBackoff.MaxInterval = m.maxReconnectDelay
	retryBackoff.MaxElapsedTime = 0

	for {
		conn, err := m.dial(ctx)
		if err == nil {
			m.mu.Lock()
			if ctx.Err() != nil {
				m.mu.Unlock()
				conn.Close()
				return false
			}
			m.conn = conn
			m.setStateLocked(fleet.ConnectionStateConnected)
			hooks := make([]func(), len(m.reconnected))
			copy(hooks, m.reconnected)
			m.mu.Unlock()

			log.Info().Str("url", m.url).Msg("Push channel reconnected")

			for _, hook := range hooks {
				go hook()
			}

			return true
		}

		if ctx.Err() != nil {
			return false
		}

		delay := retryBackoff.NextBackOff()
		log.Debug().Err(err).Dur("retry", delay).Msg("Reconnect attempt failed")

		select {
		case <-ctx.Done():
			return false
		case <-time.After(delay):
		}
	}
}

func (m *Manager) setStateLocked(state fleet.ConnectionState) {
	if m.state == state {
		return
	}

	m.state = state

	for _, subscriber := range m.stateSubs {
		select {
		case subscriber <- state:
		default:
		}
	}
}
