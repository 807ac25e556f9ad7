package api

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/aegisfleet/console/pkg/alerts"
	"github.com/aegisfleet/console/pkg/fleet"
	"github.com/aegisfleet/console/pkg/hub"
	"github.com/aegisfleet/console/pkg/render"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog/log"
)

const clientSendBuffer = 32

// Streamer pushes rendered frames and notifications to connected operator
// browsers. Outbound messages reuse the envelope shape of the upstream
// channel: {"type": ..., "data": ...}.
type Streamer struct {
	composer      *render.Composer
	alerts        *alerts.Manager
	hub           *hub.Manager
	frameInterval time.Duration

	mu      sync.Mutex
	clients map[*websocket.Conn]chan []byte

	done      chan struct{}
	closeOnce sync.Once
}

func NewStreamer(composer *render.Composer, alertManager *alerts.Manager, manager *hub.Manager, frameInterval time.Duration) *Streamer {
	return &Streamer{
		composer:      composer,
		alerts:        alertManager,
		hub:           manager,
		frameInterval: frameInterval,
		clients:       map[*websocket.Conn]chan []byte{},
		done:          make(chan struct{}),
	}
}

// Register mounts the websocket endpoint on the console group.
func (s *Streamer) Register(router fiber.Router) {
	router.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	router.Get("/ws", websocket.New(s.handleClient))
}

// Run drives the frame ticker and relays toasts and connection-state
// changes until Close.
func (s *Streamer) Run() {
	toasts, cancelToasts := s.alerts.Subscribe()
	defer cancelToasts()

	states, cancelStates := s.hub.SubscribeState()
	defer cancelStates()

	ticker := time.NewTicker(s.frameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case now := <-ticker.C:
			s.broadcast("frame", s.composer.Frame(now))
		case toast, ok := <-toasts:
			if !ok {
				return
			}
			s.broadcast("toast", toast)
		case state, ok := <-states:
			if !ok {
				return
			}
			s.broadcast("status", fiber.Map{"connection": state})
		}
	}
}

// BroadcastCriticalAlert pushes the modal trigger to every client the
// moment a critical alert lands, without waiting for the next frame.
func (s *Streamer) BroadcastCriticalAlert(alert fleet.AlertNotification) {
	s.broadcast("critical-alert", alert)
}

func (s *Streamer) Close() {
	s.closeOnce.Do(func() {
		close(s.done)

		s.mu.Lock()
		defer s.mu.Unlock()

		for conn, send := range s.clients {
			delete(s.clients, conn)
			close(send)
			conn.Close()
		}
	})
}

func (s *Streamer) handleClient(conn *websocket.Conn) {
	send := make(chan []byte, clientSendBuffer)

	s.mu.Lock()
	s.clients[conn] = send
	s.mu.Unlock()

	log.Debug().Msg("Console client connected")

	go func() {
		for payload := range send {
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		}
	}()

	// Greet the client with an immediate frame so the map paints without
	// waiting for the first tick.
	if payload, err := encodeEnvelope("frame", s.composer.Frame(time.Now())); err == nil {
		s.sendTo(conn, payload)
	}

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	s.remove(conn)

	log.Debug().Msg("Console client disconnected")
}

func (s *Streamer) remove(conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if send, ok := s.clients[conn]; ok {
		delete(s.clients, conn)
		close(send)
	}

	conn.Close()
}

func (s *Streamer) broadcast(messageType string, data any) {
	payload, err := encodeEnvelope(messageType, data)
	if err != nil {
		log.Error().Err(err).Str("type", messageType).Msg("Failed to encode stream message")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for conn, send := range s.clients {
		s.enqueueLocked(conn, send, payload)
	}
}

// sendTo queues one payload for a single client with the same slow-client
// policy as broadcast.
func (s *Streamer) sendTo(conn *websocket.Conn, payload []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if send, ok := s.clients[conn]; ok {
		s.enqueueLocked(conn, send, payload)
	}
}

func (s *Streamer) enqueueLocked(conn *websocket.Conn, send chan []byte, payload []byte) {
	select {
	case send <- payload:
	default:
		// Slow client, drop it rather than stall the stream.
		delete(s.clients, conn)
		close(send)
		conn.Close()
	}
}

func encodeEnvelope(messageType string, data any) ([]byte, error) {
	return json.Marshal(struct {
		Type string `json:"type"`
		Data any    `json:"data"`
	}{Type: messageType, Data: data})
}
