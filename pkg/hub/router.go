package hub

import (
	"errors"
	"sync"

	"github.com/aegisfleet/console/pkg/fleet"
	"github.com/rs/zerolog/log"
)

// Handler consumes one decoded push-channel message.
type Handler func(fleet.ChannelMessage)

// Router demultiplexes inbound channel frames by message type. Handlers are
// bound with On and must be unbound symmetrically (Off or Reset) on
// teardown so a reconnect cycle cannot leave duplicates behind.
type Router struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewRouter() *Router {
	return &Router{handlers: map[string]Handler{}}
}

func (r *Router) On(messageType string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.handlers[messageType] = handler
}

func (r *Router) Off(messageType string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.handlers, messageType)
}

// Reset unbinds every handler.
func (r *Router) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.handlers = map[string]Handler{}
}

// Dispatch decodes a raw frame and routes it to its handler. One bad
// payload must never take down the live view, so unknown types are dropped
// quietly and malformed ones only logged.
func (r *Router) Dispatch(raw []byte) {
	message, err := fleet.DecodeChannelMessage(raw)
	if err != nil {
		if errors.Is(err, fleet.ErrUnknownMessageType) {
			log.Debug().Err(err).Msg("Ignoring unrecognised channel message")
		} else {
			log.Warn().Err(err).Msg("Dropping malformed channel message")
		}
		return
	}

	r.mu.RLock()
	handler := r.handlers[message.Type]
	r.mu.RUnlock()

	if handler == nil {
		return
	}

	handler(message)
}
