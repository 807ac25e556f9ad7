// Package api is the operator-facing surface of the console: a REST view of
// the live fleet plus a websocket stream of rendered frames, toasts and
// alerts.
package api

import (
	"time"

	"github.com/aegisfleet/console/pkg/alerts"
	"github.com/aegisfleet/console/pkg/api/routes"
	"github.com/aegisfleet/console/pkg/hub"
	"github.com/aegisfleet/console/pkg/render"
	"github.com/aegisfleet/console/pkg/store"
	"github.com/gofiber/fiber/v2"
)

type Server struct {
	app      *fiber.App
	streamer *Streamer
}

// NewServer assembles the fiber app. Everything the handlers touch is
// read-only except the alert dismiss action and the planned-route overlay.
func NewServer(vehicles *store.VehicleStore, alertManager *alerts.Manager, composer *render.Composer, manager *hub.Manager, frameInterval time.Duration) *Server {
	streamer := NewStreamer(composer, alertManager, manager, frameInterval)

	webApp := fiber.New(fiber.Config{DisableStartupMessage: true})
	webApp.Use(NewLogger())

	group := webApp.Group("/console")

	group.Get("/status", routes.Status(vehicles, manager))
	routes.VehiclesRouter(group.Group("/vehicles"), vehicles)
	routes.AlertsRouter(group.Group("/alerts"), alertManager)
	routes.RouteOverlayRouter(group.Group("/route"), composer)

	streamer.Register(group)

	return &Server{app: webApp, streamer: streamer}
}

// Listen starts the frame streamer and serves until Shutdown.
func (s *Server) Listen(listen string) error {
	go s.streamer.Run()

	return s.app.Listen(listen)
}

func (s *Server) Shutdown() error {
	s.streamer.Close()

	return s.app.ShutdownWithTimeout(5 * time.Second)
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Streamer exposes the websocket stream for out-of-band broadcasts.
func (s *Server) Streamer() *Streamer {
	return s.streamer
}
