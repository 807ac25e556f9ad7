package monitor

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/aegisfleet/console/pkg/alerts"
	"github.com/aegisfleet/console/pkg/api"
	"github.com/aegisfleet/console/pkg/config"
	"github.com/aegisfleet/console/pkg/fleet"
	"github.com/aegisfleet/console/pkg/hub"
	"github.com/aegisfleet/console/pkg/identity"
	"github.com/aegisfleet/console/pkg/motion"
	"github.com/aegisfleet/console/pkg/notify"
	"github.com/aegisfleet/console/pkg/render"
	"github.com/aegisfleet/console/pkg/snapshot"
	"github.com/aegisfleet/console/pkg/store"
)

// Console is one fully wired monitoring session.
type Console struct {
	cfg *config.ConsoleConfig

	vehicles *store.VehicleStore
	alerts   *alerts.Manager
	tracker  *motion.Tracker
	composer *render.Composer
	router   *hub.Router
	hub      *hub.Manager
	loader   *snapshot.Loader
	server   *api.Server
	push     *notify.PushManager
}

func NewConsole(cfg *config.ConsoleConfig) (*Console, error) {
	tokens := tokenSource(cfg)

	vehicles := store.NewVehicleStore(cfg.StaleAfter())
	alertManager := alerts.NewManager()
	tracker := motion.NewTracker(cfg.AnimationDuration())
	router := hub.NewRouter()

	manager := hub.NewManager(
		cfg.Hub.URL,
		tokens,
		router,
		time.Duration(cfg.Hub.ReconnectMaxDelaySec)*time.Second,
	)

	composer := render.NewComposer(vehicles, tracker, manager.State, fleet.Point{
		Latitude:  cfg.Render.FallbackLatitude,
		Longitude: cfg.Render.FallbackLongitude,
	})

	loader := &snapshot.Loader{
		URL:         cfg.Snapshot.URL,
		PageSize:    cfg.Snapshot.PageSize,
		MaxAttempts: cfg.Snapshot.MaxAttempts,
		Timeout:     time.Duration(cfg.Snapshot.TimeoutSec) * time.Second,
		Tokens:      tokens,
		HTTPClient:  http.DefaultClient,
	}

	console := &Console{
		cfg:      cfg,
		vehicles: vehicles,
		alerts:   alertManager,
		tracker:  tracker,
		composer: composer,
		router:   router,
		hub:      manager,
		loader:   loader,
		server:   api.NewServer(vehicles, alertManager, composer, manager, cfg.FrameInterval()),
	}

	if cfg.Push.ServiceAccountKey != "" {
		push := &notify.PushManager{OperatorTokens: cfg.Push.OperatorTokens}
		if err := push.Setup(context.Background(), cfg.Push.ServiceAccountKey); err != nil {
			log.Error().Err(err).Msg("Failed to set up push notifications")
		} else {
			console.push = push
			log.Info().Int("operators", len(cfg.Push.OperatorTokens)).Msg("Push notifications enabled")
		}
	}

	console.bindHandlers()

	return console, nil
}

// Run seeds the store, opens the push channel and starts the operator API.
// Telemetry-layer failures are logged and degrade the view, they never
// abort the console.
func (c *Console) Run(ctx context.Context) {
	c.seed(ctx)

	c.hub.OnReconnected(func() {
		// Updates missed during the outage are never replayed by the
		// channel, a fresh snapshot closes the gap. The session context
		// bounds the fetch so teardown aborts a reseed in flight.
		log.Info().Msg("Reseeding fleet state after reconnect")
		c.seed(ctx)
	})

	if err := c.hub.Start(ctx); err != nil {
		log.Error().Err(err).Msg("Push channel unavailable, console will show stale data")
	}

	go func() {
		if err := c.server.Listen(c.cfg.Server.Listen); err != nil {
			log.Fatal().Err(err).Msg("Console web server failed")
		}
	}()

	log.Info().Str("listen", c.cfg.Server.Listen).Msg("Console started")
}

func (c *Console) Stop() {
	c.hub.Stop()
	c.router.Reset()

	if err := c.server.Shutdown(); err != nil {
		log.Error().Err(err).Msg("Console web server shutdown error")
	}
}

func (c *Console) bindHandlers() {
	c.router.On(fleet.MessageTypeTelemetryUpdate, func(message fleet.ChannelMessage) {
		c.vehicles.Upsert(*message.Telemetry)
	})

	c.router.On(fleet.MessageTypeCriticalAlert, func(message fleet.ChannelMessage) {
		alert := *message.Alert

		c.alerts.HandleCritical(alert)
		c.server.Streamer().BroadcastCriticalAlert(alert)

		if c.push != nil {
			go func() {
				if err := c.push.SendCriticalAlert(context.Background(), alert); err != nil {
					log.Error().Err(err).Str("event", alert.EventID).Msg("Push forwarding failed")
				}
			}()
		}
	})

	c.router.On(fleet.MessageTypeHighAlert, func(message fleet.ChannelMessage) {
		c.alerts.HandleHigh(*message.Alert)
	})
}

func (c *Console) seed(ctx context.Context) {
	states, err := c.loader.Fetch(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load fleet snapshot")
		c.alerts.Notify(alerts.ToastLevelWarning, "Failed to load fleet snapshot")
		return
	}

	c.vehicles.Seed(states)
}

func tokenSource(cfg *config.ConsoleConfig) identity.TokenSource {
	if cfg.Auth.StaticToken != "" {
		return &identity.StaticTokenSource{AccessToken: cfg.Auth.StaticToken}
	}

	return &identity.LoginTokenSource{
		Endpoint:    cfg.Auth.TokenEndpoint,
		Email:       cfg.Auth.Email,
		Password:    cfg.Auth.Password,
		RefreshSkew: time.Duration(cfg.Auth.RefreshSkewSecs) * time.Second,
	}
}
