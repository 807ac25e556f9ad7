package routes

import (
	"strconv"

	"github.com/aegisfleet/console/pkg/alerts"
	"github.com/aegisfleet/console/pkg/fleet"
	"github.com/aegisfleet/console/pkg/hub"
	"github.com/aegisfleet/console/pkg/render"
	"github.com/aegisfleet/console/pkg/store"
	"github.com/gofiber/fiber/v2"
	"github.com/liip/sheriff"
	"github.com/rs/zerolog/log"
)

// Status reports the connection state and tracked-vehicle count for the
// console chrome.
func Status(vehicles *store.VehicleStore, manager *hub.Manager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"connection": manager.State(),
			"vehicles":   vehicles.Len(),
		})
	}
}

func VehiclesRouter(router fiber.Router, vehicles *store.VehicleStore) {
	router.Get("/", listVehicles(vehicles))
	router.Get("/:id", getVehicle(vehicles))
}

func listVehicles(vehicles *store.VehicleStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		states := vehicles.All()

		marshalled, err := sheriff.Marshal(&sheriff.Options{Groups: []string{"basic"}}, states)
		if err != nil {
			log.Error().Err(err).Msg("Failed to marshal vehicle list")
			return c.SendStatus(fiber.StatusInternalServerError)
		}

		return c.JSON(marshalled)
	}
}

func getVehicle(vehicles *store.VehicleStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := strconv.ParseInt(c.Params("id"), 10, 64)
		if err != nil {
			c.SendStatus(fiber.StatusBadRequest)
			return c.JSON(fiber.Map{
				"error": "Vehicle id must be an integer",
			})
		}

		state, ok := vehicles.Get(id)
		if !ok {
			c.SendStatus(fiber.StatusNotFound)
			return c.JSON(fiber.Map{
				"error": "Could not find vehicle matching id",
			})
		}

		marshalled, err := sheriff.Marshal(&sheriff.Options{Groups: []string{"detail"}}, state)
		if err != nil {
			log.Error().Err(err).Msg("Failed to marshal vehicle")
			return c.SendStatus(fiber.StatusInternalServerError)
		}

		return c.JSON(marshalled)
	}
}

func AlertsRouter(router fiber.Router, manager *alerts.Manager) {
	router.Get("/active", getActiveAlert(manager))
	router.Post("/active/dismiss", dismissActiveAlert(manager))
}

func getActiveAlert(manager *alerts.Manager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		active := manager.Active()
		if active == nil {
			c.SendStatus(fiber.StatusNotFound)
			return c.JSON(fiber.Map{
				"error": "No active critical alert",
			})
		}

		marshalled, err := sheriff.Marshal(&sheriff.Options{Groups: []string{"detail"}}, active)
		if err != nil {
			log.Error().Err(err).Msg("Failed to marshal alert")
			return c.SendStatus(fiber.StatusInternalServerError)
		}

		return c.JSON(marshalled)
	}
}

func dismissActiveAlert(manager *alerts.Manager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		manager.Dismiss()

		return c.SendStatus(fiber.StatusNoContent)
	}
}

// RouteOverlayRouter lets the trip-planning collaborator install or clear
// the planned-route polyline.
func RouteOverlayRouter(router fiber.Router, composer *render.Composer) {
	router.Put("/", setRouteOverlay(composer))
	router.Delete("/", clearRouteOverlay(composer))
}

func setRouteOverlay(composer *render.Composer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var route fleet.PlannedRoute
		if err := c.BodyParser(&route); err != nil {
			c.SendStatus(fiber.StatusBadRequest)
			return c.JSON(fiber.Map{
				"error": "Route body must be a LineString of [lon, lat] pairs",
			})
		}

		composer.SetRoute(route)

		return c.SendStatus(fiber.StatusNoContent)
	}
}

func clearRouteOverlay(composer *render.Composer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		composer.ClearRoute()

		return c.SendStatus(fiber.StatusNoContent)
	}
}
