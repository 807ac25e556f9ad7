// Package render composes the live map view: interpolated markers, the
// optional planned-route overlay and the viewport center. Composition is
// pure read-side work, the composer never mutates the store.
package render

import (
	"fmt"
	"sync"
	"time"

	"github.com/aegisfleet/console/pkg/fleet"
	"github.com/aegisfleet/console/pkg/motion"
	"github.com/aegisfleet/console/pkg/store"
	"golang.org/x/exp/slices"
)

// MarkerView is everything the map needs to draw one vehicle: interpolated
// position and heading plus the popup fields.
type MarkerView struct {
	VehicleID   int64               `json:"vehicleId"`
	PlateNumber string              `json:"plateNumber"`
	Status      fleet.VehicleStatus `json:"status"`
	SpeedKmh    float64             `json:"speedKmh"`
	Stale       bool                `json:"stale"`
	Position    fleet.Point         `json:"position"`
	Heading     float64             `json:"heading"`
}

// Frame is one rendered view of the fleet, broadcast to operator clients.
// Zoom is owned by the viewing client, recentering must not change it.
type Frame struct {
	Markers    []MarkerView          `json:"markers"`
	Route      []fleet.Point         `json:"route,omitempty"`
	Center     fleet.Point           `json:"center"`
	Connection fleet.ConnectionState `json:"connection"`
	StatusLine string                `json:"statusLine"`
	Timestamp  time.Time             `json:"timestamp"`
}

// Composer builds frames from the vehicle store and the motion tracker.
type Composer struct {
	store   *store.VehicleStore
	tracker *motion.Tracker
	state   func() fleet.ConnectionState

	fallbackCenter fleet.Point

	mu    sync.RWMutex
	route *fleet.PlannedRoute
}

func NewComposer(vehicles *store.VehicleStore, tracker *motion.Tracker, state func() fleet.ConnectionState, fallbackCenter fleet.Point) *Composer {
	return &Composer{
		store:          vehicles,
		tracker:        tracker,
		state:          state,
		fallbackCenter: fallbackCenter,
	}
}

// SetRoute installs the planned-route overlay. The coordinates arrive in
// [longitude, latitude] order from the trip planner and are flipped to
// [latitude, longitude] at composition time.
func (c *Composer) SetRoute(route fleet.PlannedRoute) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.route = &route
}

func (c *Composer) ClearRoute() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.route = nil
}

// Frame composes the current view. Vehicles without a known position are
// not rendered. The viewport recenters on the active vehicle, the first
// positioned vehicle by ascending id, and falls back to the configured
// default center when nothing is positioned.
func (c *Composer) Frame(now time.Time) Frame {
	states := c.store.All()
	slices.SortFunc(states, func(a, b fleet.VehicleLiveState) int {
		switch {
		case a.VehicleID < b.VehicleID:
			return -1
		case a.VehicleID > b.VehicleID:
			return 1
		}
		return 0
	})

	frame := Frame{
		Center:     c.fallbackCenter,
		Connection: c.state(),
		StatusLine: "Connecting...",
		Timestamp:  now,
	}

	centered := false
	for _, state := range states {
		if state.LiveLocation == nil {
			continue
		}

		reported := fleet.Point{Latitude: state.LiveLocation.Latitude, Longitude: state.LiveLocation.Longitude}
		c.tracker.Observe(state.VehicleID, reported, now)

		marker, ok := c.tracker.Marker(state.VehicleID, now)
		if !ok {
			continue
		}

		frame.Markers = append(frame.Markers, MarkerView{
			VehicleID:   state.VehicleID,
			PlateNumber: state.PlateNumber,
			Status:      state.Status,
			SpeedKmh:    state.LiveLocation.SpeedKmh,
			Stale:       state.Stale,
			Position:    marker.Position,
			Heading:     marker.Heading,
		})

		if !centered {
			frame.Center = marker.Position
			centered = true
		}
	}

	if frame.Connection == fleet.ConnectionStateConnected {
		frame.StatusLine = fmt.Sprintf("Tracking %d Vehicles", len(states))
	}

	c.mu.RLock()
	route := c.route
	c.mu.RUnlock()

	if route != nil {
		for _, pair := range route.Coordinates {
			if len(pair) < 2 {
				continue
			}
			// Trip planner order is [lon, lat].
			frame.Route = append(frame.Route, fleet.Point{Latitude: pair[1], Longitude: pair[0]})
		}
	}

	return frame
}
