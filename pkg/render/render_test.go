package render

import (
	"testing"
	"time"

	"github.com/aegisfleet/console/pkg/fleet"
	"github.com/aegisfleet/console/pkg/motion"
	"github.com/aegisfleet/console/pkg/store"
)

var (
	frameTime = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	cairo     = fleet.Point{Latitude: 30.0444, Longitude: 31.2357}
)

func newComposer(state fleet.ConnectionState) (*Composer, *store.VehicleStore) {
	vehicles := store.NewVehicleStore(90 * time.Second)
	tracker := motion.NewTracker(2 * time.Second)
	composer := NewComposer(vehicles, tracker, func() fleet.ConnectionState { return state }, cairo)

	return composer, vehicles
}

func positioned(vehicleID int64, plate string, lat float64, lon float64) fleet.VehicleLiveState {
	return fleet.VehicleLiveState{
		VehicleID:   vehicleID,
		PlateNumber: plate,
		Status:      fleet.VehicleStatusActive,
		LiveLocation: &fleet.LiveLocation{
			Latitude:      lat,
			Longitude:     lon,
			SpeedKmh:      50,
			LastUpdateUTC: frameTime,
		},
	}
}

func TestEmptyFrameFallsBackToDefaultCenter(t *testing.T) {
	composer, _ := newComposer(fleet.ConnectionStateConnecting)

	frame := composer.Frame(frameTime)

	if len(frame.Markers) != 0 {
		t.Errorf("expected no markers, got %d", len(frame.Markers))
	}
	if frame.Center != cairo {
		t.Errorf("expected fallback center %+v, got %+v", cairo, frame.Center)
	}
	if frame.StatusLine != "Connecting..." {
		t.Errorf("unexpected status line %q", frame.StatusLine)
	}
}

func TestStatusLineCountsAllVehiclesWhenConnected(t *testing.T) {
	composer, vehicles := newComposer(fleet.ConnectionStateConnected)
	vehicles.Seed([]fleet.VehicleLiveState{
		positioned(1, "ABC-123", 30.05, 31.23),
		{VehicleID: 2, PlateNumber: "XYZ-789", Status: fleet.VehicleStatusOffline},
	})

	frame := composer.Frame(frameTime)

	// The unpositioned vehicle still counts, it just does not render.
	if frame.StatusLine != "Tracking 2 Vehicles" {
		t.Errorf("unexpected status line %q", frame.StatusLine)
	}
	if len(frame.Markers) != 1 {
		t.Errorf("expected only positioned vehicles as markers, got %d", len(frame.Markers))
	}
}

func TestRecenterFollowsFirstPositionedVehicle(t *testing.T) {
	composer, vehicles := newComposer(fleet.ConnectionStateConnected)
	vehicles.Seed([]fleet.VehicleLiveState{
		{VehicleID: 3, PlateNumber: "NOP-000", Status: fleet.VehicleStatusOffline},
		positioned(7, "ABC-123", 30.05, 31.23),
		positioned(9, "XYZ-789", 29.90, 31.10),
	})

	frame := composer.Frame(frameTime)

	expected := fleet.Point{Latitude: 30.05, Longitude: 31.23}
	if frame.Center != expected {
		t.Errorf("expected center on vehicle 7 at %+v, got %+v", expected, frame.Center)
	}
	if len(frame.Markers) != 2 {
		t.Fatalf("expected 2 markers, got %d", len(frame.Markers))
	}
	if frame.Markers[0].VehicleID != 7 || frame.Markers[1].VehicleID != 9 {
		t.Errorf("expected markers sorted by vehicle id, got %d then %d",
			frame.Markers[0].VehicleID, frame.Markers[1].VehicleID)
	}
}

func TestMarkerCarriesPopupFields(t *testing.T) {
	composer, vehicles := newComposer(fleet.ConnectionStateConnected)
	vehicles.Seed([]fleet.VehicleLiveState{positioned(1, "ABC-123", 30.05, 31.23)})

	frame := composer.Frame(frameTime)

	if len(frame.Markers) != 1 {
		t.Fatalf("expected 1 marker, got %d", len(frame.Markers))
	}
	marker := frame.Markers[0]
	if marker.PlateNumber != "ABC-123" {
		t.Errorf("unexpected plate %q", marker.PlateNumber)
	}
	if marker.Status != fleet.VehicleStatusActive {
		t.Errorf("unexpected status %q", marker.Status)
	}
	if marker.SpeedKmh != 50 {
		t.Errorf("unexpected speed %v", marker.SpeedKmh)
	}
}

func TestRouteOverlayFlipsCoordinateOrder(t *testing.T) {
	composer, _ := newComposer(fleet.ConnectionStateConnected)
	composer.SetRoute(fleet.PlannedRoute{
		Type: "LineString",
		Coordinates: [][]float64{
			{31.2357, 30.0444},
			{31.2400, 30.0500},
			{31.25},
		},
	})

	frame := composer.Frame(frameTime)

	expected := []fleet.Point{
		{Latitude: 30.0444, Longitude: 31.2357},
		{Latitude: 30.0500, Longitude: 31.2400},
	}
	if len(frame.Route) != len(expected) {
		t.Fatalf("expected %d route points, got %d", len(expected), len(frame.Route))
	}
	for i, point := range expected {
		if frame.Route[i] != point {
			t.Errorf("route point %d: expected %+v, got %+v", i, point, frame.Route[i])
		}
	}

	composer.ClearRoute()
	if cleared := composer.Frame(frameTime); cleared.Route != nil {
		t.Error("expected no route after clearing the overlay")
	}
}
