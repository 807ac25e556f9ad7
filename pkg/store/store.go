// Package store holds the single authoritative mapping from vehicle id to
// latest known live state. The hub read loop and the snapshot loader are
// the only writers, everything else reads copies.
package store

import (
	"sync"
	"time"

	"github.com/aegisfleet/console/pkg/fleet"
	"github.com/jinzhu/copier"
	"github.com/rs/zerolog/log"
)

type VehicleStore struct {
	mu       sync.RWMutex
	vehicles map[int64]fleet.VehicleLiveState

	staleAfter time.Duration
	now        func() time.Time
}

func NewVehicleStore(staleAfter time.Duration) *VehicleStore {
	return &VehicleStore{
		vehicles:   map[int64]fleet.VehicleLiveState{},
		staleAfter: staleAfter,
		now:        time.Now,
	}
}

// Seed merges a snapshot batch into the store, overwriting any existing
// entry for each id. Used after the initial fetch and after reconnects.
func (s *VehicleStore) Seed(states []fleet.VehicleLiveState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, record := range states {
		var state fleet.VehicleLiveState
		if err := copier.Copy(&state, &record); err != nil {
			log.Error().Err(err).Int64("vehicle", record.VehicleID).Msg("Failed to copy snapshot record")
			continue
		}
		if !fleet.KnownStatus(state.Status) {
			state.Status = fleet.VehicleStatusOffline
		}
		s.vehicles[state.VehicleID] = state
	}
}

// Upsert replaces the entry for the update's vehicle with a freshly built
// state. The location is overwritten wholesale, never field-merged.
//
// Status policy: the channel carries no status field, so telemetry promotes
// a vehicle to Active only from Offline or unknown. Maintenance and
// InAccident stick until the next snapshot says otherwise.
//
// Ordering guard: an update whose timestamp is strictly older than the
// stored location is dropped, so a reordering transport cannot roll a
// marker backwards.
func (s *VehicleStore) Upsert(update fleet.TelemetryUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()

	previous, seen := s.vehicles[update.VehicleID]

	if seen && previous.LiveLocation != nil && update.Timestamp.Before(previous.LiveLocation.LastUpdateUTC) {
		log.Debug().
			Int64("vehicle", update.VehicleID).
			Time("stored", previous.LiveLocation.LastUpdateUTC).
			Time("received", update.Timestamp).
			Msg("Dropping out-of-order telemetry update")
		return
	}

	status := fleet.VehicleStatusActive
	if seen && previous.Status != fleet.VehicleStatusOffline && fleet.KnownStatus(previous.Status) {
		status = previous.Status
	}

	s.vehicles[update.VehicleID] = fleet.VehicleLiveState{
		VehicleID:   update.VehicleID,
		PlateNumber: update.PlateNumber,
		Status:      status,
		LiveLocation: &fleet.LiveLocation{
			Latitude:      update.Latitude,
			Longitude:     update.Longitude,
			SpeedKmh:      update.SpeedKmh,
			LastUpdateUTC: update.Timestamp,
		},
	}
}

// Get returns a copy of the state for one vehicle.
func (s *VehicleStore) Get(vehicleID int64) (fleet.VehicleLiveState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.vehicles[vehicleID]
	if !ok {
		return fleet.VehicleLiveState{}, false
	}

	return s.withDerived(state), true
}

// All returns copies of every known vehicle state.
func (s *VehicleStore) All() []fleet.VehicleLiveState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	states := make([]fleet.VehicleLiveState, 0, len(s.vehicles))
	for _, state := range s.vehicles {
		states = append(states, s.withDerived(state))
	}

	return states
}

func (s *VehicleStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.vehicles)
}

func (s *VehicleStore) withDerived(state fleet.VehicleLiveState) fleet.VehicleLiveState {
	if state.LiveLocation != nil {
		location := *state.LiveLocation
		state.LiveLocation = &location

		if s.staleAfter > 0 && s.now().Sub(location.LastUpdateUTC) > s.staleAfter {
			state.Stale = true
		}
	}

	return state
}
