// Package motion turns discrete position samples into continuous marker
// movement. The math is pure so it can be tested without any rendering
// surface: given a previous point, a target and an elapsed time it yields
// the current point and heading.
package motion

import (
	"sync"
	"time"

	"github.com/aegisfleet/console/pkg/fleet"
)

// Tween animates one marker from a previous rendered position towards its
// most recent target over a fixed duration.
type Tween struct {
	From     fleet.Point
	To       fleet.Point
	Start    time.Time
	Duration time.Duration

	// Heading in degrees, retained across retargets when the displacement
	// is below the jitter epsilon.
	Heading float64
}

// NewTween places a marker directly at its first known position. There is
// no ease-in from anywhere, the first sample renders where it is.
func NewTween(point fleet.Point, now time.Time, duration time.Duration) *Tween {
	return &Tween{
		From:     point,
		To:       point,
		Start:    now,
		Duration: duration,
	}
}

// At returns the interpolated position at the given instant, clamped to the
// target once the animation has completed.
func (t *Tween) At(now time.Time) fleet.Point {
	if t.Duration <= 0 {
		return t.To
	}

	progress := float64(now.Sub(t.Start)) / float64(t.Duration)

	return fleet.Lerp(t.From, t.To, progress)
}

// Retarget points an in-flight animation at a new target. The new starting
// point is the marker's current interpolated position, not the stale old
// target, so the displayed position stays continuous. The heading is only
// recomputed when the move is large enough to not be GPS noise.
func (t *Tween) Retarget(target fleet.Point, now time.Time) {
	current := t.At(now)

	if fleet.SignificantMove(current, target) {
		t.Heading = fleet.Heading(current, target)
	}

	t.From = current
	t.To = target
	t.Start = now
}

// Marker is an interpolated marker sample handed to the renderer.
type Marker struct {
	VehicleID int64       `json:"vehicleId"`
	Position  fleet.Point `json:"position"`
	Heading   float64     `json:"heading"`
}

// Tracker keeps one tween per vehicle id.
type Tracker struct {
	mu       sync.Mutex
	tweens   map[int64]*Tween
	duration time.Duration
}

func NewTracker(duration time.Duration) *Tracker {
	return &Tracker{
		tweens:   map[int64]*Tween{},
		duration: duration,
	}
}

// Observe feeds a new reported position for a vehicle. The first position
// for an id creates its tween in place, later positions retarget it.
func (tr *Tracker) Observe(vehicleID int64, point fleet.Point, now time.Time) {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	tween, ok := tr.tweens[vehicleID]
	if !ok {
		tr.tweens[vehicleID] = NewTween(point, now, tr.duration)
		return
	}

	if tween.To == point {
		return
	}

	tween.Retarget(point, now)
}

// Marker returns the interpolated marker for one vehicle.
func (tr *Tracker) Marker(vehicleID int64, now time.Time) (Marker, bool) {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	tween, ok := tr.tweens[vehicleID]
	if !ok {
		return Marker{}, false
	}

	return Marker{VehicleID: vehicleID, Position: tween.At(now), Heading: tween.Heading}, true
}

// Markers returns interpolated markers for every tracked vehicle.
func (tr *Tracker) Markers(now time.Time) []Marker {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	markers := make([]Marker, 0, len(tr.tweens))
	for vehicleID, tween := range tr.tweens {
		markers = append(markers, Marker{
			VehicleID: vehicleID,
			Position:  tween.At(now),
			Heading:   tween.Heading,
		})
	}

	return markers
}
