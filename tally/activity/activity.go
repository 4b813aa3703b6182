package activity

import (
	"fmt"
	"time"
)

// Well-known category tags reported by the activity API.
// Categories are open-ended; any other string is carried through as-is.
const (
	CategoryRun         = "Run"
	CategoryRide        = "Ride"
	CategoryVirtualRide = "VirtualRide"
)

// Activity is one recorded workout session.
// Fields are unexported so a decoded activity cannot be changed afterwards.
type Activity struct {
	name     string
	distance float64
	elapsed  int64
	category string
	start    time.Time
	trainer  bool
}

// New builds an Activity, enforcing distance >= 0 and elapsed >= 0.
// The start time is normalised to UTC.
func New(name string, distance float64, elapsedSeconds int64, category string, start time.Time, trainer bool) (Activity, error) {
	if distance < 0 {
		return Activity{}, fmt.Errorf("distance must be non-negative, got %v", distance)
	}
	if elapsedSeconds < 0 {
		return Activity{}, fmt.Errorf("elapsed time must be non-negative, got %d", elapsedSeconds)
	}
	if start.IsZero() {
		return Activity{}, fmt.Errorf("start time is required")
	}
	return Activity{
		name:     name,
		distance: distance,
		elapsed:  elapsedSeconds,
		category: category,
		start:    start.UTC().Round(0),
		trainer:  trainer,
	}, nil
}

// Name returns the display label.
func (a Activity) Name() string { return a.name }

// Distance returns the self-reported distance in meters.
func (a Activity) Distance() float64 { return a.distance }

// ElapsedTime returns the elapsed time in seconds.
func (a Activity) ElapsedTime() int64 { return a.elapsed }

// Category returns the workout type tag, e.g. "Run".
func (a Activity) Category() string { return a.category }

// StartTime returns the UTC start instant.
func (a Activity) StartTime() time.Time { return a.start }

// EndTime returns StartTime plus the elapsed seconds.
func (a Activity) EndTime() time.Time {
	return a.start.Add(time.Duration(a.elapsed) * time.Second)
}

// IsTrainerSession reports whether the session was recorded indoors on a trainer.
func (a Activity) IsTrainerSession() bool { return a.trainer }

// Equal reports whether both activities carry the same field values.
func (a Activity) Equal(b Activity) bool {
	return a.name == b.name &&
		a.distance == b.distance &&
		a.elapsed == b.elapsed &&
		a.category == b.category &&
		a.start.Equal(b.start) &&
		a.trainer == b.trainer
}

func (a Activity) String() string {
	return fmt.Sprintf("%s %q %.1fm %s+%ds", a.category, a.name, a.distance, a.start.Format(time.RFC3339), a.elapsed)
}
