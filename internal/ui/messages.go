// Package ui provides the Bubble Tea TUI for tracklens.
package ui

import (
	"time"

	"github.com/abelbrown/tracklens/internal/recommend"
	"github.com/abelbrown/tracklens/internal/reconfig"
	"github.com/abelbrown/tracklens/internal/service"
)

// TracksLoaded is sent when the user's tracks have been fetched.
type TracksLoaded struct {
	Tracks []service.Track
	Err    error
	Dur    time.Duration
}

// RecomputeDone carries the service response for one recompute ticket.
type RecomputeDone struct {
	Ticket   reconfig.Ticket
	Response *service.ClusterResponse
	Err      error
	Dur      time.Duration
}

// RecsDone carries the result of one recommendation request.
type RecsDone struct {
	Request recommend.Request
	Items   []service.Recommendation
	Err     error
	Cached  bool // served from the local cache
	Dur     time.Duration
}

// SnapshotRecorded is sent after an applied snapshot was written to history.
type SnapshotRecorded struct {
	Generation uint64
	ID         int64
	Err        error
}

// FrameTick advances rotation and point transitions.
type FrameTick struct {
	Time time.Time
}
