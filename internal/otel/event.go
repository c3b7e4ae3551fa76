// Package otel records what the visualization did as JSONL events.
//
// Events are typed structs serialized one per line. The Logger writes them
// asynchronously through a buffered channel and a background drain
// goroutine. An optional RingBuffer keeps recent events in memory for the
// debug overlay.
package otel

import (
	"time"

	"github.com/goccy/go-json"
)

// Level defines event severity for filtering.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Rank orders levels for minimum-level filters. Unknown levels rank as debug.
func (l Level) Rank() int {
	switch l {
	case LevelInfo:
		return 1
	case LevelWarn:
		return 2
	case LevelError:
		return 3
	}
	return 0
}

// EventKind identifies the category of an event.
// Dot-delimited: "<subsystem>.<action>".
type EventKind string

const (
	// Initial track load
	KindTracksLoad  EventKind = "tracks.load"
	KindTracksError EventKind = "tracks.error"

	// Recompute round trips
	KindRecomputeStart EventKind = "recompute.start"
	KindRecomputeApply EventKind = "recompute.apply"
	KindRecomputeStale EventKind = "recompute.stale"
	KindRecomputeError EventKind = "recompute.error"

	// Recommendation fetches
	KindRecsStart    EventKind = "recs.start"
	KindRecsComplete EventKind = "recs.complete"
	KindRecsStale    EventKind = "recs.stale"
	KindRecsError    EventKind = "recs.error"
	KindRecsCacheHit EventKind = "recs.cache_hit"

	KindStoreError EventKind = "store.error"

	// UI events
	KindKeyPress   EventKind = "ui.key"
	KindAxisChange EventKind = "ui.axis"
	KindSelect     EventKind = "ui.select"

	// System events
	KindStartup  EventKind = "sys.startup"
	KindShutdown EventKind = "sys.shutdown"
	KindError    EventKind = "sys.error"

	// Message tracing, only with log.trace on
	KindMsgReceived EventKind = "trace.msg_received"
)

// Event is the universal observability record. Every field except Kind and
// Time is optional.
type Event struct {
	Time       time.Time      `json:"t"`
	Level      Level          `json:"level,omitempty"`
	Kind       EventKind      `json:"kind"`
	Comp       string         `json:"comp,omitempty"`       // "ui", "reconfig", "recommend", "main"
	SessionID  string         `json:"session_id,omitempty"` // one per run
	RequestID  string         `json:"rid,omitempty"`        // recommendation request correlation
	Seq        uint64         `json:"seq,omitempty"`        // recompute sequence number
	Generation uint64         `json:"gen,omitempty"`
	Cluster    *int           `json:"cluster,omitempty"`
	Dur        time.Duration  `json:"-"`
	DurMs      float64        `json:"dur_ms,omitempty"` // computed from Dur at marshal time
	Count      int            `json:"count,omitempty"`
	Err        string         `json:"err,omitempty"`
	Msg        string         `json:"msg,omitempty"`
	Extra      map[string]any `json:"extra,omitempty"`
}

// ClusterID returns a pointer for Event.Cluster.
func ClusterID(c int) *int { return &c }

// MarshalJSON converts Dur to DurMs.
func (e Event) MarshalJSON() ([]byte, error) {
	type Alias Event
	a := struct {
		Alias
	}{Alias: Alias(e)}
	if e.Dur > 0 {
		a.DurMs = float64(e.Dur) / float64(time.Millisecond)
	}
	return json.Marshal(a)
}
