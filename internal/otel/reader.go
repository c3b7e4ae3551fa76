package otel

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// Filter selects events from a JSONL log. Zero fields match everything.
type Filter struct {
	KindPrefix string
	MinLevel   Level
	Comp       string
	RequestID  string
	Cluster    *int
}

// Match reports whether e passes the filter.
func (f Filter) Match(e Event) bool {
	if f.KindPrefix != "" && !strings.HasPrefix(string(e.Kind), f.KindPrefix) {
		return false
	}
	if f.MinLevel != "" && e.Level.Rank() < f.MinLevel.Rank() {
		return false
	}
	if f.Comp != "" && e.Comp != f.Comp {
		return false
	}
	if f.RequestID != "" && e.RequestID != f.RequestID {
		return false
	}
	if f.Cluster != nil && (e.Cluster == nil || *e.Cluster != *f.Cluster) {
		return false
	}
	return true
}

// Line is one decoded log line with its raw bytes.
type Line struct {
	Event Event
	Raw   []byte
}

func decodeLine(raw []byte) (Event, bool) {
	raw = bytes.TrimRight(raw, "\r\n")
	if len(raw) == 0 {
		return Event{}, false
	}
	var e Event
	if json.Unmarshal(raw, &e) != nil {
		return Event{}, false
	}
	return e, true
}

// ReadTail returns the last n matching events of r, oldest first.
// Undecodable lines are skipped.
func ReadTail(r io.Reader, n int, f Filter) ([]Line, error) {
	if n <= 0 {
		return nil, nil
	}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	ring := make([]Line, 0, n)
	for sc.Scan() {
		e, ok := decodeLine(sc.Bytes())
		if !ok || !f.Match(e) {
			continue
		}
		line := Line{Event: e, Raw: bytes.Clone(sc.Bytes())}
		if len(ring) < n {
			ring = append(ring, line)
			continue
		}
		copy(ring, ring[1:])
		ring[n-1] = line
	}
	return ring, sc.Err()
}

// Follow calls fn for every matching event appended to r until ctx ends.
func Follow(ctx context.Context, r io.Reader, f Filter, poll time.Duration, fn func(Line)) error {
	br := bufio.NewReader(r)
	var pending []byte
	for {
		chunk, err := br.ReadBytes('\n')
		pending = append(pending, chunk...)
		if err == io.EOF {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(poll):
			}
			continue
		}
		if err != nil {
			return err
		}
		if e, ok := decodeLine(pending); ok && f.Match(e) {
			fn(Line{Event: e, Raw: bytes.TrimRight(pending, "\r\n")})
		}
		pending = nil
	}
}

// Format renders e as one human-readable line.
func Format(e Event) string {
	lvl := strings.ToUpper(string(e.Level))
	if lvl == "" {
		lvl = "?"
	}
	parts := []string{fmt.Sprintf("%s %-5s [%-9s] %-18s", e.Time.Format("15:04:05.000"), lvl, e.Comp, e.Kind)}
	if e.Msg != "" {
		parts = append(parts, "- "+e.Msg)
	}
	if e.Seq > 0 {
		parts = append(parts, fmt.Sprintf("seq=%d", e.Seq))
	}
	if e.Generation > 0 {
		parts = append(parts, fmt.Sprintf("gen=%d", e.Generation))
	}
	if e.Cluster != nil {
		parts = append(parts, fmt.Sprintf("cluster=%d", *e.Cluster))
	}
	if e.DurMs > 0 {
		parts = append(parts, fmt.Sprintf("(%.*fms)", durPrecision(e.DurMs), e.DurMs))
	}
	if e.Count > 0 {
		parts = append(parts, fmt.Sprintf("n=%d", e.Count))
	}
	if e.RequestID != "" {
		parts = append(parts, "rid="+shortID(e.RequestID))
	}
	if e.Err != "" {
		parts = append(parts, "err="+e.Err)
	}
	return strings.Join(parts, " ")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func durPrecision(ms float64) int {
	switch {
	case ms >= 100:
		return 0
	case ms >= 1:
		return 1
	}
	return 2
}
