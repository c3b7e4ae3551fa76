package otel

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

func decodeLines(t *testing.T, data []byte) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("invalid JSON %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestEmitWritesJSONL(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf)
	l.Emit(Event{
		Kind:       KindRecsStart,
		Level:      LevelInfo,
		Comp:       "recommend",
		RequestID:  "r-1",
		Generation: 3,
		Cluster:    ClusterID(0),
	})
	l.Close()

	lines := decodeLines(t, buf.Bytes())
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	ev := lines[0]
	if ev["kind"] != "recs.start" || ev["level"] != "info" || ev["comp"] != "recommend" {
		t.Errorf("event = %v", ev)
	}
	if ev["rid"] != "r-1" || ev["gen"] != float64(3) {
		t.Errorf("correlation fields = %v", ev)
	}
	if ev["cluster"] != float64(0) {
		t.Errorf("cluster 0 must be written, got %v", ev["cluster"])
	}
}

func TestEmitStampsTimeAndSession(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf)
	before := time.Now()
	l.Emit(Event{Kind: KindStartup})
	l.Emit(Event{Kind: KindShutdown})
	l.Close()

	var first, second Event
	parts := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	if err := json.Unmarshal(parts[0], &first); err != nil {
		t.Fatal(err)
	}
	json.Unmarshal(parts[1], &second)

	if first.Time.Before(before) {
		t.Errorf("time %v before %v", first.Time, before)
	}
	if _, err := uuid.Parse(first.SessionID); err != nil {
		t.Errorf("session id %q is not a uuid", first.SessionID)
	}
	if first.SessionID != second.SessionID {
		t.Error("session id changed within a run")
	}
}

func TestDurationAndOmitempty(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf)
	l.Emit(Event{Kind: KindRecomputeApply, Dur: 1500 * time.Millisecond})
	l.Emit(Event{Kind: KindStartup})
	l.Close()

	lines := decodeLines(t, buf.Bytes())
	if lines[0]["dur_ms"] != float64(1500) {
		t.Errorf("dur_ms = %v, want 1500", lines[0]["dur_ms"])
	}
	for _, field := range []string{"dur_ms", "count", "err", "msg", "extra", "rid", "seq", "gen", "cluster"} {
		if _, ok := lines[1][field]; ok {
			t.Errorf("field %q should be omitted: %v", field, lines[1])
		}
	}
}

func TestConvenienceHelpers(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf)
	l.Info(KindStartup, "main", "starting")
	l.Warn(KindRecomputeStale, "reconfig", "dropped")
	l.Error(KindRecsError, "recommend", errors.New("503"))
	l.Close()

	lines := decodeLines(t, buf.Bytes())
	want := []struct{ level, kind string }{
		{"info", "sys.startup"},
		{"warn", "recompute.stale"},
		{"error", "recs.error"},
	}
	for i, w := range want {
		if lines[i]["level"] != w.level || lines[i]["kind"] != w.kind {
			t.Errorf("line %d = %v, want %s %s", i, lines[i], w.level, w.kind)
		}
	}
	if lines[2]["err"] != "503" {
		t.Errorf("err = %v", lines[2]["err"])
	}
}

func TestConcurrentEmit(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf)
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Emit(Event{Kind: KindKeyPress, Comp: "ui"})
		}()
	}
	wg.Wait()
	l.Close()

	if n := len(decodeLines(t, buf.Bytes())); n != 100 {
		t.Errorf("expected 100 lines, got %d", n)
	}
}

func TestEmitAfterCloseIsDropped(t *testing.T) {
	l := NewNullLogger()
	l.Close()
	l.Emit(Event{Kind: KindStartup})
	if l.Dropped() != 1 {
		t.Errorf("Dropped = %d, want 1", l.Dropped())
	}
	l.Close()
}

type blockingWriter struct {
	started chan struct{}
	block   chan struct{}
	once    sync.Once
}

func (w *blockingWriter) Write(p []byte) (int, error) {
	w.once.Do(func() {
		close(w.started)
		<-w.block
	})
	return len(p), nil
}

func TestFullQueueDrops(t *testing.T) {
	bw := &blockingWriter{started: make(chan struct{}), block: make(chan struct{})}
	l := NewLogger(bw)
	l.Emit(Event{Kind: KindRecsStart})
	<-bw.started

	for i := 0; i < writerChanSize+10; i++ {
		l.Emit(Event{Kind: KindRecsStart})
	}
	if l.Dropped() == 0 {
		t.Error("expected drops when the queue is full")
	}
	close(bw.block)
	l.Close()
}

func TestOpenAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "events.jsonl")
	for i := 0; i < 2; i++ {
		l, err := Open(path)
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		l.Info(KindStartup, "main", "run")
		l.Close()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if n := len(decodeLines(t, data)); n != 2 {
		t.Errorf("expected 2 lines across runs, got %d", n)
	}
}
