package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/abelbrown/tracklens/internal/config"
	"github.com/abelbrown/tracklens/internal/otel"
	"github.com/abelbrown/tracklens/internal/reconfig"
	"github.com/abelbrown/tracklens/internal/service"
	"github.com/abelbrown/tracklens/internal/store"
)

type fakeService struct {
	mu       sync.Mutex
	tracks   []service.Track
	failSeed string // Recommend fails when this seed is present
	calls    int
}

func (f *fakeService) FetchUserTracks(ctx context.Context, token string) ([]service.Track, error) {
	return f.tracks, nil
}

func (f *fakeService) Cluster(ctx context.Context, req service.ClusterRequest) (*service.ClusterResponse, error) {
	resp := &service.ClusterResponse{FeaturesUsed: req.Features, Inertia: 1.5}
	for i, t := range req.Tracks {
		t.Cluster, t.Clustered = i%req.NClusters, true
		resp.ClusteredTracks = append(resp.ClusteredTracks, t)
	}
	for c := 0; c < req.NClusters; c++ {
		center := service.Center{Cluster: c, Features: map[string]float64{}}
		for _, name := range req.Features {
			center.Features[name] = 0.5
		}
		resp.ClusterCenters = append(resp.ClusterCenters, center)
	}
	return resp, nil
}

func (f *fakeService) Recommend(ctx context.Context, req service.RecommendRequest) ([]service.Recommendation, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	for _, s := range req.SeedTracks {
		if s == f.failSeed {
			return nil, &service.FetchError{Op: "recommend", Status: 500, Err: errors.New("boom")}
		}
	}
	return []service.Recommendation{{ID: "r-" + req.SeedTracks[0], Name: "Pick for " + req.SeedTracks[0]}}, nil
}

func fakeTracks(n int) []service.Track {
	out := make([]service.Track, n)
	for i := range out {
		out[i] = service.Track{
			ID:       fmt.Sprintf("t%d", i),
			Features: map[string]float64{"energy": float64(i) / 10, "valence": 0.3},
		}
	}
	return out
}

func TestRunRecs(t *testing.T) {
	cfg := config.Default()
	cfg.UI.SeedSize = 2
	svc := &fakeService{tracks: fakeTracks(9), failSeed: "t1"}
	cache, err := store.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer cache.Close()

	opts := &recsOptions{clusters: 3, features: []string{"energy", "valence"}, limit: 5}
	var out bytes.Buffer
	if err := runRecs(context.Background(), &out, cfg, svc, cache, opts); err != nil {
		t.Fatalf("runRecs: %v", err)
	}
	got := out.String()
	for _, want := range []string{
		"9 tracks in 3 clusters on energy, valence",
		"Cluster 0 (3 tracks)",
		"1. Pick for t0",
		"Cluster 1 (3 tracks)\n  error: recommend: status 500",
		"Cluster 2 (3 tracks)",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
	if svc.calls != 3 {
		t.Errorf("service calls = %d, want 3", svc.calls)
	}

	// Successful clusters are served from the cache on the next run.
	out.Reset()
	if err := runRecs(context.Background(), &out, cfg, svc, cache, opts); err != nil {
		t.Fatalf("second runRecs: %v", err)
	}
	if svc.calls != 4 {
		t.Errorf("service calls = %d, want 4 (only the failed cluster retried)", svc.calls)
	}
	if strings.Count(out.String(), "[cached]") != 2 {
		t.Errorf("want two cached clusters:\n%s", out.String())
	}
}

func TestRunRecsRejectsInvalidParams(t *testing.T) {
	cfg := config.Default()
	svc := &fakeService{tracks: fakeTracks(4)}
	opts := &recsOptions{clusters: 11, features: []string{"energy"}, limit: 5}
	err := runRecs(context.Background(), &bytes.Buffer{}, cfg, svc, nil, opts)
	if !errors.Is(err, reconfig.ErrInvalidParams) {
		t.Errorf("err = %v, want invalid params", err)
	}
	if svc.calls != 0 {
		t.Error("no recommendations should be requested")
	}
}

func TestEventsFilter(t *testing.T) {
	tests := []struct {
		name    string
		opts    eventsOptions
		wantErr bool
		check   func(otel.Filter) bool
	}{
		{"defaults", eventsOptions{cluster: -1}, false, func(f otel.Filter) bool { return f.Cluster == nil && f.MinLevel == "" }},
		{"cluster", eventsOptions{cluster: 2}, false, func(f otel.Filter) bool { return f.Cluster != nil && *f.Cluster == 2 }},
		{"level", eventsOptions{cluster: -1, level: "warn"}, false, func(f otel.Filter) bool { return f.MinLevel == otel.LevelWarn }},
		{"bad level", eventsOptions{cluster: -1, level: "loud"}, true, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := tt.opts.filter()
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil && !tt.check(f) {
				t.Errorf("filter = %+v", f)
			}
		})
	}
}

func TestPrintEvents(t *testing.T) {
	var log bytes.Buffer
	t0 := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	for _, e := range []otel.Event{
		{Time: t0, Level: otel.LevelInfo, Kind: otel.KindRecomputeStart, Comp: "reconfig", Seq: 1},
		{Time: t0, Level: otel.LevelError, Kind: otel.KindRecsError, Comp: "recommend", Cluster: otel.ClusterID(2), Err: "boom"},
		{Time: t0, Level: otel.LevelInfo, Kind: otel.KindRecsComplete, Comp: "recommend", Cluster: otel.ClusterID(1), Count: 4},
	} {
		data, err := json.Marshal(e)
		if err != nil {
			t.Fatal(err)
		}
		log.Write(append(data, '\n'))
	}

	cmd := &cobra.Command{}
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetContext(context.Background())

	opts := &eventsOptions{tail: 10, cluster: -1}
	if err := printEvents(cmd, bytes.NewReader(log.Bytes()), otel.Filter{KindPrefix: "recs"}, opts); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2:\n%s", len(lines), out.String())
	}
	if !strings.Contains(lines[0], "recs.error") || !strings.Contains(lines[0], "err=boom") {
		t.Errorf("first line = %q", lines[0])
	}

	out.Reset()
	opts.rawJSON = true
	if err := printEvents(cmd, bytes.NewReader(log.Bytes()), otel.Filter{Cluster: otel.ClusterID(1)}, opts); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out.String(), "{") || !strings.Contains(out.String(), `"recs.complete"`) {
		t.Errorf("raw output = %q", out.String())
	}
}

func isolate(t *testing.T) {
	t.Helper()
	t.Setenv(config.PathEnvVar, "")
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())
}

func TestHistoryCommandOnEmptyStore(t *testing.T) {
	isolate(t)

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"history"})
	if err := root.Execute(); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "No snapshots recorded yet.") {
		t.Errorf("output = %q", out.String())
	}
}

func TestRootFlagsAreValidated(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"service url", []string{"history", "--service-url", "not-a-url"}},
		{"mode", []string{"--mode", "cube"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			root := newRootCmd()
			root.SetOut(&bytes.Buffer{})
			root.SetArgs(tt.args)
			if err := root.Execute(); err == nil {
				t.Error("want a validation error")
			}
		})
	}
}

type quitModel struct{}

func (quitModel) Init() tea.Cmd                       { return tea.Quit }
func (quitModel) Update(tea.Msg) (tea.Model, tea.Cmd) { return quitModel{}, nil }
func (quitModel) View() string                        { return "" }

func TestProgramEnablesHoverMotion(t *testing.T) {
	var out bytes.Buffer
	opts := append(programOptions(context.Background()),
		tea.WithInput(nil),
		tea.WithOutput(&out),
		tea.WithoutSignalHandler(),
	)
	if _, err := tea.NewProgram(quitModel{}, opts...).Run(); err != nil {
		t.Fatal(err)
	}
	// 1003 reports every pointer move; 1002 only reports drags.
	if !strings.Contains(out.String(), "\x1b[?1003h") {
		t.Errorf("any-event mouse mode not enabled: %q", out.String())
	}
	if strings.Contains(out.String(), "\x1b[?1002h") {
		t.Errorf("button-event mouse mode enabled: %q", out.String())
	}
}
