package ui

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/abelbrown/tracklens/internal/dataset"
	"github.com/abelbrown/tracklens/internal/features"
	"github.com/abelbrown/tracklens/internal/interact"
	"github.com/abelbrown/tracklens/internal/logging"
	"github.com/abelbrown/tracklens/internal/otel"
	"github.com/abelbrown/tracklens/internal/projection"
	"github.com/abelbrown/tracklens/internal/recommend"
	"github.com/abelbrown/tracklens/internal/reconfig"
	"github.com/abelbrown/tracklens/internal/service"
	"github.com/abelbrown/tracklens/internal/store"
)

// TrackSource fetches the user's tracks.
type TrackSource interface {
	FetchUserTracks(ctx context.Context, token string) ([]service.Track, error)
}

// Clusterer partitions tracks into clusters.
type Clusterer interface {
	Cluster(ctx context.Context, req service.ClusterRequest) (*service.ClusterResponse, error)
}

// Recommender fetches recommendations for a seed set.
type Recommender interface {
	Recommend(ctx context.Context, req service.RecommendRequest) ([]service.Recommendation, error)
}

// RecCache stores recommendation results by seed set.
type RecCache interface {
	GetRecommendations(seeds []string, limit int, maxAge time.Duration) ([]service.Recommendation, bool, error)
	PutRecommendations(seeds []string, limit int, recs []service.Recommendation) error
}

// History records applied snapshots.
type History interface {
	RecordSnapshot(r store.SnapshotRecord) (int64, error)
}

// ObsConfig wires the event trace.
type ObsConfig struct {
	Logger *otel.Logger     // nil disables the JSONL trace
	Ring   *otel.RingBuffer // feeds the debug overlay
	Trace  bool             // record every non-frame message
}

// AppConfig holds everything the App depends on. Service calls run in
// tea.Cmds on their own goroutines; the App itself touches none of them
// from Update.
type AppConfig struct {
	Context     context.Context
	Tracks      TrackSource
	Clusterer   Clusterer
	Recommender Recommender
	Token       func() string

	Cache    RecCache      // optional
	CacheTTL time.Duration // 0 accepts any age
	History  History       // optional

	Obs ObsConfig

	Mode                projection.Mode
	FPS                 int
	RotationSpeed       float64 // radians per second
	Clusters            int
	Features            []string
	SeedSize            int
	RecommendationLimit int
	MemberPreview       int

	Now func() time.Time
}

var errNoRecommender = errors.New("no recommendation service configured")

// App is the root Bubble Tea model.
// It owns the interaction state and drives reconfiguration and
// recommendations from its single Update loop.
type App struct {
	cfg AppConfig
	ctx context.Context

	machine *interact.Machine
	proto   *reconfig.Protocol
	recs    *recommend.Orchestrator
	proj    *projection.Cache
	motion  *motion

	tracks        []service.Track
	loadingTracks bool
	tracksErr     error
	projErr       error

	editing    bool
	editCursor int

	debugVisible bool
	spinner      spinner.Model
	help         help.Model

	layout  layout
	width   int
	height  int
	ready   bool
	start   time.Time
	elapsed time.Duration
	ticking bool
}

// NewApp creates an App. Zero config values take defaults.
func NewApp(cfg AppConfig) App {
	if cfg.Context == nil {
		cfg.Context = context.Background()
	}
	if cfg.Token == nil {
		cfg.Token = func() string { return "" }
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.FPS <= 0 {
		cfg.FPS = 30
	}
	if cfg.Clusters == 0 {
		cfg.Clusters = 5
	}
	if len(cfg.Features) == 0 {
		cfg.Features = features.DefaultCatalog
	}
	if cfg.RecommendationLimit <= 0 {
		cfg.RecommendationLimit = 10
	}
	if cfg.MemberPreview <= 0 {
		cfg.MemberPreview = 6
	}
	if cfg.Obs.Logger != nil && cfg.Obs.Ring != nil {
		cfg.Obs.Logger.SetRingBuffer(cfg.Obs.Ring)
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(colorHighlight)

	return App{
		cfg:           cfg,
		ctx:           cfg.Context,
		machine:       interact.New(cfg.Features, cfg.Clusters, cfg.Mode),
		proto:         reconfig.New(nil),
		recs:          recommend.New(cfg.SeedSize),
		proj:          &projection.Cache{},
		motion:        newMotion(cfg.FPS),
		loadingTracks: cfg.Tracks != nil,
		spinner:       s,
		help:          help.New(),
		layout:        newLayout(80, 24),
		start:         cfg.Now(),
	}
}

// Init starts loading tracks and the spinner.
func (a App) Init() tea.Cmd {
	cmds := []tea.Cmd{a.spinner.Tick}
	if a.cfg.Tracks != nil {
		cmds = append(cmds, a.loadTracks())
	}
	if a.machine.Mode() == projection.Spatial {
		cmds = append(cmds, a.tick())
	}
	return tea.Batch(cmds...)
}

// Update handles messages and returns the updated model and any commands.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg.(type) {
	case FrameTick, spinner.TickMsg:
	default:
		if a.cfg.Obs.Trace {
			a.emit(otel.Event{Level: otel.LevelDebug, Kind: otel.KindMsgReceived, Msg: fmt.Sprintf("%T", msg)})
		}
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width, a.height = msg.Width, msg.Height
		a.ready = true
		a.layout = newLayout(msg.Width, msg.Height)
		a.help.Width = msg.Width
		a.reproject()
		cmd := a.ensureTick()
		return a, cmd

	case tea.KeyMsg:
		return a.handleKey(msg)

	case tea.MouseMsg:
		return a.handleMouse(msg)

	case TracksLoaded:
		a.loadingTracks = false
		if msg.Err != nil {
			a.tracksErr = msg.Err
			a.emit(otel.Event{Level: otel.LevelError, Kind: otel.KindTracksError, Comp: "service", Err: msg.Err.Error(), Dur: msg.Dur})
			logging.Error("fetch tracks failed", "err", msg.Err)
			return a, nil
		}
		a.tracksErr = nil
		a.tracks = msg.Tracks
		a.emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindTracksLoad, Comp: "service", Count: len(msg.Tracks), Dur: msg.Dur})
		cmd := a.startRecompute()
		return a, cmd

	case RecomputeDone:
		return a.handleRecompute(msg)

	case RecsDone:
		a.handleRecs(msg)
		return a, nil

	case SnapshotRecorded:
		if msg.Err != nil {
			a.emit(otel.Event{Level: otel.LevelWarn, Kind: otel.KindStoreError, Comp: "store", Generation: msg.Generation, Err: msg.Err.Error()})
			logging.Warn("record snapshot failed", "generation", msg.Generation, "err", msg.Err)
		}
		return a, nil

	case FrameTick:
		a.elapsed = msg.Time.Sub(a.start)
		moving := a.motion.step()
		if moving || a.machine.Mode() == projection.Spatial {
			return a, a.tick()
		}
		a.ticking = false
		return a, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd
	}

	return a, nil
}

func (a App) handleRecompute(msg RecomputeDone) (tea.Model, tea.Cmd) {
	seq := msg.Ticket.Seq
	switch a.proto.Resolve(msg.Ticket, msg.Response, msg.Err) {
	case reconfig.Stale:
		a.emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindRecomputeStale, Comp: "reconfig", Seq: seq, Msg: "superseded"})
		return a, nil

	case reconfig.Failed:
		err := a.proto.LastError()
		a.emit(otel.Event{Level: otel.LevelError, Kind: otel.KindRecomputeError, Comp: "reconfig", Seq: seq, Err: err.Error(), Dur: msg.Dur})
		logging.Error("recompute failed", "seq", seq, "err", err)
		return a, nil
	}

	snap := a.proto.Current()
	a.machine.Replace(snap)
	a.reproject()
	a.emit(otel.Event{
		Level:      otel.LevelInfo,
		Kind:       otel.KindRecomputeApply,
		Comp:       "reconfig",
		Seq:        seq,
		Generation: snap.Generation(),
		Count:      snap.Len(),
		Dur:        msg.Dur,
	})
	cmd := tea.Batch(a.triggerRecs(), a.recordSnapshot(snap), a.ensureTick())
	return a, cmd
}

func (a *App) handleRecs(msg RecsDone) {
	req := msg.Request
	ev := otel.Event{
		Comp:       "recommend",
		RequestID:  req.ID,
		Generation: req.Key.Generation,
		Cluster:    otel.ClusterID(req.Key.Cluster),
		Dur:        msg.Dur,
	}
	if !a.recs.Resolve(req, msg.Items, msg.Err) {
		ev.Level, ev.Kind = otel.LevelInfo, otel.KindRecsStale
		a.emit(ev)
		return
	}
	switch {
	case msg.Err != nil:
		ev.Level, ev.Kind, ev.Err = otel.LevelError, otel.KindRecsError, msg.Err.Error()
		logging.Warn("recommendations failed", "cluster", req.Key.Cluster, "err", msg.Err)
	case msg.Cached:
		ev.Level, ev.Kind, ev.Count = otel.LevelInfo, otel.KindRecsCacheHit, len(msg.Items)
	default:
		ev.Level, ev.Kind, ev.Count = otel.LevelInfo, otel.KindRecsComplete, len(msg.Items)
	}
	a.emit(ev)
}

func (a App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	a.emit(otel.Event{Level: otel.LevelDebug, Kind: otel.KindKeyPress, Msg: msg.String()})

	if key.Matches(msg, keys.Quit) && (!a.editing || msg.String() == "ctrl+c") {
		a.recs.Teardown()
		return a, tea.Quit
	}
	if a.editing {
		return a.handleEditorKey(msg)
	}

	switch {
	case key.Matches(msg, keys.Help):
		a.help.ShowAll = !a.help.ShowAll
	case key.Matches(msg, keys.Debug):
		a.debugVisible = !a.debugVisible
	case key.Matches(msg, keys.Mode):
		a.machine.ToggleMode()
		a.reproject()
		cmd := a.ensureTick()
		return a, cmd
	case key.Matches(msg, keys.NextX):
		cmd := a.cycleAxis(interact.AxisX, 1)
		return a, cmd
	case key.Matches(msg, keys.PrevX):
		cmd := a.cycleAxis(interact.AxisX, -1)
		return a, cmd
	case key.Matches(msg, keys.NextY):
		cmd := a.cycleAxis(interact.AxisY, 1)
		return a, cmd
	case key.Matches(msg, keys.PrevY):
		cmd := a.cycleAxis(interact.AxisY, -1)
		return a, cmd
	case key.Matches(msg, keys.NextZ):
		cmd := a.cycleAxis(interact.AxisZ, 1)
		return a, cmd
	case key.Matches(msg, keys.PrevZ):
		cmd := a.cycleAxis(interact.AxisZ, -1)
		return a, cmd
	case key.Matches(msg, keys.Next):
		if a.machine.NextCluster() {
			cmd := a.selectionChanged()
			return a, cmd
		}
	case key.Matches(msg, keys.Prev):
		if a.machine.PrevCluster() {
			cmd := a.selectionChanged()
			return a, cmd
		}
	case key.Matches(msg, keys.Cluster):
		id, err := strconv.Atoi(msg.String())
		if err == nil && a.machine.SelectCluster(id) {
			cmd := a.selectionChanged()
			return a, cmd
		}
	case key.Matches(msg, keys.More):
		a.machine.AdjustClusterCount(1)
	case key.Matches(msg, keys.Fewer):
		a.machine.AdjustClusterCount(-1)
	case key.Matches(msg, keys.Features):
		a.editing, a.editCursor = true, 0
	case key.Matches(msg, keys.Recompute):
		if a.tracks == nil && a.cfg.Tracks != nil {
			if a.loadingTracks {
				return a, nil
			}
			a.loadingTracks, a.tracksErr = true, nil
			return a, a.loadTracks()
		}
		cmd := a.startRecompute()
		return a, cmd
	case key.Matches(msg, keys.Retry):
		if req, ok := a.recs.Retry(); ok {
			cmd := a.fetchRecs(req)
			return a, cmd
		}
	}
	return a, nil
}

func (a App) handleEditorKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	catalog := a.machine.Catalog()
	n := len(catalog)
	switch {
	case key.Matches(msg, keys.Up) && n > 0:
		a.editCursor = (a.editCursor - 1 + n) % n
	case key.Matches(msg, keys.Down) && n > 0:
		a.editCursor = (a.editCursor + 1) % n
	case key.Matches(msg, keys.Toggle) && n > 0:
		a.machine.ToggleFeature(catalog[a.editCursor])
	case key.Matches(msg, keys.Recompute):
		a.editing = false
		cmd := a.startRecompute()
		return a, cmd
	case key.Matches(msg, keys.Close):
		a.editing = false
	}
	return a, nil
}

func (a App) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	snap := a.machine.Snapshot()
	if snap == nil || a.debugVisible {
		return a, nil
	}
	col, row, inside := a.layout.plotCell(msg.X, msg.Y)
	var (
		id  string
		hit bool
	)
	if inside {
		id, hit = hitTest(a.frame(), col, row)
	}
	p := interact.Pointer{X: col, Y: row}

	switch msg.Action {
	case tea.MouseActionMotion:
		if hit {
			a.machine.PointerMove(id, p)
		} else {
			a.machine.PointerLeave()
		}
	case tea.MouseActionPress:
		if msg.Button != tea.MouseButtonLeft || !hit {
			return a, nil
		}
		a.machine.PointerMove(id, p)
		it, ok := snap.ItemByID(id)
		if !ok {
			return a, nil
		}
		if sel, has := a.machine.Selected(); has && sel == it.Cluster {
			return a, nil
		}
		if a.machine.SelectCluster(it.Cluster) {
			cmd := a.selectionChanged()
			return a, cmd
		}
	}
	return a, nil
}

func (a *App) cycleAxis(axis interact.Axis, delta int) tea.Cmd {
	if !a.machine.CycleAxis(axis, delta) {
		return nil
	}
	a.emit(otel.Event{
		Level: otel.LevelInfo,
		Kind:  otel.KindAxisChange,
		Extra: map[string]any{"axis": axis.String(), "feature": a.machine.Axis(axis)},
	})
	a.reproject()
	return a.ensureTick()
}

func (a *App) selectionChanged() tea.Cmd {
	if sel, ok := a.machine.Selected(); ok {
		a.emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindSelect, Cluster: otel.ClusterID(sel)})
	}
	return a.triggerRecs()
}

// reproject refreshes the motion target from the cached projection.
func (a *App) reproject() {
	snap := a.machine.Snapshot()
	if snap == nil {
		return
	}
	p, err := a.proj.Get(snap, a.machine.Mode(), a.machine.Axes(), a.layout.viewport(), projection.DefaultCube)
	if err != nil {
		a.projErr = err
		logging.Warn("projection failed", "err", err)
		return
	}
	a.projErr = nil
	a.motion.retarget(p)
}

// frame returns the points as drawn right now.
func (a App) frame() []projection.ScreenPoint {
	p, ok := a.motion.current()
	if !ok {
		return nil
	}
	return p.Frame(a.yaw(), tilt, a.layout.viewport())
}

func (a App) yaw() float64 {
	if a.machine.Mode() != projection.Spatial {
		return 0
	}
	return projection.Angle(a.elapsed, a.cfg.RotationSpeed)
}

func (a App) tick() tea.Cmd {
	return tea.Tick(time.Second/time.Duration(a.cfg.FPS), func(t time.Time) tea.Msg {
		return FrameTick{Time: t}
	})
}

// ensureTick starts the frame loop if something needs animating and it
// is not already running.
func (a *App) ensureTick() tea.Cmd {
	if a.ticking || (!a.motion.moving && a.machine.Mode() != projection.Spatial) {
		return nil
	}
	a.ticking = true
	return a.tick()
}

func (a App) emit(e otel.Event) {
	if e.Comp == "" {
		e.Comp = "ui"
	}
	if l := a.cfg.Obs.Logger; l != nil {
		l.Emit(e)
		return
	}
	if r := a.cfg.Obs.Ring; r != nil {
		if e.Time.IsZero() {
			e.Time = a.cfg.Now()
		}
		r.Push(e)
	}
}

func (a App) sessionID() string {
	if a.cfg.Obs.Logger != nil {
		return a.cfg.Obs.Logger.SessionID()
	}
	return ""
}

// View renders the UI.
func (a App) View() string {
	if !a.ready {
		return "Loading..."
	}
	if a.debugVisible {
		return debugOverlay(a.cfg.Obs.Ring, a.width, a.height-1) + "\n" + debugStatusBar(a.width)
	}

	body := lipgloss.JoinHorizontal(lipgloss.Top, a.plotView(), a.sidePanel())
	return lipgloss.JoinVertical(lipgloss.Left, a.header(), body, a.statusBar(), a.helpView())
}

func (a App) header() string {
	mode := a.machine.Mode()
	parts := []string{"tracklens", mode.String()}
	if a.machine.Snapshot() != nil {
		axes := a.machine.Axes().Names(mode.Dims())
		for i, name := range axes {
			parts = append(parts, fmt.Sprintf("%s: %s", interact.Axis(i), features.Label(name)))
		}
	}
	return HeaderStyle.Width(a.width).Render(strings.Join(parts, "  "))
}

func (a App) plotView() string {
	l := a.layout
	snap := a.machine.Snapshot()
	if snap == nil || a.projErr != nil {
		var msg string
		switch {
		case a.tracksErr != nil:
			msg = ErrorStyle.Render("Could not load tracks: "+errorText(a.tracksErr)) + "\n" + MutedText.Render("press u to try again")
		case a.loadingTracks:
			msg = a.spinner.View() + " Loading your tracks…"
		case a.proto.InFlight() > 0:
			msg = a.spinner.View() + " Clustering…"
		case a.projErr != nil:
			msg = ErrorStyle.Render(a.projErr.Error())
		case a.proto.LastError() != nil:
			msg = MutedText.Render("Nothing to show yet")
		default:
			msg = MutedText.Render("No data")
		}
		return lipgloss.Place(l.plotW, l.plotH, lipgloss.Center, lipgloss.Center, msg)
	}

	sel, hasSel := a.machine.Selected()
	proj, _ := a.motion.current()
	names := a.machine.Axes().Names(a.machine.Mode().Dims())
	labels := make([]string, len(names))
	for i, n := range names {
		labels[i] = features.Label(n)
	}
	return renderScatter(l, scatterState{
		proj:        proj,
		frame:       a.frame(),
		yaw:         a.yaw(),
		labels:      labels,
		selected:    sel,
		hasSelected: hasSel,
		hovered:     a.machine.Hover().ItemID,
	})
}

func (a App) sidePanel() string {
	width := sidePanelWidth - 3
	var sections []string

	snap := a.machine.Snapshot()
	if it, ok := a.machine.HoveredItem(); ok {
		sections = append(sections, tooltip(it, a.machine.Axes().Names(a.machine.Mode().Dims()), width-4))
	}
	if snap != nil {
		sel, _ := a.machine.Selected()
		sections = append(sections,
			SectionTitle.Render("Clusters")+"\n"+legend(snap, sel, width),
			clusterSection(snap, sel, a.cfg.MemberPreview, width),
			recsSection(a.recs.Active(), a.spinner.View(), width),
		)
	}
	sections = append(sections, a.paramsSection(snap))

	return SidePanel.
		Width(sidePanelWidth - 1).
		Height(a.layout.plotH).
		MaxHeight(a.layout.plotH).
		Render(strings.Join(sections, "\n\n"))
}

func (a App) paramsSection(snap *dataset.Snapshot) string {
	params := a.machine.Params()
	count := fmt.Sprintf("Clusters: %d", params.ClusterCount)
	if snap != nil && snap.ClusterCount() != params.ClusterCount {
		count += MutedText.Render(fmt.Sprintf(" (now %d, u to apply)", snap.ClusterCount()))
	}
	lines := []string{
		SectionTitle.Render("Parameters"),
		count,
		fmt.Sprintf("Features: %d of %d", len(params.Features), len(a.machine.Catalog())),
	}
	if a.editing {
		for i, f := range a.machine.Catalog() {
			box := "[ ]"
			if a.machine.Enabled(f) {
				box = "[x]"
			}
			cursor := "  "
			if i == a.editCursor {
				cursor = "▸ "
			}
			lines = append(lines, cursor+box+" "+features.Label(f))
		}
	}
	return strings.Join(lines, "\n")
}

func (a App) statusBar() string {
	var parts []string
	if snap := a.machine.Snapshot(); snap != nil {
		parts = append(parts,
			fmt.Sprintf("gen %d", snap.Generation()),
			fmt.Sprintf("%d tracks", snap.Len()),
			fmt.Sprintf("inertia %.2f", snap.Inertia()),
		)
	}
	if a.proto.InFlight() > 0 {
		parts = append(parts, a.spinner.View()+" clustering")
	}
	if n := a.recs.Pending(); n > 0 {
		parts = append(parts, fmt.Sprintf("%d pending", n))
	}
	line := StatusBarText.Render(strings.Join(parts, " · "))
	if err := a.proto.LastError(); err != nil {
		line += "  " + ErrorStyle.Render("recompute failed: "+errorText(err))
	}
	return StatusBar.Width(a.width).Render(line)
}

func (a App) helpView() string {
	if a.editing {
		return a.help.View(editorKeyMap{keys})
	}
	return a.help.View(keys)
}

// Commands

func (a App) loadTracks() tea.Cmd {
	ctx, src, token := a.ctx, a.cfg.Tracks, a.cfg.Token()
	return func() tea.Msg {
		start := time.Now()
		tracks, err := src.FetchUserTracks(ctx, token)
		return TracksLoaded{Tracks: tracks, Err: err, Dur: time.Since(start)}
	}
}

// startRecompute issues a recompute with the batched parameters. Requests
// that fail validation never reach the service.
func (a *App) startRecompute() tea.Cmd {
	params := a.machine.Params()
	ticket, err := a.proto.Begin(a.tracks, params)
	if err != nil {
		a.emit(otel.Event{Level: otel.LevelWarn, Kind: otel.KindRecomputeError, Comp: "reconfig", Err: err.Error()})
		return nil
	}
	a.emit(otel.Event{
		Level: otel.LevelInfo,
		Kind:  otel.KindRecomputeStart,
		Comp:  "reconfig",
		Seq:   ticket.Seq,
		Count: params.ClusterCount,
		Extra: map[string]any{"features": params.Features},
	})
	if a.cfg.Clusterer == nil {
		return nil
	}
	ctx, cl := a.ctx, a.cfg.Clusterer
	return func() tea.Msg {
		start := time.Now()
		resp, err := cl.Cluster(ctx, ticket.Request)
		return RecomputeDone{Ticket: ticket, Response: resp, Err: err, Dur: time.Since(start)}
	}
}

func (a *App) triggerRecs() tea.Cmd {
	sel, ok := a.machine.Selected()
	if !ok {
		return nil
	}
	req, ok := a.recs.Trigger(a.machine.Snapshot(), sel)
	if !ok {
		return nil
	}
	return a.fetchRecs(req)
}

// fetchRecs runs req, consulting the cache first. A fresh result is
// written back to the cache.
func (a *App) fetchRecs(req recommend.Request) tea.Cmd {
	a.emit(otel.Event{
		Level:      otel.LevelInfo,
		Kind:       otel.KindRecsStart,
		Comp:       "recommend",
		RequestID:  req.ID,
		Generation: req.Key.Generation,
		Cluster:    otel.ClusterID(req.Key.Cluster),
		Count:      len(req.Seeds),
	})
	ctx, rec, cache := a.ctx, a.cfg.Recommender, a.cfg.Cache
	ttl, limit, token := a.cfg.CacheTTL, a.cfg.RecommendationLimit, a.cfg.Token()
	return func() tea.Msg {
		start := time.Now()
		if cache != nil {
			items, ok, err := cache.GetRecommendations(req.Seeds, limit, ttl)
			if err != nil {
				logging.Warn("recommendation cache read failed", "err", err)
			} else if ok {
				return RecsDone{Request: req, Items: items, Cached: true, Dur: time.Since(start)}
			}
		}
		if rec == nil {
			return RecsDone{Request: req, Err: errNoRecommender}
		}
		items, err := rec.Recommend(ctx, service.RecommendRequest{SeedTracks: req.Seeds, Token: token, Limit: limit})
		if err == nil && cache != nil {
			if perr := cache.PutRecommendations(req.Seeds, limit, items); perr != nil {
				logging.Warn("recommendation cache write failed", "err", perr)
			}
		}
		return RecsDone{Request: req, Items: items, Err: err, Dur: time.Since(start)}
	}
}

func (a App) recordSnapshot(snap *dataset.Snapshot) tea.Cmd {
	h := a.cfg.History
	if h == nil {
		return nil
	}
	rec := store.SnapshotRecord{
		SessionID:    a.sessionID(),
		Generation:   snap.Generation(),
		ClusterCount: snap.ClusterCount(),
		Features:     snap.Features(),
		TrackCount:   snap.Len(),
		Inertia:      snap.Inertia(),
		AppliedAt:    a.cfg.Now(),
	}
	return func() tea.Msg {
		id, err := h.RecordSnapshot(rec)
		return SnapshotRecorded{Generation: rec.Generation, ID: id, Err: err}
	}
}

// Accessors for tests and the CLI.

// Machine returns the interaction state.
func (a App) Machine() *interact.Machine { return a.machine }

// Snapshot returns the displayed snapshot.
func (a App) Snapshot() *dataset.Snapshot { return a.proto.Current() }

// Recommendations returns the selected cluster's recommendation state.
func (a App) Recommendations() recommend.State { return a.recs.Active() }
