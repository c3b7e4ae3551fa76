package main

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/abelbrown/tracklens/internal/config"
	"github.com/abelbrown/tracklens/internal/logging"
	"github.com/abelbrown/tracklens/internal/otel"
	"github.com/abelbrown/tracklens/internal/service"
	"github.com/abelbrown/tracklens/internal/store"
	"github.com/abelbrown/tracklens/internal/ui"
)

// rootOptions holds the persistent flags and the configuration they
// resolve to.
type rootOptions struct {
	configPath string
	serviceURL string
	token      string
	mode       string

	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:     "tracklens",
		Short:   "Explore your music library as clusters of audio features",
		Version: version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd.Context(), opts.cfg)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", "", "config file (default: $"+config.PathEnvVar+", ./tracklens.yaml or ~/.tracklens/config.yaml)")
	pf.StringVar(&opts.serviceURL, "service-url", "", "clustering service base URL")
	pf.StringVar(&opts.token, "token", "", "session token passed to the recommendation service")
	cmd.Flags().StringVar(&opts.mode, "mode", "", "starting projection: planar or spatial")

	cmd.AddCommand(
		newEventsCmd(opts),
		newHistoryCmd(opts),
		newRecsCmd(opts),
	)
	return cmd
}

// load resolves the configuration and applies flag overrides.
func (o *rootOptions) load(cmd *cobra.Command) error {
	var (
		cfg *config.Config
		err error
	)
	if o.configPath != "" {
		cfg, err = config.LoadFile(o.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("service-url") {
		cfg.Service.BaseURL = o.serviceURL
	}
	if cmd.Flags().Changed("token") {
		cfg.Session.Token = o.token
	}
	if f := cmd.Flags().Lookup("mode"); f != nil && f.Changed {
		cfg.UI.Mode = o.mode
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	o.cfg = cfg
	return nil
}

// openStore opens the cache database, creating the data directory.
func openStore(cfg *config.Config) (*store.Store, error) {
	if err := os.MkdirAll(cfg.Data.Dir, 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return store.Open(cfg.DBPath())
}

// programOptions sets up the terminal. All-motion mouse reporting is
// needed for hover; cell motion only reports drags.
func programOptions(ctx context.Context) []tea.ProgramOption {
	return []tea.ProgramOption{
		tea.WithAltScreen(),
		tea.WithMouseAllMotion(),
		tea.WithContext(ctx),
	}
}

func runTUI(ctx context.Context, cfg *config.Config) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := os.MkdirAll(cfg.Data.Dir, 0755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	if err := logging.Init(cfg.Data.Dir, cfg.Log.Level, version); err != nil {
		return err
	}
	defer logging.Close()

	events, err := otel.Open(cfg.EventsPath())
	if err != nil {
		logging.Warn("event log disabled", "err", err)
		events = otel.NewNullLogger()
	}
	defer events.Close()
	ring := otel.NewRingBuffer(otel.DefaultRingSize)

	appCfg := ui.AppConfig{
		Context:             ctx,
		Token:               func() string { return cfg.Session.Token },
		CacheTTL:            cfg.Data.CacheTTL,
		Obs:                 ui.ObsConfig{Logger: events, Ring: ring, Trace: cfg.Log.Trace},
		Mode:                cfg.UI.ProjectionMode(),
		FPS:                 cfg.UI.FPS,
		RotationSpeed:       cfg.UI.RotationSpeed,
		Clusters:            cfg.UI.DefaultClusters,
		Features:            cfg.UI.Features,
		SeedSize:            cfg.UI.SeedSize,
		RecommendationLimit: cfg.UI.RecommendationLimit,
		MemberPreview:       cfg.UI.MemberPreview,
	}

	client := service.New(cfg.ServiceOptions())
	appCfg.Tracks, appCfg.Clusterer, appCfg.Recommender = client, client, client

	// The visualization works without local state; only caching and
	// history are lost.
	st, err := openStore(cfg)
	if err != nil {
		logging.Warn("local store unavailable", "path", cfg.DBPath(), "err", err)
		events.Error(otel.KindStoreError, "store", err)
	} else {
		defer st.Close()
		if cfg.Data.CacheTTL > 0 {
			if n, err := st.PruneRecommendations(time.Now().Add(-cfg.Data.CacheTTL)); err != nil {
				logging.Warn("prune recommendations failed", "err", err)
			} else if n > 0 {
				logging.Debug("pruned recommendations", "rows", n)
			}
		}
		appCfg.Cache, appCfg.History = st, st
	}

	events.Emit(otel.Event{
		Level: otel.LevelInfo,
		Kind:  otel.KindStartup,
		Comp:  "main",
		Msg:   version,
		Extra: map[string]any{"service": cfg.Service.BaseURL, "mode": cfg.UI.Mode},
	})

	program := tea.NewProgram(ui.NewApp(appCfg), programOptions(ctx)...)
	_, runErr := program.Run()
	interrupted := ctx.Err() != nil

	// Stop in-flight requests before the deferred closes run.
	cancel()
	events.Info(otel.KindShutdown, "main", "")
	if runErr != nil && !interrupted {
		logging.Error("program exited", "err", runErr)
		return runErr
	}
	return nil
}
