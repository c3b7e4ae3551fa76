package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/abelbrown/tracklens/internal/otel"
)

type eventsOptions struct {
	tail    int
	follow  bool
	kind    string
	level   string
	comp    string
	rid     string
	cluster int
	rawJSON bool
}

func newEventsCmd(root *rootOptions) *cobra.Command {
	opts := &eventsOptions{}
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show the JSONL event log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := root.cfg.EventsPath()
			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("%w\n  run the visualization first to generate events", err)
			}
			defer f.Close()

			filter, err := opts.filter()
			if err != nil {
				return err
			}
			return printEvents(cmd, f, filter, opts)
		},
	}

	fl := cmd.Flags()
	fl.IntVarP(&opts.tail, "tail", "n", 50, "number of recent events to show")
	fl.BoolVarP(&opts.follow, "follow", "f", false, "keep printing new events")
	fl.StringVar(&opts.kind, "kind", "", "event kind prefix, e.g. 'recs' or 'recompute.stale'")
	fl.StringVar(&opts.level, "level", "", "minimum level: debug, info, warn, error")
	fl.StringVar(&opts.comp, "comp", "", "component name")
	fl.StringVar(&opts.rid, "rid", "", "recommendation request id")
	fl.IntVar(&opts.cluster, "cluster", -1, "cluster id")
	fl.BoolVar(&opts.rawJSON, "json", false, "print raw JSON lines")
	return cmd
}

func (o *eventsOptions) filter() (otel.Filter, error) {
	f := otel.Filter{
		KindPrefix: o.kind,
		MinLevel:   otel.Level(o.level),
		Comp:       o.comp,
		RequestID:  o.rid,
	}
	switch f.MinLevel {
	case "", otel.LevelDebug, otel.LevelInfo, otel.LevelWarn, otel.LevelError:
	default:
		return otel.Filter{}, fmt.Errorf("unknown level %q", o.level)
	}
	if o.cluster >= 0 {
		f.Cluster = otel.ClusterID(o.cluster)
	}
	return f, nil
}

func printEvents(cmd *cobra.Command, r io.Reader, filter otel.Filter, opts *eventsOptions) error {
	out := cmd.OutOrStdout()
	show := func(l otel.Line) {
		if opts.rawJSON {
			fmt.Fprintln(out, string(l.Raw))
			return
		}
		fmt.Fprintln(out, otel.Format(l.Event))
	}

	lines, err := otel.ReadTail(r, opts.tail, filter)
	if err != nil {
		return err
	}
	for _, l := range lines {
		show(l)
	}
	if !opts.follow {
		return nil
	}
	return otel.Follow(cmd.Context(), r, filter, 100*time.Millisecond, show)
}
