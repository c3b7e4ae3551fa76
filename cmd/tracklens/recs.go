package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/abelbrown/tracklens/internal/config"
	"github.com/abelbrown/tracklens/internal/dataset"
	"github.com/abelbrown/tracklens/internal/logging"
	"github.com/abelbrown/tracklens/internal/recommend"
	"github.com/abelbrown/tracklens/internal/reconfig"
	"github.com/abelbrown/tracklens/internal/service"
	"github.com/abelbrown/tracklens/internal/ui"
)

// recsParallelism bounds concurrent recommendation requests.
const recsParallelism = 3

type recsOptions struct {
	clusters int
	features []string
	limit    int
	noCache  bool
}

func newRecsCmd(root *rootOptions) *cobra.Command {
	opts := &recsOptions{}
	cmd := &cobra.Command{
		Use:   "recs",
		Short: "Cluster your tracks once and print recommendations for every cluster",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := root.cfg
			if !cmd.Flags().Changed("clusters") {
				opts.clusters = cfg.UI.DefaultClusters
			}
			if !cmd.Flags().Changed("features") {
				opts.features = cfg.UI.Features
			}
			if !cmd.Flags().Changed("limit") {
				opts.limit = cfg.UI.RecommendationLimit
			}

			client := service.New(cfg.ServiceOptions())
			var cache ui.RecCache
			if !opts.noCache {
				st, err := openStore(cfg)
				if err != nil {
					logging.Warn("recommendation cache unavailable", "err", err)
				} else {
					defer st.Close()
					cache = st
				}
			}
			return runRecs(cmd.Context(), cmd.OutOrStdout(), cfg, client, cache, opts)
		},
	}
	fl := cmd.Flags()
	fl.IntVarP(&opts.clusters, "clusters", "k", 0, "number of clusters (2-10)")
	fl.StringSliceVar(&opts.features, "features", nil, "features to cluster on (comma separated)")
	fl.IntVarP(&opts.limit, "limit", "n", 0, "recommendations per cluster")
	fl.BoolVar(&opts.noCache, "no-cache", false, "always ask the service")
	return cmd
}

// recsService is everything runRecs needs from the service client.
type recsService interface {
	ui.TrackSource
	ui.Clusterer
	ui.Recommender
}

type clusterRecs struct {
	cluster int
	seeds   []string
	items   []service.Recommendation
	cached  bool
	err     error
}

func runRecs(ctx context.Context, out io.Writer, cfg *config.Config, svc recsService, cache ui.RecCache, opts *recsOptions) error {
	token := cfg.Session.Token
	tracks, err := svc.FetchUserTracks(ctx, token)
	if err != nil {
		return err
	}

	proto := reconfig.New(nil)
	ticket, err := proto.Begin(tracks, reconfig.Params{ClusterCount: opts.clusters, Features: opts.features})
	if err != nil {
		return err
	}
	resp, err := svc.Cluster(ctx, ticket.Request)
	if proto.Resolve(ticket, resp, err) != reconfig.Applied {
		return proto.LastError()
	}
	snap := proto.Current()

	ids := snap.ClusterIDs()
	results := make([]clusterRecs, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(recsParallelism)
	for i, c := range ids {
		results[i] = clusterRecs{cluster: c, seeds: recommend.Seeds(snap, c, cfg.UI.SeedSize)}
		r := &results[i]
		g.Go(func() error {
			if cache != nil {
				items, ok, err := cache.GetRecommendations(r.seeds, opts.limit, cfg.Data.CacheTTL)
				if err == nil && ok {
					r.items, r.cached = items, true
					return nil
				}
			}
			r.items, r.err = svc.Recommend(gctx, service.RecommendRequest{SeedTracks: r.seeds, Token: token, Limit: opts.limit})
			if r.err == nil && cache != nil {
				if err := cache.PutRecommendations(r.seeds, opts.limit, r.items); err != nil {
					logging.Warn("recommendation cache write failed", "err", err)
				}
			}
			// One failed cluster does not cancel the others.
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	writeRecs(out, snap, results)
	return nil
}

func writeRecs(out io.Writer, snap *dataset.Snapshot, results []clusterRecs) {
	fmt.Fprintf(out, "%d tracks in %d clusters on %s (inertia %.3f)\n",
		snap.Len(), snap.ClusterCount(), strings.Join(snap.Features(), ", "), snap.Inertia())
	for _, r := range results {
		fmt.Fprintf(out, "\nCluster %d (%d tracks)", r.cluster, snap.ClusterSize(r.cluster))
		if r.cached {
			fmt.Fprint(out, " [cached]")
		}
		fmt.Fprintln(out)
		switch {
		case r.err != nil:
			fmt.Fprintf(out, "  error: %v\n", r.err)
		case len(r.items) == 0:
			fmt.Fprintln(out, "  no recommendations")
		default:
			for i, rec := range r.items {
				line := fmt.Sprintf("  %2d. %s", i+1, rec.Name)
				if a := rec.Artist(); a != "" {
					line += " - " + a
				}
				if u := rec.URL(); u != "" {
					line += "  " + u
				}
				fmt.Fprintln(out, line)
			}
		}
	}
}
