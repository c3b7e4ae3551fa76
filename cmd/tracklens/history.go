package main

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

func newHistoryCmd(root *rootOptions) *cobra.Command {
	var (
		limit   int
		rawJSON bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List applied snapshots, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(root.cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			recs, err := st.History(limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if rawJSON {
				enc := json.NewEncoder(out)
				for _, r := range recs {
					if err := enc.Encode(r); err != nil {
						return err
					}
				}
				return nil
			}
			if len(recs) == 0 {
				fmt.Fprintln(out, "No snapshots recorded yet.")
				return nil
			}
			fmt.Fprintf(out, "%-19s  %-8s  %4s  %8s  %6s  %9s  %s\n", "APPLIED", "SESSION", "GEN", "CLUSTERS", "TRACKS", "INERTIA", "FEATURES")
			for _, r := range recs {
				session := r.SessionID
				if len(session) > 8 {
					session = session[:8]
				}
				if session == "" {
					session = "-"
				}
				fmt.Fprintf(out, "%-19s  %-8s  %4d  %8d  %6d  %9.3f  %s\n",
					r.AppliedAt.Local().Format("2006-01-02 15:04:05"),
					session, r.Generation, r.ClusterCount, r.TrackCount, r.Inertia,
					strings.Join(r.Features, ","))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of snapshots to show")
	cmd.Flags().BoolVar(&rawJSON, "json", false, "print JSON lines")
	return cmd
}
