package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newStatsCmd(opts *options) *cobra.Command {
	var runs int

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show recognized label counts and recent runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := storeFor(opts.cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			stats, err := st.Transitions().Stats()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "LABEL\tCOUNT\tPERCENT")
			for _, s := range stats {
				fmt.Fprintf(w, "%s\t%d\t%.1f%%\n", s.Label, s.Count, s.Percent)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if runs <= 0 {
				return nil
			}
			recent, err := st.Runs().List(runs)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout())
			w = tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "RUN\tSTARTED\tSTOPPED\tREASON")
			for _, r := range recent {
				stopped := "-"
				if r.StoppedAt != nil {
					stopped = r.StoppedAt.Format(time.DateTime)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.ID, r.StartedAt.Format(time.DateTime), stopped, r.Reason)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&runs, "runs", 5, "number of recent runs to show")
	return cmd
}
