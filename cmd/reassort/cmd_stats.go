package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/nvandessel/reassort/internal/store"
	"github.com/spf13/cobra"
)

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats <results.db>",
		Short: "Summarize a finished run from its results database",
		Long: `Read a results database written by 'reassort run' and print the summary
of the latest finished run, or of the run named with --run.

Use --runs to list every finished run instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			jsonOut, _ := cmd.Flags().GetBool("json")
			runID, _ := cmd.Flags().GetString("run")
			listRuns, _ := cmd.Flags().GetBool("runs")
			withSeries, _ := cmd.Flags().GetBool("timeseries")

			r, err := store.OpenReader(ctx, args[0])
			if err != nil {
				return err
			}
			defer r.Close()

			if listRuns {
				ids, err := r.RunIDs(ctx)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd.OutOrStdout(), map[string]any{"runs": ids})
				}
				for _, id := range ids {
					fmt.Fprintln(cmd.OutOrStdout(), id)
				}
				return nil
			}

			var rep *store.RunReport
			if runID != "" {
				rep, err = r.Run(ctx, runID, withSeries)
			} else {
				rep, err = r.Latest(ctx, withSeries)
			}
			if err != nil {
				return err
			}

			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), rep)
			}
			return printReport(cmd, rep)
		},
	}

	cmd.Flags().String("run", "", "Run ID to report (default: latest)")
	cmd.Flags().Bool("runs", false, "List finished runs, newest first")
	cmd.Flags().Bool("timeseries", false, "Include the timeseries table")
	return cmd
}

func printReport(cmd *cobra.Command, rep *store.RunReport) error {
	out := cmd.OutOrStdout()
	s := rep.Summary

	fmt.Fprintf(out, "Run:        %s\n", s.RunID)
	fmt.Fprintf(out, "Seed:       %d\n", s.Seed)
	fmt.Fprintf(out, "Started:    %s\n", rep.StartedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "Finished:   %s\n", s.FinishedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "Days:       %d (%d restarts)\n", s.Days, s.Restarts)
	if s.Extinct {
		fmt.Fprintln(out, "Status:     extinct")
	}
	fmt.Fprintf(out, "Cases:      %d (%.2f%% of hosts per year)\n", s.TotalCases, s.Incidence)
	fmt.Fprintf(out, "Tips:       %d\n", s.Tips)
	fmt.Fprintf(out, "Selection:  trunk %.4f (%d mutations), side branches %.4f (%d mutations), ratio %.4f\n",
		s.Selection.TrunkRate, s.Selection.TrunkMutations,
		s.Selection.SideBranchRate, s.Selection.SideBranchMutations, s.Selection.Ratio)

	if len(rep.Vaccine) > 0 {
		fmt.Fprintln(out, "\nVaccine composition:")
		for _, v := range rep.Vaccine {
			fmt.Fprintf(out, "  %d. %v (tally %d)\n", v.Rank, v.Alleles, v.Tally)
		}
	}

	if len(rep.Timeseries) > 0 {
		fmt.Fprintln(out)
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintln(w, "DATE\tDIVERSITY\tN\tS\tI\tR\tCASES\t")
		for _, row := range rep.Timeseries {
			fmt.Fprintf(w, "%.4f\t%.4f\t%d\t%d\t%d\t%d\t%d\t\n",
				row.Date, row.Diversity, row.N, row.S, row.I, row.R, row.Cases)
		}
		return w.Flush()
	}
	return nil
}
