package main

import (
	"github.com/nvandessel/reassort/internal/store"
	"github.com/nvandessel/reassort/internal/visualization"
	"github.com/spf13/cobra"
)

func newTreeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tree <results.db>",
		Short: "Export the ancestry tree of a finished run",
		Long: `Read the finished ancestry tree from a results database and write it as
a Graphviz DOT digraph, or as a node/edge list with --json.

  reassort tree reassort.db | dot -Tsvg > tree.svg`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			jsonOut, _ := cmd.Flags().GetBool("json")
			runID, _ := cmd.Flags().GetString("run")

			r, err := store.OpenReader(ctx, args[0])
			if err != nil {
				return err
			}
			defer r.Close()

			if runID == "" {
				ids, err := r.RunIDs(ctx)
				if err != nil {
					return err
				}
				if len(ids) == 0 {
					return store.ErrNoRuns
				}
				runID = ids[0]
			}

			branches, err := r.Branches(ctx, runID)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), visualization.RenderJSON(branches))
			}
			return visualization.RenderDOT(cmd.OutOrStdout(), branches)
		},
	}

	cmd.Flags().String("run", "", "Run ID to export (default: latest)")
	return cmd
}
