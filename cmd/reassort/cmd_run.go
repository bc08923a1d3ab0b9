package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/nvandessel/reassort/internal/config"
	"github.com/nvandessel/reassort/internal/constants"
	"github.com/nvandessel/reassort/internal/logging"
	"github.com/nvandessel/reassort/internal/models"
	"github.com/nvandessel/reassort/internal/report"
	"github.com/nvandessel/reassort/internal/simulation"
	"github.com/nvandessel/reassort/internal/store"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [key=value ...]",
		Short: "Run a simulation",
		Long: `Run one simulation and write its results.

Parameters are applied in order: defaults, then the --config file, then
REASSORT_* environment variables, then key=value arguments. Keys accept
either the dotted name or the short alias listed by 'reassort params'.

Examples:
  reassort run N=100000 endDay=36500 seed=42
  reassort run --config flu.yaml outDir=results/flu compression=bgzf
  reassort run --config flu.yaml s3URI=s3://my-bucket/runs/flu`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd, args)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), shutdownSignals...)
			defer stop()

			out, err := runSimulation(ctx, cfg, logger)
			if err != nil {
				return err
			}

			if cfg.Output.S3URI != "" {
				if err := uploadResults(ctx, cfg, logger, out.files); err != nil {
					return err
				}
			}

			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"summary":  out.result.Summary(),
					"hosts":    map[string]int{"n": out.result.N, "s": out.result.S, "i": out.result.I, "r": out.result.R},
					"vaccine":  out.result.Vaccine,
					"database": out.database,
					"files":    out.files,
				})
			}
			printResult(cmd, out)
			return nil
		},
	}
	return cmd
}

// loadConfig resolves the configuration from the --config file and
// key=value args, applies --log-level, and builds the stderr logger.
func loadConfig(cmd *cobra.Command, args []string) (*config.Config, *slog.Logger, error) {
	configPath, _ := cmd.Flags().GetString("config")
	logLevel, _ := cmd.Flags().GetString("log-level")

	cfg, unknown, err := config.Load(configPath, args)
	if err != nil {
		return nil, nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	logger := logging.NewLogger(cfg.Logging.Level, cmd.ErrOrStderr())
	for _, key := range unknown {
		logger.Warn("ignoring unknown parameter", "key", key)
	}
	return cfg, logger, nil
}

// runOutput is what a finished run leaves behind.
type runOutput struct {
	result   *simulation.Result
	database string
	files    []string
}

// runSimulation opens the configured sinks, runs the simulation and closes
// every sink, even when the run fails.
func runSimulation(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*runOutput, error) {
	if err := store.EnsureOutputDir(cfg.Output.Dir); err != nil {
		return nil, err
	}

	out := &runOutput{database: store.DatabasePath(cfg.Output.Dir, cfg.Output.Database)}

	var recorders []models.Recorder
	if out.database != "" {
		db, err := store.NewSQLiteRecorder(out.database)
		if err != nil {
			return nil, fmt.Errorf("failed to open results database: %w", err)
		}
		recorders = append(recorders, db)
	}
	var tables *report.TableRecorder
	if cfg.Output.Tables {
		tables = report.NewTableRecorder(cfg.Output.Dir, constants.Compression(cfg.Output.Compression))
		recorders = append(recorders, tables)
	}
	sinks := models.NewMultiRecorder(recorders...)

	runner := simulation.NewRunner(cfg, sinks)
	events := logging.NewEventLogger(cfg.Output.Dir, cfg.Logging.Level, runner.RunID())
	defer events.Close()
	runner.SetLogger(logger, events)

	res, runErr := runner.Run(ctx)
	if err := errors.Join(runErr, sinks.Close()); err != nil {
		return nil, err
	}
	out.result = res

	if tables != nil {
		out.files = append(out.files, tables.Files()...)
	}
	if out.database != "" {
		out.files = append(out.files, out.database)
	}
	events.Close()
	if path := filepath.Join(cfg.Output.Dir, logging.EventsFile); fileExists(path) {
		out.files = append(out.files, path)
	}
	return out, nil
}

func uploadResults(ctx context.Context, cfg *config.Config, logger *slog.Logger, files []string) error {
	u, err := report.NewUploader(ctx, cfg.Output.S3URI, cfg.Output.S3Region)
	if err != nil {
		return err
	}
	u.SetLogger(logger)
	n, err := u.UploadFiles(ctx, cfg.Output.Dir, files)
	if err != nil {
		return fmt.Errorf("upload stopped after %d of %d files: %w", n, len(files), err)
	}
	logger.Info("results uploaded", "uri", cfg.Output.S3URI, "files", n)
	return nil
}

func printResult(cmd *cobra.Command, out *runOutput) {
	w := cmd.OutOrStdout()
	res := out.result

	status := "finished"
	if res.Extinct {
		status = "went extinct"
	}
	fmt.Fprintf(w, "Run %s %s after %d days (seed %d, %d restarts)\n", res.RunID, status, res.Days, res.Seed, res.Restarts)
	fmt.Fprintf(w, "  Hosts:      N=%d S=%d I=%d R=%d\n", res.N, res.S, res.I, res.R)
	fmt.Fprintf(w, "  Cases:      %d (%.2f%% of hosts per year)\n", res.TotalCases, res.Incidence)
	fmt.Fprintf(w, "  Tree:       %d tips, %d compactions\n", res.Tips, res.Compactions)
	fmt.Fprintf(w, "  Selection:  trunk %.4f, side branches %.4f, ratio %.4f\n",
		res.Selection.TrunkRate, res.Selection.SideBranchRate, res.Selection.Ratio)
	if len(res.Vaccine) > 0 {
		fmt.Fprintf(w, "  Vaccine:    %d components, top tally %d\n", len(res.Vaccine), res.Vaccine[0].Tally)
	}
	if out.database != "" {
		fmt.Fprintf(w, "  Database:   %s\n", out.database)
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
