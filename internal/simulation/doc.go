// Package simulation drives a complete run: it builds a fresh clock,
// ancestry tree, genome factory and host population for every attempt,
// steps the population one day at a time, and hands timeseries rows,
// samples and the finalized tree to a models.Recorder.
//
// The runner owns the output cadence. Timeseries rows are emitted every
// sampling step after burn-in, the vaccine composition is selected on the
// program start day (and on every update interval afterwards), and the
// ancestry graph is compacted every streamline interval. When the last
// infection clears, the run restarts from scratch or stops, depending on
// configuration.
//
// Usage:
//
//	cfg, _, err := config.Load(path, args)
//	if err != nil {
//	    return err
//	}
//	runner := simulation.NewRunner(cfg, recorder)
//	runner.SetLogger(logger, events)
//	result, err := runner.Run(ctx)
package simulation
