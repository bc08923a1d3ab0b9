package models

import (
	"context"
	"errors"
)

// Recorder receives the outputs of a simulation run. Implementations own the
// output format; the simulation only decides what is recorded and when.
type Recorder interface {
	// Begin is called once before the first simulated day.
	Begin(ctx context.Context, run RunInfo) error

	// Reset discards per-attempt output after an extinction restart.
	Reset(ctx context.Context) error

	Timeseries(ctx context.Context, row TimeseriesRow) error
	InfectedSamples(ctx context.Context, samples []InfectedSample) error
	ImmunitySamples(ctx context.Context, samples []ImmunitySample) error

	// Tree outputs, written once at the end of the run.
	Tips(ctx context.Context, tips []TipRecord) error
	Branches(ctx context.Context, branches []BranchRecord) error
	Selection(ctx context.Context, summary SelectionSummary) error
	Vaccine(ctx context.Context, composition []VaccineRecord) error

	// Finish is called once after all tree outputs.
	Finish(ctx context.Context, summary RunSummary) error

	// Close flushes buffered output and releases resources.
	Close() error
}

// MultiRecorder fans every call out to a list of recorders in order. The
// first failing recorder stops the fan-out for that call.
type MultiRecorder struct {
	recorders []Recorder
}

// NewMultiRecorder creates a MultiRecorder, skipping nil entries.
func NewMultiRecorder(recorders ...Recorder) *MultiRecorder {
	m := &MultiRecorder{}
	for _, r := range recorders {
		if r != nil {
			m.recorders = append(m.recorders, r)
		}
	}
	return m
}

func (m *MultiRecorder) each(fn func(Recorder) error) error {
	for _, r := range m.recorders {
		if err := fn(r); err != nil {
			return err
		}
	}
	return nil
}

// Begin implements Recorder.
func (m *MultiRecorder) Begin(ctx context.Context, run RunInfo) error {
	return m.each(func(r Recorder) error { return r.Begin(ctx, run) })
}

// Reset implements Recorder.
func (m *MultiRecorder) Reset(ctx context.Context) error {
	return m.each(func(r Recorder) error { return r.Reset(ctx) })
}

// Timeseries implements Recorder.
func (m *MultiRecorder) Timeseries(ctx context.Context, row TimeseriesRow) error {
	return m.each(func(r Recorder) error { return r.Timeseries(ctx, row) })
}

// InfectedSamples implements Recorder.
func (m *MultiRecorder) InfectedSamples(ctx context.Context, samples []InfectedSample) error {
	return m.each(func(r Recorder) error { return r.InfectedSamples(ctx, samples) })
}

// ImmunitySamples implements Recorder.
func (m *MultiRecorder) ImmunitySamples(ctx context.Context, samples []ImmunitySample) error {
	return m.each(func(r Recorder) error { return r.ImmunitySamples(ctx, samples) })
}

// Tips implements Recorder.
func (m *MultiRecorder) Tips(ctx context.Context, tips []TipRecord) error {
	return m.each(func(r Recorder) error { return r.Tips(ctx, tips) })
}

// Branches implements Recorder.
func (m *MultiRecorder) Branches(ctx context.Context, branches []BranchRecord) error {
	return m.each(func(r Recorder) error { return r.Branches(ctx, branches) })
}

// Selection implements Recorder.
func (m *MultiRecorder) Selection(ctx context.Context, summary SelectionSummary) error {
	return m.each(func(r Recorder) error { return r.Selection(ctx, summary) })
}

// Vaccine implements Recorder.
func (m *MultiRecorder) Vaccine(ctx context.Context, composition []VaccineRecord) error {
	return m.each(func(r Recorder) error { return r.Vaccine(ctx, composition) })
}

// Finish implements Recorder.
func (m *MultiRecorder) Finish(ctx context.Context, summary RunSummary) error {
	return m.each(func(r Recorder) error { return r.Finish(ctx, summary) })
}

// Close closes every recorder, even when some fail, and joins the errors.
func (m *MultiRecorder) Close() error {
	var errs []error
	for _, r := range m.recorders {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
