package store

import (
	"context"
	"slices"
	"sync"

	"github.com/nvandessel/reassort/internal/models"
)

// MemoryRecorder implements models.Recorder by keeping every output in
// memory. Used by tests and by callers that consume results directly.
type MemoryRecorder struct {
	mu sync.RWMutex

	run        models.RunInfo
	timeseries []models.TimeseriesRow
	infected   []models.InfectedSample
	immunity   []models.ImmunitySample
	tips       []models.TipRecord
	branches   []models.BranchRecord
	selection  *models.SelectionSummary
	vaccine    []models.VaccineRecord
	summary    *models.RunSummary
	resets     int
	closed     bool
}

// NewMemoryRecorder creates an empty in-memory recorder.
func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{}
}

// Begin implements models.Recorder.
func (m *MemoryRecorder) Begin(ctx context.Context, run models.RunInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.run = run
	return nil
}

// Reset implements models.Recorder.
func (m *MemoryRecorder) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timeseries = nil
	m.infected = nil
	m.immunity = nil
	m.resets++
	return nil
}

// Timeseries implements models.Recorder.
func (m *MemoryRecorder) Timeseries(ctx context.Context, row models.TimeseriesRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timeseries = append(m.timeseries, row)
	return nil
}

// InfectedSamples implements models.Recorder.
func (m *MemoryRecorder) InfectedSamples(ctx context.Context, samples []models.InfectedSample) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infected = append(m.infected, samples...)
	return nil
}

// ImmunitySamples implements models.Recorder.
func (m *MemoryRecorder) ImmunitySamples(ctx context.Context, samples []models.ImmunitySample) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.immunity = append(m.immunity, samples...)
	return nil
}

// Tips implements models.Recorder.
func (m *MemoryRecorder) Tips(ctx context.Context, tips []models.TipRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tips = slices.Clone(tips)
	return nil
}

// Branches implements models.Recorder.
func (m *MemoryRecorder) Branches(ctx context.Context, branches []models.BranchRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.branches = slices.Clone(branches)
	return nil
}

// Selection implements models.Recorder.
func (m *MemoryRecorder) Selection(ctx context.Context, summary models.SelectionSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.selection = &summary
	return nil
}

// Vaccine implements models.Recorder.
func (m *MemoryRecorder) Vaccine(ctx context.Context, composition []models.VaccineRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vaccine = slices.Clone(composition)
	return nil
}

// Finish implements models.Recorder.
func (m *MemoryRecorder) Finish(ctx context.Context, summary models.RunSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summary = &summary
	return nil
}

// Close implements models.Recorder.
func (m *MemoryRecorder) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Run returns the run info passed to Begin.
func (m *MemoryRecorder) Run() models.RunInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.run
}

// TimeseriesRows returns a copy of the recorded timeseries.
func (m *MemoryRecorder) TimeseriesRows() []models.TimeseriesRow {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.timeseries)
}

// Infected returns a copy of the recorded infected-host samples.
func (m *MemoryRecorder) Infected() []models.InfectedSample {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.infected)
}

// Immunity returns a copy of the recorded immunity samples.
func (m *MemoryRecorder) Immunity() []models.ImmunitySample {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.immunity)
}

// TipRecords returns the recorded tips.
func (m *MemoryRecorder) TipRecords() []models.TipRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.tips)
}

// BranchRecords returns the recorded branches.
func (m *MemoryRecorder) BranchRecords() []models.BranchRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.branches)
}

// SelectionSummary returns the recorded selection summary, or nil.
func (m *MemoryRecorder) SelectionSummary() *models.SelectionSummary {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.selection
}

// VaccineRecords returns the recorded vaccine composition.
func (m *MemoryRecorder) VaccineRecords() []models.VaccineRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.vaccine)
}

// Summary returns the run summary passed to Finish, or nil.
func (m *MemoryRecorder) Summary() *models.RunSummary {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.summary
}

// Resets returns how many times Reset was called.
func (m *MemoryRecorder) Resets() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.resets
}

// Closed reports whether Close was called.
func (m *MemoryRecorder) Closed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}
