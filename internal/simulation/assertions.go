package simulation

import (
	"testing"

	"github.com/nvandessel/reassort/internal/models"
)

// AssertPopulationConserved asserts that every timeseries row has
// S + I + R == N == n. Holds only under swap demography.
func AssertPopulationConserved(t testing.TB, rows []models.TimeseriesRow, n int) {
	t.Helper()
	for _, r := range rows {
		if r.N != n {
			t.Errorf("AssertPopulationConserved: day %d: N = %d, want %d", r.Day, r.N, n)
		}
		if r.S+r.I+r.R != r.N {
			t.Errorf("AssertPopulationConserved: day %d: S+I+R = %d, N = %d", r.Day, r.S+r.I+r.R, r.N)
		}
	}
}

// AssertTimeseriesCadence asserts that rows fall on multiples of step,
// strictly after burnin, in increasing day order.
func AssertTimeseriesCadence(t testing.TB, rows []models.TimeseriesRow, step, burnin int) {
	t.Helper()
	prev := -1
	for _, r := range rows {
		if r.Day%step != 0 {
			t.Errorf("AssertTimeseriesCadence: day %d is not a multiple of %d", r.Day, step)
		}
		if r.Day <= burnin {
			t.Errorf("AssertTimeseriesCadence: day %d recorded during burn-in (%d)", r.Day, burnin)
		}
		if r.Day <= prev {
			t.Errorf("AssertTimeseriesCadence: day %d follows day %d", r.Day, prev)
		}
		prev = r.Day
	}
}

// AssertTreeConnected asserts that the branch records form a single tree:
// every child has one parent, and exactly one parent is never a child.
func AssertTreeConnected(t testing.TB, branches []models.BranchRecord) {
	t.Helper()
	if len(branches) == 0 {
		return
	}
	children := make(map[int64]bool, len(branches))
	for _, b := range branches {
		if children[b.Child.ID] {
			t.Errorf("AssertTreeConnected: node %d has more than one parent", b.Child.ID)
		}
		children[b.Child.ID] = true
		if b.Child.Birth < b.Parent.Birth {
			t.Errorf("AssertTreeConnected: node %d born before its parent %d", b.Child.ID, b.Parent.ID)
		}
	}
	roots := make(map[int64]bool)
	for _, b := range branches {
		if !children[b.Parent.ID] {
			roots[b.Parent.ID] = true
		}
	}
	if len(roots) != 1 {
		t.Errorf("AssertTreeConnected: %d roots, want 1", len(roots))
	}
}

// AssertSameTimeseries asserts that two runs produced identical rows.
func AssertSameTimeseries(t testing.TB, got, want []models.TimeseriesRow) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("AssertSameTimeseries: %d rows, want %d", len(got), len(want))
	}
	for i := range got {
		if got[i] != want[i] {
			t.Errorf("AssertSameTimeseries: row %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}
