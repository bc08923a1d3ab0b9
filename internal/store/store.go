// Package store persists simulation results. SQLiteRecorder writes every
// run into a SQLite results database keyed by run id, Reader queries it back,
// and MemoryRecorder keeps results in memory for tests and embedding.
package store

import "github.com/nvandessel/reassort/internal/models"

var (
	_ models.Recorder = (*SQLiteRecorder)(nil)
	_ models.Recorder = (*MemoryRecorder)(nil)
)
