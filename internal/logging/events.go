package logging

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EventsFile is the event log's name inside the output directory.
const EventsFile = "events.jsonl"

// EventLogger appends simulation events to the run's event log. Every line
// carries the event name, the simulation day, the run ID and a wall-clock
// timestamp next to the caller's fields, so a run can be replayed against
// its timeseries. A nil *EventLogger discards everything, which is what
// NewEventLogger hands back for info-level runs.
type EventLogger struct {
	mu    sync.Mutex
	file  *os.File
	runID string
}

// NewEventLogger opens dir/events.jsonl for append and tags every event
// with runID. It returns nil at info level or when the file cannot be
// opened.
func NewEventLogger(dir, level, runID string) *EventLogger {
	if ParseLevel(level) == slog.LevelInfo {
		return nil
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil
	}
	f, err := os.OpenFile(filepath.Join(dir, EventsFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil
	}
	return &EventLogger{file: f, runID: runID}
}

// Log records event on simulation day with the given fields. The fields
// map is copied, never modified.
func (el *EventLogger) Log(event string, day int, fields map[string]any) {
	if el == nil {
		return
	}

	entry := make(map[string]any, len(fields)+4)
	for k, v := range fields {
		entry[k] = v
	}
	entry["event"] = event
	entry["day"] = day
	entry["time"] = time.Now().UTC().Format(time.RFC3339Nano)
	if el.runID != "" {
		entry["run_id"] = el.runID
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	data = append(data, '\n')

	el.mu.Lock()
	defer el.mu.Unlock()
	if el.file != nil {
		_, _ = el.file.Write(data)
	}
}

// Close closes the log file. Events logged afterwards are dropped.
func (el *EventLogger) Close() {
	if el == nil {
		return
	}
	el.mu.Lock()
	defer el.mu.Unlock()
	if el.file != nil {
		el.file.Close()
		el.file = nil
	}
}
