// Package recorder writes a rotating JSONL trace of calculator operations
// for after-the-fact debugging of flaky page interactions.
package recorder

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

const (
	MaxRotatedFiles = 3
	DefaultTraceDir = "data/traces"
)

// Event is a single record in an operation trace.
type Event struct {
	Timestamp   time.Time   `json:"ts"`
	Type        string      `json:"type"`
	OperationID string      `json:"operation_id,omitempty"`
	Data        interface{} `json:"data"`
}

// Recorder manages rotating trace files. A nil Recorder is valid and
// discards everything, so callers never have to guard trace calls.
type Recorder struct {
	mu      sync.Mutex
	file    *os.File
	encoder *json.Encoder
	baseDir string
}

// New creates a recorder writing under baseDir, creating it if needed.
func New(baseDir string) (*Recorder, error) {
	if baseDir == "" {
		baseDir = DefaultTraceDir
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, err
	}
	return &Recorder{baseDir: baseDir}, nil
}

// Begin opens a fresh trace file for one calculator operation, rotating out
// the oldest files so only the last few operations are kept.
func (r *Recorder) Begin(operationID string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file != nil {
		_ = r.file.Close()
		r.file = nil
		r.encoder = nil
	}

	if err := r.rotate(); err != nil {
		return
	}

	name := fmt.Sprintf("op_%s_%d.jsonl", operationID, time.Now().UnixMilli())
	f, err := os.Create(filepath.Join(r.baseDir, name))
	if err != nil {
		return
	}
	r.file = f
	r.encoder = json.NewEncoder(f)
}

// Log appends an event to the current trace. Dropped silently when no trace
// is open; tracing never affects the operation itself.
func (r *Recorder) Log(eventType, operationID string, data interface{}) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.encoder == nil {
		return
	}
	_ = r.encoder.Encode(Event{
		Timestamp:   time.Now(),
		Type:        eventType,
		OperationID: operationID,
		Data:        data,
	})
}

// rotate keeps only the newest MaxRotatedFiles-1 traces so the one about to
// be created fits the cap.
func (r *Recorder) rotate() error {
	entries, err := os.ReadDir(r.baseDir)
	if err != nil {
		return err
	}

	type trace struct {
		name string
		mod  time.Time
	}
	var traces []trace
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".jsonl" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		traces = append(traces, trace{e.Name(), info.ModTime()})
	}

	sort.Slice(traces, func(i, j int) bool {
		return traces[i].mod.After(traces[j].mod)
	})

	if len(traces) >= MaxRotatedFiles {
		for i := MaxRotatedFiles - 1; i < len(traces); i++ {
			_ = os.Remove(filepath.Join(r.baseDir, traces[i].name))
		}
	}
	return nil
}

// Close finishes the current trace file.
func (r *Recorder) Close() error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file != nil {
		err := r.file.Close()
		r.file = nil
		r.encoder = nil
		return err
	}
	return nil
}
