package events

import (
	"encoding/json"
	"io"
	"sync"
	"time"
)

// Standard scan lifecycle event types.
const (
	TypeScanStart       = "scan-start"
	TypeFileSkipped     = "file-skipped"
	TypeArtifactWritten = "artifact-written"
	TypeScanFinished    = "scan-finished"
	TypeReport          = "report"
)

// Event represents a single NDJSON record of scan progress.
type Event struct {
	Type      string                 `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Message   string                 `json:"message,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// Emitter writes NDJSON events to an io.Writer safely across goroutines.
// Verbose-only events (per-file skips) are suppressed unless enabled.
type Emitter struct {
	writer  io.Writer
	verbose bool
	mu      sync.Mutex
}

// NewEmitter returns a new NDJSON emitter.
func NewEmitter(w io.Writer) *Emitter {
	return &Emitter{writer: w}
}

// SetVerbose enables per-file skip events.
func (e *Emitter) SetVerbose(verbose bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.verbose = verbose
}

// Emit serializes the event to JSON and appends a newline.
func (e *Emitter) Emit(evt Event) error {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}

	payload, err := json.Marshal(evt)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.writer.Write(append(payload, '\n')); err != nil {
		return err
	}

	return nil
}

// FileSkipped records why a file was excluded. Skip reasons are verbose
// diagnostics only; they never enter the report schema.
func (e *Emitter) FileSkipped(path, reason string) {
	e.mu.Lock()
	verbose := e.verbose
	e.mu.Unlock()
	if !verbose {
		return
	}
	// Best-effort: a progress-log write failure must not fail the scan.
	_ = e.Emit(Event{
		Type:   TypeFileSkipped,
		Fields: map[string]interface{}{"path": path, "reason": reason},
	})
}
