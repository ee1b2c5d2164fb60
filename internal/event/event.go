package event

import (
	"encoding/json"
	"io"
	"sync"
	"time"
)

type Type string

const (
	ProgressChanged       Type = "progress_changed"
	ErrorOccurred         Type = "error_occurred"
	PackageCompleted      Type = "package_completed"
	InstallationCompleted Type = "installation_completed"
)

// PackageStatus describes one finished package install.
type PackageStatus struct {
	ID      string        `json:"id"`
	Success bool          `json:"success"`
	Elapsed time.Duration `json:"elapsed_ns"`
	Path    string        `json:"path,omitempty"`
	Skipped []string      `json:"skipped,omitempty"`
}

// Event is an immutable snapshot sent from an install run to its listener.
type Event struct {
	Timestamp time.Time      `json:"timestamp"`
	RunID     string         `json:"run_id"`
	Type      Type           `json:"event"`
	Phase     string         `json:"phase,omitempty"`
	Percent   int            `json:"percent"`
	Message   string         `json:"message"`
	Component string         `json:"component,omitempty"`
	Error     string         `json:"error,omitempty"`
	Package   *PackageStatus `json:"package,omitempty"`

	// Err is the underlying error of an ErrorOccurred event.
	Err error `json:"-"`
}

type Emitter interface {
	Emit(e Event) error
}

// JSONEmitter writes one JSON document per event.
type JSONEmitter struct {
	enc *json.Encoder
	mu  sync.Mutex
}

func NewJSONEmitter(w io.Writer) *JSONEmitter {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &JSONEmitter{enc: enc}
}

func (e *JSONEmitter) Emit(ev Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enc.Encode(ev)
}

// Drain forwards every event from ch to em until ch is closed. The first
// emitter error is returned after the channel has been fully drained.
func Drain(ch <-chan Event, em Emitter) error {
	var first error
	for ev := range ch {
		if err := em.Emit(ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}
