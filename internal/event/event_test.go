package event

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

type failingEmitter struct{ calls int }

func (f *failingEmitter) Emit(Event) error {
	f.calls++
	return errors.New("broken pipe")
}

func TestJSONEmitterOmitsUnderlyingError(t *testing.T) {
	var buf bytes.Buffer
	em := NewJSONEmitter(&buf)
	err := em.Emit(Event{
		Timestamp: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		RunID:     "run-1",
		Type:      ErrorOccurred,
		Message:   "Downloading php failed.",
		Component: "php",
		Error:     "download failed [php]: timeout",
		Err:       errors.New("timeout"),
	})
	if err != nil {
		t.Fatalf("Emit failed: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if decoded["event"] != "error_occurred" || decoded["component"] != "php" {
		t.Errorf("unexpected document %v", decoded)
	}
	if _, ok := decoded["Err"]; ok {
		t.Errorf("underlying error must not be serialized")
	}
	if _, ok := decoded["package"]; ok {
		t.Errorf("empty package status should be omitted")
	}
}

func TestDrainReadsUntilClosed(t *testing.T) {
	ch := make(chan Event, 3)
	ch <- Event{Type: ProgressChanged, Percent: 10}
	ch <- Event{Type: PackageCompleted, Package: &PackageStatus{ID: "apache", Success: true}}
	ch <- Event{Type: InstallationCompleted, Percent: 100}
	close(ch)

	var buf bytes.Buffer
	if err := Drain(ch, NewJSONEmitter(&buf)); err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if lines := strings.Count(buf.String(), "\n"); lines != 3 {
		t.Errorf("expected 3 documents, got %d", lines)
	}
}

func TestDrainKeepsReadingAfterError(t *testing.T) {
	ch := make(chan Event, 2)
	ch <- Event{}
	ch <- Event{}
	close(ch)

	em := &failingEmitter{}
	if err := Drain(ch, em); err == nil {
		t.Errorf("expected emitter error")
	}
	if em.calls != 2 {
		t.Errorf("expected every event to be offered, got %d", em.calls)
	}
}
