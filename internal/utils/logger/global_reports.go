package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

type StringListReport struct {
	Title string
	Items []string
	mu    sync.Mutex
}

// GlobalFetchReport lists every artifact URL fetched during the current run.
var GlobalFetchReport = &StringListReport{Title: "FetchedFiles"}

// Add appends an item to the report.
func (r *StringListReport) Add(item string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Items = append(r.Items, item)
}

// Snapshot returns a copy of the recorded items.
func (r *StringListReport) Snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.Items...)
}

// RecordFetched adds url to the global fetch report.
func RecordFetched(url string) {
	GlobalFetchReport.Add(url)
}

// WriteToFile appends the report to reportDir/fetchurl-<title>.txt and resets
// it. The title is sanitized for use in a filename.
func (r *StringListReport) WriteToFile(reportDir string) (string, error) {
	if err := os.MkdirAll(reportDir, 0755); err != nil {
		return "", fmt.Errorf("creating report directory: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	title := r.Title
	if title == "" {
		title = "untitled"
	}
	safeTitle := make([]rune, 0, len(title))
	for _, c := range title {
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '-' {
			safeTitle = append(safeTitle, c)
		} else {
			safeTitle = append(safeTitle, '_')
		}
	}

	reportFullPath := filepath.Join(reportDir, fmt.Sprintf("fetchurl-%s.txt", string(safeTitle)))

	f, err := os.OpenFile(reportFullPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return "", fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	for _, item := range r.Items {
		if _, err := fmt.Fprintln(f, item); err != nil {
			return "", fmt.Errorf("writing to file: %w", err)
		}
	}
	if _, err := fmt.Fprintln(f); err != nil {
		return "", fmt.Errorf("writing new line to file: %w", err)
	}

	r.Items = nil
	return reportFullPath, nil
}
