package backtest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Writer persists run artifacts as JSON under a date-partitioned directory.
type Writer struct {
	outputDir string
}

// NewWriter creates a writer rooted at outputDir/<date>.
func NewWriter(outputDir string) *Writer {
	return &Writer{outputDir: filepath.Join(outputDir, time.Now().Format("2006-01-02"))}
}

// OutputDir returns the full output directory path.
func (w *Writer) OutputDir() string { return w.outputDir }

// WriteJSON marshals v into <dir>/<name>.json. Callers sanitize numeric
// content before handing it over; nothing non-finite may reach the file.
func (w *Writer) WriteJSON(name string, v interface{}) (string, error) {
	if err := os.MkdirAll(w.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(w.outputDir, name+".json")
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal %s artifact: %w", name, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s artifact: %w", name, err)
	}
	return path, nil
}
