// Package report builds and persists batch reports.
//
// Every batch produces one report: a human-oriented JSON document
// (written via --report) and a msgpack record persisted under the output
// root for later inspection with `mason inspect`.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/justapithecus/mason/metrics"
	"github.com/justapithecus/mason/types"
)

// BundleEntry is the per-bundle section of a batch report.
type BundleEntry struct {
	URL       string             `json:"url" msgpack:"url"`
	Archive   string             `json:"archive,omitempty" msgpack:"archive,omitempty"`
	ModelStem string             `json:"model_stem,omitempty" msgpack:"model_stem,omitempty"`
	Status    types.BundleStatus `json:"status" msgpack:"status"`
	// Message is the human-readable reason tied to the terminal status
	// (download error, validation error, exporter summary).
	Message     string                    `json:"message,omitempty" msgpack:"message,omitempty"`
	Assignments []types.Assignment        `json:"assignments,omitempty" msgpack:"assignments,omitempty"`
	Failures    []types.ResolutionFailure `json:"failures,omitempty" msgpack:"failures,omitempty"`
	DurationMs  int64                     `json:"duration_ms" msgpack:"duration_ms"`
}

// BatchReport is the structured result of one batch run.
type BatchReport struct {
	BatchID    string            `json:"batch_id" msgpack:"batch_id"`
	Version    string            `json:"version" msgpack:"version"`
	StartedAt  time.Time         `json:"started_at" msgpack:"started_at"`
	DurationMs int64             `json:"duration_ms" msgpack:"duration_ms"`
	Bundles    []BundleEntry     `json:"bundles" msgpack:"bundles"`
	Metrics    *metrics.Snapshot `json:"metrics,omitempty" msgpack:"metrics,omitempty"`
}

// Succeeded reports whether every bundle reached a success status
// (exported or copied through).
func (r *BatchReport) Succeeded() bool {
	for _, b := range r.Bundles {
		if !b.Status.OK() {
			return false
		}
	}
	return true
}

// WriteJSON writes the report as indented JSON to path.
// If path is "-", writes to stderr.
func WriteJSON(r *BatchReport, path string) error {
	if path == "" {
		return errors.New("report path must not be empty")
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	data = append(data, '\n')

	if path == "-" {
		if _, err := os.Stderr.Write(data); err != nil {
			return fmt.Errorf("failed to write report to stderr: %w", err)
		}
		return nil
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report to %s: %w", path, err)
	}
	return nil
}
