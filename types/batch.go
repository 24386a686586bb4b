package types

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// BundleStatus is the terminal state of one bundle's processing.
type BundleStatus string

const (
	// StatusExported means the bundle was resolved and re-exported by the
	// external authoring tool.
	StatusExported BundleStatus = "exported"
	// StatusCopiedThrough means the bundle had no usable textures and the
	// model was copied unmodified into the export tree. Degraded success,
	// not a failure.
	StatusCopiedThrough BundleStatus = "copied_through"
	// StatusSkippedDownload means the download failed and the bundle was
	// never opened.
	StatusSkippedDownload BundleStatus = "skipped_download_failed"
	// StatusSkippedValidation means the archive failed structural
	// validation (malformed zip or missing model file).
	StatusSkippedValidation BundleStatus = "skipped_validation_failed"
	// StatusExportFailed means the external authoring tool reported a
	// failure (non-zero exit or missing result summary).
	StatusExportFailed BundleStatus = "export_failed"
)

// OK reports whether the status counts as success for the batch exit code.
// Copy-through is a deliberate degraded-success path.
func (s BundleStatus) OK() bool {
	return s == StatusExported || s == StatusCopiedThrough
}

// BatchMeta identifies one batch run. All log lines and report records
// carry the batch ID.
type BatchMeta struct {
	BatchID   string    `json:"batch_id" msgpack:"batch_id"`
	StartedAt time.Time `json:"started_at" msgpack:"started_at"`
}

// NewBatchMeta creates batch metadata with a fresh UUID.
func NewBatchMeta() *BatchMeta {
	return &BatchMeta{
		BatchID:   uuid.New().String(),
		StartedAt: time.Now().UTC(),
	}
}

// Validate checks batch metadata invariants.
func (m *BatchMeta) Validate() error {
	if m == nil {
		return fmt.Errorf("batch metadata is nil")
	}
	if m.BatchID == "" {
		return fmt.Errorf("batch ID must not be empty")
	}
	return nil
}
