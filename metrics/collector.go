// Package metrics provides per-batch metrics collection.
//
// The Collector accumulates counters during a single batch. It is a leaf
// package with no internal dependencies. All increment methods are
// nil-receiver safe so wiring a collector stays optional.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of the batch counters.
// Safe to read concurrently after creation.
type Snapshot struct {
	// Bundle lifecycle
	BundlesStarted    int64 `json:"bundles_started" msgpack:"bundles_started"`
	BundlesExported   int64 `json:"bundles_exported" msgpack:"bundles_exported"`
	BundlesCopied     int64 `json:"bundles_copied_through" msgpack:"bundles_copied_through"`
	BundlesSkippedDL  int64 `json:"bundles_skipped_download" msgpack:"bundles_skipped_download"`
	BundlesSkippedVal int64 `json:"bundles_skipped_validation" msgpack:"bundles_skipped_validation"`
	BundlesFailed     int64 `json:"bundles_export_failed" msgpack:"bundles_export_failed"`

	// Downloads
	DownloadsSucceeded int64 `json:"downloads_succeeded" msgpack:"downloads_succeeded"`
	DownloadsFailed    int64 `json:"downloads_failed" msgpack:"downloads_failed"`

	// Resolution
	TexturesResolved int64            `json:"textures_resolved" msgpack:"textures_resolved"`
	TexturesFailed   int64            `json:"textures_failed" msgpack:"textures_failed"`
	FailedByReason   map[string]int64 `json:"failed_by_reason,omitempty" msgpack:"failed_by_reason,omitempty"`

	// Store
	StoreWriteSuccess int64 `json:"store_write_success" msgpack:"store_write_success"`
	StoreWriteFailure int64 `json:"store_write_failure" msgpack:"store_write_failure"`
}

// Collector accumulates metrics during a single batch.
// Thread-safe via sync.Mutex.
type Collector struct {
	mu sync.Mutex

	bundlesStarted    int64
	bundlesExported   int64
	bundlesCopied     int64
	bundlesSkippedDL  int64
	bundlesSkippedVal int64
	bundlesFailed     int64

	downloadsSucceeded int64
	downloadsFailed    int64

	texturesResolved int64
	texturesFailed   int64
	failedByReason   map[string]int64

	storeWriteSuccess int64
	storeWriteFailure int64
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{failedByReason: make(map[string]int64)}
}

// IncBundleStarted increments the started-bundle counter.
func (c *Collector) IncBundleStarted() {
	if c == nil {
		return
	}
	c.inc(&c.bundlesStarted)
}

// IncBundleExported increments the exported-bundle counter.
func (c *Collector) IncBundleExported() {
	if c == nil {
		return
	}
	c.inc(&c.bundlesExported)
}

// IncBundleCopiedThrough increments the copy-through counter.
func (c *Collector) IncBundleCopiedThrough() {
	if c == nil {
		return
	}
	c.inc(&c.bundlesCopied)
}

// IncBundleSkippedDownload increments the download-skip counter.
func (c *Collector) IncBundleSkippedDownload() {
	if c == nil {
		return
	}
	c.inc(&c.bundlesSkippedDL)
}

// IncBundleSkippedValidation increments the validation-skip counter.
func (c *Collector) IncBundleSkippedValidation() {
	if c == nil {
		return
	}
	c.inc(&c.bundlesSkippedVal)
}

// IncBundleExportFailed increments the failed-export counter.
func (c *Collector) IncBundleExportFailed() {
	if c == nil {
		return
	}
	c.inc(&c.bundlesFailed)
}

// IncDownloadSucceeded increments the download success counter.
func (c *Collector) IncDownloadSucceeded() {
	if c == nil {
		return
	}
	c.inc(&c.downloadsSucceeded)
}

// IncDownloadFailed increments the download failure counter.
func (c *Collector) IncDownloadFailed() {
	if c == nil {
		return
	}
	c.inc(&c.downloadsFailed)
}

// IncTextureResolved increments the resolved-texture counter.
func (c *Collector) IncTextureResolved() {
	if c == nil {
		return
	}
	c.inc(&c.texturesResolved)
}

// IncTextureFailed increments the failed-texture counter, keyed by reason.
func (c *Collector) IncTextureFailed(reason string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.texturesFailed++
	if c.failedByReason == nil {
		c.failedByReason = make(map[string]int64)
	}
	c.failedByReason[reason]++
}

// IncStoreWriteSuccess increments the store write success counter.
func (c *Collector) IncStoreWriteSuccess() {
	if c == nil {
		return
	}
	c.inc(&c.storeWriteSuccess)
}

// IncStoreWriteFailure increments the store write failure counter.
func (c *Collector) IncStoreWriteFailure() {
	if c == nil {
		return
	}
	c.inc(&c.storeWriteFailure)
}

func (c *Collector) inc(counter *int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	*counter++
}

// Snapshot returns an immutable copy of all counters.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	byReason := make(map[string]int64, len(c.failedByReason))
	for k, v := range c.failedByReason {
		byReason[k] = v
	}

	return Snapshot{
		BundlesStarted:    c.bundlesStarted,
		BundlesExported:   c.bundlesExported,
		BundlesCopied:     c.bundlesCopied,
		BundlesSkippedDL:  c.bundlesSkippedDL,
		BundlesSkippedVal: c.bundlesSkippedVal,
		BundlesFailed:     c.bundlesFailed,

		DownloadsSucceeded: c.downloadsSucceeded,
		DownloadsFailed:    c.downloadsFailed,

		TexturesResolved: c.texturesResolved,
		TexturesFailed:   c.texturesFailed,
		FailedByReason:   byReason,

		StoreWriteSuccess: c.storeWriteSuccess,
		StoreWriteFailure: c.storeWriteFailure,
	}
}
