package metrics

import (
	"sync"
	"testing"
)

func TestCollector_Counters(t *testing.T) {
	c := NewCollector()

	c.IncBundleStarted()
	c.IncBundleStarted()
	c.IncBundleExported()
	c.IncBundleCopiedThrough()
	c.IncBundleSkippedDownload()
	c.IncDownloadSucceeded()
	c.IncDownloadFailed()
	c.IncTextureResolved()
	c.IncTextureFailed("no_matching_tag")
	c.IncTextureFailed("no_matching_tag")
	c.IncTextureFailed("name_mismatch")
	c.IncStoreWriteSuccess()

	snap := c.Snapshot()
	if snap.BundlesStarted != 2 {
		t.Errorf("BundlesStarted: got %d, want 2", snap.BundlesStarted)
	}
	if snap.BundlesExported != 1 || snap.BundlesCopied != 1 || snap.BundlesSkippedDL != 1 {
		t.Errorf("bundle counters wrong: %+v", snap)
	}
	if snap.TexturesFailed != 3 {
		t.Errorf("TexturesFailed: got %d, want 3", snap.TexturesFailed)
	}
	if snap.FailedByReason["no_matching_tag"] != 2 {
		t.Errorf("FailedByReason[no_matching_tag]: got %d, want 2", snap.FailedByReason["no_matching_tag"])
	}
	if snap.StoreWriteSuccess != 1 {
		t.Errorf("StoreWriteSuccess: got %d, want 1", snap.StoreWriteSuccess)
	}
}

// Every increment method must tolerate a nil receiver so wiring a
// collector stays optional.
func TestCollector_NilSafe(t *testing.T) {
	var c *Collector
	c.IncBundleStarted()
	c.IncBundleExported()
	c.IncBundleCopiedThrough()
	c.IncBundleSkippedDownload()
	c.IncBundleSkippedValidation()
	c.IncBundleExportFailed()
	c.IncDownloadSucceeded()
	c.IncDownloadFailed()
	c.IncTextureResolved()
	c.IncTextureFailed("x")
	c.IncStoreWriteSuccess()
	c.IncStoreWriteFailure()
	snap := c.Snapshot()
	if snap.BundlesStarted != 0 {
		t.Errorf("nil collector snapshot must be zero, got %+v", snap)
	}
}

func TestCollector_ConcurrentIncrements(t *testing.T) {
	c := NewCollector()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.IncTextureResolved()
			c.IncTextureFailed("slot_not_found_on_material")
		}()
	}
	wg.Wait()

	snap := c.Snapshot()
	if snap.TexturesResolved != 50 || snap.TexturesFailed != 50 {
		t.Errorf("got resolved=%d failed=%d, want 50/50", snap.TexturesResolved, snap.TexturesFailed)
	}
}

// Mutating a snapshot's map must not leak back into the collector.
func TestSnapshot_Isolated(t *testing.T) {
	c := NewCollector()
	c.IncTextureFailed("name_mismatch")

	snap := c.Snapshot()
	snap.FailedByReason["name_mismatch"] = 99

	if got := c.Snapshot().FailedByReason["name_mismatch"]; got != 1 {
		t.Errorf("collector state leaked: got %d, want 1", got)
	}
}
