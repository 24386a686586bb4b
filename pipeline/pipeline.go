// Package pipeline orchestrates the per-bundle processing state machine.
//
// Each bundle moves through Downloaded → Validated → Resolved → Exported,
// with early exits when the download or validation fails and a
// copy-through branch when no texture resolves. One bad bundle never
// aborts the batch: every skip is logged with a reason tied to the
// offending URL, archive or texture.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/justapithecus/mason/bundle"
	"github.com/justapithecus/mason/exporter"
	"github.com/justapithecus/mason/fetch"
	"github.com/justapithecus/mason/iox"
	"github.com/justapithecus/mason/log"
	"github.com/justapithecus/mason/metrics"
	"github.com/justapithecus/mason/report"
	"github.com/justapithecus/mason/resolve"
	"github.com/justapithecus/mason/store"
	"github.com/justapithecus/mason/types"
)

// Exporter abstracts one exporter invocation for testing.
type Exporter interface {
	Start(ctx context.Context, modelPath, outputRoot string, images []string) error
	Wait() (*exporter.Result, error)
	Kill() error
}

// ExporterFactory creates an Exporter. Used for test injection.
type ExporterFactory func(config *exporter.Config) Exporter

// MaterialProvider supplies the material snapshot for a model. The
// default implementation probes the external tool; tests inject fakes.
type MaterialProvider func(ctx context.Context, config *exporter.Config, modelPath string) ([]exporter.MaterialInfo, error)

// Config configures a batch run.
type Config struct {
	// ListPath is the newline-delimited URL list file.
	ListPath string
	// OutputRoot is the export tree root. Must exist before the run.
	OutputRoot string
	// ImageFormats are the supported texture extensions, leading dot
	// included, order-significant.
	ImageFormats []string
	// ModelFormats are the recognized model extensions.
	ModelFormats []string
	// Tags is the ordered tag→slot mapping.
	Tags types.TagMapping
	// Exporter configures the external authoring tool.
	Exporter exporter.Config
	// DownloadTimeout bounds each download. Zero means unbounded.
	DownloadTimeout time.Duration
	// Concurrency is the fetch worker pool size.
	Concurrency int
	// Meta is the batch identity.
	Meta *types.BatchMeta
	// Collector records batch metrics. Nil disables metrics.
	Collector *metrics.Collector
	// Store optionally mirrors finished bundle directories. Nil disables
	// publication.
	Store store.Store
	// ExporterFactory overrides exporter creation (for testing).
	ExporterFactory ExporterFactory
	// Materials overrides the material snapshot source (for testing).
	Materials MaterialProvider
}

// Orchestrator runs one batch end-to-end.
type Orchestrator struct {
	config    *Config
	logger    *log.Logger
	fetcher   *fetch.Fetcher
	validator *bundle.Validator
	resolver  *resolve.Resolver
}

// NewOrchestrator creates a batch orchestrator.
// Returns an error when batch metadata is invalid.
func NewOrchestrator(config *Config) (*Orchestrator, error) {
	if err := config.Meta.Validate(); err != nil {
		return nil, fmt.Errorf("invalid batch metadata: %w", err)
	}

	return &Orchestrator{
		config:    config,
		logger:    log.NewLogger(config.Meta),
		fetcher:   fetch.NewFetcher(config.OutputRoot, config.DownloadTimeout),
		validator: bundle.NewValidator(config.ModelFormats, config.ImageFormats),
		resolver:  resolve.NewResolver(config.Tags, config.ImageFormats),
	}, nil
}

// Execute runs the batch: fetch all URLs, process each bundle in input
// order, remove the staging directory, and build the batch report.
//
// Structural failures (unreadable list file, missing output root) abort
// before any bundle is processed. Per-bundle failures are folded into
// the report. Cancellation stops between bundles; already-processed
// bundles stay in the returned report alongside the context error.
func (o *Orchestrator) Execute(ctx context.Context) (*report.BatchReport, error) {
	start := time.Now()

	urls, err := fetch.ReadLinks(o.config.ListPath)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(o.config.OutputRoot); err != nil {
		return nil, fmt.Errorf("output root %s does not exist: %w", o.config.OutputRoot, err)
	}

	o.logger.Info("starting batch", map[string]any{
		"list":  o.config.ListPath,
		"out":   o.config.OutputRoot,
		"links": len(urls),
	})

	downloads := o.fetcher.FetchAll(ctx, urls, o.config.Concurrency)

	batch := &report.BatchReport{
		BatchID:   o.config.Meta.BatchID,
		Version:   types.Version,
		StartedAt: o.config.Meta.StartedAt,
	}

	var runErr error
	for _, dl := range downloads {
		if err := ctx.Err(); err != nil {
			o.logger.Warn("batch canceled", map[string]any{"error": err.Error()})
			runErr = err
			break
		}
		batch.Bundles = append(batch.Bundles, o.processBundle(ctx, dl))
	}

	o.cleanupStaging()

	batch.DurationMs = time.Since(start).Milliseconds()
	snap := o.config.Collector.Snapshot()
	batch.Metrics = &snap

	o.logger.Info("batch finished", map[string]any{
		"bundles":     len(batch.Bundles),
		"duration_ms": batch.DurationMs,
		"succeeded":   batch.Succeeded(),
	})

	return batch, runErr
}

// processBundle walks one bundle through the state machine and returns
// its report entry.
func (o *Orchestrator) processBundle(ctx context.Context, dl types.DownloadResult) report.BundleEntry {
	start := time.Now()
	o.config.Collector.IncBundleStarted()
	o.logger.Info("processing bundle", map[string]any{"url": dl.URL})

	entry := report.BundleEntry{URL: dl.URL, Archive: dl.LocalPath}
	defer func() { entry.DurationMs = time.Since(start).Milliseconds() }()

	if !dl.Succeeded {
		o.config.Collector.IncDownloadFailed()
		o.config.Collector.IncBundleSkippedDownload()
		o.logger.Warn("download failed, bundle skipped", map[string]any{
			"url":   dl.URL,
			"error": dl.Message,
		})
		entry.Status = types.StatusSkippedDownload
		entry.Message = dl.Message
		return entry
	}
	o.config.Collector.IncDownloadSucceeded()

	b, err := o.validator.Validate(dl.LocalPath)
	if err != nil {
		o.config.Collector.IncBundleSkippedValidation()
		o.logger.Warn("validation failed, bundle skipped", map[string]any{
			"url":     dl.URL,
			"archive": dl.LocalPath,
			"error":   err.Error(),
		})
		entry.Status = types.StatusSkippedValidation
		entry.Message = err.Error()
		return entry
	}
	entry.ModelStem = b.ModelStem()

	assignments, failures, err := o.resolveBundle(ctx, b)
	if err != nil {
		o.config.Collector.IncBundleExportFailed()
		o.logger.Error("material snapshot unavailable", map[string]any{
			"url":   dl.URL,
			"model": b.ModelFile,
			"error": err.Error(),
		})
		entry.Status = types.StatusExportFailed
		entry.Message = err.Error()
		return entry
	}
	entry.Assignments = assignments
	entry.Failures = failures

	if len(assignments) == 0 {
		entry.Status, entry.Message = o.copyThrough(b)
	} else {
		entry.Status, entry.Message = o.export(ctx, b)
	}

	if entry.Status.OK() {
		o.publish(ctx, b)
	}
	return entry
}

// resolveBundle snapshots the model's materials and resolves every
// candidate texture. Model-only bundles skip the probe entirely.
func (o *Orchestrator) resolveBundle(ctx context.Context, b *types.Bundle) ([]types.Assignment, []types.ResolutionFailure, error) {
	if len(b.ImageFiles) == 0 {
		return nil, nil, nil
	}

	probe := o.config.Materials
	if probe == nil {
		probe = exporter.ProbeMaterials
	}
	materials, err := probe(ctx, &o.config.Exporter, b.ModelFile)
	if err != nil {
		return nil, nil, err
	}

	resolutions := o.resolver.Resolve(
		b.ModelStem(), b.ImageFiles, exporter.Names(materials), exporter.LookupFunc(materials))

	var assignments []types.Assignment
	var failures []types.ResolutionFailure
	for _, res := range resolutions {
		if res.Assigned() {
			o.config.Collector.IncTextureResolved()
			assignments = append(assignments, *res.Assignment)
			continue
		}
		o.config.Collector.IncTextureFailed(string(res.Failure.Reason))
		o.logger.Warn("texture not resolved", map[string]any{
			"texture": res.Failure.Texture,
			"reason":  string(res.Failure.Reason),
			"detail":  res.Failure.Detail,
		})
		failures = append(failures, *res.Failure)
	}
	return assignments, failures, nil
}

// copyThrough copies the model unmodified into the export tree. This is
// a deliberate degraded-success path, not a failure.
func (o *Orchestrator) copyThrough(b *types.Bundle) (types.BundleStatus, string) {
	stem := b.ModelStem()
	dest := filepath.Join(o.config.OutputRoot, stem, filepath.Base(b.ModelFile))

	if err := copyFile(b.ModelFile, dest); err != nil {
		o.config.Collector.IncBundleExportFailed()
		o.logger.Error("copy-through failed", map[string]any{
			"model": b.ModelFile,
			"dest":  dest,
			"error": err.Error(),
		})
		return types.StatusExportFailed, err.Error()
	}

	o.config.Collector.IncBundleCopiedThrough()
	o.logger.Warn("no usable textures, model copied unmodified", map[string]any{
		"archive": b.Archive,
		"dest":    dest,
	})
	return types.StatusCopiedThrough, "no usable textures, model copied unmodified"
}

// export invokes the external authoring tool with the model, the output
// root and the full original candidate image list — the tool re-derives
// resolution internally against the live scene.
func (o *Orchestrator) export(ctx context.Context, b *types.Bundle) (types.BundleStatus, string) {
	factory := o.config.ExporterFactory
	if factory == nil {
		factory = func(config *exporter.Config) Exporter { return exporter.NewManager(config) }
	}

	mgr := factory(&o.config.Exporter)
	if err := mgr.Start(ctx, b.ModelFile, o.config.OutputRoot, b.ImageFiles); err != nil {
		o.config.Collector.IncBundleExportFailed()
		o.logger.Error("failed to start exporter", map[string]any{
			"model": b.ModelFile,
			"error": err.Error(),
		})
		return types.StatusExportFailed, fmt.Sprintf("failed to start exporter: %v", err)
	}

	result, err := mgr.Wait()
	if err != nil {
		_ = mgr.Kill()
		o.config.Collector.IncBundleExportFailed()
		o.logger.Error("exporter wait failed", map[string]any{
			"model": b.ModelFile,
			"error": err.Error(),
		})
		return types.StatusExportFailed, fmt.Sprintf("exporter wait failed: %v", err)
	}

	for _, line := range result.StdoutLines {
		o.logger.Debug("exporter output", map[string]any{"line": line})
	}
	if result.Stderr != "" {
		o.logger.Warn("exporter stderr", map[string]any{"output": result.Stderr})
	}

	ok, message := exporter.Describe(result)
	if !ok {
		o.config.Collector.IncBundleExportFailed()
		o.logger.Error("export failed", map[string]any{
			"model":     b.ModelFile,
			"exit_code": result.ExitCode,
			"message":   message,
		})
		return types.StatusExportFailed, message
	}

	o.config.Collector.IncBundleExported()
	o.logger.Info("export finished", map[string]any{
		"model":   b.ModelFile,
		"message": message,
	})
	return types.StatusExported, message
}

// publish mirrors the finished bundle directory into the configured
// store. Publication failures are warnings; the export itself stands.
func (o *Orchestrator) publish(ctx context.Context, b *types.Bundle) {
	if o.config.Store == nil {
		return
	}

	stem := b.ModelStem()
	localDir := filepath.Join(o.config.OutputRoot, stem)
	if err := store.Publish(ctx, o.config.Store, localDir, stem); err != nil {
		o.config.Collector.IncStoreWriteFailure()
		o.logger.Warn("publication failed", map[string]any{
			"dir":   localDir,
			"error": err.Error(),
		})
		return
	}
	o.config.Collector.IncStoreWriteSuccess()
}

// cleanupStaging removes the download staging directory. Failure to
// remove it is logged, not fatal.
func (o *Orchestrator) cleanupStaging() {
	tmp := filepath.Join(o.config.OutputRoot, "tmp")
	if err := os.RemoveAll(tmp); err != nil {
		o.logger.Warn("failed to remove staging directory", map[string]any{
			"dir":   tmp,
			"error": err.Error(),
		})
	}
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("cannot open %s: %w", src, err)
	}
	defer iox.DiscardClose(in)

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("cannot create %s: %w", filepath.Dir(dest), err)
	}

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("cannot create %s: %w", dest, err)
	}
	defer iox.DiscardClose(out)

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("cannot write %s: %w", dest, err)
	}
	return nil
}
