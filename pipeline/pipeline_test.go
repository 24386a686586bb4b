package pipeline

import (
	"archive/zip"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/justapithecus/mason/exporter"
	"github.com/justapithecus/mason/metrics"
	"github.com/justapithecus/mason/store"
	"github.com/justapithecus/mason/types"
)

// fakeExporter records its invocation and returns a canned result.
type fakeExporter struct {
	result  *exporter.Result
	started bool
	model   string
	outRoot string
	images  []string
}

func (f *fakeExporter) Start(_ context.Context, modelPath, outputRoot string, images []string) error {
	f.started = true
	f.model = modelPath
	f.outRoot = outputRoot
	f.images = images
	return nil
}

func (f *fakeExporter) Wait() (*exporter.Result, error) { return f.result, nil }
func (f *fakeExporter) Kill() error                     { return nil }

func completedResult() *exporter.Result {
	return &exporter.Result{
		ExitCode: 0,
		Summary:  &exporter.Summary{Status: "completed", Message: "ok", Assigned: 1},
	}
}

// carMaterials is a material snapshot with one material exposing "color".
func carMaterials(_ context.Context, _ *exporter.Config, _ string) ([]exporter.MaterialInfo, error) {
	return []exporter.MaterialInfo{
		{Name: "car_body", Attributes: []string{"color", "transparency"}},
	}, nil
}

// zipBytes builds an in-memory zip archive.
func zipBytes(t *testing.T, members map[string]string) []byte {
	t.Helper()
	tmp := filepath.Join(t.TempDir(), "a.zip")
	f, err := os.Create(tmp)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	for name, content := range members {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(tmp)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

// serveZips returns a server mapping /name.zip to archive bytes.
func serveZips(t *testing.T, archives map[string][]byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, ok := archives[filepath.Base(r.URL.Path)]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(data)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeList(t *testing.T, urls ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "links.txt")
	content := ""
	for _, u := range urls {
		content += u + "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func baseConfig(t *testing.T, listPath, outRoot string, factory ExporterFactory) *Config {
	t.Helper()
	return &Config{
		ListPath:        listPath,
		OutputRoot:      outRoot,
		ImageFormats:    []string{".jpg", ".png"},
		ModelFormats:    []string{".fbx"},
		Tags:            types.TagMapping{{Tag: "BC", Slot: "color"}, {Tag: "R", Slot: "roughness"}},
		Exporter:        exporter.Config{BinPath: "unused"},
		DownloadTimeout: 5 * time.Second,
		Meta:            types.NewBatchMeta(),
		Collector:       metrics.NewCollector(),
		ExporterFactory: factory,
		Materials:       carMaterials,
	}
}

func TestExecute_ExportsResolvedBundle(t *testing.T) {
	archives := map[string][]byte{
		"car.zip": zipBytes(t, map[string]string{
			"car.fbx":         "model",
			"car_body_BC.jpg": "basecolor",
		}),
	}
	srv := serveZips(t, archives)
	out := t.TempDir()

	fake := &fakeExporter{result: completedResult()}
	cfg := baseConfig(t, writeList(t, srv.URL+"/car.zip"), out,
		func(*exporter.Config) Exporter { return fake })

	o, err := NewOrchestrator(cfg)
	if err != nil {
		t.Fatalf("NewOrchestrator failed: %v", err)
	}
	batch, err := o.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if len(batch.Bundles) != 1 {
		t.Fatalf("got %d bundle entries, want 1", len(batch.Bundles))
	}
	entry := batch.Bundles[0]
	if entry.Status != types.StatusExported {
		t.Fatalf("status: got %s (%s)", entry.Status, entry.Message)
	}
	if len(entry.Assignments) != 1 {
		t.Fatalf("assignments: got %+v", entry.Assignments)
	}
	a := entry.Assignments[0]
	if a.Material != "car_body" || a.Slot != "color" {
		t.Errorf("unexpected assignment: %+v", a)
	}

	if !fake.started {
		t.Fatal("exporter was not invoked")
	}
	if filepath.Base(fake.model) != "car.fbx" || fake.outRoot != out {
		t.Errorf("exporter argv: model=%s out=%s", fake.model, fake.outRoot)
	}
	// The full original candidate list is passed, not just resolved ones.
	if len(fake.images) != 1 || filepath.Base(fake.images[0]) != "car_body_BC.jpg" {
		t.Errorf("exporter images: %v", fake.images)
	}

	if !batch.Succeeded() {
		t.Error("batch must succeed")
	}
}

// A model-only archive takes the copy-through path: the model lands
// unmodified at <out>/<stem>/<stem>.fbx and the exporter is never run.
func TestExecute_CopyThroughWithoutTextures(t *testing.T) {
	archives := map[string][]byte{
		"chair.zip": zipBytes(t, map[string]string{"chair.fbx": "model-bytes"}),
	}
	srv := serveZips(t, archives)
	out := t.TempDir()

	fake := &fakeExporter{result: completedResult()}
	cfg := baseConfig(t, writeList(t, srv.URL+"/chair.zip"), out,
		func(*exporter.Config) Exporter { return fake })

	o, err := NewOrchestrator(cfg)
	if err != nil {
		t.Fatal(err)
	}
	batch, err := o.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	entry := batch.Bundles[0]
	if entry.Status != types.StatusCopiedThrough {
		t.Fatalf("status: got %s (%s)", entry.Status, entry.Message)
	}
	if fake.started {
		t.Error("exporter must not run on copy-through")
	}

	data, err := os.ReadFile(filepath.Join(out, "chair", "chair.fbx"))
	if err != nil {
		t.Fatalf("copied model missing: %v", err)
	}
	if string(data) != "model-bytes" {
		t.Errorf("copied model content: got %q", data)
	}
	if !batch.Succeeded() {
		t.Error("copy-through is a success status")
	}
}

// All-failed resolution also copies through rather than exporting.
func TestExecute_CopyThroughWhenNothingResolves(t *testing.T) {
	archives := map[string][]byte{
		"car.zip": zipBytes(t, map[string]string{
			"car.fbx":         "model",
			"car_body_XX.jpg": "unknown tag",
		}),
	}
	srv := serveZips(t, archives)
	out := t.TempDir()

	fake := &fakeExporter{result: completedResult()}
	cfg := baseConfig(t, writeList(t, srv.URL+"/car.zip"), out,
		func(*exporter.Config) Exporter { return fake })

	o, _ := NewOrchestrator(cfg)
	batch, err := o.Execute(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	entry := batch.Bundles[0]
	if entry.Status != types.StatusCopiedThrough {
		t.Fatalf("status: got %s", entry.Status)
	}
	if len(entry.Failures) != 1 || entry.Failures[0].Reason != types.ReasonNoMatchingTag {
		t.Errorf("failures: %+v", entry.Failures)
	}
	if fake.started {
		t.Error("exporter must not run when nothing resolves")
	}
}

// One failed download and one invalid archive must not abort the batch.
func TestExecute_FailureIsolationAcrossBundles(t *testing.T) {
	archives := map[string][]byte{
		"good.zip": zipBytes(t, map[string]string{
			"good.fbx":         "model",
			"good_body_BC.jpg": "basecolor",
		}),
		"noimages.zip": zipBytes(t, map[string]string{
			"only_BC.jpg": "no model here",
		}),
	}
	srv := serveZips(t, archives)
	out := t.TempDir()

	cfg := baseConfig(t, writeList(t,
		srv.URL+"/missing.zip",
		srv.URL+"/noimages.zip",
		srv.URL+"/good.zip",
	), out, func(*exporter.Config) Exporter { return &fakeExporter{result: completedResult()} })
	cfg.Materials = func(_ context.Context, _ *exporter.Config, _ string) ([]exporter.MaterialInfo, error) {
		return []exporter.MaterialInfo{{Name: "good_body", Attributes: []string{"color"}}}, nil
	}

	o, _ := NewOrchestrator(cfg)
	batch, err := o.Execute(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if len(batch.Bundles) != 3 {
		t.Fatalf("got %d entries, want 3", len(batch.Bundles))
	}
	wantStatus := []types.BundleStatus{
		types.StatusSkippedDownload,
		types.StatusSkippedValidation,
		types.StatusExported,
	}
	for i, want := range wantStatus {
		if batch.Bundles[i].Status != want {
			t.Errorf("bundle %d: got %s, want %s", i, batch.Bundles[i].Status, want)
		}
		if !batch.Bundles[i].Status.OK() && batch.Bundles[i].Message == "" {
			t.Errorf("bundle %d: skip must carry a reason", i)
		}
	}
	if batch.Succeeded() {
		t.Error("batch with skips must not report success")
	}

	snap := batch.Metrics
	if snap.BundlesStarted != 3 || snap.BundlesSkippedDL != 1 || snap.BundlesSkippedVal != 1 || snap.BundlesExported != 1 {
		t.Errorf("metrics: %+v", snap)
	}
}

func TestExecute_ExporterFailureMarksBundle(t *testing.T) {
	archives := map[string][]byte{
		"car.zip": zipBytes(t, map[string]string{
			"car.fbx":         "model",
			"car_body_BC.jpg": "basecolor",
		}),
	}
	srv := serveZips(t, archives)

	fake := &fakeExporter{result: &exporter.Result{ExitCode: 2, Stderr: "maya crashed"}}
	cfg := baseConfig(t, writeList(t, srv.URL+"/car.zip"), t.TempDir(),
		func(*exporter.Config) Exporter { return fake })

	o, _ := NewOrchestrator(cfg)
	batch, err := o.Execute(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	entry := batch.Bundles[0]
	if entry.Status != types.StatusExportFailed {
		t.Fatalf("status: got %s", entry.Status)
	}
	if entry.Message == "" {
		t.Error("failure must carry a message")
	}
	if batch.Succeeded() {
		t.Error("failed export must fail the batch")
	}
}

func TestExecute_RemovesStagingDir(t *testing.T) {
	archives := map[string][]byte{
		"chair.zip": zipBytes(t, map[string]string{"chair.fbx": "model"}),
	}
	srv := serveZips(t, archives)
	out := t.TempDir()

	cfg := baseConfig(t, writeList(t, srv.URL+"/chair.zip"), out,
		func(*exporter.Config) Exporter { return &fakeExporter{result: completedResult()} })

	o, _ := NewOrchestrator(cfg)
	if _, err := o.Execute(context.Background()); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(filepath.Join(out, "tmp")); !os.IsNotExist(err) {
		t.Errorf("staging directory must be removed after the batch: %v", err)
	}
}

func TestExecute_PublishesFinishedBundles(t *testing.T) {
	archives := map[string][]byte{
		"chair.zip": zipBytes(t, map[string]string{"chair.fbx": "model"}),
	}
	srv := serveZips(t, archives)
	out := t.TempDir()

	stub := store.NewStubStore()
	cfg := baseConfig(t, writeList(t, srv.URL+"/chair.zip"), out,
		func(*exporter.Config) Exporter { return &fakeExporter{result: completedResult()} })
	cfg.Store = stub

	o, _ := NewOrchestrator(cfg)
	if _, err := o.Execute(context.Background()); err != nil {
		t.Fatal(err)
	}

	if len(stub.Keys) != 1 || stub.Keys[0] != "chair/chair.fbx" {
		t.Errorf("published keys: %v", stub.Keys)
	}
}

func TestExecute_MissingOutputRootIsStructural(t *testing.T) {
	cfg := baseConfig(t, writeList(t, "https://assets.example/a.zip"),
		filepath.Join(t.TempDir(), "missing"), nil)

	o, _ := NewOrchestrator(cfg)
	if _, err := o.Execute(context.Background()); err == nil {
		t.Fatal("expected structural error for missing output root")
	}
}

// Cancellation is observed between bundles: a context canceled while
// the first bundle runs leaves exactly one entry in the partial report.
func TestExecute_CancellationStopsBetweenBundles(t *testing.T) {
	archives := map[string][]byte{
		"a.zip": zipBytes(t, map[string]string{"a.fbx": "model", "a_BC.jpg": "tex"}),
		"b.zip": zipBytes(t, map[string]string{"b.fbx": "model", "b_BC.jpg": "tex"}),
	}
	srv := serveZips(t, archives)
	out := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	probes := 0
	cfg := baseConfig(t, writeList(t, srv.URL+"/a.zip", srv.URL+"/b.zip"), out,
		func(*exporter.Config) Exporter { return &fakeExporter{result: completedResult()} })
	cfg.Materials = func(_ context.Context, _ *exporter.Config, _ string) ([]exporter.MaterialInfo, error) {
		probes++
		cancel()
		return nil, nil
	}

	o, _ := NewOrchestrator(cfg)
	batch, err := o.Execute(ctx)
	if err != context.Canceled {
		t.Fatalf("got error %v, want context.Canceled", err)
	}
	if batch == nil || len(batch.Bundles) != 1 {
		t.Fatalf("partial report must hold one entry, got %+v", batch)
	}
	if probes != 1 {
		t.Errorf("second bundle must not be processed, probes=%d", probes)
	}
}

func TestNewOrchestrator_InvalidMeta(t *testing.T) {
	cfg := &Config{Meta: &types.BatchMeta{}}
	if _, err := NewOrchestrator(cfg); err == nil {
		t.Fatal("expected error for empty batch ID")
	}
}
