package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/mason/cli/config"
	"github.com/justapithecus/mason/exporter"
	"github.com/justapithecus/mason/metrics"
	"github.com/justapithecus/mason/pipeline"
	"github.com/justapithecus/mason/report"
	"github.com/justapithecus/mason/store"
	"github.com/justapithecus/mason/types"
)

// Exit codes for the run command.
const (
	// exitSuccess: every bundle exported or copied through.
	exitSuccess = 0
	// exitBundleFailures: the batch ran but at least one bundle was
	// skipped or failed.
	exitBundleFailures = 1
	// exitStructural: the batch could not start (bad config, unreadable
	// list file, missing output root).
	exitStructural = 2
)

// RunCommand returns the run command, the only command that executes work.
func RunCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Process a batch of asset bundles (the only execution entrypoint)",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "list",
				Aliases:  []string{"l"},
				Usage:    "Path to newline-delimited URL list file",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "out",
				Aliases:  []string{"o"},
				Usage:    "Output root directory (must exist)",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to mason.yaml config file",
				Value:   "mason.yaml",
			},
			&cli.StringFlag{
				Name:  "exporter",
				Usage: "Path to exporter binary (overrides config)",
			},
			&cli.StringFlag{
				Name:  "preset",
				Usage: "Export preset name (overrides config)",
			},
			&cli.StringFlag{
				Name:  "report",
				Usage: "Write the batch report as JSON to this path (\"-\" for stderr)",
			},
			&cli.IntFlag{
				Name:  "concurrency",
				Usage: "Parallel downloads (overrides config)",
			},
			&cli.BoolFlag{
				Name:  "quiet",
				Usage: "Suppress the result summary on stdout",
			},
			// Storage flags
			&cli.StringFlag{
				Name:  "storage-backend",
				Usage: "Publication backend: fs or s3 (overrides config)",
			},
			&cli.StringFlag{
				Name:  "storage-path",
				Usage: "Publication path (fs: directory, s3: bucket/prefix)",
			},
		},
		Action: runAction,
	}
}

func runAction(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("config: %v", err), exitStructural)
	}
	applyOverrides(cfg, c)
	if err := cfg.Validate(); err != nil {
		return cli.Exit(err.Error(), exitStructural)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	st, err := buildStore(ctx, cfg.Storage)
	if err != nil {
		return cli.Exit(fmt.Sprintf("storage: %v", err), exitStructural)
	}

	meta := types.NewBatchMeta()
	pipelineConfig := &pipeline.Config{
		ListPath:     c.String("list"),
		OutputRoot:   c.String("out"),
		ImageFormats: cfg.Formats.Images,
		ModelFormats: cfg.ModelFormats(),
		Tags:         cfg.Tags,
		Exporter: exporter.Config{
			BinPath: cfg.Exporter.Path,
			Preset:  cfg.Exporter.Preset,
			Timeout: cfg.Exporter.Timeout.Duration,
		},
		DownloadTimeout: cfg.Download.Timeout.Duration,
		Concurrency:     cfg.Download.Concurrency,
		Meta:            meta,
		Collector:       metrics.NewCollector(),
		Store:           st,
	}

	orchestrator, err := pipeline.NewOrchestrator(pipelineConfig)
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to create orchestrator: %v", err), exitStructural)
	}

	start := time.Now()
	batch, err := orchestrator.Execute(ctx)
	if batch == nil {
		return cli.Exit(fmt.Sprintf("batch aborted: %v", err), exitStructural)
	}
	// A canceled batch still has a partial report worth persisting.
	if err != nil {
		fmt.Fprintf(os.Stderr, "batch interrupted: %v\n", err)
	}

	if recPath, recErr := report.WriteRecord(batch, c.String("out")); recErr != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to persist batch record: %v\n", recErr)
	} else if !c.Bool("quiet") {
		fmt.Fprintf(os.Stderr, "batch record: %s\n", recPath)
	}

	if path := c.String("report"); path != "" {
		if repErr := report.WriteJSON(batch, path); repErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to write report: %v\n", repErr)
		}
	}

	if !c.Bool("quiet") {
		printBatchResult(batch, time.Since(start))
	}

	if !batch.Succeeded() || err != nil {
		return cli.Exit("", exitBundleFailures)
	}
	return cli.Exit("", exitSuccess)
}

// applyOverrides folds CLI flags into the loaded config. Flags always
// win over file values.
func applyOverrides(cfg *config.Config, c *cli.Context) {
	if v := c.String("exporter"); v != "" {
		cfg.Exporter.Path = v
	}
	if v := c.String("preset"); v != "" {
		cfg.Exporter.Preset = v
	}
	if v := c.Int("concurrency"); v > 0 {
		cfg.Download.Concurrency = v
	}
	if v := c.String("storage-backend"); v != "" {
		cfg.Storage.Backend = v
	}
	if v := c.String("storage-path"); v != "" {
		cfg.Storage.Path = v
	}
}

// buildStore creates the publication store from storage config.
// Returns nil when no publication path is configured.
func buildStore(ctx context.Context, sc config.StorageConfig) (store.Store, error) {
	if sc.Path == "" {
		return nil, nil
	}

	switch sc.Backend {
	case "fs", "":
		return store.NewFSStore(sc.Path), nil
	case "s3":
		bucket, prefix := store.ParseS3Path(sc.Path)
		return store.NewS3Store(ctx, store.S3Config{
			Bucket:       bucket,
			Prefix:       prefix,
			Region:       sc.Region,
			Endpoint:     sc.Endpoint,
			UsePathStyle: sc.S3PathStyle,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend: %s (must be fs or s3)", sc.Backend)
	}
}

func printBatchResult(batch *report.BatchReport, duration time.Duration) {
	fmt.Printf("\nbatch_id=%s, bundles=%d, succeeded=%t, duration=%s\n",
		batch.BatchID,
		len(batch.Bundles),
		batch.Succeeded(),
		duration.Round(time.Millisecond),
	)

	if batch.Metrics != nil {
		m := batch.Metrics
		fmt.Printf("exported=%d, copied=%d, skipped=%d, failed=%d\n",
			m.BundlesExported,
			m.BundlesCopied,
			m.BundlesSkippedDL+m.BundlesSkippedVal,
			m.BundlesFailed,
		)
	}

	fmt.Printf("\n=== Bundles ===\n")
	for _, entry := range batch.Bundles {
		name := entry.ModelStem
		if name == "" {
			name = entry.URL
		}
		fmt.Printf("%-26s %s", entry.Status, name)
		if entry.Message != "" {
			fmt.Printf("  (%s)", entry.Message)
		}
		fmt.Println()
	}
}
