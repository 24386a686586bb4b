package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/justapithecus/mason/types"
)

// Config represents a mason.yaml configuration file.
// All values act as defaults for mason run flags; CLI flags always
// override config values.
type Config struct {
	Formats  FormatConfig     `yaml:"formats"`
	Tags     types.TagMapping `yaml:"tags"`
	Exporter ExporterConfig   `yaml:"exporter"`
	Download DownloadConfig   `yaml:"download"`
	Storage  StorageConfig    `yaml:"storage"`
}

// FormatConfig lists the file extensions the pipeline recognizes.
// Extensions include the leading dot and are order-significant for
// image classification.
type FormatConfig struct {
	Images []string `yaml:"images"`
	Models []string `yaml:"models"`
}

// ExporterConfig holds settings for the external authoring tool.
type ExporterConfig struct {
	// Path is the exporter binary (e.g. a mayapy wrapper script).
	Path string `yaml:"path"`
	// Preset is an optional export preset resource passed through to the
	// tool via its environment.
	Preset string `yaml:"preset"`
	// Timeout bounds one export invocation. Zero means no bound.
	Timeout Duration `yaml:"timeout"`
}

// DownloadConfig holds fetcher settings.
type DownloadConfig struct {
	// Timeout bounds a single download. Zero means no bound.
	Timeout Duration `yaml:"timeout"`
	// Concurrency is the fetch worker pool size. Zero or one means
	// sequential fetching.
	Concurrency int `yaml:"concurrency"`
}

// StorageConfig selects where the finished export tree is published.
type StorageConfig struct {
	// Backend is "fs" (default) or "s3".
	Backend string `yaml:"backend"`
	// Path is a directory for fs, or "bucket/prefix" for s3.
	Path string `yaml:"path"`
	// Region is the AWS region for the s3 backend (optional, default chain).
	Region string `yaml:"region"`
	// Endpoint is a custom S3 endpoint for compatible providers (R2, MinIO).
	Endpoint string `yaml:"endpoint"`
	// S3PathStyle forces path-style addressing (bucket in path).
	S3PathStyle bool `yaml:"s3_path_style"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// Validate checks the structural requirements that must hold before any
// bundle is processed. Missing tag or image-format configuration is fatal
// for the whole run, not a per-bundle skip.
func (c *Config) Validate() error {
	if len(c.Formats.Images) == 0 {
		return fmt.Errorf("config: formats.images must list at least one image extension")
	}
	for _, ext := range c.Formats.Images {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("config: image format %q must include the leading dot", ext)
		}
	}
	for _, ext := range c.Formats.Models {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("config: model format %q must include the leading dot", ext)
		}
	}
	if len(c.Tags) == 0 {
		return fmt.Errorf("config: tags must map at least one tag to a slot name")
	}
	switch c.Storage.Backend {
	case "", "fs", "s3":
	default:
		return fmt.Errorf("config: unknown storage backend %q (must be fs or s3)", c.Storage.Backend)
	}
	return nil
}

// ModelFormats returns the configured model extensions, defaulting to
// FBX when none are configured.
func (c *Config) ModelFormats() []string {
	if len(c.Formats.Models) == 0 {
		return []string{".fbx"}
	}
	return c.Formats.Models
}
