// Package types defines core domain types for the mason pipeline.
//
//nolint:revive // types is a common Go package naming convention
package types

import (
	"path/filepath"
	"strings"
)

// Bundle is a validated archive's extracted contents: exactly one model
// file plus zero or more texture images. It is created by the bundle
// validator after the model gate passes and discarded after processing.
type Bundle struct {
	// Archive is the path of the source zip file.
	Archive string
	// Dir is the directory the archive was extracted into
	// (sibling of the archive, named by the archive stem).
	Dir string
	// ModelFile is the extracted model file path.
	ModelFile string
	// ImageFiles are the extracted texture image paths, in archive order.
	ImageFiles []string
}

// ModelStem returns the model file name without its extension.
// Texture names must contain this stem to correlate with the model.
func (b *Bundle) ModelStem() string {
	return Stem(b.ModelFile)
}

// Stem returns the base name of path without its final extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
