// Package bundle validates downloaded archives and extracts their contents.
//
// A bundle is one zip archive holding exactly one 3D model file and zero
// or more texture images. The model is a hard requirement: an archive
// without a model-format member aborts as a whole. Missing images do NOT
// abort extraction — a model may be legitimately re-exported without new
// textures, and the orchestrator handles that case via copy-through.
package bundle

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/justapithecus/mason/iox"
	"github.com/justapithecus/mason/types"
)

// Validator checks archive structure and extracts members to disk.
type Validator struct {
	modelFormats []string
	imageFormats []string
}

// NewValidator creates a validator recognizing the given model and image
// extensions (each including the leading dot).
func NewValidator(modelFormats, imageFormats []string) *Validator {
	return &Validator{
		modelFormats: modelFormats,
		imageFormats: imageFormats,
	}
}

// Validate opens the archive, enforces the model gate, extracts every
// member into a sibling directory named by the archive stem, and
// classifies the extracted files. Malformed archives, unreadable files
// and the missing-model rule fail the whole bundle; no partial result is
// returned in that case.
func (v *Validator) Validate(archive string) (*types.Bundle, error) {
	reader, err := zip.OpenReader(archive)
	if err != nil {
		return nil, fmt.Errorf("cannot open archive %s: %w", archive, err)
	}
	defer iox.DiscardClose(reader)

	if !v.hasModelMember(reader.File) {
		return nil, fmt.Errorf("archive %s has no model file (%s), bundle aborted",
			filepath.Base(archive), strings.Join(v.modelFormats, ", "))
	}

	destDir := filepath.Join(filepath.Dir(archive), types.Stem(archive))

	b := &types.Bundle{
		Archive: archive,
		Dir:     destDir,
	}

	for _, member := range reader.File {
		path, err := extractMember(member, destDir)
		if err != nil {
			return nil, fmt.Errorf("failed to extract %s from %s: %w", member.Name, archive, err)
		}
		if path == "" {
			continue // directory entry
		}

		ext := filepath.Ext(path)
		switch {
		case b.ModelFile == "" && contains(v.modelFormats, ext):
			b.ModelFile = path
		case contains(v.imageFormats, ext):
			b.ImageFiles = append(b.ImageFiles, path)
		}
	}

	// The gate is a substring check on member names; the model file itself
	// must carry the extension exactly.
	if b.ModelFile == "" {
		return nil, fmt.Errorf("archive %s has no member with a model extension, bundle aborted",
			filepath.Base(archive))
	}

	return b, nil
}

// hasModelMember reports whether any member name contains a model
// extension marker. The check is case-sensitive and deliberately a
// substring test, matching the naming convention of upstream asset packs.
func (v *Validator) hasModelMember(members []*zip.File) bool {
	for _, member := range members {
		for _, ext := range v.modelFormats {
			if strings.Contains(member.Name, ext) {
				return true
			}
		}
	}
	return false
}

// extractMember writes one archive member under destDir, preserving
// nested member paths. Returns the extracted file path, or "" for
// directory entries.
func extractMember(member *zip.File, destDir string) (string, error) {
	destPath := filepath.Join(destDir, member.Name)
	if !strings.HasPrefix(destPath, filepath.Clean(destDir)+string(os.PathSeparator)) {
		return "", fmt.Errorf("member path %s escapes extraction directory", member.Name)
	}

	if member.FileInfo().IsDir() {
		return "", os.MkdirAll(destPath, member.FileInfo().Mode())
	}

	rc, err := member.Open()
	if err != nil {
		return "", fmt.Errorf("cannot open member: %w", err)
	}
	defer iox.DiscardClose(rc)

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return "", fmt.Errorf("cannot create parent directories: %w", err)
	}

	dst, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, member.FileInfo().Mode())
	if err != nil {
		return "", fmt.Errorf("cannot create destination file: %w", err)
	}
	defer iox.DiscardClose(dst)

	if _, err := io.Copy(dst, rc); err != nil {
		return "", fmt.Errorf("cannot write destination file: %w", err)
	}

	return destPath, nil
}

func contains(list []string, item string) bool {
	for _, v := range list {
		if v == item {
			return true
		}
	}
	return false
}
