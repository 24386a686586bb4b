// Package resolve pairs loose texture files with material attribute slots.
//
// Textures follow a tag-based naming convention: the file name carries the
// model stem, a material name, and a short tag (e.g. "BC" for base color)
// bounded by non-alphanumeric characters. The resolver turns each
// candidate texture into exactly one assignment or exactly one failure
// with an operator-diagnosable reason.
package resolve

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/justapithecus/mason/types"
)

// AttrLookup returns the attribute slot names a material exposes. It is
// supplied by the external 3D-authoring collaborator and queried against
// an immutable material snapshot, never a live scene.
type AttrLookup func(material string) []string

// Resolver resolves textures against a tag mapping and image format list.
// Construct once per run; safe for reuse across bundles.
type Resolver struct {
	tags     types.TagMapping
	formats  []string
	patterns []*regexp.Regexp
}

// NewResolver compiles one boundary pattern per tag, in mapping order.
func NewResolver(tags types.TagMapping, imageFormats []string) *Resolver {
	patterns := make([]*regexp.Regexp, len(tags))
	for i, pair := range tags {
		// The tag must appear as a token bounded by non-alphanumeric
		// characters or the string edges: "BC" matches "BC_diffuse" and
		// "diffuse_BC" but not "ABC" or "BCX".
		patterns[i] = regexp.MustCompile(
			`(?:^|[^0-9A-Za-z])` + regexp.QuoteMeta(pair.Tag) + `(?:[^0-9A-Za-z]|$)`,
		)
	}
	return &Resolver{
		tags:     tags,
		formats:  imageFormats,
		patterns: patterns,
	}
}

// Resolve produces one Resolution per input image, in input order.
// Each step is a short-circuiting filter with its own failure reason, so
// operators can tell "wrong file type" from "wrong naming convention"
// from "material doesn't expose that slot".
func (r *Resolver) Resolve(modelStem string, images []string, materials []string, lookup AttrLookup) []types.Resolution {
	results := make([]types.Resolution, len(images))
	for i, img := range images {
		results[i] = r.resolveOne(modelStem, img, materials, lookup)
	}
	return results
}

func (r *Resolver) resolveOne(modelStem, img string, materials []string, lookup AttrLookup) types.Resolution {
	if !r.supportedFormat(img) {
		return fail(img, types.ReasonUnsupportedFormat,
			fmt.Sprintf("supported formats: %s", strings.Join(r.formats, ", ")))
	}

	stem := types.Stem(img)
	if !strings.Contains(stem, modelStem) {
		return fail(img, types.ReasonNameMismatch,
			fmt.Sprintf("texture name does not contain model stem %q", modelStem))
	}

	slot, ok := r.matchTag(stem)
	if !ok {
		return fail(img, types.ReasonNoMatchingTag,
			fmt.Sprintf("valid tags: %s", strings.Join(r.tags.Tags(), ", ")))
	}

	material, ok := matchMaterial(stem, materials)
	if !ok {
		return fail(img, types.ReasonNoMatchingMaterial,
			fmt.Sprintf("materials in model: %s", strings.Join(materials, ", ")))
	}

	if !contains(lookup(material), slot) {
		return fail(img, types.ReasonSlotNotFound,
			fmt.Sprintf("material %q has no %q attribute", material, slot))
	}

	return types.Resolution{Assignment: &types.Assignment{
		Texture:  img,
		Material: material,
		Slot:     slot,
	}}
}

func (r *Resolver) supportedFormat(img string) bool {
	ext := filepath.Ext(img)
	for _, f := range r.formats {
		if ext == f {
			return true
		}
	}
	return false
}

// matchTag returns the slot for the first tag, in mapping-definition
// order, whose bounded token appears in the stem. Ties between tags are
// broken by definition order, never by match position or specificity.
func (r *Resolver) matchTag(stem string) (string, bool) {
	for i, pair := range r.tags {
		if r.patterns[i].MatchString(stem) {
			return pair.Slot, true
		}
	}
	return "", false
}

// matchMaterial returns the first material, in given order, whose name
// appears as a plain substring of the stem.
func matchMaterial(stem string, materials []string) (string, bool) {
	for _, mat := range materials {
		if strings.Contains(stem, mat) {
			return mat, true
		}
	}
	return "", false
}

func fail(img string, reason types.FailureReason, detail string) types.Resolution {
	return types.Resolution{Failure: &types.ResolutionFailure{
		Texture: img,
		Reason:  reason,
		Detail:  detail,
	}}
}

func contains(list []string, item string) bool {
	for _, v := range list {
		if v == item {
			return true
		}
	}
	return false
}
