package types

import "gopkg.in/yaml.v3"

// FailureReason classifies why a texture could not be resolved to a
// material slot. Each reason has a different operator fix: re-export the
// texture, rename the file, or repair the material setup.
type FailureReason string

const (
	// ReasonUnsupportedFormat means the texture extension is not in the
	// configured image format list.
	ReasonUnsupportedFormat FailureReason = "unsupported_format"
	// ReasonNameMismatch means the texture stem does not contain the
	// model stem.
	ReasonNameMismatch FailureReason = "name_mismatch"
	// ReasonNoMatchingTag means no configured tag appears in the texture
	// stem as a bounded token.
	ReasonNoMatchingTag FailureReason = "no_matching_tag"
	// ReasonNoMatchingMaterial means no material name appears in the
	// texture stem.
	ReasonNoMatchingMaterial FailureReason = "no_matching_material"
	// ReasonSlotNotFound means the matched material does not expose the
	// attribute slot the tag maps to.
	ReasonSlotNotFound FailureReason = "slot_not_found_on_material"
)

// Assignment binds one texture file to a material attribute slot.
type Assignment struct {
	Texture  string `json:"texture" msgpack:"texture"`
	Material string `json:"material" msgpack:"material"`
	Slot     string `json:"slot" msgpack:"slot"`
}

// ResolutionFailure records why one texture could not be assigned.
type ResolutionFailure struct {
	Texture string        `json:"texture" msgpack:"texture"`
	Reason  FailureReason `json:"reason" msgpack:"reason"`
	Detail  string        `json:"detail,omitempty" msgpack:"detail,omitempty"`
}

// Resolution is the result for one texture offered to the resolver:
// exactly one of Assignment or Failure is set, never both, never neither.
type Resolution struct {
	Assignment *Assignment        `json:"assignment,omitempty" msgpack:"assignment,omitempty"`
	Failure    *ResolutionFailure `json:"failure,omitempty" msgpack:"failure,omitempty"`
}

// Assigned reports whether the texture was resolved to a slot.
func (r Resolution) Assigned() bool { return r.Assignment != nil }

// TagPair is a single tag→slot entry of a TagMapping.
type TagPair struct {
	// Tag is the short identifier embedded in texture filenames
	// (e.g. "BC", "R").
	Tag string
	// Slot is the material attribute name the tag maps to
	// (e.g. "color", "roughness").
	Slot string
}

// TagMapping is an ordered tag→slot mapping. Order is significant: the
// first tag (in mapping order) whose bounded token appears in a texture
// stem wins, regardless of match position. Read-only for the lifetime of
// a run.
type TagMapping []TagPair

// Slot returns the slot name for tag, or false if the tag is unknown.
func (m TagMapping) Slot(tag string) (string, bool) {
	for _, p := range m {
		if p.Tag == tag {
			return p.Slot, true
		}
	}
	return "", false
}

// Tags returns the tag keys in mapping order.
func (m TagMapping) Tags() []string {
	tags := make([]string, len(m))
	for i, p := range m {
		tags[i] = p.Tag
	}
	return tags
}

// UnmarshalYAML decodes a YAML mapping node preserving document order.
// A plain map would lose the order that tie-breaks tag matches.
func (m *TagMapping) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return &yaml.TypeError{Errors: []string{"tags must be a mapping of tag to slot name"}}
	}
	pairs := make(TagMapping, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		pairs = append(pairs, TagPair{
			Tag:  node.Content[i].Value,
			Slot: node.Content[i+1].Value,
		})
	}
	*m = pairs
	return nil
}
