package exporter

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
)

// MaterialsFlag asks the tool to print its material inventory instead of
// exporting: <bin> --materials <model-file>.
const MaterialsFlag = "--materials"

// MaterialInfo describes one material of a model: its name and the
// attribute slots it exposes. The resolver treats this as an immutable
// snapshot, never a live scene.
type MaterialInfo struct {
	Name       string   `json:"name"`
	Attributes []string `json:"attributes"`
}

// ProbeMaterials asks the external tool for the materials present in the
// model. The tool prints a JSON array of material objects on stdout.
func ProbeMaterials(ctx context.Context, config *Config, modelPath string) ([]MaterialInfo, error) {
	if config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.Timeout)
		defer cancel()
	}

	out, err := exec.CommandContext(ctx, config.BinPath, MaterialsFlag, modelPath).Output()
	if err != nil {
		return nil, fmt.Errorf("material probe failed for %s: %w", modelPath, err)
	}

	var materials []MaterialInfo
	if err := json.Unmarshal(out, &materials); err != nil {
		return nil, fmt.Errorf("malformed material inventory for %s: %w", modelPath, err)
	}
	return materials, nil
}

// Names returns the material names in inventory order.
func Names(materials []MaterialInfo) []string {
	names := make([]string, len(materials))
	for i, m := range materials {
		names[i] = m.Name
	}
	return names
}

// LookupFunc builds an attribute lookup over a material snapshot.
func LookupFunc(materials []MaterialInfo) func(material string) []string {
	byName := make(map[string][]string, len(materials))
	for _, m := range materials {
		byName[m.Name] = m.Attributes
	}
	return func(material string) []string {
		return byName[material]
	}
}
