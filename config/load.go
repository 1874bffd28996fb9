package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-enrich/internal/hydrate"
)

// keyAliases maps the snake_case spellings accepted in YAML files to the
// canonical settings keys.
var keyAliases = map[string]string{
	"counts_file":           "counts file",
	"report_filtered_reads": "report filtered reads",
	"output_directory":      "output directory",
	"output_dir":            "output directory",
	"min_count":             "min count",
}

func normalizeKeys(_ hydrate.Context, payload map[string]any) (map[string]any, error) {
	return normalizeMap(payload), nil
}

func normalizeMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for key, value := range in {
		if nested, ok := value.(map[string]any); ok {
			value = normalizeMap(nested)
		}
		if canonical, ok := keyAliases[key]; ok {
			if _, exists := in[canonical]; exists {
				continue
			}
			key = canonical
		}
		out[key] = value
	}
	return out
}

// LoadFile reads a settings mapping from a YAML or JSON file. Files ending in
// .json are parsed as JSON; everything else as YAML.
func LoadFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	raw, err := Parse(data, strings.EqualFold(filepath.Ext(path), ".json"))
	if err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return raw, nil
}

// Parse decodes data as JSON when asJSON is set, otherwise as YAML.
func Parse(data []byte, asJSON bool) (map[string]any, error) {
	var raw map[string]any
	if asJSON {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&raw); err != nil {
			return nil, err
		}
	} else if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, fmt.Errorf("config: empty document")
	}
	return raw, nil
}

// Libraries splits a settings document into per-library mappings. A document
// with a "libraries" list yields each entry layered over the document's other
// keys, so shared settings such as "output directory" are written once. The
// document "name" is never inherited. Any other document is a single library.
func Libraries(raw map[string]any) ([]map[string]any, error) {
	list, ok := raw["libraries"]
	if !ok {
		return []map[string]any{raw}, nil
	}
	items, ok := list.([]any)
	if !ok {
		return nil, fmt.Errorf("config: libraries must be a list, got %T", list)
	}
	shared := make(map[string]any, len(raw))
	for key, value := range raw {
		switch key {
		case "libraries", "name":
			continue
		}
		shared[key] = value
	}
	out := make([]map[string]any, 0, len(items))
	for i, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("config: libraries[%d] must be a mapping, got %T", i, item)
		}
		out = append(out, MergeLayers(normalizeMap(entry), normalizeMap(shared)))
	}
	return out, nil
}
