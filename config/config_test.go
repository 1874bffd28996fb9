package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDecodeIdOnlySeqLib(t *testing.T) {
	cases := []struct {
		name      string
		raw       map[string]any
		want      IdOnlySeqLibConfiguration
		expectErr string
	}{
		{
			name: "canonical keys",
			raw: map[string]any{
				"name":                  "lib1",
				"timepoint":             2,
				"counts file":           "counts.tsv",
				"report filtered reads": true,
				"identifiers":           map[string]any{"min count": 5},
			},
			want: IdOnlySeqLibConfiguration{
				SeqLibConfiguration: SeqLibConfiguration{
					Name:                "lib1",
					Timepoint:           2,
					CountsFile:          "counts.tsv",
					ReportFilteredReads: true,
				},
				Identifiers: IdentifiersConfiguration{MinCount: 5},
			},
		},
		{
			name: "snake case aliases",
			raw: map[string]any{
				"name":        "lib2",
				"counts_file": "c.csv",
				"identifiers": map[string]any{"min_count": 3},
			},
			want: IdOnlySeqLibConfiguration{
				SeqLibConfiguration: SeqLibConfiguration{Name: "lib2", CountsFile: "c.csv"},
				Identifiers:         IdentifiersConfiguration{MinCount: 3},
			},
		},
		{
			name:      "missing name",
			raw:       map[string]any{"timepoint": 0},
			expectErr: "Name",
		},
		{
			name: "negative min count",
			raw: map[string]any{
				"name":        "lib3",
				"identifiers": map[string]any{"min count": -1},
			},
			expectErr: "MinCount",
		},
		{
			name:      "wrong type",
			raw:       map[string]any{"name": "lib4", "timepoint": "soon"},
			expectErr: "decode",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DecodeIdOnlySeqLib(tc.raw)
			if tc.expectErr != "" {
				if err == nil {
					t.Fatalf("expected error containing %q, got nil", tc.expectErr)
				}
				if !strings.Contains(err.Error(), tc.expectErr) {
					t.Fatalf("expected error containing %q, got %v", tc.expectErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("decoded mismatch\nwant: %#v\n got: %#v", tc.want, got)
			}
		})
	}
}

func TestDecodeSeqLibIgnoresLibrarySpecificKeys(t *testing.T) {
	got, err := DecodeSeqLib(map[string]any{
		"name":        "base",
		"identifiers": map[string]any{"min count": 4},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Name != "base" {
		t.Fatalf("expected name base, got %q", got.Name)
	}
}

func TestLoadFileYAMLAndJSON(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "lib.yaml")
	jsonPath := filepath.Join(dir, "lib.json")
	if err := os.WriteFile(yamlPath, []byte("name: lib1\ncounts file: counts.tsv\nidentifiers:\n  min count: 5\n"), 0o644); err != nil {
		t.Fatalf("write yaml: %v", err)
	}
	if err := os.WriteFile(jsonPath, []byte(`{"name":"lib1","counts file":"counts.tsv","identifiers":{"min count":5}}`), 0o644); err != nil {
		t.Fatalf("write json: %v", err)
	}

	for _, path := range []string{yamlPath, jsonPath} {
		raw, err := LoadFile(path)
		if err != nil {
			t.Fatalf("LoadFile(%s): %v", path, err)
		}
		cfg, err := DecodeIdOnlySeqLib(raw)
		if err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
		if cfg.Name != "lib1" || cfg.CountsFile != "counts.tsv" || cfg.Identifiers.MinCount != 5 {
			t.Fatalf("unexpected settings from %s: %#v", path, cfg)
		}
	}
}

func TestLoadFileErrors(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
	empty := filepath.Join(t.TempDir(), "empty.yaml")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadFile(empty); err == nil || !strings.Contains(err.Error(), "empty document") {
		t.Fatalf("expected empty document error, got %v", err)
	}
}

func TestLibraries(t *testing.T) {
	raw, err := Parse([]byte("libraries:\n  - name: a\n  - name: b\n"), false)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	libs, err := Libraries(raw)
	if err != nil {
		t.Fatalf("Libraries: %v", err)
	}
	if len(libs) != 2 || libs[0]["name"] != "a" || libs[1]["name"] != "b" {
		t.Fatalf("unexpected libraries: %v", libs)
	}

	single, err := Libraries(map[string]any{"name": "solo"})
	if err != nil || len(single) != 1 {
		t.Fatalf("expected single library, got %v (%v)", single, err)
	}

	if _, err := Libraries(map[string]any{"libraries": "nope"}); err == nil {
		t.Fatalf("expected error for non-list libraries")
	}
}

func TestLibrariesInheritSharedSettings(t *testing.T) {
	doc := `
name: experiment
output_dir: out
identifiers:
  min count: 2
libraries:
  - name: a
    timepoint: 0
  - name: b
    timepoint: 1
    output directory: elsewhere
    identifiers:
      min count: 5
`
	raw, err := Parse([]byte(doc), false)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	libs, err := Libraries(raw)
	if err != nil {
		t.Fatalf("Libraries: %v", err)
	}
	a, err := DecodeIdOnlySeqLib(libs[0])
	if err != nil {
		t.Fatalf("decode a: %v", err)
	}
	if a.Name != "a" || a.OutputDir != "out" || a.Identifiers.MinCount != 2 {
		t.Fatalf("unexpected library a: %+v", a)
	}
	b, err := DecodeIdOnlySeqLib(libs[1])
	if err != nil {
		t.Fatalf("decode b: %v", err)
	}
	if b.Name != "b" || b.OutputDir != "elsewhere" || b.Identifiers.MinCount != 5 || b.Timepoint != 1 {
		t.Fatalf("unexpected library b: %+v", b)
	}
	if _, ok := raw["libraries"].([]any)[0].(map[string]any)["output directory"]; ok {
		t.Fatalf("Libraries must not modify the input document")
	}
}

func TestMergeLayers(t *testing.T) {
	strong := map[string]any{"a": 1, "nested": map[string]any{"x": 1}, "list": []any{1}}
	weak := map[string]any{"a": 2, "b": 3, "nested": map[string]any{"x": 2, "y": 2}, "list": []any{2, 3}}
	got := MergeLayers(strong, weak)
	nested := got["nested"].(map[string]any)
	if got["a"] != 1 || got["b"] != 3 || nested["x"] != 1 || nested["y"] != 2 || len(got["list"].([]any)) != 1 {
		t.Fatalf("unexpected merge %v", got)
	}
	nested["x"] = 9
	if strong["nested"].(map[string]any)["x"] != 1 {
		t.Fatalf("merge must not alias inputs")
	}
	if MergeLayers() != nil {
		t.Fatalf("expected nil for no layers")
	}
}
