package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("enrich %s: %v\n%s", strings.Join(args, " "), err, errOut.String())
	}
	return out.String()
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestCalculateScoreAndKeys(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "tp0.tsv", "id\tcount\nidA\t10\nidB\t2\nidC\t40\n")
	writeFile(t, dir, "tp1.csv", "id,count\nidA,25\nidB,8\nidC,12\n")
	cfg := writeFile(t, dir, "experiment.yaml", `
identifiers:
  min count: 5
libraries:
  - name: lib0
    timepoint: 0
    counts file: `+filepath.Join(dir, "tp0.tsv")+`
  - name: lib1
    timepoint: 1
    counts_file: `+filepath.Join(dir, "tp1.csv")+`
`)
	storeDir := filepath.Join(dir, "stores")

	out := execute(t, "calculate", "--config", cfg, "--store", storeDir)
	if !strings.Contains(out, "calculated 2 libraries, timepoints [0 1]") {
		t.Fatalf("unexpected calculate output %q", out)
	}

	options := writeFile(t, dir, "ratios.yaml", "log_base: \"2\"\n")
	out = execute(t, "score", "--plugin", "ratios", "--options", options, "--store", storeDir, "--evaluator", "cel")
	if !strings.Contains(out, "scored identifiers with ratios") {
		t.Fatalf("unexpected score output %q", out)
	}

	out = execute(t, "keys", "--store", filepath.Join(storeDir, experimentStore))
	if !strings.Contains(out, "/main/identifiers/counts\t3 rows") || !strings.Contains(out, "/main/identifiers/scores\t3 rows") {
		t.Fatalf("unexpected keys output %q", out)
	}

	out = execute(t, "keys", "--store", libraryStoreDir(storeDir, "lib0"))
	if !strings.Contains(out, "/main/identifiers/counts\t2 rows") || !strings.Contains(out, "/raw/identifiers/counts\t3 rows") {
		t.Fatalf("unexpected library keys output %q", out)
	}
}

func TestSerialize(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "lib.json", `{"name": "lib4", "timepoint": 2, "identifiers": {"min count": 3}}`)
	out := execute(t, "serialize", "--config", cfg)
	for _, want := range []string{"name: lib4", "timepoint: 2", "min count: 3"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %q", want, out)
		}
	}
}

func TestPlugins(t *testing.T) {
	out := execute(t, "plugins")
	if !strings.Contains(out, "ratios") || !strings.Contains(out, "pseudocount") || !strings.Contains(out, "script") {
		t.Fatalf("unexpected plugins output %q", out)
	}
	out = execute(t, "plugins", "--openapi")
	if !strings.Contains(out, "/plugins/ratios/options") || !strings.Contains(out, "ratios_options") {
		t.Fatalf("unexpected openapi output %q", out)
	}
}

func TestParseTimepoints(t *testing.T) {
	tps, err := parseTimepoints("0, 2,5")
	if err != nil || len(tps) != 3 || tps[1] != 2 {
		t.Fatalf("unexpected timepoints %v %v", tps, err)
	}
	if _, err := parseTimepoints("0,x"); err == nil {
		t.Fatalf("expected error for non-numeric timepoint")
	}
	if tps, err := parseTimepoints(""); err != nil || tps != nil {
		t.Fatalf("expected no timepoints, got %v %v", tps, err)
	}
}
