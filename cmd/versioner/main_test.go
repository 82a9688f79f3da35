package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func write(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestStatusReport(t *testing.T) {
	tmp := t.TempDir()
	write(t, filepath.Join(tmp, "__version__"), `__version__ = "0.2.0"`)
	write(t, filepath.Join(tmp, "analysis_v0.1.0.ipynb"), "{}")
	write(t, filepath.Join(tmp, "etl_v0.2.0.ipynb"), "{}")
	write(t, filepath.Join(tmp, "databricks.yml"), "version: 0.2.0\n")
	// No resources/variables.yml.

	report, err := statusReport(tmp)
	if err != nil {
		t.Fatalf("statusReport failed: %v", err)
	}

	for _, want := range []string{
		"**0.2.0**",
		"analysis_v0.1.0.ipynb | 0.1.0 | stale",
		"etl_v0.2.0.ipynb | 0.2.0 | current",
		"databricks.yml: `0.2.0` (current)",
		"resources/variables.yml: missing",
	} {
		if !strings.Contains(report, want) {
			t.Errorf("report missing %q:\n%s", want, report)
		}
	}
}

func TestStatusReport_NoVersionFile(t *testing.T) {
	if _, err := statusReport(t.TempDir()); err == nil {
		t.Fatal("expected error when no __version__ exists")
	}
}
