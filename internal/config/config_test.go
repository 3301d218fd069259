package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLoadIncludesClassificationDefaults(t *testing.T) {
	for _, key := range []string{"CONFIDENCE_THRESHOLD", "MAX_FILE_MB", "ALLOWED_EXTENSIONS", "CONTENT_STRATEGY", "EXTRACTION_WORKERS"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.ConfidenceThreshold != 0.7 {
		t.Fatalf("expected default threshold 0.7, got %v", cfg.ConfidenceThreshold)
	}
	if cfg.MaxFileBytes() != 10*1024*1024 {
		t.Fatalf("expected 10 MiB limit, got %d", cfg.MaxFileBytes())
	}
	if diff := cmp.Diff([]string{"pdf", "jpg", "jpeg", "png", "docx"}, cfg.AllowedExtensions); diff != "" {
		t.Fatalf("allowed extensions mismatch (-want +got):\n%s", diff)
	}
	if cfg.ContentStrategy != StrategySupervised {
		t.Fatalf("expected supervised strategy, got %q", cfg.ContentStrategy)
	}
	if cfg.ExtractionWorkers != 3 {
		t.Fatalf("expected 3 extraction workers, got %d", cfg.ExtractionWorkers)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("CONFIDENCE_THRESHOLD", "0.55")
	t.Setenv("ALLOWED_EXTENSIONS", " PDF, .png ,,")
	t.Setenv("CONTENT_STRATEGY", "Semantic")
	t.Setenv("JOBS_ENABLED", "true")
	t.Setenv("MAX_FILE_MB", "not-a-number")

	cfg := Load()
	if cfg.ConfidenceThreshold != 0.55 {
		t.Fatalf("expected threshold override, got %v", cfg.ConfidenceThreshold)
	}
	if diff := cmp.Diff([]string{"pdf", "png"}, cfg.AllowedExtensions); diff != "" {
		t.Fatalf("allowed extensions mismatch (-want +got):\n%s", diff)
	}
	if cfg.ContentStrategy != StrategySemantic {
		t.Fatalf("expected semantic strategy, got %q", cfg.ContentStrategy)
	}
	if !cfg.JobsEnabled {
		t.Fatalf("expected jobs enabled")
	}
	if cfg.MaxFileMB != 10 {
		t.Fatalf("invalid integer should fall back to default, got %d", cfg.MaxFileMB)
	}
}

func TestParseTaxonomy(t *testing.T) {
	raw := []byte(`
labels:
  - name: drivers_licence
    keywords: [drivers_licence, driving_permit]
    description: an identification document with personal details
  - name: invoice
    keywords: [invoice, rechnung]
`)
	got, err := ParseTaxonomy(raw)
	if err != nil {
		t.Fatalf("ParseTaxonomy() error = %v", err)
	}
	want := Taxonomy{Labels: []LabelSpec{
		{Name: "drivers_license", Keywords: []string{"drivers_licence", "driving_permit"}, Description: "an identification document with personal details"},
		{Name: "invoice", Keywords: []string{"invoice", "rechnung"}},
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("taxonomy mismatch (-want +got):\n%s", diff)
	}
}

func TestParseTaxonomyRejectsInvalidEntries(t *testing.T) {
	cases := map[string]string{
		"unknown label": "labels:\n  - name: receipt\n",
		"duplicate":     "labels:\n  - name: invoice\n  - name: invoice\n",
		"unknown field": "labels:\n  - name: invoice\n    weight: 2\n",
	}
	for name, raw := range cases {
		if _, err := ParseTaxonomy([]byte(raw)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestLoadTaxonomyFromFile(t *testing.T) {
	empty, err := LoadTaxonomy("")
	if err != nil || !empty.Empty() {
		t.Fatalf("empty path should yield defaults, got %+v %v", empty, err)
	}

	path := filepath.Join(t.TempDir(), "labels.yaml")
	if err := os.WriteFile(path, []byte("labels:\n  - name: bank_statement\n    keywords: [statement]\n"), 0o600); err != nil {
		t.Fatalf("write labels: %v", err)
	}
	got, err := LoadTaxonomy(path)
	if err != nil {
		t.Fatalf("LoadTaxonomy() error = %v", err)
	}
	if len(got.Labels) != 1 || got.Labels[0].Name != "bank_statement" {
		t.Fatalf("unexpected taxonomy %+v", got)
	}
	if _, err := LoadTaxonomy(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
