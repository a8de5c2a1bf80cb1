package engine

import (
	"os"
	"path/filepath"
	"testing"

	"ticketsim/internal/reference"
	"ticketsim/internal/rng"
)

func generate(t *testing.T, cfg GeneratorConfig) []reference.Record {
	t.Helper()
	seed := int64(11)
	return Generate(cfg, rng.New(&seed))
}

func TestGenerate_Mild(t *testing.T) {
	records := generate(t, GeneratorConfig{Scenario: "mild", Distribution: "uniform", Count: 500, Families: 3, Year: 2023})
	if len(records) != 500 {
		t.Fatalf("expected 500 records, got %d", len(records))
	}
	for _, r := range records {
		if r.Family == "" || r.Raised == nil {
			t.Fatalf("mild scenario should not produce anomalies: %+v", r)
		}
		if r.Raised.Year() != 2023 {
			t.Errorf("record raised outside 2023: %v", r.Raised)
		}
		if r.Duration < 20 || r.Duration > 60 {
			t.Errorf("uniform duration out of range: %v", r.Duration)
		}
	}
}

func TestGenerate_ChaosIsRepairable(t *testing.T) {
	records := generate(t, GeneratorConfig{Scenario: "chaos", Distribution: "weibull", Count: 2000, Families: 4, Year: 2023})
	missing := 0
	for _, r := range records {
		if r.Family == "" || r.Raised == nil {
			missing++
		}
	}
	if missing == 0 {
		t.Fatal("chaos scenario should inject null anomalies")
	}

	seed := int64(5)
	bundle, report, err := reference.Mine(records, rng.New(&seed))
	if err != nil {
		t.Fatalf("Mine failed: %v", err)
	}
	if report.RepairedFamilies+report.RepairedTimestamps == 0 {
		t.Errorf("expected repairs, got %+v", report)
	}
	if len(bundle.Families()) != 4 {
		t.Errorf("expected 4 families, got %v", bundle.Families())
	}
}

func TestGenerate_DriftSlowsDown(t *testing.T) {
	records := generate(t, GeneratorConfig{Scenario: "drift", Distribution: "uniform", Count: 1000, Year: 2023})
	var early, late float64
	for i, r := range records {
		if i < 500 {
			early += r.Duration
		} else {
			late += r.Duration
		}
	}
	if late <= early {
		t.Errorf("drift should lengthen later durations: early=%.1f late=%.1f", early, late)
	}
}

func TestSave(t *testing.T) {
	records := generate(t, GeneratorConfig{Scenario: "mild", Distribution: "weibull", Count: 200, Year: 2023})
	seed := int64(1)
	bundle, _, err := reference.Mine(records, rng.New(&seed))
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	if err := Save(dir, "MOCK", records, bundle); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "MOCK.jsonl")); err != nil {
		t.Errorf("records file missing: %v", err)
	}
	loaded, err := reference.LoadBundle(filepath.Join(dir, "MOCK_reference.yaml"))
	if err != nil {
		t.Fatalf("bundle not loadable: %v", err)
	}
	if len(loaded.FamilyMapping) != len(bundle.FamilyMapping) {
		t.Errorf("bundle changed on round trip")
	}
}
