package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultSimulation_IsValid(t *testing.T) {
	cfg := DefaultSimulation()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate, got %v", err)
	}
	if len(cfg.Shifts) != 3 || cfg.Shifts[1].Start != 8 {
		t.Errorf("unexpected default shifts %+v", cfg.Shifts)
	}
	if !cfg.Column(ColumnCountry) {
		t.Errorf("expected every output column enabled by default")
	}
}

func TestLoadSimulation_FileAndEnvOverride(t *testing.T) {
	path := writeFile(t, "sim.yaml", `
seed: 42
train_ticket: 100
test_ticket: 10
start_date: "2024-02-01"
end_date: "2024-02-29"
families_number: 3
suspicious_countries:
  ru: 1.0
teams:
  - name: L1
    analysts: 3
    frequency: 1
shifts:
  - name: day
    start: 8
    end: 20
`)
	t.Setenv("TICKETSIM_TRAIN_TICKET", "250")

	cfg, err := LoadSimulation(path)
	if err != nil {
		t.Fatalf("LoadSimulation failed: %v", err)
	}
	if cfg.Seed == nil || *cfg.Seed != 42 {
		t.Errorf("seed not decoded: %v", cfg.Seed)
	}
	if cfg.TrainTickets != 250 {
		t.Errorf("env override ignored, train_ticket = %d", cfg.TrainTickets)
	}
	if len(cfg.Teams) != 1 || cfg.Teams[0].Analysts != 3 {
		t.Errorf("teams = %+v", cfg.Teams)
	}
	if len(cfg.Shifts) != 1 || cfg.Shifts[0].End != 20 {
		t.Errorf("shifts = %+v", cfg.Shifts)
	}
	if cfg.SuspiciousCountries["RU"] != 1.0 {
		t.Errorf("country codes should be upper-cased, got %v", cfg.SuspiciousCountries)
	}
	if !cfg.Start().Equal(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Start = %v", cfg.Start())
	}
	ts, te := cfg.TestWindow()
	if te.Sub(ts) != 7*24*time.Hour {
		t.Errorf("default test window should span a week, got %v", te.Sub(ts))
	}
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *SimConfig)
	}{
		{"BadGrowthType", func(c *SimConfig) { c.TicketGrowthType = "Explode" }},
		{"ZeroTransferSteps", func(c *SimConfig) { c.NTransferSteps = 0 }},
		{"NoFamilies", func(c *SimConfig) { c.FamiliesNumber = 0 }},
		{"EndBeforeStart", func(c *SimConfig) { c.EndDate = "2023-01-01" }},
		{"BadDate", func(c *SimConfig) { c.StartDate = "01/02/2024" }},
		{"InvertedSubfamilies", func(c *SimConfig) { c.MinSubfamilies, c.MaxSubfamilies = 4, 2 }},
		{"GrowthRateTooLow", func(c *SimConfig) { c.TicketGrowthType, c.TicketGrowthRate = GrowthIncrease, 0.05 }},
		{"DuplicateTeams", func(c *SimConfig) {
			c.Teams = []TeamConfig{{Name: "L1", Analysts: 1}, {Name: "L1", Analysts: 1}}
		}},
		{"OverlappingShifts", func(c *SimConfig) {
			c.Shifts = []ShiftConfig{{Name: "a", Start: 0, End: 10}, {Name: "b", Start: 8, End: 16}}
		}},
		{"DistributionMode", func(c *SimConfig) { c.DistributionMode = 3 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultSimulation()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, ErrInvalid) {
				t.Errorf("expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestLoad_ResolvesPathsFromEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DATA_PATH", dir)
	t.Setenv("LOGS_FOLDER", filepath.Join(dir, "l"))
	t.Setenv("WRITE_METRICS", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.OutputDir != filepath.Join(dir, "output") {
		t.Errorf("OutputDir = %s", cfg.OutputDir)
	}
	if cfg.WriteMetrics {
		t.Errorf("WRITE_METRICS=false ignored")
	}
	if _, err := os.Stat(filepath.Join(dir, "l")); err != nil {
		t.Errorf("log directory not created: %v", err)
	}
}
