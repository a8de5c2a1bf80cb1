package engine

import (
	"bufio"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"ticketsim/internal/catalog"
	"ticketsim/internal/reference"
	"ticketsim/internal/rng"
)

type GeneratorConfig struct {
	Scenario     string // "mild", "chaos" or "drift"
	Distribution string // "uniform" or "weibull"
	Count        int
	Families     int
	Year         int
}

// Generate emits reference records spread over one calendar year.
// Chaos drops families and timestamps from a share of the records so the
// miner has anomalies to repair.
func Generate(cfg GeneratorConfig, src *rng.Source) []reference.Record {
	if cfg.Year == 0 {
		cfg.Year = time.Now().Year() - 1
	}
	nFam := cfg.Families
	if nFam <= 0 || nFam > len(catalog.DefaultFamilies) {
		nFam = 5
	}
	families := catalog.DefaultFamilies[:nFam]

	// Family popularity is skewed: the first families dominate
	famWeights := make([]float64, nFam)
	for i := range famWeights {
		famWeights[i] = 1.0 / float64(i+1)
	}

	start := time.Date(cfg.Year, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(1, 0, 0)
	spikes := make(map[time.Month]bool)
	if cfg.Scenario == "chaos" {
		for _, m := range src.Sample(12, 3) {
			spikes[time.Month(m+1)] = true
		}
	}

	records := make([]reference.Record, 0, cfg.Count)
	for i := 0; i < cfg.Count; i++ {
		fam := families[src.Weighted(famWeights)]
		raised := arrival(cfg, start, end, spikes, src)
		ratio := float64(i) / float64(cfg.Count)

		// 1. Determine Parameters
		k, lambda := 2.5, 45.0 // Mild: centred on ~40 minutes
		switch cfg.Scenario {
		case "chaos":
			k = 0.8
			if cfg.Distribution == "weibull" {
				lambda = 60.0
			}
		case "drift":
			k = 2.5 - (1.7 * ratio) // Shift 2.5 -> 0.8
			lambda = 45.0 + (30.0 * ratio)
		}

		// 2. Sample handling duration in minutes
		var duration float64
		if cfg.Distribution == "weibull" {
			duration = weibullSample(k, lambda, src)
		} else {
			duration = 20.0 + src.Float64()*40.0
			if cfg.Scenario == "chaos" && src.Float64() < 0.2 {
				duration += 120 + src.Float64()*180 // Controlled Black Swans
			}
			if cfg.Scenario == "drift" && i > cfg.Count/2 {
				duration *= 2.0
			}
		}

		r := reference.Record{
			Family:    fam,
			Subfamily: fmt.Sprintf("%s-%d", fam, src.Intn(3)),
			Raised:    &raised,
			Duration:  math.Round(duration*100) / 100,
		}

		// 3. Null anomalies
		if cfg.Scenario == "chaos" {
			if src.Float64() < 0.05 {
				r.Family = ""
			}
			if src.Float64() < 0.03 {
				r.Raised = nil
			}
		}
		records = append(records, r)
	}
	return records
}

// arrival draws a raised time. Months are accepted in proportion to the
// scenario's monthly volume; hours favour the working day.
func arrival(cfg GeneratorConfig, start, end time.Time, spikes map[time.Month]bool, src *rng.Source) time.Time {
	span := end.Sub(start)
	for {
		day := start.Add(time.Duration(src.Float64() * float64(span))).Truncate(24 * time.Hour)
		m := day.Month()

		var w float64
		switch cfg.Scenario {
		case "chaos":
			w = 0.3
			if spikes[m] {
				w = 1
			}
		case "drift":
			w = 0.2 + 0.8*float64(m)/12
		default:
			w = 0.75 + 0.25*math.Cos(2*math.Pi*float64(m-1)/12)
		}
		if src.Float64() > w {
			continue
		}

		hour := src.IntRange(8, 17)
		if src.Float64() < 0.3 {
			hour = src.Intn(24)
		}
		minute := src.Intn(60)
		return day.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
	}
}

func weibullSample(k, lambda float64, src *rng.Source) float64 {
	u := src.Float64()
	if u == 0 {
		u = 0.0001
	}
	// X = lambda * (-ln(1-u))^(1/k)
	return lambda * math.Pow(-math.Log(1.0-u), 1.0/k)
}

// Save writes the raw records as JSONL and the mined bundle as YAML.
func Save(outDir string, sourceID string, records []reference.Record, bundle *reference.Bundle) error {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return err
	}

	jsonlPath := filepath.Join(outDir, fmt.Sprintf("%s.jsonl", sourceID))
	bundlePath := filepath.Join(outDir, fmt.Sprintf("%s_reference.yaml", sourceID))

	f, err := os.Create(jsonlPath)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("failed to encode record: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}

	return bundle.Save(bundlePath)
}
