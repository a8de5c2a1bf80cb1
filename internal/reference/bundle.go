// Package reference holds the real-world priors a run is calibrated with:
// the seasonality bundle, the countries catalog, the suspicious-IP list and the
// special-steps descriptor. All of them are optional; callers fall back to
// uniform distributions or built-in defaults when a file is absent.
package reference

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// ErrMissing signals that no reference dataset is available.
var ErrMissing = errors.New("reference data missing")

// TicketSeasonality is the high/low-season split mined from reference volumes.
type TicketSeasonality struct {
	HighMonths []int   `yaml:"high_months" json:"high_months"`
	LowMonths  []int   `yaml:"low_months" json:"low_months"`
	HighShare  float64 `yaml:"high_share" json:"high_share"`
	LowShare   float64 `yaml:"low_share" json:"low_share"`
}

// IsHigh reports whether month m belongs to the high season.
func (s *TicketSeasonality) IsHigh(m int) bool {
	for _, h := range s.HighMonths {
		if h == m {
			return true
		}
	}
	return false
}

// Bundle is the seasonality bundle. Families are keyed by their canonical
// (reference) name; FamilyMapping translates them to the synthetic names used
// in generated tickets.
type Bundle struct {
	TicketSeasonality  *TicketSeasonality         `yaml:"ticket_seasonality,omitempty" json:"ticket_seasonality,omitempty"`
	FamilySeasonality  map[int]map[string]float64 `yaml:"family_seasonality,omitempty" json:"family_seasonality,omitempty"`
	FamilyTimeOfDay    map[string][]float64       `yaml:"family_time_of_day,omitempty" json:"family_time_of_day,omitempty"`
	FamilyWeekday      map[string][]float64       `yaml:"family_weekday,omitempty" json:"family_weekday,omitempty"`
	FamilyMeanDuration map[string]float64         `yaml:"family_mean_duration,omitempty" json:"family_mean_duration,omitempty"`
	FamilyMapping      map[string]string          `yaml:"family_mapping,omitempty" json:"family_mapping,omitempty"`
}

// LoadBundle reads a YAML (or JSON) seasonality bundle.
// An empty path or a missing file yields ErrMissing.
func LoadBundle(path string) (*Bundle, error) {
	if path == "" {
		return nil, ErrMissing
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrMissing, path)
		}
		return nil, fmt.Errorf("failed to read reference bundle: %w", err)
	}

	var b Bundle
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("failed to parse reference bundle %s: %w", path, err)
	}
	if b.Empty() {
		return nil, fmt.Errorf("%w: %s has no families", ErrMissing, path)
	}
	return &b, nil
}

// Save writes the bundle as YAML, creating the parent directory if needed.
func (b *Bundle) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create bundle directory: %w", err)
		}
	}
	data, err := yaml.Marshal(b)
	if err != nil {
		return fmt.Errorf("failed to encode reference bundle: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// Empty reports whether the bundle carries no family information at all.
func (b *Bundle) Empty() bool {
	return b == nil || (len(b.FamilyMapping) == 0 && len(b.FamilyMeanDuration) == 0 && len(b.FamilySeasonality) == 0)
}

// Families returns the canonical family names in deterministic order.
func (b *Bundle) Families() []string {
	if b == nil {
		return nil
	}
	set := make(map[string]struct{})
	for f := range b.FamilyMapping {
		set[f] = struct{}{}
	}
	for f := range b.FamilyMeanDuration {
		set[f] = struct{}{}
	}
	for _, month := range b.FamilySeasonality {
		for f := range month {
			set[f] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for f := range set {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// SyntheticName maps a canonical family to its generated name.
func (b *Bundle) SyntheticName(canonical string) string {
	if b != nil {
		if s, ok := b.FamilyMapping[canonical]; ok && s != "" {
			return s
		}
	}
	return canonical
}
