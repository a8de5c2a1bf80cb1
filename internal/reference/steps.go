package reference

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Subtechniques maps a subtechnique id to its base duration in minutes.
type Subtechniques map[string]float64

// SpecialSteps is the reserved technique descriptor: two init techniques, two end
// techniques and one transfer technique.
type SpecialSteps struct {
	Init     map[string]Subtechniques `yaml:"init_opt" json:"init_opt"`
	End      map[string]Subtechniques `yaml:"end_opt" json:"end_opt"`
	Transfer map[string]Subtechniques `yaml:"transfer_opt" json:"transfer_opt"`
}

// LoadSpecialSteps reads a descriptor file. An empty path returns nil so the
// catalog generates its own.
func LoadSpecialSteps(path string) (*SpecialSteps, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read special steps: %w", err)
	}
	var s SpecialSteps
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse special steps %s: %w", path, err)
	}
	return &s, nil
}

// Check verifies the descriptor shape.
func (s *SpecialSteps) Check() error {
	if len(s.Init) != 2 {
		return fmt.Errorf("special steps: expected 2 init techniques, got %d", len(s.Init))
	}
	if len(s.End) != 2 {
		return fmt.Errorf("special steps: expected 2 end techniques, got %d", len(s.End))
	}
	if len(s.Transfer) != 1 {
		return fmt.Errorf("special steps: expected 1 transfer technique, got %d", len(s.Transfer))
	}
	for name, subs := range s.Init {
		if len(subs) != 1 {
			return fmt.Errorf("special steps: init technique %s must have 1 subtechnique", name)
		}
	}
	for name, subs := range s.End {
		if len(subs) != 1 {
			return fmt.Errorf("special steps: end technique %s must have 1 subtechnique", name)
		}
	}
	for name, subs := range s.Transfer {
		if len(subs) == 0 {
			return fmt.Errorf("special steps: transfer technique %s has no subtechniques", name)
		}
	}
	return nil
}

// InitNames returns the init technique names sorted.
func (s *SpecialSteps) InitNames() []string { return sortedKeys(s.Init) }

// EndNames returns the end technique names sorted.
func (s *SpecialSteps) EndNames() []string { return sortedKeys(s.End) }

// TransferName returns the single transfer technique.
func (s *SpecialSteps) TransferName() string {
	names := sortedKeys(s.Transfer)
	if len(names) == 0 {
		return ""
	}
	return names[0]
}

// Lookup returns the subtechniques of a reserved technique.
func (s *SpecialSteps) Lookup(technique string) (Subtechniques, bool) {
	if v, ok := s.Init[technique]; ok {
		return v, true
	}
	if v, ok := s.End[technique]; ok {
		return v, true
	}
	if v, ok := s.Transfer[technique]; ok {
		return v, true
	}
	return nil, false
}

func sortedKeys(m map[string]Subtechniques) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// SortedIDs returns the subtechnique ids in order.
func (s Subtechniques) SortedIDs() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Total sums the base durations in id order so the result is stable.
func (s Subtechniques) Total() float64 {
	total := 0.0
	for _, id := range s.SortedIDs() {
		total += s[id]
	}
	return total
}
