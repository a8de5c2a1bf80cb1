package catalog

import (
	"fmt"
	"sort"

	"ticketsim/internal/reference"
)

// StepKey identifies the subtechnique decomposition of one step.
type StepKey struct {
	Team   string
	Family string
	Step   string
}

// SpeedFunc returns the speed multiplier an analyst applies to a step.
type SpeedFunc func(step string) float64

// ActionLength draws an action length: [5, min(n, 12)] for large technique
// pools, otherwise [3, max(3, n)].
func (c *Catalog) ActionLength() int {
	n := c.cfg.TechniquesNumber
	if n >= 10 {
		hi := n
		if hi > 12 {
			hi = 12
		}
		return c.src.IntRange(5, hi)
	}
	hi := n
	if hi < 3 {
		hi = 3
	}
	return c.src.IntRange(3, hi)
}

// BuildAction synthesizes an action of the given length: one init technique,
// length-2 interior techniques and one end technique. Interior techniques are
// drawn without replacement unless the pool is too small.
func (c *Catalog) BuildAction(length int) []string {
	if length < 3 {
		length = 3
	}
	inits, ends := c.special.InitNames(), c.special.EndNames()

	action := make([]string, 0, length)
	action = append(action, inits[c.src.Intn(len(inits))])
	for _, idx := range c.src.Sample(len(c.techniques), length-2) {
		action = append(action, c.techniques[idx])
	}
	action = append(action, ends[c.src.Intn(len(ends))])
	return action
}

// NewAction is BuildAction with a freshly drawn length.
func (c *Catalog) NewAction() []string {
	return c.BuildAction(c.ActionLength())
}

// SubfamilyAction returns the canonical action of a subfamily for a team,
// creating it on first use.
func (c *Catalog) SubfamilyAction(subfamily, team string) ([]string, error) {
	s, ok := c.subfamilies[subfamily]
	if !ok {
		return nil, fmt.Errorf("unknown subfamily %q", subfamily)
	}
	if a, ok := s.TeamsActions[team]; ok {
		return a, nil
	}
	a := c.NewAction()
	s.TeamsActions[team] = a
	return a, nil
}

// WithTransfer inserts the transfer technique right before the end technique.
// Actions that already carry it are returned unchanged.
func (c *Catalog) WithTransfer(action []string) []string {
	transfer := c.special.TransferName()
	for _, step := range action {
		if step == transfer {
			return action
		}
	}
	out := make([]string, 0, len(action)+1)
	out = append(out, action[:len(action)-1]...)
	out = append(out, transfer, action[len(action)-1])
	return out
}

// Similarity is 2*LCS(a, b) / (len(a)+len(b)), in [0, 1].
func Similarity(a, b []string) float64 {
	if len(a)+len(b) == 0 {
		return 1
	}
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			switch {
			case a[i-1] == b[j-1]:
				cur[j] = prev[j-1] + 1
			case prev[j] >= cur[j-1]:
				cur[j] = prev[j]
			default:
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
	}
	return 2 * float64(prev[len(b)]) / float64(len(a)+len(b))
}

// ProcessStep returns the subtechnique map of (team, family, step), creating
// it on first use. Reserved techniques share one decomposition across teams.
func (c *Catalog) ProcessStep(team, family, step string) reference.Subtechniques {
	if subs, ok := c.special.Lookup(step); ok {
		return subs
	}
	key := StepKey{Team: team, Family: family, Step: step}
	if subs, ok := c.steps[key]; ok {
		return subs
	}

	n := c.src.IntRange(c.cfg.MinSubtechniques, c.cfg.MaxSubtechniques)
	ids := c.src.Sample(256, n)
	subs := make(reference.Subtechniques, n)

	f := c.byFamily[family]
	if c.cfg.TechniquesSeasonality && f != nil && f.MeanDuration > 0 {
		// split the family's real mean duration across its canonical steps,
		// then across this step's subtechniques
		stepTotal := f.MeanDuration / float64(len(f.Action)) * c.src.Uniform(0.5, 1.5)
		shares := make([]float64, n)
		var sum float64
		for i := range shares {
			shares[i] = c.src.Uniform(0.1, 1)
			sum += shares[i]
		}
		for i, idx := range ids {
			subs[fmt.Sprintf("%02x", idx)] = stepTotal * shares[i] / sum
		}
	} else {
		for _, idx := range ids {
			subs[fmt.Sprintf("%02x", idx)] = c.baseDuration()
		}
	}
	c.steps[key] = subs
	return subs
}

// ActionDuration returns the total duration of an action and the duration of
// each step, in minutes. The total is the exact sum of the steps.
func (c *Catalog) ActionDuration(family string, action []string, team string, speed SpeedFunc) (float64, []float64) {
	steps := make([]float64, len(action))
	var total float64
	for i, step := range action {
		subs := c.ProcessStep(team, family, step)
		mult := 1.0
		if speed != nil {
			mult = speed(step)
		}
		var d float64
		for _, id := range subs.SortedIDs() {
			d += subs[id] * mult
		}
		steps[i] = d
		total += d
	}
	return total, steps
}

// StepEntry is one (team, family, step) decomposition, for snapshots.
type StepEntry struct {
	Team          string                  `json:"team"`
	Family        string                  `json:"family"`
	Step          string                  `json:"step"`
	Subtechniques reference.Subtechniques `json:"subtechniques"`
}

// Steps returns every materialized step decomposition in a stable order.
func (c *Catalog) Steps() []StepEntry {
	out := make([]StepEntry, 0, len(c.steps))
	for k, v := range c.steps {
		out = append(out, StepEntry{Team: k.Team, Family: k.Family, Step: k.Step, Subtechniques: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Team != out[j].Team {
			return out[i].Team < out[j].Team
		}
		if out[i].Family != out[j].Family {
			return out[i].Family < out[j].Family
		}
		return out[i].Step < out[j].Step
	})
	return out
}
