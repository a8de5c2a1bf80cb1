package catalog

import "ticketsim/internal/config"

// teamPicker assigns subfamilies to teams with smooth weighted round-robin over
// the team frequencies. With lowestFirst every subfamily lands on the lowest
// tier, so higher tiers only receive escalations and replicas.
type teamPicker struct {
	names       []string
	weights     []float64
	current     []float64
	total       float64
	lowestFirst bool
}

func newTeamPicker(teams []config.TeamConfig, lowestFirst bool) *teamPicker {
	p := &teamPicker{lowestFirst: lowestFirst}
	for _, t := range teams {
		p.names = append(p.names, t.Name)
		p.weights = append(p.weights, t.Frequency)
		p.total += t.Frequency
	}
	p.current = make([]float64, len(teams))
	if p.total <= 0 {
		for i := range p.weights {
			p.weights[i] = 1
		}
		p.total = float64(len(p.weights))
	}
	return p
}

func (p *teamPicker) next() string {
	if p.lowestFirst || len(p.names) == 1 {
		return p.names[0]
	}
	best := 0
	for i := range p.current {
		p.current[i] += p.weights[i]
		if p.current[i] > p.current[best] {
			best = i
		}
	}
	p.current[best] -= p.total
	return p.names[best]
}
