package output

import (
	"ticketsim/internal/catalog"
	"ticketsim/internal/config"
	"ticketsim/internal/dispatch"
	"ticketsim/internal/reference"
	"ticketsim/internal/simulation"
	"ticketsim/internal/skill"
	"ticketsim/internal/synth"
)

// State is the generator state written next to the datasets. It carries
// enough to explain every generated row.
type State struct {
	RunID       string                  `json:"run_id"`
	Seed        uint64                  `json:"seed"`
	Config      *config.SimConfig       `json:"config"`
	Families    []*catalog.Family       `json:"families"`
	Subfamilies []*catalog.Subfamily    `json:"subfamilies"`
	Techniques  []string                `json:"techniques"`
	Special     *reference.SpecialSteps `json:"special_steps"`
	Steps       []catalog.StepEntry     `json:"steps"`
	Skills      []skill.Record          `json:"skills"`
	Analysts    []*dispatch.Analyst     `json:"analysts"`
	Train       synth.Stats             `json:"train"`
	Test        synth.Stats             `json:"test"`
	Dispatch    dispatch.Stats          `json:"dispatch"`
	Summary     *simulation.Summary     `json:"summary,omitempty"`
}

// NewState collects the state of a finished run.
func NewState(res *simulation.Result) *State {
	s := &State{
		RunID:    res.RunID,
		Seed:     res.Seed,
		Config:   res.Config,
		Analysts: res.Analysts,
		Train:    res.TrainStats,
		Test:     res.TestStats,
		Dispatch: res.Dispatch,
		Summary:  res.Summary,
	}
	if res.Catalog != nil {
		s.Families = res.Catalog.Families()
		s.Subfamilies = res.Catalog.Subfamilies()
		s.Techniques = res.Catalog.Techniques()
		s.Special = res.Catalog.Special()
		s.Steps = res.Catalog.Steps()
	}
	if res.Skills != nil {
		s.Skills = res.Skills.Snapshot()
	}
	return s
}
