// Package skill tracks how fast each analyst performs each step of each
// subfamily, and how that speed improves with practice and decays when idle.
package skill

import (
	"sort"
	"time"

	"ticketsim/internal/rng"
)

const (
	MinSpeed = 0.2
	MaxSpeed = 2.0

	// deteriorateCeiling stops decay just short of MaxSpeed.
	deteriorateCeiling = 1.98
	idleWindow         = 7 * 24 * time.Hour
	minLearningRate    = 0.001
	learningRateDecay  = 0.9
)

// Key identifies one learning curve.
type Key struct {
	Subfamily string `json:"subfamily"`
	Team      string `json:"team"`
	Analyst   string `json:"analyst"`
	Step      string `json:"step"`
}

type owner struct {
	subfamily, team, analyst string
}

// Entry is the learning state of one (subfamily, team, analyst, step).
type Entry struct {
	Speed        float64 `json:"speed"`
	TargetSpeed  float64 `json:"target_speed"`
	LearningRate float64 `json:"learning_rate"`
	MaxCounter   int     `json:"max_counter"`
	CurrCounter  int     `json:"curr_counter"`
	LastIncident int64   `json:"last_incident"` // unix seconds, -1 when never used
}

// Change is the kind of speed update.
type Change string

const (
	Improved     Change = "improve"
	Deteriorated Change = "deteriorate"
)

// Observer is notified after every committed speed update.
type Observer interface {
	SkillChanged(key Key, change Change, before, after float64)
}

// Store is the per-run skill table. Entries are created on first touch.
type Store struct {
	src        *rng.Source
	minCounter int
	maxCounter int
	observer   Observer

	entries map[Key]*Entry
	steps   map[owner][]string
}

// NewStore creates an empty store. Counters are drawn in [minCounter, maxCounter].
func NewStore(src *rng.Source, minCounter, maxCounter int, observer Observer) *Store {
	return &Store{
		src:        src,
		minCounter: minCounter,
		maxCounter: maxCounter,
		observer:   observer,
		entries:    make(map[Key]*Entry),
		steps:      make(map[owner][]string),
	}
}

// InitialSpeed maps an analyst's growth and a learning rate to a starting
// speed. Faster learners (higher growth) start faster; a higher learning rate
// leaves more room to improve.
func InitialSpeed(growth, learningRate float64) float64 {
	if growth <= 0 {
		growth = 1
	}
	return clamp(2/growth*(0.8+2*learningRate), MinSpeed, MaxSpeed)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Get returns the entry for key, creating it if needed.
func (s *Store) Get(key Key, growth float64) *Entry {
	if e, ok := s.entries[key]; ok {
		return e
	}
	lr := s.src.Uniform(0.01, 0.10)
	speed := InitialSpeed(growth, lr)
	e := &Entry{
		Speed:        speed,
		TargetSpeed:  s.src.Uniform(MinSpeed, speed),
		LearningRate: lr,
		MaxCounter:   s.src.IntRange(s.minCounter, s.maxCounter),
		LastIncident: -1,
	}
	s.entries[key] = e
	o := owner{key.Subfamily, key.Team, key.Analyst}
	s.steps[o] = append(s.steps[o], key.Step)
	return e
}

// Speed returns the multiplier an analyst applies to a step.
func (s *Store) Speed(subfamily, team, analyst, step string, growth float64) float64 {
	return s.Get(Key{subfamily, team, analyst, step}, growth).Speed
}

// Improve applies one practice step: speed shrinks toward the target, never
// below it, and the learning rate decays.
func Improve(e *Entry, growth float64) {
	next := e.Speed * (1 - e.LearningRate*growth)
	if next < e.TargetSpeed {
		next = e.TargetSpeed
	}
	e.Speed = next
	e.LearningRate *= learningRateDecay
	if e.LearningRate < minLearningRate {
		e.LearningRate = minLearningRate
	}
}

// Deteriorate applies one decay step, capped at MaxSpeed.
func Deteriorate(e *Entry, growth float64) {
	next := e.Speed * (1 + e.LearningRate*growth)
	if next > MaxSpeed {
		next = MaxSpeed
	}
	e.Speed = next
}

// Learn updates the curves of an analyst after handling subfamily with action
// at now. Steps in the action count toward improvement; steps the analyst
// knows but did not use decay after a week idle.
func (s *Store) Learn(subfamily, team, analyst string, growth float64, action []string, now time.Time) {
	ts := now.Unix()
	used := make(map[string]bool, len(action))

	for _, step := range action {
		used[step] = true
		key := Key{subfamily, team, analyst, step}
		e := s.Get(key, growth)
		e.CurrCounter++
		e.LastIncident = ts
		if e.CurrCounter < e.MaxCounter {
			continue
		}
		e.CurrCounter = 0
		if e.Speed > e.TargetSpeed {
			before := e.Speed
			Improve(e, growth)
			s.notify(key, Improved, before, e.Speed)
		}
	}

	for _, step := range s.steps[owner{subfamily, team, analyst}] {
		if used[step] {
			continue
		}
		key := Key{subfamily, team, analyst, step}
		e := s.entries[key]
		if e.LastIncident == -1 {
			continue
		}
		if now.Sub(time.Unix(e.LastIncident, 0)) > idleWindow && e.Speed < deteriorateCeiling {
			before := e.Speed
			Deteriorate(e, growth)
			e.CurrCounter = 0
			e.LastIncident = ts
			s.notify(key, Deteriorated, before, e.Speed)
		}
	}
}

func (s *Store) notify(key Key, change Change, before, after float64) {
	if s.observer != nil {
		s.observer.SkillChanged(key, change, before, after)
	}
}

// Len returns the number of curves.
func (s *Store) Len() int {
	return len(s.entries)
}

// Record is one curve in a snapshot.
type Record struct {
	Key
	Entry
}

// Snapshot returns every curve sorted by key.
func (s *Store) Snapshot() []Record {
	out := make([]Record, 0, len(s.entries))
	for k, e := range s.entries {
		out = append(out, Record{Key: k, Entry: *e})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Key, out[j].Key
		if a.Subfamily != b.Subfamily {
			return a.Subfamily < b.Subfamily
		}
		if a.Team != b.Team {
			return a.Team < b.Team
		}
		if a.Analyst != b.Analyst {
			return a.Analyst < b.Analyst
		}
		return a.Step < b.Step
	})
	return out
}
