package simulation

import (
	"sort"

	"ticketsim/internal/rng"
)

// maxForecastDays stops a trial on histograms without throughput.
const maxForecastDays = 10000

// Engine performs the Monte-Carlo backlog forecast over a daily throughput
// histogram observed in the train window.
type Engine struct {
	counts []int
	src    *rng.Source
}

// Forecast holds the percentiles, in days, of clearing a backlog.
type Forecast struct {
	Backlog int `json:"backlog"`
	Trials  int `json:"trials"`
	P50     int `json:"p50"`
	P85     int `json:"p85"`
	P95     int `json:"p95"`
}

// NewEngine samples from the run's random stream so forecasts are reproducible.
func NewEngine(counts []int, src *rng.Source) *Engine {
	return &Engine{counts: counts, src: src}
}

// Run performs the requested number of trials.
func (e *Engine) Run(backlogSize int, trials int) Forecast {
	f := Forecast{Backlog: backlogSize, Trials: trials}
	if len(e.counts) == 0 || trials <= 0 || backlogSize <= 0 {
		return f
	}

	durations := make([]int, trials)
	for i := 0; i < trials; i++ {
		durations[i] = e.simulateTrial(backlogSize)
	}
	sort.Ints(durations)

	f.P50 = durations[int(float64(trials)*0.50)]
	f.P85 = durations[int(float64(trials)*0.85)]
	f.P95 = durations[int(float64(trials)*0.95)]
	return f
}

func (e *Engine) simulateTrial(backlog int) int {
	days := 0
	remaining := backlog

	for remaining > 0 {
		days++
		// Randomly sample a day from history
		remaining -= e.counts[e.src.Intn(len(e.counts))]
		if days > maxForecastDays {
			break
		}
	}
	return days
}
