package simulation

import (
	"time"

	"ticketsim/internal/eventlog"
	"ticketsim/internal/rng"
	"ticketsim/internal/stats"
	"ticketsim/internal/ticket"
)

const forecastTrials = 1000

// TeamSummary describes how one team coped with its load.
type TeamSummary struct {
	Team       string                      `json:"team"`
	Handled    int                         `json:"handled"`
	Unresolved int                         `json:"unresolved"`
	Throughput []eventlog.ThroughputBucket `json:"throughput"`
	Wait       stats.Percentiles           `json:"wait_minutes"`
	MedianWait float64                     `json:"median_wait_minutes"`
	Duration   stats.Percentiles           `json:"duration_minutes"`
	// MedianDaily is the median number of tickets closed per day.
	MedianDaily float64         `json:"median_daily_throughput"`
	FatTail     float64         `json:"fat_tail"`
	Stability   stats.XmRResult `json:"stability"`
}

// Summary is logged at the end of a run and embedded in the state file.
type Summary struct {
	Teams []TeamSummary `json:"teams"`
	// Correlation of the daily throughput of the two lowest tiers.
	TierCorrelation float64  `json:"tier_correlation"`
	Forecast        Forecast `json:"test_backlog_forecast"`
}

// summarize builds per-team figures from the event log and the handled tickets,
// then forecasts how many days the test backlog would take at the observed pace.
func summarize(events *eventlog.EventStore, teams []string, handled []*ticket.Ticket,
	start, end time.Time, backlog int, src *rng.Source) *Summary {
	byTeam := make(map[string][]*ticket.Ticket)
	for _, tk := range handled {
		byTeam[tk.Team] = append(byTeam[tk.Team], tk)
	}

	s := &Summary{}
	total := make([]int, days(start, end))
	var series [][]int
	for _, team := range teams {
		log := events.Events(team)
		ts := TeamSummary{
			Team:       team,
			Throughput: eventlog.BuildThroughputProjection(events.GetEventsInRange(team, start, end)),
		}

		var waits []float64
		for _, w := range eventlog.WaitTimes(log) {
			waits = append(waits, w)
		}
		ts.Wait = stats.Summarize(waits)
		ts.MedianWait = stats.Median(waits)

		var durations []float64
		for _, tk := range byTeam[team] {
			if tk.Resolution == nil {
				ts.Unresolved++
				continue
			}
			ts.Handled++
			durations = append(durations, tk.Resolution.DurationOutlier)
		}
		ts.Duration = stats.Summarize(durations)

		daily := dailyCounts(ts.Throughput, start, end)
		ts.FatTail = stats.FatTail(daily)
		values := make([]float64, len(daily))
		keys := make([]string, len(daily))
		for i, c := range daily {
			total[i] += c
			values[i] = float64(c)
			keys[i] = start.AddDate(0, 0, i).Format("2006-01-02")
		}
		ts.MedianDaily = stats.Median(values)
		ts.Stability = stats.CalculateXmRWithKeys(values, keys)
		series = append(series, daily)
		s.Teams = append(s.Teams, ts)
	}

	if len(series) > 1 {
		s.TierCorrelation = stats.Correlation(series[0], series[1])
	}
	s.Forecast = NewEngine(total, src).Run(backlog, forecastTrials)
	return s
}

func days(start, end time.Time) int {
	n := int(end.Sub(start).Hours() / 24)
	if n < 1 {
		return 1
	}
	return n
}

// dailyCounts expands sparse buckets into one count per day of [start, end),
// including days without closures.
func dailyCounts(buckets []eventlog.ThroughputBucket, start, end time.Time) []int {
	out := make([]int, days(start, end))
	for _, b := range buckets {
		i := int(b.Date.Sub(start).Hours() / 24)
		if i < 0 || i >= len(out) {
			continue
		}
		out[i] += b.Count
	}
	return out
}
