package dispatch

import (
	"sort"
	"time"

	"ticketsim/internal/config"
)

// calendar answers shift questions for a UTC timestamp. Shifts repeat daily.
type calendar struct {
	shifts []config.ShiftConfig
}

func newCalendar(shifts []config.ShiftConfig) calendar {
	c := calendar{shifts: append([]config.ShiftConfig(nil), shifts...)}
	sort.Slice(c.shifts, func(i, j int) bool { return c.shifts[i].Start < c.shifts[j].Start })
	return c
}

func midnight(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// at returns the shift covering t.
func (c calendar) at(t time.Time) (config.ShiftConfig, bool) {
	h := t.UTC().Hour()
	for _, s := range c.shifts {
		if h >= s.Start && h < s.End {
			return s, true
		}
	}
	return config.ShiftConfig{}, false
}

// start returns when shift s, running at t, began.
func (c calendar) start(t time.Time, s config.ShiftConfig) time.Time {
	return midnight(t).Add(time.Duration(s.Start) * time.Hour)
}

// length is the duration of one occurrence of s.
func (c calendar) length(s config.ShiftConfig) time.Duration {
	return time.Duration(s.End-s.Start) * time.Hour
}

// end returns when shift s, running at t, finishes.
func (c calendar) end(t time.Time, s config.ShiftConfig) time.Time {
	return midnight(t).Add(time.Duration(s.End) * time.Hour)
}

// nextStart returns the first shift start strictly after t.
func (c calendar) nextStart(t time.Time) time.Time {
	day := midnight(t)
	for d := 0; d <= 1; d++ {
		for _, s := range c.shifts {
			start := day.AddDate(0, 0, d).Add(time.Duration(s.Start) * time.Hour)
			if start.After(t) {
				return start
			}
		}
	}
	return day.AddDate(0, 0, 1)
}

// names returns the shift names in start order.
func (c calendar) names() []string {
	out := make([]string, len(c.shifts))
	for i, s := range c.shifts {
		out[i] = s.Name
	}
	return out
}
