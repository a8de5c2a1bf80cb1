package dispatch

import (
	"fmt"
	"time"

	"ticketsim/internal/config"
	"ticketsim/internal/rng"
)

// Interval is a busy period of an analyst.
type Interval struct {
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	TicketID int64     `json:"ticket_id"`
}

// Usage aggregates the work an analyst did on one subfamily.
type Usage struct {
	TimeSpent float64 `json:"time_spent"`
	Count     int     `json:"count"`
}

// Analyst is one member of a team roster.
type Analyst struct {
	Name        string            `json:"name"`
	Team        string            `json:"team"`
	Shift       string            `json:"shift"`
	Growth      float64           `json:"growth"`
	RefusalRate float64           `json:"refusal_rate"`
	Handled     int               `json:"handled"`
	Summary     map[string]*Usage `json:"summary"`

	queue []Interval
}

// newRoster draws the analysts of a team. With balanced shifts analysts are
// dealt round-robin over the shifts, otherwise each shift is drawn uniformly.
func newRoster(team config.TeamConfig, shifts []string, balanced bool, src *rng.Source) []*Analyst {
	out := make([]*Analyst, 0, team.Analysts)
	for i := 0; i < team.Analysts; i++ {
		shift := shifts[i%len(shifts)]
		if !balanced {
			shift = shifts[src.Intn(len(shifts))]
		}
		out = append(out, &Analyst{
			Name:        fmt.Sprintf("%s-%02d", team.Name, i+1),
			Team:        team.Name,
			Shift:       shift,
			Growth:      src.Uniform(1.0, 2.0),
			RefusalRate: src.Uniform(0.01, 0.2),
			Summary:     make(map[string]*Usage),
		})
	}
	return out
}

// freeAt drops finished intervals and reports whether nothing is pending at t.
func (a *Analyst) freeAt(t time.Time) bool {
	i := 0
	for i < len(a.queue) && !a.queue[i].End.After(t) {
		i++
	}
	a.queue = a.queue[i:]
	return len(a.queue) == 0
}

// busyUntil is the end of the last booked interval, zero when idle.
func (a *Analyst) busyUntil() time.Time {
	if len(a.queue) == 0 {
		return time.Time{}
	}
	return a.queue[len(a.queue)-1].End
}

func (a *Analyst) book(start, end time.Time, ticketID int64) {
	a.queue = append(a.queue, Interval{Start: start, End: end, TicketID: ticketID})
	a.Handled++
}

func (a *Analyst) spent(subfamily string) float64 {
	if u, ok := a.Summary[subfamily]; ok {
		return u.TimeSpent
	}
	return 0
}

func (a *Analyst) record(subfamily string, minutes float64) {
	u, ok := a.Summary[subfamily]
	if !ok {
		u = &Usage{}
		a.Summary[subfamily] = u
	}
	u.TimeSpent += minutes
	u.Count++
}
