// Package seasonality weighs ticket arrivals over time: month of year, day of
// week and five-minute slot of the day, per family, plus a linear growth trend
// across the simulated horizon.
package seasonality

import (
	"sort"
	"time"

	"ticketsim/internal/config"
	"ticketsim/internal/reference"
	"ticketsim/internal/rng"
)

// SlotMinutes is the resolution of the arrival grid.
const SlotMinutes = 5

// SlotsPerDay is the number of arrival slots in a day.
const SlotsPerDay = 24 * 60 / SlotMinutes

// Family names a family for the model: its synthetic name and, when mined from
// reference data, the canonical name the bundle is keyed by.
type Family struct {
	Name      string
	Reference string
}

// Options selects which dimensions are driven by reference data.
type Options struct {
	TicketSeasonality bool
	FamilySeasonality bool
	TimeEqual         bool
	WeekEqual         bool
	GrowthType        string
	GrowthRate        float64
	Start             time.Time
	End               time.Time
}

// OptionsFrom maps the simulation config onto model options.
func OptionsFrom(cfg *config.SimConfig) Options {
	return Options{
		TicketSeasonality: cfg.TicketSeasonality,
		FamilySeasonality: cfg.FamilySeasonality,
		TimeEqual:         cfg.TimeEqualProbabilities,
		WeekEqual:         cfg.WeekEqualProbabilities,
		GrowthType:        cfg.TicketGrowthType,
		GrowthRate:        cfg.TicketGrowthRate,
		Start:             cfg.Start(),
		End:               cfg.End(),
	}
}

// Model holds normalized per-family weights. Missing tables are uniform.
type Model struct {
	families []string
	opts     Options

	// month[m][f]: share of family f in month m (1..12), rows sum to 1
	month [13][]float64
	// ticketMonth[m]: share of yearly volume in month m, set only when seasonal
	ticketMonth [13]float64
	seasonal    bool
	// weekday[f][d], hour[f][h]: rows sum to 1
	weekday [][7]float64
	hour    [][24]float64
}

// New builds a model for the given families. A nil or empty bundle yields
// uniform weights everywhere.
func New(families []Family, bundle *reference.Bundle, opts Options) *Model {
	n := len(families)
	m := &Model{
		opts:    opts,
		weekday: make([][7]float64, n),
		hour:    make([][24]float64, n),
	}
	for _, f := range families {
		m.families = append(m.families, f.Name)
	}
	hasRef := !bundle.Empty()

	for month := 1; month <= 12; month++ {
		row := make([]float64, n)
		var sum float64
		if hasRef && opts.FamilySeasonality {
			for i, f := range families {
				row[i] = bundle.FamilySeasonality[month][f.Reference]
				sum += row[i]
			}
		}
		normalize(row, sum)
		m.month[month] = row

		m.ticketMonth[month] = 1.0 / 12
		if hasRef && opts.TicketSeasonality && bundle.TicketSeasonality != nil {
			m.seasonal = true
			ts := bundle.TicketSeasonality
			if ts.IsHigh(month) && len(ts.HighMonths) > 0 {
				m.ticketMonth[month] = ts.HighShare / float64(len(ts.HighMonths))
			} else if len(ts.LowMonths) > 0 {
				m.ticketMonth[month] = ts.LowShare / float64(len(ts.LowMonths))
			}
		}
	}

	for i, f := range families {
		var wd, hr []float64
		if hasRef {
			wd = bundle.FamilyWeekday[f.Reference]
			hr = bundle.FamilyTimeOfDay[f.Reference]
		}
		m.weekday[i] = fill7(wd, opts.WeekEqual)
		m.hour[i] = fill24(hr, opts.TimeEqual)
	}
	return m
}

func normalize(row []float64, sum float64) {
	if sum <= 0 {
		for i := range row {
			row[i] = 1 / float64(len(row))
		}
		return
	}
	for i := range row {
		row[i] /= sum
	}
}

func fill7(src []float64, uniform bool) [7]float64 {
	var out [7]float64
	var sum float64
	if !uniform && len(src) == 7 {
		for i, v := range src {
			if v > 0 {
				out[i] = v
				sum += v
			}
		}
	}
	normalize(out[:], sum)
	return out
}

func fill24(src []float64, uniform bool) [24]float64 {
	var out [24]float64
	var sum float64
	if !uniform && len(src) == 24 {
		for i, v := range src {
			if v > 0 {
				out[i] = v
				sum += v
			}
		}
	}
	normalize(out[:], sum)
	return out
}

// Families returns the family names the model weighs, in index order.
func (m *Model) Families() []string {
	return m.families
}

// Growth returns the trend factor g(t): 1 at the start of the horizon, 1±rate
// at its end, constant 1 for Maintain. Times outside the horizon are clamped.
func (m *Model) Growth(t time.Time) float64 {
	rate := m.opts.GrowthRate
	switch m.opts.GrowthType {
	case config.GrowthIncrease:
		return 1 + rate*m.progress(t)
	case config.GrowthDecrease:
		return 1 - rate*m.progress(t)
	default:
		return 1
	}
}

func (m *Model) progress(t time.Time) float64 {
	span := m.opts.End.Sub(m.opts.Start)
	if span <= 0 {
		return 0
	}
	p := float64(t.Sub(m.opts.Start)) / float64(span)
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// FamilyWeights returns the joint month x weekday x time-of-day weight of each
// family at t.
func (m *Model) FamilyWeights(t time.Time) []float64 {
	t = t.UTC()
	month, wd, h := int(t.Month()), int(t.Weekday()), t.Hour()
	out := make([]float64, len(m.families))
	for i := range m.families {
		out[i] = m.month[month][i] * m.weekday[i][wd] * m.hour[i][h]
	}
	return out
}

// SampleArrival draws a family index with probability proportional to its
// joint weight at t.
func (m *Model) SampleArrival(t time.Time, src *rng.Source) int {
	return src.Weighted(m.FamilyWeights(t))
}

// SlotWeight is the relative arrival volume of the slot containing t.
// Weekday and time-of-day rows are scaled so that uniform tables give 1.
func (m *Model) SlotWeight(t time.Time) float64 {
	t = t.UTC()
	var mix float64
	for _, w := range m.FamilyWeights(t) {
		mix += w
	}
	mix *= 7 * 24

	vol := 1.0
	if m.seasonal {
		days := time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
		vol = m.ticketMonth[int(t.Month())] * 12 * 30 / float64(days)
	}
	return vol * mix * m.Growth(t)
}

// Slots returns the start of every slot in [start, end).
func Slots(start, end time.Time) []time.Time {
	var out []time.Time
	step := SlotMinutes * time.Minute
	for t := start; t.Before(end); t = t.Add(step) {
		out = append(out, t)
	}
	return out
}

func (m *Model) cumulative(slots []time.Time) []float64 {
	cum := make([]float64, len(slots))
	var acc float64
	for i, s := range slots {
		acc += m.SlotWeight(s)
		cum[i] = acc
	}
	return cum
}

// ExpectedCount spreads total arrivals over [start, end) and returns how many
// fall in [from, to), rounded to the nearest ticket.
func (m *Model) ExpectedCount(start, end, from, to time.Time, total int) int {
	slots := Slots(start, end)
	if len(slots) == 0 {
		return 0
	}
	cum := m.cumulative(slots)
	all := cum[len(cum)-1]
	if all <= 0 {
		return 0
	}
	var in float64
	for i, s := range slots {
		if !s.Before(from) && s.Before(to) {
			w := cum[i]
			if i > 0 {
				w -= cum[i-1]
			}
			in += w
		}
	}
	return int(float64(total)*in/all + 0.5)
}

// Distribute draws n arrival times in [start, end) with probability
// proportional to slot weight, jittered uniformly inside each slot at second
// resolution and never past end. The result is sorted.
func (m *Model) Distribute(start, end time.Time, n int, src *rng.Source) []time.Time {
	slots := Slots(start, end)
	if len(slots) == 0 || n <= 0 {
		return nil
	}
	idx := src.Cumulative(m.cumulative(slots), n)
	out := make([]time.Time, len(idx))
	for i, k := range idx {
		// the last slot is cut short when end is not slot-aligned
		width := SlotMinutes * 60
		if left := int(end.Sub(slots[k]) / time.Second); left < width {
			width = max(left, 1)
		}
		out[i] = slots[k].Add(time.Duration(src.Intn(width)) * time.Second)
	}
	// jitter can reorder arrivals that share a slot
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
