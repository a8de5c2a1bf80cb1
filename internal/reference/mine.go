package reference

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"ticketsim/internal/rng"
)

// Record is one row of a reference ticket dataset.
// Family and Raised may be missing; Mine repairs them.
type Record struct {
	Family    string     `json:"family,omitempty"`
	Subfamily string     `json:"subfamily"`
	Raised    *time.Time `json:"raised,omitempty"`
	Duration  float64    `json:"duration"`
}

// MineReport counts the data-quality repairs applied while mining.
type MineReport struct {
	Records            int `json:"records"`
	RepairedFamilies   int `json:"repaired_families"`
	RepairedTimestamps int `json:"repaired_timestamps"`
	Dropped            int `json:"dropped"`
}

// timestampJitterMinutes bounds the jitter added to inferred timestamps.
const timestampJitterMinutes = 4

// Mine derives a seasonality bundle from reference records.
func Mine(records []Record, src *rng.Source) (*Bundle, MineReport, error) {
	report := MineReport{Records: len(records)}
	if len(records) == 0 {
		return nil, report, ErrMissing
	}

	rows := make([]Record, len(records))
	copy(rows, records)

	// 1. Known families, used for prefix inference and uniform fallback
	familySet := make(map[string]struct{})
	for _, r := range rows {
		if r.Family != "" {
			familySet[r.Family] = struct{}{}
		}
	}
	if len(familySet) == 0 {
		return nil, report, fmt.Errorf("%w: no record carries a family", ErrMissing)
	}
	families := make([]string, 0, len(familySet))
	for f := range familySet {
		families = append(families, f)
	}
	sort.Strings(families)

	for i := range rows {
		if rows[i].Family != "" {
			continue
		}
		report.RepairedFamilies++
		if f := familyFromSubfamily(rows[i].Subfamily); f != "" {
			if _, ok := familySet[f]; ok {
				rows[i].Family = f
				continue
			}
		}
		rows[i].Family = families[src.Intn(len(families))]
	}

	// 2. Missing timestamps: per-subfamily mean plus jitter
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, r := range rows {
		if r.Raised != nil {
			sums[r.Subfamily] += float64(r.Raised.Unix())
			counts[r.Subfamily]++
		}
	}
	kept := rows[:0]
	for _, r := range rows {
		if r.Raised == nil {
			n := counts[r.Subfamily]
			if n == 0 {
				report.Dropped++
				continue
			}
			mean := sums[r.Subfamily] / float64(n)
			jitter := src.Uniform(-timestampJitterMinutes, timestampJitterMinutes) * 60
			t := time.Unix(int64(mean+jitter), 0).UTC()
			r.Raised = &t
			report.RepairedTimestamps++
		}
		kept = append(kept, r)
	}
	rows = kept
	if len(rows) == 0 {
		return nil, report, fmt.Errorf("%w: every record was dropped during repair", ErrMissing)
	}

	// 3. Aggregate
	monthVolume := make(map[int]float64)
	monthFamily := make(map[int]map[string]float64)
	hourly := make(map[string][]float64)
	weekday := make(map[string][]float64)
	durSum := make(map[string]float64)
	durCount := make(map[string]int)

	for _, r := range rows {
		t := r.Raised.UTC()
		m := int(t.Month())
		monthVolume[m]++
		if monthFamily[m] == nil {
			monthFamily[m] = make(map[string]float64)
		}
		monthFamily[m][r.Family]++
		if hourly[r.Family] == nil {
			hourly[r.Family] = make([]float64, 24)
			weekday[r.Family] = make([]float64, 7)
		}
		hourly[r.Family][t.Hour()]++
		weekday[r.Family][int(t.Weekday())]++
		if r.Duration > 0 {
			durSum[r.Family] += r.Duration
			durCount[r.Family]++
		}
	}

	for m, fams := range monthFamily {
		total := monthVolume[m]
		for f := range fams {
			fams[f] /= total
		}
	}

	mapping := make(map[string]string, len(families))
	for i, f := range families {
		mapping[f] = fmt.Sprintf("F%02d", i+1)
	}

	means := make(map[string]float64)
	for f, n := range durCount {
		means[f] = durSum[f] / float64(n)
	}

	season := SplitSeasons(monthVolume)
	return &Bundle{
		TicketSeasonality:  &season,
		FamilySeasonality:  monthFamily,
		FamilyTimeOfDay:    normalizeRows(hourly),
		FamilyWeekday:      normalizeRows(weekday),
		FamilyMeanDuration: means,
		FamilyMapping:      mapping,
	}, report, nil
}

// SplitSeasons ranks months by volume and median-splits them into a high and a
// low set, recording each set's share of the total.
func SplitSeasons(monthVolume map[int]float64) TicketSeasonality {
	months := make([]int, 0, len(monthVolume))
	total := 0.0
	for m, v := range monthVolume {
		months = append(months, m)
		total += v
	}
	sort.Slice(months, func(i, j int) bool {
		vi, vj := monthVolume[months[i]], monthVolume[months[j]]
		if vi != vj {
			return vi > vj
		}
		return months[i] < months[j]
	})

	half := len(months) / 2
	if len(months)%2 == 1 {
		half++
	}
	high := append([]int(nil), months[:half]...)
	low := append([]int(nil), months[half:]...)
	sort.Ints(high)
	sort.Ints(low)

	s := TicketSeasonality{HighMonths: high, LowMonths: low}
	if total > 0 {
		for _, m := range high {
			s.HighShare += monthVolume[m]
		}
		s.HighShare /= total
		s.LowShare = 1 - s.HighShare
	}
	return s
}

func familyFromSubfamily(sub string) string {
	idx := strings.LastIndex(sub, "-")
	if idx <= 0 {
		return ""
	}
	return sub[:idx]
}

func normalizeRows(rows map[string][]float64) map[string][]float64 {
	out := make(map[string][]float64, len(rows))
	for k, row := range rows {
		total := 0.0
		for _, v := range row {
			total += v
		}
		norm := make([]float64, len(row))
		if total > 0 {
			for i, v := range row {
				norm[i] = v / total
			}
		}
		out[k] = norm
	}
	return out
}
