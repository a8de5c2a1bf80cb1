package seasonality

import (
	"math"
	"testing"
	"time"

	"ticketsim/internal/config"
	"ticketsim/internal/reference"
	"ticketsim/internal/rng"
)

var (
	day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	fams = []Family{{Name: "F01", Reference: "a"}, {Name: "F02", Reference: "b"}}
)

func baseOptions() Options {
	return Options{GrowthType: config.GrowthMaintain, Start: day0, End: day0.AddDate(0, 0, 10)}
}

func TestNew_UniformWithoutReference(t *testing.T) {
	m := New(fams, nil, baseOptions())
	w := m.FamilyWeights(day0.Add(13 * time.Hour))
	if math.Abs(w[0]-w[1]) > 1e-12 {
		t.Errorf("expected equal family weights, got %v", w)
	}
	if got := m.SlotWeight(day0); math.Abs(got-1) > 1e-9 {
		t.Errorf("uniform slot weight = %v, want 1", got)
	}
}

func TestGrowth(t *testing.T) {
	tests := []struct {
		name   string
		growth string
		at     time.Duration
		want   float64
	}{
		{"maintain", config.GrowthMaintain, 5 * 24 * time.Hour, 1},
		{"increase start", config.GrowthIncrease, 0, 1},
		{"increase mid", config.GrowthIncrease, 5 * 24 * time.Hour, 1.25},
		{"increase end", config.GrowthIncrease, 10 * 24 * time.Hour, 1.5},
		{"decrease end", config.GrowthDecrease, 10 * 24 * time.Hour, 0.5},
		{"clamped after horizon", config.GrowthIncrease, 30 * 24 * time.Hour, 1.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := baseOptions()
			opts.GrowthType = tt.growth
			opts.GrowthRate = 0.5
			m := New(fams, nil, opts)
			if got := m.Growth(day0.Add(tt.at)); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Growth = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExpectedCount(t *testing.T) {
	m := New(fams, nil, baseOptions())
	end := day0.AddDate(0, 0, 2)
	if got := m.ExpectedCount(day0, end, day0, day0.AddDate(0, 0, 1), 100); got != 50 {
		t.Errorf("uniform first day = %d, want 50", got)
	}

	opts := baseOptions()
	opts.GrowthType = config.GrowthIncrease
	opts.GrowthRate = 0.9
	opts.End = end
	grow := New(fams, nil, opts)
	first := grow.ExpectedCount(day0, end, day0, day0.AddDate(0, 0, 1), 1000)
	if first >= 500 {
		t.Errorf("growing trend should put fewer tickets in the first half, got %d", first)
	}
}

func TestDistribute(t *testing.T) {
	seed := int64(3)
	src := rng.New(&seed)
	m := New(fams, nil, baseOptions())
	end := day0.AddDate(0, 0, 3)

	arrivals := m.Distribute(day0, end, 500, src)
	if len(arrivals) != 500 {
		t.Fatalf("expected 500 arrivals, got %d", len(arrivals))
	}
	for i, a := range arrivals {
		if a.Before(day0) || !a.Before(end) {
			t.Fatalf("arrival %v outside window", a)
		}
		if i > 0 && a.Before(arrivals[i-1]) {
			t.Fatalf("arrivals not sorted at %d", i)
		}
	}
}

func TestDistribute_UnalignedEnd(t *testing.T) {
	seed := int64(5)
	src := rng.New(&seed)
	m := New(fams, nil, baseOptions())
	end := day0.Add(7*time.Minute + 30*time.Second)

	arrivals := m.Distribute(day0, end, 400, src)
	if len(arrivals) != 400 {
		t.Fatalf("expected 400 arrivals, got %d", len(arrivals))
	}
	late := 0
	for _, a := range arrivals {
		if !a.Before(end) {
			t.Fatalf("arrival %v at or past end %v", a, end)
		}
		if !a.Before(day0.Add(SlotMinutes * time.Minute)) {
			late++
		}
	}
	if late == 0 {
		t.Errorf("the trailing partial slot should still receive arrivals")
	}
}

func TestReferenceWeights(t *testing.T) {
	hours := make([]float64, 24)
	hours[3] = 1
	bundle := &reference.Bundle{
		FamilyMapping:   map[string]string{"a": "F01", "b": "F02"},
		FamilyTimeOfDay: map[string][]float64{"a": hours},
		TicketSeasonality: &reference.TicketSeasonality{
			HighMonths: []int{1},
			LowMonths:  []int{2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12},
			HighShare:  0.8,
			LowShare:   0.2,
		},
	}
	opts := baseOptions()
	opts.TicketSeasonality = true
	opts.FamilySeasonality = true
	m := New(fams, bundle, opts)

	at3 := m.FamilyWeights(day0.Add(3 * time.Hour))
	at5 := m.FamilyWeights(day0.Add(5 * time.Hour))
	if at3[0] <= 0 || at5[0] != 0 {
		t.Errorf("family a must only arrive at 03h: at3=%v at5=%v", at3, at5)
	}
	if at5[1] <= 0 {
		t.Errorf("family b has uniform hours, got %v", at5)
	}

	jan := m.SlotWeight(time.Date(2024, 1, 10, 3, 0, 0, 0, time.UTC))
	feb := m.SlotWeight(time.Date(2024, 2, 7, 3, 0, 0, 0, time.UTC))
	if jan <= feb {
		t.Errorf("high-season slot should outweigh low season: jan=%v feb=%v", jan, feb)
	}

	opts.TimeEqual = true
	flat := New(fams, bundle, opts)
	if w := flat.FamilyWeights(day0.Add(5 * time.Hour)); w[0] == 0 {
		t.Errorf("time_equal_probabilities must override the hour table")
	}
}

func TestSampleArrival_OnlyPositiveFamilies(t *testing.T) {
	hours := make([]float64, 24)
	hours[3] = 1
	bundle := &reference.Bundle{
		FamilyMapping:   map[string]string{"a": "F01", "b": "F02"},
		FamilyTimeOfDay: map[string][]float64{"a": hours},
	}
	m := New(fams, bundle, baseOptions())
	seed := int64(9)
	src := rng.New(&seed)
	for i := 0; i < 100; i++ {
		if idx := m.SampleArrival(day0.Add(10*time.Hour), src); idx != 1 {
			t.Fatalf("family a has no weight at 10h, drew %d", idx)
		}
	}
}
