package simulation

import (
	"testing"

	"ticketsim/internal/rng"
)

func TestEngine_ConstantThroughput(t *testing.T) {
	seed := int64(1)
	e := NewEngine([]int{5, 5, 5}, rng.New(&seed))
	got := e.Run(12, 100)
	// 12 items at 5 per day always take 3 days
	if got.P50 != 3 || got.P85 != 3 || got.P95 != 3 {
		t.Errorf("expected 3 days at every percentile, got %+v", got)
	}
	if got.Backlog != 12 || got.Trials != 100 {
		t.Errorf("forecast did not echo its inputs: %+v", got)
	}
}

func TestEngine_Ordering(t *testing.T) {
	seed := int64(7)
	e := NewEngine([]int{0, 1, 2, 10}, rng.New(&seed))
	got := e.Run(30, 500)
	if got.P50 > got.P85 || got.P85 > got.P95 {
		t.Errorf("percentiles out of order: %+v", got)
	}
	if got.P50 < 3 {
		t.Errorf("30 items at most 10 per day need at least 3 days, got %d", got.P50)
	}
}

func TestEngine_ZeroThroughputBrake(t *testing.T) {
	seed := int64(3)
	e := NewEngine([]int{0}, rng.New(&seed))
	got := e.Run(1, 10)
	if got.P95 != maxForecastDays+1 {
		t.Errorf("expected safety brake at %d days, got %d", maxForecastDays+1, got.P95)
	}
}

func TestEngine_Empty(t *testing.T) {
	seed := int64(3)
	if got := NewEngine(nil, rng.New(&seed)).Run(10, 10); got.P50 != 0 {
		t.Errorf("empty histogram should not forecast, got %+v", got)
	}
}
