package rng

import (
	"testing"
)

func seed(v int64) *int64 { return &v }

func TestSource_Deterministic(t *testing.T) {
	a := New(seed(42))
	b := New(seed(42))
	for i := 0; i < 100; i++ {
		if a.Float64() != b.Float64() {
			t.Fatalf("streams diverged at draw %d", i)
		}
	}
}

func TestIntRange_Inclusive(t *testing.T) {
	s := New(seed(7))
	seenLo, seenHi := false, false
	for i := 0; i < 2000; i++ {
		v := s.IntRange(2, 4)
		if v < 2 || v > 4 {
			t.Fatalf("IntRange(2,4) returned %d", v)
		}
		seenLo = seenLo || v == 2
		seenHi = seenHi || v == 4
	}
	if !seenLo || !seenHi {
		t.Errorf("expected both bounds to be drawn, lo=%v hi=%v", seenLo, seenHi)
	}
	if got := s.IntRange(5, 5); got != 5 {
		t.Errorf("IntRange(5,5) = %d, want 5", got)
	}
}

func TestWeighted_SkipsZeroWeights(t *testing.T) {
	s := New(seed(1))
	for i := 0; i < 500; i++ {
		if idx := s.Weighted([]float64{0, 3, 0, 1}); idx != 1 && idx != 3 {
			t.Fatalf("drew zero-weight index %d", idx)
		}
	}
}

func TestWeighted_AllZeroIsUniform(t *testing.T) {
	s := New(seed(1))
	counts := make([]int, 3)
	for i := 0; i < 3000; i++ {
		counts[s.Weighted([]float64{0, 0, 0})]++
	}
	for i, c := range counts {
		if c < 800 {
			t.Errorf("index %d drawn %d times, expected roughly uniform", i, c)
		}
	}
}

func TestCumulative_SortedAndInRange(t *testing.T) {
	s := New(seed(3))
	cum := []float64{1, 1, 3, 6}
	got := s.Cumulative(cum, 200)
	if len(got) != 200 {
		t.Fatalf("expected 200 draws, got %d", len(got))
	}
	for i, idx := range got {
		if idx == 1 {
			t.Fatalf("zero-width slot 1 was drawn")
		}
		if i > 0 && got[i-1] > idx {
			t.Fatalf("draws not sorted at %d", i)
		}
	}
}

func TestSample_WithoutReplacement(t *testing.T) {
	s := New(seed(9))
	got := s.Sample(10, 10)
	seen := map[int]bool{}
	for _, v := range got {
		if seen[v] {
			t.Fatalf("duplicate index %d in %v", v, got)
		}
		seen[v] = true
	}
	if len(s.Sample(3, 5)) != 5 {
		t.Errorf("oversized sample should fall back to replacement")
	}
}

func TestChoice_Extremes(t *testing.T) {
	s := New(seed(5))
	never := s.NewChoice(0)
	always := s.NewChoice(1)
	for i := 0; i < BufferSize+10; i++ {
		if never.Next() {
			t.Fatal("p=0 choice returned true")
		}
		if !always.Next() {
			t.Fatal("p=1 choice returned false")
		}
	}
}

func TestChoice_RefillsBuffer(t *testing.T) {
	s := New(seed(11))
	c := s.NewChoice(0.5)
	hits := 0
	n := BufferSize*2 + 17
	for i := 0; i < n; i++ {
		if c.Next() {
			hits++
		}
	}
	ratio := float64(hits) / float64(n)
	if ratio < 0.45 || ratio > 0.55 {
		t.Errorf("expected ~50%% hits, got %.3f", ratio)
	}
}
