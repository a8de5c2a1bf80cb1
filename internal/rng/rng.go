// Package rng owns the single seeded random stream of a simulation run.
// Every random decision in a run is drawn from one Source so that a fixed seed
// reproduces the generated datasets bit for bit.
package rng

import (
	"math/rand/v2"
	"sort"
	"time"
)

// BufferSize is the number of pre-drawn decisions held by a Choice.
const BufferSize = 5000

// Source wraps a PCG generator seeded once per run.
type Source struct {
	r    *rand.Rand
	seed uint64
}

// New creates a Source. A nil seed produces a non-deterministic run.
func New(seed *int64) *Source {
	var s uint64
	if seed != nil {
		s = uint64(*seed)
	} else {
		s = uint64(time.Now().UnixNano())
	}
	return &Source{
		r:    rand.New(rand.NewPCG(s, s^0x9e3779b97f4a7c15)),
		seed: s,
	}
}

// Seed returns the seed the stream was created with.
func (s *Source) Seed() uint64 {
	return s.seed
}

func (s *Source) Float64() float64 {
	return s.r.Float64()
}

// Intn returns a value in [0, n). n <= 0 yields 0.
func (s *Source) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	return s.r.IntN(n)
}

// IntRange returns a value in the closed interval [lo, hi].
func (s *Source) IntRange(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + s.r.IntN(hi-lo+1)
}

// Uniform returns a value in [lo, hi).
func (s *Source) Uniform(lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	return lo + s.r.Float64()*(hi-lo)
}

// Bool returns true with probability p.
func (s *Source) Bool(p float64) bool {
	if p <= 0 {
		return false
	}
	if p >= 1 {
		return true
	}
	return s.r.Float64() < p
}

// Weighted draws an index with probability proportional to weights.
// When every weight is zero (or the slice is empty) the draw is uniform.
func (s *Source) Weighted(weights []float64) int {
	total := 0.0
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	if total <= 0 {
		return s.Intn(len(weights))
	}
	target := s.r.Float64() * total
	acc := 0.0
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		acc += w
		if target < acc {
			return i
		}
	}
	// float rounding: fall back to the last positive weight
	for i := len(weights) - 1; i >= 0; i-- {
		if weights[i] > 0 {
			return i
		}
	}
	return 0
}

// Cumulative draws n indexes from a cumulative weight table using binary search.
// The result is sorted ascending.
func (s *Source) Cumulative(cum []float64, n int) []int {
	out := make([]int, 0, n)
	if len(cum) == 0 || n <= 0 {
		return out
	}
	total := cum[len(cum)-1]
	for i := 0; i < n; i++ {
		var idx int
		if total <= 0 {
			idx = s.Intn(len(cum))
		} else {
			target := s.r.Float64() * total
			idx = sort.SearchFloat64s(cum, target)
			// SearchFloat64s returns the first cum >= target; equal means the slot ended exactly there
			for idx < len(cum) && cum[idx] <= target {
				idx++
			}
			if idx >= len(cum) {
				idx = len(cum) - 1
			}
		}
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}

// Sample picks k distinct indexes out of [0, n) in draw order.
// When k > n the draw is done with replacement.
func (s *Source) Sample(n, k int) []int {
	if n <= 0 || k <= 0 {
		return nil
	}
	out := make([]int, 0, k)
	if k > n {
		for i := 0; i < k; i++ {
			out = append(out, s.Intn(n))
		}
		return out
	}
	perm := s.r.Perm(n)
	return append(out, perm[:k]...)
}

// Read fills p with random bytes, letting the stream back io.Reader consumers
// such as deterministic UUID generation.
func (s *Source) Read(p []byte) (int, error) {
	for i := 0; i < len(p); i += 8 {
		v := s.r.Uint64()
		for j := 0; j < 8 && i+j < len(p); j++ {
			p[i+j] = byte(v >> (8 * j))
		}
	}
	return len(p), nil
}

// Choice is a buffered yes/no generator with a fixed probability.
// It refills BufferSize decisions at a time from its Source.
type Choice struct {
	src *Source
	p   float64
	buf []bool
	idx int
}

// NewChoice creates a buffered decision stream that yields true with probability p.
func (s *Source) NewChoice(p float64) *Choice {
	return &Choice{src: s, p: p, idx: BufferSize}
}

// Next returns the next pre-drawn decision.
func (c *Choice) Next() bool {
	if c.p <= 0 {
		return false
	}
	if c.p >= 1 {
		return true
	}
	if c.idx >= len(c.buf) {
		c.refill()
	}
	v := c.buf[c.idx]
	c.idx++
	return v
}

func (c *Choice) refill() {
	if c.buf == nil {
		c.buf = make([]bool, BufferSize)
	}
	for i := range c.buf {
		c.buf[i] = c.src.r.Float64() < c.p
	}
	c.idx = 0
}
