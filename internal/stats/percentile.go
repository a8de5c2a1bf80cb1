package stats

import (
	"math"
	"slices"
)

// Percentiles is the P50/P85/P95 triple reported for waits and durations.
type Percentiles struct {
	P50 float64 `json:"p50"`
	P85 float64 `json:"p85"`
	P95 float64 `json:"p95"`
}

// sorted returns an ascending copy; callers keep their series order.
func sorted(values []float64) []float64 {
	temp := make([]float64, len(values))
	copy(temp, values)
	slices.Sort(temp)
	return temp
}

// Percentile returns the value at rank int(n*p) of the sorted input.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return at(sorted(values), p)
}

// Median averages the two middle values of an even-length series, unlike the
// nearest-rank P50.
func Median(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	temp := sorted(values)
	if n%2 == 1 {
		return temp[n/2]
	}
	return (temp[n/2-1] + temp[n/2]) / 2
}

func at(sorted []float64, p float64) float64 {
	idx := int(float64(len(sorted)) * p)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	if idx < 0 {
		idx = 0
	}
	return sorted[idx]
}

// Summarize computes the reported percentiles of values.
func Summarize(values []float64) Percentiles {
	if len(values) == 0 {
		return Percentiles{}
	}
	temp := sorted(values)
	return Percentiles{
		P50: at(temp, 0.50),
		P85: at(temp, 0.85),
		P95: at(temp, 0.95),
	}
}

// FatTail is the P98/P50 ratio of a count series.
// A zero median yields 10 when the tail is non-zero (sparse process) and 1 otherwise.
func FatTail(counts []int) float64 {
	if len(counts) == 0 {
		return 0
	}
	floats := make([]float64, len(counts))
	for i, c := range counts {
		floats[i] = float64(c)
	}
	slices.Sort(floats)

	p50 := at(floats, 0.50)
	p98 := at(floats, 0.98)
	if p50 == 0 {
		if p98 > 0 {
			return 10.0
		}
		return 1.0
	}
	return p98 / p50
}

// Correlation is the Pearson correlation of two equally long daily series.
func Correlation(a, b []int) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	n := float64(len(a))
	sumA, sumB := 0.0, 0.0
	sumA2, sumB2 := 0.0, 0.0
	sumAB := 0.0

	for i := range a {
		valA := float64(a[i])
		valB := float64(b[i])
		sumA += valA
		sumB += valB
		sumA2 += valA * valA
		sumB2 += valB * valB
		sumAB += valA * valB
	}

	num := (n * sumAB) - (sumA * sumB)
	den := math.Sqrt((n*sumA2 - sumA*sumA) * (n*sumB2 - sumB*sumB))
	if den == 0 {
		return 0
	}
	return num / den
}
