package stats

import "math"

// Signal kinds raised by an XmR chart.
const (
	SignalOutlier = "outlier"
	SignalShift   = "shift"
)

// shiftRun is the number of consecutive points on one side of the average
// that counts as a process shift.
const shiftRun = 8

// XmRResult is an Individuals and Moving Range chart of a series, typically
// the daily throughput of a team.
type XmRResult struct {
	Average     float64   `json:"average"`
	AmR         float64   `json:"average_moving_range"`
	UNPL        float64   `json:"upper_natural_process_limit"`
	LNPL        float64   `json:"lower_natural_process_limit"`
	Values      []float64 `json:"values"`
	MovingRange []float64 `json:"moving_ranges"`
	Signals     []Signal  `json:"signals"`
}

// Signal is a point showing special cause variation.
type Signal struct {
	Index       int    `json:"index"`
	Key         string `json:"key"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

// CalculateXmR computes the chart without point labels.
func CalculateXmR(values []float64) XmRResult {
	return CalculateXmRWithKeys(values, nil)
}

// CalculateXmRWithKeys computes the chart and labels each signal with the key
// at the same index (a day, for throughput series).
func CalculateXmRWithKeys(values []float64, keys []string) XmRResult {
	if len(values) == 0 {
		return XmRResult{}
	}
	result := XmRResult{Values: values}

	sum := 0.0
	for _, v := range values {
		sum += v
	}
	result.Average = sum / float64(len(values))

	if len(values) > 1 {
		mrSum := 0.0
		result.MovingRange = make([]float64, len(values)-1)
		for i := 1; i < len(values); i++ {
			mr := math.Abs(values[i] - values[i-1])
			result.MovingRange[i-1] = mr
			mrSum += mr
		}
		result.AmR = mrSum / float64(len(values)-1)
	}

	// 2.66 is Wheeler's scaling constant for individuals
	result.UNPL = result.Average + 2.66*result.AmR
	result.LNPL = math.Max(0, result.Average-2.66*result.AmR)
	result.Signals = detectSignals(values, result.Average, result.UNPL, result.LNPL, keys)
	return result
}

func keyAt(keys []string, i int) string {
	if i < len(keys) {
		return keys[i]
	}
	return ""
}

func detectSignals(values []float64, avg, unpl, lnpl float64, keys []string) []Signal {
	var signals []Signal
	for i, v := range values {
		switch {
		case v > unpl:
			signals = append(signals, Signal{Index: i, Key: keyAt(keys, i), Type: SignalOutlier,
				Description: "above the upper natural process limit"})
		case v < lnpl:
			signals = append(signals, Signal{Index: i, Key: keyAt(keys, i), Type: SignalOutlier,
				Description: "below the lower natural process limit"})
		}
	}

	if len(values) < shiftRun {
		return signals
	}
	side, run := 0, 0
	for i, v := range values {
		current := 0
		if v > avg {
			current = 1
		} else if v < avg {
			current = -1
		}
		if current == side && current != 0 {
			run++
		} else {
			side, run = current, 1
		}
		if run == shiftRun {
			signals = append(signals, Signal{Index: i, Key: keyAt(keys, i), Type: SignalShift,
				Description: "8 consecutive points on one side of the average"})
		}
	}
	return signals
}
