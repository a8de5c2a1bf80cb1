package eventlog

import (
	"sort"
	"time"
)

// ThroughputBucket represents closed tickets for a specific day.
type ThroughputBucket struct {
	Date  time.Time `json:"date"`
	Count int       `json:"count"`
}

// BuildThroughputProjection aggregates Solved and Transferred events into daily counts.
func BuildThroughputProjection(events []TicketEvent) []ThroughputBucket {
	counts := make(map[string]int)
	closed := make(map[int64]bool)

	for _, e := range events {
		if e.EventType != Solved && e.EventType != Transferred {
			continue
		}
		// Count only the first close per ticket
		if closed[e.TicketID] {
			continue
		}
		closed[e.TicketID] = true
		dateStr := time.UnixMicro(e.Timestamp).UTC().Format("2006-01-02")
		counts[dateStr]++
	}

	var result []ThroughputBucket
	for dStr, count := range counts {
		t, _ := time.Parse("2006-01-02", dStr)
		result = append(result, ThroughputBucket{Date: t, Count: count})
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Date.Before(result[j].Date)
	})

	return result
}

// WaitTimes returns, per ticket, the minutes between its Raised and Allocated events.
func WaitTimes(events []TicketEvent) map[int64]float64 {
	raised := make(map[int64]int64)
	out := make(map[int64]float64)
	for _, e := range events {
		switch e.EventType {
		case Raised:
			if _, ok := raised[e.TicketID]; !ok {
				raised[e.TicketID] = e.Timestamp
			}
		case Allocated:
			if r, ok := raised[e.TicketID]; ok {
				out[e.TicketID] = float64(e.Timestamp-r) / float64(time.Minute/time.Microsecond)
			}
		}
	}
	return out
}
