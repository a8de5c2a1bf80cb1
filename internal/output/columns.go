package output

import (
	"strconv"
	"strings"
	"time"

	"ticketsim/internal/catalog"
	"ticketsim/internal/config"
	"ticketsim/internal/ticket"
)

// TimeLayout is the wall-clock format of every datetime column.
const TimeLayout = "2006-01-02 15:04:05"

type column struct {
	name  string
	value func(*ticket.Ticket) string
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

func formatBool(b bool) string {
	return strconv.FormatBool(b)
}

func joinFloats(vs []float64) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = formatFloat(v)
	}
	return strings.Join(parts, ";")
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ";")
}

// resolved wraps an accessor of the resolution; unresolved tickets get an empty cell.
func resolved(f func(*ticket.Resolution) string) func(*ticket.Ticket) string {
	return func(t *ticket.Ticket) string {
		if t.Resolution == nil {
			return ""
		}
		return f(t.Resolution)
	}
}

// stages returns the cumulative end time of every step of the action.
func stages(r *ticket.Resolution) string {
	parts := make([]string, len(r.StepsTransitions))
	elapsed := 0.0
	for i, d := range r.StepsTransitions {
		elapsed += d
		parts[i] = formatTime(r.Allocated.Add(time.Duration(elapsed * float64(time.Minute))))
	}
	return strings.Join(parts, ";")
}

var (
	idColumns = []column{
		{"id", func(t *ticket.Ticket) string { return strconv.FormatInt(t.ID, 10) }},
		{"team", func(t *ticket.Ticket) string { return t.Team }},
		{"family", func(t *ticket.Ticket) string { return t.Family }},
		{"subfamily", func(t *ticket.Ticket) string { return t.Subfamily }},
		{"priority", func(t *ticket.Ticket) string { return strconv.Itoa(t.Priority) }},
	}
	raisedColumns = []column{
		{"raised", func(t *ticket.Ticket) string { return formatTime(t.Raised) }},
		{"raised_ts", func(t *ticket.Ticket) string { return strconv.FormatInt(t.Raised.Unix(), 10) }},
	}
	allocatedColumns = []column{
		{"allocated", resolved(func(r *ticket.Resolution) string { return formatTime(r.Allocated) })},
		{"allocated_ts", resolved(func(r *ticket.Resolution) string { return strconv.FormatInt(r.Allocated.Unix(), 10) })},
	}
	outcomeColumns = []column{
		{"fixed", resolved(func(r *ticket.Resolution) string { return formatTime(r.Fixed) })},
		{"fixed_ts", resolved(func(r *ticket.Resolution) string { return strconv.FormatInt(r.Fixed.Unix(), 10) })},
		{"analyst", resolved(func(r *ticket.Resolution) string { return r.Analyst })},
		{"action", resolved(func(r *ticket.Resolution) string { return strings.Join(r.Action, ";") })},
		{"steps_transitions", resolved(func(r *ticket.Resolution) string { return joinFloats(r.StepsTransitions) })},
		{"duration", resolved(func(r *ticket.Resolution) string { return formatFloat(r.Duration) })},
		{"duration_outlier", resolved(func(r *ticket.Resolution) string { return formatFloat(r.DurationOutlier) })},
		{"outlier", func(t *ticket.Ticket) string { return formatBool(t.Outlier) }},
		{"status", func(t *ticket.Ticket) string { return string(t.Status()) }},
		{"replication_status", func(t *ticket.Ticket) string { return string(t.ReplicationStatus) }},
		{"similar_ids", func(t *ticket.Ticket) string { return joinIDs(t.SimilarIDs) }},
		{"replicated", func(t *ticket.Ticket) string {
			if t.Replicated == nil {
				return ""
			}
			return strconv.FormatInt(*t.Replicated, 10)
		}},
	}
	ipColumns = []column{
		{"source_ip", func(t *ticket.Ticket) string { return network(t, func(n *ticket.Network) string { return n.Source.IP }) }},
		{"source_port", func(t *ticket.Ticket) string {
			return network(t, func(n *ticket.Network) string { return strconv.Itoa(n.Source.Port) })
		}},
		{"destination_ip", func(t *ticket.Ticket) string { return network(t, func(n *ticket.Network) string { return n.Destination.IP }) }},
		{"destination_port", func(t *ticket.Ticket) string {
			return network(t, func(n *ticket.Network) string { return strconv.Itoa(n.Destination.Port) })
		}},
	}
)

func network(t *ticket.Ticket, f func(*ticket.Network) string) string {
	if t.Network == nil {
		return ""
	}
	return f(t.Network)
}

func featureColumns() []column {
	out := make([]column, 0, len(catalog.FeatureIDs))
	for _, id := range catalog.FeatureIDs {
		out = append(out, column{id, func(t *ticket.Ticket) string {
			v, ok := t.Features[id]
			if !ok {
				return ""
			}
			return strconv.Itoa(v)
		}})
	}
	return out
}

// arrivalColumns are the optional columns known at arrival time, shared by
// both datasets.
func arrivalColumns(cfg *config.SimConfig) []column {
	var out []column
	if cfg.Column(config.ColumnCountry) {
		out = append(out, column{"country", func(t *ticket.Ticket) string { return t.Country }})
	}
	if cfg.Column(config.ColumnClient) {
		out = append(out, column{"client", func(t *ticket.Ticket) string { return t.Client }})
	}
	if cfg.Column(config.ColumnIPs) {
		out = append(out, ipColumns...)
	}
	if cfg.Column(config.ColumnSuspicious) {
		out = append(out, column{"suspicious", func(t *ticket.Ticket) string { return formatBool(t.Suspicious) }})
	}
	if cfg.Column(config.ColumnCoordinated) {
		out = append(out, column{"coordinated", func(t *ticket.Ticket) string {
			if t.Coordinated == 0 {
				return ""
			}
			return strconv.Itoa(t.Coordinated)
		}})
	}
	if cfg.Column(config.ColumnEscalate) {
		out = append(out, column{"escalate", func(t *ticket.Ticket) string { return formatBool(t.Escalate) }})
	}
	if cfg.Column(config.ColumnExtraFeatures) {
		out = append(out, featureColumns()...)
	}
	return out
}

// trainColumns lays out the train dataset: identity, outcome, then the
// enabled optional columns in config.OutputColumns order.
func trainColumns(cfg *config.SimConfig) []column {
	out := append([]column(nil), idColumns...)
	if cfg.Column(config.ColumnRaised) {
		out = append(out, raisedColumns...)
	}
	if cfg.Column(config.ColumnAllocated) {
		out = append(out, allocatedColumns...)
	}
	out = append(out, outcomeColumns...)
	if cfg.Column(config.ColumnStages) {
		out = append(out, column{"stages", resolved(stages)})
	}
	out = append(out, arrivalColumns(cfg)...)
	if cfg.Column(config.ColumnAvailableAnalysts) {
		out = append(out, column{"available_analysts", resolved(func(r *ticket.Resolution) string {
			return strconv.Itoa(r.AvailableAnalysts)
		})})
	}
	if cfg.Column(config.ColumnAnalystShift) {
		out = append(out,
			column{"analyst_shift", resolved(func(r *ticket.Resolution) string { return r.Shift })},
			column{"analysed_in_shift", func(t *ticket.Ticket) string { return t.AnalysedInShift }},
		)
	}
	if cfg.Column(config.ColumnWaitTime) {
		out = append(out, column{"wait_time", func(t *ticket.Ticket) string {
			if t.Resolution == nil {
				return ""
			}
			return formatFloat(t.WaitMinutes())
		}})
	}
	if cfg.Column(config.ColumnActionDuration) {
		out = append(out, column{"subfamily_action_duration", resolved(func(r *ticket.Resolution) string {
			return formatFloat(r.ActionDuration)
		})})
	}
	return out
}

// testColumns lays out the unsolved dataset: arrival-side fields only.
// The raised time is always present since it is all a test row has.
func testColumns(cfg *config.SimConfig) []column {
	out := append([]column(nil), idColumns...)
	out = append(out, raisedColumns...)
	out = append(out,
		column{"outlier", func(t *ticket.Ticket) string { return formatBool(t.Outlier) }},
		column{"similar_ids", func(t *ticket.Ticket) string { return joinIDs(t.SimilarIDs) }},
	)
	return append(out, arrivalColumns(cfg)...)
}

func header(cols []column) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.name
	}
	return out
}
