// Package metrics exports run counters in the Prometheus text format.
// A run owns its registry; nothing is registered globally.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"ticketsim/internal/skill"
	"ticketsim/internal/ticket"
)

// Recorder holds the collectors of one run. It satisfies the dispatch and
// skill observer interfaces.
type Recorder struct {
	registry *prometheus.Registry

	TicketsGenerated  *prometheus.CounterVec
	TicketsDispatched *prometheus.CounterVec
	Requeues          *prometheus.CounterVec
	Replicas          *prometheus.CounterVec
	Unresolved        *prometheus.CounterVec
	SkillUpdates      *prometheus.CounterVec
	WaitMinutes       *prometheus.HistogramVec
	DurationMinutes   *prometheus.HistogramVec
}

// New creates a recorder with its own registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		TicketsGenerated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ticketsim_tickets_generated_total",
			Help: "Tickets synthesized per dataset",
		}, []string{"dataset"}),
		TicketsDispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ticketsim_tickets_dispatched_total",
			Help: "Tickets handled by an analyst per team and status",
		}, []string{"team", "status"}),
		Requeues: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ticketsim_requeues_total",
			Help: "Tickets put back in a queue because no analyst could take them",
		}, []string{"team"}),
		Replicas: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ticketsim_replicas_total",
			Help: "Tickets cloned to the next team per reason",
		}, []string{"reason"}),
		Unresolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ticketsim_unresolved_total",
			Help: "Tickets no analyst could take",
		}, []string{"team"}),
		SkillUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ticketsim_skill_updates_total",
			Help: "Committed analyst speed changes",
		}, []string{"change"}),
		WaitMinutes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ticketsim_wait_minutes",
			Help:    "Minutes between raised and allocated",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14), // 1 minute to ~5.7 days
		}, []string{"team"}),
		DurationMinutes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ticketsim_duration_minutes",
			Help:    "Handling minutes including outlier inflation",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}, []string{"team"}),
	}
	r.registry.MustRegister(
		r.TicketsGenerated,
		r.TicketsDispatched,
		r.Requeues,
		r.Replicas,
		r.Unresolved,
		r.SkillUpdates,
		r.WaitMinutes,
		r.DurationMinutes,
	)
	return r
}

// Registry exposes the run registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Generated counts synthesized tickets of a dataset (train or test).
func (r *Recorder) Generated(dataset string, n int) {
	r.TicketsGenerated.WithLabelValues(dataset).Add(float64(n))
}

func (r *Recorder) Requeued(t *ticket.Ticket, _, _ time.Time) {
	r.Requeues.WithLabelValues(t.Team).Inc()
}

func (r *Recorder) Assigned(t *ticket.Ticket) {
	r.TicketsDispatched.WithLabelValues(t.Team, string(t.Status())).Inc()
	r.WaitMinutes.WithLabelValues(t.Team).Observe(t.WaitMinutes())
	r.DurationMinutes.WithLabelValues(t.Team).Observe(t.Resolution.DurationOutlier)
}

func (r *Recorder) Replicated(_, replica *ticket.Ticket) {
	r.Replicas.WithLabelValues(string(replica.ReplicationStatus)).Inc()
}

func (r *Recorder) Unresolved(t *ticket.Ticket, _ time.Time) {
	r.Unresolved.WithLabelValues(t.Team).Inc()
}

func (r *Recorder) SkillChanged(_ skill.Key, change skill.Change, _, _ float64) {
	r.SkillUpdates.WithLabelValues(string(change)).Inc()
}

// WriteTextfile writes the registry in the node-exporter textfile format.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
