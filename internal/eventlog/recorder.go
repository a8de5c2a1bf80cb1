package eventlog

import (
	"time"

	"ticketsim/internal/ticket"
)

// Recorder turns dispatch notifications into events. It buffers per team and
// hands everything to the store on Flush.
type Recorder struct {
	store   *EventStore
	seq     int64
	pending map[string][]TicketEvent
}

// NewRecorder creates a recorder writing into store.
func NewRecorder(store *EventStore) *Recorder {
	return &Recorder{store: store, pending: make(map[string][]TicketEvent)}
}

func (r *Recorder) add(e TicketEvent) {
	r.seq++
	e.Seq = r.seq
	r.pending[e.Team] = append(r.pending[e.Team], e)
}

// Raised records the arrival of a synthesized ticket.
func (r *Recorder) Raised(t *ticket.Ticket) {
	r.add(TicketEvent{
		TicketID:  t.ID,
		Team:      t.Team,
		EventType: Raised,
		Timestamp: t.Raised.UnixMicro(),
		Priority:  t.Priority,
	})
}

func (r *Recorder) Requeued(t *ticket.Ticket, at, next time.Time) {
	r.add(TicketEvent{
		TicketID:  t.ID,
		Team:      t.Team,
		EventType: Requeued,
		Timestamp: at.UnixMicro(),
		Priority:  t.Priority,
		Shift:     t.AnalysedInShift,
		Metadata:  map[string]interface{}{"next": next.UTC().Format(time.RFC3339)},
	})
}

func (r *Recorder) Assigned(t *ticket.Ticket) {
	res := t.Resolution
	r.add(TicketEvent{
		TicketID:  t.ID,
		Team:      t.Team,
		EventType: Allocated,
		Timestamp: res.Allocated.UnixMicro(),
		Priority:  t.Priority,
		Analyst:   res.Analyst,
		Shift:     res.Shift,
	})
	done := Solved
	if res.Status == ticket.StatusTransfer {
		done = Transferred
	}
	r.add(TicketEvent{
		TicketID:  t.ID,
		Team:      t.Team,
		EventType: done,
		Timestamp: res.Fixed.UnixMicro(),
		Analyst:   res.Analyst,
		Metadata:  map[string]interface{}{"duration": res.DurationOutlier},
	})
}

func (r *Recorder) Replicated(origin, replica *ticket.Ticket) {
	r.add(TicketEvent{
		TicketID:  origin.ID,
		Team:      origin.Team,
		EventType: Replicated,
		Timestamp: replica.Raised.UnixMicro(),
		Related:   replica.ID,
		Reason:    string(replica.ReplicationStatus),
	})
	r.add(TicketEvent{
		TicketID:  replica.ID,
		Team:      replica.Team,
		EventType: Raised,
		Timestamp: replica.Raised.UnixMicro(),
		Priority:  replica.Priority,
		Related:   origin.ID,
		Reason:    string(replica.ReplicationStatus),
	})
}

func (r *Recorder) Unresolved(t *ticket.Ticket, at time.Time) {
	r.add(TicketEvent{
		TicketID:  t.ID,
		Team:      t.Team,
		EventType: Unresolved,
		Timestamp: at.UnixMicro(),
		Priority:  t.Priority,
		Shift:     t.AnalysedInShift,
	})
}

// Flush moves buffered events into the store.
func (r *Recorder) Flush() {
	for team, events := range r.pending {
		r.store.Append(team, events)
	}
	r.pending = make(map[string][]TicketEvent)
}
