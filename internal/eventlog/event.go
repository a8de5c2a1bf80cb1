package eventlog

// EventType defines the lifecycle step a ticket went through.
type EventType string

const (
	// Raised indicates the ticket arrived in a team inbox.
	Raised EventType = "Raised"
	// Requeued indicates no analyst could take the ticket yet.
	Requeued EventType = "Requeued"
	// Allocated indicates an analyst picked the ticket up.
	Allocated EventType = "Allocated"
	// Solved indicates the analyst closed the ticket.
	Solved EventType = "Solved"
	// Transferred indicates the analyst's action diverged and the ticket needs verification.
	Transferred EventType = "Transferred"
	// Replicated indicates a clone was pushed to the next team.
	Replicated EventType = "Replicated"
	// Unresolved indicates the ticket was given up.
	Unresolved EventType = "Unresolved"
)

// TicketEvent represents a single atomic change in a ticket's lifecycle.
type TicketEvent struct {
	// TicketID is the ticket the event belongs to.
	TicketID int64 `json:"ticketId"`
	// Team is the team whose queue produced the event.
	Team string `json:"team"`
	// EventType is the type of change being recorded.
	EventType EventType `json:"eventType"`
	// Timestamp is the simulated time of the event (Unix microseconds).
	Timestamp int64 `json:"ts"`
	// Seq is the emission order, used to break timestamp ties.
	Seq int64 `json:"seq"`

	Priority int    `json:"priority,omitempty"`
	Analyst  string `json:"analyst,omitempty"`
	Shift    string `json:"shift,omitempty"`
	// Related is the origin of a replica, or the replica of an origin.
	Related int64  `json:"related,omitempty"`
	Reason  string `json:"reason,omitempty"`

	// Metadata stores extensible fields that might be relevant for projections.
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}
