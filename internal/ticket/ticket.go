// Package ticket defines the synthetic ticket and its lifecycle.
//
// A Ticket carries immutable arrival fields plus a Stage. Fields that only exist
// once an analyst picked the ticket up live in Resolution, which is nil until the
// ticket reaches StageAssigned.
package ticket

import (
	"fmt"
	"time"
)

// Status is the outcome classification of a handled ticket.
type Status string

const (
	StatusSolved   Status = "Solved"
	StatusTransfer Status = "Transfer"
)

// Replication describes why a ticket was cloned onto another team.
type Replication string

const (
	ReplicationNone         Replication = ""
	ReplicationVerification Replication = "Verification"
	ReplicationEscalation   Replication = "Escalation"
	ReplicationReassignment Replication = "Reassignment"
)

// Stage is the lifecycle position of a ticket.
type Stage int

const (
	StageArrival Stage = iota
	StageAssigned
	StageSolved
	StageTransferred
	StageUnresolved
)

func (s Stage) String() string {
	switch s {
	case StageArrival:
		return "Arrival"
	case StageAssigned:
		return "Assigned"
	case StageSolved:
		return "Solved"
	case StageTransferred:
		return "Transferred"
	case StageUnresolved:
		return "Unresolved"
	default:
		return fmt.Sprintf("Stage(%d)", int(s))
	}
}

// Endpoint is one side of a network flow.
type Endpoint struct {
	IP   string `json:"ip"`
	Port int    `json:"port"`
}

// Network is the optional source/destination pair of IP-bearing families.
type Network struct {
	Source      Endpoint `json:"source"`
	Destination Endpoint `json:"destination"`
}

// Ticket is a synthetic security ticket.
type Ticket struct {
	ID          int64          `json:"id"`
	Team        string         `json:"team"`
	Client      string         `json:"client"`
	Country     string         `json:"country"`
	Network     *Network       `json:"network,omitempty"`
	Family      string         `json:"family"`
	Subfamily   string         `json:"subfamily"`
	Priority    int            `json:"priority"`
	Raised      time.Time      `json:"raised"`
	Features    map[string]int `json:"features,omitempty"`
	Outlier     bool           `json:"outlier"`
	Suspicious  bool           `json:"suspicious"`
	Coordinated int            `json:"coordinated,omitempty"` // group id, 0 when not part of a burst
	Escalate    bool           `json:"escalate"`
	SimilarIDs  []int64        `json:"similar_ids,omitempty"`

	Replicated        *int64      `json:"replicated,omitempty"`
	ReplicationStatus Replication `json:"replication_status,omitempty"`

	Stage           Stage       `json:"stage"`
	AnalysedInShift string      `json:"analysed_in_shift,omitempty"`
	Requeues        int         `json:"requeues,omitempty"`
	Resolution      *Resolution `json:"resolution,omitempty"`
}

// Resolution holds the fields valid once an analyst picked the ticket up.
type Resolution struct {
	Analyst           string    `json:"analyst"`
	Shift             string    `json:"shift"`
	Allocated         time.Time `json:"allocated"`
	Fixed             time.Time `json:"fixed"`
	Action            []string  `json:"action"`
	StepsTransitions  []float64 `json:"steps_transitions"`
	Duration          float64   `json:"duration"`
	DurationOutlier   float64   `json:"duration_outlier"`
	Status            Status    `json:"status"`
	AvailableAnalysts int       `json:"available_analysts"`
	ActionDuration    float64   `json:"subfamily_action_duration"`
}

// Allocated returns the pickup time, if the ticket was assigned.
func (t *Ticket) Allocated() (time.Time, bool) {
	if t.Resolution == nil {
		return time.Time{}, false
	}
	return t.Resolution.Allocated, true
}

// Fixed returns the completion time, if the ticket was handled.
func (t *Ticket) Fixed() (time.Time, bool) {
	if t.Resolution == nil {
		return time.Time{}, false
	}
	return t.Resolution.Fixed, true
}

// Status returns the outcome, empty while the ticket is unresolved.
func (t *Ticket) Status() Status {
	if t.Resolution == nil {
		return ""
	}
	return t.Resolution.Status
}

// WaitMinutes is the time spent queued before pickup.
func (t *Ticket) WaitMinutes() float64 {
	if t.Resolution == nil {
		return 0
	}
	return t.Resolution.Allocated.Sub(t.Raised).Minutes()
}

// Resolve records the outcome of an assignment and advances the stage.
func (t *Ticket) Resolve(r *Resolution) {
	t.Resolution = r
	if r.Status == StatusTransfer {
		t.Stage = StageTransferred
		t.ReplicationStatus = ReplicationVerification
		return
	}
	t.Stage = StageSolved
}

// MarkUnresolved records that no analyst could take the ticket.
func (t *Ticket) MarkUnresolved() {
	t.Stage = StageUnresolved
	t.Resolution = nil
}

// Replicate clones the arrival side of t onto another team.
// The clone links back to t and inherits t's similarity chain plus t itself.
func (t *Ticket) Replicate(id int64, team string, raised time.Time, reason Replication) *Ticket {
	origin := t.ID
	similar := make([]int64, 0, len(t.SimilarIDs)+1)
	similar = append(similar, t.SimilarIDs...)
	similar = append(similar, origin)

	var network *Network
	if t.Network != nil {
		n := *t.Network
		network = &n
	}
	var features map[string]int
	if t.Features != nil {
		features = make(map[string]int, len(t.Features))
		for k, v := range t.Features {
			features[k] = v
		}
	}

	return &Ticket{
		ID:                id,
		Team:              team,
		Client:            t.Client,
		Country:           t.Country,
		Network:           network,
		Family:            t.Family,
		Subfamily:         t.Subfamily,
		Priority:          t.Priority,
		Raised:            raised,
		Features:          features,
		Outlier:           t.Outlier,
		Suspicious:        t.Suspicious,
		Coordinated:       t.Coordinated,
		Escalate:          t.Escalate,
		SimilarIDs:        similar,
		Replicated:        &origin,
		ReplicationStatus: reason,
		Stage:             StageArrival,
	}
}

// IDs hands out ticket ids. Ids are unique across teams and increase
// monotonically, so they also increase within any one team.
type IDs struct {
	next int64
}

// NewIDs starts numbering at first.
func NewIDs(first int64) *IDs {
	return &IDs{next: first}
}

// Next returns a fresh id.
func (a *IDs) Next() int64 {
	id := a.next
	a.next++
	return id
}

// Peek returns the id the next call to Next will return.
func (a *IDs) Peek() int64 {
	return a.next
}
