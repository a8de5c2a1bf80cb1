package dispatch

import (
	"sort"
	"time"

	"ticketsim/internal/ticket"
)

// Inbox holds tickets not yet raised at the team's current time, ordered by
// raised time. Tickets raised at the same instant keep insertion order.
type Inbox struct {
	items []*ticket.Ticket
}

// Push inserts a ticket in raised order.
func (in *Inbox) Push(t *ticket.Ticket) {
	i := sort.Search(len(in.items), func(i int) bool { return in.items[i].Raised.After(t.Raised) })
	in.items = append(in.items, nil)
	copy(in.items[i+1:], in.items[i:])
	in.items[i] = t
}

// Len returns the number of pending arrivals.
func (in *Inbox) Len() int {
	return len(in.items)
}

func (in *Inbox) peek() *ticket.Ticket {
	if len(in.items) == 0 {
		return nil
	}
	return in.items[0]
}

func (in *Inbox) pop() *ticket.Ticket {
	t := in.items[0]
	in.items[0] = nil
	in.items = in.items[1:]
	return t
}

// entry is a queued ticket with the earliest time it may be looked at again.
type entry struct {
	t     *ticket.Ticket
	ready time.Time
	// hopeless counts the shift occurrences in which no free analyst could
	// fit the ticket even into a whole shift; hopelessIn is the last one.
	hopeless   int
	hopelessIn time.Time
}

// queues is one list per priority level, 1..max. Within a level entries keep
// insertion order and a requeued entry goes to the back, so a level is FIFO
// over the entries that are ready: a head that is not ready yet does not
// block a later ready entry.
type queues struct {
	levels [][]*entry
}

func newQueues(max int) *queues {
	return &queues{levels: make([][]*entry, max)}
}

func (q *queues) push(e *entry) {
	lvl := e.t.Priority
	if lvl < 1 {
		lvl = 1
	}
	if lvl > len(q.levels) {
		lvl = len(q.levels)
	}
	q.levels[lvl-1] = append(q.levels[lvl-1], e)
}

// next removes and returns the first ready entry of the highest priority level
// holding one. A lower level is only served when no higher-priority entry is
// ready at now, so a lower-priority ticket is never allocated ahead of a ready
// higher-priority one.
func (q *queues) next(now time.Time) *entry {
	for lvl := len(q.levels) - 1; lvl >= 0; lvl-- {
		for i, e := range q.levels[lvl] {
			if e.ready.After(now) {
				continue
			}
			q.levels[lvl] = append(q.levels[lvl][:i], q.levels[lvl][i+1:]...)
			return e
		}
	}
	return nil
}

// earliest returns the smallest ready time among queued entries.
func (q *queues) earliest() (time.Time, bool) {
	var first time.Time
	found := false
	for _, lvl := range q.levels {
		for _, e := range lvl {
			if !found || e.ready.Before(first) {
				first = e.ready
				found = true
			}
		}
	}
	return first, found
}

func (q *queues) len() int {
	n := 0
	for _, lvl := range q.levels {
		n += len(lvl)
	}
	return n
}
