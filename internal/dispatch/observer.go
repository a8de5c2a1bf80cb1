package dispatch

import (
	"time"

	"ticketsim/internal/ticket"
)

// Observer receives dispatch lifecycle notifications in emission order.
type Observer interface {
	Requeued(t *ticket.Ticket, at, next time.Time)
	Assigned(t *ticket.Ticket)
	Replicated(origin, replica *ticket.Ticket)
	Unresolved(t *ticket.Ticket, at time.Time)
}

// Observers fans notifications out to several observers.
type Observers []Observer

func (o Observers) Requeued(t *ticket.Ticket, at, next time.Time) {
	for _, obs := range o {
		obs.Requeued(t, at, next)
	}
}

func (o Observers) Assigned(t *ticket.Ticket) {
	for _, obs := range o {
		obs.Assigned(t)
	}
}

func (o Observers) Replicated(origin, replica *ticket.Ticket) {
	for _, obs := range o {
		obs.Replicated(origin, replica)
	}
}

func (o Observers) Unresolved(t *ticket.Ticket, at time.Time) {
	for _, obs := range o {
		obs.Unresolved(t, at)
	}
}
