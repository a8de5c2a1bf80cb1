// Package dispatch runs the per-team scheduler: priority queues, shift-aware
// analyst availability, action selection, outcome classification and
// replication of tickets to the next tier.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"ticketsim/internal/catalog"
	"ticketsim/internal/config"
	"ticketsim/internal/rng"
	"ticketsim/internal/skill"
	"ticketsim/internal/ticket"
)

const (
	// retrySlot is how long a ticket waits after every free analyst refused it.
	retrySlot = 5 * time.Minute
	// checkEvery is how many tickets are processed between cancellation checks.
	checkEvery = 1024
)

// Options are the dispatch knobs of a run.
type Options struct {
	Teams                      []config.TeamConfig
	Shifts                     []config.ShiftConfig
	MaxPriority                int
	DistributionMode           int
	BalancedShifts             bool
	SameActionProbability      float64
	SubfamilyActionProbability float64
	ActionsSimilarity          float64
	OutlierCost                float64
}

// OptionsFrom maps the simulation config onto dispatch options.
func OptionsFrom(cfg *config.SimConfig) Options {
	return Options{
		Teams:                      cfg.Teams,
		Shifts:                     cfg.Shifts,
		MaxPriority:                cfg.MaxPriorityLevels,
		DistributionMode:           cfg.DistributionMode,
		BalancedShifts:             cfg.BalancedShifts,
		SameActionProbability:      cfg.AnalystSameActionProbability,
		SubfamilyActionProbability: cfg.AnalystSubfamilyActionProbability,
		ActionsSimilarity:          cfg.ActionsSimilarity,
		OutlierCost:                cfg.OutlierCost,
	}
}

// Stats counts dispatch outcomes.
type Stats struct {
	Assigned    int            `json:"assigned"`
	Solved      int            `json:"solved"`
	Transferred int            `json:"transferred"`
	Requeues    int            `json:"requeues"`
	Unresolved  int            `json:"unresolved"`
	Replicas    map[string]int `json:"replicas"`
}

type team struct {
	name     string
	tier     int
	analysts []*Analyst
	inbox    *Inbox
	queues   *queues
	handled  []*ticket.Ticket
	// wake is the earliest time an on-duty analyst can be free again. Until
	// then queued tickets are not looked at; only new arrivals are.
	wake time.Time
}

type cacheKey struct {
	subfamily, team, analyst string
}

type cachedAction struct {
	action   []string
	duration float64
	steps    []float64
}

// Engine owns the queues of every team. Teams are processed one after the
// other from the lowest tier; replicas only ever flow to the next tier.
type Engine struct {
	opts   Options
	cat    *catalog.Catalog
	skills *skill.Store
	ids    *ticket.IDs
	src    *rng.Source
	log    zerolog.Logger
	obs    Observer

	cal    calendar
	teams  []*team
	byName map[string]*team

	sameAction      *rng.Choice
	subfamilyAction *rng.Choice
	cache           map[cacheKey]*cachedAction

	stats Stats
}

// New builds the engine and draws the analyst rosters.
func New(opts Options, cat *catalog.Catalog, skills *skill.Store, ids *ticket.IDs, src *rng.Source,
	logger zerolog.Logger, obs Observer) (*Engine, error) {
	if len(opts.Teams) == 0 {
		return nil, fmt.Errorf("%w: no teams configured", config.ErrInvalid)
	}
	if len(opts.Shifts) == 0 {
		return nil, fmt.Errorf("%w: no shifts configured", config.ErrInvalid)
	}
	if opts.MaxPriority < 1 {
		opts.MaxPriority = 1
	}
	if obs == nil {
		obs = Observers(nil)
	}

	e := &Engine{
		opts:            opts,
		cat:             cat,
		skills:          skills,
		ids:             ids,
		src:             src,
		log:             logger.With().Str("component", "dispatch").Logger(),
		obs:             obs,
		cal:             newCalendar(opts.Shifts),
		byName:          make(map[string]*team),
		sameAction:      src.NewChoice(opts.SameActionProbability),
		subfamilyAction: src.NewChoice(opts.SubfamilyActionProbability),
		cache:           make(map[cacheKey]*cachedAction),
		stats:           Stats{Replicas: make(map[string]int)},
	}
	shiftNames := e.cal.names()
	for i, tc := range opts.Teams {
		tm := &team{
			name:     tc.Name,
			tier:     i,
			analysts: newRoster(tc, shiftNames, opts.BalancedShifts, src),
			inbox:    &Inbox{},
			queues:   newQueues(opts.MaxPriority),
		}
		e.teams = append(e.teams, tm)
		e.byName[tc.Name] = tm
	}
	return e, nil
}

// Inbox returns the arrival inbox of a team, nil for an unknown team.
func (e *Engine) Inbox(name string) *Inbox {
	if tm, ok := e.byName[name]; ok {
		return tm.inbox
	}
	return nil
}

// Submit routes a ticket to the inbox of its team.
func (e *Engine) Submit(t *ticket.Ticket) error {
	in := e.Inbox(t.Team)
	if in == nil {
		return fmt.Errorf("ticket %d targets unknown team %q", t.ID, t.Team)
	}
	in.Push(t)
	return nil
}

// Run dispatches every team in tier order. It stops between tickets when ctx
// is cancelled and returns ctx's error.
func (e *Engine) Run(ctx context.Context) error {
	for _, tm := range e.teams {
		if err := ctx.Err(); err != nil {
			return err
		}
		start := time.Now()
		if err := e.runTeam(ctx, tm); err != nil {
			return err
		}
		e.log.Info().
			Str("team", tm.name).
			Int("handled", len(tm.handled)).
			Dur("elapsed", time.Since(start)).
			Msg("Team dispatched")
	}
	return nil
}

func (e *Engine) runTeam(ctx context.Context, tm *team) error {
	var now time.Time
	for n := 0; ; n++ {
		if n%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		if now.Before(tm.wake) {
			if head := tm.inbox.peek(); head != nil && !head.Raised.After(now) {
				t := tm.inbox.pop()
				if err := e.process(tm, &entry{t: t, ready: t.Raised}, now); err != nil {
					return err
				}
				continue
			}
			now = tm.wake
			if head := tm.inbox.peek(); head != nil && head.Raised.Before(now) {
				now = head.Raised
			}
			continue
		}

		for tm.inbox.Len() > 0 && !tm.inbox.peek().Raised.After(now) {
			t := tm.inbox.pop()
			tm.queues.push(&entry{t: t, ready: t.Raised})
		}

		en := tm.queues.next(now)
		if en == nil {
			next, ok := tm.queues.earliest()
			if head := tm.inbox.peek(); head != nil && (!ok || head.Raised.Before(next)) {
				next, ok = head.Raised, true
			}
			if !ok {
				return nil
			}
			now = next
			continue
		}
		if err := e.process(tm, en, now); err != nil {
			return err
		}
	}
}

// offer is what one free analyst would do with the ticket.
type offer struct {
	analyst   *Analyst
	base      []string
	performed []string
	steps     []float64
	duration  float64
	inflated  float64
	status    ticket.Status
}

func (e *Engine) process(tm *team, en *entry, now time.Time) error {
	tk := en.t
	shift, inShift := e.cal.at(now)
	if !inShift {
		e.requeue(tm, en, now, shift, false, 0, false, false)
		return nil
	}

	canonical, err := e.cat.SubfamilyAction(tk.Subfamily, tm.name)
	if err != nil {
		return err
	}
	shiftEnd := e.cal.end(now, shift)
	shiftLen := e.cal.length(shift)

	var offers []offer
	free, refused, hopeless := 0, false, true
	for _, a := range tm.analysts {
		if a.Shift != shift.Name || !a.freeAt(now) {
			continue
		}
		free++
		if e.src.Bool(a.RefusalRate) {
			refused = true
			continue
		}
		o := e.offer(tm, a, tk, canonical)
		if minutes(o.inflated) <= shiftLen {
			hopeless = false
		}
		if now.Add(minutes(o.inflated)).After(shiftEnd) {
			continue
		}
		offers = append(offers, o)
	}

	if len(offers) == 0 {
		e.requeue(tm, en, now, shift, true, free, refused, free > 0 && !refused && hopeless)
		return nil
	}

	o := e.choose(offers, tk.Subfamily)
	e.assign(tm, tk, o, canonical, now, shift.Name, free)
	return nil
}

// offer applies the action policy: reuse the analyst's last action for the
// subfamily, adopt the canonical action, or synthesize a new one.
func (e *Engine) offer(tm *team, a *Analyst, tk *ticket.Ticket, canonical []string) offer {
	var action []string
	if c, ok := e.cache[cacheKey{tk.Subfamily, tm.name, a.Name}]; ok {
		if e.sameAction.Next() {
			action = c.action
		} else {
			action = e.cat.NewAction()
		}
	} else if e.subfamilyAction.Next() {
		action = canonical
	} else {
		action = e.cat.NewAction()
	}

	status := ticket.StatusSolved
	if catalog.Similarity(action, canonical) < e.opts.ActionsSimilarity {
		status = ticket.StatusTransfer
	}
	performed := action
	if status == ticket.StatusTransfer || (tk.Escalate && !e.isTop(tm)) {
		performed = e.cat.WithTransfer(action)
	}

	duration, steps := e.cat.ActionDuration(tk.Family, performed, tm.name, e.speedOf(tm, a, tk))
	inflated := duration
	if tk.Outlier {
		inflated = duration * (1 + e.opts.OutlierCost)
	}
	return offer{
		analyst:   a,
		base:      action,
		performed: performed,
		steps:     steps,
		duration:  duration,
		inflated:  inflated,
		status:    status,
	}
}

func (e *Engine) speedOf(tm *team, a *Analyst, tk *ticket.Ticket) catalog.SpeedFunc {
	return func(step string) float64 {
		return e.skills.Speed(tk.Subfamily, tm.name, a.Name, step, a.Growth)
	}
}

// choose picks uniformly in random mode; in balanced mode it picks the analyst
// with the least time on the subfamily after this ticket, first one on ties.
func (e *Engine) choose(offers []offer, subfamily string) offer {
	if e.opts.DistributionMode == config.DistributionRandom {
		return offers[e.src.Intn(len(offers))]
	}
	best := 0
	bestLoad := offers[0].analyst.spent(subfamily) + offers[0].inflated
	for i := 1; i < len(offers); i++ {
		if load := offers[i].analyst.spent(subfamily) + offers[i].inflated; load < bestLoad {
			best, bestLoad = i, load
		}
	}
	return offers[best]
}

func (e *Engine) assign(tm *team, tk *ticket.Ticket, o offer, canonical []string, now time.Time, shift string, free int) {
	a := o.analyst
	fixed := now.Add(minutes(o.inflated))
	canonicalDuration, _ := e.cat.ActionDuration(tk.Family, canonical, tm.name, e.speedOf(tm, a, tk))

	tk.Resolve(&ticket.Resolution{
		Analyst:           a.Name,
		Shift:             shift,
		Allocated:         now,
		Fixed:             fixed,
		Action:            o.performed,
		StepsTransitions:  o.steps,
		Duration:          o.duration,
		DurationOutlier:   o.inflated,
		Status:            o.status,
		AvailableAnalysts: free,
		ActionDuration:    canonicalDuration,
	})

	a.book(now, fixed, tk.ID)
	a.record(tk.Subfamily, o.inflated)
	e.cache[cacheKey{tk.Subfamily, tm.name, a.Name}] = &cachedAction{action: o.base, duration: o.duration, steps: o.steps}
	e.skills.Learn(tk.Subfamily, tm.name, a.Name, a.Growth, o.performed, fixed)

	tm.handled = append(tm.handled, tk)
	e.stats.Assigned++
	if o.status == ticket.StatusTransfer {
		e.stats.Transferred++
	} else {
		e.stats.Solved++
	}
	e.obs.Assigned(tk)

	// The escalate flag wins over the outcome: a transfer flagged for
	// escalation travels up once, as an escalation.
	switch {
	case e.isTop(tm):
	case tk.Escalate:
		e.replicate(tm, tk, fixed, ticket.ReplicationEscalation)
	case o.status == ticket.StatusTransfer:
		e.replicate(tm, tk, fixed, ticket.ReplicationVerification)
	}
}

// requeue puts a ticket back with inflated priority. It becomes ready again
// when an in-shift analyst frees up or the next shift starts. Waiting behind a
// backlog never gives a ticket up; a ticket is given up only once free
// analysts found it longer than their whole shift in more than len(shifts)+1
// shift occurrences. It is then handed to the next tier, or left unresolved
// on the top tier.
func (e *Engine) requeue(tm *team, en *entry, now time.Time, shift config.ShiftConfig, inShift bool, free int, refused, hopeless bool) {
	tk := en.t
	if hopeless {
		occurrence := e.cal.start(now, shift)
		if !occurrence.Equal(en.hopelessIn) {
			en.hopeless++
			en.hopelessIn = occurrence
		}
	}
	if en.hopeless > len(e.opts.Shifts)+1 {
		e.giveUp(tm, tk, now)
		return
	}

	if inShift && tk.AnalysedInShift == "" {
		tk.AnalysedInShift = shift.Name
	}
	if tk.Priority < e.opts.MaxPriority {
		tk.Priority++
	}
	tk.Requeues++

	next := e.cal.nextStart(now)
	if inShift {
		for _, a := range tm.analysts {
			if a.Shift != shift.Name {
				continue
			}
			if until := a.busyUntil(); until.After(now) && until.Before(next) {
				next = until
			}
		}
		if refused && now.Add(retrySlot).Before(next) {
			next = now.Add(retrySlot)
		}
	}

	if free == 0 {
		tm.wake = next
	}
	en.ready = next
	tm.queues.push(en)
	e.stats.Requeues++
	e.obs.Requeued(tk, now, next)
	e.log.Debug().Int64("ticket", tk.ID).Str("team", tm.name).Int("priority", tk.Priority).Time("next", next).Msg("Ticket requeued")
}

func (e *Engine) giveUp(tm *team, tk *ticket.Ticket, now time.Time) {
	tk.MarkUnresolved()
	tm.handled = append(tm.handled, tk)
	e.stats.Unresolved++
	e.obs.Unresolved(tk, now)
	e.log.Warn().Int64("ticket", tk.ID).Str("team", tm.name).Msg("No analyst can take ticket")
	if !e.isTop(tm) {
		e.replicate(tm, tk, now, ticket.ReplicationReassignment)
	}
}

// replicate clones origin onto the next tier. Replication never targets the
// same or a lower tier, so escalation chains end at the top team.
func (e *Engine) replicate(from *team, origin *ticket.Ticket, raised time.Time, reason ticket.Replication) {
	if e.isTop(from) {
		return
	}
	to := e.teams[from.tier+1]
	replica := origin.Replicate(e.ids.Next(), to.name, raised, reason)
	to.inbox.Push(replica)
	e.stats.Replicas[string(reason)]++
	e.obs.Replicated(origin, replica)
	e.log.Debug().Int64("origin", origin.ID).Int64("replica", replica.ID).Str("to", to.name).Str("reason", string(reason)).Msg("Ticket replicated")
}

func (e *Engine) isTop(tm *team) bool {
	return tm.tier == len(e.teams)-1
}

func minutes(m float64) time.Duration {
	return time.Duration(m * float64(time.Minute))
}

// Handled returns the tickets a team finished, in emission order.
func (e *Engine) Handled(team string) []*ticket.Ticket {
	if tm, ok := e.byName[team]; ok {
		return tm.handled
	}
	return nil
}

// Tickets returns every handled ticket, team by team in tier order.
func (e *Engine) Tickets() []*ticket.Ticket {
	var out []*ticket.Ticket
	for _, tm := range e.teams {
		out = append(out, tm.handled...)
	}
	return out
}

// Analysts returns the roster of every team in tier order.
func (e *Engine) Analysts() []*Analyst {
	var out []*Analyst
	for _, tm := range e.teams {
		out = append(out, tm.analysts...)
	}
	return out
}

// Stats returns the dispatch counters.
func (e *Engine) Stats() Stats {
	return e.stats
}
