// Package simulation orchestrates one generation run: catalog, arrivals,
// dispatch and the run summary, all on a single seeded random stream.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"ticketsim/internal/catalog"
	"ticketsim/internal/config"
	"ticketsim/internal/dispatch"
	"ticketsim/internal/eventlog"
	"ticketsim/internal/metrics"
	"ticketsim/internal/reference"
	"ticketsim/internal/rng"
	"ticketsim/internal/seasonality"
	"ticketsim/internal/skill"
	"ticketsim/internal/synth"
	"ticketsim/internal/ticket"
)

// ErrCancelled is returned when the context is cancelled between phases.
// The partial result comes back alongside it and must not be written out.
var ErrCancelled = errors.New("simulation cancelled")

// Options are the inputs of a run. Nil reference inputs fall back to defaults;
// a nil or empty bundle disables every seasonality switch.
type Options struct {
	Config    *config.SimConfig
	Bundle    *reference.Bundle
	Countries reference.Countries
	BadIPs    []string
	Special   *reference.SpecialSteps
	Logger    zerolog.Logger
}

// Result is everything a run produced.
type Result struct {
	RunID string `json:"run_id"`
	Seed  uint64 `json:"seed"`

	// Config is the effective configuration, after reference fallbacks.
	Config   *config.SimConfig    `json:"-"`
	Catalog  *catalog.Catalog     `json:"-"`
	Skills   *skill.Store         `json:"-"`
	Events   *eventlog.EventStore `json:"-"`
	Metrics  *metrics.Recorder    `json:"-"`
	Analysts []*dispatch.Analyst  `json:"-"`

	// Train holds every dispatched ticket, team by team in tier order,
	// including replicas and tickets left unresolved.
	Train []*ticket.Ticket `json:"-"`
	// Test holds the unsolved arrivals of the test window.
	Test []*ticket.Ticket `json:"-"`

	TrainStats synth.Stats    `json:"train"`
	TestStats  synth.Stats    `json:"test"`
	Dispatch   dispatch.Stats `json:"dispatch"`
	Summary    *Summary       `json:"summary,omitempty"`
	Elapsed    time.Duration  `json:"-"`
}

// Run executes a full simulation. Configuration problems are returned as
// config.ErrInvalid; a cancelled ctx yields ErrCancelled and the partial result.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("%w: no simulation config", config.ErrInvalid)
	}
	started := time.Now()
	logger := opts.Logger.With().Str("component", "simulation").Logger()

	cfg := *opts.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	bundle := opts.Bundle
	if bundle.Empty() {
		if cfg.TicketSeasonality || cfg.FamilySeasonality || cfg.TechniquesSeasonality {
			logger.Warn().Err(reference.ErrMissing).Msg("No reference data, falling back to uniform distributions")
		}
		bundle = nil
		cfg.TicketSeasonality = false
		cfg.FamilySeasonality = false
		cfg.TechniquesSeasonality = false
	}

	src := rng.New(cfg.Seed)
	res := &Result{Seed: src.Seed(), Config: &cfg}
	logger.Info().Uint64("seed", res.Seed).Int("train", cfg.TrainTickets).Int("test", cfg.TestTickets).Msg("Starting simulation")

	// Phase 1: families and techniques.
	if err := checkpoint(ctx, "families"); err != nil {
		return res, err
	}
	cat, err := catalog.Materialize(&cfg, bundle, opts.Special, src)
	if err != nil {
		return nil, err
	}
	res.Catalog = cat
	logger.Info().Int("families", len(cat.Families())).Int("subfamilies", len(cat.Subfamilies())).Msg("Catalog materialized")

	// Phase 2: arrivals.
	if err := checkpoint(ctx, "arrivals"); err != nil {
		return res, err
	}
	fams := make([]seasonality.Family, 0, len(cat.Families()))
	for _, f := range cat.Families() {
		fams = append(fams, seasonality.Family{Name: f.Name, Reference: f.Reference})
	}
	model := seasonality.New(fams, bundle, seasonality.OptionsFrom(&cfg))
	ids := ticket.NewIDs(1)
	gen := synth.New(&cfg, cat, model, opts.Countries, opts.BadIPs, ids, src, opts.Logger)

	train, trainStats, err := gen.Generate(cfg.Start(), cfg.End(), cfg.TrainTickets)
	if err != nil {
		return nil, fmt.Errorf("failed to generate train arrivals: %w", err)
	}
	testStart, testEnd := cfg.TestWindow()
	test, testStats, err := gen.Generate(testStart, testEnd, cfg.TestTickets)
	if err != nil {
		return nil, fmt.Errorf("failed to generate test arrivals: %w", err)
	}
	res.Test, res.TrainStats, res.TestStats = test, trainStats, testStats
	logger.Info().
		Int("train", len(train)).
		Int("test", len(test)).
		Int("bursts", trainStats.Bursts+testStats.Bursts).
		Int("drift", trainStats.Drift+testStats.Drift).
		Msg("Arrivals generated")

	met := metrics.New()
	met.Generated("train", len(train))
	met.Generated("test", len(test))
	res.Metrics = met

	// Phase 3: dispatch. Actions are built lazily as analysts pick tickets up.
	if err := checkpoint(ctx, "dispatch"); err != nil {
		return res, err
	}
	store := eventlog.NewEventStore()
	rec := eventlog.NewRecorder(store)
	skills := skill.NewStore(src, cfg.MinLearningCounter, cfg.MaxLearningCounter, met)
	res.Events, res.Skills = store, skills

	engine, err := dispatch.New(dispatch.OptionsFrom(&cfg), cat, skills, ids, src, opts.Logger, dispatch.Observers{rec, met})
	if err != nil {
		return nil, err
	}
	for _, tk := range train {
		rec.Raised(tk)
		if err := engine.Submit(tk); err != nil {
			return nil, err
		}
	}
	runErr := engine.Run(ctx)
	rec.Flush()
	res.Train = engine.Tickets()
	res.Analysts = engine.Analysts()
	res.Dispatch = engine.Stats()
	if runErr != nil {
		if ctx.Err() != nil {
			return res, fmt.Errorf("%w during dispatch: %v", ErrCancelled, runErr)
		}
		return nil, runErr
	}

	// Phase 4: summary.
	if err := checkpoint(ctx, "summary"); err != nil {
		return res, err
	}
	teams := make([]string, 0, len(cfg.Teams))
	for _, t := range cfg.Teams {
		teams = append(teams, t.Name)
	}
	res.Summary = summarize(store, teams, res.Train, cfg.Start(), cfg.End(), len(test), src)

	// Drawn last so the datasets do not depend on it.
	id, err := uuid.NewRandomFromReader(src)
	if err != nil {
		return nil, fmt.Errorf("failed to draw run id: %w", err)
	}
	res.RunID = id.String()
	res.Elapsed = time.Since(started)

	logRun(logger, res)
	return res, nil
}

func checkpoint(ctx context.Context, phase string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w before %s: %v", ErrCancelled, phase, err)
	}
	return nil
}

func logRun(logger zerolog.Logger, res *Result) {
	for _, ts := range res.Summary.Teams {
		logger.Info().
			Str("team", ts.Team).
			Int("handled", ts.Handled).
			Int("unresolved", ts.Unresolved).
			Float64("wait_p85", ts.Wait.P85).
			Float64("duration_p85", ts.Duration.P85).
			Float64("fat_tail", ts.FatTail).
			Msg("Team summary")
	}
	f := res.Summary.Forecast
	logger.Info().
		Str("run_id", res.RunID).
		Int("assigned", res.Dispatch.Assigned).
		Int("requeues", res.Dispatch.Requeues).
		Int("unresolved", res.Dispatch.Unresolved).
		Int("skills", res.Skills.Len()).
		Int("backlog_p50_days", f.P50).
		Int("backlog_p85_days", f.P85).
		Dur("elapsed", res.Elapsed).
		Msg("Simulation finished")
}
