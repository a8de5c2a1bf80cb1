package simulation

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketsim/internal/config"
	"ticketsim/internal/reference"
	"ticketsim/internal/ticket"
)

func baseConfig(mutate func(*config.SimConfig)) *config.SimConfig {
	cfg := config.DefaultSimulation()
	seed := int64(42)
	cfg.Seed = &seed
	cfg.TrainTickets = 100
	cfg.TestTickets = 10
	cfg.FamiliesNumber = 3
	cfg.MinSubfamilies, cfg.MaxSubfamilies = 2, 3
	// keep every action well inside an eight-hour shift
	cfg.MinSubtechniques, cfg.MaxSubtechniques = 1, 1
	cfg.MinSubtechniqueCost, cfg.MaxSubtechniqueCost = 2, 5
	cfg.Teams = []config.TeamConfig{{Name: "L1", Analysts: 3, Frequency: 1}}
	if mutate != nil {
		mutate(cfg)
	}
	return cfg
}

func run(t *testing.T, cfg *config.SimConfig) *Result {
	t.Helper()
	res, err := Run(context.Background(), Options{Config: cfg, Logger: zerolog.Nop()})
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

func checkInvariants(t *testing.T, res *Result) {
	t.Helper()
	sp := res.Catalog.Special()
	inits, ends := sp.InitNames(), sp.EndNames()
	byID := make(map[int64]*ticket.Ticket, len(res.Train))
	for _, tk := range res.Train {
		byID[tk.ID] = tk
	}

	for _, tk := range res.Train {
		if r := tk.Resolution; r != nil {
			assert.False(t, r.Allocated.Before(tk.Raised), "ticket %d allocated before raised", tk.ID)
			assert.False(t, r.Fixed.Before(r.Allocated), "ticket %d fixed before allocated", tk.ID)

			var sum float64
			for _, s := range r.StepsTransitions {
				sum += s
			}
			assert.InDelta(t, r.Duration, sum, 1e-6, "ticket %d duration", tk.ID)
			require.NotEmpty(t, r.Action)
			assert.Contains(t, inits, r.Action[0])
			assert.Contains(t, ends, r.Action[len(r.Action)-1])
		}
		if tk.Replicated != nil {
			origin, ok := byID[*tk.Replicated]
			if assert.True(t, ok, "replica %d lost its origin", tk.ID) {
				assert.Equal(t, origin.Family, tk.Family)
				assert.Equal(t, origin.Subfamily, tk.Subfamily)
			}
		}
	}

	// allocated never goes backwards within a priority level of a team
	type lane struct {
		team     string
		priority int
	}
	last := make(map[lane]time.Time)
	for _, tk := range res.Train {
		if tk.Resolution == nil {
			continue
		}
		k := lane{tk.Team, tk.Priority}
		assert.False(t, tk.Resolution.Allocated.Before(last[k]), "ticket %d allocated out of order", tk.ID)
		last[k] = tk.Resolution.Allocated
	}
}

func fingerprint(tickets []*ticket.Ticket) string {
	rows := make([]string, 0, len(tickets))
	for _, tk := range tickets {
		row := fmt.Sprintf("%d|%s|%s|%s|%d|%s", tk.ID, tk.Team, tk.Family, tk.Subfamily, tk.Priority, tk.Raised.Format(time.RFC3339Nano))
		if r := tk.Resolution; r != nil {
			row += fmt.Sprintf("|%s|%s|%s|%s|%.6f|%s", r.Analyst, r.Allocated.Format(time.RFC3339Nano),
				r.Fixed.Format(time.RFC3339Nano), strings.Join(r.Action, ","), r.DurationOutlier, r.Status)
		}
		rows = append(rows, row)
	}
	sort.Strings(rows)
	return fmt.Sprintf("%x", sha256.Sum256([]byte(strings.Join(rows, "\n"))))
}

func TestRun_MinimalDeterministic(t *testing.T) {
	cfg := baseConfig(nil)
	res := run(t, cfg)

	require.Len(t, res.Train, 100)
	require.Len(t, res.Test, 10)
	for _, tk := range res.Train {
		require.NotNil(t, tk.Resolution, "ticket %d unresolved", tk.ID)
		assert.Contains(t, []ticket.Status{ticket.StatusSolved, ticket.StatusTransfer}, tk.Status())
		assert.False(t, tk.Raised.Before(cfg.Start()))
		assert.True(t, tk.Raised.Before(cfg.End()))
	}
	testStart, testEnd := cfg.TestWindow()
	for _, tk := range res.Test {
		assert.Nil(t, tk.Resolution)
		assert.Equal(t, ticket.StageArrival, tk.Stage)
		assert.False(t, tk.Raised.Before(testStart))
		assert.True(t, tk.Raised.Before(testEnd))
	}
	checkInvariants(t, res)

	assert.Equal(t, 100, res.Dispatch.Assigned)
	assert.Equal(t, 0, res.Dispatch.Unresolved)
	require.NotNil(t, res.Summary)
	require.Len(t, res.Summary.Teams, 1)
	assert.Equal(t, 100, res.Summary.Teams[0].Handled)
	assert.Equal(t, 10, res.Summary.Forecast.Backlog)
	assert.NotEmpty(t, res.RunID)
	assert.Positive(t, res.Skills.Len())

	again := run(t, baseConfig(nil))
	assert.Equal(t, fingerprint(res.Train), fingerprint(again.Train))
	assert.Equal(t, fingerprint(res.Test), fingerprint(again.Test))
	assert.Equal(t, res.RunID, again.RunID)
	assert.Equal(t, res.Summary.Forecast, again.Summary.Forecast)
}

func TestRun_DifferentSeedsDiverge(t *testing.T) {
	a := run(t, baseConfig(nil))
	b := run(t, baseConfig(func(cfg *config.SimConfig) {
		seed := int64(43)
		cfg.Seed = &seed
	}))
	assert.NotEqual(t, fingerprint(a.Train), fingerprint(b.Train))
	assert.NotEqual(t, a.RunID, b.RunID)
}

func TestRun_Escalation(t *testing.T) {
	res := run(t, baseConfig(func(cfg *config.SimConfig) {
		cfg.TrainTickets = 50
		cfg.Teams = []config.TeamConfig{
			{Name: "L1", Analysts: 3, Frequency: 1},
			{Name: "L2", Analysts: 3, Frequency: 1},
		}
		cfg.PrioritizeLowerTeams = true
		cfg.EscalateEnabled = true
		cfg.EscalateRatePercentage = 100
	}))
	checkInvariants(t, res)

	replicas := make(map[int64]*ticket.Ticket)
	var l1Solved, l2 int
	for _, tk := range res.Train {
		switch tk.Team {
		case "L2":
			l2++
			require.NotNil(t, tk.Replicated, "L2 ticket %d should be a replica", tk.ID)
			replicas[*tk.Replicated] = tk
		case "L1":
			assert.True(t, tk.Escalate)
		}
	}
	transfer := res.Catalog.Special().TransferName()
	for _, tk := range res.Train {
		if tk.Team != "L1" || tk.Status() != ticket.StatusSolved {
			continue
		}
		l1Solved++
		replica, ok := replicas[tk.ID]
		if assert.True(t, ok, "solved L1 ticket %d has no L2 replica", tk.ID) {
			assert.Equal(t, ticket.ReplicationEscalation, replica.ReplicationStatus)
			assert.Contains(t, replica.SimilarIDs, tk.ID)
		}
		n := 0
		for _, step := range tk.Resolution.Action {
			if step == transfer {
				n++
			}
		}
		assert.Equal(t, 1, n, "escalated ticket %d should carry the transfer step once", tk.ID)
	}
	assert.Positive(t, l1Solved)
	assert.GreaterOrEqual(t, l2, l1Solved)
}

func TestRun_OutlierInflation(t *testing.T) {
	res := run(t, baseConfig(func(cfg *config.SimConfig) {
		cfg.OutlierRate = 1
		cfg.OutlierCost = 0.5
	}))
	for _, tk := range res.Train {
		require.NotNil(t, tk.Resolution)
		assert.True(t, tk.Outlier)
		assert.InDelta(t, 1.5*tk.Resolution.Duration, tk.Resolution.DurationOutlier, 1e-6)
	}
}

func TestRun_CoordinatedBursts(t *testing.T) {
	res := run(t, baseConfig(func(cfg *config.SimConfig) {
		cfg.TrainTickets = 50
		cfg.SuspiciousSubfamily = 1
		cfg.MinCoordinatedAttack, cfg.MaxCoordinatedAttack = 5, 5
		cfg.MinCoordinatedMinutes, cfg.MaxCoordinatedMinutes = 10, 10
	}))
	groups := make(map[int][]*ticket.Ticket)
	for _, tk := range res.Train {
		if tk.Replicated == nil {
			groups[tk.Coordinated] = append(groups[tk.Coordinated], tk)
		}
	}
	require.Len(t, groups, 10)
	for id, g := range groups {
		require.Len(t, g, 5, "burst %d", id)
		first, last := g[0].Raised, g[0].Raised
		for _, tk := range g {
			assert.True(t, tk.Suspicious)
			assert.Equal(t, g[0].Subfamily, tk.Subfamily)
			if tk.Raised.Before(first) {
				first = tk.Raised
			}
			if tk.Raised.After(last) {
				last = tk.Raised
			}
		}
		assert.LessOrEqual(t, last.Sub(first), 10*time.Minute, "burst %d too wide", id)
	}
}

func TestRun_ShiftOverflow(t *testing.T) {
	res := run(t, baseConfig(func(cfg *config.SimConfig) {
		cfg.TrainTickets = 60
		cfg.StartDate, cfg.EndDate = "2024-01-01", "2024-01-02"
		cfg.Teams = []config.TeamConfig{{Name: "L1", Analysts: 1, Frequency: 1}}
		cfg.Shifts = []config.ShiftConfig{{Name: "day", Start: 8, End: 16}}
		cfg.TechniquesNumber = 3
		cfg.MinSubtechniqueCost, cfg.MaxSubtechniqueCost = 30, 30
		cfg.MinSubtechniqueRate, cfg.MaxSubtechniqueRate = 100, 100
		cfg.NTransferSteps = 1
		cfg.OutlierRate = 0
	}))
	checkInvariants(t, res)

	spilled := 0
	for _, tk := range res.Train {
		require.NotNil(t, tk.Resolution, "ticket %d should eventually fit a shift", tk.ID)
		alloc := tk.Resolution.Allocated
		assert.GreaterOrEqual(t, alloc.Hour(), 8)
		assert.Less(t, alloc.Hour(), 16)
		if alloc.YearDay() == tk.Raised.YearDay() {
			continue
		}
		spilled++
		if h := tk.Raised.Hour(); h >= 8 && h < 16 {
			assert.Equal(t, "day", tk.AnalysedInShift, "ticket %d raised in shift", tk.ID)
		}
	}
	assert.Positive(t, spilled, "some tickets must be handled in a later shift")
	assert.Positive(t, res.Dispatch.Requeues)
}

func TestRun_WithoutReferenceData(t *testing.T) {
	cfg := baseConfig(func(cfg *config.SimConfig) {
		cfg.TrainTickets = 900
		cfg.TestTickets = 0
		cfg.SuspiciousSubfamily = 0
		cfg.StartDate, cfg.EndDate = "2024-01-01", "2024-07-01"
	})
	require.True(t, cfg.TicketSeasonality)
	res := run(t, cfg)

	assert.False(t, res.Config.TicketSeasonality)
	assert.False(t, res.Config.FamilySeasonality)
	assert.False(t, res.Config.TechniquesSeasonality)
	assert.True(t, cfg.TicketSeasonality, "caller config must not be modified")

	counts := make(map[string]int)
	for _, tk := range res.Train {
		counts[tk.Family]++
	}
	require.Len(t, counts, 3)
	for fam, n := range counts {
		share := float64(n) / 900
		assert.InDelta(t, 1.0/3, share, 0.12, "family %s share %.3f", fam, share)
	}
}

func TestRun_WithReferenceBundle(t *testing.T) {
	bundle := &reference.Bundle{
		FamilyMapping:      map[string]string{"Phishing": "fam-a", "Malware": "fam-b", "Scan": "fam-c"},
		FamilyMeanDuration: map[string]float64{"Phishing": 20, "Malware": 30, "Scan": 10},
	}
	res, err := Run(context.Background(), Options{Config: baseConfig(nil), Bundle: bundle, Logger: zerolog.Nop()})
	require.NoError(t, err)

	assert.True(t, res.Config.TechniquesSeasonality)
	names := make(map[string]bool)
	for _, f := range res.Catalog.Families() {
		names[f.Name] = true
		assert.NotEmpty(t, f.Reference)
	}
	assert.Equal(t, map[string]bool{"fam-a": true, "fam-b": true, "fam-c": true}, names)
	checkInvariants(t, res)
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := Run(ctx, Options{Config: baseConfig(nil), Logger: zerolog.Nop()})
	assert.ErrorIs(t, err, ErrCancelled)
	require.NotNil(t, res)
	assert.Nil(t, res.Train)
}

func TestRun_InvalidConfig(t *testing.T) {
	_, err := Run(context.Background(), Options{Config: baseConfig(func(cfg *config.SimConfig) {
		cfg.TicketGrowthType = "Sideways"
	}), Logger: zerolog.Nop()})
	assert.ErrorIs(t, err, config.ErrInvalid)

	_, err = Run(context.Background(), Options{Logger: zerolog.Nop()})
	assert.ErrorIs(t, err, config.ErrInvalid)
}
