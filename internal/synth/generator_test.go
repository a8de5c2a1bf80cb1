package synth

import (
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"ticketsim/internal/catalog"
	"ticketsim/internal/config"
	"ticketsim/internal/rng"
	"ticketsim/internal/seasonality"
	"ticketsim/internal/ticket"
)

func newGenerator(t *testing.T, mutate func(*config.SimConfig)) (*Generator, *config.SimConfig) {
	t.Helper()
	cfg := config.DefaultSimulation()
	seed := int64(42)
	cfg.Seed = &seed
	if mutate != nil {
		mutate(cfg)
	}
	src := rng.New(cfg.Seed)
	cat, err := catalog.Materialize(cfg, nil, nil, src)
	if err != nil {
		t.Fatalf("Materialize failed: %v", err)
	}
	var fams []seasonality.Family
	for _, f := range cat.Families() {
		fams = append(fams, seasonality.Family{Name: f.Name, Reference: f.Reference})
	}
	model := seasonality.New(fams, nil, seasonality.OptionsFrom(cfg))
	return New(cfg, cat, model, nil, nil, ticket.NewIDs(1), src, zerolog.Nop()), cfg
}

func TestGenerate_OrderedAndNumbered(t *testing.T) {
	g, cfg := newGenerator(t, nil)
	tickets, stats, err := g.Generate(cfg.Start(), cfg.End(), 300)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(tickets) != 300 || stats.Tickets != 300 {
		t.Fatalf("expected 300 tickets, got %d", len(tickets))
	}
	for i, tk := range tickets {
		if tk.Raised.Before(cfg.Start()) || !tk.Raised.Before(cfg.End()) {
			t.Errorf("ticket %d raised %v outside window", tk.ID, tk.Raised)
		}
		if i > 0 {
			if tk.Raised.Before(tickets[i-1].Raised) {
				t.Fatalf("tickets not sorted by raised at %d", i)
			}
			if tk.ID != tickets[i-1].ID+1 {
				t.Fatalf("ids not consecutive at %d", i)
			}
		}
		if tk.Priority < 1 || tk.Priority > cfg.MaxPriorityLevels {
			t.Errorf("priority %d out of range", tk.Priority)
		}
		if tk.Client == "" || tk.Country == "" {
			t.Errorf("ticket %d missing client or country", tk.ID)
		}
	}
}

func TestGenerate_CoordinatedBursts(t *testing.T) {
	g, cfg := newGenerator(t, func(cfg *config.SimConfig) {
		cfg.SuspiciousSubfamily = 1
		cfg.MinCoordinatedAttack = 5
		cfg.MaxCoordinatedAttack = 5
		cfg.MinCoordinatedMinutes = 10
		cfg.MaxCoordinatedMinutes = 10
	})
	tickets, stats, err := g.Generate(cfg.Start(), cfg.End(), 50)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if stats.Bursts != 10 {
		t.Fatalf("expected 10 bursts, got %d", stats.Bursts)
	}

	groups := map[int][]*ticket.Ticket{}
	for _, tk := range tickets {
		if tk.Coordinated == 0 {
			t.Fatalf("ticket %d is not part of a burst", tk.ID)
		}
		groups[tk.Coordinated] = append(groups[tk.Coordinated], tk)
	}
	for id, members := range groups {
		if len(members) != 5 {
			t.Errorf("group %d has %d members", id, len(members))
		}
		first, last := members[0].Raised, members[0].Raised
		for _, m := range members {
			if m.Subfamily != members[0].Subfamily || m.Client != members[0].Client || !m.Suspicious {
				t.Errorf("group %d members differ: %+v", id, m)
			}
			if m.Raised.Before(first) {
				first = m.Raised
			}
			if m.Raised.After(last) {
				last = m.Raised
			}
		}
		if last.Sub(first) >= 10*time.Minute {
			t.Errorf("group %d spans %v", id, last.Sub(first))
		}
	}
}

func TestGenerate_Flags(t *testing.T) {
	g, cfg := newGenerator(t, func(cfg *config.SimConfig) {
		cfg.OutlierRate = 1
		cfg.EscalateRatePercentage = 100
		cfg.SubfamilyRatePercentage = 100
		cfg.SuspiciousSubfamily = 0
	})
	tickets, stats, err := g.Generate(cfg.Start(), cfg.End(), 40)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if stats.Drift != 40 {
		t.Errorf("every ticket should mint a drift subfamily, got %d", stats.Drift)
	}
	for _, tk := range tickets {
		if !tk.Outlier {
			t.Errorf("ticket %d should be an outlier", tk.ID)
		}
		if tk.Escalate != (tk.Team != "L2") {
			t.Errorf("ticket %d on %s escalate=%v", tk.ID, tk.Team, tk.Escalate)
		}
		if tk.Suspicious || tk.Coordinated != 0 {
			t.Errorf("ticket %d should not be suspicious", tk.ID)
		}
	}
}

func TestGenerate_SimilarLinksImmediatePrior(t *testing.T) {
	g, cfg := newGenerator(t, func(cfg *config.SimConfig) {
		cfg.SimilarTicketRate = 1
		cfg.SubfamilyRatePercentage = 0
	})
	tickets, _, err := g.Generate(cfg.Start(), cfg.End(), 200)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	byID := map[int64]*ticket.Ticket{}
	seen := map[string]bool{}
	for _, tk := range tickets {
		key := tk.Team + "|" + tk.Subfamily
		if seen[key] && len(tk.SimilarIDs) != 1 {
			t.Fatalf("ticket %d should link to its prior", tk.ID)
		}
		for _, prev := range tk.SimilarIDs {
			p := byID[prev]
			if p == nil || p.Subfamily != tk.Subfamily || p.Team != tk.Team {
				t.Fatalf("ticket %d links to unrelated %d", tk.ID, prev)
			}
		}
		seen[key] = true
		byID[tk.ID] = tk
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	g1, cfg := newGenerator(t, nil)
	g2, _ := newGenerator(t, nil)
	a, _, err := g1.Generate(cfg.Start(), cfg.End(), 100)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	b, _, err := g2.Generate(cfg.Start(), cfg.End(), 100)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Errorf("same seed produced different streams")
	}
}

func TestGenerate_RejectsEmptyWindow(t *testing.T) {
	g, cfg := newGenerator(t, nil)
	if _, _, err := g.Generate(cfg.End(), cfg.Start(), 10); err == nil {
		t.Errorf("expected error for inverted window")
	}
}
