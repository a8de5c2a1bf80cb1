// Package synth produces the ticket stream of a run: arrivals shaped by the
// seasonality model, family and subfamily draws, drift, outliers, escalation
// hints, suspicious traffic and coordinated bursts.
package synth

import (
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"ticketsim/internal/catalog"
	"ticketsim/internal/config"
	"ticketsim/internal/reference"
	"ticketsim/internal/rng"
	"ticketsim/internal/seasonality"
	"ticketsim/internal/ticket"
)

var destinationPorts = []int{22, 25, 53, 80, 443, 445, 3389, 8080}

// Stats counts what a Generate call injected.
type Stats struct {
	Tickets    int `json:"tickets"`
	Bursts     int `json:"bursts"`
	Suspicious int `json:"suspicious"`
	Drift      int `json:"drift_subfamilies"`
	Outliers   int `json:"outliers"`
	Escalate   int `json:"escalate"`
	Similar    int `json:"similar"`
}

// Generator synthesizes tickets. It shares the run's random stream and id
// allocator with the rest of the simulation.
type Generator struct {
	cfg   *config.SimConfig
	cat   *catalog.Catalog
	model *seasonality.Model
	src   *rng.Source
	ids   *ticket.IDs
	log   zerolog.Logger

	countries    reference.Countries
	countryNames []string
	badIPs       []string

	suspiciousNames   []string
	suspiciousWeights []float64

	outlier     *rng.Choice
	escalate    *rng.Choice
	suspicious  *rng.Choice
	similar     *rng.Choice
	familyNoise *rng.Choice
	drift       *rng.Choice

	topTeam string
	group   int
}

// New wires a generator. countries and badIPs fall back to built-in defaults
// when empty.
func New(cfg *config.SimConfig, cat *catalog.Catalog, model *seasonality.Model, countries reference.Countries,
	badIPs []string, ids *ticket.IDs, src *rng.Source, logger zerolog.Logger) *Generator {
	if len(countries) == 0 {
		countries = reference.DefaultCountries()
	}
	if len(badIPs) == 0 {
		badIPs = reference.DefaultBadIPs()
	}
	g := &Generator{
		cfg:          cfg,
		cat:          cat,
		model:        model,
		src:          src,
		ids:          ids,
		log:          logger.With().Str("component", "synth").Logger(),
		countries:    countries,
		countryNames: countries.Names(),
		badIPs:       badIPs,
		outlier:      src.NewChoice(cfg.OutlierRate),
		escalate:     src.NewChoice(cfg.EscalateRatePercentage / 100),
		suspicious:   src.NewChoice(cfg.SuspiciousSubfamily),
		similar:      src.NewChoice(cfg.SimilarTicketRate),
		familyNoise:  src.NewChoice(cfg.FamilyRatePercentage / 100),
		drift:        src.NewChoice(cfg.SubfamilyRatePercentage / 100),
		topTeam:      cfg.Teams[len(cfg.Teams)-1].Name,
	}
	for code := range cfg.SuspiciousCountries {
		g.suspiciousNames = append(g.suspiciousNames, code)
	}
	sort.Strings(g.suspiciousNames)
	for _, code := range g.suspiciousNames {
		g.suspiciousWeights = append(g.suspiciousWeights, cfg.SuspiciousCountries[code])
	}
	return g
}

// Generate emits n tickets raised in [start, end), sorted by raised time and
// numbered in that order.
func (g *Generator) Generate(start, end time.Time, n int) ([]*ticket.Ticket, Stats, error) {
	var stats Stats
	if n <= 0 {
		return nil, stats, nil
	}
	if !end.After(start) {
		return nil, stats, fmt.Errorf("%w: empty arrival window %s..%s", config.ErrInvalid, start, end)
	}

	arrivals := g.model.Distribute(start, end, n, g.src)
	out := make([]*ticket.Ticket, 0, n)

	for i := 0; i < len(arrivals); {
		at := arrivals[i]
		if !g.suspicious.Next() {
			tk, err := g.single(at, false, &stats)
			if err != nil {
				return nil, stats, err
			}
			out = append(out, tk)
			i++
			continue
		}

		stats.Suspicious++
		k := g.burstSize()
		if k < 2 || k > len(arrivals)-i {
			tk, err := g.single(at, true, &stats)
			if err != nil {
				return nil, stats, err
			}
			out = append(out, tk)
			i++
			continue
		}
		burst, err := g.burst(at, start, end, k, &stats)
		if err != nil {
			return nil, stats, err
		}
		out = append(out, burst...)
		stats.Suspicious += k - 1
		i += k
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Raised.Before(out[j].Raised) })
	for _, tk := range out {
		tk.ID = g.ids.Next()
	}
	stats.Similar = g.linkSimilar(out)
	stats.Tickets = len(out)

	g.log.Debug().
		Int("tickets", stats.Tickets).
		Int("bursts", stats.Bursts).
		Int("drift", stats.Drift).
		Int("outliers", stats.Outliers).
		Msg("Ticket stream synthesized")
	return out, stats, nil
}

func (g *Generator) burstSize() int {
	if g.cfg.MaxCoordinatedAttack <= 0 {
		return 0
	}
	return g.src.IntRange(g.cfg.MinCoordinatedAttack, g.cfg.MaxCoordinatedAttack)
}

// pick chooses the family, subfamily and team of a new ticket.
func (g *Generator) pick(at time.Time, stats *Stats) (*catalog.Family, *catalog.Subfamily, error) {
	fams := g.cat.Families()
	var idx int
	if g.familyNoise.Next() {
		idx = g.src.Intn(len(fams))
	} else {
		idx = g.model.SampleArrival(at, g.src)
	}
	fam := fams[idx]

	name := fam.Subfamilies[g.src.Intn(len(fam.Subfamilies))]
	if g.drift.Next() {
		sub, err := g.cat.NewSubfamily(fam.Name)
		if err != nil {
			return nil, nil, err
		}
		stats.Drift++
		return fam, sub, nil
	}
	sub, ok := g.cat.Subfamily(name)
	if !ok {
		return nil, nil, fmt.Errorf("subfamily %s missing from catalog", name)
	}
	return fam, sub, nil
}

func (g *Generator) single(at time.Time, suspicious bool, stats *Stats) (*ticket.Ticket, error) {
	fam, sub, err := g.pick(at, stats)
	if err != nil {
		return nil, err
	}
	tk := g.base(at, fam, sub, suspicious, stats)
	tk.Country = g.country(suspicious)
	if fam.IP {
		tk.Network = &ticket.Network{Source: g.source(tk.Country, suspicious), Destination: g.destination()}
	}
	return tk, nil
}

// burst emits k tickets of one family and subfamily within a window of
// [min_coord_min, max_coord_min] minutes, sharing a group id, client, country
// and source address.
func (g *Generator) burst(at, start, end time.Time, k int, stats *Stats) ([]*ticket.Ticket, error) {
	fam, sub, err := g.pick(at, stats)
	if err != nil {
		return nil, err
	}
	g.group++
	stats.Bursts++

	span := time.Duration(g.src.IntRange(g.cfg.MinCoordinatedMinutes, g.cfg.MaxCoordinatedMinutes)) * time.Minute
	if at.Add(span).After(end) && end.Add(-span).After(start) {
		at = end.Add(-span)
	}
	country := g.country(true)
	client := g.client()
	var src ticket.Endpoint
	if fam.IP {
		src = g.source(country, true)
	}

	out := make([]*ticket.Ticket, 0, k)
	for j := 0; j < k; j++ {
		raised := at
		if j > 0 {
			raised = at.Add(time.Duration(g.src.Intn(int(span/time.Second))) * time.Second)
		}
		tk := g.base(raised, fam, sub, true, stats)
		tk.Country = country
		tk.Client = client
		tk.Coordinated = g.group
		if fam.IP {
			tk.Network = &ticket.Network{Source: src, Destination: g.destination()}
		}
		out = append(out, tk)
	}
	return out, nil
}

func (g *Generator) base(at time.Time, fam *catalog.Family, sub *catalog.Subfamily, suspicious bool, stats *Stats) *ticket.Ticket {
	tk := &ticket.Ticket{
		Team:       sub.Team,
		Client:     g.client(),
		Family:     fam.Name,
		Subfamily:  sub.Name,
		Priority:   fam.Priority,
		Raised:     at,
		Suspicious: suspicious,
		Stage:      ticket.StageArrival,
	}
	if len(fam.ExtraFeatures) > 0 {
		tk.Features = make(map[string]int, len(fam.ExtraFeatures))
		for _, f := range fam.ExtraFeatures {
			tk.Features[f] = g.src.IntRange(0, 100)
		}
	}
	if g.outlier.Next() {
		tk.Outlier = true
		stats.Outliers++
	}
	if g.cfg.EscalateEnabled && tk.Team != g.topTeam && g.escalate.Next() {
		tk.Escalate = true
		stats.Escalate++
	}
	return tk
}

func (g *Generator) client() string {
	return fmt.Sprintf("%s%d", g.cfg.ClientPrefix, g.src.IntRange(1, g.cfg.ClientsNumber))
}

func (g *Generator) country(suspicious bool) string {
	if g.cfg.IPSelector && suspicious && len(g.suspiciousNames) > 0 {
		return g.suspiciousNames[g.src.Weighted(g.suspiciousWeights)]
	}
	return g.countryNames[g.src.Intn(len(g.countryNames))]
}

func (g *Generator) source(country string, suspicious bool) ticket.Endpoint {
	ep := ticket.Endpoint{Port: g.src.IntRange(1024, 65535)}
	switch {
	case suspicious:
		ep.IP = g.badIPs[g.src.Intn(len(g.badIPs))]
	case len(g.countries[country].IPs) > 0:
		ips := g.countries[country].IPs
		ep.IP = ips[g.src.Intn(len(ips))]
	default:
		ep.IP = fmt.Sprintf("198.51.100.%d", g.src.IntRange(1, 254))
	}
	return ep
}

func (g *Generator) destination() ticket.Endpoint {
	return ticket.Endpoint{
		IP:   fmt.Sprintf("10.%d.%d.%d", g.src.Intn(256), g.src.Intn(256), g.src.IntRange(1, 254)),
		Port: destinationPorts[g.src.Intn(len(destinationPorts))],
	}
}

// linkSimilar marks tickets as repeats of the most recent ticket of the same
// subfamily on the same team. Only the immediate prior is recorded.
func (g *Generator) linkSimilar(tickets []*ticket.Ticket) int {
	type slot struct{ team, subfamily string }
	last := make(map[slot]int64)
	linked := 0
	for _, tk := range tickets {
		key := slot{tk.Team, tk.Subfamily}
		if prev, ok := last[key]; ok && g.similar.Next() {
			tk.SimilarIDs = []int64{prev}
			linked++
		}
		last[key] = tk.ID
	}
	return linked
}
