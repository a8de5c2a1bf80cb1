// Package catalog is the generative schema of a run: families, subfamilies,
// the technique pool, canonical actions and the subtechnique decomposition of
// every (team, family, step).
package catalog

import (
	"fmt"
	"sort"
	"strings"

	"ticketsim/internal/config"
	"ticketsim/internal/reference"
	"ticketsim/internal/rng"
)

// ipShare is the share of families that carry a network flow when ip_selector is on.
const ipShare = 0.3

// DefaultFamilies is the family pool used when no reference bundle is loaded.
var DefaultFamilies = []string{
	"Malware", "Phishing", "BruteForce", "DataExfiltration", "Ransomware",
	"DenialOfService", "Reconnaissance", "PrivilegeEscalation", "LateralMovement",
	"InsiderThreat", "PolicyViolation", "Vulnerability", "Spam", "CommandAndControl",
	"AccountCompromise",
}

// FeatureIDs is the pool extra features are drawn from.
var FeatureIDs = []string{"feature_0", "feature_1", "feature_2", "feature_3", "feature_4", "feature_5"}

// Family is one incident type.
type Family struct {
	Name          string   `json:"name"`
	Reference     string   `json:"reference,omitempty"`
	Priority      int      `json:"priority"`
	IP            bool     `json:"ip"`
	ExtraFeatures []string `json:"extra_features,omitempty"`
	Subfamilies   []string `json:"subfamilies"`
	MeanDuration  float64  `json:"mean_duration,omitempty"`
	Action        []string `json:"action"`
}

// Subfamily belongs to exactly one family and is handled first by one team.
type Subfamily struct {
	Name         string              `json:"name"`
	Family       string              `json:"family"`
	Team         string              `json:"team"`
	TeamsActions map[string][]string `json:"teams_actions,omitempty"`
	Drift        bool                `json:"drift,omitempty"`
}

// Catalog owns the schema and the random stream used to grow it.
type Catalog struct {
	cfg     *config.SimConfig
	src     *rng.Source
	special *reference.SpecialSteps

	families    []*Family
	byFamily    map[string]*Family
	subfamilies map[string]*Subfamily
	subOrder    []string

	techniques []string
	locked     map[string]bool
	steps      map[StepKey]reference.Subtechniques

	teams  *teamPicker
	nonces map[string]bool
}

// Materialize builds the catalog for a run. The family pool comes from the
// reference bundle when one is loaded, otherwise from DefaultFamilies.
// A nil special descriptor is replaced with generated locked techniques.
func Materialize(cfg *config.SimConfig, bundle *reference.Bundle, special *reference.SpecialSteps, src *rng.Source) (*Catalog, error) {
	if len(cfg.Teams) == 0 {
		return nil, fmt.Errorf("%w: no teams configured", config.ErrInvalid)
	}
	if cfg.NTransferSteps < 1 {
		return nil, fmt.Errorf("%w: n_transfer_steps must be at least 1", config.ErrInvalid)
	}

	c := &Catalog{
		cfg:         cfg,
		src:         src,
		byFamily:    make(map[string]*Family),
		subfamilies: make(map[string]*Subfamily),
		locked:      make(map[string]bool),
		steps:       make(map[StepKey]reference.Subtechniques),
		teams:       newTeamPicker(cfg.Teams, cfg.PrioritizeLowerTeams),
		nonces:      make(map[string]bool),
	}

	if special == nil {
		special = c.generateSpecial()
	}
	if err := special.Check(); err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrInvalid, err)
	}
	c.special = special
	for _, name := range append(append(special.InitNames(), special.EndNames()...), special.TransferName()) {
		c.locked[name] = true
	}
	c.techniques = c.generateTechniques(cfg.TechniquesNumber)

	pool := familyPool(bundle)
	if len(pool) == 0 {
		return nil, fmt.Errorf("%w: empty family pool", config.ErrInvalid)
	}
	n := cfg.FamiliesNumber
	if n > len(pool) {
		n = len(pool)
	}

	for _, entry := range pool[:n] {
		f := &Family{
			Name:      entry.name,
			Reference: entry.reference,
			Priority:  src.IntRange(1, cfg.MaxPriorityLevels),
		}
		if cfg.IPSelector {
			f.IP = src.Bool(ipShare)
		}
		if k := src.IntRange(0, cfg.MaxFeatures); k > 0 {
			for _, idx := range src.Sample(len(FeatureIDs), k) {
				f.ExtraFeatures = append(f.ExtraFeatures, FeatureIDs[idx])
			}
			sort.Strings(f.ExtraFeatures)
		}
		if bundle != nil && entry.reference != "" {
			f.MeanDuration = bundle.FamilyMeanDuration[entry.reference]
		}
		f.Action = c.BuildAction(c.ActionLength())

		subs := src.IntRange(cfg.MinSubfamilies, cfg.MaxSubfamilies)
		for i := 0; i < subs; i++ {
			c.addSubfamily(f, fmt.Sprintf("%s-%d", f.Name, i+1), false)
		}

		c.families = append(c.families, f)
		c.byFamily[f.Name] = f
	}
	return c, nil
}

type poolEntry struct {
	name      string
	reference string
}

func familyPool(bundle *reference.Bundle) []poolEntry {
	if bundle.Empty() {
		out := make([]poolEntry, 0, len(DefaultFamilies))
		for _, f := range DefaultFamilies {
			out = append(out, poolEntry{name: f})
		}
		return out
	}
	canon := bundle.Families()
	out := make([]poolEntry, 0, len(canon))
	for _, f := range canon {
		out = append(out, poolEntry{name: bundle.SyntheticName(f), reference: f})
	}
	return out
}

func (c *Catalog) addSubfamily(f *Family, name string, drift bool) *Subfamily {
	s := &Subfamily{
		Name:         name,
		Family:       f.Name,
		Team:         c.teams.next(),
		TeamsActions: make(map[string][]string),
		Drift:        drift,
	}
	f.Subfamilies = append(f.Subfamilies, name)
	c.subfamilies[name] = s
	c.subOrder = append(c.subOrder, name)
	return s
}

// NewSubfamily mints a drift subfamily named {family}-{nonce}.
func (c *Catalog) NewSubfamily(family string) (*Subfamily, error) {
	f, ok := c.byFamily[family]
	if !ok {
		return nil, fmt.Errorf("unknown family %q", family)
	}
	for {
		nonce := c.alnum(4)
		name := f.Name + "-" + nonce
		if c.nonces[nonce] || c.subfamilies[name] != nil {
			continue
		}
		c.nonces[nonce] = true
		return c.addSubfamily(f, name, true), nil
	}
}

// Families returns the families in materialization order.
func (c *Catalog) Families() []*Family {
	return c.families
}

// Family looks up a family by its synthetic name.
func (c *Catalog) Family(name string) (*Family, bool) {
	f, ok := c.byFamily[name]
	return f, ok
}

// Subfamily looks up a subfamily.
func (c *Catalog) Subfamily(name string) (*Subfamily, bool) {
	s, ok := c.subfamilies[name]
	return s, ok
}

// Subfamilies returns every subfamily in creation order.
func (c *Catalog) Subfamilies() []*Subfamily {
	out := make([]*Subfamily, 0, len(c.subOrder))
	for _, name := range c.subOrder {
		out = append(out, c.subfamilies[name])
	}
	return out
}

// Special returns the reserved init/end/transfer descriptor.
func (c *Catalog) Special() *reference.SpecialSteps {
	return c.special
}

// Techniques returns the interior technique pool.
func (c *Catalog) Techniques() []string {
	return c.techniques
}

// Locked reports whether a technique is reserved.
func (c *Catalog) Locked(technique string) bool {
	return c.locked[technique]
}

const alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

func (c *Catalog) alnum(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		b.WriteByte(alphabet[c.src.Intn(len(alphabet))])
	}
	return b.String()
}

func (c *Catalog) generateTechniques(n int) []string {
	seen := make(map[string]bool, n)
	out := make([]string, 0, n)
	for len(out) < n {
		id := "T" + c.alnum(5)
		if seen[id] || c.locked[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func (c *Catalog) generateSpecial() *reference.SpecialSteps {
	single := func() reference.Subtechniques {
		return reference.Subtechniques{"00": c.baseDuration()}
	}
	transfer := make(reference.Subtechniques)
	for _, idx := range c.src.Sample(256, c.src.IntRange(1, c.cfg.NTransferSteps)) {
		transfer[fmt.Sprintf("%02x", idx)] = c.baseDuration()
	}
	return &reference.SpecialSteps{
		Init:     map[string]reference.Subtechniques{"Init_A": single(), "Init_B": single()},
		End:      map[string]reference.Subtechniques{"End_A": single(), "End_B": single()},
		Transfer: map[string]reference.Subtechniques{"Transfer": transfer},
	}
}

func (c *Catalog) baseDuration() float64 {
	cost := c.src.Uniform(c.cfg.MinSubtechniqueCost, c.cfg.MaxSubtechniqueCost)
	rate := c.src.Uniform(c.cfg.MinSubtechniqueRate, c.cfg.MaxSubtechniqueRate)
	return cost * rate / 100
}
