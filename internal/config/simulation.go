package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// ErrInvalid marks a configuration that cannot start a run.
var ErrInvalid = errors.New("configuration invalid")

// DateLayout is the layout of every date option.
const DateLayout = "2006-01-02"

// Growth types accepted by ticket_growth_type.
const (
	GrowthIncrease = "Increase"
	GrowthMaintain = "Maintain"
	GrowthDecrease = "Decrease"
)

// Distribution modes for analyst selection.
const (
	DistributionRandom   = 0
	DistributionBalanced = 1
)

// Output column switches recognised in output_params.
const (
	ColumnCountry           = "country"
	ColumnClient            = "client"
	ColumnRaised            = "raised"
	ColumnAllocated         = "allocated"
	ColumnStages            = "stages"
	ColumnIPs               = "ips"
	ColumnSuspicious        = "suspicious"
	ColumnCoordinated       = "coordinated"
	ColumnAvailableAnalysts = "available_analysts"
	ColumnAnalystShift      = "analyst_shift"
	ColumnWaitTime          = "wait_time"
	ColumnActionDuration    = "subfamily_action_duration"
	ColumnEscalate          = "escalate"
	ColumnExtraFeatures     = "extra_features"
)

// OutputColumns lists every optional column in output order.
var OutputColumns = []string{
	ColumnCountry, ColumnClient, ColumnRaised, ColumnAllocated, ColumnStages, ColumnIPs,
	ColumnSuspicious, ColumnCoordinated, ColumnAvailableAnalysts, ColumnAnalystShift,
	ColumnWaitTime, ColumnActionDuration, ColumnEscalate, ColumnExtraFeatures,
}

// ShiftConfig is a contiguous interval of the day, in whole hours [Start, End).
type ShiftConfig struct {
	Name  string `mapstructure:"name" json:"name" validate:"required"`
	Start int    `mapstructure:"start" json:"start" validate:"gte=0,lte=23"`
	End   int    `mapstructure:"end" json:"end" validate:"gte=1,lte=24,gtfield=Start"`
}

// TeamConfig describes one support tier. Teams are ordered from the lowest tier.
type TeamConfig struct {
	Name      string  `mapstructure:"name" json:"name" validate:"required"`
	Analysts  int     `mapstructure:"analysts" json:"analysts" validate:"gte=1"`
	Frequency float64 `mapstructure:"frequency" json:"frequency" validate:"gte=0"`
}

// SimConfig carries every option of a generation run.
type SimConfig struct {
	Seed *int64 `mapstructure:"seed" json:"seed,omitempty"`

	TrainTickets  int      `mapstructure:"train_ticket" json:"train_ticket" validate:"gte=1"`
	TestTickets   int      `mapstructure:"test_ticket" json:"test_ticket" validate:"gte=0"`
	StartDate     string   `mapstructure:"start_date" json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate       string   `mapstructure:"end_date" json:"end_date" validate:"required,datetime=2006-01-02"`
	TestTimerange []string `mapstructure:"test_timerange" json:"test_timerange,omitempty" validate:"omitempty,len=2,dive,datetime=2006-01-02"`

	FamiliesNumber      int     `mapstructure:"families_number" json:"families_number" validate:"gte=1"`
	MinSubfamilies      int     `mapstructure:"min_subfamilies" json:"min_subfamilies" validate:"gte=1"`
	MaxSubfamilies      int     `mapstructure:"max_subfamilies" json:"max_subfamilies" validate:"gtefield=MinSubfamilies"`
	TechniquesNumber    int     `mapstructure:"techniques_number" json:"techniques_number" validate:"gte=1"`
	MinSubtechniques    int     `mapstructure:"min_subtechniques" json:"min_subtechniques" validate:"gte=1,lte=256"`
	MaxSubtechniques    int     `mapstructure:"max_subtechniques" json:"max_subtechniques" validate:"lte=256,gtefield=MinSubtechniques"`
	MinSubtechniqueCost float64 `mapstructure:"min_subtechnique_cost" json:"min_subtechnique_cost" validate:"gt=0"`
	MaxSubtechniqueCost float64 `mapstructure:"max_subtechnique_cost" json:"max_subtechnique_cost" validate:"gtefield=MinSubtechniqueCost"`
	MinSubtechniqueRate float64 `mapstructure:"min_subtechnique_rate" json:"min_subtechnique_rate" validate:"gt=0"`
	MaxSubtechniqueRate float64 `mapstructure:"max_subtechnique_rate" json:"max_subtechnique_rate" validate:"gtefield=MinSubtechniqueRate"`
	MaxFeatures         int     `mapstructure:"max_features" json:"max_features" validate:"gte=0,lte=6"`
	MaxPriorityLevels   int     `mapstructure:"max_priority_levels" json:"max_priority_levels" validate:"gte=1"`
	NTransferSteps      int     `mapstructure:"n_transfer_steps" json:"n_transfer_steps" validate:"gte=1"`
	IPSelector          bool    `mapstructure:"ip_selector" json:"ip_selector"`

	TicketSeasonality      bool    `mapstructure:"ticket_seasonality" json:"ticket_seasonality"`
	FamilySeasonality      bool    `mapstructure:"family_seasonality" json:"family_seasonality"`
	TechniquesSeasonality  bool    `mapstructure:"techniques_seasonality" json:"techniques_seasonality"`
	TimeEqualProbabilities bool    `mapstructure:"time_equal_probabilities" json:"time_equal_probabilities"`
	WeekEqualProbabilities bool    `mapstructure:"week_equal_probabilities" json:"week_equal_probabilities"`
	TicketGrowthType       string  `mapstructure:"ticket_growth_type" json:"ticket_growth_type" validate:"oneof=Increase Maintain Decrease"`
	TicketGrowthRate       float64 `mapstructure:"ticket_growth_rate" json:"ticket_growth_rate" validate:"gte=0,lte=0.9"`

	OutlierRate             float64 `mapstructure:"outlier_rate" json:"outlier_rate" validate:"gte=0,lte=1"`
	OutlierCost             float64 `mapstructure:"outlier_cost" json:"outlier_cost" validate:"gte=0"`
	EscalateEnabled         bool    `mapstructure:"escalate_enabled" json:"escalate_enabled"`
	EscalateRatePercentage  float64 `mapstructure:"escalate_rate_percentage" json:"escalate_rate_percentage" validate:"gte=0,lte=100"`
	FamilyRatePercentage    float64 `mapstructure:"family_rate_percentage" json:"family_rate_percentage" validate:"gte=0,lte=100"`
	SubfamilyRatePercentage float64 `mapstructure:"subfamily_rate_percentage" json:"subfamily_rate_percentage" validate:"gte=0,lte=100"`
	SimilarTicketRate       float64 `mapstructure:"similar_ticket_rate" json:"similar_ticket_rate" validate:"gte=0,lte=1"`

	SuspiciousSubfamily   float64            `mapstructure:"suspicious_subfamily" json:"suspicious_subfamily" validate:"gte=0,lte=1"`
	SuspiciousCountries   map[string]float64 `mapstructure:"suspicious_countries" json:"suspicious_countries,omitempty"`
	MinCoordinatedAttack  int                `mapstructure:"min_coordinated_attack" json:"min_coordinated_attack" validate:"gte=0"`
	MaxCoordinatedAttack  int                `mapstructure:"max_coordinated_attack" json:"max_coordinated_attack" validate:"gtefield=MinCoordinatedAttack"`
	MinCoordinatedMinutes int                `mapstructure:"min_coord_min" json:"min_coord_min" validate:"gte=1"`
	MaxCoordinatedMinutes int                `mapstructure:"max_coord_min" json:"max_coord_min" validate:"gtefield=MinCoordinatedMinutes"`

	ClientsNumber int    `mapstructure:"clients_number" json:"clients_number" validate:"gte=1"`
	ClientPrefix  string `mapstructure:"client_prefix" json:"client_prefix"`

	DistributionMode                  int           `mapstructure:"distribution_mode" json:"distribution_mode" validate:"oneof=0 1"`
	PrioritizeLowerTeams              bool          `mapstructure:"prioritize_lower_teams" json:"prioritize_lower_teams"`
	BalancedShifts                    bool          `mapstructure:"balanced_shifts" json:"balanced_shifts"`
	Shifts                            []ShiftConfig `mapstructure:"shifts" json:"shifts" validate:"dive"`
	Teams                             []TeamConfig  `mapstructure:"teams" json:"teams" validate:"dive"`
	AnalystSubfamilyActionProbability float64       `mapstructure:"analyst_subfamily_action_probability" json:"analyst_subfamily_action_probability" validate:"gte=0,lte=1"`
	AnalystSameActionProbability      float64       `mapstructure:"analyst_same_action_probability" json:"analyst_same_action_probability" validate:"gte=0,lte=1"`
	ActionsSimilarity                 float64       `mapstructure:"actions_similarity" json:"actions_similarity" validate:"gte=0,lte=1"`
	MinLearningCounter                int           `mapstructure:"min_learning_counter" json:"min_learning_counter" validate:"gte=1"`
	MaxLearningCounter                int           `mapstructure:"max_learning_counter" json:"max_learning_counter" validate:"gtefield=MinLearningCounter"`

	OutputParams map[string]bool `mapstructure:"output_params" json:"output_params,omitempty"`

	CountriesFile    string `mapstructure:"countries_file" json:"countries_file,omitempty"`
	BadIPsFile       string `mapstructure:"bad_ips_file" json:"bad_ips_file,omitempty"`
	SpecialStepsFile string `mapstructure:"special_steps_file" json:"special_steps_file,omitempty"`
}

// setDefaults registers the default of every scalar option on v.
func setDefaults(v *viper.Viper) {
	v.SetDefault("train_ticket", 1000)
	v.SetDefault("test_ticket", 100)
	v.SetDefault("start_date", "2024-01-01")
	v.SetDefault("end_date", "2024-03-31")

	v.SetDefault("families_number", 5)
	v.SetDefault("min_subfamilies", 2)
	v.SetDefault("max_subfamilies", 4)
	v.SetDefault("techniques_number", 20)
	v.SetDefault("min_subtechniques", 1)
	v.SetDefault("max_subtechniques", 3)
	v.SetDefault("min_subtechnique_cost", 2.0)
	v.SetDefault("max_subtechnique_cost", 10.0)
	v.SetDefault("min_subtechnique_rate", 50.0)
	v.SetDefault("max_subtechnique_rate", 150.0)
	v.SetDefault("max_features", 6)
	v.SetDefault("max_priority_levels", 4)
	v.SetDefault("n_transfer_steps", 3)
	v.SetDefault("ip_selector", true)

	v.SetDefault("ticket_seasonality", true)
	v.SetDefault("family_seasonality", true)
	v.SetDefault("techniques_seasonality", true)
	v.SetDefault("time_equal_probabilities", false)
	v.SetDefault("week_equal_probabilities", false)
	v.SetDefault("ticket_growth_type", GrowthMaintain)
	v.SetDefault("ticket_growth_rate", 0.1)

	v.SetDefault("outlier_rate", 0.05)
	v.SetDefault("outlier_cost", 0.5)
	v.SetDefault("escalate_enabled", true)
	v.SetDefault("escalate_rate_percentage", 10.0)
	v.SetDefault("family_rate_percentage", 0.0)
	v.SetDefault("subfamily_rate_percentage", 1.0)
	v.SetDefault("similar_ticket_rate", 0.05)

	v.SetDefault("suspicious_subfamily", 0.02)
	v.SetDefault("min_coordinated_attack", 3)
	v.SetDefault("max_coordinated_attack", 8)
	v.SetDefault("min_coord_min", 5)
	v.SetDefault("max_coord_min", 30)

	v.SetDefault("clients_number", 50)
	v.SetDefault("client_prefix", "client_")

	v.SetDefault("distribution_mode", DistributionBalanced)
	v.SetDefault("prioritize_lower_teams", false)
	v.SetDefault("balanced_shifts", true)
	v.SetDefault("analyst_subfamily_action_probability", 0.7)
	v.SetDefault("analyst_same_action_probability", 0.8)
	v.SetDefault("actions_similarity", 0.5)
	v.SetDefault("min_learning_counter", 5)
	v.SetDefault("max_learning_counter", 15)

	v.SetDefault("countries_file", "")
	v.SetDefault("bad_ips_file", "")
	v.SetDefault("special_steps_file", "")
}

// DefaultShifts are the three eight-hour shifts used when none are configured.
func DefaultShifts() []ShiftConfig {
	return []ShiftConfig{
		{Name: "shift_0", Start: 0, End: 8},
		{Name: "shift_1", Start: 8, End: 16},
		{Name: "shift_2", Start: 16, End: 24},
	}
}

// DefaultTeams is a two-tier roster.
func DefaultTeams() []TeamConfig {
	return []TeamConfig{
		{Name: "L1", Analysts: 6, Frequency: 0.7},
		{Name: "L2", Analysts: 3, Frequency: 0.3},
	}
}

// DefaultSimulation returns a SimConfig populated with defaults only.
func DefaultSimulation() *SimConfig {
	cfg, err := decode(viper.New())
	if err != nil {
		// defaults are static; a failure here is a programming error
		panic(err)
	}
	return cfg
}

// LoadSimulation reads a YAML simulation file. Every option can be overridden by
// an environment variable prefixed with TICKETSIM_ (for example TICKETSIM_SEED).
// An empty path loads defaults and environment only.
func LoadSimulation(path string) (*SimConfig, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read simulation config %s: %w", path, err)
		}
	}
	v.SetEnvPrefix("TICKETSIM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("seed")

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(v *viper.Viper) (*SimConfig, error) {
	setDefaults(v)
	var cfg SimConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *SimConfig) applyDefaults() {
	if len(c.Shifts) == 0 {
		c.Shifts = DefaultShifts()
	}
	if len(c.Teams) == 0 {
		c.Teams = DefaultTeams()
	}
	if c.SuspiciousCountries == nil {
		c.SuspiciousCountries = map[string]float64{"CN": 0.4, "KP": 0.2, "RU": 0.4}
	} else {
		// viper lower-cases map keys; country codes are upper case
		norm := make(map[string]float64, len(c.SuspiciousCountries))
		for code, w := range c.SuspiciousCountries {
			norm[strings.ToUpper(code)] = w
		}
		c.SuspiciousCountries = norm
	}
	if c.OutputParams == nil {
		c.OutputParams = make(map[string]bool, len(OutputColumns))
		for _, col := range OutputColumns {
			c.OutputParams[col] = true
		}
	}
	if c.ClientPrefix == "" {
		c.ClientPrefix = "client_"
	}
}

// Validate checks struct constraints and cross-option consistency.
func (c *SimConfig) Validate() error {
	c.applyDefaults()

	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	start, end := c.Start(), c.End()
	if !end.After(start) {
		return fmt.Errorf("%w: end_date %s must be after start_date %s", ErrInvalid, c.EndDate, c.StartDate)
	}
	if len(c.TestTimerange) == 2 {
		ts, te := c.TestWindow()
		if !te.After(ts) {
			return fmt.Errorf("%w: test_timerange end must be after its start", ErrInvalid)
		}
	}
	if c.TicketGrowthType != GrowthMaintain && c.TicketGrowthRate < 0.1 {
		return fmt.Errorf("%w: ticket_growth_rate must be in [0.1, 0.9] for %s", ErrInvalid, c.TicketGrowthType)
	}

	names := make(map[string]bool)
	for _, t := range c.Teams {
		if names[t.Name] {
			return fmt.Errorf("%w: duplicate team %q", ErrInvalid, t.Name)
		}
		names[t.Name] = true
	}

	shifts := append([]ShiftConfig(nil), c.Shifts...)
	sort.Slice(shifts, func(i, j int) bool { return shifts[i].Start < shifts[j].Start })
	for i := 1; i < len(shifts); i++ {
		if shifts[i].Start < shifts[i-1].End {
			return fmt.Errorf("%w: shifts %s and %s overlap", ErrInvalid, shifts[i-1].Name, shifts[i].Name)
		}
	}

	for country, w := range c.SuspiciousCountries {
		if w < 0 {
			return fmt.Errorf("%w: suspicious country %s has negative weight", ErrInvalid, country)
		}
	}
	return nil
}

// Start returns the parsed start_date at midnight UTC.
func (c *SimConfig) Start() time.Time {
	return parseDate(c.StartDate)
}

// End returns the parsed end_date at midnight UTC.
func (c *SimConfig) End() time.Time {
	return parseDate(c.EndDate)
}

// TestWindow returns the arrival window of the unsolved test set.
// Without test_timerange it is the week after end_date.
func (c *SimConfig) TestWindow() (time.Time, time.Time) {
	if len(c.TestTimerange) == 2 {
		return parseDate(c.TestTimerange[0]), parseDate(c.TestTimerange[1])
	}
	end := c.End()
	return end, end.AddDate(0, 0, 7)
}

// Column reports whether an optional output column is enabled.
func (c *SimConfig) Column(name string) bool {
	return c.OutputParams[name]
}

func parseDate(s string) time.Time {
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}
	}
	return t
}
