package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"quantsim/internal/domain"
)

// Config is the on-disk configuration shape (YAML).
type Config struct {
	Inputs  InputsConfig  `yaml:"inputs"`
	Sim     SimConfig     `yaml:"sim"`
	Run     RunConfig     `yaml:"run"`
	Storage StorageConfig `yaml:"storage"`
}

// InputsConfig names the CSV matrices for a run. Either sizes or the
// entries/exits pair must be set, never both.
type InputsConfig struct {
	Prices  string `yaml:"prices"`
	Sizes   string `yaml:"sizes"`
	Entries string `yaml:"entries"`
	Exits   string `yaml:"exits"`
}

// SimConfig mirrors domain.SimConfig field by field. Pointer fields
// distinguish "absent" from an explicit zero so defaults survive.
type SimConfig struct {
	InitialCash       *float64  `yaml:"initial_cash"`
	InitPosition      float64   `yaml:"init_position"`
	SizeType          string    `yaml:"size_type"`
	Direction         string    `yaml:"direction"`
	FeeRate           float64   `yaml:"fee_rate"`
	FixedFee          float64   `yaml:"fixed_fee"`
	Slippage          float64   `yaml:"slippage"`
	MinTradableUnit   *float64  `yaml:"min_tradable_unit"`
	SizeGranularity   float64   `yaml:"size_granularity"`
	MaxSize           *float64  `yaml:"max_size"`
	CashSharing       bool      `yaml:"cash_sharing"`
	Groups            []int     `yaml:"groups"`
	AllowPartialFills *bool     `yaml:"allow_partial_fills"`
	Leverage          *float64  `yaml:"leverage"`
	CashPrecision     *int      `yaml:"cash_precision"`
	ConflictPolicy    string    `yaml:"conflict_policy"`
	SignalSize        *float64  `yaml:"signal_size"`
	SignalSizeType    string    `yaml:"signal_size_type"`
	AllowReentry      bool      `yaml:"allow_reentry"`
	FeeRateByColumn   []float64 `yaml:"fee_rate_by_column"`
	FixedFeeByColumn  []float64 `yaml:"fixed_fee_by_column"`
	SlippageByColumn  []float64 `yaml:"slippage_by_column"`
}

// RunConfig controls execution of the driver itself.
type RunConfig struct {
	TrackEquity bool   `yaml:"track_equity"`
	Workers     int    `yaml:"workers"` // 0 uses GOMAXPROCS
	RunID       string `yaml:"run_id"`  // empty derives a deterministic ID
}

// StorageConfig holds optional backend DSNs. Empty DSNs keep logs in memory.
type StorageConfig struct {
	PostgresDSN   string `yaml:"postgres_dsn"`
	ClickhouseDSN string `yaml:"clickhouse_dsn"`
}

// Load reads, defaults and validates a YAML config file.
func Load(path string) (*Config, error) {
	c, err := LoadUnchecked(path)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadUnchecked loads a config without validating it.
// Useful for debugging/printing partial configs.
func LoadUnchecked(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks the parts the config layer owns. Matrix-shape checks
// happen later, once the inputs are loaded.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.Inputs.Prices == "" {
		return errors.New("inputs.prices is required")
	}

	hasSizes := c.Inputs.Sizes != ""
	hasSignals := c.Inputs.Entries != "" || c.Inputs.Exits != ""
	if hasSizes && hasSignals {
		return errors.New("inputs: sizes and entries/exits are mutually exclusive")
	}
	if !hasSizes && !hasSignals {
		return errors.New("inputs: either sizes or entries/exits is required")
	}
	if hasSignals && (c.Inputs.Entries == "" || c.Inputs.Exits == "") {
		return errors.New("inputs: entries and exits must both be set")
	}

	if c.Run.Workers < 0 {
		return errors.New("run.workers must be >= 0")
	}

	sim := c.ToSimConfig()
	// The real column count is unknown until the matrices load; validate
	// against the widest per-column field, or a single column without one.
	columns := len(sim.Groups)
	for _, s := range [][]float64{sim.FeeRateByColumn, sim.FixedFeeByColumn, sim.SlippageByColumn} {
		if len(s) > columns {
			columns = len(s)
		}
	}
	if columns == 0 {
		columns = 1
	}
	if err := sim.Validate(columns); err != nil {
		return fmt.Errorf("sim config invalid: %w", err)
	}
	return nil
}

// ToSimConfig converts the YAML shape into a domain.SimConfig, applying
// defaults for absent fields.
func (c *Config) ToSimConfig() domain.SimConfig {
	cfg := domain.DefaultSimConfig()
	s := c.Sim

	if s.InitialCash != nil {
		cfg.InitialCash = *s.InitialCash
	}
	cfg.InitPosition = s.InitPosition
	if s.SizeType != "" {
		cfg.SizeType = domain.SizeType(s.SizeType)
	}
	if s.Direction != "" {
		cfg.Direction = domain.Direction(s.Direction)
	}
	cfg.FeeRate = s.FeeRate
	cfg.FixedFee = s.FixedFee
	cfg.Slippage = s.Slippage
	if s.MinTradableUnit != nil {
		cfg.MinTradableUnit = *s.MinTradableUnit
	}
	cfg.SizeGranularity = s.SizeGranularity
	if s.MaxSize != nil {
		cfg.MaxSize = *s.MaxSize
	}
	cfg.CashSharing = s.CashSharing
	cfg.Groups = s.Groups
	if s.AllowPartialFills != nil {
		cfg.AllowPartialFills = *s.AllowPartialFills
	}
	if s.Leverage != nil {
		cfg.Leverage = *s.Leverage
	}
	if s.CashPrecision != nil {
		cfg.CashPrecision = *s.CashPrecision
	}
	if s.ConflictPolicy != "" {
		cfg.ConflictPolicy = domain.ConflictPolicy(s.ConflictPolicy)
	}
	if s.SignalSize != nil {
		cfg.SignalSize = *s.SignalSize
	}
	if s.SignalSizeType != "" {
		cfg.SignalSizeType = domain.SizeType(s.SignalSizeType)
	}
	cfg.AllowReentry = s.AllowReentry
	cfg.FeeRateByColumn = s.FeeRateByColumn
	cfg.FixedFeeByColumn = s.FixedFeeByColumn
	cfg.SlippageByColumn = s.SlippageByColumn

	return cfg
}
