package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/KieranMcFarlane/panther-scout/internal/budget"
	"github.com/KieranMcFarlane/panther-scout/internal/evidence"
	"github.com/KieranMcFarlane/panther-scout/internal/ledger"
	"github.com/KieranMcFarlane/panther-scout/internal/registry"
	"github.com/KieranMcFarlane/panther-scout/internal/saturation"
	"github.com/KieranMcFarlane/panther-scout/internal/selector"
	"github.com/KieranMcFarlane/panther-scout/internal/store"
)

// #region types

// CategoryCount is the fixed size of the evidence category set. Runs always
// explore exactly this many categories per entity.
const CategoryCount = 8

// Config is the full run configuration, loaded from YAML with env overrides.
type Config struct {
	Storage     StorageConfig                  `yaml:"storage"`
	Workers     int                            `yaml:"workers"`
	MetricsAddr string                         `yaml:"metrics_addr"`
	Categories  []CategoryConfig               `yaml:"categories"`
	Ledger      LedgerConfig                   `yaml:"ledger"`
	Saturation  SaturationConfig               `yaml:"saturation"`
	Selector    SelectorConfig                 `yaml:"selector"`
	Budget      budget.Budget                  `yaml:"budget"`
	Evaluator   evidence.OpenAIEvaluatorConfig `yaml:"evaluator"`
	Search      evidence.WebSourceConfig       `yaml:"search"`
	Cache       CacheConfig                    `yaml:"cache"`
	Entities    []registry.Entity              `yaml:"entities"`

	// APIKey never appears in config files.
	APIKey string `yaml:"-"`
}

// StorageConfig names the SQLite database holding hypotheses, the audit log
// and the entity registry.
type StorageConfig struct {
	DBPath string `yaml:"db_path"`
}

// CategoryConfig pairs a category name with its prior information value for
// the selector.
type CategoryConfig struct {
	Name      string  `yaml:"name"`
	InfoValue float64 `yaml:"info_value"`
}

// LedgerConfig is the YAML shape of the confidence update rule.
type LedgerConfig struct {
	InitialConfidence float64            `yaml:"initial_confidence"`
	MinConfidence     float64            `yaml:"min_confidence"`
	MaxConfidence     float64            `yaml:"max_confidence"`
	Deltas            map[string]float64 `yaml:"deltas"`
}

// SaturationConfig is the YAML shape of the saturation policy.
type SaturationConfig struct {
	ConsecutiveRejects  int     `yaml:"consecutive_rejects"`
	CountNoProgress     bool    `yaml:"count_no_progress"`
	ConsecutiveFailures int     `yaml:"consecutive_failures"`
	WindowSize          int     `yaml:"window_size"`
	MinWindowGain       float64 `yaml:"min_window_gain"`
}

// SelectorConfig is the YAML shape of the category selector settings. The
// per-category information values live in the Categories table.
type SelectorConfig struct {
	NoveltyDecay float64 `yaml:"novelty_decay"`
}

// CacheConfig enables the Redis read-through cache over the hypothesis store.
type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	Addr    string        `yaml:"addr"`
	TTL     time.Duration `yaml:"ttl"`
}

// UnmarshalYAML accepts human-readable TTLs ("10m") and overlays only the
// fields the document sets.
func (c *CacheConfig) UnmarshalYAML(node *yaml.Node) error {
	type raw struct {
		Enabled *bool   `yaml:"enabled"`
		Addr    *string `yaml:"addr"`
		TTL     *string `yaml:"ttl"`
	}
	var r raw
	if err := node.Decode(&r); err != nil {
		return err
	}
	if r.Enabled != nil {
		c.Enabled = *r.Enabled
	}
	if r.Addr != nil {
		c.Addr = *r.Addr
	}
	if r.TTL != nil {
		d, err := time.ParseDuration(*r.TTL)
		if err != nil {
			return fmt.Errorf("cache ttl: %w", err)
		}
		c.TTL = d
	}
	return nil
}

// #endregion types

// #region defaults

// Default returns the standard run configuration.
func Default() Config {
	lc := ledger.DefaultConfig()
	sc := saturation.DefaultConfig()
	sel := selector.DefaultConfig()

	// Table order here is presentation only; the selector works off the map.
	names := []ledger.Category{
		"digital_infrastructure", "commercial_systems", "governance_compliance",
		"market_presence", "technology_stack", "partnerships",
		"hiring_signals", "media_coverage",
	}
	cats := make([]CategoryConfig, 0, len(names))
	for _, n := range names {
		cats = append(cats, CategoryConfig{Name: string(n), InfoValue: sel.InformationValue[n]})
	}

	return Config{
		Storage:    StorageConfig{DBPath: "scout.db"},
		Workers:    4,
		Categories: cats,
		Ledger: LedgerConfig{
			InitialConfidence: lc.InitialConfidence,
			MinConfidence:     lc.MinConfidence,
			MaxConfidence:     lc.MaxConfidence,
			Deltas: map[string]float64{
				string(ledger.DecisionAccept):     lc.Deltas[ledger.DecisionAccept],
				string(ledger.DecisionWeakAccept): lc.Deltas[ledger.DecisionWeakAccept],
				string(ledger.DecisionReject):     lc.Deltas[ledger.DecisionReject],
				string(ledger.DecisionNoProgress): lc.Deltas[ledger.DecisionNoProgress],
			},
		},
		Saturation: SaturationConfig{
			ConsecutiveRejects:  sc.ConsecutiveRejects,
			CountNoProgress:     sc.CountNoProgress,
			ConsecutiveFailures: sc.ConsecutiveFailures,
			WindowSize:          sc.WindowSize,
			MinWindowGain:       sc.MinWindowGain,
		},
		Selector:  SelectorConfig{NoveltyDecay: sel.NoveltyDecay},
		Budget:    budget.DefaultBudget(),
		Evaluator: evidence.DefaultOpenAIEvaluatorConfig(),
		Search:    evidence.DefaultWebSourceConfig(),
		Cache:     CacheConfig{Enabled: false, Addr: "localhost:6379", TTL: 10 * time.Minute},
	}
}

// #endregion defaults

// #region load

// Load reads a YAML config file over the defaults, applies env overrides,
// and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("SCOUT_DB"); v != "" {
		c.Storage.DBPath = v
	}
	if v := os.Getenv("SCOUT_REDIS_ADDR"); v != "" {
		c.Cache.Enabled = true
		c.Cache.Addr = v
	}
	if v := os.Getenv("SCOUT_METRICS_ADDR"); v != "" {
		c.MetricsAddr = v
	}
	if v := os.Getenv("SCOUT_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Workers = n
		}
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.APIKey = v
	}
}

// #endregion load

// #region validate

// Validate fails fast on malformed configuration: every run needs the full
// category set, deltas for all decisions and bounded thresholds.
func (c Config) Validate() error {
	if len(c.Categories) != CategoryCount {
		return fmt.Errorf("config: expected %d categories, got %d", CategoryCount, len(c.Categories))
	}
	seen := make(map[string]bool, len(c.Categories))
	for _, cat := range c.Categories {
		if cat.Name == "" {
			return fmt.Errorf("config: category with empty name")
		}
		if seen[cat.Name] {
			return fmt.Errorf("config: duplicate category %q", cat.Name)
		}
		seen[cat.Name] = true
		if cat.InfoValue <= 0 {
			return fmt.Errorf("config: category %q needs a positive info_value", cat.Name)
		}
	}

	for _, d := range []ledger.Decision{
		ledger.DecisionAccept, ledger.DecisionWeakAccept,
		ledger.DecisionReject, ledger.DecisionNoProgress,
	} {
		if _, ok := c.Ledger.Deltas[string(d)]; !ok {
			return fmt.Errorf("config: missing ledger delta for %q", d)
		}
	}
	if c.Ledger.MinConfidence <= 0 || c.Ledger.MaxConfidence >= 1 ||
		c.Ledger.MinConfidence >= c.Ledger.MaxConfidence {
		return fmt.Errorf("config: confidence bounds must satisfy 0 < min < max < 1")
	}
	if c.Ledger.InitialConfidence < c.Ledger.MinConfidence || c.Ledger.InitialConfidence > c.Ledger.MaxConfidence {
		return fmt.Errorf("config: initial_confidence %.2f outside [%.2f, %.2f]",
			c.Ledger.InitialConfidence, c.Ledger.MinConfidence, c.Ledger.MaxConfidence)
	}

	if c.Selector.NoveltyDecay <= 0 || c.Selector.NoveltyDecay >= 1 {
		return fmt.Errorf("config: novelty_decay must be in (0, 1), got %f", c.Selector.NoveltyDecay)
	}

	if c.Saturation.ConsecutiveRejects < 1 || c.Saturation.ConsecutiveFailures < 1 {
		return fmt.Errorf("config: saturation streaks must be at least 1")
	}
	if c.Saturation.WindowSize < 1 || c.Saturation.MinWindowGain <= 0 {
		return fmt.Errorf("config: saturation window must be positive")
	}

	if err := c.Budget.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	if c.Workers < 1 {
		return fmt.Errorf("config: workers must be at least 1, got %d", c.Workers)
	}
	return nil
}

// #endregion validate

// #region converters

// LedgerConfig converts the YAML shape into the ledger's config.
func (c Config) LedgerConfig() ledger.Config {
	deltas := make(map[ledger.Decision]float64, len(c.Ledger.Deltas))
	for k, v := range c.Ledger.Deltas {
		deltas[ledger.Decision(k)] = v
	}
	return ledger.Config{
		InitialConfidence: c.Ledger.InitialConfidence,
		MinConfidence:     c.Ledger.MinConfidence,
		MaxConfidence:     c.Ledger.MaxConfidence,
		Deltas:            deltas,
	}
}

// SaturationConfig converts the YAML shape into the tracker's config.
func (c Config) SaturationConfig() saturation.Config {
	return saturation.Config{
		ConsecutiveRejects:  c.Saturation.ConsecutiveRejects,
		CountNoProgress:     c.Saturation.CountNoProgress,
		ConsecutiveFailures: c.Saturation.ConsecutiveFailures,
		WindowSize:          c.Saturation.WindowSize,
		MinWindowGain:       c.Saturation.MinWindowGain,
	}
}

// SelectorConfig converts the category table into the selector's config.
func (c Config) SelectorConfig() selector.Config {
	info := make(map[ledger.Category]float64, len(c.Categories))
	for _, cat := range c.Categories {
		info[ledger.Category(cat.Name)] = cat.InfoValue
	}
	return selector.Config{InformationValue: info, NoveltyDecay: c.Selector.NoveltyDecay}
}

// CategoryList returns the configured categories in table order.
func (c Config) CategoryList() []ledger.Category {
	out := make([]ledger.Category, 0, len(c.Categories))
	for _, cat := range c.Categories {
		out = append(out, ledger.Category(cat.Name))
	}
	return out
}

// CacheStoreConfig converts the cache section for the store decorator.
func (c Config) CacheStoreConfig() store.CacheConfig {
	return store.CacheConfig{Addr: c.Cache.Addr, TTL: c.Cache.TTL}
}

// #endregion converters
