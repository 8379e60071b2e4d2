// Package config loads the run configuration: a YAML file (embedded defaults
// when none is present) plus environment overrides for secrets and the most
// commonly tuned knobs.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/briefwire/newsbrief/internal/retry"
)

//go:embed default.yaml
var defaultYAML []byte

// SourceConfig declares one news source. The order sources are declared in
// defines their precedence when duplicate stories are merged.
type SourceConfig struct {
	Name      string `yaml:"name"`
	Kind      string `yaml:"kind"` // "search" or "rss"
	Query     string `yaml:"query,omitempty"`
	URL       string `yaml:"url,omitempty"`
	Locale    string `yaml:"locale,omitempty"`
	Leaning   string `yaml:"leaning,omitempty"`
	Category  string `yaml:"category,omitempty"` // pin every article to this category
	Exclusive bool   `yaml:"exclusive,omitempty"`
}

// RetryConfig is the YAML shape of a retry policy.
type RetryConfig struct {
	MaxAttempts    int     `yaml:"max_attempts"`
	BaseDelaySecs  float64 `yaml:"base_delay_seconds"`
	Multiplier     float64 `yaml:"multiplier"`
	MaxDelaySecs   float64 `yaml:"max_delay_seconds"`
	JitterFraction float64 `yaml:"jitter_fraction"`
}

// Policy converts the YAML shape into a retry.Policy.
func (r RetryConfig) Policy() retry.Policy {
	return retry.Policy{
		MaxAttempts: r.MaxAttempts,
		BaseDelay:   time.Duration(r.BaseDelaySecs * float64(time.Second)),
		Multiplier:  r.Multiplier,
		MaxDelay:    time.Duration(r.MaxDelaySecs * float64(time.Second)),
		Jitter:      r.JitterFraction,
	}
}

type FetchConfig struct {
	Workers            int         `yaml:"workers"`
	RequestTimeoutSecs int         `yaml:"request_timeout_seconds"`
	RequestsPerSecond  float64     `yaml:"requests_per_second"`
	Retry              RetryConfig `yaml:"retry"`
}

type DedupConfig struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
}

type SummarizeConfig struct {
	FailurePolicy     string      `yaml:"failure_policy"` // "keep" or "drop"
	MaxSummaryTokens  int         `yaml:"max_summary_tokens"`
	InputCharBudget   int         `yaml:"input_char_budget"`
	RequestsPerMinute float64     `yaml:"requests_per_minute"`
	DailyRequestCap   int         `yaml:"daily_request_cap"`
	Retry             RetryConfig `yaml:"retry"`
}

type EnrichConfig struct {
	MinTextChars int `yaml:"min_text_chars"`
	MaxArticles  int `yaml:"max_articles"`
	DelayMillis  int `yaml:"delay_ms"`
}

// LimitsConfig caps the arranged digest.
type LimitsConfig struct {
	PerCategory   int `yaml:"per_category"`
	PerSource     int `yaml:"per_source"`
	PerLeaning    int `yaml:"per_leaning"`
	International int `yaml:"international"`
	Total         int `yaml:"total"`
}

type Config struct {
	Timezone           string          `yaml:"timezone"`
	RecencyWindowHours int             `yaml:"recency_window_hours"`
	RunBudgetSecs      int             `yaml:"run_budget_seconds"`
	Sources            []SourceConfig  `yaml:"sources"`
	Fetch              FetchConfig     `yaml:"fetch"`
	Dedup              DedupConfig     `yaml:"dedup"`
	Summarize          SummarizeConfig `yaml:"summarize"`
	Enrich             EnrichConfig    `yaml:"enrich"`
	Limits             LimitsConfig    `yaml:"limits"`

	// Secrets, environment only.
	GNewsAPIKey      string `yaml:"-"`
	GeminiAPIKey     string `yaml:"-"`
	OpenAIAPIKey     string `yaml:"-"`
	TelegramBotToken string `yaml:"-"`
	TelegramChatID   string `yaml:"-"`

	Debug bool `yaml:"-"`

	loc *time.Location
}

// Load reads the config file named by NEWSBRIEF_CONFIG (default config.yaml,
// falling back to the embedded defaults when the file does not exist),
// applies environment overrides and validates the result.
func Load() (*Config, error) {
	path := getEnvOrDefault("NEWSBRIEF_CONFIG", "config.yaml")

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		data = defaultYAML
	} else if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}
	cfg.loc = loc

	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Timezone == "" {
		c.Timezone = "America/Chicago"
	}
	if c.RecencyWindowHours <= 0 {
		c.RecencyWindowHours = 24
	}
	if c.RunBudgetSecs <= 0 {
		c.RunBudgetSecs = 300
	}
	if c.Fetch.Workers <= 0 {
		c.Fetch.Workers = 5
	}
	if c.Fetch.RequestTimeoutSecs <= 0 {
		c.Fetch.RequestTimeoutSecs = 30
	}
	if c.Fetch.RequestsPerSecond <= 0 {
		c.Fetch.RequestsPerSecond = 1
	}
	if c.Dedup.SimilarityThreshold <= 0 {
		c.Dedup.SimilarityThreshold = 0.85
	}
	if c.Summarize.FailurePolicy == "" {
		c.Summarize.FailurePolicy = "keep"
	}
	if c.Summarize.MaxSummaryTokens <= 0 {
		c.Summarize.MaxSummaryTokens = 150
	}
	if c.Summarize.InputCharBudget <= 0 {
		c.Summarize.InputCharBudget = 6000
	}
	if c.Summarize.RequestsPerMinute <= 0 {
		c.Summarize.RequestsPerMinute = 15
	}
	if c.Enrich.MinTextChars <= 0 {
		c.Enrich.MinTextChars = 200
	}
	if c.Enrich.MaxArticles <= 0 {
		c.Enrich.MaxArticles = 5
	}
	if c.Enrich.DelayMillis <= 0 {
		c.Enrich.DelayMillis = 500
	}
	if c.Limits.PerCategory <= 0 {
		c.Limits.PerCategory = 4
	}
	if c.Limits.PerSource <= 0 {
		c.Limits.PerSource = 2
	}
	if c.Limits.PerLeaning <= 0 {
		c.Limits.PerLeaning = 4
	}
	if c.Limits.International <= 0 {
		c.Limits.International = 3
	}
	if c.Limits.Total <= 0 {
		c.Limits.Total = 15
	}
}

func (c *Config) applyEnv() {
	c.GNewsAPIKey = os.Getenv("GNEWS_API_KEY")
	c.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	c.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	c.TelegramBotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	c.TelegramChatID = os.Getenv("TELEGRAM_CHAT_ID")

	if os.Getenv("DEBUG") == "true" {
		c.Debug = true
	}

	c.RecencyWindowHours = getEnvIntOrDefault("RECENCY_WINDOW_HOURS", c.RecencyWindowHours)
	c.RunBudgetSecs = getEnvIntOrDefault("RUN_BUDGET_SECONDS", c.RunBudgetSecs)
	c.Fetch.Workers = getEnvIntOrDefault("FETCH_WORKERS", c.Fetch.Workers)
	c.Limits.Total = getEnvIntOrDefault("MAX_TOTAL_ARTICLES", c.Limits.Total)
	c.Dedup.SimilarityThreshold = getEnvFloatOrDefault("DEDUP_SIMILARITY_THRESHOLD", c.Dedup.SimilarityThreshold)

	if policy := os.Getenv("SUMMARY_FAILURE_POLICY"); policy != "" {
		c.Summarize.FailurePolicy = policy
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func (c *Config) Validate() error {
	if len(c.Sources) == 0 {
		return fmt.Errorf("at least one source must be configured")
	}
	for i, s := range c.Sources {
		if s.Name == "" {
			return fmt.Errorf("source %d has no name", i)
		}
		switch s.Kind {
		case "search":
			if s.Query == "" {
				return fmt.Errorf("search source %q has no query", s.Name)
			}
		case "rss":
			if s.URL == "" {
				return fmt.Errorf("rss source %q has no url", s.Name)
			}
		default:
			return fmt.Errorf("source %q has unknown kind %q", s.Name, s.Kind)
		}
		if s.Category != "" && !categoryKnown(s.Category) {
			return fmt.Errorf("source %q pins unknown category %q", s.Name, s.Category)
		}
	}
	if c.Dedup.SimilarityThreshold <= 0 || c.Dedup.SimilarityThreshold > 1 {
		return fmt.Errorf("dedup similarity threshold %v out of (0, 1]", c.Dedup.SimilarityThreshold)
	}
	if c.Summarize.FailurePolicy != "keep" && c.Summarize.FailurePolicy != "drop" {
		return fmt.Errorf("summarize failure_policy must be 'keep' or 'drop', got %q", c.Summarize.FailurePolicy)
	}
	return nil
}

func categoryKnown(s string) bool {
	switch s {
	case "domestic", "international", "business", "personalized", "exclusive", "general":
		return true
	}
	return false
}

// Window returns the recency window as a duration.
func (c *Config) Window() time.Duration {
	return time.Duration(c.RecencyWindowHours) * time.Hour
}

// RunBudget returns the wall-clock budget for a whole run.
func (c *Config) RunBudget() time.Duration {
	return time.Duration(c.RunBudgetSecs) * time.Second
}

// RequestTimeout returns the per-request timeout for outbound HTTP calls.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Fetch.RequestTimeoutSecs) * time.Second
}

// Location returns the timezone all article dates are normalized to.
func (c *Config) Location() *time.Location {
	if c.loc != nil {
		return c.loc
	}
	return time.UTC
}
