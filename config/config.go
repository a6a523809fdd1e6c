// Package config loads pipeline configuration with the precedence
// environment variables > config file > defaults.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/firas-apify/apify-facebook-ads-intel/creative"
)

// FetchConfig holds fetcher pacing settings as they appear in the file.
type FetchConfig struct {
	// Minimum inter-request delay, e.g. "2s".
	MinInterval string `yaml:"min_interval"`
	MaxRetries  int    `yaml:"max_retries"`
	MaxPages    int    `yaml:"max_pages"`
}

// Config is the full pipeline configuration.
type Config struct {
	StatePath  string `yaml:"state_path"`
	OutputPath string `yaml:"output_path"`

	Geo    string `yaml:"geo"`
	Status string `yaml:"status"` // active, inactive, or all

	AdvertiserIDs []string `yaml:"advertiser_ids"`
	SearchTerms   []string `yaml:"search_terms"`

	// Optional bounds on when monitored ads started running, YYYY-MM-DD.
	StartDate string `yaml:"start_date"`
	EndDate   string `yaml:"end_date"`

	ClassifyAds bool `yaml:"classify_ads"`

	Fetch FetchConfig `yaml:"fetch"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		StatePath:   "adsintel.db",
		OutputPath:  "creatives.ndjson",
		Geo:         "US",
		Status:      string(creative.StatusActive),
		ClassifyAds: true,
		Fetch: FetchConfig{
			MinInterval: "2s",
			MaxRetries:  3,
			MaxPages:    50,
		},
	}
}

// Load reads configuration from the given YAML file, layered over the
// defaults. A missing file is not an error; the defaults apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// ApplyEnv applies environment variable overrides, the highest-priority
// configuration layer.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("ADSINTEL_STATE_PATH"); v != "" {
		c.StatePath = v
	}
	if v := os.Getenv("ADSINTEL_OUTPUT_PATH"); v != "" {
		c.OutputPath = v
	}
	if v := os.Getenv("ADSINTEL_GEO"); v != "" {
		c.Geo = v
	}
	if v := os.Getenv("ADSINTEL_STATUS"); v != "" {
		c.Status = v
	}
}

// Validate checks the configuration for values the pipeline can't run
// with.
func (c *Config) Validate() error {
	switch creative.Status(c.Status) {
	case creative.StatusActive, creative.StatusInactive, creative.StatusAll:
	default:
		return fmt.Errorf("status must be active, inactive, or all (got %q)", c.Status)
	}

	if len(c.AdvertiserIDs) == 0 && len(c.SearchTerms) == 0 {
		return fmt.Errorf("at least one advertiser ID or search term is required")
	}

	if c.Fetch.MinInterval != "" {
		if _, err := time.ParseDuration(c.Fetch.MinInterval); err != nil {
			return fmt.Errorf("invalid fetch.min_interval: %w", err)
		}
	}

	for _, field := range []struct{ name, value string }{
		{"start_date", c.StartDate},
		{"end_date", c.EndDate},
	} {
		if field.value == "" {
			continue
		}
		if _, err := time.Parse("2006-01-02", field.value); err != nil {
			return fmt.Errorf("invalid %s: %w", field.name, err)
		}
	}

	return nil
}

// MinInterval returns the parsed inter-request delay.
func (c *Config) MinInterval() time.Duration {
	d, err := time.ParseDuration(c.Fetch.MinInterval)
	if err != nil {
		return 2 * time.Second
	}
	return d
}

// Queries expands the configured targets into one query per (target,
// geo) partition: advertiser IDs first, then search terms.
func (c *Config) Queries() []creative.Query {
	var start, end *time.Time
	if t, err := time.Parse("2006-01-02", c.StartDate); err == nil {
		start = &t
	}
	if t, err := time.Parse("2006-01-02", c.EndDate); err == nil {
		end = &t
	}

	queries := make([]creative.Query, 0, len(c.AdvertiserIDs)+len(c.SearchTerms))
	for _, id := range c.AdvertiserIDs {
		queries = append(queries, creative.Query{
			Target:    id,
			Kind:      creative.TargetAdvertiser,
			Geo:       c.Geo,
			Status:    creative.Status(c.Status),
			StartDate: start,
			EndDate:   end,
		})
	}
	for _, term := range c.SearchTerms {
		queries = append(queries, creative.Query{
			Target:    term,
			Kind:      creative.TargetKeyword,
			Geo:       c.Geo,
			Status:    creative.Status(c.Status),
			StartDate: start,
			EndDate:   end,
		})
	}
	return queries
}
