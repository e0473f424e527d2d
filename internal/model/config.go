package model

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"
)

// Config is the complete floodclaims configuration
type Config struct {
	Data   DataConfig   `yaml:"data" mapstructure:"data"`
	Output OutputConfig `yaml:"output" mapstructure:"output"`
	Rules  string       `yaml:"rules" mapstructure:"rules"` // TOML rules file; empty uses built-in defaults
	Cache  CacheConfig  `yaml:"cache" mapstructure:"cache"`
	Mirror MirrorConfig `yaml:"mirror" mapstructure:"mirror"`
	Events EventsConfig `yaml:"events" mapstructure:"events"`
}

// DataConfig locates the input tables
type DataConfig struct {
	Dir       string `yaml:"dir" mapstructure:"dir"`
	Gages     string `yaml:"gages" mapstructure:"gages"`
	Policies  string `yaml:"policies" mapstructure:"policies"`
	Claims    string `yaml:"claims" mapstructure:"claims"`
	Q100      string `yaml:"q100" mapstructure:"q100"`
	Peaks     string `yaml:"peaks" mapstructure:"peaks"` // optional
	Delimiter string `yaml:"delimiter" mapstructure:"delimiter"`

	// Delimiters overrides Delimiter per input table, e.g. claims: ";".
	// Output tables follow the input they are derived from.
	Delimiters map[string]string `yaml:"delimiters,omitempty" mapstructure:"delimiters"`
}

// OutputConfig controls where results go
type OutputConfig struct {
	Dir      string `yaml:"dir" mapstructure:"dir"`
	Report   string `yaml:"report" mapstructure:"report"`     // JSON run report, relative to Dir
	Markdown string `yaml:"markdown" mapstructure:"markdown"` // optional Markdown run report
	Verbose  bool   `yaml:"verbose" mapstructure:"verbose"`
}

// CacheConfig controls the parsed-table cache
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// MirrorConfig configures optional copies of the output tables
type MirrorConfig struct {
	S3     S3Config     `yaml:"s3" mapstructure:"s3"`
	SQLite SQLiteConfig `yaml:"sqlite" mapstructure:"sqlite"`
}

// S3Config enables the S3 mirror when Bucket is set
type S3Config struct {
	Bucket            string  `yaml:"bucket" mapstructure:"bucket"`
	Prefix            string  `yaml:"prefix" mapstructure:"prefix"`
	Region            string  `yaml:"region" mapstructure:"region"`
	Endpoint          string  `yaml:"endpoint" mapstructure:"endpoint"` // path-style endpoint for MinIO and similar
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int     `yaml:"burst" mapstructure:"burst"`
	HTTPProxy         string  `yaml:"http_proxy" mapstructure:"http_proxy"`
	HTTPSProxy        string  `yaml:"https_proxy" mapstructure:"https_proxy"`
	NoProxy           string  `yaml:"no_proxy" mapstructure:"no_proxy"`
}

// SQLiteConfig enables the SQLite mirror when Path is set
type SQLiteConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// EventsConfig tunes gage/claim event matching
type EventsConfig struct {
	RadiusKm float64 `yaml:"radius_km" mapstructure:"radius_km"`
	Workers  int     `yaml:"workers" mapstructure:"workers"`
}

// DefaultConfig returns the built-in configuration
func DefaultConfig() *Config {
	cacheDir := filepath.Join(os.TempDir(), "floodclaims-cache")
	if home, err := os.UserHomeDir(); err == nil {
		cacheDir = filepath.Join(home, ".floodclaims", "cache")
	}

	return &Config{
		Data: DataConfig{
			Dir:       "data",
			Gages:     "gages.csv",
			Policies:  "policies.csv",
			Claims:    "claims.csv",
			Q100:      "q100.csv",
			Peaks:     "peaks.csv",
			Delimiter: ",",
		},
		Output: OutputConfig{
			Dir:    filepath.Join("data", "outputs"),
			Report: "report.json",
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       cacheDir,
			MemoryTTL: 10 * time.Minute,
			DiskTTL:   7 * 24 * time.Hour,
		},
		Mirror: MirrorConfig{
			S3: S3Config{
				Prefix:            "floodclaims/",
				Region:            "us-east-1",
				RequestsPerSecond: 5,
				Burst:             2,
			},
		},
		Events: EventsConfig{
			RadiusKm: 50,
			Workers:  4,
		},
	}
}

// Delim returns the configured default field delimiter
func (c *Config) Delim() (rune, error) {
	return parseDelim(c.Data.Delimiter)
}

// TableDelimiters returns the per-table delimiter overrides
func (c *Config) TableDelimiters() (map[string]rune, error) {
	out := make(map[string]rune, len(c.Data.Delimiters))
	for table, d := range c.Data.Delimiters {
		r, err := parseDelim(d)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", table, err)
		}
		out[table] = r
	}
	return out, nil
}

func parseDelim(d string) (rune, error) {
	if d == `\t` || d == "tab" {
		return '\t', nil
	}
	if utf8.RuneCountInString(d) != 1 {
		return 0, fmt.Errorf("delimiter must be a single character, got %q", d)
	}
	r, _ := utf8.DecodeRuneInString(d)
	if r == '"' || r == '\r' || r == '\n' {
		return 0, fmt.Errorf("invalid delimiter %q", d)
	}
	return r, nil
}
