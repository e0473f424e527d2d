package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ppiankov/floodclaims/internal/cache"
	"github.com/ppiankov/floodclaims/internal/model"
	"github.com/ppiankov/floodclaims/internal/pipeline"
	"github.com/ppiankov/floodclaims/internal/rules"
)

// Version is set at build time
var Version = "v0.3.0"

var (
	cfgFile string
	verbose bool
	logger  = zap.NewNop()
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "floodclaims",
	Short: "floodclaims - screen and analyze flood insurance claims against gage records",
	Long: `floodclaims joins stream gage stations, flood insurance policies and paid
claims, keeps the gages and policies that pass screening rules, and relates
each claim to its gage's 100-year reference discharge (Q100).

Inputs and outputs are delimited-text tables. Screening thresholds live in a
TOML rules file; everything else is configured in YAML, FLOODCLAIMS_*
environment variables or flags.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		l, err := config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Display the version number of floodclaims.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("floodclaims %s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.floodclaims/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")
	rootCmd.PersistentFlags().String("data-dir", "", "directory holding the input tables")
	rootCmd.PersistentFlags().String("output-dir", "", "directory for output tables and reports")
	rootCmd.PersistentFlags().String("delimiter", "", `field delimiter ("," by default, "tab" for TSV)`)
	rootCmd.PersistentFlags().String("rules", "", "TOML rules file (default: built-in rules)")

	// Bind flags to viper
	_ = viper.BindPFlag("output.verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("data.dir", rootCmd.PersistentFlags().Lookup("data-dir"))
	_ = viper.BindPFlag("output.dir", rootCmd.PersistentFlags().Lookup("output-dir"))
	_ = viper.BindPFlag("data.delimiter", rootCmd.PersistentFlags().Lookup("delimiter"))
	_ = viper.BindPFlag("rules", rootCmd.PersistentFlags().Lookup("rules"))

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}

		// Search for config in home directory
		viper.AddConfigPath(filepath.Join(home, ".floodclaims"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	setDefaults(model.DefaultConfig())

	// Read in environment variables that match FLOODCLAIMS_* (data.dir -> FLOODCLAIMS_DATA_DIR)
	viper.SetEnvPrefix("FLOODCLAIMS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// If a config file is found, read it in
	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	} else if err != nil && cfgFile != "" {
		fmt.Fprintf(os.Stderr, "Warning: cannot read config file %s: %v\n", cfgFile, err)
	}
}

// setDefaults registers every key so environment variables can override it
func setDefaults(cfg *model.Config) {
	viper.SetDefault("data.dir", cfg.Data.Dir)
	viper.SetDefault("data.gages", cfg.Data.Gages)
	viper.SetDefault("data.policies", cfg.Data.Policies)
	viper.SetDefault("data.claims", cfg.Data.Claims)
	viper.SetDefault("data.q100", cfg.Data.Q100)
	viper.SetDefault("data.peaks", cfg.Data.Peaks)
	viper.SetDefault("data.delimiter", cfg.Data.Delimiter)
	viper.SetDefault("output.dir", cfg.Output.Dir)
	viper.SetDefault("output.report", cfg.Output.Report)
	viper.SetDefault("output.markdown", cfg.Output.Markdown)
	viper.SetDefault("output.verbose", cfg.Output.Verbose)
	viper.SetDefault("rules", cfg.Rules)
	viper.SetDefault("cache.enabled", cfg.Cache.Enabled)
	viper.SetDefault("cache.dir", cfg.Cache.Dir)
	viper.SetDefault("cache.memory_ttl", cfg.Cache.MemoryTTL)
	viper.SetDefault("cache.disk_ttl", cfg.Cache.DiskTTL)
	viper.SetDefault("mirror.s3.bucket", cfg.Mirror.S3.Bucket)
	viper.SetDefault("mirror.s3.prefix", cfg.Mirror.S3.Prefix)
	viper.SetDefault("mirror.s3.region", cfg.Mirror.S3.Region)
	viper.SetDefault("mirror.s3.endpoint", cfg.Mirror.S3.Endpoint)
	viper.SetDefault("mirror.s3.requests_per_second", cfg.Mirror.S3.RequestsPerSecond)
	viper.SetDefault("mirror.s3.burst", cfg.Mirror.S3.Burst)
	viper.SetDefault("mirror.s3.http_proxy", cfg.Mirror.S3.HTTPProxy)
	viper.SetDefault("mirror.s3.https_proxy", cfg.Mirror.S3.HTTPSProxy)
	viper.SetDefault("mirror.s3.no_proxy", cfg.Mirror.S3.NoProxy)
	viper.SetDefault("mirror.sqlite.path", cfg.Mirror.SQLite.Path)
	viper.SetDefault("events.radius_km", cfg.Events.RadiusKm)
	viper.SetDefault("events.workers", cfg.Events.Workers)
}

// loadConfig merges defaults, config file, environment and flags
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse configuration: %w", err)
	}
	return cfg, nil
}

// loadRules reads the configured rules file, or returns the defaults
func loadRules(cfg *model.Config) (*rules.Rules, error) {
	if cfg.Rules == "" {
		return rules.Default(), nil
	}
	return rules.Load(cfg.Rules)
}

// newCache builds the table cache, or returns nil when disabled
func newCache(cfg *model.Config) cache.Cache {
	if !cfg.Cache.Enabled {
		return nil
	}
	return cache.NewLayeredCache(cfg.Cache.MemoryTTL, cfg.Cache.Dir, cfg.Cache.DiskTTL)
}

// tableIO builds loaders and writers that honor the configured delimiters
type tableIO struct {
	delim  rune
	delims map[string]rune
}

func newTableIO(cfg *model.Config) (*tableIO, error) {
	delim, err := cfg.Delim()
	if err != nil {
		return nil, err
	}
	delims, err := cfg.TableDelimiters()
	if err != nil {
		return nil, err
	}
	return &tableIO{delim: delim, delims: delims}, nil
}

func (t *tableIO) loader(dir string, c cache.Cache) *pipeline.Loader {
	return pipeline.NewLoader(dir, t.delim, c, logger).WithDelimiters(t.delims)
}

func (t *tableIO) writer(dir string) *pipeline.Writer {
	return pipeline.NewWriter(dir, t.delim, logger).WithDelimiters(t.delims)
}

// outputPath resolves name against the output directory
func outputPath(cfg *model.Config, name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(cfg.Output.Dir, name)
}
