package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ppiankov/floodclaims/internal/model"
	"github.com/ppiankov/floodclaims/internal/pipeline"
	"github.com/ppiankov/floodclaims/internal/sink"
)

var (
	runTimeout time.Duration
	noCache    bool
	clearCache bool
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Screen gages, policies and claims and analyze claims against Q100",
	Long: `Run executes the full pipeline:
- Load the gage, policy, claim and Q100 tables (and peaks, when present)
- Keep gages that pass the gage rules
- Keep policies on kept gages, then claims on good policies
- Derive Q100-relative fields for each good claim
- Write kept_gages, good_policies, good_claims and analyzed_claims
- Write a JSON (and optionally Markdown) run report
- Mirror the output tables to S3 and/or SQLite when configured

Example:
  floodclaims run --data-dir ./data --output-dir ./data/outputs
  floodclaims run --rules rules.toml --markdown report.md
  floodclaims run --s3-bucket flood-archive --sqlite ./claims.db`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().DurationVar(&runTimeout, "timeout", 10*time.Minute, "overall run timeout")
	runCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the parsed-table cache")
	runCmd.Flags().BoolVar(&clearCache, "clear-cache", false, "empty the parsed-table cache before loading")
	runCmd.Flags().String("markdown", "", "also write a Markdown report (relative to the output dir)")
	runCmd.Flags().String("s3-bucket", "", "mirror output tables to this S3 bucket")
	runCmd.Flags().String("s3-prefix", "", "object key prefix for the S3 mirror")
	runCmd.Flags().String("sqlite", "", "mirror output tables to this SQLite database")

	_ = viper.BindPFlag("output.markdown", runCmd.Flags().Lookup("markdown"))
	_ = viper.BindPFlag("mirror.s3.bucket", runCmd.Flags().Lookup("s3-bucket"))
	_ = viper.BindPFlag("mirror.s3.prefix", runCmd.Flags().Lookup("s3-prefix"))
	_ = viper.BindPFlag("mirror.sqlite.path", runCmd.Flags().Lookup("sqlite"))
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if noCache {
		cfg.Cache.Enabled = false
	}

	r, err := loadRules(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), runTimeout)
	defer cancel()

	if verbose {
		fmt.Fprintf(os.Stderr, "Data:    %s\n", cfg.Data.Dir)
		fmt.Fprintf(os.Stderr, "Output:  %s\n", cfg.Output.Dir)
		fmt.Fprintf(os.Stderr, "Rules:   %s\n", rulesLabel(cfg))
		fmt.Fprintf(os.Stderr, "Cache:   %v\n", cfg.Cache.Enabled)
		fmt.Fprintln(os.Stderr)
	}

	sinks, err := openSinks(ctx, cfg)
	if err != nil {
		return err
	}

	tableCache := newCache(cfg)
	if clearCache && tableCache != nil {
		if err := tableCache.Clear(); err != nil {
			logger.Warn("clear table cache", zap.Error(err))
		}
	}

	p, err := pipeline.NewPipeline(cfg, r, tableCache, logger, sinks...)
	if err != nil {
		closeSinks(sinks)
		return err
	}
	defer func() {
		if err := p.Close(); err != nil {
			logger.Warn("close mirrors", zap.Error(err))
		}
	}()

	if verbose {
		fmt.Fprintf(os.Stderr, "⚙️  Running pipeline...\n")
	}

	result, err := p.Run(ctx)
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}

	pipeline.NewRenderer().RenderSummary(os.Stderr, result.Report)
	return nil
}

// openSinks creates the configured mirrors
func openSinks(ctx context.Context, cfg *model.Config) ([]sink.Sink, error) {
	var sinks []sink.Sink
	if cfg.Mirror.S3.Bucket != "" {
		s, err := sink.NewS3Sink(ctx, cfg.Mirror.S3)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, s)
	}
	if cfg.Mirror.SQLite.Path != "" {
		s, err := sink.NewSQLiteSink(cfg.Mirror.SQLite.Path)
		if err != nil {
			closeSinks(sinks)
			return nil, fmt.Errorf("sqlite mirror: %w", err)
		}
		sinks = append(sinks, s)
	}
	return sinks, nil
}

func closeSinks(sinks []sink.Sink) {
	for _, s := range sinks {
		_ = s.Close()
	}
}

func rulesLabel(cfg *model.Config) string {
	if cfg.Rules == "" {
		return "built-in"
	}
	return cfg.Rules
}
