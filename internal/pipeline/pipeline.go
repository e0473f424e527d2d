package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/floodclaims/internal/analyze"
	"github.com/ppiankov/floodclaims/internal/cache"
	"github.com/ppiankov/floodclaims/internal/idgen"
	"github.com/ppiankov/floodclaims/internal/model"
	"github.com/ppiankov/floodclaims/internal/rules"
	"github.com/ppiankov/floodclaims/internal/screen"
	"github.com/ppiankov/floodclaims/internal/sink"
)

// Pipeline orchestrates a complete run: load, screen, analyze, write, mirror
type Pipeline struct {
	loader   *Loader
	screener *screen.Screener
	analyzer *analyze.Analyzer
	writer   *Writer
	renderer *Renderer
	sinks    []sink.Sink
	config   *model.Config
	logger   *zap.Logger
	now      func() time.Time
}

// NewPipeline creates a pipeline. r may be nil for the default rules, c may
// be nil to disable the table cache.
func NewPipeline(cfg *model.Config, r *rules.Rules, c cache.Cache, logger *zap.Logger, sinks ...sink.Sink) (*Pipeline, error) {
	delim, err := cfg.Delim()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	delims, err := cfg.TableDelimiters()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if r == nil {
		r = rules.Default()
	}

	return &Pipeline{
		loader:   NewLoader(cfg.Data.Dir, delim, c, logger.Named("loader")).WithDelimiters(delims),
		screener: screen.NewScreener(r, logger.Named("screen")),
		analyzer: analyze.NewAnalyzer(r.Analysis, logger.Named("analyze")),
		writer:   NewWriter(cfg.Output.Dir, delim, logger.Named("writer")).WithDelimiters(delims),
		renderer: NewRenderer(),
		sinks:    sinks,
		config:   cfg,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// RunResult contains the output tables and the run report
type RunResult struct {
	Report   *model.Report
	Gages    *model.Table
	Policies *model.Table
	Claims   *model.Table
	Analyzed *model.Table
}

// Tables returns the output tables in write order
func (r *RunResult) Tables() []*model.Table {
	return []*model.Table{r.Gages, r.Policies, r.Claims, r.Analyzed}
}

// Run executes the pipeline. Nothing is written unless loading, screening
// and analysis all succeed.
func (p *Pipeline) Run(ctx context.Context) (*RunResult, error) {
	started := p.now().UTC()
	runID, err := idgen.RunID(started)
	if err != nil {
		return nil, err
	}
	logger := p.logger.With(zap.String("run_id", runID))

	// 1. Load
	tables, err := p.loader.Load(ctx, InputSpecs(p.config.Data))
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}

	// 2. Screen
	screened, err := p.screener.Screen(tables[model.TableGages], tables[model.TablePolicies], tables[model.TableClaims])
	if err != nil {
		return nil, fmt.Errorf("screen: %w", err)
	}

	// 3. Analyze
	analyzed, err := p.analyzer.Analyze(screened.Claims, screened.Policies, tables[model.TableQ100], tables[model.TablePeaks])
	if err != nil {
		return nil, fmt.Errorf("analyze: %w", err)
	}

	result := &RunResult{
		Gages:    screened.Gages,
		Policies: screened.Policies,
		Claims:   screened.Claims,
		Analyzed: analyzed.Claims,
	}

	// 4. Write
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	files, err := p.writer.Write(ctx, result.Tables()...)
	if err != nil {
		return nil, fmt.Errorf("write: %w", err)
	}

	// 5. Mirror
	mirrors, err := p.mirror(ctx, runID, result.Tables())
	if err != nil {
		return nil, fmt.Errorf("mirror: %w", err)
	}

	report := &model.Report{
		RunID:      runID,
		StartedAt:  started,
		DataDir:    p.config.Data.Dir,
		OutputDir:  p.config.Output.Dir,
		Inputs:     make(map[string]int, len(tables)),
		Outputs:    make(map[string]int, 4),
		Exclusions: make(map[model.ExclusionReason]int),
		GapCount:   len(analyzed.Gaps),
		Risk:       analyze.Summarize(analyzed.Claims, screened.Policies),
		Files:      files,
		Mirrors:    mirrors,
		Rules:      p.config.Rules,
	}
	for name, t := range tables {
		report.Inputs[name] = t.Len()
	}
	for _, t := range result.Tables() {
		report.Outputs[t.Name] = t.Len()
	}
	for reason, n := range screened.Exclusions {
		report.Exclusions[reason] += n
	}
	for reason, n := range analyzed.Excluded {
		report.Exclusions[reason] += n
	}
	report.Gaps = analyzed.Gaps
	if len(report.Gaps) > model.MaxReportedGaps {
		report.Gaps = report.Gaps[:model.MaxReportedGaps]
	}
	report.FinishedAt = p.now().UTC()
	result.Report = report

	// 6. Report
	if err := p.writeReports(report); err != nil {
		return nil, err
	}

	logger.Info("run complete",
		zap.Int("kept_gages", result.Gages.Len()),
		zap.Int("good_policies", result.Policies.Len()),
		zap.Int("good_claims", result.Claims.Len()),
		zap.Int("analyzed_claims", result.Analyzed.Len()),
		zap.Int("gaps", report.GapCount),
		zap.Duration("elapsed", report.FinishedAt.Sub(started)))

	return result, nil
}

// mirror copies the tables to every sink. Sinks run concurrently; each
// receives the tables in order.
func (p *Pipeline) mirror(ctx context.Context, runID string, tables []*model.Table) ([]string, error) {
	if len(p.sinks) == 0 {
		return nil, nil
	}

	encoded := make([][]byte, len(tables))
	for i, t := range tables {
		data, err := p.writer.Encode(t)
		if err != nil {
			return nil, &model.WriteError{Table: t.Name, Path: "mirror", Err: err}
		}
		encoded[i] = data
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, s := range p.sinks {
		s := s
		g.Go(func() error {
			for i, t := range tables {
				if err := s.Put(ctx, runID, t, encoded[i]); err != nil {
					return err
				}
			}
			p.logger.Debug("tables mirrored", zap.String("sink", s.Name()), zap.Int("tables", len(tables)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	names := make([]string, len(p.sinks))
	for i, s := range p.sinks {
		names[i] = s.Name()
	}
	return names, nil
}

func (p *Pipeline) writeReports(report *model.Report) error {
	if name := p.config.Output.Report; name != "" {
		path := p.outputPath(name)
		if err := p.renderer.RenderJSON(report, path); err != nil {
			return &model.WriteError{Table: "report", Path: path, Err: err}
		}
	}
	if name := p.config.Output.Markdown; name != "" {
		path := p.outputPath(name)
		if err := p.renderer.RenderMarkdown(report, path); err != nil {
			return &model.WriteError{Table: "report", Path: path, Err: err}
		}
	}
	return nil
}

func (p *Pipeline) outputPath(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(p.config.Output.Dir, name)
}

// Close releases the mirrors
func (p *Pipeline) Close() error {
	var firstErr error
	for _, s := range p.sinks {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
