package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/ppiankov/floodclaims/internal/cache"
	"github.com/ppiankov/floodclaims/internal/model"
)

// TableSpec describes an input table file
type TableSpec struct {
	Name     string
	File     string   // relative to the loader directory unless absolute
	Key      []string // identifier column(s)
	Required []string // columns that must be present in the header
	Optional bool     // absent file yields no table instead of MissingFileError
}

// InputSpecs returns the input tables described by the configuration
func InputSpecs(cfg model.DataConfig) []TableSpec {
	specs := []TableSpec{
		{Name: model.TableGages, File: cfg.Gages, Key: []string{model.ColSiteNo}, Required: model.GageColumns},
		{Name: model.TablePolicies, File: cfg.Policies, Key: []string{model.ColPolicyID}, Required: model.PolicyColumns},
		{Name: model.TableClaims, File: cfg.Claims, Key: []string{model.ColClaimID}, Required: model.ClaimColumns},
		{Name: model.TableQ100, File: cfg.Q100, Key: []string{model.ColSiteNo}, Required: model.Q100Columns},
	}
	if cfg.Peaks != "" {
		specs = append(specs, TableSpec{
			Name:     model.TablePeaks,
			File:     cfg.Peaks,
			Key:      []string{model.ColSiteNo, model.ColDate},
			Required: model.PeakColumns,
			Optional: true,
		})
	}
	return specs
}

// Loader reads delimited-text tables from a directory
type Loader struct {
	dir    string
	delim  rune
	delims map[string]rune   // per-table overrides
	cache  *cache.TableCache // nil disables caching
	logger *zap.Logger
}

// NewLoader creates a loader; c may be nil
func NewLoader(dir string, delim rune, c cache.Cache, logger *zap.Logger) *Loader {
	l := &Loader{
		dir:    dir,
		delim:  delim,
		logger: logger,
	}
	if c != nil {
		l.cache = cache.NewTableCache(c)
	}
	return l
}

// WithDelimiters sets per-table delimiter overrides
func (l *Loader) WithDelimiters(delims map[string]rune) *Loader {
	l.delims = delims
	return l
}

// Load reads every table in specs. Optional tables that do not exist are
// omitted from the result.
func (l *Loader) Load(ctx context.Context, specs []TableSpec) (map[string]*model.Table, error) {
	tables := make(map[string]*model.Table, len(specs))
	for _, spec := range specs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		t, err := l.LoadTable(spec)
		if err != nil {
			var missing *model.MissingFileError
			if spec.Optional && errors.As(err, &missing) {
				l.logger.Debug("optional table absent", zap.String("table", spec.Name), zap.String("path", missing.Path))
				continue
			}
			return nil, err
		}
		tables[spec.Name] = t
	}
	return tables, nil
}

// LoadTable reads a single table
func (l *Loader) LoadTable(spec TableSpec) (*model.Table, error) {
	path := spec.File
	if !filepath.IsAbs(path) {
		path = filepath.Join(l.dir, path)
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &model.MissingFileError{Table: spec.Name, Path: path}
		}
		return nil, fmt.Errorf("stat %s table: %w", spec.Name, err)
	}
	if info.IsDir() {
		return nil, &model.FormatError{Table: spec.Name, Path: path, Reason: "is a directory"}
	}

	delim := tableDelim(l.delim, l.delims, spec.Name)

	var key string
	if l.cache != nil {
		key = cache.TableKey(path, info, delim)
		if t, ok := l.cache.Get(key); ok && l.matches(t, spec) {
			l.logger.Debug("table cache hit", zap.String("table", spec.Name), zap.Int("rows", t.Len()))
			return t, nil
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s table: %w", spec.Name, err)
	}
	defer func() { _ = f.Close() }()

	t, err := decodeTable(f, spec, path, delim)
	if err != nil {
		return nil, err
	}

	l.logger.Debug("table loaded",
		zap.String("table", spec.Name),
		zap.String("path", path),
		zap.Int("rows", t.Len()),
		zap.Int("columns", len(t.Columns)))

	if l.cache != nil {
		if err := l.cache.Set(key, t); err != nil {
			l.logger.Warn("table cache write failed", zap.String("table", spec.Name), zap.Error(err))
		}
	}

	return t, nil
}

// matches guards against cached tables parsed under a different TableSpec
func (l *Loader) matches(t *model.Table, spec TableSpec) bool {
	if t.Name != spec.Name || len(t.Key) != len(spec.Key) {
		return false
	}
	for i := range spec.Key {
		if t.Key[i] != spec.Key[i] {
			return false
		}
	}
	for _, c := range spec.Required {
		if !t.Has(c) {
			return false
		}
	}
	return true
}
