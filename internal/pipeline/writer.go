package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/ppiankov/floodclaims/internal/model"
)

// Writer persists tables as delimited-text files, one file per table
type Writer struct {
	dir    string
	delim  rune
	delims map[string]rune // per-table overrides
	logger *zap.Logger

	rename func(oldpath, newpath string) error
}

// NewWriter creates a writer for dir
func NewWriter(dir string, delim rune, logger *zap.Logger) *Writer {
	return &Writer{dir: dir, delim: delim, logger: logger, rename: os.Rename}
}

// WithDelimiters sets per-table delimiter overrides. Derived tables fall
// back to the override of the input they come from.
func (w *Writer) WithDelimiters(delims map[string]rune) *Writer {
	w.delims = delims
	return w
}

// Path returns the file a table is written to
func (w *Writer) Path(t *model.Table) string {
	return filepath.Join(w.dir, t.Name+".csv")
}

// stagedFile is a table encoded into a temp file next to its destination
type stagedFile struct {
	table  string
	path   string
	tmp    string
	backup string // previous destination contents, moved aside on commit
}

// Write persists every table as a set and returns the written paths in
// order. All tables are staged to temp files first; destinations are only
// replaced once every table staged cleanly. If a replacement fails the
// tables already replaced are restored, so the directory holds either the
// old set or the new one.
func (w *Writer) Write(ctx context.Context, tables ...*model.Table) ([]string, error) {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return nil, &model.WriteError{Table: "*", Path: w.dir, Err: err}
	}
	return w.writeSet(ctx, tables)
}

// WriteTable writes one table atomically: the data goes to a temp file in
// the same directory, which is then renamed over the destination.
func (w *Writer) WriteTable(t *model.Table) (string, error) {
	paths, err := w.writeSet(context.Background(), []*model.Table{t})
	if err != nil {
		return "", err
	}
	return paths[0], nil
}

func (w *Writer) writeSet(ctx context.Context, tables []*model.Table) (paths []string, err error) {
	staged := make([]*stagedFile, 0, len(tables))
	defer func() {
		if err != nil {
			for _, s := range staged {
				_ = os.Remove(s.tmp)
			}
		}
	}()

	for _, t := range tables {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s, err := w.stage(t)
		if err != nil {
			return nil, err
		}
		staged = append(staged, s)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := w.commit(staged); err != nil {
		return nil, err
	}

	paths = make([]string, 0, len(staged))
	for i, s := range staged {
		paths = append(paths, s.path)
		w.logger.Debug("table written", zap.String("table", s.table), zap.String("path", s.path), zap.Int("rows", tables[i].Len()))
	}
	return paths, nil
}

// Encode renders a table in the writer's format without touching disk
func (w *Writer) Encode(t *model.Table) ([]byte, error) {
	return encodeTable(t, tableDelim(w.delim, w.delims, t.Name))
}

func (w *Writer) stage(t *model.Table) (*stagedFile, error) {
	path := w.Path(t)

	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return nil, &model.WriteError{Table: t.Name, Path: path, Err: errors.New("destination is a directory")}
	}

	data, err := w.Encode(t)
	if err != nil {
		return nil, &model.WriteError{Table: t.Name, Path: path, Err: fmt.Errorf("encode: %w", err)}
	}

	tmp, err := writeTemp(path, data)
	if err != nil {
		return nil, &model.WriteError{Table: t.Name, Path: path, Err: err}
	}
	return &stagedFile{table: t.Name, path: path, tmp: tmp}, nil
}

// commit moves every staged file into place, keeping the previous
// destination aside until the whole set is in. On failure the files
// already moved are rolled back.
func (w *Writer) commit(staged []*stagedFile) error {
	for i, s := range staged {
		if err := w.replace(s); err != nil {
			for j := i; j >= 0; j-- {
				w.restore(staged[j], j < i)
			}
			return &model.WriteError{Table: s.table, Path: s.path, Err: err}
		}
	}

	for _, s := range staged {
		if s.backup != "" {
			if err := os.Remove(s.backup); err != nil {
				w.logger.Warn("remove backup", zap.String("path", s.backup), zap.Error(err))
			}
		}
	}
	return nil
}

func (w *Writer) replace(s *stagedFile) error {
	if _, err := os.Lstat(s.path); err == nil {
		bak, err := os.CreateTemp(filepath.Dir(s.path), "."+filepath.Base(s.path)+".bak-*")
		if err != nil {
			return fmt.Errorf("create backup: %w", err)
		}
		_ = bak.Close()
		if err := w.rename(s.path, bak.Name()); err != nil {
			_ = os.Remove(bak.Name())
			return fmt.Errorf("move previous file aside: %w", err)
		}
		s.backup = bak.Name()
	}

	if err := w.rename(s.tmp, s.path); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

// restore undoes replace. placed reports whether the staged file reached
// its destination.
func (w *Writer) restore(s *stagedFile, placed bool) {
	if s.backup == "" {
		if placed {
			_ = os.Remove(s.path)
		}
		return
	}
	if err := os.Rename(s.backup, s.path); err != nil {
		w.logger.Error("restore previous file", zap.String("path", s.path), zap.String("backup", s.backup), zap.Error(err))
		return
	}
	s.backup = ""
}

// writeTemp writes data to a synced temp file beside path and returns its name
func writeTemp(path string, data []byte) (name string, err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("sync temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}
	if err = os.Chmod(tmp.Name(), 0644); err != nil {
		return "", fmt.Errorf("chmod temp file: %w", err)
	}
	return tmp.Name(), nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := writeTemp(path, data)
	if err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}
