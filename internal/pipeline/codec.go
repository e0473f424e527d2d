package pipeline

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ppiankov/floodclaims/internal/model"
)

// decodeTable parses delimited text into a table. The first record is the
// header; column names are trimmed and a UTF-8 BOM is dropped.
func decodeTable(r io.Reader, spec TableSpec, path string, delim rune) (*model.Table, error) {
	cr := csv.NewReader(r)
	cr.Comma = delim
	cr.ReuseRecord = false

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, &model.FormatError{Table: spec.Name, Path: path, Reason: "missing header"}
	}
	if err != nil {
		return nil, csvFormatError(spec, path, err)
	}

	columns := make([]string, len(header))
	seen := make(map[string]bool, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		if h == "" {
			return nil, &model.FormatError{Table: spec.Name, Path: path, Line: 1, Reason: fmt.Sprintf("empty column name at position %d", i+1)}
		}
		if seen[h] {
			return nil, &model.FormatError{Table: spec.Name, Path: path, Line: 1, Reason: fmt.Sprintf("duplicate column %q", h)}
		}
		seen[h] = true
		columns[i] = h
	}

	for _, c := range append(append([]string(nil), spec.Key...), spec.Required...) {
		if !seen[c] {
			return nil, &model.FormatError{Table: spec.Name, Path: path, Line: 1, Reason: fmt.Sprintf("missing column %q", c)}
		}
	}

	t := model.NewTable(spec.Name, spec.Key, columns)
	keys := make(map[string]int)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, csvFormatError(spec, path, err)
		}
		line, _ := cr.FieldPos(0)

		row := model.Row(rec)
		key := t.KeyOf(row)
		if hasEmptyKeyPart(t, row) {
			return nil, &model.FormatError{Table: spec.Name, Path: path, Line: line, Reason: "empty key"}
		}
		if prev, dup := keys[key]; dup {
			return nil, &model.FormatError{Table: spec.Name, Path: path, Line: line, Reason: fmt.Sprintf("duplicate key %q (first at line %d)", key, prev)}
		}
		keys[key] = line
		t.Append(row)
	}

	return t, nil
}

func hasEmptyKeyPart(t *model.Table, r model.Row) bool {
	for _, k := range t.Key {
		if t.Value(r, k) == "" {
			return true
		}
	}
	return false
}

func csvFormatError(spec TableSpec, path string, err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return &model.FormatError{Table: spec.Name, Path: path, Line: pe.Line, Reason: pe.Err.Error()}
	}
	return &model.FormatError{Table: spec.Name, Path: path, Reason: err.Error()}
}

// tableDelim picks the delimiter for a table: its own override, then the
// override of the input it derives from, then def
func tableDelim(def rune, overrides map[string]rune, table string) rune {
	if r, ok := overrides[table]; ok {
		return r
	}
	if r, ok := overrides[model.SourceTable(table)]; ok {
		return r
	}
	return def
}

// encodeTable renders a table as delimited text with a header row
func encodeTable(t *model.Table, delim rune) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = delim

	if err := w.Write(t.Columns); err != nil {
		return nil, err
	}
	for _, r := range t.Rows {
		if err := w.Write(r); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
