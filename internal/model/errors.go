package model

import "fmt"

// MissingFileError is returned when an expected input table file is absent
type MissingFileError struct {
	Table string
	Path  string
}

func (e *MissingFileError) Error() string {
	return fmt.Sprintf("missing %s table: %s", e.Table, e.Path)
}

// FormatError is returned when a table file cannot be read as tabular data
type FormatError struct {
	Table  string
	Path   string
	Line   int // 0 when the problem is not tied to a line
	Reason string
}

func (e *FormatError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("malformed %s table %s (line %d): %s", e.Table, e.Path, e.Line, e.Reason)
	}
	return fmt.Sprintf("malformed %s table %s: %s", e.Table, e.Path, e.Reason)
}

// ReferentialGapError describes a record whose reference chain cannot be
// resolved. It excludes the record; it never aborts a run.
type ReferentialGapError struct {
	Table  string `json:"table"`
	Key    string `json:"key"`
	Ref    string `json:"ref"`     // referenced table
	RefKey string `json:"ref_key"` // unresolved key in the referenced table
}

func (e *ReferentialGapError) Error() string {
	return fmt.Sprintf("%s %q: no %s entry for %q", e.Table, e.Key, e.Ref, e.RefKey)
}

// WriteError is returned when an output table cannot be persisted
type WriteError struct {
	Table string
	Path  string
	Err   error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s table to %s: %v", e.Table, e.Path, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}
