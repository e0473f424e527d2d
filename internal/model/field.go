package model

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the on-disk date format
const DateLayout = "2006-01-02"

// ParseFloat parses an optional numeric field. present is false for empty
// values (including MATLAB-style "NaN" exports). Infinities are rejected.
func ParseFloat(v string) (f float64, present bool, err error) {
	v = strings.TrimSpace(v)
	if v == "" || strings.EqualFold(v, "nan") {
		return 0, false, nil
	}
	f, err = strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false, fmt.Errorf("parse %q: %w", v, err)
	}
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false, fmt.Errorf("parse %q: not a finite number", v)
	}
	return f, true, nil
}

// ParseFlag parses a 0/1 indicator field; empty means false
func ParseFlag(v string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "0", "0.0", "false", "n", "no":
		return false, nil
	case "1", "1.0", "true", "y", "yes":
		return true, nil
	}
	return false, fmt.Errorf("parse flag %q", v)
}

// ParseDate parses a date of loss. Timestamps keep the calendar date written
// in their own offset; the time part is dropped.
func ParseDate(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if len(v) > len(DateLayout) {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
		v = v[:len(DateLayout)]
	}
	t, err := time.Parse(DateLayout, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", v, err)
	}
	return t, nil
}

// FormatFloat renders a number the same way on every run
func FormatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// FormatRatio renders a ratio rounded to 6 decimals
func FormatRatio(f float64) string {
	return strconv.FormatFloat(f, 'f', 6, 64)
}

// FormatFlag renders a boolean indicator as 0/1
func FormatFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// ValidCoordinates reports whether lat/lon are inside WGS84 bounds
func ValidCoordinates(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}
