// Package idgen generates pipeline run identifiers.
package idgen

import (
	"fmt"
	"time"

	nanoid "github.com/matoous/go-nanoid/v2"
)

const (
	// RunPrefix starts every run id
	RunPrefix = "run-"
	// SuffixLength is the number of random characters after the timestamp
	SuffixLength = 8

	stampLayout = "20060102T150405Z"
	alphabet    = "0123456789abcdefghijklmnopqrstuvwxyz"
)

// RunID returns an id such as run-20240927T101500Z-k3v9x0qa. Ids sort by
// start time (UTC, second precision).
func RunID(started time.Time) (string, error) {
	suffix, err := nanoid.Generate(alphabet, SuffixLength)
	if err != nil {
		return "", fmt.Errorf("generate run id: %w", err)
	}
	return RunPrefix + started.UTC().Format(stampLayout) + "-" + suffix, nil
}
