// Package sink mirrors output tables to destinations other than the local
// output directory.
package sink

import (
	"context"

	"github.com/ppiankov/floodclaims/internal/model"
)

// Sink receives a copy of each written output table. data is the table
// encoded exactly as it was written locally.
type Sink interface {
	Name() string
	Put(ctx context.Context, runID string, t *model.Table, data []byte) error
	Close() error
}
