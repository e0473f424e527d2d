package worker

import (
	"context"
	"fmt"

	"github.com/ppiankov/floodclaims/internal/model"
)

// Matcher finds the claim events around a gage
type Matcher interface {
	Match(g model.Gage) model.GageEvents
}

// GageJob matches claims for one gage
type GageJob struct {
	Gage    model.Gage
	Matcher Matcher
}

// Execute executes the match
func (j *GageJob) Execute(ctx context.Context) Result {
	if err := ctx.Err(); err != nil {
		return &GageResult{SiteNo: j.Gage.SiteNo, Error: err}
	}
	ev := j.Matcher.Match(j.Gage)
	return &GageResult{SiteNo: j.Gage.SiteNo, Events: &ev}
}

// GageResult is the outcome of a GageJob
type GageResult struct {
	SiteNo string
	Events *model.GageEvents
	Error  error
}

// GetError returns the error from the result
func (r *GageResult) GetError() error {
	return r.Error
}

// BatchProcessor matches many gages concurrently
type BatchProcessor struct {
	matcher     Matcher
	concurrency int
}

// NewBatchProcessor creates a batch processor
func NewBatchProcessor(matcher Matcher, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		matcher:     matcher,
		concurrency: concurrency,
	}
}

// ProcessGages matches every gage and returns the events in input order.
// The first failure (typically cancellation) is returned as the error.
func (b *BatchProcessor) ProcessGages(ctx context.Context, gages []model.Gage) ([]model.GageEvents, error) {
	if len(gages) == 0 {
		return []model.GageEvents{}, nil
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	for _, g := range gages {
		if !pool.Submit(&GageJob{Gage: g, Matcher: b.matcher}) {
			break
		}
	}

	results := pool.Wait()
	if len(results) < len(gages) {
		return nil, fmt.Errorf("match gages: %w", context.Cause(ctx))
	}

	events := make([]model.GageEvents, 0, len(results))
	for i, r := range results {
		if r == nil {
			return nil, fmt.Errorf("match gage %s: dropped: %w", gages[i].SiteNo, context.Cause(ctx))
		}
		res := r.(*GageResult)
		if res.Error != nil {
			return nil, fmt.Errorf("match gage %s: %w", res.SiteNo, res.Error)
		}
		events = append(events, *res.Events)
	}
	return events, nil
}
