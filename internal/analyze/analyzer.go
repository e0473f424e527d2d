// Package analyze computes per-claim flood metrics relative to the gage
// 100-year reference discharge, and aggregate views over claims and gages.
package analyze

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/floodclaims/internal/model"
	"github.com/ppiankov/floodclaims/internal/rules"
)

// Result is the analyzed claim table plus the claims that could not be analyzed
type Result struct {
	Claims   *model.Table
	Gaps     []model.ReferentialGapError
	Excluded map[model.ExclusionReason]int
}

// Analyzer derives q100-relative fields for claims
type Analyzer struct {
	rules  rules.AnalysisRules
	logger *zap.Logger
}

// NewAnalyzer creates an analyzer
func NewAnalyzer(r rules.AnalysisRules, logger *zap.Logger) *Analyzer {
	return &Analyzer{rules: r, logger: logger}
}

// Analyze appends the derived columns to every claim whose gage has a Q100
// reference. Claims without one are left out and reported as gaps. peaks may be nil.
func (a *Analyzer) Analyze(claims, policies, q100, peaks *model.Table) (*Result, error) {
	out := claims.Extend(model.TableAnalyzedClaims, model.DerivedColumns...)
	res := &Result{Claims: out, Excluded: make(map[model.ExclusionReason]int)}

	policyIdx := policies.Index()
	q100Idx := q100.Index()
	peakIdx, err := indexPeaks(peaks)
	if err != nil {
		return nil, err
	}

	gap := func(g model.ReferentialGapError) {
		res.Gaps = append(res.Gaps, g)
		res.Excluded[model.ReasonClaimNoReference]++
		a.logger.Debug("claim not analyzed", zap.String("claim", g.Key), zap.String("ref", g.Ref), zap.String("ref_key", g.RefKey))
	}

	for _, r := range claims.Rows {
		c, err := model.ClaimFromRow(claims, r)
		if err != nil {
			res.Excluded[model.ReasonClaimMalformed]++
			continue
		}

		prow, ok := policyIdx[c.PolicyID]
		if !ok {
			gap(model.ReferentialGapError{Table: claims.Name, Key: c.ClaimID, Ref: policies.Name, RefKey: c.PolicyID})
			continue
		}
		p, err := model.PolicyFromRow(policies, prow)
		if err != nil {
			res.Excluded[model.ReasonPolicyMalformed]++
			continue
		}

		qrow, ok := q100Idx[p.SiteNo]
		if !ok {
			gap(model.ReferentialGapError{Table: claims.Name, Key: c.ClaimID, Ref: q100.Name, RefKey: p.SiteNo})
			continue
		}
		q, ok, err := model.Q100FromRow(q100, qrow)
		if err != nil || !ok {
			gap(model.ReferentialGapError{Table: claims.Name, Key: c.ClaimID, Ref: q100.Name, RefKey: p.SiteNo})
			continue
		}

		out.Rows = append(out.Rows, out.Derive(claims, r, a.derive(c, p, q, peakIdx[p.SiteNo])))
	}

	a.logger.Info("analysis complete",
		zap.Int("claims_in", claims.Len()),
		zap.Int("claims_analyzed", out.Len()),
		zap.Int("gaps", len(res.Gaps)))

	return res, nil
}

// derive computes the derived column values for one claim
func (a *Analyzer) derive(c model.Claim, p model.Policy, q100 float64, peaks []model.Peak) map[string]string {
	total := c.TotalPaid()
	values := map[string]string{
		model.ColQ100:          model.FormatFloat(q100),
		model.ColTotalPaid:     model.FormatFloat(total),
		model.ColCoverageRatio: model.FormatRatio(0),
		model.ColPeak:          "",
		model.ColExceedance:    "",
		model.ColCausedBy100yr: model.FormatFlag(false),
	}
	if cov := p.TotalCoverage(); cov > 0 {
		values[model.ColCoverageRatio] = model.FormatRatio(total / cov)
	}

	if peak, ok := PeakNear(peaks, c.DateOfLoss, a.rules.PeakWindowDays); ok {
		ratio := peak.CFS / q100
		values[model.ColPeak] = model.FormatFloat(peak.CFS)
		values[model.ColExceedance] = model.FormatRatio(ratio)
		values[model.ColCausedBy100yr] = model.FormatFlag(ratio >= a.rules.ExceedanceThreshold)
	}
	return values
}

// indexPeaks groups peaks by site, sorted by date. Rows without a value are skipped.
func indexPeaks(peaks *model.Table) (map[string][]model.Peak, error) {
	idx := make(map[string][]model.Peak)
	if peaks == nil {
		return idx, nil
	}
	for i, r := range peaks.Rows {
		p, ok, err := model.PeakFromRow(peaks, r)
		if err != nil {
			return nil, &model.FormatError{Table: peaks.Name, Line: i + 2, Reason: err.Error()}
		}
		if ok {
			idx[p.SiteNo] = append(idx[p.SiteNo], p)
		}
	}
	for site := range idx {
		sort.Slice(idx[site], func(i, j int) bool { return idx[site][i].Date.Before(idx[site][j].Date) })
	}
	return idx, nil
}

// PeakNear returns the largest peak within windowDays of date. peaks must be
// sorted by date.
func PeakNear(peaks []model.Peak, date time.Time, windowDays int) (model.Peak, bool) {
	window := time.Duration(windowDays) * 24 * time.Hour
	from, to := date.Add(-window), date.Add(window)

	start := sort.Search(len(peaks), func(i int) bool { return !peaks[i].Date.Before(from) })
	var best model.Peak
	found := false
	for i := start; i < len(peaks) && !peaks[i].Date.After(to); i++ {
		if !found || peaks[i].CFS > best.CFS {
			best = peaks[i]
			found = true
		}
	}
	return best, found
}
