// Package screen decides which gages are kept and which policies and claims
// are good. Rows are only included or excluded, never modified.
package screen

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/ppiankov/floodclaims/internal/geo"
	"github.com/ppiankov/floodclaims/internal/model"
	"github.com/ppiankov/floodclaims/internal/rules"
)

// Result holds the retained subsets and why the rest were dropped
type Result struct {
	Gages      *model.Table
	Policies   *model.Table
	Claims     *model.Table
	Exclusions map[model.ExclusionReason]int
}

// Screener applies the gage, policy and claim rules in dependency order
type Screener struct {
	rules  *rules.Rules
	logger *zap.Logger
}

// NewScreener creates a screener; nil rules mean the defaults
func NewScreener(r *rules.Rules, logger *zap.Logger) *Screener {
	if r == nil {
		r = rules.Default()
	}
	return &Screener{rules: r, logger: logger}
}

// Screen filters gages, then policies against kept gages, then claims
// against good policies.
func (s *Screener) Screen(gages, policies, claims *model.Table) (*Result, error) {
	if err := requireFields(policies, s.rules.Policy.RequiredFields); err != nil {
		return nil, err
	}
	if err := requireFields(claims, s.rules.Claim.RequiredFields); err != nil {
		return nil, err
	}

	res := &Result{Exclusions: make(map[model.ExclusionReason]int)}
	exclude := func(reason model.ExclusionReason, table, key string) {
		res.Exclusions[reason]++
		s.logger.Debug("row excluded", zap.String("table", table), zap.String("key", key), zap.String("reason", string(reason)))
	}

	kept := make(map[string]model.Gage)
	res.Gages = gages.Select(model.TableKeptGages, func(r model.Row) bool {
		g, reason := s.screenGage(gages, r)
		if reason != "" {
			exclude(reason, gages.Name, gages.KeyOf(r))
			return false
		}
		kept[g.SiteNo] = g
		return true
	})

	good := make(map[string]bool)
	res.Policies = policies.Select(model.TableGoodPolicies, func(r model.Row) bool {
		reason := s.screenPolicy(policies, r, kept)
		if reason != "" {
			exclude(reason, policies.Name, policies.KeyOf(r))
			return false
		}
		good[policies.KeyOf(r)] = true
		return true
	})

	res.Claims = claims.Select(model.TableGoodClaims, func(r model.Row) bool {
		reason := s.screenClaim(claims, r, good)
		if reason != "" {
			exclude(reason, claims.Name, claims.KeyOf(r))
			return false
		}
		return true
	})

	s.logger.Info("screening complete",
		zap.Int("gages_kept", res.Gages.Len()), zap.Int("gages_in", gages.Len()),
		zap.Int("policies_good", res.Policies.Len()), zap.Int("policies_in", policies.Len()),
		zap.Int("claims_good", res.Claims.Len()), zap.Int("claims_in", claims.Len()))

	return res, nil
}

func (s *Screener) screenGage(t *model.Table, r model.Row) (model.Gage, model.ExclusionReason) {
	g, err := model.GageFromRow(t, r)
	if err != nil {
		return g, model.ReasonGageMalformed
	}
	rr := s.rules.Gage

	if !g.HasSQMI || g.SQMI <= rr.MinSQMI {
		return g, model.ReasonGageDrainageArea
	}
	if !g.HasAbsDiff || g.AbsDiff > rr.MaxAbsDiff {
		return g, model.ReasonGageAbsDiff
	}
	if g.HasCoords && !model.ValidCoordinates(g.Lat, g.Lon) {
		return g, model.ReasonGageCoordinates
	}
	if rr.RequireBBox && (g.BBox == nil || !g.BBox.Valid()) {
		return g, model.ReasonGageBoundingBox
	}
	if _, _, ok := g.Location(); !ok {
		return g, model.ReasonGageCoordinates
	}
	return g, ""
}

func (s *Screener) screenPolicy(t *model.Table, r model.Row, kept map[string]model.Gage) model.ExclusionReason {
	rr := s.rules.Policy
	for _, f := range rr.RequiredFields {
		if t.Value(r, f) == "" {
			return model.ReasonPolicyField
		}
	}

	p, err := model.PolicyFromRow(t, r)
	if err != nil {
		return model.ReasonPolicyMalformed
	}

	g, ok := kept[p.SiteNo]
	if !ok {
		return model.ReasonPolicyGage
	}
	if p.TotalCoverage() < rr.MinCoverage {
		return model.ReasonPolicyCoverage
	}
	if rr.MaxDistanceKm > 0 && p.HasCoords {
		if !model.ValidCoordinates(p.Lat, p.Lon) {
			return model.ReasonPolicyMalformed
		}
		glat, glon, _ := g.Location()
		if geo.DistanceKm(p.Lat, p.Lon, glat, glon) > rr.MaxDistanceKm {
			return model.ReasonPolicyDistance
		}
	}
	return ""
}

func (s *Screener) screenClaim(t *model.Table, r model.Row, good map[string]bool) model.ExclusionReason {
	rr := s.rules.Claim
	for _, f := range rr.RequiredFields {
		if t.Value(r, f) == "" {
			return model.ReasonClaimField
		}
	}

	c, err := model.ClaimFromRow(t, r)
	if err != nil {
		return model.ReasonClaimMalformed
	}
	if !good[c.PolicyID] {
		return model.ReasonClaimPolicy
	}
	if c.TotalPaid() < rr.MinTotalPaid {
		return model.ReasonClaimPaid
	}
	return ""
}

// requireFields rejects rules naming columns the table does not have
func requireFields(t *model.Table, fields []string) error {
	for _, f := range fields {
		if !t.Has(f) {
			return &model.FormatError{
				Table:  t.Name,
				Reason: fmt.Sprintf("rules require column %q", f),
			}
		}
	}
	return nil
}
