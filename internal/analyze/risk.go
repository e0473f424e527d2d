package analyze

import (
	"github.com/ppiankov/floodclaims/internal/model"
)

// Summarize aggregates risk indicators over claims. Policy attributes
// (flood zone, state, elevation, post-FIRM) are read from the claim row when
// present, otherwise from the referenced policy. policies may be nil.
func Summarize(claims, policies *model.Table) model.RiskSummary {
	s := model.RiskSummary{
		FloodZones: make(map[string]int),
		States:     make(map[string]int),
	}
	if claims == nil {
		return s
	}

	var policyIdx map[string]model.Row
	if policies != nil {
		policyIdx = policies.Index()
	}

	// attr reads a column from the claim, falling back to its policy
	attr := func(r model.Row, col string) string {
		if claims.Has(col) {
			return claims.Value(r, col)
		}
		if policyIdx == nil {
			return ""
		}
		if prow, ok := policyIdx[claims.Value(r, model.ColPolicyID)]; ok {
			return policies.Value(prow, col)
		}
		return ""
	}

	for _, r := range claims.Rows {
		s.TotalClaims++

		if caused, _ := model.ParseFlag(claims.Value(r, model.ColCausedBy100yr)); caused {
			s.CausedBy100yr++
		}
		if zone := attr(r, model.ColFloodZone); zone != "" {
			s.FloodZones[zone]++
		}
		if state := attr(r, model.ColState); state != "" {
			s.States[state]++
		}
		if v, ok, _ := model.ParseFloat(claims.Value(r, model.ColBuildingPaid)); ok {
			s.BuildingPayout += v
		}
		if v, ok, _ := model.ParseFloat(claims.Value(r, model.ColContentsPaid)); ok {
			s.ContentsPayout += v
		}
		if elevated, _ := model.ParseFlag(attr(r, model.ColElevatedBuilding)); elevated {
			s.ElevatedBuildings++
		}
		if postFIRM, _ := model.ParseFlag(attr(r, model.ColPostFIRMConstruction)); postFIRM {
			s.PostFIRM++
		}
	}

	return s
}
