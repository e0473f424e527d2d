package analyze

import (
	"fmt"

	"github.com/ppiankov/floodclaims/internal/geo"
	"github.com/ppiankov/floodclaims/internal/model"
)

// ColDistanceKm is added to claims selected by radius
const ColDistanceKm = "distance_km"

// Locator resolves a claim row to a point
type Locator func(r model.Row) (lat, lon float64, ok bool)

// ClaimLocator reads claim coordinates, falling back to the referenced
// policy's coordinates. policies may be nil.
func ClaimLocator(claims, policies *model.Table) Locator {
	var policyIdx map[string]model.Row
	if policies != nil {
		policyIdx = policies.Index()
	}
	return func(r model.Row) (float64, float64, bool) {
		if lat, lon, ok := point(claims, r); ok {
			return lat, lon, true
		}
		if policyIdx == nil {
			return 0, 0, false
		}
		prow, ok := policyIdx[claims.Value(r, model.ColPolicyID)]
		if !ok {
			return 0, 0, false
		}
		return point(policies, prow)
	}
}

func point(t *model.Table, r model.Row) (float64, float64, bool) {
	lat, okLat, err1 := model.ParseFloat(t.Value(r, model.ColLatitude))
	lon, okLon, err2 := model.ParseFloat(t.Value(r, model.ColLongitude))
	if err1 != nil || err2 != nil || !okLat || !okLon || !model.ValidCoordinates(lat, lon) {
		return 0, 0, false
	}
	return lat, lon, true
}

// WithinRadius keeps claims within radiusKm of a point and records the
// distance in a distance_km column. Claims without a location are dropped.
func WithinRadius(claims *model.Table, locate Locator, lat, lon, radiusKm float64) (*model.Table, error) {
	if radiusKm <= 0 {
		return nil, fmt.Errorf("radius must be positive, got %v", radiusKm)
	}
	if !model.ValidCoordinates(lat, lon) {
		return nil, fmt.Errorf("invalid target coordinates (%v, %v)", lat, lon)
	}

	out := claims.Extend(claims.Name, ColDistanceKm)
	for _, r := range claims.Rows {
		clat, clon, ok := locate(r)
		if !ok {
			continue
		}
		d := geo.DistanceKm(lat, lon, clat, clon)
		if d <= radiusKm {
			out.Rows = append(out.Rows, out.Derive(claims, r, map[string]string{
				ColDistanceKm: model.FormatRatio(d),
			}))
		}
	}
	return out, nil
}

// AtPoint keeps claims whose coordinates are within tolerance degrees of a
// point on both axes
func AtPoint(claims *model.Table, locate Locator, lat, lon, tolerance float64) *model.Table {
	box := model.BoundingBox{MinLat: lat - tolerance, MaxLat: lat + tolerance, MinLon: lon - tolerance, MaxLon: lon + tolerance}
	return InBoundingBox(claims, locate, box)
}

// InBoundingBox keeps claims inside the box
func InBoundingBox(claims *model.Table, locate Locator, box model.BoundingBox) *model.Table {
	return claims.Select(claims.Name, func(r model.Row) bool {
		lat, lon, ok := locate(r)
		return ok && box.Contains(lat, lon)
	})
}
