package model

import "fmt"

// Policy table columns
const (
	ColPolicyID             = "policy_id"
	ColState                = "state"
	ColFloodZone            = "flood_zone"
	ColBuildingCoverage     = "total_building_coverage"
	ColContentsCoverage     = "total_contents_coverage"
	ColElevatedBuilding     = "elevated_building_indicator"
	ColPostFIRMConstruction = "post_firm_construction_indicator"
)

// PolicyColumns are required in every policy table
var PolicyColumns = []string{ColPolicyID, ColSiteNo, ColBuildingCoverage, ColContentsCoverage}

// Policy is an insured property linked to a gage
type Policy struct {
	PolicyID         string  `json:"policy_id"`
	SiteNo           string  `json:"site_no"`
	State            string  `json:"state,omitempty"`
	FloodZone        string  `json:"flood_zone,omitempty"`
	Lat              float64 `json:"latitude,omitempty"`
	Lon              float64 `json:"longitude,omitempty"`
	HasCoords        bool    `json:"-"`
	BuildingCoverage float64 `json:"total_building_coverage"`
	ContentsCoverage float64 `json:"total_contents_coverage"`
	Elevated         bool    `json:"elevated_building"`
	PostFIRM         bool    `json:"post_firm_construction"`
}

// TotalCoverage is building plus contents coverage
func (p Policy) TotalCoverage() float64 {
	return p.BuildingCoverage + p.ContentsCoverage
}

// PolicyFromRow parses the typed view of a policy row
func PolicyFromRow(t *Table, r Row) (Policy, error) {
	p := Policy{
		PolicyID:  t.Value(r, ColPolicyID),
		SiteNo:    t.Value(r, ColSiteNo),
		State:     t.Value(r, ColState),
		FloodZone: t.Value(r, ColFloodZone),
	}

	var err error
	var hasLat, hasLon bool
	if p.Lat, hasLat, err = ParseFloat(t.Value(r, ColLatitude)); err != nil {
		return p, fmt.Errorf("%s: %w", ColLatitude, err)
	}
	if p.Lon, hasLon, err = ParseFloat(t.Value(r, ColLongitude)); err != nil {
		return p, fmt.Errorf("%s: %w", ColLongitude, err)
	}
	p.HasCoords = hasLat && hasLon
	if p.BuildingCoverage, _, err = ParseFloat(t.Value(r, ColBuildingCoverage)); err != nil {
		return p, fmt.Errorf("%s: %w", ColBuildingCoverage, err)
	}
	if p.ContentsCoverage, _, err = ParseFloat(t.Value(r, ColContentsCoverage)); err != nil {
		return p, fmt.Errorf("%s: %w", ColContentsCoverage, err)
	}
	if p.Elevated, err = ParseFlag(t.Value(r, ColElevatedBuilding)); err != nil {
		return p, fmt.Errorf("%s: %w", ColElevatedBuilding, err)
	}
	if p.PostFIRM, err = ParseFlag(t.Value(r, ColPostFIRMConstruction)); err != nil {
		return p, fmt.Errorf("%s: %w", ColPostFIRMConstruction, err)
	}

	return p, nil
}
