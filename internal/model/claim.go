package model

import (
	"fmt"
	"time"
)

// Claim table columns
const (
	ColClaimID      = "claim_id"
	ColDateOfLoss   = "date_of_loss"
	ColBuildingPaid = "amount_paid_on_building_claim"
	ColContentsPaid = "amount_paid_on_contents_claim"
)

// Derived columns added by the analyzer
const (
	ColQ100          = "q100_cfs"
	ColTotalPaid     = "total_paid"
	ColCoverageRatio = "coverage_ratio"
	ColPeak          = "peak_cfs"
	ColExceedance    = "exceedance_ratio"
	ColCausedBy100yr = "caused_by_100yr"
)

// ClaimColumns are required in every claim table
var ClaimColumns = []string{ColClaimID, ColPolicyID, ColDateOfLoss, ColBuildingPaid, ColContentsPaid}

// DerivedColumns are appended to analyzed claims, in this order
var DerivedColumns = []string{ColQ100, ColTotalPaid, ColCoverageRatio, ColPeak, ColExceedance, ColCausedBy100yr}

// Claim is a paid flood-insurance claim
type Claim struct {
	ClaimID      string    `json:"claim_id"`
	PolicyID     string    `json:"policy_id"`
	DateOfLoss   time.Time `json:"date_of_loss"`
	BuildingPaid float64   `json:"amount_paid_on_building_claim"`
	ContentsPaid float64   `json:"amount_paid_on_contents_claim"`
	Lat          float64   `json:"latitude,omitempty"`
	Lon          float64   `json:"longitude,omitempty"`
	HasCoords    bool      `json:"-"`
}

// TotalPaid is building plus contents payout
func (c Claim) TotalPaid() float64 {
	return c.BuildingPaid + c.ContentsPaid
}

// ClaimFromRow parses the typed view of a claim row
func ClaimFromRow(t *Table, r Row) (Claim, error) {
	c := Claim{
		ClaimID:  t.Value(r, ColClaimID),
		PolicyID: t.Value(r, ColPolicyID),
	}

	var err error
	if c.DateOfLoss, err = ParseDate(t.Value(r, ColDateOfLoss)); err != nil {
		return c, fmt.Errorf("%s: %w", ColDateOfLoss, err)
	}
	if c.BuildingPaid, _, err = ParseFloat(t.Value(r, ColBuildingPaid)); err != nil {
		return c, fmt.Errorf("%s: %w", ColBuildingPaid, err)
	}
	if c.ContentsPaid, _, err = ParseFloat(t.Value(r, ColContentsPaid)); err != nil {
		return c, fmt.Errorf("%s: %w", ColContentsPaid, err)
	}

	var hasLat, hasLon bool
	if c.Lat, hasLat, err = ParseFloat(t.Value(r, ColLatitude)); err != nil {
		return c, fmt.Errorf("%s: %w", ColLatitude, err)
	}
	if c.Lon, hasLon, err = ParseFloat(t.Value(r, ColLongitude)); err != nil {
		return c, fmt.Errorf("%s: %w", ColLongitude, err)
	}
	c.HasCoords = hasLat && hasLon

	return c, nil
}
