package model

import "time"

// Report summarizes a pipeline run
type Report struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	DataDir    string    `json:"data_dir"`
	OutputDir  string    `json:"output_dir"`

	Inputs  map[string]int `json:"inputs"`  // rows read per input table
	Outputs map[string]int `json:"outputs"` // rows written per output table

	Exclusions map[ExclusionReason]int `json:"exclusions"`         // excluded rows per reason
	Gaps       []ReferentialGapError   `json:"gaps,omitempty"`     // first unresolved references, capped
	GapCount   int                     `json:"gap_count"`          // all unresolved references
	Risk       RiskSummary             `json:"risk"`               // aggregate over analyzed claims
	Files      []string                `json:"files"`              // local files written
	Mirrors    []string                `json:"mirrors,omitempty"`  // mirror destinations written
	Rules      string                  `json:"rules,omitempty"`    // rules file used ("" for defaults)
}

// MaxReportedGaps caps Report.Gaps
const MaxReportedGaps = 50

// ExclusionReason explains why a row was left out of an output table
type ExclusionReason string

const (
	ReasonGageDrainageArea  ExclusionReason = "gage_drainage_area"   // sqmi missing or below minimum
	ReasonGageAbsDiff       ExclusionReason = "gage_abs_diff"        // drainage area mismatch too large
	ReasonGageCoordinates   ExclusionReason = "gage_coordinates"     // no usable location
	ReasonGageBoundingBox   ExclusionReason = "gage_bounding_box"    // bounding box missing or malformed
	ReasonGageMalformed     ExclusionReason = "gage_malformed"       // numeric field unparseable
	ReasonPolicyGage        ExclusionReason = "policy_gage_not_kept" // gage screened out or unknown
	ReasonPolicyField       ExclusionReason = "policy_missing_field"
	ReasonPolicyCoverage    ExclusionReason = "policy_coverage"
	ReasonPolicyDistance    ExclusionReason = "policy_distance"
	ReasonPolicyMalformed   ExclusionReason = "policy_malformed"
	ReasonClaimPolicy       ExclusionReason = "claim_policy_not_good"
	ReasonClaimField        ExclusionReason = "claim_missing_field"
	ReasonClaimPaid         ExclusionReason = "claim_paid"
	ReasonClaimMalformed    ExclusionReason = "claim_malformed"
	ReasonClaimNoReference  ExclusionReason = "claim_no_q100" // referential gap at analysis
)

// RiskSummary aggregates risk indicators over a set of claims
type RiskSummary struct {
	TotalClaims       int            `json:"total_claims"`
	CausedBy100yr     int            `json:"claims_caused_by_100yr"`
	FloodZones        map[string]int `json:"unique_flood_zones"`
	States            map[string]int `json:"states_represented"`
	BuildingPayout    float64        `json:"total_building_payout"`
	ContentsPayout    float64        `json:"total_contents_payout"`
	ElevatedBuildings int            `json:"elevated_buildings"`
	PostFIRM          int            `json:"post_firm_construction"`
}

// Distribution describes the parsed values of one numeric column
type Distribution struct {
	Count  int     `json:"count"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
}

// GageStats summarizes a gage table. Extent covers every gage with a
// location and is nil when none has one.
type GageStats struct {
	Total       int          `json:"total_gages"`
	UniqueSites int          `json:"unique_site_numbers"`
	SQMI        Distribution `json:"sqmi"`
	AbsDiff     Distribution `json:"abs_diff"`
	Located     int          `json:"located_gages"`
	Extent      *BoundingBox `json:"extent,omitempty"`
}
