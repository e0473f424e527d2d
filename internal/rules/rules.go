// Package rules holds the business rules that decide which gages are kept,
// which policies and claims are good, and how claims are analyzed.
package rules

import (
	"errors"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

// Rules is the complete rule set
type Rules struct {
	Gage     GageRules     `toml:"gage" yaml:"gage" json:"gage"`
	Policy   PolicyRules   `toml:"policy" yaml:"policy" json:"policy"`
	Claim    ClaimRules    `toml:"claim" yaml:"claim" json:"claim"`
	Analysis AnalysisRules `toml:"analysis" yaml:"analysis" json:"analysis"`
}

// GageRules screen gage stations
type GageRules struct {
	MinSQMI     float64 `toml:"min_sqmi" yaml:"min_sqmi" json:"min_sqmi"`             // drainage area must exceed this
	MaxAbsDiff  float64 `toml:"max_abs_diff" yaml:"max_abs_diff" json:"max_abs_diff"` // upper bound on area mismatch
	RequireBBox bool    `toml:"require_bbox" yaml:"require_bbox" json:"require_bbox"`
}

// PolicyRules decide policy eligibility
type PolicyRules struct {
	RequiredFields []string `toml:"required_fields" yaml:"required_fields" json:"required_fields"`
	MinCoverage    float64  `toml:"min_coverage" yaml:"min_coverage" json:"min_coverage"`
	MaxDistanceKm  float64  `toml:"max_distance_km" yaml:"max_distance_km" json:"max_distance_km"` // 0 disables
}

// ClaimRules decide claim eligibility
type ClaimRules struct {
	RequiredFields []string `toml:"required_fields" yaml:"required_fields" json:"required_fields"`
	MinTotalPaid   float64  `toml:"min_total_paid" yaml:"min_total_paid" json:"min_total_paid"`
}

// AnalysisRules tune the derived claim fields
type AnalysisRules struct {
	PeakWindowDays      int     `toml:"peak_window_days" yaml:"peak_window_days" json:"peak_window_days"`
	ExceedanceThreshold float64 `toml:"exceedance_threshold" yaml:"exceedance_threshold" json:"exceedance_threshold"`
}

// Default returns the built-in rule set
func Default() *Rules {
	return &Rules{
		Gage: GageRules{
			MinSQMI:    0,
			MaxAbsDiff: 0.1,
		},
		Policy: PolicyRules{
			RequiredFields: []string{"policy_id", "site_no", "flood_zone"},
			MinCoverage:    0,
			MaxDistanceKm:  50,
		},
		Claim: ClaimRules{
			RequiredFields: []string{"claim_id", "policy_id", "date_of_loss"},
			MinTotalPaid:   0,
		},
		Analysis: AnalysisRules{
			PeakWindowDays:      3,
			ExceedanceThreshold: 1.0,
		},
	}
}

// Load reads a TOML rules file over the defaults. Unknown keys are rejected.
func Load(path string) (*Rules, error) {
	r := Default()
	md, err := toml.DecodeFile(path, r)
	if err != nil {
		return nil, fmt.Errorf("decode rules %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("rules %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("rules %s: %w", path, err)
	}
	return r, nil
}

// Validate checks the rule set for values no data could satisfy
func (r *Rules) Validate() error {
	var errs []error
	if r.Gage.MaxAbsDiff < 0 {
		errs = append(errs, fmt.Errorf("gage.max_abs_diff must be >= 0"))
	}
	if r.Policy.MaxDistanceKm < 0 {
		errs = append(errs, fmt.Errorf("policy.max_distance_km must be >= 0"))
	}
	if r.Analysis.PeakWindowDays < 0 {
		errs = append(errs, fmt.Errorf("analysis.peak_window_days must be >= 0"))
	}
	if r.Analysis.ExceedanceThreshold <= 0 {
		errs = append(errs, fmt.Errorf("analysis.exceedance_threshold must be > 0"))
	}
	for _, f := range r.Policy.RequiredFields {
		if strings.TrimSpace(f) == "" {
			errs = append(errs, fmt.Errorf("policy.required_fields contains an empty name"))
		}
	}
	for _, f := range r.Claim.RequiredFields {
		if strings.TrimSpace(f) == "" {
			errs = append(errs, fmt.Errorf("claim.required_fields contains an empty name"))
		}
	}
	return errors.Join(errs...)
}

// Encode writes the rule set as TOML
func (r *Rules) Encode() (string, error) {
	var b strings.Builder
	if err := toml.NewEncoder(&b).Encode(r); err != nil {
		return "", fmt.Errorf("encode rules: %w", err)
	}
	return b.String(), nil
}
