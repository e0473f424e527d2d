package model

import (
	"fmt"
	"time"
)

// ColDate is the event date column of the peaks table
const ColDate = "date"

// Q100Columns are required in the flood-frequency reference table
var Q100Columns = []string{ColSiteNo, ColQ100}

// PeakColumns are required in the optional peaks table
var PeakColumns = []string{ColSiteNo, ColDate, ColPeak}

// Peak is an observed event peak discharge at a gage
type Peak struct {
	SiteNo string    `json:"site_no"`
	Date   time.Time `json:"date"`
	CFS    float64   `json:"peak_cfs"`
}

// Q100FromRow returns the 100-year reference discharge of a q100 row.
// ok is false when the value is absent or not positive.
func Q100FromRow(t *Table, r Row) (q float64, ok bool, err error) {
	q, present, err := ParseFloat(t.Value(r, ColQ100))
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", ColQ100, err)
	}
	return q, present && q > 0, nil
}

// PeakFromRow parses the typed view of a peaks row
func PeakFromRow(t *Table, r Row) (Peak, bool, error) {
	p := Peak{SiteNo: t.Value(r, ColSiteNo)}
	var err error
	if p.Date, err = ParseDate(t.Value(r, ColDate)); err != nil {
		return p, false, fmt.Errorf("%s: %w", ColDate, err)
	}
	cfs, present, err := ParseFloat(t.Value(r, ColPeak))
	if err != nil {
		return p, false, fmt.Errorf("%s: %w", ColPeak, err)
	}
	p.CFS = cfs
	return p, present, nil
}

// GageEvents groups claims near a gage by date of loss
type GageEvents struct {
	SiteNo string   `json:"site_no"`
	Q100   float64  `json:"q100_cfs,omitempty"`
	SQMI   float64  `json:"sqmi"`
	Dates  []string `json:"dates"`
	Counts []int    `json:"num_claims"`
}

// TotalClaims sums the per-date counts
func (e GageEvents) TotalClaims() int {
	n := 0
	for _, c := range e.Counts {
		n += c
	}
	return n
}
