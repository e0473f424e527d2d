package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/ppiankov/floodclaims/internal/analyze"
	"github.com/ppiankov/floodclaims/internal/model"
)

func TestPrintNearby_TotalsAndTimeline(t *testing.T) {
	found := []analyze.NearbyGage{
		{SiteNo: "G1", DistanceKm: 0, Q100: 10000, SQMI: 680, TotalClaims: 5, NumEvents: 2},
		{SiteNo: "G3", DistanceKm: 15.57, SQMI: 40},
	}
	events := map[string]model.GageEvents{
		"G1": {SiteNo: "G1", Dates: []string{"2010-05-02", "2010-05-03"}, Counts: []int{4, 1}},
	}
	out := nearbyOutput{
		Gages:    found,
		Totals:   analyze.SummarizeNearby(found),
		Timeline: analyze.ClaimsTimeline(found, events),
	}

	var buf bytes.Buffer
	if err := printNearby(&buf, out); err != nil {
		t.Fatalf("printNearby: %v", err)
	}

	got := buf.String()
	for _, want := range []string{
		"2 gages, 5 claims, 2 events, mean Q100 10000",
		"DATE",
		"2010-05-02  G1",
		"2010-05-03  G1",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestPrintNearby_NoTimeline(t *testing.T) {
	out := nearbyOutput{Gages: []analyze.NearbyGage{{SiteNo: "G3", DistanceKm: 1}}}
	out.Totals = analyze.SummarizeNearby(out.Gages)

	var buf bytes.Buffer
	if err := printNearby(&buf, out); err != nil {
		t.Fatalf("printNearby: %v", err)
	}
	if strings.Contains(buf.String(), "DATE") {
		t.Errorf("unexpected timeline:\n%s", buf.String())
	}
	if !strings.Contains(buf.String(), "mean Q100 -") {
		t.Errorf("expected missing mean Q100, got:\n%s", buf.String())
	}
}

func TestGagesMarkdown(t *testing.T) {
	out := gagesOutput{
		Source: "kept_gages.csv",
		Stats: model.GageStats{
			Total:       2,
			UniqueSites: 2,
			SQMI:        model.Distribution{Count: 2, Min: 400, Max: 680, Mean: 540, Median: 540},
			AbsDiff:     model.Distribution{Count: 2, Min: 0.02, Max: 0.05, Mean: 0.035, Median: 0.035},
			Located:     2,
			Extent:      &model.BoundingBox{MinLon: -86.88, MinLat: 35.96, MaxLon: -86.78, MaxLat: 36.16},
		},
	}

	md := gagesMarkdown(out)
	for _, want := range []string{
		"- Total gages: 2",
		"| sqmi | 2 | 400.00 | 680.00 | 540.00 | 540.00 |",
		"| abs_diff | 2 | 0.020000 | 0.050000 | 0.035000 | 0.035000 |",
		"- Longitude: -86.88 to -86.78",
		"- Latitude: 35.96 to 36.16",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}

	out.Stats.Extent = nil
	if !strings.Contains(gagesMarkdown(out), "No located gages.") {
		t.Error("expected no-extent message")
	}
}
