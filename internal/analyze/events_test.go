package analyze

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ppiankov/floodclaims/internal/model"
)

func newTestMatcher(t *testing.T) *EventMatcher {
	t.Helper()
	claims := locatedClaims()
	m, err := NewEventMatcher(claims, ClaimLocator(claims, testPolicies()), testQ100(), 50)
	if err != nil {
		t.Fatalf("NewEventMatcher failed: %v", err)
	}
	return m
}

func TestEventMatcher_Match(t *testing.T) {
	m := newTestMatcher(t)

	// C4 has no location
	if m.Points() != 4 {
		t.Errorf("expected 4 indexed claims, got %d", m.Points())
	}

	nashville := model.Gage{SiteNo: "G1", Lat: 36.17, Lon: -86.78, HasCoords: true, SQMI: 680}
	got := m.Match(nashville)
	want := model.GageEvents{SiteNo: "G1", Q100: 10000, SQMI: 680, Dates: []string{"2010-05-02"}, Counts: []int{2}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}

	knoxville := model.Gage{SiteNo: "G2", Lat: 35.96, Lon: -83.92, HasCoords: true, SQMI: 120}
	got = m.Match(knoxville)
	want = model.GageEvents{SiteNo: "G2", SQMI: 120, Dates: []string{"2010-05-03"}, Counts: []int{1}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestEventMatcher_GroupsByDate(t *testing.T) {
	claims := model.NewTableWithRows(model.TableAnalyzedClaims, []string{model.ColClaimID},
		[]string{model.ColClaimID, model.ColPolicyID, model.ColDateOfLoss, model.ColLatitude, model.ColLongitude},
		[]model.Row{
			{"C1", "P1", "2010-05-03", "36.10", "-86.70"},
			{"C2", "P1", "2010-05-02T06:00:00Z", "36.12", "-86.71"},
			{"C3", "P1", "2010-05-03", "36.14", "-86.72"},
			{"C4", "P1", "not a date", "36.14", "-86.72"},
		})
	m, err := NewEventMatcher(claims, ClaimLocator(claims, nil), nil, 25)
	if err != nil {
		t.Fatalf("NewEventMatcher failed: %v", err)
	}

	got := m.Match(model.Gage{SiteNo: "G1", Lat: 36.1, Lon: -86.7, HasCoords: true})
	if diff := cmp.Diff([]string{"2010-05-02", "2010-05-03"}, got.Dates); diff != "" {
		t.Errorf("dates mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{1, 2}, got.Counts); diff != "" {
		t.Errorf("counts mismatch (-want +got):\n%s", diff)
	}
	if got.TotalClaims() != 3 {
		t.Errorf("expected 3 claims, got %d", got.TotalClaims())
	}
}

func TestEventMatcher_NoLocation(t *testing.T) {
	m := newTestMatcher(t)

	got := m.Match(model.Gage{SiteNo: "G7"})
	if len(got.Dates) != 0 || got.TotalClaims() != 0 {
		t.Errorf("expected no events for unlocated gage, got %+v", got)
	}
}

func TestNewEventMatcher_InvalidRadius(t *testing.T) {
	claims := locatedClaims()
	if _, err := NewEventMatcher(claims, ClaimLocator(claims, nil), nil, 0); err == nil {
		t.Error("expected error for zero radius")
	}
}

func TestEventsTable(t *testing.T) {
	events := []model.GageEvents{
		{SiteNo: "G1", Q100: 10000, SQMI: 680, Dates: []string{"2010-05-02", "2010-05-03"}, Counts: []int{2, 1}},
		{SiteNo: "G2", SQMI: 120.5, Dates: []string{}, Counts: []int{}},
	}

	tbl := EventsTable(events)
	if tbl.Name != model.TableGageEvents {
		t.Errorf("expected table %s, got %s", model.TableGageEvents, tbl.Name)
	}
	want := []model.Row{
		{"G1", "10000", "680", "2010-05-02|2010-05-03", "2|1"},
		{"G2", "", "120.5", "", ""},
	}
	if diff := cmp.Diff(want, tbl.Rows); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}

	parsed, err := EventsFromTable(tbl)
	if err != nil {
		t.Fatalf("EventsFromTable failed: %v", err)
	}
	if got := parsed["G1"]; got.TotalClaims() != 3 || len(got.Dates) != 2 {
		t.Errorf("unexpected parsed events %+v", got)
	}
	if got := parsed["G2"]; got.TotalClaims() != 0 || got.SQMI != 120.5 {
		t.Errorf("unexpected parsed events %+v", got)
	}
}

func TestEventsFromTable_Mismatch(t *testing.T) {
	tbl := EventsTable(nil)
	tbl.Append(model.Row{"G1", "", "1", "2010-05-02|2010-05-03", "2"})

	if _, err := EventsFromTable(tbl); err == nil {
		t.Error("expected error for mismatched dates and counts")
	}
}
