package analyze

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ppiankov/floodclaims/internal/model"
)

func TestSummarize(t *testing.T) {
	claims := model.NewTableWithRows(model.TableAnalyzedClaims, []string{model.ColClaimID},
		[]string{model.ColClaimID, model.ColPolicyID, model.ColBuildingPaid, model.ColContentsPaid, model.ColCausedBy100yr},
		[]model.Row{
			{"C1", "P1", "45000", "5000", "1"},
			{"C2", "P2", "1000.5", "", "0"},
			{"C3", "P1", "", "250", ""},
			{"C4", "P9", "10", "0", "1"}, // policy unknown
		})

	got := Summarize(claims, testPolicies())

	want := model.RiskSummary{
		TotalClaims:       4,
		CausedBy100yr:     2,
		FloodZones:        map[string]int{"AE": 2, "X": 1},
		States:            map[string]int{"TN": 3},
		BuildingPayout:    46010.5,
		ContentsPayout:    5250,
		ElevatedBuildings: 1,
		PostFIRM:          2,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}
}

func TestSummarize_ClaimAttributesWin(t *testing.T) {
	claims := model.NewTableWithRows(model.TableAnalyzedClaims, []string{model.ColClaimID},
		[]string{model.ColClaimID, model.ColPolicyID, model.ColFloodZone, model.ColState},
		[]model.Row{
			{"C1", "P1", "VE", "FL"},
		})

	got := Summarize(claims, testPolicies())

	if diff := cmp.Diff(map[string]int{"VE": 1}, got.FloodZones); diff != "" {
		t.Errorf("flood zones mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(map[string]int{"FL": 1}, got.States); diff != "" {
		t.Errorf("states mismatch (-want +got):\n%s", diff)
	}
	// not on the claim, read from the policy
	if got.PostFIRM != 1 {
		t.Errorf("expected post-FIRM from policy, got %d", got.PostFIRM)
	}
}

func TestSummarize_Empty(t *testing.T) {
	got := Summarize(nil, nil)
	if got.TotalClaims != 0 || got.FloodZones == nil || got.States == nil {
		t.Errorf("unexpected empty summary %+v", got)
	}
}
