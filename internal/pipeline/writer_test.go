package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"

	"github.com/ppiankov/floodclaims/internal/model"
)

func keptGages(rows ...model.Row) *model.Table {
	return model.NewTableWithRows(model.TableKeptGages, []string{model.ColSiteNo}, model.GageColumns, rows)
}

func TestWriter_Write(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "outputs")
	w := NewWriter(dir, ',', zap.NewNop())

	tbl := keptGages(model.Row{"03431500", "36.15", "-86.78", "680", "0.02"}, model.Row{"02", "1", "1", "1", "0,1"})
	paths, err := w.Write(context.Background(), tbl)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	want := filepath.Join(dir, "kept_gages.csv")
	if diff := cmp.Diff([]string{want}, paths); diff != "" {
		t.Errorf("paths mismatch (-want +got):\n%s", diff)
	}

	data, err := os.ReadFile(want)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	expected := "site_no,latitude,longitude,sqmi,abs_diff\n03431500,36.15,-86.78,680,0.02\n02,1,1,1,\"0,1\"\n"
	if string(data) != expected {
		t.Errorf("unexpected output:\n%s", data)
	}
}

func TestWriter_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, ';', zap.NewNop())

	tbl := keptGages(model.Row{"01", "36.15", "-86.78", "680", "note; with delimiter"})
	if _, err := w.WriteTable(tbl); err != nil {
		t.Fatalf("WriteTable failed: %v", err)
	}

	spec := gageSpec
	spec.File = "kept_gages.csv"
	got, err := NewLoader(dir, ';', nil, zap.NewNop()).LoadTable(spec)
	if err != nil {
		t.Fatalf("LoadTable failed: %v", err)
	}
	if diff := cmp.Diff(tbl.Rows, got.Rows); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestWriter_Overwrite(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, ',', zap.NewNop())

	old := keptGages(model.Row{"01", "1", "1", "1", "0"}, model.Row{"02", "1", "1", "1", "0"})
	if _, err := w.WriteTable(old); err != nil {
		t.Fatalf("WriteTable failed: %v", err)
	}
	path, err := w.WriteTable(keptGages())
	if err != nil {
		t.Fatalf("WriteTable failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "site_no,latitude,longitude,sqmi,abs_diff\n" {
		t.Errorf("expected header-only file, got:\n%s", data)
	}

	// no temp files left behind
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		names := make([]string, len(entries))
		for i, e := range entries {
			names[i] = e.Name()
		}
		t.Errorf("expected only the output file, got %v", names)
	}
}

func TestWriter_WriteError(t *testing.T) {
	// output "directory" is a regular file
	dir := filepath.Join(t.TempDir(), "outputs")
	if err := os.WriteFile(dir, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := NewWriter(dir, ',', zap.NewNop()).Write(context.Background(), keptGages())

	var we *model.WriteError
	if !errors.As(err, &we) {
		t.Fatalf("expected WriteError, got %v", err)
	}
}

func TestWriter_WriteTableError(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "missing")

	_, err := NewWriter(dir, ',', zap.NewNop()).WriteTable(keptGages())

	var we *model.WriteError
	if !errors.As(err, &we) {
		t.Fatalf("expected WriteError, got %v", err)
	}
	if we.Table != model.TableKeptGages || we.Path != filepath.Join(dir, "kept_gages.csv") {
		t.Errorf("unexpected error fields %+v", we)
	}
	if errors.Unwrap(err) == nil {
		t.Error("expected wrapped cause")
	}
}

func TestWriter_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewWriter(t.TempDir(), ',', zap.NewNop()).Write(ctx, keptGages())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func outputSet(gageID string) []*model.Table {
	return []*model.Table{
		keptGages(model.Row{gageID, "36.15", "-86.78", "680", "0.02"}),
		model.NewTableWithRows(model.TableGoodPolicies, []string{model.ColPolicyID}, model.PolicyColumns,
			[]model.Row{{"P1", gageID, "250000", "100000"}}),
		model.NewTableWithRows(model.TableGoodClaims, []string{model.ColClaimID}, model.ClaimColumns,
			[]model.Row{{"C1", "P1", "2010-05-02", "45000", "5000"}}),
	}
}

func readDir(t *testing.T, dir string) map[string]string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	out := make(map[string]string, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			out[e.Name()] = "<dir>"
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			t.Fatal(err)
		}
		out[e.Name()] = string(data)
	}
	return out
}

func TestWriter_FailedTableLeavesEarlierFilesUntouched(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, ',', zap.NewNop())

	old := outputSet("OLD")
	if _, err := w.Write(context.Background(), old[0], old[1]); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := os.Mkdir(filepath.Join(dir, "good_claims.csv"), 0755); err != nil {
		t.Fatal(err)
	}
	before := readDir(t, dir)

	_, err := w.Write(context.Background(), outputSet("NEW")...)

	var we *model.WriteError
	if !errors.As(err, &we) {
		t.Fatalf("expected WriteError, got %v", err)
	}
	if we.Table != model.TableGoodClaims {
		t.Errorf("expected failure on good_claims, got %q", we.Table)
	}
	if diff := cmp.Diff(before, readDir(t, dir)); diff != "" {
		t.Errorf("output directory changed (-before +after):\n%s", diff)
	}
}

func TestWriter_RenameFailureRollsBack(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, ',', zap.NewNop())

	if _, err := w.Write(context.Background(), outputSet("OLD")[:2]...); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	before := readDir(t, dir)

	claimsPath := filepath.Join(dir, "good_claims.csv")
	w.rename = func(oldpath, newpath string) error {
		if newpath == claimsPath {
			return errors.New("disk full")
		}
		return os.Rename(oldpath, newpath)
	}

	_, err := w.Write(context.Background(), outputSet("NEW")...)

	var we *model.WriteError
	if !errors.As(err, &we) || we.Table != model.TableGoodClaims {
		t.Fatalf("expected WriteError for good_claims, got %v", err)
	}
	if diff := cmp.Diff(before, readDir(t, dir)); diff != "" {
		t.Errorf("output directory changed (-before +after):\n%s", diff)
	}
}

func TestWriter_TableDelimiters(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, ',', zap.NewNop()).WithDelimiters(map[string]rune{model.TableClaims: ';'})

	if _, err := w.Write(context.Background(), outputSet("G1")...); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	got := readDir(t, dir)
	want := map[string]string{
		"kept_gages.csv":    "site_no,latitude,longitude,sqmi,abs_diff\nG1,36.15,-86.78,680,0.02\n",
		"good_policies.csv": "policy_id,site_no,total_building_coverage,total_contents_coverage\nP1,G1,250000,100000\n",
		"good_claims.csv":   "claim_id;policy_id;date_of_loss;amount_paid_on_building_claim;amount_paid_on_contents_claim\nC1;P1;2010-05-02;45000;5000\n",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("outputs mismatch (-want +got):\n%s", diff)
	}
}
