package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"

	"github.com/ppiankov/floodclaims/internal/model"
)

const (
	fixtureGages = `site_no,station_name,latitude,longitude,sqmi,abs_diff
G1,"CUMBERLAND RIVER AT NASHVILLE, TN",36.16,-86.78,680,0.02
G2,HARPETH RIVER NEAR KINGSTON SPRINGS,35.96,-86.88,400,0.05
G3,UNGAGED,35.00,-85.00,,0.01
`
	fixturePolicies = `policy_id,site_no,state,flood_zone,total_building_coverage,total_contents_coverage,latitude,longitude
P1,G1,TN,AE,250000,100000,36.17,-86.78
P2,G2,TN,X,200000,0,35.97,-86.88
P3,G3,TN,AE,100000,0,,
`
	fixtureClaims = `claim_id,policy_id,date_of_loss,amount_paid_on_building_claim,amount_paid_on_contents_claim
C1,P1,2010-05-02,45000,5000
C2,P2,2010-05-02,1000,0
C3,P3,2010-05-02,500,0
C4,P1,2011-04-27,2000,500
`
	fixtureQ100 = `site_no,q100_cfs
G1,10000
G3,5000
`
	fixturePeaks = `site_no,date,peak_cfs
G1,2010-05-01,12000
`
)

func writeFixtures(t *testing.T, dir string) {
	t.Helper()
	writeFile(t, dir, "gages.csv", fixtureGages)
	writeFile(t, dir, "policies.csv", fixturePolicies)
	writeFile(t, dir, "claims.csv", fixtureClaims)
	writeFile(t, dir, "q100.csv", fixtureQ100)
	writeFile(t, dir, "peaks.csv", fixturePeaks)
}

func testConfig(dataDir, outDir string) *model.Config {
	cfg := model.DefaultConfig()
	cfg.Data.Dir = dataDir
	cfg.Output.Dir = outDir
	cfg.Cache.Enabled = false
	return cfg
}

func runPipeline(t *testing.T, cfg *model.Config) *RunResult {
	t.Helper()
	p, err := NewPipeline(cfg, nil, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("NewPipeline failed: %v", err)
	}
	res, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	return res
}

func TestPipeline_Run(t *testing.T) {
	dataDir, outDir := t.TempDir(), filepath.Join(t.TempDir(), "outputs")
	writeFixtures(t, dataDir)

	res := runPipeline(t, testConfig(dataDir, outDir))

	checks := []struct {
		table *model.Table
		want  []string
	}{
		{res.Gages, []string{"G1", "G2"}},
		{res.Policies, []string{"P1", "P2"}},
		{res.Claims, []string{"C1", "C2", "C4"}},
		// G2 has no q100
		{res.Analyzed, []string{"C1", "C4"}},
	}
	for _, c := range checks {
		if diff := cmp.Diff(c.want, c.table.Keys()); diff != "" {
			t.Errorf("%s mismatch (-want +got):\n%s", c.table.Name, diff)
		}
	}

	for _, name := range []string{"kept_gages.csv", "good_policies.csv", "good_claims.csv", "analyzed_claims.csv", "report.json"} {
		if _, err := os.Stat(filepath.Join(outDir, name)); err != nil {
			t.Errorf("expected %s: %v", name, err)
		}
	}

	r := res.Report
	if r.GapCount != 1 || len(r.Gaps) != 1 || r.Gaps[0].Key != "C2" {
		t.Errorf("unexpected gaps %d %+v", r.GapCount, r.Gaps)
	}
	wantOutputs := map[string]int{
		model.TableKeptGages:      2,
		model.TableGoodPolicies:   2,
		model.TableGoodClaims:     3,
		model.TableAnalyzedClaims: 2,
	}
	if diff := cmp.Diff(wantOutputs, r.Outputs); diff != "" {
		t.Errorf("outputs mismatch (-want +got):\n%s", diff)
	}
	if r.Inputs[model.TablePeaks] != 1 || r.Inputs[model.TableClaims] != 4 {
		t.Errorf("unexpected inputs %v", r.Inputs)
	}
	if r.Risk.TotalClaims != 2 || r.Risk.CausedBy100yr != 1 {
		t.Errorf("unexpected risk summary %+v", r.Risk)
	}
	if !strings.HasPrefix(r.RunID, "run-") {
		t.Errorf("unexpected run id %q", r.RunID)
	}

	data, err := os.ReadFile(filepath.Join(outDir, "report.json"))
	if err != nil {
		t.Fatal(err)
	}
	var decoded model.Report
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if decoded.RunID != r.RunID || decoded.Exclusions[model.ReasonGageDrainageArea] != 1 {
		t.Errorf("unexpected report %+v", decoded)
	}
}

// Every output reference resolves inside the outputs
func TestPipeline_ReferentialClosure(t *testing.T) {
	dataDir := t.TempDir()
	writeFixtures(t, dataDir)

	res := runPipeline(t, testConfig(dataDir, t.TempDir()))

	gages := res.Gages.Index()
	for _, r := range res.Policies.Rows {
		if _, ok := gages[res.Policies.Value(r, model.ColSiteNo)]; !ok {
			t.Errorf("policy %s references a gage not kept", res.Policies.KeyOf(r))
		}
	}
	policies := res.Policies.Index()
	for _, tbl := range []*model.Table{res.Claims, res.Analyzed} {
		for _, r := range tbl.Rows {
			if _, ok := policies[tbl.Value(r, model.ColPolicyID)]; !ok {
				t.Errorf("%s claim %s references a policy not kept", tbl.Name, tbl.KeyOf(r))
			}
		}
	}
}

// Outputs hold input rows only, unmodified apart from derived columns
func TestPipeline_Subset(t *testing.T) {
	dataDir := t.TempDir()
	writeFixtures(t, dataDir)
	cfg := testConfig(dataDir, t.TempDir())

	res := runPipeline(t, cfg)

	loader := NewLoader(dataDir, ',', nil, zap.NewNop())
	inputs, err := loader.Load(context.Background(), InputSpecs(cfg.Data))
	if err != nil {
		t.Fatal(err)
	}

	pairs := []struct {
		in, out *model.Table
	}{
		{inputs[model.TableGages], res.Gages},
		{inputs[model.TablePolicies], res.Policies},
		{inputs[model.TableClaims], res.Claims},
		{inputs[model.TableClaims], res.Analyzed},
	}
	for _, p := range pairs {
		idx := p.in.Index()
		for _, r := range p.out.Rows {
			src, ok := idx[p.out.KeyOf(r)]
			if !ok {
				t.Errorf("%s row %s not in input", p.out.Name, p.out.KeyOf(r))
				continue
			}
			for _, col := range p.in.Columns {
				if got, want := p.out.Value(r, col), p.in.Value(src, col); got != want {
					t.Errorf("%s row %s column %s = %q, want %q", p.out.Name, p.out.KeyOf(r), col, got, want)
				}
			}
		}
	}
}

// Re-running over the outputs reproduces them
func TestPipeline_Idempotent(t *testing.T) {
	dataDir, out1, out2 := t.TempDir(), t.TempDir(), t.TempDir()
	writeFixtures(t, dataDir)

	runPipeline(t, testConfig(dataDir, out1))

	cfg := testConfig(out1, out2)
	cfg.Data.Gages = "kept_gages.csv"
	cfg.Data.Policies = "good_policies.csv"
	cfg.Data.Claims = "good_claims.csv"
	cfg.Data.Q100 = filepath.Join(dataDir, "q100.csv")
	cfg.Data.Peaks = filepath.Join(dataDir, "peaks.csv")
	runPipeline(t, cfg)

	for _, name := range []string{"kept_gages.csv", "good_policies.csv", "good_claims.csv", "analyzed_claims.csv"} {
		first, err := os.ReadFile(filepath.Join(out1, name))
		if err != nil {
			t.Fatal(err)
		}
		second, err := os.ReadFile(filepath.Join(out2, name))
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(string(first), string(second)); diff != "" {
			t.Errorf("%s changed on re-run (-first +second):\n%s", name, diff)
		}
	}
}

func TestPipeline_EmptyInputs(t *testing.T) {
	dataDir, outDir := t.TempDir(), t.TempDir()
	writeFile(t, dataDir, "gages.csv", "site_no,latitude,longitude,sqmi,abs_diff\n")
	writeFile(t, dataDir, "policies.csv", "policy_id,site_no,flood_zone,total_building_coverage,total_contents_coverage\n")
	writeFile(t, dataDir, "claims.csv", "claim_id,policy_id,date_of_loss,amount_paid_on_building_claim,amount_paid_on_contents_claim\n")
	writeFile(t, dataDir, "q100.csv", "site_no,q100_cfs\n")

	res := runPipeline(t, testConfig(dataDir, outDir))

	for _, tbl := range res.Tables() {
		if tbl.Len() != 0 {
			t.Errorf("expected empty %s, got %d rows", tbl.Name, tbl.Len())
		}
		data, err := os.ReadFile(filepath.Join(outDir, tbl.Name+".csv"))
		if err != nil {
			t.Fatalf("read %s: %v", tbl.Name, err)
		}
		if strings.Count(string(data), "\n") != 1 {
			t.Errorf("expected header-only %s, got:\n%s", tbl.Name, data)
		}
	}
}

func TestPipeline_FailureWritesNothing(t *testing.T) {
	dataDir := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "outputs")
	writeFixtures(t, dataDir)
	writeFile(t, dataDir, "claims.csv", "claim_id,policy_id,date_of_loss,amount_paid_on_building_claim,amount_paid_on_contents_claim\nC1,P1,2010-05-02,1,1\nC1,P1,2010-05-02,1,1\n")

	p, err := NewPipeline(testConfig(dataDir, outDir), nil, nil, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	_, err = p.Run(context.Background())

	var fe *model.FormatError
	if !errors.As(err, &fe) || fe.Table != model.TableClaims || fe.Line != 3 {
		t.Fatalf("expected FormatError for claims line 3, got %v", err)
	}
	if _, err := os.Stat(outDir); !os.IsNotExist(err) {
		t.Errorf("expected no output directory, got %v", err)
	}
}

func TestPipeline_MissingInput(t *testing.T) {
	dataDir := t.TempDir()
	writeFixtures(t, dataDir)
	os.Remove(filepath.Join(dataDir, "q100.csv"))

	p, err := NewPipeline(testConfig(dataDir, t.TempDir()), nil, nil, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	_, err = p.Run(context.Background())

	var missing *model.MissingFileError
	if !errors.As(err, &missing) || missing.Table != model.TableQ100 {
		t.Fatalf("expected MissingFileError for q100, got %v", err)
	}
}

type recordingSink struct {
	name string
	puts map[string]string
	err  error
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Put(ctx context.Context, runID string, t *model.Table, data []byte) error {
	if s.err != nil {
		return &model.WriteError{Table: t.Name, Path: s.name, Err: s.err}
	}
	if s.puts == nil {
		s.puts = make(map[string]string)
	}
	s.puts[t.Name] = string(data)
	return nil
}

func (s *recordingSink) Close() error { return nil }

func TestPipeline_Mirrors(t *testing.T) {
	dataDir, outDir := t.TempDir(), t.TempDir()
	writeFixtures(t, dataDir)

	mirror := &recordingSink{name: "memory://mirror"}
	p, err := NewPipeline(testConfig(dataDir, outDir), nil, nil, zap.NewNop(), mirror)
	if err != nil {
		t.Fatal(err)
	}
	res, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if diff := cmp.Diff([]string{"memory://mirror"}, res.Report.Mirrors); diff != "" {
		t.Errorf("mirrors mismatch (-want +got):\n%s", diff)
	}
	if len(mirror.puts) != 4 {
		t.Fatalf("expected 4 mirrored tables, got %d", len(mirror.puts))
	}
	local, err := os.ReadFile(filepath.Join(outDir, "analyzed_claims.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if mirror.puts[model.TableAnalyzedClaims] != string(local) {
		t.Error("mirrored data differs from the local file")
	}
}

func TestPipeline_MirrorFailure(t *testing.T) {
	dataDir := t.TempDir()
	writeFixtures(t, dataDir)

	mirror := &recordingSink{name: "memory://mirror", err: errors.New("bucket not found")}
	p, err := NewPipeline(testConfig(dataDir, t.TempDir()), nil, nil, zap.NewNop(), mirror)
	if err != nil {
		t.Fatal(err)
	}
	_, err = p.Run(context.Background())

	var we *model.WriteError
	if !errors.As(err, &we) {
		t.Fatalf("expected WriteError, got %v", err)
	}
}

func TestPipeline_MarkdownReport(t *testing.T) {
	dataDir, outDir := t.TempDir(), t.TempDir()
	writeFixtures(t, dataDir)
	cfg := testConfig(dataDir, outDir)
	cfg.Output.Markdown = "report.md"

	res := runPipeline(t, cfg)

	data, err := os.ReadFile(filepath.Join(outDir, "report.md"))
	if err != nil {
		t.Fatal(err)
	}
	md := string(data)
	for _, want := range []string{
		"# Flood claims run " + res.Report.RunID,
		"| kept_gages | 2 |",
		"| gage_drainage_area | 1 |",
		"## Unresolved references (1)",
		"| Caused by 100-year flood | 1 |",
		"| AE | 2 |",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown report missing %q", want)
		}
	}
}

func TestNewPipeline_BadDelimiter(t *testing.T) {
	cfg := testConfig(t.TempDir(), t.TempDir())
	cfg.Data.Delimiter = "::"
	if _, err := NewPipeline(cfg, nil, nil, zap.NewNop()); err == nil {
		t.Error("expected error for multi-character delimiter")
	}
}

func TestPipeline_FailedWriteKeepsPreviousOutputs(t *testing.T) {
	dataDir, outDir := t.TempDir(), t.TempDir()
	writeFixtures(t, dataDir)
	runPipeline(t, testConfig(dataDir, outDir))

	before := readDir(t, outDir)

	// new inputs would change every output, but good_claims.csv cannot be replaced
	writeFile(t, dataDir, "gages.csv", strings.Replace(fixtureGages, "HARPETH RIVER", "HARPETH R.", 1))
	writeFile(t, dataDir, "policies.csv", strings.Replace(fixturePolicies, "250000", "260000", 1))
	claimsOut := filepath.Join(outDir, "good_claims.csv")
	if err := os.Remove(claimsOut); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(claimsOut, 0755); err != nil {
		t.Fatal(err)
	}
	before["good_claims.csv"] = "<dir>"

	p, err := NewPipeline(testConfig(dataDir, outDir), nil, nil, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	_, err = p.Run(context.Background())

	var we *model.WriteError
	if !errors.As(err, &we) || we.Table != model.TableGoodClaims {
		t.Fatalf("expected WriteError for good_claims, got %v", err)
	}
	if diff := cmp.Diff(before, readDir(t, outDir)); diff != "" {
		t.Errorf("outputs changed (-before +after):\n%s", diff)
	}
}

func TestPipeline_PreservesFieldPadding(t *testing.T) {
	dataDir, outDir := t.TempDir(), t.TempDir()
	writeFixtures(t, dataDir)
	writeFile(t, dataDir, "gages.csv", "site_no,station_name,latitude,longitude,sqmi,abs_diff\n"+
		"G1,   PADDED NAME,36.16,-86.78,680,0.02\n"+
		"G2,HARPETH RIVER NEAR KINGSTON SPRINGS,35.96,-86.88,400,0.05\n")

	runPipeline(t, testConfig(dataDir, outDir))

	data, err := os.ReadFile(filepath.Join(outDir, "kept_gages.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "\nG1,   PADDED NAME,36.16,") {
		t.Errorf("expected padded station name to survive, got:\n%s", data)
	}
}

func TestPipeline_TableDelimiters(t *testing.T) {
	dataDir, outDir := t.TempDir(), t.TempDir()
	writeFixtures(t, dataDir)
	writeFile(t, dataDir, "claims.csv", strings.ReplaceAll(fixtureClaims, ",", ";"))

	cfg := testConfig(dataDir, outDir)
	cfg.Data.Delimiters = map[string]string{"claims": ";"}
	res := runPipeline(t, cfg)

	if diff := cmp.Diff([]string{"C1", "C2", "C4"}, res.Claims.Keys()); diff != "" {
		t.Errorf("claims mismatch (-want +got):\n%s", diff)
	}

	for name, header := range map[string]string{
		"kept_gages.csv":      "site_no,station_name,",
		"good_claims.csv":     "claim_id;policy_id;date_of_loss;",
		"analyzed_claims.csv": "claim_id;policy_id;date_of_loss;",
	} {
		data, err := os.ReadFile(filepath.Join(outDir, name))
		if err != nil {
			t.Fatal(err)
		}
		if !strings.HasPrefix(string(data), header) {
			t.Errorf("%s: expected header prefix %q, got:\n%s", name, header, data)
		}
	}
}

func TestNewPipeline_BadTableDelimiter(t *testing.T) {
	cfg := testConfig(t.TempDir(), t.TempDir())
	cfg.Data.Delimiters = map[string]string{"claims": "\n"}
	if _, err := NewPipeline(cfg, nil, nil, zap.NewNop()); err == nil {
		t.Error("expected error for newline delimiter")
	}
}
