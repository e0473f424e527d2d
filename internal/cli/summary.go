package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ppiankov/floodclaims/internal/analyze"
	"github.com/ppiankov/floodclaims/internal/model"
	"github.com/ppiankov/floodclaims/internal/pipeline"
)

var (
	summaryLat       float64
	summaryLon       float64
	summaryRadius    float64
	summaryTolerance float64
	summaryBBox      string
	summaryPolicies  string
	summaryJSON      bool
)

// summaryCmd represents the summary command
var summaryCmd = &cobra.Command{
	Use:   "summary [claims.csv]",
	Short: "Summarize flood risk indicators over a claims table",
	Long: `Summary aggregates risk indicators over claims (analyzed_claims.csv in the
output directory by default): claims caused by 100-year floods, flood zones,
states, payouts, elevated buildings and post-FIRM construction.

Claims can first be narrowed by location. Claims without coordinates are
located through their policy.

Example:
  floodclaims summary
  floodclaims summary --lat 36.16 --lon -86.78 --radius 25
  floodclaims summary --lat 36.16 --lon -86.78 --tolerance 0.001
  floodclaims summary --bbox -87.1,35.9,-86.5,36.4 --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSummary,
}

func init() {
	rootCmd.AddCommand(summaryCmd)

	summaryCmd.Flags().Float64Var(&summaryLat, "lat", 0, "latitude of the target point")
	summaryCmd.Flags().Float64Var(&summaryLon, "lon", 0, "longitude of the target point")
	summaryCmd.Flags().Float64Var(&summaryRadius, "radius", 0, "keep claims within this many km of --lat/--lon")
	summaryCmd.Flags().Float64Var(&summaryTolerance, "tolerance", 0, "keep claims within this many degrees of --lat/--lon")
	summaryCmd.Flags().StringVar(&summaryBBox, "bbox", "", "keep claims inside min_lon,min_lat,max_lon,max_lat")
	summaryCmd.Flags().StringVar(&summaryPolicies, "policies", "", "policy table used to locate claims (default: good_policies.csv in the output dir)")
	summaryCmd.Flags().BoolVar(&summaryJSON, "json", false, "print JSON instead of Markdown")
}

type summaryOutput struct {
	Source  string            `json:"source"`
	Filter  string            `json:"filter,omitempty"`
	Matched int               `json:"matched_claims"`
	Summary model.RiskSummary `json:"summary"`
}

func runSummary(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	tio, err := newTableIO(cfg)
	if err != nil {
		return err
	}

	claimsPath := outputPath(cfg, model.TableAnalyzedClaims+".csv")
	if len(args) == 1 {
		claimsPath = args[0]
	}
	policiesPath := summaryPolicies
	if policiesPath == "" {
		policiesPath = outputPath(cfg, model.TableGoodPolicies+".csv")
	}

	loader := tio.loader("", nil)
	claims, err := loader.LoadTable(pipeline.TableSpec{
		Name:     model.TableAnalyzedClaims,
		File:     claimsPath,
		Key:      []string{model.ColClaimID},
		Required: []string{model.ColPolicyID},
	})
	if err != nil {
		return err
	}

	policies, err := loader.LoadTable(pipeline.TableSpec{
		Name: model.TableGoodPolicies,
		File: policiesPath,
		Key:  []string{model.ColPolicyID},
	})
	var missing *model.MissingFileError
	if errors.As(err, &missing) {
		policies = nil
	} else if err != nil {
		return err
	}

	selected, filter, err := filterClaims(cmd, claims, analyze.ClaimLocator(claims, policies))
	if err != nil {
		return err
	}

	out := summaryOutput{
		Source:  claimsPath,
		Filter:  filter,
		Matched: selected.Len(),
		Summary: analyze.Summarize(selected, policies),
	}

	if summaryJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	printMarkdown(summaryMarkdown(out))
	return nil
}

// printMarkdown renders md for a terminal, or prints it raw when stdout is
// not one or rendering fails
func printMarkdown(md string) {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Print(md)
		return
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		fmt.Print(md)
		return
	}
	rendered, err := renderer.Render(md)
	if err != nil {
		fmt.Print(md)
		return
	}
	fmt.Print(rendered)
}

// filterClaims applies at most one location filter and describes it
func filterClaims(cmd *cobra.Command, claims *model.Table, locate analyze.Locator) (*model.Table, string, error) {
	hasPoint := cmd.Flags().Changed("lat") || cmd.Flags().Changed("lon")
	if hasPoint && !(cmd.Flags().Changed("lat") && cmd.Flags().Changed("lon")) {
		return nil, "", fmt.Errorf("--lat and --lon must be given together")
	}

	n := 0
	for _, set := range []bool{summaryRadius > 0, summaryTolerance > 0, summaryBBox != ""} {
		if set {
			n++
		}
	}
	if n > 1 {
		return nil, "", fmt.Errorf("use only one of --radius, --tolerance and --bbox")
	}
	if (summaryRadius > 0 || summaryTolerance > 0) && !hasPoint {
		return nil, "", fmt.Errorf("--radius and --tolerance need --lat and --lon")
	}

	switch {
	case summaryRadius > 0:
		out, err := analyze.WithinRadius(claims, locate, summaryLat, summaryLon, summaryRadius)
		if err != nil {
			return nil, "", err
		}
		return out, fmt.Sprintf("within %g km of (%g, %g)", summaryRadius, summaryLat, summaryLon), nil
	case summaryTolerance > 0:
		if !model.ValidCoordinates(summaryLat, summaryLon) {
			return nil, "", fmt.Errorf("invalid target coordinates (%v, %v)", summaryLat, summaryLon)
		}
		out := analyze.AtPoint(claims, locate, summaryLat, summaryLon, summaryTolerance)
		return out, fmt.Sprintf("at (%g, %g) ± %g°", summaryLat, summaryLon, summaryTolerance), nil
	case summaryBBox != "":
		box, err := parseBBox(summaryBBox)
		if err != nil {
			return nil, "", err
		}
		return analyze.InBoundingBox(claims, locate, box), "inside bbox " + summaryBBox, nil
	case hasPoint:
		return nil, "", fmt.Errorf("--lat/--lon need --radius or --tolerance")
	}
	return claims, "", nil
}

// parseBBox parses min_lon,min_lat,max_lon,max_lat
func parseBBox(s string) (model.BoundingBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return model.BoundingBox{}, fmt.Errorf("bbox must be min_lon,min_lat,max_lon,max_lat, got %q", s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return model.BoundingBox{}, fmt.Errorf("bbox value %q: %w", p, err)
		}
		v[i] = f
	}
	box := model.BoundingBox{MinLon: v[0], MinLat: v[1], MaxLon: v[2], MaxLat: v[3]}
	if !box.Valid() {
		return model.BoundingBox{}, fmt.Errorf("invalid bbox %q", s)
	}
	return box, nil
}

func summaryMarkdown(out summaryOutput) string {
	var b strings.Builder
	b.WriteString("# Claim risk summary\n\n")
	fmt.Fprintf(&b, "- Source: `%s`\n", out.Source)
	if out.Filter != "" {
		fmt.Fprintf(&b, "- Filter: %s\n", out.Filter)
	}
	b.WriteString("\n")
	b.WriteString(pipeline.RiskMarkdown("Indicators", out.Summary))
	return b.String()
}
