package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/floodclaims/internal/analyze"
	"github.com/ppiankov/floodclaims/internal/model"
	"github.com/ppiankov/floodclaims/internal/pipeline"
)

var (
	gagesRaw  bool
	gagesJSON bool
)

// gagesCmd represents the gages command
var gagesCmd = &cobra.Command{
	Use:   "gages [gages.csv]",
	Short: "Show dataset statistics for a gage table",
	Long: `Gages prints statistics over a gage table: total and unique gages, the
spread of drainage area (sqmi) and abs_diff, and the geographic extent of the
located gages.

The table defaults to kept_gages.csv in the output directory; --raw reads the
input gage table from the data directory instead.

Example:
  floodclaims gages
  floodclaims gages --raw --json
  floodclaims gages data/gages.csv`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGages,
}

func init() {
	rootCmd.AddCommand(gagesCmd)

	gagesCmd.Flags().BoolVar(&gagesRaw, "raw", false, "read the input gage table instead of kept_gages.csv")
	gagesCmd.Flags().BoolVar(&gagesJSON, "json", false, "print JSON instead of Markdown")
}

type gagesOutput struct {
	Source string          `json:"source"`
	Stats  model.GageStats `json:"stats"`
}

func runGages(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	tio, err := newTableIO(cfg)
	if err != nil {
		return err
	}

	name, dir, file := model.TableKeptGages, cfg.Output.Dir, model.TableKeptGages+".csv"
	switch {
	case len(args) == 1:
		dir, file = "", args[0]
	case gagesRaw:
		name, dir, file = model.TableGages, cfg.Data.Dir, cfg.Data.Gages
	}
	path := file
	if dir != "" && !filepath.IsAbs(file) {
		path = filepath.Join(dir, file)
	}

	gages, err := tio.loader("", nil).LoadTable(pipeline.TableSpec{
		Name: name,
		File: path,
		Key:  []string{model.ColSiteNo},
	})
	if err != nil {
		return err
	}

	out := gagesOutput{Source: path, Stats: analyze.SummarizeGages(gages)}
	if gagesJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	printMarkdown(gagesMarkdown(out))
	return nil
}

func gagesMarkdown(out gagesOutput) string {
	s := out.Stats
	var b strings.Builder
	b.WriteString("# Gage dataset\n\n")
	fmt.Fprintf(&b, "- Source: `%s`\n", out.Source)
	fmt.Fprintf(&b, "- Total gages: %d\n", s.Total)
	fmt.Fprintf(&b, "- Unique site numbers: %d\n\n", s.UniqueSites)

	b.WriteString("| Column | Count | Min | Max | Mean | Median |\n")
	b.WriteString("|--------|------:|----:|----:|-----:|-------:|\n")
	fmt.Fprintf(&b, "| sqmi | %d | %.2f | %.2f | %.2f | %.2f |\n",
		s.SQMI.Count, s.SQMI.Min, s.SQMI.Max, s.SQMI.Mean, s.SQMI.Median)
	fmt.Fprintf(&b, "| abs_diff | %d | %.6f | %.6f | %.6f | %.6f |\n",
		s.AbsDiff.Count, s.AbsDiff.Min, s.AbsDiff.Max, s.AbsDiff.Mean, s.AbsDiff.Median)

	b.WriteString("\n## Geographic coverage\n\n")
	if s.Extent == nil {
		b.WriteString("No located gages.\n")
		return b.String()
	}
	fmt.Fprintf(&b, "- Located gages: %d\n", s.Located)
	fmt.Fprintf(&b, "- Longitude: %.2f to %.2f\n", s.Extent.MinLon, s.Extent.MaxLon)
	fmt.Fprintf(&b, "- Latitude: %.2f to %.2f\n", s.Extent.MinLat, s.Extent.MaxLat)
	return b.String()
}
