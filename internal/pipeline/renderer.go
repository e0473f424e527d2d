package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/ppiankov/floodclaims/internal/model"
)

// Renderer formats run reports and risk summaries
type Renderer struct{}

// NewRenderer creates a renderer
func NewRenderer() *Renderer {
	return &Renderer{}
}

// RenderJSON writes the report as indented JSON
func (r *Renderer) RenderJSON(report *model.Report, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	return writeFileAtomic(path, append(data, '\n'))
}

// RenderMarkdown writes the report as Markdown
func (r *Renderer) RenderMarkdown(report *model.Report, path string) error {
	return writeFileAtomic(path, []byte(MarkdownReport(report)))
}

// MarkdownReport renders a run report
func MarkdownReport(report *model.Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Flood claims run %s\n\n", report.RunID)
	fmt.Fprintf(&b, "- Started: %s\n", report.StartedAt.Format("2006-01-02 15:04:05 UTC"))
	fmt.Fprintf(&b, "- Duration: %s\n", report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))
	fmt.Fprintf(&b, "- Data: `%s`\n", report.DataDir)
	fmt.Fprintf(&b, "- Output: `%s`\n", report.OutputDir)
	if report.Rules != "" {
		fmt.Fprintf(&b, "- Rules: `%s`\n", report.Rules)
	}
	b.WriteString("\n")

	b.WriteString("## Tables\n\n")
	b.WriteString("| Table | Rows |\n|---|---:|\n")
	for _, name := range sortedKeys(report.Inputs) {
		fmt.Fprintf(&b, "| %s (in) | %d |\n", name, report.Inputs[name])
	}
	for _, name := range sortedKeys(report.Outputs) {
		fmt.Fprintf(&b, "| %s | %d |\n", name, report.Outputs[name])
	}
	b.WriteString("\n")

	if len(report.Exclusions) > 0 {
		b.WriteString("## Exclusions\n\n")
		b.WriteString("| Reason | Rows |\n|---|---:|\n")
		reasons := make([]string, 0, len(report.Exclusions))
		for reason := range report.Exclusions {
			reasons = append(reasons, string(reason))
		}
		sort.Strings(reasons)
		for _, reason := range reasons {
			fmt.Fprintf(&b, "| %s | %d |\n", reason, report.Exclusions[model.ExclusionReason(reason)])
		}
		b.WriteString("\n")
	}

	if report.GapCount > 0 {
		fmt.Fprintf(&b, "## Unresolved references (%d)\n\n", report.GapCount)
		for _, g := range report.Gaps {
			fmt.Fprintf(&b, "- %s\n", g.Error())
		}
		if report.GapCount > len(report.Gaps) {
			fmt.Fprintf(&b, "- ... and %d more\n", report.GapCount-len(report.Gaps))
		}
		b.WriteString("\n")
	}

	b.WriteString(RiskMarkdown("Risk summary", report.Risk))

	if len(report.Mirrors) > 0 {
		b.WriteString("\n## Mirrors\n\n")
		for _, m := range report.Mirrors {
			fmt.Fprintf(&b, "- %s\n", m)
		}
	}

	return b.String()
}

// RiskMarkdown renders a risk summary under a level-two heading
func RiskMarkdown(title string, s model.RiskSummary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "## %s\n\n", title)
	b.WriteString("| Metric | Value |\n|---|---:|\n")
	fmt.Fprintf(&b, "| Total claims | %d |\n", s.TotalClaims)
	fmt.Fprintf(&b, "| Caused by 100-year flood | %d |\n", s.CausedBy100yr)
	fmt.Fprintf(&b, "| Building payout | %.2f |\n", s.BuildingPayout)
	fmt.Fprintf(&b, "| Contents payout | %.2f |\n", s.ContentsPayout)
	fmt.Fprintf(&b, "| Elevated buildings | %d |\n", s.ElevatedBuildings)
	fmt.Fprintf(&b, "| Post-FIRM construction | %d |\n", s.PostFIRM)
	b.WriteString("\n")

	writeCounts(&b, "Flood zones", "Zone", s.FloodZones)
	writeCounts(&b, "States", "State", s.States)

	return b.String()
}

func writeCounts(b *strings.Builder, title, label string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	fmt.Fprintf(b, "### %s\n\n", title)
	fmt.Fprintf(b, "| %s | Claims |\n|---|---:|\n", label)
	for _, k := range sortedKeys(counts) {
		fmt.Fprintf(b, "| %s | %d |\n", k, counts[k])
	}
	b.WriteString("\n")
}

// RenderSummary prints a short run summary
func (r *Renderer) RenderSummary(w io.Writer, report *model.Report) {
	fmt.Fprintf(w, "\n=== Run %s ===\n", report.RunID)
	fmt.Fprintf(w, "Gages:    %d kept of %d\n", report.Outputs[model.TableKeptGages], report.Inputs[model.TableGages])
	fmt.Fprintf(w, "Policies: %d good of %d\n", report.Outputs[model.TableGoodPolicies], report.Inputs[model.TablePolicies])
	fmt.Fprintf(w, "Claims:   %d good of %d, %d analyzed\n",
		report.Outputs[model.TableGoodClaims], report.Inputs[model.TableClaims], report.Outputs[model.TableAnalyzedClaims])
	if report.GapCount > 0 {
		fmt.Fprintf(w, "⚠ %d claims without a Q100 reference\n", report.GapCount)
	}
	if report.Risk.CausedBy100yr > 0 {
		fmt.Fprintf(w, "Caused by 100-year flood: %d\n", report.Risk.CausedBy100yr)
	}
	for _, f := range report.Files {
		fmt.Fprintf(w, "✓ Wrote %s\n", f)
	}
	for _, m := range report.Mirrors {
		fmt.Fprintf(w, "✓ Mirrored to %s\n", m)
	}
	fmt.Fprintln(w)
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
