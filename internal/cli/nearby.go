package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ppiankov/floodclaims/internal/analyze"
	"github.com/ppiankov/floodclaims/internal/model"
	"github.com/ppiankov/floodclaims/internal/pipeline"
)

var (
	nearbyLat   float64
	nearbyLon   float64
	nearbyMaxKm float64
	nearbyJSON  bool
	nearbyTime  bool
)

// nearbyCmd represents the nearby command
var nearbyCmd = &cobra.Command{
	Use:   "nearby",
	Short: "List kept gages near a point",
	Long: `Nearby lists kept gages within --max-km of a point, closest first, with their
Q100 and, when gage_events.csv exists, the number of matched claims and events.
Totals over the listed gages follow the table. --timeline adds every event date
at the listed gages in date order.

Example:
  floodclaims nearby --lat 36.16 --lon -86.78
  floodclaims nearby --lat 29.76 --lon -95.37 --max-km 20 --json
  floodclaims nearby --lat 36.16 --lon -86.78 --timeline`,
	Args: cobra.NoArgs,
	RunE: runNearby,
}

func init() {
	rootCmd.AddCommand(nearbyCmd)

	nearbyCmd.Flags().Float64Var(&nearbyLat, "lat", 0, "latitude of the target point")
	nearbyCmd.Flags().Float64Var(&nearbyLon, "lon", 0, "longitude of the target point")
	nearbyCmd.Flags().Float64Var(&nearbyMaxKm, "max-km", 50, "maximum distance in km")
	nearbyCmd.Flags().BoolVar(&nearbyJSON, "json", false, "print JSON instead of a table")
	nearbyCmd.Flags().BoolVar(&nearbyTime, "timeline", false, "list event dates at the nearby gages (needs gage_events.csv)")
	_ = nearbyCmd.MarkFlagRequired("lat")
	_ = nearbyCmd.MarkFlagRequired("lon")
}

func runNearby(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	tio, err := newTableIO(cfg)
	if err != nil {
		return err
	}

	outLoader := tio.loader(cfg.Output.Dir, nil)
	gages, err := outLoader.LoadTable(pipeline.TableSpec{
		Name:     model.TableKeptGages,
		File:     model.TableKeptGages + ".csv",
		Key:      []string{model.ColSiteNo},
		Required: model.GageColumns,
	})
	if err != nil {
		return err
	}

	q100, err := optionalTable(tio.loader(cfg.Data.Dir, newCache(cfg)), pipeline.TableSpec{
		Name:     model.TableQ100,
		File:     cfg.Data.Q100,
		Key:      []string{model.ColSiteNo},
		Required: model.Q100Columns,
	})
	if err != nil {
		return err
	}

	var events map[string]model.GageEvents
	eventsTable, err := optionalTable(outLoader, pipeline.TableSpec{
		Name: model.TableGageEvents,
		File: model.TableGageEvents + ".csv",
		Key:  []string{model.ColSiteNo},
	})
	if err != nil {
		return err
	}
	if eventsTable != nil {
		if events, err = analyze.EventsFromTable(eventsTable); err != nil {
			return fmt.Errorf("read %s: %w", model.TableGageEvents, err)
		}
	}

	found, err := analyze.Nearby(gages, q100, events, nearbyLat, nearbyLon, nearbyMaxKm)
	if err != nil {
		return err
	}

	out := nearbyOutput{Gages: found, Totals: analyze.SummarizeNearby(found)}
	if out.Gages == nil {
		out.Gages = []analyze.NearbyGage{}
	}
	if nearbyTime {
		if eventsTable == nil {
			return fmt.Errorf("--timeline needs %s.csv; run the events command first", model.TableGageEvents)
		}
		out.Timeline = analyze.ClaimsTimeline(found, events)
		if out.Timeline == nil {
			out.Timeline = []analyze.TimelineEntry{}
		}
	}

	if nearbyJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	if len(found) == 0 {
		fmt.Printf("No kept gages within %g km of (%g, %g)\n", nearbyMaxKm, nearbyLat, nearbyLon)
		return nil
	}
	return printNearby(os.Stdout, out)
}

type nearbyOutput struct {
	Gages    []analyze.NearbyGage    `json:"gages"`
	Totals   analyze.NearbyTotals    `json:"totals"`
	Timeline []analyze.TimelineEntry `json:"timeline,omitempty"`
}

func printNearby(dst io.Writer, out nearbyOutput) error {
	w := tabwriter.NewWriter(dst, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SITE\tKM\tQ100\tSQMI\tCLAIMS\tEVENTS")
	for _, g := range out.Gages {
		fmt.Fprintf(w, "%s\t%.2f\t%s\t%s\t%d\t%d\n",
			g.SiteNo, g.DistanceKm, formatQ100(g.Q100), model.FormatFloat(g.SQMI), g.TotalClaims, g.NumEvents)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	t := out.Totals
	fmt.Fprintf(dst, "\n%d gages, %d claims, %d events, mean Q100 %s\n",
		t.Gages, t.TotalClaims, t.TotalEvents, formatQ100(math.Round(t.MeanQ100)))

	if out.Timeline == nil {
		return nil
	}
	fmt.Fprintln(dst)
	if len(out.Timeline) == 0 {
		fmt.Fprintln(dst, "No events at these gages")
		return nil
	}
	w = tabwriter.NewWriter(dst, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tSITE\tCLAIMS\tQ100\tKM")
	for _, e := range out.Timeline {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%.2f\n", e.Date, e.SiteNo, e.Claims, formatQ100(e.Q100), e.DistanceKm)
	}
	return w.Flush()
}

func formatQ100(q float64) string {
	if q <= 0 {
		return "-"
	}
	return model.FormatFloat(q)
}

// optionalTable loads a table, returning nil when its file does not exist
func optionalTable(l *pipeline.Loader, spec pipeline.TableSpec) (*model.Table, error) {
	t, err := l.LoadTable(spec)
	var missing *model.MissingFileError
	if errors.As(err, &missing) {
		return nil, nil
	}
	return t, err
}
