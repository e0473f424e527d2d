package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ppiankov/floodclaims/internal/analyze"
	"github.com/ppiankov/floodclaims/internal/model"
	"github.com/ppiankov/floodclaims/internal/pipeline"
	"github.com/ppiankov/floodclaims/internal/worker"
)

// eventsCmd represents the events command
var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Group analyzed claims around kept gages by date of loss",
	Long: `Events reads kept_gages, good_policies and analyzed_claims from the output
directory and counts, for each gage, the claims within --radius km per date of
loss. Claims without coordinates are located through their policy.

The result is written to gage_events.csv in the output directory, one row per
gage ordered by site number. Gages are matched in parallel.

Example:
  floodclaims events
  floodclaims events --radius 25 --workers 8`,
	Args: cobra.NoArgs,
	RunE: runEvents,
}

func init() {
	rootCmd.AddCommand(eventsCmd)

	eventsCmd.Flags().Float64("radius", 0, "match claims within this many km of a gage (default from config)")
	eventsCmd.Flags().Int("workers", 0, "number of parallel matchers (default from config)")

	_ = viper.BindPFlag("events.radius_km", eventsCmd.Flags().Lookup("radius"))
	_ = viper.BindPFlag("events.workers", eventsCmd.Flags().Lookup("workers"))
}

func runEvents(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	tio, err := newTableIO(cfg)
	if err != nil {
		return err
	}

	out := tio.loader(cfg.Output.Dir, nil)
	gages, err := out.LoadTable(pipeline.TableSpec{
		Name:     model.TableKeptGages,
		File:     model.TableKeptGages + ".csv",
		Key:      []string{model.ColSiteNo},
		Required: model.GageColumns,
	})
	if err != nil {
		return err
	}
	policies, err := out.LoadTable(pipeline.TableSpec{
		Name: model.TableGoodPolicies,
		File: model.TableGoodPolicies + ".csv",
		Key:  []string{model.ColPolicyID},
	})
	if err != nil {
		return err
	}
	claims, err := out.LoadTable(pipeline.TableSpec{
		Name:     model.TableAnalyzedClaims,
		File:     model.TableAnalyzedClaims + ".csv",
		Key:      []string{model.ColClaimID},
		Required: []string{model.ColPolicyID, model.ColDateOfLoss},
	})
	if err != nil {
		return err
	}

	in := tio.loader(cfg.Data.Dir, newCache(cfg))
	q100, err := in.LoadTable(pipeline.TableSpec{
		Name:     model.TableQ100,
		File:     cfg.Data.Q100,
		Key:      []string{model.ColSiteNo},
		Required: model.Q100Columns,
	})
	var missing *model.MissingFileError
	if errors.As(err, &missing) {
		logger.Warn("q100 table not found, events will carry no reference discharge", zap.String("path", missing.Path))
		q100 = nil
	} else if err != nil {
		return err
	}

	matcher, err := analyze.NewEventMatcher(claims, analyze.ClaimLocator(claims, policies), q100, cfg.Events.RadiusKm)
	if err != nil {
		return err
	}

	var list []model.Gage
	for _, r := range gages.Rows {
		g, err := model.GageFromRow(gages, r)
		if err != nil {
			logger.Debug("gage skipped", zap.String("site_no", gages.KeyOf(r)), zap.Error(err))
			continue
		}
		list = append(list, g)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].SiteNo < list[j].SiteNo })

	if verbose {
		fmt.Fprintf(os.Stderr, "Matching %d claims to %d gages (radius %g km, %d workers)\n",
			matcher.Points(), len(list), cfg.Events.RadiusKm, cfg.Events.Workers)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	events, err := worker.NewBatchProcessor(matcher, cfg.Events.Workers).ProcessGages(ctx, list)
	if err != nil {
		return fmt.Errorf("match events: %w", err)
	}

	table := analyze.EventsTable(events)
	paths, err := tio.writer(cfg.Output.Dir).Write(ctx, table)
	if err != nil {
		return err
	}

	withEvents := 0
	for _, e := range events {
		if len(e.Dates) > 0 {
			withEvents++
		}
	}
	fmt.Fprintf(os.Stderr, "✓ %d gages, %d with matched claims → %s\n", len(events), withEvents, paths[0])
	return nil
}
