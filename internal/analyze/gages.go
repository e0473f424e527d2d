package analyze

import (
	"math"
	"sort"

	"github.com/ppiankov/floodclaims/internal/model"
)

// SummarizeGages computes dataset statistics over a gage table: row and
// site counts, the spread of drainage area and abs_diff, and the extent of
// the located gages. Empty or malformed values are left out of the numeric
// statistics but still count as rows.
func SummarizeGages(gages *model.Table) model.GageStats {
	var s model.GageStats
	if gages == nil {
		return s
	}

	sites := make(map[string]struct{}, gages.Len())
	var sqmi, absDiff []float64
	for _, r := range gages.Rows {
		s.Total++
		if site := gages.Value(r, model.ColSiteNo); site != "" {
			sites[site] = struct{}{}
		}
		if v, ok, err := model.ParseFloat(gages.Value(r, model.ColSQMI)); ok && err == nil {
			sqmi = append(sqmi, v)
		}
		if v, ok, err := model.ParseFloat(gages.Value(r, model.ColAbsDiff)); ok && err == nil {
			absDiff = append(absDiff, v)
		}

		g, err := model.GageFromRow(gages, r)
		if err != nil {
			continue
		}
		lat, lon, ok := g.Location()
		if !ok || !model.ValidCoordinates(lat, lon) {
			continue
		}
		s.Located++
		if s.Extent == nil {
			s.Extent = &model.BoundingBox{MinLon: lon, MinLat: lat, MaxLon: lon, MaxLat: lat}
			continue
		}
		s.Extent.MinLon = math.Min(s.Extent.MinLon, lon)
		s.Extent.MaxLon = math.Max(s.Extent.MaxLon, lon)
		s.Extent.MinLat = math.Min(s.Extent.MinLat, lat)
		s.Extent.MaxLat = math.Max(s.Extent.MaxLat, lat)
	}

	s.UniqueSites = len(sites)
	s.SQMI = distribution(sqmi)
	s.AbsDiff = distribution(absDiff)
	return s
}

// distribution sorts values in place
func distribution(values []float64) model.Distribution {
	if len(values) == 0 {
		return model.Distribution{}
	}
	sort.Float64s(values)

	sum := 0.0
	for _, v := range values {
		sum += v
	}
	n := len(values)
	median := values[n/2]
	if n%2 == 0 {
		median = (values[n/2-1] + values[n/2]) / 2
	}
	return model.Distribution{
		Count:  n,
		Min:    values[0],
		Max:    values[n-1],
		Mean:   sum / float64(n),
		Median: median,
	}
}
