package analyze

import (
	"fmt"
	"sort"

	"github.com/ppiankov/floodclaims/internal/geo"
	"github.com/ppiankov/floodclaims/internal/model"
)

// NearbyGage is a gage found near a target point
type NearbyGage struct {
	SiteNo      string  `json:"site_no"`
	DistanceKm  float64 `json:"distance_km"`
	Q100        float64 `json:"q100_cfs,omitempty"`
	SQMI        float64 `json:"sqmi"`
	TotalClaims int     `json:"total_claims"`
	NumEvents   int     `json:"num_events"`
}

// Nearby lists gages within maxKm of a point, closest first. q100 and
// events may be nil; ties are broken by site number.
func Nearby(gages, q100 *model.Table, events map[string]model.GageEvents, lat, lon, maxKm float64) ([]NearbyGage, error) {
	if !model.ValidCoordinates(lat, lon) {
		return nil, fmt.Errorf("invalid target coordinates (%v, %v)", lat, lon)
	}
	if maxKm <= 0 {
		return nil, fmt.Errorf("max distance must be positive, got %v", maxKm)
	}

	var q100Idx map[string]model.Row
	if q100 != nil {
		q100Idx = q100.Index()
	}

	var out []NearbyGage
	for _, r := range gages.Rows {
		g, err := model.GageFromRow(gages, r)
		if err != nil {
			continue
		}
		glat, glon, ok := g.Location()
		if !ok {
			continue
		}
		d := geo.DistanceKm(lat, lon, glat, glon)
		if d > maxKm {
			continue
		}

		n := NearbyGage{SiteNo: g.SiteNo, DistanceKm: d, SQMI: g.SQMI}
		if qrow, ok := q100Idx[g.SiteNo]; ok {
			if q, ok, err := model.Q100FromRow(q100, qrow); err == nil && ok {
				n.Q100 = q
			}
		}
		if e, ok := events[g.SiteNo]; ok {
			n.TotalClaims = e.TotalClaims()
			n.NumEvents = len(e.Dates)
		}
		out = append(out, n)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].DistanceKm != out[j].DistanceKm {
			return out[i].DistanceKm < out[j].DistanceKm
		}
		return out[i].SiteNo < out[j].SiteNo
	})
	return out, nil
}

// NearbyTotals aggregates a Nearby result. MeanQ100 averages the gages
// that have a Q100 and is zero when none does.
type NearbyTotals struct {
	Gages       int     `json:"total_gages"`
	TotalClaims int     `json:"total_claims"`
	TotalEvents int     `json:"total_events"`
	MeanQ100    float64 `json:"mean_q100_cfs,omitempty"`
}

// SummarizeNearby totals claims and events over found gages
func SummarizeNearby(found []NearbyGage) NearbyTotals {
	t := NearbyTotals{Gages: len(found)}
	sum, n := 0.0, 0
	for _, g := range found {
		t.TotalClaims += g.TotalClaims
		t.TotalEvents += g.NumEvents
		if g.Q100 > 0 {
			sum += g.Q100
			n++
		}
	}
	if n > 0 {
		t.MeanQ100 = sum / float64(n)
	}
	return t
}

// TimelineEntry is one event date at one nearby gage
type TimelineEntry struct {
	Date       string  `json:"date"`
	SiteNo     string  `json:"site_no"`
	Claims     int     `json:"claims"`
	Q100       float64 `json:"q100_cfs,omitempty"`
	DistanceKm float64 `json:"distance_km"`
}

// ClaimsTimeline flattens the event dates of found gages into one list,
// ordered by date, then distance, then site number. Gages without events
// contribute nothing.
func ClaimsTimeline(found []NearbyGage, events map[string]model.GageEvents) []TimelineEntry {
	var out []TimelineEntry
	for _, g := range found {
		e, ok := events[g.SiteNo]
		if !ok {
			continue
		}
		for i, date := range e.Dates {
			if i >= len(e.Counts) {
				break
			}
			out = append(out, TimelineEntry{
				Date:       date,
				SiteNo:     g.SiteNo,
				Claims:     e.Counts[i],
				Q100:       g.Q100,
				DistanceKm: g.DistanceKm,
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if a.DistanceKm != b.DistanceKm {
			return a.DistanceKm < b.DistanceKm
		}
		return a.SiteNo < b.SiteNo
	})
	return out
}
