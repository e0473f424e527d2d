package analyze

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/ppiankov/floodclaims/internal/geo"
	"github.com/ppiankov/floodclaims/internal/model"
)

// Gage event table columns
const (
	ColEventDates  = "dates"
	ColEventCounts = "num_claims"
	listSeparator  = "|"
)

type claimPoint struct {
	lat, lon float64
	date     string
}

// EventMatcher groups claims around gages by date of loss. It is read-only
// after construction and safe for concurrent use.
type EventMatcher struct {
	points   []claimPoint // sorted by latitude
	radiusKm float64
	q100     map[string]float64
}

// NewEventMatcher indexes located, dated claims. q100 may be nil.
func NewEventMatcher(claims *model.Table, locate Locator, q100 *model.Table, radiusKm float64) (*EventMatcher, error) {
	if radiusKm <= 0 {
		return nil, fmt.Errorf("radius must be positive, got %v", radiusKm)
	}

	m := &EventMatcher{radiusKm: radiusKm, q100: make(map[string]float64)}
	for _, r := range claims.Rows {
		lat, lon, ok := locate(r)
		if !ok {
			continue
		}
		d, err := model.ParseDate(claims.Value(r, model.ColDateOfLoss))
		if err != nil {
			continue
		}
		m.points = append(m.points, claimPoint{lat: lat, lon: lon, date: d.Format(model.DateLayout)})
	}
	sort.Slice(m.points, func(i, j int) bool { return m.points[i].lat < m.points[j].lat })

	if q100 != nil {
		for _, r := range q100.Rows {
			if q, ok, err := model.Q100FromRow(q100, r); err == nil && ok {
				m.q100[q100.KeyOf(r)] = q
			}
		}
	}
	return m, nil
}

// Points returns the number of indexed claims
func (m *EventMatcher) Points() int {
	return len(m.points)
}

// Match counts claims within the radius of the gage, per date of loss
func (m *EventMatcher) Match(g model.Gage) model.GageEvents {
	ev := model.GageEvents{SiteNo: g.SiteNo, SQMI: g.SQMI, Q100: m.q100[g.SiteNo], Dates: []string{}, Counts: []int{}}

	glat, glon, ok := g.Location()
	if !ok {
		return ev
	}

	minLat, minLon, maxLat, maxLon := geo.Bounds(glat, glon, m.radiusKm)
	start := sort.Search(len(m.points), func(i int) bool { return m.points[i].lat >= minLat })

	counts := make(map[string]int)
	for i := start; i < len(m.points) && m.points[i].lat <= maxLat; i++ {
		p := m.points[i]
		if !geo.InBounds(p.lat, p.lon, minLat, minLon, maxLat, maxLon) {
			continue
		}
		if geo.DistanceKm(glat, glon, p.lat, p.lon) <= m.radiusKm {
			counts[p.date]++
		}
	}

	for d := range counts {
		ev.Dates = append(ev.Dates, d)
	}
	sort.Strings(ev.Dates)
	for _, d := range ev.Dates {
		ev.Counts = append(ev.Counts, counts[d])
	}
	return ev
}

// EventsTable renders gage events as a table keyed by site_no. Lists are
// encoded with "|" separators.
func EventsTable(events []model.GageEvents) *model.Table {
	t := model.NewTable(model.TableGageEvents, []string{model.ColSiteNo},
		[]string{model.ColSiteNo, model.ColQ100, model.ColSQMI, ColEventDates, ColEventCounts})
	for _, e := range events {
		counts := make([]string, len(e.Counts))
		for i, c := range e.Counts {
			counts[i] = strconv.Itoa(c)
		}
		q := ""
		if e.Q100 > 0 {
			q = model.FormatFloat(e.Q100)
		}
		t.Append(model.Row{
			e.SiteNo,
			q,
			model.FormatFloat(e.SQMI),
			strings.Join(e.Dates, listSeparator),
			strings.Join(counts, listSeparator),
		})
	}
	return t
}

// EventsFromTable parses a table produced by EventsTable
func EventsFromTable(t *model.Table) (map[string]model.GageEvents, error) {
	out := make(map[string]model.GageEvents, t.Len())
	for _, r := range t.Rows {
		e := model.GageEvents{SiteNo: t.Value(r, model.ColSiteNo)}
		e.Q100, _, _ = model.ParseFloat(t.Value(r, model.ColQ100))
		e.SQMI, _, _ = model.ParseFloat(t.Value(r, model.ColSQMI))
		e.Dates = splitList(t.Value(r, ColEventDates))
		for _, c := range splitList(t.Value(r, ColEventCounts)) {
			n, err := strconv.Atoi(c)
			if err != nil {
				return nil, fmt.Errorf("site %s: parse count %q: %w", e.SiteNo, c, err)
			}
			e.Counts = append(e.Counts, n)
		}
		if len(e.Counts) != len(e.Dates) {
			return nil, fmt.Errorf("site %s: %d dates but %d counts", e.SiteNo, len(e.Dates), len(e.Counts))
		}
		out[e.SiteNo] = e
	}
	return out, nil
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	return strings.Split(v, listSeparator)
}
