package model

import "fmt"

// Gage table columns
const (
	ColSiteNo      = "site_no"
	ColStationName = "station_name"
	ColLatitude    = "latitude"
	ColLongitude   = "longitude"
	ColSQMI        = "sqmi"
	ColAbsDiff     = "abs_diff"
	ColBBoxMinLon  = "bbox_min_lon"
	ColBBoxMinLat  = "bbox_min_lat"
	ColBBoxMaxLon  = "bbox_max_lon"
	ColBBoxMaxLat  = "bbox_max_lat"
)

// GageColumns are required in every gage table
var GageColumns = []string{ColSiteNo, ColLatitude, ColLongitude, ColSQMI, ColAbsDiff}

// BoundingBox is a watershed extent in degrees
type BoundingBox struct {
	MinLon float64 `json:"min_lon"`
	MinLat float64 `json:"min_lat"`
	MaxLon float64 `json:"max_lon"`
	MaxLat float64 `json:"max_lat"`
}

// Valid reports whether the box is well-formed
func (b BoundingBox) Valid() bool {
	return ValidCoordinates(b.MinLat, b.MinLon) && ValidCoordinates(b.MaxLat, b.MaxLon) &&
		b.MinLon <= b.MaxLon && b.MinLat <= b.MaxLat
}

// Center returns the box midpoint as (lat, lon)
func (b BoundingBox) Center() (float64, float64) {
	return (b.MinLat + b.MaxLat) / 2, (b.MinLon + b.MaxLon) / 2
}

// Contains reports whether the point lies inside the box (inclusive)
func (b BoundingBox) Contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lon >= b.MinLon && lon <= b.MaxLon
}

// Gage is a flood-monitoring station
type Gage struct {
	SiteNo      string       `json:"site_no"`
	StationName string       `json:"station_name,omitempty"`
	Lat         float64      `json:"latitude"`
	Lon         float64      `json:"longitude"`
	HasCoords   bool         `json:"-"`
	SQMI        float64      `json:"sqmi"`
	HasSQMI     bool         `json:"-"`
	AbsDiff     float64      `json:"abs_diff"`
	HasAbsDiff  bool         `json:"-"`
	BBox        *BoundingBox `json:"bbox,omitempty"`
}

// Location returns the gage point, falling back to the bounding box center
func (g Gage) Location() (lat, lon float64, ok bool) {
	if g.HasCoords {
		return g.Lat, g.Lon, true
	}
	if g.BBox != nil && g.BBox.Valid() {
		lat, lon = g.BBox.Center()
		return lat, lon, true
	}
	return 0, 0, false
}

// GageFromRow parses the typed view of a gage row
func GageFromRow(t *Table, r Row) (Gage, error) {
	g := Gage{
		SiteNo:      t.Value(r, ColSiteNo),
		StationName: t.Value(r, ColStationName),
	}

	var err error
	var hasLat, hasLon bool
	if g.Lat, hasLat, err = ParseFloat(t.Value(r, ColLatitude)); err != nil {
		return g, fmt.Errorf("%s: %w", ColLatitude, err)
	}
	if g.Lon, hasLon, err = ParseFloat(t.Value(r, ColLongitude)); err != nil {
		return g, fmt.Errorf("%s: %w", ColLongitude, err)
	}
	g.HasCoords = hasLat && hasLon
	if g.SQMI, g.HasSQMI, err = ParseFloat(t.Value(r, ColSQMI)); err != nil {
		return g, fmt.Errorf("%s: %w", ColSQMI, err)
	}
	if g.AbsDiff, g.HasAbsDiff, err = ParseFloat(t.Value(r, ColAbsDiff)); err != nil {
		return g, fmt.Errorf("%s: %w", ColAbsDiff, err)
	}

	if t.Has(ColBBoxMinLon) {
		var box BoundingBox
		var n int
		for _, f := range []struct {
			col string
			dst *float64
		}{
			{ColBBoxMinLon, &box.MinLon},
			{ColBBoxMinLat, &box.MinLat},
			{ColBBoxMaxLon, &box.MaxLon},
			{ColBBoxMaxLat, &box.MaxLat},
		} {
			v, ok, err := ParseFloat(t.Value(r, f.col))
			if err != nil {
				return g, fmt.Errorf("%s: %w", f.col, err)
			}
			if ok {
				*f.dst = v
				n++
			}
		}
		if n == 4 {
			g.BBox = &box
		}
	}

	return g, nil
}
