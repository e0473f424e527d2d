// Package geo provides great-circle distances between WGS84 points.
package geo

import "math"

// EarthRadiusKm is the mean Earth radius used for haversine distances
const EarthRadiusKm = 6371.0

// DistanceKm returns the haversine distance between two lat/lon points
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	φ1 := radians(lat1)
	φ2 := radians(lat2)
	dφ := radians(lat2 - lat1)
	dλ := radians(lon2 - lon1)

	a := math.Sin(dφ/2)*math.Sin(dφ/2) + math.Cos(φ1)*math.Cos(φ2)*math.Sin(dλ/2)*math.Sin(dλ/2)
	return 2 * EarthRadiusKm * math.Asin(math.Min(1, math.Sqrt(a)))
}

// Bounds returns a lat/lon box that contains every point within radiusKm
// of the center. It is a cheap prefilter before DistanceKm.
func Bounds(lat, lon, radiusKm float64) (minLat, minLon, maxLat, maxLon float64) {
	dLat := degrees(radiusKm / EarthRadiusKm)
	minLat, maxLat = lat-dLat, lat+dLat

	cos := math.Cos(radians(lat))
	if maxLat >= 90 || minLat <= -90 || cos < 1e-9 {
		return math.Max(minLat, -90), -180, math.Min(maxLat, 90), 180
	}
	dLon := degrees(radiusKm / (EarthRadiusKm * cos))
	if dLon >= 180 {
		return minLat, -180, maxLat, 180
	}
	return minLat, lon - dLon, maxLat, lon + dLon
}

// InBounds reports whether a point falls in a box from Bounds, handling
// boxes that cross the antimeridian.
func InBounds(lat, lon, minLat, minLon, maxLat, maxLon float64) bool {
	if lat < minLat || lat > maxLat {
		return false
	}
	if minLon < -180 {
		return lon >= minLon+360 || lon <= maxLon
	}
	if maxLon > 180 {
		return lon >= minLon || lon <= maxLon-360
	}
	return lon >= minLon && lon <= maxLon
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

func degrees(rad float64) float64 {
	return rad * 180 / math.Pi
}
