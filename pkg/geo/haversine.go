// Package geo holds the distance check used for arrival confirmation.
package geo

import "math"

// EarthRadiusKm is the mean Earth radius
const EarthRadiusKm = 6371.0

// Haversine returns the great-circle distance in kilometres between two points
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	lat1r, lon1r := toRadians(lat1), toRadians(lon1)
	lat2r, lon2r := toRadians(lat2), toRadians(lon2)
	dlat, dlon := lat2r-lat1r, lon2r-lon1r

	a := math.Pow(math.Sin(dlat/2), 2) + math.Cos(lat1r)*math.Cos(lat2r)*math.Pow(math.Sin(dlon/2), 2)
	return EarthRadiusKm * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
