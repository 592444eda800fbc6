// Package geo provides great-circle distance and travel-time helpers used by
// every proximity check in the tracker.
package geo

import "math"

// earthRadiusMeters is the mean Earth radius.
const earthRadiusMeters = 6371000

// UrbanSpeedMetersPerMinute is the flat effective speed (~15 km/h) used for ETAs.
const UrbanSpeedMetersPerMinute = 250

// Point represents a geographic point with latitude and longitude.
type Point struct {
	Lat float64
	Lon float64
}

// Distance returns the haversine distance between a and b in meters.
func Distance(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	sinDLat := math.Sin(dLat / 2)
	sinDLon := math.Sin(dLon / 2)

	h := sinDLat*sinDLat + math.Cos(lat1)*math.Cos(lat2)*sinDLon*sinDLon
	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(h))
}

// EtaMinutes converts a distance into whole minutes at the urban speed, rounding up.
func EtaMinutes(distanceMeters float64) int {
	if distanceMeters <= 0 {
		return 0
	}
	return int(math.Ceil(distanceMeters / UrbanSpeedMetersPerMinute))
}

// PathLength sums the distance along consecutive points in meters.
func PathLength(points []Point) float64 {
	if len(points) < 2 {
		return 0
	}

	var total float64
	for i := 1; i < len(points); i++ {
		total += Distance(points[i-1], points[i])
	}
	return total
}

// Offset returns the point reached by moving north and east by the given meters.
// It is accurate enough for the short distances used by geofences.
func Offset(p Point, northMeters, eastMeters float64) Point {
	dLat := northMeters / earthRadiusMeters * 180 / math.Pi
	dLon := eastMeters / (earthRadiusMeters * math.Cos(p.Lat*math.Pi/180)) * 180 / math.Pi
	return Point{Lat: p.Lat + dLat, Lon: p.Lon + dLon}
}
