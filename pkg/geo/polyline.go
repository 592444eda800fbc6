package geo

import "math"

// EncodePolyline encodes points with Google's polyline algorithm at 5 decimal places.
func EncodePolyline(points []Point) string {
	if len(points) == 0 {
		return ""
	}

	encoded := make([]byte, 0, len(points)*4)
	prevLat := 0
	prevLon := 0

	for _, p := range points {
		lat := int(math.Round(p.Lat * 1e5))
		lon := int(math.Round(p.Lon * 1e5))

		encoded = appendValue(encoded, lat-prevLat)
		encoded = appendValue(encoded, lon-prevLon)

		prevLat = lat
		prevLon = lon
	}

	return string(encoded)
}

// DecodePolyline decodes a polyline string produced by EncodePolyline.
func DecodePolyline(encoded string) []Point {
	if encoded == "" {
		return nil
	}

	var points []Point
	index, lat, lon := 0, 0, 0

	for index < len(encoded) {
		var delta int
		delta, index = readValue(encoded, index)
		lat += delta
		delta, index = readValue(encoded, index)
		lon += delta

		points = append(points, Point{Lat: float64(lat) / 1e5, Lon: float64(lon) / 1e5})
	}

	return points
}

func appendValue(buf []byte, value int) []byte {
	if value < 0 {
		value = ^(value << 1)
	} else {
		value <<= 1
	}

	for value >= 0x20 {
		buf = append(buf, byte((value&0x1f)|0x20)+63)
		value >>= 5
	}
	return append(buf, byte(value)+63)
}

func readValue(encoded string, index int) (int, int) {
	shift, result := 0, 0

	for index < len(encoded) {
		b := int(encoded[index]) - 63
		index++
		result |= (b & 0x1f) << shift
		shift += 5
		if b < 0x20 {
			break
		}
	}

	if result&1 != 0 {
		return ^(result >> 1), index
	}
	return result >> 1, index
}
