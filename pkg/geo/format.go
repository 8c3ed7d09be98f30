package geo

import "strconv"

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// FormatPair renders "lat, lng" for message bodies.
func FormatPair(lat, lng float64) string {
	return formatCoord(lat) + ", " + formatCoord(lng)
}
