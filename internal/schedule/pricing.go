package schedule

import "math"

// DurationHours converts a validated minute window to fractional hours.
func DurationHours(startMin, endMin int) float64 {
	return float64(endMin-startMin) / 60.0
}

// Price is duration × rate rounded half-up to two decimal places.
func Price(durationHours, pricePerHour float64) float64 {
	return math.Floor(durationHours*pricePerHour*100+0.5) / 100
}

// Points awards loyalty points for a booking: the duration rounded half-up
// to whole hours, never less than one. A 15-minute booking still earns one.
func Points(durationHours float64) int64 {
	p := int64(math.Floor(durationHours + 0.5))
	if p < 1 {
		p = 1
	}
	return p
}
