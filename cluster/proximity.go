package cluster

import "math"

// DefaultNearThreshold is the focus radius, in normalized units, used to
// match a freshly placed destination against existing ones.
const DefaultNearThreshold = 0.9

// roundTo2 rounds to two decimals to absorb placement noise from the
// coordinate transform.
func roundTo2(v float64) float64 {
	return roundHalfUp(v*100) / 100
}

// Distance is the Euclidean distance between two points after both are
// rounded to two decimals.
func Distance(a, b Point) float64 {
	dx := roundTo2(a.X) - roundTo2(b.X)
	dy := roundTo2(a.Y) - roundTo2(b.Y)
	return math.Sqrt(dx*dx + dy*dy)
}

// FindNear returns the records whose destination lies within threshold of
// ref, in input order. Records without a destination never match. A
// negative threshold matches nothing.
func FindNear(records []Record, ref Point, threshold float64) []Record {
	var near []Record
	for _, r := range records {
		if r.Destination == nil {
			continue
		}
		if Distance(*r.Destination, ref) <= threshold {
			near = append(near, r)
		}
	}
	return near
}
