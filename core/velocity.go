package core

// Distance returns the straight-line ECEF distance between p1 and p2 in
// metres. It is never negative.
func Distance(p1, p2 Vec3) float64 {
	return p1.DistanceTo(p2)
}

// Velocity divides distance by elapsed time. The caller guarantees
// elapsed > 0; no check is made here.
func Velocity(distance, elapsed float64) float64 {
	return distance / elapsed
}
