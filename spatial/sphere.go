package spatial

// Sphere is the set of positions whose euclidean distance to Center is lower
// or equal than Radius.
type Sphere struct {
	Center Vector3
	Radius uint64
}

func (s Sphere) Contains(p Vector3) bool {
	return withinRadius([axisCount]uint64{
		absDiff(p.X, s.Center.X),
		absDiff(p.Y, s.Center.Y),
		absDiff(p.Z, s.Center.Z),
	}, s.Radius)
}

// Intersects reports whether at least one position of r is in the sphere.
func (s Sphere) Intersects(r Region) bool {
	return withinRadius(r.DistanceTo(s.Center), s.Radius)
}
