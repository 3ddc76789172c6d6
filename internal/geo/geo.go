package geo

import "math"

// WGS-84 ellipsoid.
const (
	SemiMajorM = 6378137.0
	SemiMinorM = 6356752.3142
)

const (
	FeetPerMeter  = 3.280839895013123
	MetersPerFoot = 0.3048
)

// Position is a geodetic point. Altitude is meters MSL.
type Position struct {
	LatDeg float64
	LonDeg float64
	AltM   float64
}

// Vector3 carries one 3-axis sample (acceleration m/s² or rotation rad/s).
type Vector3 struct {
	X float64
	Y float64
	Z float64
}

func (v Vector3) Magnitude() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

func (v Vector3) Add(o Vector3) Vector3 {
	return Vector3{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

func (v Vector3) Scale(k float64) Vector3 {
	return Vector3{v.X * k, v.Y * k, v.Z * k}
}

// Traverse solves the direct geodesic problem on the WGS-84 ellipsoid:
// start point plus initial bearing and distance to a destination point.
//
// It uses a closed-form expansion in the local radii of curvature with a
// second-order latitude correction, accurate to well under a meter at the
// sub-kilometer distances a canopy glide covers. It is not a general
// solver; do not use it for long geodesics.
func Traverse(start Position, bearingDeg, distanceM float64) Position {
	phi := start.LatDeg * math.Pi / 180
	alpha := bearingDeg * math.Pi / 180

	sinPhi := math.Sin(phi)
	a2 := SemiMajorM * SemiMajorM
	b2 := SemiMinorM * SemiMinorM
	e2 := (a2 - b2) / a2

	w := math.Sqrt(1 - e2*sinPhi*sinPhi)
	// Meridional and prime-vertical radii of curvature at the start.
	rm := SemiMajorM * (1 - e2) / (w * w * w)
	rn := SemiMajorM / w

	dNorth := distanceM * math.Cos(alpha)
	dEast := distanceM * math.Sin(alpha)

	dPhi := dNorth/rm - dEast*dEast*math.Tan(phi)/(2*rm*rn)
	phi2 := phi + dPhi

	// Longitude change at the mean latitude of the segment.
	phiMid := phi + dPhi/2
	dLam := dEast / (rn * math.Cos(phiMid))

	lon := start.LonDeg + dLam*180/math.Pi
	if lon > 180 {
		lon -= 360
	} else if lon < -180 {
		lon += 360
	}

	return Position{
		LatDeg: phi2 * 180 / math.Pi,
		LonDeg: lon,
		AltM:   start.AltM,
	}
}
