package jump

import (
	"math"

	"tempolog/internal/geo"
	"tempolog/internal/track"
)

// Unit conversions.
const (
	msPerKnot = 0.5144444444444445
	mphPerMS  = 2.2369362920544025
)

// touchdownMaxAGLm gates the touchdown estimate: only predicted inside
// the final descent.
const touchdownMaxAGLm = 1000.0

// DerivedPoint is the per-pair projection of two consecutive fix entries.
// VerticalRateMS is a climb rate (negative while descending); GlideAngleDeg
// is 0 for level flight and 90 for straight down.
type DerivedPoint struct {
	TimeOffsetSec float64

	VerticalRateMS float64
	GroundSpeedMS  float64
	TotalSpeedMS   float64
	GlideAngleDeg  float64

	GroundSpeedMph   float64
	VerticalSpeedMph float64
	TotalSpeedMph    float64

	HeightAGLm *float64

	// Touchdown is the no-flare touchdown estimate, present only below
	// touchdownMaxAGLm while descending. Its altitude is the supplied
	// surface elevation, a visualization aid rather than a measured
	// value.
	Touchdown       *geo.Position
	TimeToGroundSec *float64
}

// Derive computes the projection for every consecutive entry pair that
// carries position, ground speed and track. surfaceFt is the caller's
// surface reference; nil disables height-above-ground and touchdown.
func Derive(entries []track.FixEntry, surfaceFt *float64) []DerivedPoint {
	var out []DerivedPoint
	for i := 1; i < len(entries); i++ {
		a, b := &entries[i-1], &entries[i]
		if a.Pos == nil || b.Pos == nil || b.GroundKt == nil || b.TrackDeg == nil {
			continue
		}
		dt := b.TimeOffsetSec - a.TimeOffsetSec
		if dt <= 0 {
			continue
		}

		vRate := (b.Pos.AltM - a.Pos.AltM) / dt
		gSpeed := *b.GroundKt * msPerKnot
		total := math.Hypot(gSpeed, vRate)

		p := DerivedPoint{
			TimeOffsetSec:    b.TimeOffsetSec,
			VerticalRateMS:   vRate,
			GroundSpeedMS:    gSpeed,
			TotalSpeedMS:     total,
			GlideAngleDeg:    math.Atan2(-vRate, gSpeed) * 180 / math.Pi,
			GroundSpeedMph:   gSpeed * mphPerMS,
			VerticalSpeedMph: math.Abs(vRate) * mphPerMS,
			TotalSpeedMph:    total * mphPerMS,
		}

		if surfaceFt != nil {
			surfaceM := *surfaceFt * geo.MetersPerFoot
			agl := b.Pos.AltM - surfaceM
			p.HeightAGLm = &agl

			if agl < touchdownMaxAGLm && vRate < 0 {
				tg := agl / -vRate
				dist := gSpeed * tg
				dest := geo.Traverse(*b.Pos, *b.TrackDeg, dist)
				dest.AltM = surfaceM
				p.Touchdown = &dest
				p.TimeToGroundSec = &tg
			}
		}

		out = append(out, p)
	}
	return out
}
