package track

import (
	"math"
	"time"

	"tempolog/internal/geo"
)

// Quaternion is the recorder's orientation estimate (w, x, y, z).
type Quaternion struct {
	W float64
	X float64
	Y float64
	Z float64
}

// FixEntry is one finalized sample, emitted per primary position sentence.
// Pointer fields are nil until the corresponding data has been seen;
// BaroAltFt is NaN until the close-time back-fill resolves it, and stays
// NaN for entries outside the barometric sample domain.
type FixEntry struct {
	Seq           int
	TimeOffsetSec float64
	Timestamp     *time.Time
	Pos           *geo.Position
	TrackDeg      *float64
	GroundKt      *float64

	BaroAltFt   float64
	PressureHPa *float64

	// RateOfDescentFpm is derived from consecutive GNSS altitudes;
	// positive means descending.
	RateOfDescentFpm *float64

	MeanAccel       *geo.Vector3
	PeakAccel       *geo.Vector3
	MeanRotation    *geo.Vector3
	PeakRotation    *geo.Vector3
	InertialSamples int

	Orientation *Quaternion
}

// AltitudeFt is the entry's best altitude: barometric (above surface)
// when the back-fill resolved one, otherwise GNSS MSL. NaN when neither
// is known.
func (e *FixEntry) AltitudeFt() float64 {
	if !math.IsNaN(e.BaroAltFt) {
		return e.BaroAltFt
	}
	if e.Pos != nil {
		return e.Pos.AltM * geo.FeetPerMeter
	}
	return math.NaN()
}

// StateTransition is one recorder-firmware state change notice.
type StateTransition struct {
	From string
	To   string
}

// Meta is the per-log metadata collected outside the fix sequence.
type Meta struct {
	FirmwareVersion string
	Build           string
	HardwareID      string

	StartTime          *time.Time
	SurfaceElevationFt *float64

	DiagnosticCount  int
	StateTransitions []StateTransition
	AltFixCount      int
	LastAltFix       *geo.Position
}

// Log is the complete result of reading one recorder log.
type Log struct {
	Entries []FixEntry
	Meta    Meta
}
