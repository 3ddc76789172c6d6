package jump

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/stat"

	"tempolog/internal/track"
)

// Analysis-window guard bands and histogram range.
const (
	DefaultExitGuardSec   = 12.0
	DefaultDeployGuardSec = 2.0

	BinMinMph = 90
	BinMaxMph = 200
)

// ErrNoWindow means exit or deployment was not detected, so there is no
// freefall window to bin.
var ErrNoWindow = errors.New("jump: no analysis window (exit or deployment not detected)")

// CalRow is one calibration table row.
type CalRow struct {
	AltitudeFt float64
	Factor     float64
}

// CalibrationTable maps altitude to a fall-rate calibration factor. Rows
// are ordered by strictly decreasing altitude, with saturating rows at
// the top (>= 20,000 ft) and at 0 ft.
type CalibrationTable []CalRow

// Factor returns the calibration factor at altFt, linearly interpolated
// between the bracketing rows and saturating at the extremes.
func (t CalibrationTable) Factor(altFt float64) float64 {
	if len(t) == 0 {
		return 1
	}
	if altFt >= t[0].AltitudeFt {
		return t[0].Factor
	}
	last := t[len(t)-1]
	if altFt <= last.AltitudeFt {
		return last.Factor
	}
	for i := 0; i < len(t)-1; i++ {
		hi, lo := t[i], t[i+1]
		if altFt <= hi.AltitudeFt && altFt >= lo.AltitudeFt {
			f := (altFt - lo.AltitudeFt) / (hi.AltitudeFt - lo.AltitudeFt)
			return lo.Factor + f*(hi.Factor-lo.Factor)
		}
	}
	return last.Factor
}

// DefaultCalibration approximates the square root of the standard-
// atmosphere density ratio, normalizing fall rates to a sea-level
// equivalent.
func DefaultCalibration() CalibrationTable {
	return CalibrationTable{
		{AltitudeFt: 20000, Factor: 0.730},
		{AltitudeFt: 15000, Factor: 0.796},
		{AltitudeFt: 10000, Factor: 0.859},
		{AltitudeFt: 5000, Factor: 0.928},
		{AltitudeFt: 2000, Factor: 0.971},
		{AltitudeFt: 0, Factor: 1.000},
	}
}

// Histogram accumulates elapsed seconds per 1-mph fall-rate bin over
// [BinMinMph, BinMaxMph].
type Histogram struct {
	SecondsPerMph [BinMaxMph - BinMinMph + 1]float64
	TotalSec      float64
}

func (h *Histogram) add(mph int, dt float64) {
	if mph < BinMinMph || mph > BinMaxMph {
		return
	}
	h.SecondsPerMph[mph-BinMinMph] += dt
	h.TotalSec += dt
}

// Seconds returns the time spent at the given fall rate.
func (h *Histogram) Seconds(mph int) float64 {
	if mph < BinMinMph || mph > BinMaxMph {
		return 0
	}
	return h.SecondsPerMph[mph-BinMinMph]
}

// MeanMph is the time-weighted mean fall rate; NaN for an empty histogram.
func (h *Histogram) MeanMph() float64 {
	if h.TotalSec <= 0 {
		return math.NaN()
	}
	xs := make([]float64, len(h.SecondsPerMph))
	for i := range xs {
		xs[i] = float64(BinMinMph + i)
	}
	return stat.Mean(xs, h.SecondsPerMph[:])
}

// MinMph and MaxMph are the slowest and fastest occupied bins.
func (h *Histogram) MinMph() (int, bool) {
	for i, s := range h.SecondsPerMph {
		if s > 0 {
			return BinMinMph + i, true
		}
	}
	return 0, false
}

func (h *Histogram) MaxMph() (int, bool) {
	for i := len(h.SecondsPerMph) - 1; i >= 0; i-- {
		if h.SecondsPerMph[i] > 0 {
			return BinMinMph + i, true
		}
	}
	return 0, false
}

// Profile is the binned fall-rate distribution for one freefall window.
type Profile struct {
	Raw        Histogram
	Calibrated Histogram

	WindowStartSec float64
	WindowEndSec   float64
}

// ProfileOptions configures BuildProfile. Zero values select the default
// calibration table and guard bands.
type ProfileOptions struct {
	Table          CalibrationTable
	ExitGuardSec   float64
	DeployGuardSec float64
}

// BuildProfile buckets elapsed time at each 1-mph fall rate across the
// analysis window [exit+guard, deployment-guard]. The first in-window
// entry contributes zero elapsed time; out-of-range rates are skipped
// without aborting the pass.
func BuildProfile(entries []track.FixEntry, ev Events, o ProfileOptions) (Profile, error) {
	if ev.ExitOffsetSec == nil || ev.DeploymentOffsetSec == nil {
		return Profile{}, ErrNoWindow
	}
	table := o.Table
	if table == nil {
		table = DefaultCalibration()
	}
	exitGuard := o.ExitGuardSec
	if exitGuard == 0 {
		exitGuard = DefaultExitGuardSec
	}
	deployGuard := o.DeployGuardSec
	if deployGuard == 0 {
		deployGuard = DefaultDeployGuardSec
	}

	p := Profile{
		WindowStartSec: *ev.ExitOffsetSec + exitGuard,
		WindowEndSec:   *ev.DeploymentOffsetSec - deployGuard,
	}
	if p.WindowEndSec <= p.WindowStartSec {
		return Profile{}, ErrNoWindow
	}

	prev := math.NaN()
	for i := range entries {
		e := &entries[i]
		if e.RateOfDescentFpm == nil {
			continue
		}
		off := e.TimeOffsetSec
		if off < p.WindowStartSec || off > p.WindowEndSec {
			continue
		}

		dt := 0.0
		if !math.IsNaN(prev) {
			dt = off - prev
		}
		prev = off

		raw := int(math.Round(*e.RateOfDescentFpm * 60 / 5280))
		p.Raw.add(raw, dt)

		factor := table.Factor(e.AltitudeFt())
		cal := int(math.Round(float64(raw) * factor))
		p.Calibrated.add(cal, dt)
	}
	return p, nil
}
