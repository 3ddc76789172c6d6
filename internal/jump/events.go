// Package jump derives jump-phase events, fall-rate statistics and
// per-sample projections from an already-parsed track.
package jump

import (
	"math"

	"tempolog/internal/track"
)

// Detection thresholds.
const (
	// exitVSpeedFpm is the vertical speed a full one-second window must
	// stay at or below to call an exit.
	exitVSpeedFpm = -2000.0
	// deployScanVSpeedFpm gates the deployment scan: decelerations are
	// only considered once the jumper has been falling faster than this.
	deployScanVSpeedFpm = -5000.0
	// activationVSpeedFpm is the recovery speed marking full activation.
	activationVSpeedFpm = -2000.0
	// deployAccelG is the windowed deceleration that marks deployment.
	deployAccelG = 0.25
	// landingAltFt / landingWindowSec / landingBandFpm define the
	// primary landing rule: below this altitude with a full window of
	// near-zero vertical speed.
	landingAltFt     = 500.0
	landingWindowSec = 10.0
	landingBandFpm   = 100.0
)

// gravityFpm2 is standard gravity expressed in ft/min².
const gravityFpm2 = 9.80665 * 3.280839895013123 * 3600

// Events holds the detected jump-phase offsets. A nil field means "not
// detected", which is distinct from a zero offset.
type Events struct {
	ExitOffsetSec       *float64
	ExitAltitudeFt      *float64
	DeploymentOffsetSec *float64
	DeployAltitudeFt    *float64
	ActivationOffsetSec *float64
	LandingOffsetSec    *float64
	MaxDescentRateFpm   *float64
}

// DetectExit finds the first sample opening a contiguous ~1-second window
// whose vertical speed stays at or below the exit threshold. It reports
// that first sample's offset and altitude, not the window's end.
func DetectExit(s track.Series, sampleRate float64) (offsetSec, altitudeFt *float64) {
	win := int(math.Round(sampleRate))
	if win < 1 {
		win = 1
	}
	for i := 0; i+win <= len(s.VSpeedFpm); i++ {
		all := true
		for j := i; j < i+win; j++ {
			if s.VSpeedFpm[j] > exitVSpeedFpm {
				all = false
				break
			}
		}
		if all {
			off := s.TimeSec[i]
			alt := s.AltitudeFt[i]
			return &off, &alt
		}
	}
	return nil, nil
}

// DetectDeployment locates deployment and activation. The scan starts at
// the first sample falling faster than the scan gate; deployment is the
// first sample whose windowed deceleration exceeds 0.25 g, and activation
// is the first later sample slower than the activation threshold.
func DetectDeployment(s track.Series, sampleRate float64) (deployOffsetSec, deployAltitudeFt, activationOffsetSec *float64) {
	start := -1
	for i, v := range s.VSpeedFpm {
		if v < deployScanVSpeedFpm {
			start = i
			break
		}
	}
	if start == -1 {
		return nil, nil, nil
	}

	win := int(math.Round(sampleRate * 0.1))
	if win < 1 {
		win = 1
	}
	threshold := deployAccelG * gravityFpm2

	deploy := -1
	for i := start; i+win < len(s.VSpeedFpm); i++ {
		dt := s.TimeSec[i+win] - s.TimeSec[i]
		if dt <= 0 {
			continue
		}
		decel := (s.VSpeedFpm[i+win] - s.VSpeedFpm[i]) / (dt / 60)
		if decel > threshold {
			deploy = i
			break
		}
	}
	if deploy == -1 {
		return nil, nil, nil
	}

	dOff := s.TimeSec[deploy]
	dAlt := s.AltitudeFt[deploy]
	for j := deploy; j < len(s.VSpeedFpm); j++ {
		if s.VSpeedFpm[j] > activationVSpeedFpm {
			aOff := s.TimeSec[j]
			return &dOff, &dAlt, &aOff
		}
	}
	return &dOff, &dAlt, nil
}

// DetectLanding returns the first sample below the landing altitude whose
// following full 10-second window keeps vertical speed inside ±100 ft/min.
// If no sample satisfies that, it falls back to the first altitude at or
// below zero.
func DetectLanding(s track.Series) *float64 {
	n := len(s.TimeSec)
	for i := 0; i < n; i++ {
		if math.IsNaN(s.AltitudeFt[i]) || s.AltitudeFt[i] >= landingAltFt {
			continue
		}
		if s.TimeSec[n-1]-s.TimeSec[i] < landingWindowSec {
			// Window runs past the end of the log.
			continue
		}
		calm := true
		for j := i; j < n && s.TimeSec[j] <= s.TimeSec[i]+landingWindowSec; j++ {
			if math.Abs(s.VSpeedFpm[j]) > landingBandFpm {
				calm = false
				break
			}
		}
		if calm {
			off := s.TimeSec[i]
			return &off
		}
	}
	for i := 0; i < n; i++ {
		if !math.IsNaN(s.AltitudeFt[i]) && s.AltitudeFt[i] <= 0 {
			off := s.TimeSec[i]
			return &off
		}
	}
	return nil
}

// Analyze runs the three detectors and, when both exit and deployment are
// known, the maximum descent-rate magnitude strictly between them.
func Analyze(s track.Series, sampleRate float64) Events {
	var ev Events
	ev.ExitOffsetSec, ev.ExitAltitudeFt = DetectExit(s, sampleRate)
	ev.DeploymentOffsetSec, ev.DeployAltitudeFt, ev.ActivationOffsetSec = DetectDeployment(s, sampleRate)
	ev.LandingOffsetSec = DetectLanding(s)

	if ev.ExitOffsetSec != nil && ev.DeploymentOffsetSec != nil {
		max := math.Inf(-1)
		found := false
		for i, t := range s.TimeSec {
			if t <= *ev.ExitOffsetSec || t >= *ev.DeploymentOffsetSec {
				continue
			}
			if d := -s.VSpeedFpm[i]; d > max {
				max = d
				found = true
			}
		}
		if found {
			ev.MaxDescentRateFpm = &max
		}
	}
	return ev
}
