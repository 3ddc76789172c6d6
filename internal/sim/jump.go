// Package sim renders a deterministic synthetic jump as recorder
// sentences: level flight, exit, freefall to terminal, deployment,
// canopy ride and landing. Scenario tests and the CLI demo run on it.
package sim

import (
	"fmt"
	"math"
	"time"

	"tempolog/internal/nmea"
)

// Jump describes one synthetic skydive. Altitudes are ft MSL.
type Jump struct {
	Start time.Time // UTC anchor for RMC date/time

	LatDeg   float64
	LonDeg   float64
	TrackDeg float64

	SurfaceFt   float64
	ExitAltFt   float64
	DeployAltFt float64

	LevelSec    int
	GroundSec   int
	TerminalMph float64
	CanopyFpm   float64
}

// Default is a 13,500 ft jump over a 1,000 ft drop zone.
func Default() Jump {
	return Jump{
		Start:       time.Date(2025, time.June, 14, 10, 30, 0, 0, time.UTC),
		LatDeg:      43.765,
		LonDeg:      -91.234,
		TrackDeg:    270,
		SurfaceFt:   1000,
		ExitAltFt:   13500,
		DeployAltFt: 5000,
		LevelSec:    30,
		GroundSec:   15,
		TerminalMph: 120,
		CanopyFpm:   1000,
	}
}

const (
	phaseLevel = iota
	phaseFreefall
	phaseCanopy
	phaseGround
)

// Lines renders the whole jump at the device's nominal rates: 1 Hz GPS
// (RMC/VTG/GGA plus the post-fix time-hack), 4 Hz environment and 8 Hz
// inertial. Environment, inertial and orientation lines carry no
// checksum, matching the recorder's high-rate output.
func (j Jump) Lines() []string {
	out := []string{
		cks("PTMPV,1.4.2,2406,TEMPO-BT"),
		cks(fmt.Sprintf("PTMPS,%.0f", j.SurfaceFt)),
		cks("PTMPX,IDLE,ARMED"),
		cks("PTMPX,ARMED,LOGGING"),
		cks("PTMPD,session start"),
	}

	alt := j.ExitAltFt
	v := 0.0 // fpm, negative descending
	phase := phaseLevel
	groundLeft := j.GroundSec
	lat, lon := j.LatDeg, j.LonDeg

	terminalFpm := j.TerminalMph * 5280 / 60

	for t := 0; ; t++ {
		switch phase {
		case phaseLevel:
			if t >= j.LevelSec {
				phase = phaseFreefall
			}
		case phaseFreefall:
			if alt <= j.DeployAltFt {
				phase = phaseCanopy
			}
		case phaseCanopy:
			if alt <= j.SurfaceFt {
				alt = j.SurfaceFt
				v = 0
				phase = phaseGround
			}
		case phaseGround:
			groundLeft--
		}

		gs := j.groundSpeedKt(phase)
		now := j.Start.Add(time.Duration(t) * time.Second)
		devMs := 100000 + t*1000

		latS, latH := formatLat(lat)
		lonS, lonH := formatLon(lon)
		hms := now.Format("150405") + ".00"

		out = append(out,
			cks(fmt.Sprintf("GPRMC,%s,A,%s,%s,%s,%s,%.1f,%.1f,%s,,",
				hms, latS, latH, lonS, lonH, gs, j.TrackDeg, now.Format("020106"))),
			cks(fmt.Sprintf("GPVTG,%.1f,T,,M,%.1f,N,%.1f,K", j.TrackDeg, gs, gs*1.852)),
			cks(fmt.Sprintf("GPGGA,%s,%s,%s,%s,%s,1,10,0.9,%.1f,M,46.9,M,,",
				hms, latS, latH, lonS, lonH, alt*0.3048)),
			cks(fmt.Sprintf("PTMPT,%d", devMs)),
		)
		out = append(out, fmt.Sprintf("$PTMPQ,%d,1.0000,0.0000,0.0000,0.0000", devMs))

		for k := 0; k < 4; k++ {
			ms := devMs + k*250
			p := pressureHPa(alt)
			out = append(out, fmt.Sprintf("$PTMPE,%d,%.1f,%.0f,4.05", ms, p, alt))
		}
		ax, ay, az := j.accel(phase, t)
		for k := 0; k < 8; k++ {
			ms := devMs + k*125
			out = append(out, fmt.Sprintf("$PTMPI,%d,%.2f,%.2f,%.2f,0.01,0.02,0.01", ms, ax, ay, az))
		}

		if phase == phaseGround && groundLeft <= 0 {
			out = append(out, cks("PTMPX,LOGGING,IDLE"))
			return out
		}

		// Advance one second.
		switch phase {
		case phaseFreefall:
			v += (-terminalFpm - v) * (1 - math.Exp(-1.0/4))
		case phaseCanopy:
			target := -j.CanopyFpm
			if alt-j.SurfaceFt < 60 {
				target = -200 // flare
			}
			v += (target - v) * (1 - math.Exp(-1.0/1.2))
		default:
			v = 0
		}
		alt += v / 60
		lat, lon = advance(lat, lon, j.TrackDeg, gs)
	}
}

func (j Jump) groundSpeedKt(phase int) float64 {
	switch phase {
	case phaseLevel:
		return 90
	case phaseFreefall:
		return 8
	case phaseCanopy:
		return 12
	}
	return 0
}

func (j Jump) accel(phase int, t int) (x, y, z float64) {
	switch phase {
	case phaseFreefall:
		return 0.2, 0.1, 1.5
	case phaseCanopy:
		return 0.1, 0.1, 9.6
	}
	return 0.05, 0.05, 9.81
}

// pressureHPa follows the ISA barometric formula.
func pressureHPa(altFt float64) float64 {
	return 1013.25 * math.Pow(1-6.87559e-6*altFt, 5.2559)
}

// advance moves one second along the track at the given ground speed.
func advance(latDeg, lonDeg, trackDeg, gsKt float64) (float64, float64) {
	distM := gsKt * 0.5144444444444445
	rad := trackDeg * math.Pi / 180
	dNorth := distM * math.Cos(rad)
	dEast := distM * math.Sin(rad)
	latDeg += dNorth / 111320
	lonDeg += dEast / (111320 * math.Cos(latDeg*math.Pi/180))
	return latDeg, lonDeg
}

func cks(payload string) string {
	return fmt.Sprintf("$%s*%02X", payload, nmea.Checksum(payload))
}

func formatLat(deg float64) (string, string) {
	h := "N"
	if deg < 0 {
		h = "S"
		deg = -deg
	}
	d := math.Floor(deg)
	m := (deg - d) * 60
	return fmt.Sprintf("%02.0f%07.4f", d, m), h
}

func formatLon(deg float64) (string, string) {
	h := "E"
	if deg < 0 {
		h = "W"
		deg = -deg
	}
	d := math.Floor(deg)
	m := (deg - d) * 60
	return fmt.Sprintf("%03.0f%07.4f", d, m), h
}
