package main

import (
	"fmt"
	"io"
	"math"

	"github.com/dustin/go-humanize"

	"tempolog/internal/jump"
	"tempolog/internal/track"
)

func printValidation(w io.Writer, path string, size int, v track.Validation) {
	fmt.Fprintf(w, "path: %s\n", path)
	fmt.Fprintf(w, "size: %s\n", humanize.Bytes(uint64(size)))
	fmt.Fprintf(w, "valid: %v\n", v.Valid)
	fmt.Fprintf(w, "message: %s\n", v.Message)
	if v.StartDate != nil {
		fmt.Fprintf(w, "start_date: %s\n", v.StartDate.UTC().Format("2006-01-02 15:04:05"))
	}
	if v.StartLocation != nil {
		fmt.Fprintf(w, "start_location: %.5f,%.5f\n", v.StartLocation.LatDeg, v.StartLocation.LonDeg)
	}
}

func printSummary(w io.Writer, path string, size int, res track.SeriesResult, ev jump.Events, p jump.Profile, profileErr error) {
	fmt.Fprintf(w, "path: %s\n", path)
	fmt.Fprintf(w, "size: %s\n", humanize.Bytes(uint64(size)))
	fmt.Fprintf(w, "entries: %d\n", len(res.Log.Entries))
	fmt.Fprintf(w, "duration: %.1fs\n", res.DurationSec)
	fmt.Fprintf(w, "sample_rate: %.2f Hz\n", res.SampleRate)

	m := res.Log.Meta
	if m.FirmwareVersion != "" {
		fmt.Fprintf(w, "firmware: %s (build %s, %s)\n", m.FirmwareVersion, m.Build, m.HardwareID)
	}
	if m.StartTime != nil {
		fmt.Fprintf(w, "start: %s\n", m.StartTime.UTC().Format("2006-01-02 15:04:05"))
	}
	if m.SurfaceElevationFt != nil {
		fmt.Fprintf(w, "surface: %.0f ft\n", *m.SurfaceElevationFt)
	}
	if m.DiagnosticCount > 0 {
		fmt.Fprintf(w, "diagnostics: %d\n", m.DiagnosticCount)
	}

	printOffset(w, "exit", ev.ExitOffsetSec, ev.ExitAltitudeFt)
	printOffset(w, "deployment", ev.DeploymentOffsetSec, ev.DeployAltitudeFt)
	printOffset(w, "activation", ev.ActivationOffsetSec, nil)
	printOffset(w, "landing", ev.LandingOffsetSec, nil)
	if ev.MaxDescentRateFpm != nil {
		fmt.Fprintf(w, "max_descent: %.0f fpm\n", *ev.MaxDescentRateFpm)
	}

	if profileErr != nil {
		fmt.Fprintf(w, "fall_rate: n/a (%v)\n", profileErr)
		return
	}
	fmt.Fprintf(w, "freefall_window: %.1fs .. %.1fs\n", p.WindowStartSec, p.WindowEndSec)
	printHistogram(w, "raw", &p.Raw)
	printHistogram(w, "calibrated", &p.Calibrated)
}

func printOffset(w io.Writer, name string, offsetSec, altitudeFt *float64) {
	if offsetSec == nil {
		fmt.Fprintf(w, "%s: not detected\n", name)
		return
	}
	if altitudeFt != nil && !math.IsNaN(*altitudeFt) {
		fmt.Fprintf(w, "%s: %.1fs at %.0f ft\n", name, *offsetSec, *altitudeFt)
		return
	}
	fmt.Fprintf(w, "%s: %.1fs\n", name, *offsetSec)
}

func printHistogram(w io.Writer, name string, h *jump.Histogram) {
	if h.TotalSec <= 0 {
		fmt.Fprintf(w, "%s_fall_rate: no samples\n", name)
		return
	}
	min, _ := h.MinMph()
	max, _ := h.MaxMph()
	fmt.Fprintf(w, "%s_fall_rate: mean %.1f mph (min %d, max %d, %.1fs binned)\n",
		name, h.MeanMph(), min, max, h.TotalSec)
}
