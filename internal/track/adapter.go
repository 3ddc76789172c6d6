package track

import (
	"bufio"
	"bytes"
	"fmt"
	"time"

	"tempolog/internal/geo"
	"tempolog/internal/nmea"
)

// Buffer size gates, applied before any parsing.
const (
	MinLogBytes = 100
	MaxLogBytes = 16 << 20
	// validatePrefixBytes caps how much of a buffer the validate-only
	// scan will read.
	validatePrefixBytes = 64 << 10
)

// Series is the fix-entry sequence projected into aligned named series.
// VSpeedFpm is positive when climbing; entries with no known rate carry 0.
// AltitudeFt prefers barometric altitude and falls back to GNSS; NaN when
// neither is known.
type Series struct {
	TimeSec    []float64
	AltitudeFt []float64
	VSpeedFpm  []float64
	Positions  []*geo.Position
}

// SeriesResult is the adapter's always-returned outcome. Valid is false
// for a log with no usable entries, with Message saying why; the adapter
// never propagates a parse failure.
type SeriesResult struct {
	Valid   bool
	Message string

	Log    Log
	Series Series

	DurationSec float64
	SampleRate  float64
}

// BuildSeries drives a fresh Reader across the whole buffer, closes it,
// and projects the entries into series. Any panic raised during the pass
// is converted into an invalid result carrying the diagnostic message.
func BuildSeries(buf []byte, options ...func(*Reader)) (res SeriesResult) {
	defer func() {
		if p := recover(); p != nil {
			res = SeriesResult{Message: fmt.Sprintf("no valid data: %v", p)}
		}
	}()

	r := NewReader(options...)
	sc := bufio.NewScanner(bytes.NewReader(buf))
	sc.Buffer(make([]byte, 0, 4096), 1<<20)
	for sc.Scan() {
		r.Line(sc.Text())
	}
	lg := r.Close()

	if len(lg.Entries) == 0 {
		return SeriesResult{Message: "no valid GPS data in log", Log: lg}
	}

	s := Series{
		TimeSec:    make([]float64, len(lg.Entries)),
		AltitudeFt: make([]float64, len(lg.Entries)),
		VSpeedFpm:  make([]float64, len(lg.Entries)),
		Positions:  make([]*geo.Position, len(lg.Entries)),
	}
	for i := range lg.Entries {
		e := &lg.Entries[i]
		s.TimeSec[i] = e.TimeOffsetSec
		s.AltitudeFt[i] = e.AltitudeFt()
		if e.RateOfDescentFpm != nil {
			s.VSpeedFpm[i] = -*e.RateOfDescentFpm
		}
		s.Positions[i] = e.Pos
	}

	duration := s.TimeSec[len(s.TimeSec)-1] - s.TimeSec[0]
	rate := 0.0
	if duration > 0 {
		rate = float64(len(lg.Entries)) / duration
	}

	return SeriesResult{
		Valid:       true,
		Log:         lg,
		Series:      s,
		DurationSec: duration,
		SampleRate:  rate,
	}
}

// Validation is the outcome of the cheap validate-only scan.
type Validation struct {
	Valid   bool
	Message string

	StartDate     *time.Time
	StartLocation *geo.Position
}

// Validate inspects only a size-bounded prefix of the buffer: enough to
// establish whether the log carries a recorder header, a GPS date and a
// starting position, without paying for a full parse.
func Validate(buf []byte) Validation {
	switch {
	case len(buf) == 0:
		return Validation{Message: "log is empty"}
	case len(buf) < MinLogBytes:
		return Validation{Message: fmt.Sprintf("log too small (%d bytes)", len(buf))}
	case len(buf) > MaxLogBytes:
		return Validation{Message: fmt.Sprintf("log too large (%d bytes)", len(buf))}
	}

	prefix := buf
	if len(prefix) > validatePrefixBytes {
		prefix = prefix[:validatePrefixBytes]
	}

	r := NewReader()
	recognized := 0
	sc := bufio.NewScanner(bytes.NewReader(prefix))
	sc.Buffer(make([]byte, 0, 4096), 1<<20)
	for sc.Scan() {
		line := sc.Text()
		if _, err := nmea.Parse(nmea.Repair(line)); err == nil {
			recognized++
		}
		r.Line(line)
		if len(r.entries) > 0 {
			break
		}
	}

	if len(r.entries) > 0 {
		e := r.entries[0]
		return Validation{
			Valid:         true,
			Message:       "log contains valid GPS data",
			StartDate:     e.Timestamp,
			StartLocation: e.Pos,
		}
	}
	if r.dateOK {
		st := r.startTime
		return Validation{
			Valid:     true,
			Message:   "GPS date found but no position fix in preview",
			StartDate: &st,
		}
	}
	if r.meta.FirmwareVersion != "" || r.CurrentState() != StateStart {
		return Validation{Message: "recorder header found but no GPS data"}
	}
	if recognized > 0 {
		return Validation{Message: "no GPS date found"}
	}
	return Validation{Message: "no recognizable sentences; not a recorder log"}
}
