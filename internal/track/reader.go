// Package track turns a recorder log into a fix-entry sequence and the
// series the jump analysis runs on. The Reader is the stateful half: it
// consumes lines one at a time, fuses the GNSS clock, the device
// millisecond counter and the barometric stream, and emits one FixEntry
// per primary position sentence.
package track

import (
	"io"
	"log/slog"
	"math"
	"time"

	"tempolog/internal/geo"
	"tempolog/internal/interp"
	"tempolog/internal/nmea"
)

// State is the Reader's position in the log. It only moves forward.
type State int

const (
	StateStart State = iota
	StateSeekingRMC
	StateNormal
	StateEnd
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "START"
	case StateSeekingRMC:
		return "SEEKING_RMC"
	case StateNormal:
		return "NORMAL"
	case StateEnd:
		return "END"
	}
	return "UNKNOWN"
}

// baroFilterLen is the length of the moving-average filter applied to
// environment altitude samples before they enter the barometric series.
const baroFilterLen = 4

// WithLogger sets the logger absorbed lines are reported to.
func WithLogger(logger *slog.Logger) func(*Reader) {
	return func(r *Reader) {
		r.logger = logger
	}
}

// Reader is the sentence state machine. One Reader serves one log; it is
// not safe for concurrent use, and independent logs get independent
// Readers.
type Reader struct {
	logger *slog.Logger

	state State
	seq   int

	// Tracked calendar day (UTC midnight) and the log's start instant.
	// The date is established by the first valid RMC and only moves on a
	// later RMC carrying a different date.
	date      time.Time
	dateOK    bool
	startTime time.Time
	// lastRMCTimeOfDay pairs with the freshly established date during
	// the SEEKING_RMC -> NORMAL transition.
	lastRMCTimeOfDay time.Duration

	// Pending-entry inputs, consumed by the next fix finalization.
	pendingTrackDeg *float64
	pendingGroundKt *float64
	pendingQuat     *Quaternion

	// Inertial accumulators since the last emitted fix.
	accelSum     geo.Vector3
	rotSum       geo.Vector3
	inertialN    int
	peakAccel    geo.Vector3
	peakAccelMag float64
	peakRot      geo.Vector3
	peakRotMag   float64

	// Barometric stream. The filter ring holds the last samples of the
	// environment altitude; the series grows only while a millisecond
	// correlation is live.
	baroRing     [baroFilterLen]float64
	baroRingN    int
	baroTimes    []float64
	baroAlts     []float64
	lastPressure *float64

	// Millisecond-clock correlation. A time-hack is honored only while
	// the latch armed by the previous fix is still set; the device
	// guarantees the hack directly follows the fix, and this code
	// depends on that ordering.
	expectTimeHack bool
	hackValid      bool
	hackMs         float64
	hackOffsetSec  float64
	lastFixOffset  float64

	// Previous GNSS altitude/offset pair for rate-of-descent.
	prevAltFt  float64
	prevOffset float64
	prevAltOK  bool

	entries []FixEntry
	meta    Meta

	closed bool
	log    Log
}

// NewReader returns an empty Reader in the START state.
func NewReader(options ...func(*Reader)) *Reader {
	r := &Reader{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, option := range options {
		option(r)
	}
	return r
}

// CurrentState reports the machine state.
func (r *Reader) CurrentState() State {
	return r.state
}

// Line consumes one raw log line. It never fails: lines that do not parse
// or do not apply in the current state are absorbed and logged.
func (r *Reader) Line(line string) {
	if r.state == StateEnd {
		return
	}

	s, err := nmea.Parse(nmea.Repair(line))
	if err != nil {
		if len(line) > 0 {
			r.logger.Debug("absorbed unparseable line", "err", err, "line", line)
		}
		return
	}

	switch r.state {
	case StateStart:
		r.lineStart(s)
	case StateSeekingRMC:
		r.lineSeeking(s)
	case StateNormal:
		r.lineNormal(s)
	}
}

// Close moves the Reader to END and performs the one-time barometric
// back-fill across every collected entry. Closing twice returns the same
// Log.
func (r *Reader) Close() Log {
	if r.closed {
		return r.log
	}
	r.closed = true
	r.state = StateEnd

	for i := range r.entries {
		r.entries[i].BaroAltFt = interp.Interp1(r.baroTimes, r.baroAlts, r.entries[i].TimeOffsetSec)
	}

	r.log = Log{Entries: r.entries, Meta: r.meta}
	return r.log
}

// BaroSeries exposes the collected barometric sample series (offset
// seconds, filtered altitude ft).
func (r *Reader) BaroSeries() (times, altsFt []float64) {
	return r.baroTimes, r.baroAlts
}

func (r *Reader) lineStart(s nmea.Sentence) {
	switch s.Type {
	case "PTMPV":
		r.applyVersion(s)
		r.state = StateSeekingRMC
	case "PTMPS":
		r.applySurface(s)
	default:
		r.logger.Debug("ignored in START", "type", s.Type)
	}
}

func (r *Reader) lineSeeking(s nmea.Sentence) {
	switch s.Type {
	case "RMC":
		if !r.applyRMC(s) {
			return
		}
		// First valid date+time anchors the log.
		r.startTime = r.date.Add(r.lastRMCTimeOfDay)
		st := r.startTime
		r.meta.StartTime = &st
		r.resetInertial()
		r.pendingTrackDeg = nil
		r.pendingGroundKt = nil
		r.pendingQuat = nil
		r.state = StateNormal
	case "PTMPV":
		r.applyVersion(s)
	case "PTMPS":
		r.applySurface(s)
	case "PTMPD":
		r.meta.DiagnosticCount++
	case "PTMPX":
		r.applyStateNotice(s)
	default:
	}
}

func (r *Reader) lineNormal(s nmea.Sentence) {
	switch s.Type {
	case "RMC":
		r.applyRMC(s)
	case "VTG":
		r.applyVTG(s)
	case "GGA":
		r.finalizeFix(s)
	case "PTMPE":
		r.applyEnvironment(s)
	case "PTMPI":
		r.applyInertial(s)
	case "PTMPQ":
		r.applyQuaternion(s)
	case "PTMPT":
		r.applyTimeHack(s)
	case "PTMPF":
		r.applyAltFix(s)
	case "PTMPS":
		r.applySurface(s)
	case "PTMPV":
		r.applyVersion(s)
	case "PTMPD":
		r.meta.DiagnosticCount++
	case "PTMPX":
		r.applyStateNotice(s)
	default:
		r.logger.Debug("unrecognized sentence", "type", s.Type)
	}
}

func (r *Reader) applyVersion(s nmea.Sentence) {
	if len(s.Fields) > 1 {
		r.meta.FirmwareVersion = s.Fields[1]
	}
	if len(s.Fields) > 2 {
		r.meta.Build = s.Fields[2]
	}
	if len(s.Fields) > 3 {
		r.meta.HardwareID = s.Fields[3]
	}
}

func (r *Reader) applySurface(s nmea.Sentence) {
	if len(s.Fields) < 2 {
		return
	}
	if ft, ok := nmea.ParseFloat(s.Fields[1]); ok {
		r.meta.SurfaceElevationFt = &ft
	}
}

// applyRMC refreshes the tracked calendar date from a valid RMC. Returns
// true when the sentence carried a usable date and time.
func (r *Reader) applyRMC(s nmea.Sentence) bool {
	f := s.Fields
	if len(f) < 10 {
		return false
	}
	if f[2] != "A" {
		// Void fix: the date is not trusted.
		return false
	}
	tod, todOK := nmea.ParseTimeOfDay(f[1])
	date, dateOK := nmea.ParseDate(f[9])
	if !todOK || !dateOK {
		return false
	}
	r.date = date
	r.dateOK = true
	r.lastRMCTimeOfDay = tod
	return true
}

func (r *Reader) applyVTG(s nmea.Sentence) {
	f := s.Fields
	if len(f) < 6 {
		return
	}
	if trk, ok := nmea.ParseFloat(f[1]); ok {
		trk = math.Mod(trk+360, 360)
		r.pendingTrackDeg = &trk
	}
	if kt, ok := nmea.ParseFloat(f[5]); ok {
		r.pendingGroundKt = &kt
	}
}

// finalizeFix turns the pending entry into an emitted FixEntry. With no
// established date the sentence is dropped entirely; an entry is never
// emitted with a placeholder offset.
func (r *Reader) finalizeFix(s nmea.Sentence) {
	f := s.Fields
	if len(f) < 10 || !r.dateOK {
		return
	}
	tod, todOK := nmea.ParseTimeOfDay(f[1])
	if !todOK {
		return
	}
	if q := f[6]; q == "" || q == "0" {
		return
	}
	lat, latOK := nmea.ParseLatLon(f[2], f[3])
	lon, lonOK := nmea.ParseLatLon(f[4], f[5])
	altM, altOK := nmea.ParseFloat(f[9])
	if !latOK || !lonOK || !altOK {
		return
	}

	// Combine the tracked date with the sentence's time-of-day; the GGA
	// itself carries no date, and re-deriving the timestamp here keeps
	// the offset in sync across a day rollover.
	ts := r.date.Add(tod)
	offset := ts.Sub(r.startTime).Seconds()
	if offset < r.lastFixOffset {
		// Offsets never decrease across emitted entries.
		offset = r.lastFixOffset
	}

	altFt := altM * geo.FeetPerMeter
	var rod *float64
	if r.prevAltOK && offset > r.prevOffset {
		v := -(altFt - r.prevAltFt) / ((offset - r.prevOffset) / 60)
		rod = &v
	}
	r.prevAltFt = altFt
	r.prevOffset = offset
	r.prevAltOK = true

	e := FixEntry{
		Seq:              r.seq,
		TimeOffsetSec:    offset,
		Timestamp:        &ts,
		Pos:              &geo.Position{LatDeg: lat, LonDeg: lon, AltM: altM},
		TrackDeg:         r.pendingTrackDeg,
		GroundKt:         r.pendingGroundKt,
		BaroAltFt:        math.NaN(),
		PressureHPa:      r.lastPressure,
		RateOfDescentFpm: rod,
		Orientation:      r.pendingQuat,
		InertialSamples:  r.inertialN,
	}
	if r.inertialN > 0 {
		mean := r.accelSum.Scale(1 / float64(r.inertialN))
		meanRot := r.rotSum.Scale(1 / float64(r.inertialN))
		peak := r.peakAccel
		peakRot := r.peakRot
		e.MeanAccel = &mean
		e.MeanRotation = &meanRot
		e.PeakAccel = &peak
		e.PeakRotation = &peakRot
	}

	r.seq++
	r.entries = append(r.entries, e)
	r.lastFixOffset = offset
	r.expectTimeHack = true

	r.resetInertial()
	r.pendingTrackDeg = nil
	r.pendingGroundKt = nil
	r.pendingQuat = nil
}

func (r *Reader) applyEnvironment(s nmea.Sentence) {
	f := s.Fields
	if len(f) < 4 {
		return
	}
	ms, msOK := nmea.ParseFloat(f[1])
	altFt, altOK := nmea.ParseFloat(f[3])
	if !msOK || !altOK {
		return
	}
	if p, ok := nmea.ParseFloat(f[2]); ok {
		r.lastPressure = &p
	}

	r.baroRing[r.baroRingN%baroFilterLen] = altFt
	r.baroRingN++
	n := r.baroRingN
	if n > baroFilterLen {
		n = baroFilterLen
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += r.baroRing[i]
	}
	filtered := sum / float64(n)

	// The series carries height above the surveyed surface, so the
	// landing detectors can work against a 0-ft ground.
	if r.meta.SurfaceElevationFt != nil {
		filtered -= *r.meta.SurfaceElevationFt
	}

	// Without a millisecond correlation the sample cannot be placed on
	// the log timeline; it still advances the filter.
	if !r.hackValid {
		return
	}
	offset := r.hackOffsetSec + (ms-r.hackMs)/1000
	if len(r.baroTimes) > 0 && offset < r.baroTimes[len(r.baroTimes)-1] {
		r.logger.Debug("dropped non-monotonic baro sample", "offset", offset)
		return
	}
	r.baroTimes = append(r.baroTimes, offset)
	r.baroAlts = append(r.baroAlts, filtered)
}

func (r *Reader) applyInertial(s nmea.Sentence) {
	f := s.Fields
	if len(f) < 8 {
		return
	}
	var v [6]float64
	for i := 0; i < 6; i++ {
		x, ok := nmea.ParseFloat(f[2+i])
		if !ok {
			return
		}
		v[i] = x
	}
	a := geo.Vector3{X: v[0], Y: v[1], Z: v[2]}
	w := geo.Vector3{X: v[3], Y: v[4], Z: v[5]}

	r.accelSum = r.accelSum.Add(a)
	r.rotSum = r.rotSum.Add(w)
	r.inertialN++

	if m := a.Magnitude(); m > r.peakAccelMag {
		r.peakAccelMag = m
		r.peakAccel = a
	}
	if m := w.Magnitude(); m > r.peakRotMag {
		r.peakRotMag = m
		r.peakRot = w
	}
}

func (r *Reader) applyQuaternion(s nmea.Sentence) {
	f := s.Fields
	if len(f) < 6 {
		return
	}
	var v [4]float64
	for i := 0; i < 4; i++ {
		x, ok := nmea.ParseFloat(f[2+i])
		if !ok {
			return
		}
		v[i] = x
	}
	r.pendingQuat = &Quaternion{W: v[0], X: v[1], Y: v[2], Z: v[3]}
}

// applyTimeHack establishes the millisecond-clock to offset-seconds
// correlation. Only the hack directly following a fix is honored; the
// latch exists because the hack's device-ms is anchored to that fix's
// offset, which is wrong for a hack arriving anywhere else.
func (r *Reader) applyTimeHack(s nmea.Sentence) {
	if !r.expectTimeHack {
		r.logger.Debug("time-hack outside latch window")
		return
	}
	f := s.Fields
	if len(f) < 2 {
		return
	}
	ms, ok := nmea.ParseFloat(f[1])
	if !ok {
		return
	}
	r.hackMs = ms
	r.hackOffsetSec = r.lastFixOffset
	r.hackValid = true
	r.expectTimeHack = false
}

func (r *Reader) applyAltFix(s nmea.Sentence) {
	f := s.Fields
	if len(f) < 8 {
		return
	}
	r.meta.AltFixCount++
	lat, latOK := nmea.ParseLatLon(f[3], f[4])
	lon, lonOK := nmea.ParseLatLon(f[5], f[6])
	altM, altOK := nmea.ParseFloat(f[7])
	if latOK && lonOK && altOK {
		r.meta.LastAltFix = &geo.Position{LatDeg: lat, LonDeg: lon, AltM: altM}
	}
}

func (r *Reader) applyStateNotice(s nmea.Sentence) {
	f := s.Fields
	if len(f) < 3 {
		return
	}
	r.meta.StateTransitions = append(r.meta.StateTransitions, StateTransition{From: f[1], To: f[2]})
}

func (r *Reader) resetInertial() {
	r.accelSum = geo.Vector3{}
	r.rotSum = geo.Vector3{}
	r.inertialN = 0
	r.peakAccel = geo.Vector3{}
	r.peakAccelMag = 0
	r.peakRot = geo.Vector3{}
	r.peakRotMag = 0
}
