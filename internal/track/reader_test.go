package track

import (
	"fmt"
	"math"
	"testing"
	"time"

	"tempolog/internal/nmea"
)

func cks(payload string) string {
	return fmt.Sprintf("$%s*%02X", payload, nmea.Checksum(payload))
}

func header() []string {
	return []string{
		cks("PTMPV,1.4.2,2406,TEMPO-BT"),
		cks("PTMPS,1000"),
	}
}

func rmc(hms, dmy string) string {
	return cks(fmt.Sprintf("GPRMC,%s,A,4345.9000,N,09114.0400,W,90.0,270.0,%s,,", hms, dmy))
}

func gga(hms string, altM float64) string {
	return cks(fmt.Sprintf("GPGGA,%s,4345.9000,N,09114.0400,W,1,10,0.9,%.1f,M,46.9,M,,", hms, altM))
}

func vtg(trackDeg, kt float64) string {
	return cks(fmt.Sprintf("GPVTG,%.1f,T,,M,%.1f,N,%.1f,K", trackDeg, kt, kt*1.852))
}

func feed(r *Reader, lines ...string) {
	for _, l := range lines {
		r.Line(l)
	}
}

func TestReaderEmptyClose(t *testing.T) {
	r := NewReader()
	lg := r.Close()
	if len(lg.Entries) != 0 {
		t.Fatalf("expected zero entries, got %d", len(lg.Entries))
	}
	if r.CurrentState() != StateEnd {
		t.Fatalf("state = %v, want END", r.CurrentState())
	}
}

func TestReaderGarbageAbsorbed(t *testing.T) {
	r := NewReader()
	garbage := []string{
		"", "free text", "$", "$*", "$GPRMC,corrupt*ZZ",
		cks("PXXXX,unknown,tag"),
	}
	feed(r, garbage...)
	if r.CurrentState() != StateStart {
		t.Fatalf("garbage changed state to %v", r.CurrentState())
	}
	feed(r, header()...)
	if r.CurrentState() != StateSeekingRMC {
		t.Fatalf("state = %v, want SEEKING_RMC", r.CurrentState())
	}
	feed(r, garbage...)
	if r.CurrentState() != StateSeekingRMC {
		t.Fatalf("garbage changed state to %v", r.CurrentState())
	}
	lg := r.Close()
	if len(lg.Entries) != 0 {
		t.Fatalf("garbage produced entries: %d", len(lg.Entries))
	}
}

func TestReaderStartAcceptsOnlyHeaderSentences(t *testing.T) {
	r := NewReader()
	// A fix stream with no version header never leaves START.
	feed(r, rmc("120000.00", "140625"), gga("120001.00", 1200))
	if r.CurrentState() != StateStart {
		t.Fatalf("state = %v, want START", r.CurrentState())
	}
	if len(r.Close().Entries) != 0 {
		t.Fatalf("entries emitted without header")
	}
}

func TestReaderFixBeforeDateDropped(t *testing.T) {
	r := NewReader()
	feed(r, header()...)
	feed(r, gga("120001.00", 1200))
	if got := len(r.entries); got != 0 {
		t.Fatalf("fix emitted before a date was established: %d entries", got)
	}
}

func TestReaderBasicFlow(t *testing.T) {
	r := NewReader()
	feed(r, header()...)
	feed(r,
		rmc("120000.00", "140625"),
		vtg(270, 90),
		gga("120001.00", 1200),
		gga("120002.00", 1190),
	)
	lg := r.Close()
	if len(lg.Entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(lg.Entries))
	}

	a, b := lg.Entries[0], lg.Entries[1]
	if a.Seq != 0 || b.Seq != 1 {
		t.Fatalf("sequence numbers %d,%d", a.Seq, b.Seq)
	}
	if a.TimeOffsetSec != 1 || b.TimeOffsetSec != 2 {
		t.Fatalf("offsets %v,%v want 1,2", a.TimeOffsetSec, b.TimeOffsetSec)
	}
	want := time.Date(2025, time.June, 14, 12, 0, 1, 0, time.UTC)
	if a.Timestamp == nil || !a.Timestamp.Equal(want) {
		t.Fatalf("timestamp %v, want %v", a.Timestamp, want)
	}
	if a.TrackDeg == nil || *a.TrackDeg != 270 {
		t.Fatalf("track %v, want 270", a.TrackDeg)
	}
	if a.GroundKt == nil || *a.GroundKt != 90 {
		t.Fatalf("ground speed %v, want 90", a.GroundKt)
	}
	// VTG applies to the entry it precedes; the next one starts clean.
	if b.TrackDeg != nil || b.GroundKt != nil {
		t.Fatalf("pending track/speed leaked into next entry")
	}
	if a.RateOfDescentFpm != nil {
		t.Fatalf("first entry has a rate of descent")
	}
	// 10 m lost over 1 s: 10*3.2808 ft * 60 = ~1968 fpm down.
	if b.RateOfDescentFpm == nil || math.Abs(*b.RateOfDescentFpm-1968.5) > 1 {
		t.Fatalf("rate of descent %v, want ~1968.5", b.RateOfDescentFpm)
	}
	if lg.Meta.SurfaceElevationFt == nil || *lg.Meta.SurfaceElevationFt != 1000 {
		t.Fatalf("surface elevation %v, want 1000", lg.Meta.SurfaceElevationFt)
	}
	if lg.Meta.FirmwareVersion != "1.4.2" {
		t.Fatalf("firmware %q", lg.Meta.FirmwareVersion)
	}
}

func TestReaderOffsetsNeverDecrease(t *testing.T) {
	r := NewReader()
	feed(r, header()...)
	feed(r,
		rmc("120010.00", "140625"),
		gga("120011.00", 1200),
		gga("120009.00", 1200), // device clock glitch
		gga("120012.00", 1200),
	)
	lg := r.Close()
	if len(lg.Entries) != 3 {
		t.Fatalf("entries = %d, want 3", len(lg.Entries))
	}
	prev := math.Inf(-1)
	for i, e := range lg.Entries {
		if e.TimeOffsetSec < prev {
			t.Fatalf("offset decreased at %d: %v < %v", i, e.TimeOffsetSec, prev)
		}
		prev = e.TimeOffsetSec
	}
	if lg.Entries[1].TimeOffsetSec != lg.Entries[0].TimeOffsetSec {
		t.Fatalf("glitched offset %v, want clamp to %v",
			lg.Entries[1].TimeOffsetSec, lg.Entries[0].TimeOffsetSec)
	}
}

func TestReaderDayRollover(t *testing.T) {
	r := NewReader()
	feed(r, header()...)
	feed(r,
		rmc("235959.00", "140625"),
		gga("235959.00", 1200),
		rmc("000001.00", "150625"),
		gga("000001.00", 1200),
	)
	lg := r.Close()
	if len(lg.Entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(lg.Entries))
	}
	if got := lg.Entries[1].TimeOffsetSec; got != 2 {
		t.Fatalf("post-rollover offset %v, want 2", got)
	}
}

func TestReaderTimeHackLatch(t *testing.T) {
	r := NewReader()
	feed(r, header()...)
	feed(r, rmc("120000.00", "140625"))

	// Hack with no preceding fix: ignored, so env samples stay unplaced.
	feed(r, cks("PTMPT,100000"), "$PTMPE,100100,1013.2,1500,4.0")
	if times, _ := r.BaroSeries(); len(times) != 0 {
		t.Fatalf("baro series grew without a correlation: %d", len(times))
	}

	feed(r, gga("120005.00", 1200)) // arms the latch, offset 5
	feed(r, cks("PTMPT,200000"))
	feed(r, "$PTMPE,200250,1013.2,1500,4.0")
	times, _ := r.BaroSeries()
	if len(times) != 1 || math.Abs(times[0]-5.25) > 1e-9 {
		t.Fatalf("baro times %v, want [5.25]", times)
	}

	// The latch was consumed; a stray second hack must not re-anchor.
	feed(r, cks("PTMPT,999999"))
	feed(r, "$PTMPE,200500,1013.2,1500,4.0")
	times, _ = r.BaroSeries()
	if len(times) != 2 || math.Abs(times[1]-5.5) > 1e-9 {
		t.Fatalf("baro times %v, want second sample at 5.5", times)
	}
}

func TestReaderBaroBackfillHeightAboveSurface(t *testing.T) {
	r := NewReader()
	feed(r, header()...) // surface 1000 ft
	feed(r, rmc("120000.00", "140625"))
	feed(r, gga("120001.00", 500), cks("PTMPT,100000"))
	for i := 0; i < 20; i++ {
		feed(r, fmt.Sprintf("$PTMPE,%d,925.0,1500,4.0", 100000+i*250))
	}
	feed(r, gga("120003.00", 480))
	lg := r.Close()

	if len(lg.Entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(lg.Entries))
	}
	// Constant 1500 ft environment over a 1000 ft surface: ~500 ft.
	got := lg.Entries[1].BaroAltFt
	if math.IsNaN(got) || math.Abs(got-500) > 10 {
		t.Fatalf("baro alt %v, want ~500", got)
	}
}

func TestReaderBaroNaNOutsideDomain(t *testing.T) {
	r := NewReader()
	feed(r, header()...)
	feed(r, rmc("120000.00", "140625"))
	feed(r, gga("120001.00", 1200), cks("PTMPT,100000"))
	// Baro samples begin 4 s after the first fix.
	for i := 0; i < 8; i++ {
		feed(r, fmt.Sprintf("$PTMPE,%d,925.0,1500,4.0", 104000+i*250))
	}
	feed(r, gga("120006.00", 1180))
	lg := r.Close()

	if !math.IsNaN(lg.Entries[0].BaroAltFt) {
		t.Fatalf("entry before the baro domain resolved to %v, want NaN", lg.Entries[0].BaroAltFt)
	}
	if math.IsNaN(lg.Entries[1].BaroAltFt) {
		t.Fatalf("entry inside the baro domain resolved to NaN")
	}
}

func TestReaderInertialAccumulators(t *testing.T) {
	r := NewReader()
	feed(r, header()...)
	feed(r, rmc("120000.00", "140625"))
	feed(r,
		"$PTMPI,100000,1.00,0.00,9.00,0.10,0.00,0.00",
		"$PTMPI,100125,3.00,0.00,11.00,0.30,0.00,0.00",
		gga("120001.00", 1200),
		gga("120002.00", 1200),
	)
	lg := r.Close()
	if len(lg.Entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(lg.Entries))
	}

	a := lg.Entries[0]
	if a.InertialSamples != 2 {
		t.Fatalf("samples = %d, want 2", a.InertialSamples)
	}
	if a.MeanAccel == nil || a.MeanAccel.X != 2 || a.MeanAccel.Z != 10 {
		t.Fatalf("mean accel %+v, want {2 0 10}", a.MeanAccel)
	}
	if a.PeakAccel == nil || a.PeakAccel.X != 3 || a.PeakAccel.Z != 11 {
		t.Fatalf("peak accel %+v, want the larger sample", a.PeakAccel)
	}
	if a.MeanRotation == nil || math.Abs(a.MeanRotation.X-0.2) > 1e-12 {
		t.Fatalf("mean rotation %+v, want X=0.2", a.MeanRotation)
	}

	// Accumulators reset per entry.
	b := lg.Entries[1]
	if b.InertialSamples != 0 || b.MeanAccel != nil {
		t.Fatalf("accumulators leaked into next entry: %+v", b)
	}
}

func TestReaderMetadataSentences(t *testing.T) {
	r := NewReader()
	feed(r, header()...)
	feed(r, rmc("120000.00", "140625"))
	feed(r,
		cks("PTMPD,battery check ok"),
		cks("PTMPX,ARMED,LOGGING"),
		cks("PTMPF,100000,120000.50,4345.9000,N,09114.0400,W,370.5,1,0.9,1.2"),
	)
	lg := r.Close()
	if lg.Meta.DiagnosticCount != 1 {
		t.Fatalf("diagnostics = %d, want 1", lg.Meta.DiagnosticCount)
	}
	if len(lg.Meta.StateTransitions) != 1 || lg.Meta.StateTransitions[0].To != "LOGGING" {
		t.Fatalf("transitions %+v", lg.Meta.StateTransitions)
	}
	if lg.Meta.AltFixCount != 1 || lg.Meta.LastAltFix == nil {
		t.Fatalf("alt fix not recorded: %+v", lg.Meta)
	}
	if math.Abs(lg.Meta.LastAltFix.AltM-370.5) > 1e-9 {
		t.Fatalf("alt fix altitude %v", lg.Meta.LastAltFix.AltM)
	}
}

func TestReaderCloseTwice(t *testing.T) {
	r := NewReader()
	feed(r, header()...)
	feed(r, rmc("120000.00", "140625"), gga("120001.00", 1200))
	first := r.Close()
	second := r.Close()
	if len(first.Entries) != 1 || len(second.Entries) != 1 {
		t.Fatalf("close not idempotent: %d vs %d", len(first.Entries), len(second.Entries))
	}
	r.Line(gga("120002.00", 1200))
	if len(r.Close().Entries) != 1 {
		t.Fatalf("lines accepted after END")
	}
}
