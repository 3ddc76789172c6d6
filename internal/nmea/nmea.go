// Package nmea handles the recorder's sentence envelope: $PAYLOAD*CC with a
// two-hex-digit XOR checksum, plus the field formats shared by standard GNSS
// sentences and the proprietary PTMP family.
package nmea

import (
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Sentence is one parsed line. Fields is the comma-split payload between
// '$' and '*', including the talker+type field at index 0.
type Sentence struct {
	Type   string
	Fields []string
}

// Checksum is the XOR of every payload byte between '$' and '*'.
func Checksum(payload string) byte {
	ck := byte(0)
	for i := 0; i < len(payload); i++ {
		ck ^= payload[i]
	}
	return ck
}

// Parse validates the envelope and checksum and splits the payload.
//
// Standard talker prefixes (GP/GN/GL/...) are normalized away, so the Type
// of "$GNRMC,..." is "RMC". Proprietary sentences keep their full tag
// ("PTMPE" etc.), mirroring how the device documents them.
func Parse(line string) (Sentence, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "$") {
		return Sentence{}, fmt.Errorf("nmea: missing '$'")
	}
	star := strings.LastIndexByte(line, '*')
	if star == -1 {
		return Sentence{}, fmt.Errorf("nmea: missing checksum")
	}
	payload := line[1:star]
	ck := strings.TrimSpace(line[star+1:])
	if len(ck) < 2 {
		return Sentence{}, fmt.Errorf("nmea: short checksum")
	}
	want, err := hex.DecodeString(ck[:2])
	if err != nil || len(want) != 1 {
		return Sentence{}, fmt.Errorf("nmea: bad checksum")
	}
	if Checksum(payload) != want[0] {
		return Sentence{}, fmt.Errorf("nmea: checksum mismatch")
	}

	parts := strings.Split(payload, ",")
	typeField := parts[0]
	if len(typeField) < 3 {
		return Sentence{}, fmt.Errorf("nmea: short type")
	}

	t := strings.ToUpper(typeField)
	if !strings.HasPrefix(t, "P") && len(t) > 3 {
		t = t[len(t)-3:]
	}
	return Sentence{Type: t, Fields: parts}, nil
}

// RepairTags lists the sentence tags the recorder emits without a checksum.
// These are its high-rate records; the firmware skips the checksum there to
// keep up with the sensor sampling clock.
var RepairTags = []string{"PTMPE", "PTMPI", "PTMPQ"}

// Repair appends the missing checksum to a line whose tag is on the repair
// list. Lines that already carry a '*' or start with any other tag are
// returned unchanged.
func Repair(line string) string {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "$") || strings.ContainsRune(trimmed, '*') {
		return line
	}
	payload := trimmed[1:]
	for _, tag := range RepairTags {
		if strings.HasPrefix(payload, tag+",") || payload == tag {
			return fmt.Sprintf("$%s*%02X", payload, Checksum(payload))
		}
	}
	return line
}

// ParseFloat parses a possibly-empty numeric field.
func ParseFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ParseLatLon parses NMEA ddmm.mmmm (lat) or dddmm.mmmm (lon) plus a
// hemisphere letter into signed decimal degrees.
func ParseLatLon(v, hemi string) (float64, bool) {
	v = strings.TrimSpace(v)
	hemi = strings.TrimSpace(strings.ToUpper(hemi))
	if v == "" || (hemi != "N" && hemi != "S" && hemi != "E" && hemi != "W") {
		return 0, false
	}

	dot := strings.IndexByte(v, '.')
	intPart := v
	if dot != -1 {
		intPart = v[:dot]
	}
	if len(intPart) < 3 {
		return 0, false
	}

	deg, err := strconv.Atoi(intPart[:len(intPart)-2])
	if err != nil {
		return 0, false
	}
	mins, err := strconv.ParseFloat(v[len(intPart)-2:], 64)
	if err != nil || mins >= 60 {
		return 0, false
	}

	dec := float64(deg) + mins/60.0
	if hemi == "S" || hemi == "W" {
		dec = -dec
	}
	return dec, true
}

// ParseTimeOfDay parses hhmmss or hhmmss.sss into a duration since
// midnight UTC.
func ParseTimeOfDay(s string) (time.Duration, bool) {
	s = strings.TrimSpace(s)
	if len(s) < 6 {
		return 0, false
	}
	hh, err1 := strconv.Atoi(s[0:2])
	mm, err2 := strconv.Atoi(s[2:4])
	rest, err3 := strconv.ParseFloat(s[4:], 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return 0, false
	}
	if hh > 23 || mm > 59 || rest >= 61 { // leap second tolerated
		return 0, false
	}
	ns := int64(math.Round(rest * 1e9))
	d := time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute + time.Duration(ns)
	return d, true
}

// ParseDate parses the RMC ddmmyy field into a UTC midnight. Years are
// mapped into 2000-2099, which outlives the recorder.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if len(s) != 6 {
		return time.Time{}, false
	}
	dd, err1 := strconv.Atoi(s[0:2])
	mo, err2 := strconv.Atoi(s[2:4])
	yy, err3 := strconv.Atoi(s[4:6])
	if err1 != nil || err2 != nil || err3 != nil {
		return time.Time{}, false
	}
	if dd < 1 || dd > 31 || mo < 1 || mo > 12 {
		return time.Time{}, false
	}
	return time.Date(2000+yy, time.Month(mo), dd, 0, 0, 0, 0, time.UTC), true
}
