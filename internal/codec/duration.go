package codec

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Largest first. FormatDuration picks the first unit the value reaches.
var durationUnits = []struct {
	name string
	size time.Duration
}{
	{"d", 24 * time.Hour},
	{"h", time.Hour},
	{"m", time.Minute},
	{"s", time.Second},
	{"ms", time.Millisecond},
	{"us", time.Microsecond},
	{"ns", time.Nanosecond},
}

var durationPattern = regexp.MustCompile(`^\s*(\d+(?:\.\d+)?)\s*([a-zA-Z]+)\s*$`)

// FormatDuration renders d as magnitude and unit, e.g. "5.00m" or "1.50h".
// Two decimals are used unless they would lose part of d, in which case the
// shortest exact magnitude is written instead.
func FormatDuration(d time.Duration) string {
	unit := durationUnits[len(durationUnits)-1]
	for _, u := range durationUnits {
		if d >= u.size {
			unit = u
			break
		}
	}
	v := float64(d) / float64(unit.size)
	for _, prec := range []int{2, -1} {
		s := strconv.FormatFloat(v, 'f', prec, 64) + unit.name
		if back, err := ParseDuration(s); err == nil && back == d {
			return s
		}
	}
	return strconv.FormatInt(int64(d), 10) + "ns"
}

// ParseDuration reads the format FormatDuration writes. Units are ns, us,
// ms, s, m, h and d; whitespace around and between the parts is allowed.
func ParseDuration(s string) (time.Duration, error) {
	m := durationPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("%q is not <magnitude><unit>", s)
	}
	magnitude, unitName := m[1], m[2]

	var size time.Duration
	for _, u := range durationUnits {
		if u.name == unitName {
			size = u.size
			break
		}
	}
	if size == 0 {
		return 0, fmt.Errorf("unknown unit %q", unitName)
	}

	if !strings.Contains(magnitude, ".") {
		n, err := strconv.ParseInt(magnitude, 10, 64)
		if err != nil || n > math.MaxInt64/int64(size) {
			return 0, fmt.Errorf("%q is out of range", s)
		}
		return time.Duration(n) * size, nil
	}

	v, err := strconv.ParseFloat(magnitude, 64)
	if err != nil {
		return 0, err
	}
	ns := math.Round(v * float64(size))
	if ns >= math.MaxInt64 {
		return 0, fmt.Errorf("%q is out of range", s)
	}
	return time.Duration(ns), nil
}
