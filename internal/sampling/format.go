package sampling

import (
	"math"
	"strconv"
)

// Duration units in nanoseconds.
const (
	Nanosecond  = 1.0
	Microsecond = 1e3 * Nanosecond
	Millisecond = 1e3 * Microsecond
	Second      = 1e3 * Millisecond
	Minute      = 60 * Second
	Hour        = 60 * Minute
	Day         = 24 * Hour
)

var timeUnits = []struct {
	ns     float64
	suffix string
}{
	{Day, "d"},
	{Hour, "h"},
	{Minute, "min"},
	{Second, "s"},
	{Millisecond, "ms"},
	{Microsecond, "us"},
	{Nanosecond, "ns"},
}

// FormatDuration renders a duration given in seconds, e.g. "500 ms" or
// "50 min". It prefers the largest unit giving a whole number below 1000
// and otherwise shows up to three decimals of the largest unit that fits,
// e.g. "16.777 s".
func FormatDuration(seconds float64) string {
	return formatNanos(seconds * Second)
}

func formatNanos(ns float64) string {
	if ns <= 0 {
		return "0 s"
	}
	for _, u := range timeUnits {
		v := ns / u.ns
		if v >= 1 && v < 1000 && isWhole(v) {
			return strconv.FormatFloat(math.Round(v), 'f', 0, 64) + " " + u.suffix
		}
	}
	for _, u := range timeUnits {
		if ns >= u.ns || u.ns == Nanosecond {
			return trim3(ns/u.ns) + " " + u.suffix
		}
	}
	return "0 s"
}

func isWhole(v float64) bool {
	return math.Abs(v-math.Round(v)) <= 1e-9*v
}

// trim3 prints at most three decimals and drops trailing zeros.
func trim3(f float64) string {
	s := strconv.FormatFloat(f, 'f', 3, 64)
	for len(s) > 0 && s[len(s)-1] == '0' {
		s = s[:len(s)-1]
	}
	if len(s) > 0 && s[len(s)-1] == '.' {
		s = s[:len(s)-1]
	}
	return s
}
