package util

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var durationPattern = regexp.MustCompile(`^(\d+)([smhd])$`)

var unitSeconds = map[string]int64{
	"s": 1,
	"m": 60,
	"h": 3600,
	"d": 86400,
}

// ParseDuration parses a short duration token such as "5m", "2h" or "1d" into
// seconds. The token must be digits followed by exactly one of s, m, h, d with
// nothing around it. Anything else, including values that overflow, reports
// ok == false.
//
// Example:
//
//	ParseDuration("5m")  // 300, true
//	ParseDuration("1d")  // 86400, true
//	ParseDuration("10x") // 0, false
func ParseDuration(token string) (seconds int64, ok bool) {
	match := durationPattern.FindStringSubmatch(token)
	if match == nil {
		return 0, false
	}

	value, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil {
		return 0, false
	}

	mult := unitSeconds[match[2]]
	if value > (1<<63-1)/mult {
		return 0, false
	}
	return value * mult, true
}

// ParseDurationValue is ParseDuration returning a time.Duration. Tokens whose
// nanosecond value would overflow are rejected.
func ParseDurationValue(token string) (time.Duration, bool) {
	seconds, ok := ParseDuration(token)
	if !ok || seconds > int64(time.Duration(1<<63-1)/time.Second) {
		return 0, false
	}
	return time.Duration(seconds) * time.Second, true
}

// FormatSeconds renders a non-negative number of seconds as "1d 2h 3m 4s",
// skipping zero parts. Zero renders as "0s".
func FormatSeconds(total int64) string {
	if total <= 0 {
		return "0s"
	}

	parts := make([]string, 0, 4)
	for _, u := range []struct {
		suffix string
		size   int64
	}{{"d", 86400}, {"h", 3600}, {"m", 60}, {"s", 1}} {
		if n := total / u.size; n > 0 {
			parts = append(parts, fmt.Sprintf("%d%s", n, u.suffix))
			total -= n * u.size
		}
	}
	return strings.Join(parts, " ")
}
