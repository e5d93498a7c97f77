// Package format renders sizes and timestamps for display.
package format

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var sizeUnits = []string{"Bytes", "KB", "MB", "GB"}

// FileSize renders bytes using 1024-based units with at most two decimals,
// e.g. 1536 -> "1.5 KB". Sizes beyond GB stay in GB.
func FileSize(bytes int64) string {
	if bytes == 0 {
		return "0 Bytes"
	}

	sign := ""
	value := float64(bytes)
	if value < 0 {
		sign = "-"
		value = -value
	}

	const k = 1024.0
	i := int(math.Floor(math.Log(value) / math.Log(k)))
	if i < 0 {
		i = 0
	}
	if i >= len(sizeUnits) {
		i = len(sizeUnits) - 1
	}

	scaled := value / math.Pow(k, float64(i))
	return sign + strconv.FormatFloat(roundTo(scaled, 2), 'f', -1, 64) + " " + sizeUnits[i]
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// DateLayout is the long form used for audit timestamps.
const DateLayout = "January 2, 2006 at 03:04 PM"

// Date renders t in DateLayout in t's own location.
func Date(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}

var parseLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ParseDate accepts RFC3339 and the zone-less ISO timestamps the API emits.
// Zone-less values are read as UTC.
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("date is empty")
	}
	for _, layout := range parseLayouts {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", value)
}

// DateString parses value and renders it with Date. Unparseable input is
// returned unchanged.
func DateString(value string) string {
	t, err := ParseDate(value)
	if err != nil {
		return value
	}
	return Date(t)
}
