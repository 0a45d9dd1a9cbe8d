package fingerprint

import (
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// TimeLayout is the textual form of a normalized timestamp.
const TimeLayout = "2006-01-02T15:04:05"

// NormalizeTime drops sub-second precision and the zone.
func NormalizeTime(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(TimeLayout)
}

// NormalizeString trims and lower-cases s after NFC composition, so
// precomposed and decomposed spellings of the same text agree.
func NormalizeString(s string) string {
	return strings.ToLower(strings.TrimSpace(norm.NFC.String(s)))
}

// NormalizeFloat renders v with six fixed decimals.
func NormalizeFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
