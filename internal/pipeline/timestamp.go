package pipeline

import (
	"fmt"
	"math"
	"regexp"
	"strings"
)

const rangeDash = "–"

var (
	timestampPattern       = regexp.MustCompile(`^\d{2}:\d{2}(?:[–-]\d{2}:\d{2})?$`)
	bracketTimestampSuffix = regexp.MustCompile(`\s\[\d{2}:\d{2}(?:[–-]\d{2}:\d{2})?\]$`)
	nonSlugChars           = regexp.MustCompile(`[^a-z0-9]+`)
)

// FormatMMSS renders whole seconds as mm:ss.
func FormatMMSS(sec float64) string {
	s := int(math.Max(0, math.Floor(sec)))
	return fmt.Sprintf("%02d:%02d", s/60, s%60)
}

// TimestampRange renders a start/end pair as mm:ss–mm:ss.
func TimestampRange(start, end float64) string {
	return FormatMMSS(start) + rangeDash + FormatMMSS(end)
}

// CanonicalTimestamp validates ts and normalizes its range separator to an en dash.
// It returns "" when ts is not a mm:ss or mm:ss–mm:ss value.
func CanonicalTimestamp(ts string) string {
	ts = strings.TrimSpace(ts)
	if !timestampPattern.MatchString(ts) {
		return ""
	}
	return strings.Replace(ts, "-", rangeDash, 1)
}

// WithBracketTimestamp appends " [ts]" unless the question already ends with one.
func WithBracketTimestamp(question, ts string) string {
	q := strings.TrimSpace(question)
	if ts == "" {
		return q
	}
	if strings.HasSuffix(q, " ["+ts+"]") || bracketTimestampSuffix.MatchString(q) {
		return q
	}
	return q + " [" + ts + "]"
}

// Slugify lowercases s and joins its alphanumeric runs with dashes.
func Slugify(s string) string {
	slug := nonSlugChars.ReplaceAllString(strings.ToLower(s), "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > 80 {
		slug = strings.TrimRight(slug[:80], "-")
	}
	return slug
}
