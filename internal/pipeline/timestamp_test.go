package pipeline

import "testing"

func TestFormatMMSS(t *testing.T) {
	tests := []struct {
		sec      float64
		expected string
	}{
		{0, "00:00"},
		{59.9, "00:59"},
		{61, "01:01"},
		{3600, "60:00"},
		{-5, "00:00"},
	}
	for _, tc := range tests {
		if got := FormatMMSS(tc.sec); got != tc.expected {
			t.Errorf("FormatMMSS(%v) = %q, want %q", tc.sec, got, tc.expected)
		}
	}
}

func TestTimestampRange(t *testing.T) {
	if got := TimestampRange(95, 200); got != "01:35–03:20" {
		t.Fatalf("unexpected range %q", got)
	}
}

func TestCanonicalTimestamp(t *testing.T) {
	tests := map[string]string{
		"00:10-00:40":   "00:10–00:40",
		"00:10–00:40":   "00:10–00:40",
		" 12:00 ":       "12:00",
		"9:9":           "",
		"00:10 - 00:40": "",
		"":              "",
	}
	for in, want := range tests {
		if got := CanonicalTimestamp(in); got != want {
			t.Errorf("CanonicalTimestamp(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"Intro to Networks!":    "intro-to-networks",
		"  --CS 101: Lecture 3": "cs-101-lecture-3",
		"":                      "",
	}
	for in, want := range tests {
		if got := Slugify(in); got != want {
			t.Errorf("Slugify(%q) = %q, want %q", in, got, want)
		}
	}

	long := Slugify("abcdefghij abcdefghij abcdefghij abcdefghij abcdefghij abcdefghij abcdefghij abcdefghij")
	if len(long) > 80 {
		t.Fatalf("slug too long: %d", len(long))
	}
}
