package services

import (
	"testing"

	"lecture-anki-backend/internal/logger"
)

func TestParseCaptionsXML(t *testing.T) {
	data := []byte(`<?xml version="1.0" encoding="utf-8" ?><transcript>
<text start="0.5" dur="2.25">It&amp;#39;s glycolysis</text>
<text start="2.75" dur="1">   </text>
<text start="bad" dur="1">skipped</text>
<text start="4">no duration</text>
</transcript>`)

	segments, err := parseCaptionsXML(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(segments) != 2 {
		t.Fatalf("expected 2 segments, got %+v", segments)
	}
	if segments[0].Text != "It's glycolysis" || segments[0].Start != 0.5 || segments[0].End != 2.75 {
		t.Errorf("unexpected first segment %+v", segments[0])
	}
	if segments[1].Start != 4 || segments[1].End != 4 {
		t.Errorf("unexpected second segment %+v", segments[1])
	}

	if _, err := parseCaptionsXML([]byte("<transcript></transcript>")); err == nil {
		t.Errorf("expected error for empty captions")
	}
}

func TestExtractCaptionURL(t *testing.T) {
	page := `var ytInitialPlayerResponse = {"captions":{"playerCaptionsTracklistRenderer":{"captionTracks":[{"baseUrl":"https:\/\/www.youtube.com\/api\/timedtext?v=abc\u0026lang=en","name":{"simpleText":"English"}}],"audioTracks":[]}}};`

	got, err := extractCaptionURL(page)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := "https://www.youtube.com/api/timedtext?v=abc&lang=en"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	if _, err := extractCaptionURL("<html>no captions</html>"); err == nil {
		t.Errorf("expected error when the page has no caption tracks")
	}
}

func TestYouTubeVideoID(t *testing.T) {
	svc := NewYouTubeService(logger.Discard().Entry)

	id, err := svc.VideoID("https://www.youtube.com/watch?v=dQw4w9WgXcQ")
	if err != nil || id != "dQw4w9WgXcQ" {
		t.Errorf("got %q, %v", id, err)
	}
	if _, err := svc.VideoID("short"); err == nil {
		t.Errorf("expected error for a malformed id")
	}
}
