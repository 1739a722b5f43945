package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"lecture-anki-backend/internal/logger"
	"lecture-anki-backend/internal/pipeline"
)

type stubTranscriber struct {
	calls   int
	respond func(call int) (string, error)
}

func (s *stubTranscriber) TranscribeMedia(context.Context, []byte, string) (string, error) {
	s.calls++
	return s.respond(s.calls)
}

func newTestTranscription(media MediaTranscriber) *TranscriptionService {
	retrier := pipeline.NewRetrier(pipeline.RetryConfig{MaxAttempts: 3, InitialInterval: time.Millisecond, Multiplier: 2}, nil)
	return NewTranscriptionService(media, retrier, nil, logger.Discard().Entry)
}

func TestParseTranscript(t *testing.T) {
	t.Run("segments", func(t *testing.T) {
		raw := "```json\n" + `{"segments":[
			{"start":0,"end":4.5,"text":" Hello "},
			{"start":4.5,"end":3,"text":"backwards end"},
			{"start":9,"end":12,"text":"   "},
			{"start":-1,"end":2,"text":"negative"}
		],"text":""}` + "\n```"

		resp := ParseTranscript(raw)
		if len(resp.Segments) != 2 {
			t.Fatalf("expected 2 segments, got %+v", resp.Segments)
		}
		if resp.Segments[0].Text != "Hello" {
			t.Errorf("text not trimmed: %q", resp.Segments[0].Text)
		}
		if resp.Segments[1].End != 4.5 {
			t.Errorf("end should be clamped to start, got %v", resp.Segments[1].End)
		}
		if resp.Text != "Hello backwards end" {
			t.Errorf("unexpected joined text %q", resp.Text)
		}
	})

	t.Run("model text wins", func(t *testing.T) {
		resp := ParseTranscript(`{"segments":[{"start":0,"end":1,"text":"hi"}],"text":"Hi there."}`)
		if resp.Text != "Hi there." {
			t.Errorf("got %q", resp.Text)
		}
	})

	t.Run("plain text", func(t *testing.T) {
		text := strings.Repeat("a", 60)
		resp := ParseTranscript(text)
		if len(resp.Segments) != 1 || resp.Segments[0].End != 5 || resp.Text != text {
			t.Errorf("unexpected synthesized transcript: %+v", resp)
		}
	})

	t.Run("empty", func(t *testing.T) {
		resp := ParseTranscript("  ")
		if resp.Segments == nil || len(resp.Segments) != 0 || resp.Text != "" {
			t.Errorf("expected empty transcript, got %+v", resp)
		}
	})
}

func TestTranscribeText(t *testing.T) {
	svc := newTestTranscription(nil)

	resp := svc.TranscribeText("  hello world  ")
	if len(resp.Segments) != 1 {
		t.Fatalf("expected one segment, got %d", len(resp.Segments))
	}
	seg := resp.Segments[0]
	if seg.Start != 0 || seg.End != 1 || seg.Text != "hello world" {
		t.Errorf("unexpected segment %+v", seg)
	}
}

func TestTranscribeMedia_RejectsNonMedia(t *testing.T) {
	svc := newTestTranscription(&stubTranscriber{respond: func(int) (string, error) { return "", nil }})

	tests := []struct {
		name  string
		media []byte
		mime  string
	}{
		{"empty", nil, "audio/mpeg"},
		{"pdf", []byte("%PDF"), "application/pdf"},
	}
	for _, tt := range tests {
		_, err := svc.TranscribeMedia(context.Background(), tt.media, tt.mime)
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("%s: expected ValidationError, got %v", tt.name, err)
		}
	}
}

func TestTranscribeMedia_RetriesTransient(t *testing.T) {
	media := &stubTranscriber{respond: func(call int) (string, error) {
		if call == 1 {
			return "", &pipeline.StatusError{Code: 429}
		}
		return `{"segments":[{"start":0,"end":2,"text":"Welcome"}],"text":"Welcome"}`, nil
	}}
	svc := newTestTranscription(media)

	resp, err := svc.TranscribeMedia(context.Background(), []byte{1, 2, 3}, "audio/mpeg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if media.calls != 2 {
		t.Errorf("expected one retry, got %d calls", media.calls)
	}
	if len(resp.Segments) != 1 || resp.Text != "Welcome" {
		t.Errorf("unexpected transcript %+v", resp)
	}
}

func TestTranscribeMedia_Fatal(t *testing.T) {
	media := &stubTranscriber{respond: func(int) (string, error) {
		return "", &pipeline.StatusError{Code: 400}
	}}
	svc := newTestTranscription(media)

	_, err := svc.TranscribeMedia(context.Background(), []byte{1}, "video/mp4")
	var gerr *GenerationError
	if !errors.As(err, &gerr) {
		t.Fatalf("expected GenerationError, got %v", err)
	}
	if media.calls != 1 {
		t.Errorf("fatal errors must not be retried, got %d calls", media.calls)
	}
}
