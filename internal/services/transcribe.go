package services

import (
	"context"
	"math"
	"strings"

	"github.com/sirupsen/logrus"

	"lecture-anki-backend/internal/models"
	"lecture-anki-backend/internal/pipeline"
)

// charsPerSecond estimates speech duration when only plain text is known.
const charsPerSecond = 12

type TranscriptionService struct {
	media   MediaTranscriber
	retrier *pipeline.Retrier
	youtube *YouTubeService
	log     *logrus.Entry
}

func NewTranscriptionService(media MediaTranscriber, retrier *pipeline.Retrier, youtube *YouTubeService, log *logrus.Entry) *TranscriptionService {
	return &TranscriptionService{media: media, retrier: retrier, youtube: youtube, log: log}
}

// TranscribeMedia transcribes an uploaded audio or video file into timed segments.
func (s *TranscriptionService) TranscribeMedia(ctx context.Context, media []byte, mimeType string) (models.TranscribeResponse, error) {
	if len(media) == 0 {
		return models.TranscribeResponse{}, invalid("No file uploaded")
	}
	if !strings.HasPrefix(mimeType, "audio/") && !strings.HasPrefix(mimeType, "video/") {
		return models.TranscribeResponse{}, invalid("Unsupported media type %q; upload audio or video", mimeType)
	}

	var raw string
	err := s.retrier.Do(ctx, "transcribe", func() error {
		var err error
		raw, err = s.media.TranscribeMedia(ctx, media, mimeType)
		return err
	})
	if err != nil {
		return models.TranscribeResponse{}, &GenerationError{Stage: "transcription", Err: err}
	}

	resp := ParseTranscript(raw)
	s.log.WithFields(logrus.Fields{"segments": len(resp.Segments), "chars": len(resp.Text)}).Info("media transcribed")
	return resp, nil
}

// TranscribeText wraps pasted transcript text in a single synthesized segment.
func (s *TranscriptionService) TranscribeText(text string) models.TranscribeResponse {
	return fromPlainText(strings.TrimSpace(text))
}

// TranscribeYouTube prefers the video's timed captions and falls back to transcribing
// its audio track.
func (s *TranscriptionService) TranscribeYouTube(ctx context.Context, url, lang string) (models.TranscribeResponse, error) {
	videoID, err := s.youtube.VideoID(url)
	if err != nil {
		return models.TranscribeResponse{}, invalid("Invalid YouTube URL")
	}

	segments, err := s.youtube.TimedTranscript(ctx, url, lang)
	if err == nil && len(segments) > 0 {
		return withJoinedText(segments), nil
	}
	s.log.WithError(err).WithField("video_id", videoID).Warn("timed captions unavailable, trying caption text")

	text, err := s.youtube.CaptionText(videoID)
	if err == nil {
		return fromPlainText(text), nil
	}
	s.log.WithError(err).WithField("video_id", videoID).Warn("caption text unavailable, transcribing audio")

	audio, mimeType, err := s.youtube.DownloadAudio(ctx, url)
	if err != nil {
		return models.TranscribeResponse{}, &GenerationError{Stage: "youtube audio download", Err: err}
	}
	return s.TranscribeMedia(ctx, audio, mimeType)
}

// ParseTranscript reads the model's {"segments":[...],"text":...} answer. Output without
// usable segments becomes one synthesized segment.
func ParseTranscript(raw string) models.TranscribeResponse {
	var doc struct {
		Segments []struct {
			Start float64 `json:"start"`
			End   float64 `json:"end"`
			Text  string  `json:"text"`
		} `json:"segments"`
		Text string `json:"text"`
	}
	if err := pipeline.ExtractJSONObject(raw, &doc); err != nil {
		return fromPlainText(strings.TrimSpace(raw))
	}

	segments := make([]models.TranscriptSegment, 0, len(doc.Segments))
	for _, seg := range doc.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" || seg.Start < 0 {
			continue
		}
		segments = append(segments, models.TranscriptSegment{
			Start: seg.Start,
			End:   math.Max(seg.Start, seg.End),
			Text:  text,
		})
	}

	if len(segments) == 0 {
		return fromPlainText(strings.TrimSpace(doc.Text))
	}
	resp := withJoinedText(segments)
	if t := strings.TrimSpace(doc.Text); t != "" {
		resp.Text = t
	}
	return resp
}

func withJoinedText(segments []models.TranscriptSegment) models.TranscribeResponse {
	texts := make([]string, len(segments))
	for i, s := range segments {
		texts[i] = s.Text
	}
	return models.TranscribeResponse{Segments: segments, Text: strings.Join(texts, " ")}
}

// fromPlainText synthesizes one segment whose length is estimated from the text.
func fromPlainText(text string) models.TranscribeResponse {
	if text == "" {
		return models.TranscribeResponse{Segments: []models.TranscriptSegment{}, Text: ""}
	}
	end := math.Max(1, math.Floor(float64(len(text))/charsPerSecond+0.5))
	return models.TranscribeResponse{
		Segments: []models.TranscriptSegment{{Start: 0, End: end, Text: text}},
		Text:     text,
	}
}
