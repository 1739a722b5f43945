package services

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	ytapi "github.com/hightemp/youtube-transcript-api-go/api"
	yt "github.com/kkdai/youtube/v2"
	"github.com/sirupsen/logrus"

	"lecture-anki-backend/internal/models"
)

const maxAudioBytes = 100 * 1024 * 1024 // 100MB safety cap

type YouTubeService struct {
	httpClient    *http.Client
	transcriptAPI *ytapi.YouTubeTranscriptApi
	ytClient      *yt.Client
	log           *logrus.Entry
}

type timedTextXML struct {
	XMLName xml.Name  `xml:"transcript"`
	Texts   []textXML `xml:"text"`
}

type textXML struct {
	Start string `xml:"start,attr"`
	Dur   string `xml:"dur,attr"`
	Text  string `xml:",chardata"`
}

func NewYouTubeService(log *logrus.Entry) *YouTubeService {
	return &YouTubeService{
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		transcriptAPI: ytapi.NewYouTubeTranscriptApi(),
		ytClient:      &yt.Client{},
		log:           log.WithField("component", "youtube"),
	}
}

func (s *YouTubeService) VideoID(url string) (string, error) {
	return yt.ExtractVideoID(url)
}

// TimedTranscript returns caption segments with their timing. The player caption track
// is tried first, then the legacy timedtext XML.
func (s *YouTubeService) TimedTranscript(ctx context.Context, url, lang string) ([]models.TranscriptSegment, error) {
	if lang == "" {
		lang = "en"
	}

	videoID, err := s.VideoID(url)
	if err != nil {
		return nil, err
	}

	video, err := s.ytClient.GetVideoContext(ctx, url)
	if err != nil {
		s.log.WithError(err).WithField("video_id", videoID).Debug("video metadata unavailable")
		return s.getTranscriptViaTimedText(ctx, videoID)
	}

	transcript, err := s.ytClient.GetTranscriptCtx(ctx, video, lang)
	if err == nil && len(transcript) > 0 {
		segments := make([]models.TranscriptSegment, 0, len(transcript))
		for _, seg := range transcript {
			text := strings.TrimSpace(html.UnescapeString(seg.Text))
			if text == "" {
				continue
			}
			start := float64(seg.StartMs) / 1000
			segments = append(segments, models.TranscriptSegment{
				Start: start,
				End:   start + float64(seg.Duration)/1000,
				Text:  text,
			})
		}
		if len(segments) > 0 {
			return segments, nil
		}
	}
	if err != nil && !errors.Is(err, yt.ErrTranscriptDisabled) {
		s.log.WithError(err).WithField("video_id", videoID).Debug("player transcript failed")
	}

	return s.getTranscriptViaTimedText(ctx, videoID)
}

// CaptionText fetches caption text without timing.
func (s *YouTubeService) CaptionText(videoID string) (string, error) {
	transcript, err := s.transcriptAPI.GetTranscript(videoID, []string{"en", "en-US", "en-GB"})
	if err != nil {
		// Fallback: request any available language
		transcript, err = s.transcriptAPI.GetTranscript(videoID, nil)
		if err != nil {
			return "", fmt.Errorf("no subtitles available via transcript API: %w", err)
		}
	}

	var fullText strings.Builder
	for _, entry := range transcript.Entries {
		text := strings.TrimSpace(entry.Text)
		if text == "" {
			continue
		}
		fullText.WriteString(text)
		fullText.WriteString(" ")
	}

	cleaned := strings.TrimSpace(fullText.String())
	if cleaned == "" {
		return "", fmt.Errorf("subtitle text resolved to empty content")
	}
	return cleaned, nil
}

func (s *YouTubeService) getTranscriptViaTimedText(ctx context.Context, videoID string) ([]models.TranscriptSegment, error) {
	pageURL := fmt.Sprintf("https://www.youtube.com/watch?v=%s", videoID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch YouTube page: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read YouTube page: %w", err)
	}

	captionURL, err := extractCaptionURL(string(body))
	if err != nil {
		return nil, err
	}

	captionReq, err := http.NewRequestWithContext(ctx, http.MethodGet, captionURL, nil)
	if err != nil {
		return nil, err
	}
	captionResp, err := s.httpClient.Do(captionReq)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch captions: %w", err)
	}
	defer captionResp.Body.Close()

	captionBody, err := io.ReadAll(captionResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read captions: %w", err)
	}

	segments, err := parseCaptionsXML(captionBody)
	if err != nil {
		return nil, fmt.Errorf("failed to parse captions XML: %w", err)
	}
	return segments, nil
}

var (
	captionTracksPattern   = regexp.MustCompile(`"captionTracks"\s*:\s*\[(.*?)\],\s*"`)
	captionRendererPattern = regexp.MustCompile(`"playerCaptionsTracklistRenderer"\s*:\s*\{(?:.*?,)?\s*"captionTracks"\s*:\s*\[(.*?)\],\s*"`)
	baseURLPattern         = regexp.MustCompile(`"baseUrl"\s*:\s*"(.*?)"`)
)

func extractCaptionURL(pageHTML string) (string, error) {
	matches := captionTracksPattern.FindStringSubmatch(pageHTML)
	if len(matches) < 2 {
		matches = captionRendererPattern.FindStringSubmatch(pageHTML)
		if len(matches) < 2 {
			return "", fmt.Errorf("no captions available for this video")
		}
	}

	urlMatches := baseURLPattern.FindStringSubmatch(matches[1])
	if len(urlMatches) < 2 {
		return "", fmt.Errorf("caption track found but baseUrl missing")
	}

	u := urlMatches[1]
	u = strings.ReplaceAll(u, `\u0026`, "&")
	u = strings.ReplaceAll(u, `\/`, "/")
	return u, nil
}

// parseCaptionsXML reads timedtext XML, where start and dur are seconds.
func parseCaptionsXML(data []byte) ([]models.TranscriptSegment, error) {
	var tt timedTextXML
	if err := xml.Unmarshal(data, &tt); err != nil {
		return nil, err
	}

	var segments []models.TranscriptSegment
	for _, t := range tt.Texts {
		text := strings.TrimSpace(html.UnescapeString(t.Text))
		if text == "" {
			continue
		}
		start, err := strconv.ParseFloat(t.Start, 64)
		if err != nil {
			continue
		}
		dur, _ := strconv.ParseFloat(t.Dur, 64)
		segments = append(segments, models.TranscriptSegment{
			Start: start,
			End:   start + max(0, dur),
			Text:  text,
		})
	}

	if len(segments) == 0 {
		return nil, fmt.Errorf("captions XML empty")
	}
	return segments, nil
}

// DownloadAudio downloads the best available audio-only stream for a YouTube URL.
func (s *YouTubeService) DownloadAudio(ctx context.Context, videoURL string) ([]byte, string, error) {
	video, err := s.ytClient.GetVideoContext(ctx, videoURL)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch YouTube video metadata: %w", err)
	}

	formats := video.Formats.WithAudioChannels()
	if len(formats) == 0 {
		return nil, "", fmt.Errorf("no audio formats available")
	}

	best := formats[0]
	for _, f := range formats {
		if f.Bitrate > best.Bitrate {
			best = f
		}
	}

	stream, _, err := s.ytClient.GetStreamContext(ctx, video, &best)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open audio stream: %w", err)
	}
	defer stream.Close()

	limited := io.LimitReader(stream, maxAudioBytes+1)
	audioBytes, err := io.ReadAll(limited)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read audio stream: %w", err)
	}
	if len(audioBytes) > maxAudioBytes {
		return nil, "", fmt.Errorf("audio stream exceeds %d MB limit", maxAudioBytes/(1024*1024))
	}

	mimeType := strings.TrimSpace(strings.Split(best.MimeType, ";")[0])
	if mimeType == "" {
		mimeType = "audio/mp4"
	}
	return audioBytes, mimeType, nil
}
