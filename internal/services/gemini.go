package services

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	"lecture-anki-backend/internal/logger"
)

// GenerateRequest is one call to the generative model.
type GenerateRequest struct {
	System string
	Prompt string
	// Images are JPEG pages sent after Prompt; Notes follow the images.
	Images          [][]byte
	Notes           []string
	JSON            bool
	MaxOutputTokens int32
}

// Generator produces model text for a request. Errors keep the upstream HTTP status
// reachable through errors.As so callers can tell transient failures apart.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// MediaTranscriber turns an audio or video payload into raw model text.
type MediaTranscriber interface {
	TranscribeMedia(ctx context.Context, media []byte, mimeType string) (string, error)
}

// GeminiClient is the process-wide Gemini collaborator. It caps concurrent calls and
// requests per minute across all in-flight generation requests.
type GeminiClient struct {
	client    *genai.Client
	modelName string
	rateChan  chan struct{} // Token bucket
	limiter   *rate.Limiter
	log       *logrus.Entry
}

func NewGeminiClient(ctx context.Context, apiKey, modelName string, concurrentReqs, requestsPerMin int, log *logger.Logger) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	concurrentReqs = max(1, concurrentReqs)
	rateChan := make(chan struct{}, concurrentReqs)
	for i := 0; i < concurrentReqs; i++ {
		rateChan <- struct{}{}
	}

	perMin := max(1, requestsPerMin)
	return &GeminiClient{
		client:    client,
		modelName: modelName,
		rateChan:  rateChan,
		limiter:   rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMin)), perMin),
		log:       log.WithField("component", "gemini"),
	}, nil
}

func (c *GeminiClient) Close() {
	c.client.Close()
}

// acquireRate blocks until both a concurrency slot and a per-minute token are available
func (c *GeminiClient) acquireRate(ctx context.Context) error {
	select {
	case <-c.rateChan:
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Minute):
		return fmt.Errorf("timeout waiting for Gemini rate slot")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		c.releaseRate()
		return err
	}
	return nil
}

func (c *GeminiClient) releaseRate() {
	c.rateChan <- struct{}{}
}

func (c *GeminiClient) model(req GenerateRequest) *genai.GenerativeModel {
	model := c.client.GenerativeModel(c.modelName)
	model.SetTemperature(0.3)
	model.SetTopP(0.95)
	if req.System != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(req.System))
	}
	if req.JSON {
		model.ResponseMIMEType = "application/json"
	}
	if req.MaxOutputTokens > 0 {
		model.SetMaxOutputTokens(req.MaxOutputTokens)
	}
	return model
}

func (c *GeminiClient) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	if err := c.acquireRate(ctx); err != nil {
		return "", err
	}
	defer c.releaseRate()

	parts := make([]genai.Part, 0, 1+len(req.Images)+len(req.Notes))
	parts = append(parts, genai.Text(req.Prompt))
	for _, img := range req.Images {
		parts = append(parts, genai.ImageData("jpeg", img))
	}
	for _, n := range req.Notes {
		parts = append(parts, genai.Text(n))
	}

	resp, err := c.model(req).GenerateContent(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("Gemini API error: %w", err)
	}

	for i, cand := range resp.Candidates {
		if cand.FinishReason != genai.FinishReasonStop {
			c.log.WithFields(logrus.Fields{
				"candidate":     i,
				"finish_reason": cand.FinishReason.String(),
			}).Warn("Gemini stopped early")
		}
	}

	return extractText(resp), nil
}

const transcriptionPrompt = `Transcribe the provided recording verbatim.
Split the transcript into consecutive segments of one or two sentences each.
Return ONLY JSON of the form:
{"segments": [{"start": seconds, "end": seconds, "text": "string"}], "text": "full transcript"}
start and end are numbers of seconds from the beginning of the recording.`

// TranscribeMedia uploads the recording to the Gemini File API and asks for a timed transcript.
func (c *GeminiClient) TranscribeMedia(ctx context.Context, media []byte, mimeType string) (string, error) {
	if len(media) == 0 {
		return "", fmt.Errorf("media payload is empty")
	}

	if err := c.acquireRate(ctx); err != nil {
		return "", err
	}
	defer c.releaseRate()

	file, err := c.client.UploadFile(ctx, "", bytes.NewReader(media), &genai.UploadFileOptions{
		DisplayName: "lecture-recording",
		MIMEType:    mimeType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload media to Gemini: %w", err)
	}

	// Ensure remote file is cleaned up
	defer c.client.DeleteFile(context.Background(), file.Name)

	for i := 0; i < 60 && file.State != genai.FileStateActive; i++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(2 * time.Second):
		}

		current, getErr := c.client.GetFile(ctx, file.Name)
		if getErr != nil {
			return "", fmt.Errorf("failed to get uploaded file status: %w", getErr)
		}
		if current.State == genai.FileStateFailed {
			return "", fmt.Errorf("Gemini failed to process uploaded media file")
		}
		file = current
	}
	if file.State != genai.FileStateActive {
		return "", fmt.Errorf("media file did not become active in time")
	}

	model := c.model(GenerateRequest{JSON: true})
	resp, err := model.GenerateContent(ctx,
		genai.Text(transcriptionPrompt),
		genai.FileData{MIMEType: mimeType, URI: file.URI},
	)
	if err != nil {
		return "", fmt.Errorf("Gemini transcription error: %w", err)
	}

	return strings.TrimSpace(extractText(resp)), nil
}

func extractText(resp *genai.GenerateContentResponse) string {
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text.WriteString(string(t))
				}
			}
		}
	}
	return text.String()
}
