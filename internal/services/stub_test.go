package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"lecture-anki-backend/internal/logger"
	"lecture-anki-backend/internal/models"
	"lecture-anki-backend/internal/pipeline"
)

type stubGenerator struct {
	mu      sync.Mutex
	calls   []GenerateRequest
	respond func(req GenerateRequest) (string, error)
}

func (g *stubGenerator) Generate(_ context.Context, req GenerateRequest) (string, error) {
	g.mu.Lock()
	g.calls = append(g.calls, req)
	g.mu.Unlock()
	return g.respond(req)
}

func (g *stubGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

type stubRenderer struct {
	pages int
	err   error
}

func (r stubRenderer) Render(context.Context, string) ([][]byte, error) {
	if r.err != nil {
		return nil, r.err
	}
	images := make([][]byte, r.pages)
	for i := range images {
		images[i] = []byte{0xff, 0xd8, byte(i)}
	}
	return images, nil
}

type recordingProgress struct {
	mu      sync.Mutex
	updates []models.ProgressUpdate
}

func (p *recordingProgress) Publish(_ context.Context, u models.ProgressUpdate) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updates = append(p.updates, u)
}

func (p *recordingProgress) stages(pipelineName string) []models.Stage {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []models.Stage
	for _, u := range p.updates {
		if u.Pipeline == pipelineName {
			out = append(out, u.Stage)
		}
	}
	return out
}

func testEngine(gen Generator, progress ProgressPublisher) *Engine {
	return &Engine{
		Generator:   gen,
		Retrier:     pipeline.NewRetrier(pipeline.RetryConfig{MaxAttempts: 2, InitialInterval: time.Millisecond, Multiplier: 2}, nil),
		Progress:    progress,
		Log:         logger.Discard(),
		Concurrency: 2,
		MaxCards:    pipeline.DefaultCardCeiling,
	}
}

// sectionTitle pulls the "Title:" line out of a card prompt.
func sectionTitle(prompt string) string {
	for _, line := range strings.Split(prompt, "\n") {
		if strings.HasPrefix(line, "Title: ") {
			return strings.TrimPrefix(line, "Title: ")
		}
	}
	return ""
}
