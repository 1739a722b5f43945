package services

import (
	"context"

	"lecture-anki-backend/internal/logger"
	"lecture-anki-backend/internal/pipeline"
)

// Engine holds the collaborators shared by every generation path.
type Engine struct {
	Generator   Generator
	Retrier     *pipeline.Retrier
	Progress    ProgressPublisher
	Log         *logger.Logger
	Concurrency int
	MaxCards    int
}

func (e *Engine) concurrency() int {
	if e.Concurrency < 1 {
		return pipeline.DefaultConcurrency
	}
	return e.Concurrency
}

func (e *Engine) ceiling() int {
	if e.MaxCards < 1 {
		return pipeline.DefaultCardCeiling
	}
	return e.MaxCards
}

// generate runs one model call under the retry policy.
func (e *Engine) generate(ctx context.Context, name string, req GenerateRequest) (string, error) {
	var out string
	err := e.Retrier.Do(ctx, name, func() error {
		var err error
		out, err = e.Generator.Generate(ctx, req)
		return err
	})
	return out, err
}
