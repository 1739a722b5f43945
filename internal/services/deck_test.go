package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"lecture-anki-backend/internal/models"
	"lecture-anki-backend/internal/pipeline"
)

// deckResponder answers slide, labeling and section prompts. Both paths produce the
// ATP card so the merge has a duplicate to resolve.
func deckResponder(req GenerateRequest) (string, error) {
	switch {
	case len(req.Images) > 0:
		return `{"cards":[{"question":"What is ATP?","answer":"The energy currency of the cell"}]}`, nil
	case strings.Contains(req.Prompt, "WINDOWS JSON"):
		return `{"labels":[{"idx":0,"title":"Energy","key_points":["ATP"]}]}`, nil
	default:
		return `{"cards":[
			{"question":"what is  ATP?","answer":"the energy currency of the cell"},
			{"question":"What does NADH carry?","answer":"Electrons"}
		]}`, nil
	}
}

func newTestDeckService(gen Generator, renderer Renderer, progress ProgressPublisher) *DeckService {
	engine := testEngine(gen, progress)
	return NewDeckService(
		engine,
		NewSectionService(engine, pipeline.DefaultWindowOptions()),
		NewCardService(engine),
		NewSlideService(engine, renderer, NewFileExtractService()),
	)
}

func TestDeckService_MergesSlideCardsFirst(t *testing.T) {
	path := writePPTX(t, []string{"Energy"}, []string{"More energy"})
	gen := &stubGenerator{respond: deckResponder}
	progress := &recordingProgress{}
	svc := newTestDeckService(gen, stubRenderer{pages: 2}, progress)

	resp, err := svc.Generate(context.Background(), "req-1", path, "bio.pptx", models.GenerateDeckRequest{
		LectureTitle: "Bioenergetics",
		Segments: []models.TranscriptSegment{
			{Start: 0, End: 60, Text: "today we talk about the cell"},
			{Start: 60, End: 120, Text: "and how it stores power"},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(resp.Cards) != 2 {
		t.Fatalf("expected 2 cards after dedupe, got %d: %+v", len(resp.Cards), resp.Cards)
	}
	if resp.Cards[0].SourceType != models.SourceSlides || resp.Cards[0].Question != "What is ATP?" {
		t.Errorf("expected the slide card to win, got %+v", resp.Cards[0])
	}
	if resp.Cards[1].SourceType != models.SourceTranscript {
		t.Errorf("expected transcript card second, got %+v", resp.Cards[1])
	}
	if resp.SlideCardCount != 1 || resp.TextCardCount != 1 {
		t.Errorf("unexpected counts: slides=%d text=%d", resp.SlideCardCount, resp.TextCardCount)
	}
	if len(resp.Slides) != 2 {
		t.Errorf("expected 2 slides, got %d", len(resp.Slides))
	}
	if !hasTag(resp.Cards[1].Tags, "lecture:bioenergetics") {
		t.Errorf("expected slug derived from title, got %v", resp.Cards[1].Tags)
	}

	// Extracted deck text is passed to the transcript path.
	var sawSlides bool
	for _, req := range gen.calls {
		if len(req.Images) == 0 && strings.Contains(req.Prompt, "Slide 1:\nEnergy") {
			sawSlides = true
		}
	}
	if !sawSlides {
		t.Errorf("expected extracted slide text in the card prompt")
	}

	stages := progress.stages("deck")
	if len(stages) == 0 || stages[len(stages)-1] != models.StageDone {
		t.Errorf("expected deck progress to end in done, got %v", stages)
	}
}

func TestDeckService_TargetCountKeepsSlideCards(t *testing.T) {
	path := writePPTX(t, []string{"Energy"})
	gen := &stubGenerator{respond: deckResponder}
	svc := newTestDeckService(gen, stubRenderer{pages: 1}, nil)

	target := 1
	resp, err := svc.Generate(context.Background(), "", path, "bio.pptx", models.GenerateDeckRequest{
		LectureTitle: "Bioenergetics",
		TargetCount:  &target,
		Sections: []models.Section{
			{Index: 0, Title: "Energy", Start: 0, End: 120, Text: "the cell stores power"},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Cards) != 1 || resp.Cards[0].SourceType != models.SourceSlides {
		t.Fatalf("expected the single slide card, got %+v", resp.Cards)
	}
}

func TestDeckService_EitherPathFailing(t *testing.T) {
	path := writePPTX(t, []string{"Energy"})
	gen := &stubGenerator{respond: deckResponder}
	progress := &recordingProgress{}
	svc := newTestDeckService(gen, stubRenderer{err: errors.New("pdftoppm crashed")}, progress)

	_, err := svc.Generate(context.Background(), "req-2", path, "bio.pptx", models.GenerateDeckRequest{
		LectureTitle: "Bioenergetics",
		Sections:     []models.Section{{Index: 0, Title: "Energy", Text: "x"}},
	})
	if err == nil || !strings.Contains(err.Error(), "pdftoppm crashed") {
		t.Fatalf("expected render failure, got %v", err)
	}

	stages := progress.stages("deck")
	if len(stages) == 0 || stages[len(stages)-1] != models.StageFailed {
		t.Errorf("expected deck progress to end in failed, got %v", stages)
	}
}

func TestDeckService_FailedSlidePathDoesNotWaitForTranscriptPath(t *testing.T) {
	path := writePPTX(t, []string{"Energy"})
	release := make(chan struct{})
	defer close(release)

	gen := &stubGenerator{respond: func(req GenerateRequest) (string, error) {
		select {
		case <-release:
		case <-time.After(2 * time.Second):
		}
		return deckResponder(req)
	}}
	svc := newTestDeckService(gen, stubRenderer{err: errors.New("pdftoppm crashed")}, nil)

	begin := time.Now()
	_, err := svc.Generate(context.Background(), "req-3", path, "bio.pptx", models.GenerateDeckRequest{
		LectureTitle: "Bioenergetics",
		Sections:     []models.Section{{Index: 0, Title: "Energy", Text: "x"}},
	})
	if err == nil || !strings.Contains(err.Error(), "pdftoppm crashed") {
		t.Fatalf("expected render failure, got %v", err)
	}
	if elapsed := time.Since(begin); elapsed > 500*time.Millisecond {
		t.Fatalf("deck failed after %v, expected it before the transcript path finished", elapsed)
	}
}
