package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"lecture-anki-backend/internal/models"
	"lecture-anki-backend/internal/pipeline"
)

func cardSections() []models.Section {
	return []models.Section{
		{Index: 0, Title: "Glycolysis", Start: 0, End: 150, Text: "glucose is split into two pyruvate molecules"},
		{Index: 1, Title: "Krebs cycle", Start: 150, End: 300, Text: "acetyl-CoA enters the cycle in the matrix"},
	}
}

// threeCardsPerSection answers every card prompt with three cards named after the section.
func threeCardsPerSection(req GenerateRequest) (string, error) {
	title := sectionTitle(req.Prompt)
	var items []string
	for i := 1; i <= 3; i++ {
		items = append(items, fmt.Sprintf(`{"question":"%s fact %d?","answer":"answer %d","source_timestamp":"00:10-00:40"}`, title, i, i))
	}
	return "```json\n{\"cards\":[" + strings.Join(items, ",") + "]}\n```", nil
}

func TestCardService_Exhaustive(t *testing.T) {
	gen := &stubGenerator{respond: threeCardsPerSection}
	progress := &recordingProgress{}
	svc := NewCardService(testEngine(gen, progress))

	cards, err := svc.Generate(context.Background(), "req-1", models.GenerateCardsRequest{
		LectureTitle: "Metabolism",
		LectureSlug:  "metabolism",
		CardType:     models.CardTypeBasic,
		Sections:     cardSections(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cards) != 6 {
		t.Fatalf("expected 6 cards, got %d", len(cards))
	}

	for _, req := range gen.calls {
		if strings.Contains(req.Prompt, "EXACTLY") {
			t.Errorf("exhaustive prompt asked for an exact count")
		}
		if !strings.Contains(req.Prompt, "exhaustive") {
			t.Errorf("prompt missing exhaustive clause")
		}
	}

	c := cards[0]
	if c.SourceTimestamp != "00:10–00:40" {
		t.Errorf("timestamp not canonical: %q", c.SourceTimestamp)
	}
	if !strings.HasSuffix(c.Question, " [00:10–00:40]") {
		t.Errorf("question missing bracket timestamp: %q", c.Question)
	}
	if c.SourceType != models.SourceTranscript || c.SlideIndex != nil {
		t.Errorf("unexpected provenance: %+v", c)
	}
	if !hasTag(c.Tags, "lecture:metabolism") || !hasTag(c.Tags, "type:basic") {
		t.Errorf("required tags missing: %v", c.Tags)
	}

	stages := progress.stages("cards")
	if stages[len(stages)-1] != models.StageDone {
		t.Errorf("expected done last, got %v", stages)
	}
}

func TestCardService_TargetCount(t *testing.T) {
	gen := &stubGenerator{respond: threeCardsPerSection}
	svc := NewCardService(testEngine(gen, nil))

	target := 4
	cards, err := svc.Generate(context.Background(), "", models.GenerateCardsRequest{
		LectureTitle: "Metabolism",
		LectureSlug:  "metabolism",
		CardType:     models.CardTypeCloze,
		TargetCount:  &target,
		Sections:     cardSections(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cards) != target {
		t.Fatalf("expected %d cards, got %d", target, len(cards))
	}
	for _, req := range gen.calls {
		if !strings.Contains(req.Prompt, "Produce EXACTLY 2 cards") {
			t.Errorf("expected quota of 2 in prompt")
		}
		if !strings.Contains(req.Prompt, "Cloze") {
			t.Errorf("expected cloze instructions")
		}
	}
	if !hasTag(cards[0].Tags, "type:cloze") {
		t.Errorf("expected cloze tag, got %v", cards[0].Tags)
	}
}

func TestCardService_Shortfall(t *testing.T) {
	gen := &stubGenerator{respond: func(GenerateRequest) (string, error) {
		return `{"cards":[{"question":"Only one?","answer":"yes"}]}`, nil
	}}
	svc := NewCardService(testEngine(gen, nil))

	target := 10
	cards, err := svc.Generate(context.Background(), "", models.GenerateCardsRequest{
		LectureTitle: "Metabolism",
		LectureSlug:  "metabolism",
		CardType:     models.CardTypeBasic,
		TargetCount:  &target,
		Sections:     cardSections(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Both sections return the same card; the repeat is removed and nothing is padded.
	if len(cards) != 1 {
		t.Fatalf("expected 1 card, got %d", len(cards))
	}
}

func TestCardService_UnparseableSectionContributesNothing(t *testing.T) {
	gen := &stubGenerator{respond: func(req GenerateRequest) (string, error) {
		if sectionTitle(req.Prompt) == "Glycolysis" {
			return "Sorry, I can't do that.", nil
		}
		return threeCardsPerSection(req)
	}}
	svc := NewCardService(testEngine(gen, nil))

	cards, err := svc.Generate(context.Background(), "", models.GenerateCardsRequest{
		LectureTitle: "Metabolism",
		LectureSlug:  "metabolism",
		CardType:     models.CardTypeBasic,
		Sections:     cardSections(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cards) != 3 {
		t.Fatalf("expected 3 cards from the parseable section, got %d", len(cards))
	}
}

func TestCardService_RetriesTransientThenFails(t *testing.T) {
	gen := &stubGenerator{respond: func(GenerateRequest) (string, error) {
		return "", &pipeline.StatusError{Code: 503}
	}}
	progress := &recordingProgress{}
	svc := NewCardService(testEngine(gen, progress))

	_, err := svc.Generate(context.Background(), "req-9", models.GenerateCardsRequest{
		LectureTitle: "Metabolism",
		LectureSlug:  "metabolism",
		CardType:     models.CardTypeBasic,
		Sections:     cardSections()[:1],
	})
	var gerr *GenerationError
	if !errors.As(err, &gerr) {
		t.Fatalf("expected GenerationError, got %v", err)
	}
	var serr *pipeline.StatusError
	if !errors.As(err, &serr) || serr.Code != 503 {
		t.Errorf("expected upstream status to survive wrapping, got %v", err)
	}
	if gen.callCount() != 2 {
		t.Errorf("expected 2 attempts, got %d", gen.callCount())
	}

	stages := progress.stages("cards")
	if stages[len(stages)-1] != models.StageFailed {
		t.Errorf("expected failed last, got %v", stages)
	}
}

func TestCardService_NoSections(t *testing.T) {
	gen := &stubGenerator{respond: threeCardsPerSection}
	svc := NewCardService(testEngine(gen, nil))

	cards, err := svc.Generate(context.Background(), "", models.GenerateCardsRequest{
		LectureTitle: "x",
		LectureSlug:  "x",
		CardType:     models.CardTypeBasic,
	})
	if err != nil || cards == nil || len(cards) != 0 {
		t.Fatalf("expected empty deck, got %v, %v", cards, err)
	}
	if gen.callCount() != 0 {
		t.Errorf("model should not be called")
	}
}

func hasTag(tags []string, want string) bool {
	for _, t := range tags {
		if t == want {
			return true
		}
	}
	return false
}
