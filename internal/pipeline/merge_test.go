package pipeline

import (
	"fmt"
	"testing"

	"lecture-anki-backend/internal/models"
)

func makeCards(prefix string, n int, source models.SourceType) []models.Card {
	cards := make([]models.Card, n)
	for i := range cards {
		cards[i] = models.Card{
			Question:   fmt.Sprintf("%s question %d", prefix, i),
			Answer:     fmt.Sprintf("%s answer %d", prefix, i),
			SourceType: source,
		}
	}
	return cards
}

func TestMerge_TruncatesToTarget(t *testing.T) {
	target := 3
	got := Merge(nil, makeCards("text", 5, models.SourceTranscript), &target, DefaultCardCeiling)
	if len(got) != 3 {
		t.Fatalf("expected 3 cards, got %d", len(got))
	}
	for i, c := range got {
		if c.Question != fmt.Sprintf("text question %d", i) {
			t.Fatalf("card %d out of order: %q", i, c.Question)
		}
	}
}

func TestMerge_SlidesFirst(t *testing.T) {
	target := 4
	images := makeCards("slide", 3, models.SourceSlides)
	texts := makeCards("text", 3, models.SourceTranscript)

	got := Merge(images, texts, &target, DefaultCardCeiling)
	if len(got) != 4 {
		t.Fatalf("expected 4 cards, got %d", len(got))
	}
	for i := 0; i < 3; i++ {
		if got[i].SourceType != models.SourceSlides {
			t.Fatalf("card %d should come from slides: %+v", i, got[i])
		}
	}
	if got[3].SourceType != models.SourceTranscript {
		t.Fatalf("last card should come from transcript: %+v", got[3])
	}
}

func TestMerge_DedupesAcrossSources(t *testing.T) {
	images := []models.Card{{Question: "What is RAM?", Answer: "Memory", SourceType: models.SourceSlides}}
	texts := []models.Card{
		{Question: "what is  ram?", Answer: "memory", SourceType: models.SourceTranscript},
		{Question: "What is ROM?", Answer: "Read-only memory", SourceType: models.SourceTranscript},
	}

	got := Merge(images, texts, nil, DefaultCardCeiling)
	if len(got) != 2 {
		t.Fatalf("expected 2 cards, got %d: %+v", len(got), got)
	}
	if got[0].SourceType != models.SourceSlides {
		t.Fatalf("slide copy should win: %+v", got[0])
	}
}

func TestMerge_ShortfallIsNotPadded(t *testing.T) {
	target := 10
	got := Merge(makeCards("slide", 2, models.SourceSlides), makeCards("text", 2, models.SourceTranscript), &target, DefaultCardCeiling)
	if len(got) != 4 {
		t.Fatalf("expected 4 cards, got %d", len(got))
	}
}

func TestMerge_Ceiling(t *testing.T) {
	got := Merge(nil, makeCards("text", 20, models.SourceTranscript), nil, 7)
	if len(got) != 7 {
		t.Fatalf("expected ceiling of 7, got %d", len(got))
	}
}

func TestMerge_EmptyIsNotNil(t *testing.T) {
	got := Merge(nil, nil, nil, 0)
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
}
