package pipeline

import (
	"strconv"
	"strings"

	"lecture-anki-backend/internal/models"
)

// NormalizeContext is what the normalizer knows about the unit a batch came from.
type NormalizeContext struct {
	LectureSlug string
	CardType    models.CardType
	// FallbackTimestamp grounds candidates that carry no usable timestamp of their own.
	FallbackTimestamp string
	// SlideIndex marks image-path batches; it sets slide_index and the slide tag.
	SlideIndex *int
	SourceType models.SourceType
}

// Normalize turns model candidates into cards. Candidates without a question or an
// answer are dropped, timestamps are validated and appended to the question, the
// mandatory tags are merged in, and repeats (exact or modulo case and whitespace) are
// removed. Encounter order is kept.
func Normalize(candidates []Candidate, nc NormalizeContext) []models.Card {
	fallback := CanonicalTimestamp(nc.FallbackTimestamp)
	seen := make(map[string]struct{}, len(candidates)*2)
	out := make([]models.Card, 0, len(candidates))

	for _, c := range candidates {
		question := strings.TrimSpace(c.Question)
		answer := strings.TrimSpace(c.Answer)
		if question == "" || answer == "" {
			continue
		}

		ts := CanonicalTimestamp(c.SourceTimestamp)
		if ts == "" {
			ts = fallback
		}
		question = WithBracketTimestamp(question, ts)

		exact := question + "::" + answer
		loose := dedupeKey(question, answer)
		if _, dup := seen[exact]; dup {
			continue
		}
		if _, dup := seen[loose]; dup {
			continue
		}
		seen[exact] = struct{}{}
		seen[loose] = struct{}{}

		card := models.Card{
			Question:        question,
			Answer:          answer,
			SourceTimestamp: ts,
			SourceType:      nc.SourceType,
		}

		required := []string{"lecture:" + nc.LectureSlug, "type:" + string(nc.CardType)}
		// The slide the batch was generated from wins over any index the model echoes.
		if nc.SlideIndex != nil {
			idx := *nc.SlideIndex
			card.SlideIndex = &idx
			required = append(required, "slide:"+strconv.Itoa(idx))
		}
		card.Tags = unionTags(c.Tags, required)

		out = append(out, card)
	}
	return out
}

// dedupeKey compares cards ignoring case and runs of whitespace.
func dedupeKey(question, answer string) string {
	return normText(question) + "::" + normText(answer)
}

func normText(s string) string {
	return strings.ToLower(collapseSpace(s))
}

func unionTags(tags, required []string) []string {
	seen := make(map[string]struct{}, len(tags)+len(required))
	out := make([]string, 0, len(tags)+len(required))
	for _, group := range [][]string{tags, required} {
		for _, t := range group {
			if t == "" {
				continue
			}
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}
