package pipeline

import "lecture-anki-backend/internal/models"

// DefaultCardCeiling caps exhaustive output.
const DefaultCardCeiling = 1000

// Merge combines slide-image cards and transcript cards into one deck. Slide cards come
// first, so they win both deduplication and truncation. With a target count the deck is
// cut to at most that many cards; a shortfall is returned as is. Without one the deck is
// cut at ceiling.
func Merge(imageCards, textCards []models.Card, targetCount *int, ceiling int) []models.Card {
	if ceiling <= 0 {
		ceiling = DefaultCardCeiling
	}

	seen := make(map[string]struct{}, len(imageCards)+len(textCards))
	out := make([]models.Card, 0, len(imageCards)+len(textCards))
	for _, group := range [][]models.Card{imageCards, textCards} {
		for _, c := range group {
			key := dedupeKey(c.Question, c.Answer)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, c)
		}
	}

	limit := ceiling
	if targetCount != nil && *targetCount > 0 {
		limit = *targetCount
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
