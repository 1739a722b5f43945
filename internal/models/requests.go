package models

type GenerateSectionsRequest struct {
	Segments       []TranscriptSegment `json:"segments" validate:"required,dive"`
	LectureTitle   string              `json:"lectureTitle" validate:"required"`
	SlidesText     string              `json:"slidesText,omitempty"`
	TranscriptText string              `json:"transcriptText,omitempty"`
}

type GenerateSectionsResponse struct {
	Sections []Section `json:"sections"`
}

type GenerateCardsRequest struct {
	LectureTitle   string    `json:"lectureTitle" validate:"required"`
	LectureSlug    string    `json:"lectureSlug" validate:"required"`
	CardType       CardType  `json:"cardType" validate:"required,oneof=basic cloze"`
	TargetCount    *int      `json:"targetCount,omitempty" validate:"omitempty,gt=0"`
	Sections       []Section `json:"sections" validate:"required,dive"`
	SlidesText     string    `json:"slidesText,omitempty"`
	TranscriptText string    `json:"transcriptText,omitempty"`
}

// Exhaustive reports whether no target count was requested.
func (r GenerateCardsRequest) Exhaustive() bool {
	return r.TargetCount == nil
}

type GenerateCardsResponse struct {
	Cards []Card `json:"cards"`
}

// SlideCardsOptions carries the form fields that accompany an uploaded deck.
type SlideCardsOptions struct {
	LectureTitle string              `json:"lectureTitle"`
	LectureSlug  string              `json:"lectureSlug"`
	CardType     CardType            `json:"cardType" validate:"omitempty,oneof=basic cloze"`
	Segments     []TranscriptSegment `json:"segments,omitempty" validate:"omitempty,dive"`
}

type SlideCardsResponse struct {
	Cards  []Card  `json:"cards"`
	Slides []Slide `json:"slides"`
}

// GenerateDeckRequest drives both generation paths for one lecture. Sections are derived
// from Segments when not supplied.
type GenerateDeckRequest struct {
	LectureTitle   string              `json:"lectureTitle" validate:"required"`
	LectureSlug    string              `json:"lectureSlug,omitempty"`
	CardType       CardType            `json:"cardType,omitempty" validate:"omitempty,oneof=basic cloze"`
	TargetCount    *int                `json:"targetCount,omitempty" validate:"omitempty,gt=0"`
	Sections       []Section           `json:"sections,omitempty" validate:"omitempty,dive"`
	Segments       []TranscriptSegment `json:"segments,omitempty" validate:"omitempty,dive"`
	SlidesText     string              `json:"slidesText,omitempty"`
	TranscriptText string              `json:"transcriptText,omitempty"`
}

type GenerateDeckResponse struct {
	Cards          []Card  `json:"cards"`
	Slides         []Slide `json:"slides"`
	SlideCardCount int     `json:"slide_card_count"`
	TextCardCount  int     `json:"text_card_count"`
}

type TranscribeResponse struct {
	Segments []TranscriptSegment `json:"segments"`
	Text     string              `json:"text"`
}

type TranscribeTextRequest struct {
	Text string `json:"text" validate:"required"`
}

type TranscribeYouTubeRequest struct {
	URL      string `json:"url" validate:"required,url"`
	Language string `json:"language,omitempty"`
}

type SlidesTextResponse struct {
	Text string `json:"text"`
}

type ExportRequest struct {
	Cards []Card `json:"cards" validate:"required"`
	Deck  string `json:"deck,omitempty"`
}
