package models

// TranscriptSegment is one timed span of speech, in seconds from the start of the lecture.
type TranscriptSegment struct {
	Start float64 `json:"start" validate:"gte=0"`
	End   float64 `json:"end" validate:"gtefield=Start"`
	Text  string  `json:"text"`
}

// Window is a run of consecutive segments grouped by the windowing engine, before labeling.
type Window struct {
	Index int     `json:"index"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

func (w Window) Duration() float64 {
	return w.End - w.Start
}

// Section is a labeled window.
type Section struct {
	Index     int      `json:"index"`
	Title     string   `json:"title" validate:"required"`
	Start     float64  `json:"start" validate:"gte=0"`
	End       float64  `json:"end" validate:"gtefield=Start"`
	KeyPoints []string `json:"key_points" validate:"required"`
	Text      string   `json:"text" validate:"required"`
}

type CardType string

const (
	CardTypeBasic CardType = "basic"
	CardTypeCloze CardType = "cloze"
)

type SourceType string

const (
	SourceSlides     SourceType = "slides"
	SourceTranscript SourceType = "transcript"
)

type Card struct {
	Question        string     `json:"question"`
	Answer          string     `json:"answer"`
	Tags            []string   `json:"tags"`
	SourceTimestamp string     `json:"source_timestamp"`
	SlideIndex      *int       `json:"slide_index,omitempty"`
	SourceType      SourceType `json:"source_type,omitempty"`
}

// Slide is one rendered page of an uploaded deck.
type Slide struct {
	Index int    `json:"index"`
	Title string `json:"title,omitempty"`
	Text  string `json:"-"`
	Image []byte `json:"-"`
	// Skipped is set for administrative slides that are not sent for generation.
	Skipped bool `json:"skipped,omitempty"`
}
