package services

import (
	"encoding/json"
	"fmt"
	"strings"

	"lecture-anki-backend/internal/models"
	"lecture-anki-backend/internal/pipeline"
)

const (
	labelContextLimit      = 6000
	slidesContextLimit     = 6000
	transcriptContextLimit = 4000
	cardMaxOutputTokens    = 3500
)

const labelSystemPrompt = "You label pre-chunked transcript windows. For EACH input window, return a concise, high-yield title and 3-6 bullet key points. " +
	"Prioritize definitions, mechanisms, steps, key equations, comparisons and exceptions. " +
	"Do NOT invent facts. Do NOT merge or split windows. Keep one output item per input index."

const cardSystemPrompt = "You are a teaching expert and Anki deck creator. Return ONLY valid JSON. " +
	"Use only the provided slides and transcript; do not invent facts."

const slideSystemPrompt = "You are an Anki deck creator. The slide image is the primary source; use any OCR text only as backup. " +
	"Prefer 2-4 cards per content-rich slide and at least 1. One atomic fact per card. " +
	"For cloze, use Anki {{c1::...}} syntax with at most 2 clozes. " +
	"When a timestamp window is provided, keep it. Output strict JSON only."

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

type labelWindow struct {
	Idx   int     `json:"idx"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

func buildLabelPrompt(lectureTitle string, windows []models.Window, slidesText, transcriptText string) string {
	in := make([]labelWindow, len(windows))
	for i, w := range windows {
		in[i] = labelWindow{Idx: w.Index, Start: w.Start, End: w.End, Text: w.Text}
	}
	windowsJSON, _ := json.MarshalIndent(map[string]any{"windows": in}, "", "  ")

	var b strings.Builder
	fmt.Fprintf(&b, "LECTURE: %s\n\n", lectureTitle)
	b.WriteString(`You will get: [{ "idx": number, "start": seconds, "end": seconds, "text": string }]

Rules:
- Return EXACTLY one label object per input window, with the SAME idx.
- Do NOT change start/end/text; you are only labeling.
- Titles must be short, specific, descriptive.
- Key points: 3-6 exam-level bullets (concise).

`)
	b.WriteString("EXTRA CONTEXT (TRUNCATED):\nSLIDES:\n")
	b.WriteString(truncate(slidesText, labelContextLimit))
	b.WriteString("\n\nMANUAL TRANSCRIPT:\n")
	b.WriteString(truncate(transcriptText, labelContextLimit))
	b.WriteString("\n\nWINDOWS JSON:\n")
	b.Write(windowsJSON)
	b.WriteString(`

OUTPUT JSON EXACTLY:
{
  "labels": [
    { "idx": 0, "title": "string", "key_points": ["..."] }
  ]
}`)
	return b.String()
}

type cardPromptInput struct {
	LectureTitle   string
	LectureSlug    string
	CardType       models.CardType
	Section        models.Section
	SlidesText     string
	TranscriptText string
	// Quota is the exact number of cards wanted; zero asks for exhaustive coverage.
	Quota int
}

func buildCardPrompt(in cardPromptInput) string {
	var b strings.Builder

	b.WriteString("You are a world-class spaced-repetition flashcard designer. ")
	b.WriteString("Craft exam-grade Anki cards grounded ONLY in the provided materials.\n\n")

	b.WriteString(`PRIORITY OF SOURCES (strict):
1) Slides (central, authoritative).
2) Transcript (supporting detail that can add nuance).
3) Do not add external facts not present in slides or transcript.

CARD RULES
`)
	if in.CardType == models.CardTypeCloze {
		b.WriteString("- Card type = Cloze (Anki {{c1::...}} syntax; 1-2 clozes max per card).\n")
	} else {
		b.WriteString("- Card type = Basic (Q->A).\n")
	}
	b.WriteString(`- Keep one atomic fact per card. Use additional cards for multi-part facts.
- Prefer high-yield items: definitions, mechanisms, steps, regulation points, cause->effect, comparisons, exceptions.
- Include a mm:ss-mm:ss timestamp range from THIS section that grounds the card.
- Avoid duplicates or overlaps within this section.

QUANTITY
`)
	if in.Quota > 0 {
		fmt.Fprintf(&b, "- Produce EXACTLY %d cards grounded in THIS section. If insufficient explicit content exists, produce as many as possible and keep placeholders out.\n", in.Quota)
	} else {
		b.WriteString("- Produce as many cards as needed to cover ALL explicit high-yield facts in THIS section (exhaustive).\n")
	}

	b.WriteString("\nCONTEXT (truncated):\nSLIDES (primary):\n")
	b.WriteString(truncate(in.SlidesText, slidesContextLimit))
	b.WriteString("\n\nTRANSCRIPT (supporting):\n")
	b.WriteString(truncate(in.TranscriptText, transcriptContextLimit))

	fmt.Fprintf(&b, "\n\nSECTION\nLecture: %s\nTitle: %s\nWindow: %s\nText:\n%s\n\n",
		in.LectureTitle, in.Section.Title, pipeline.TimestampRange(in.Section.Start, in.Section.End), in.Section.Text)

	fmt.Fprintf(&b, `OUTPUT JSON EXACTLY:
{
  "cards": [
    {
      "question": "string",
      "answer": "string",
      "tags": ["lecture:%s", "type:%s"],
      "source_timestamp": "mm:ss-mm:ss"
    }
  ]
}
For CLOZE, place the cloze(s) in "question"; put brief back-extra/explanation in "answer".`, in.LectureSlug, in.CardType)

	return b.String()
}

type slidePromptInput struct {
	LectureTitle string
	LectureSlug  string
	CardType     models.CardType
	SlideIndex   int
}

func buildSlidePrompt(in slidePromptInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Create high-yield %s cards from this slide of %q.\n", in.CardType, in.LectureTitle)
	b.WriteString(`Schema:
{
  "cards": [
    { "question": "string", "answer": "string", "tags": [], "source_timestamp": "mm:ss-mm:ss", "slide_index": number }
  ]
}
Constraints:
`)
	fmt.Fprintf(&b, "- Tags must include: lecture:%s, type:%s, slide:%d\n", in.LectureSlug, in.CardType, in.SlideIndex)
	b.WriteString("- Use one atomic fact per card; 2-4 cards if warranted else at least 1\n")
	return b.String()
}

// slideNotes are the text parts sent after the slide image.
func slideNotes(ocrText, timestamp string) []string {
	var notes []string
	if strings.TrimSpace(ocrText) != "" {
		notes = append(notes, "OCR (may be imperfect):\n"+ocrText)
	}
	if timestamp != "" {
		notes = append(notes, "Suggested timestamp window for this slide: "+timestamp)
	}
	return notes
}
