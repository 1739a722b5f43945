package services

import (
	"context"
	"math"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"lecture-anki-backend/internal/models"
	"lecture-anki-backend/internal/pipeline"
)

const slidesPipeline = "slides"

type SlideService struct {
	engine    *Engine
	renderer  Renderer
	extractor *FileExtractService
}

func NewSlideService(engine *Engine, renderer Renderer, extractor *FileExtractService) *SlideService {
	return &SlideService{engine: engine, renderer: renderer, extractor: extractor}
}

// ExtractText returns the deck's text for use as slide context.
func (s *SlideService) ExtractText(path string) (string, error) {
	return s.extractor.DeckText(path)
}

// SlideDeck describes an uploaded deck for the image path.
type SlideDeck struct {
	Path     string
	Filename string
	Options  models.SlideCardsOptions
}

// GenerateCards renders every slide and asks the model for cards from each image.
func (s *SlideService) GenerateCards(ctx context.Context, requestID string, deck SlideDeck) (models.SlideCardsResponse, error) {
	tr := newTracker(s.engine.Progress, requestID, slidesPipeline)

	cards, slides, err := s.imageCards(ctx, tr, requestID, deck)
	if err != nil {
		return models.SlideCardsResponse{}, err
	}

	tr.stage(ctx, models.StageMerging)
	final := pipeline.Merge(cards, nil, nil, s.engine.ceiling())
	tr.done(ctx, len(final))
	return models.SlideCardsResponse{Cards: final, Slides: slides}, nil
}

// resolveSlideOptions fills in defaults: the title falls back to the file name, the slug
// to the slugified title, the card type to basic.
func resolveSlideOptions(deck SlideDeck) models.SlideCardsOptions {
	opts := deck.Options
	opts.LectureTitle = strings.TrimSpace(opts.LectureTitle)
	if opts.LectureTitle == "" {
		opts.LectureTitle = filepath.Base(deck.Filename)
	}
	opts.LectureSlug = strings.TrimSpace(opts.LectureSlug)
	if opts.LectureSlug == "" {
		opts.LectureSlug = pipeline.Slugify(opts.LectureTitle)
	}
	opts.CardType = defaultCardType(opts.CardType)
	return opts
}

// imageCards runs the slide-image path up to normalization. Every slide is listed in the
// returned slides; administrative slides are marked skipped and not sent to the model.
func (s *SlideService) imageCards(ctx context.Context, tr *tracker, requestID string, deck SlideDeck) ([]models.Card, []models.Slide, error) {
	log := s.engine.Log.WithFields(logrus.Fields{"request_id": requestID, "pipeline": tr.pipeline})

	if _, err := DeckExt(deck.Filename); err != nil {
		return nil, nil, err
	}
	opts := resolveSlideOptions(deck)

	images, err := s.renderer.Render(ctx, deck.Path)
	if err != nil {
		tr.fail(ctx, err)
		return nil, nil, err
	}

	texts, err := s.extractor.SlideTexts(deck.Path)
	if err != nil {
		log.WithError(err).Warn("slide text unavailable, continuing with images only")
		texts = nil
	}

	slides := make([]models.Slide, len(images))
	var work []models.Slide
	for i, img := range images {
		sl := models.Slide{Index: i + 1, Image: img}
		if i < len(texts) {
			sl.Text = texts[i]
			sl.Title = slideTitle(texts[i])
		}
		sl.Skipped = IsAdminSlide(sl.Title, sl.Text)
		slides[i] = sl
		if !sl.Skipped {
			work = append(work, sl)
		}
	}
	log.WithFields(logrus.Fields{"slides": len(slides), "skipped": len(slides) - len(work)}).Info("deck rendered")

	tr.generating(ctx, len(work))
	results, err := pipeline.MapWithConcurrency(ctx, work, s.engine.concurrency(),
		func(ctx context.Context, sl models.Slide, _ int) ([]models.Card, error) {
			ts := PickTimestamp(sl.Text, opts.Segments)

			raw, err := s.engine.generate(ctx, "generate-slide-cards", GenerateRequest{
				System: slideSystemPrompt,
				Prompt: buildSlidePrompt(slidePromptInput{
					LectureTitle: opts.LectureTitle,
					LectureSlug:  opts.LectureSlug,
					CardType:     opts.CardType,
					SlideIndex:   sl.Index,
				}),
				Images:          [][]byte{sl.Image},
				Notes:           slideNotes(sl.Text, ts),
				JSON:            true,
				MaxOutputTokens: cardMaxOutputTokens,
			})
			if err != nil {
				return nil, err
			}

			res := pipeline.ParseCandidates(raw)
			if !res.OK() {
				log.WithField("slide", sl.Index).WithError(res.Err).Warn("slide produced no parseable cards")
			}
			idx := sl.Index
			cards := pipeline.Normalize(res.Candidates, pipeline.NormalizeContext{
				LectureSlug:       opts.LectureSlug,
				CardType:          opts.CardType,
				FallbackTimestamp: ts,
				SlideIndex:        &idx,
				SourceType:        models.SourceSlides,
			})
			tr.unitDone(ctx)
			return cards, nil
		})
	if err != nil {
		gerr := &GenerationError{Stage: "slide card generation", Err: err}
		tr.fail(ctx, gerr)
		return nil, nil, gerr
	}

	tr.stage(ctx, models.StageNormalizing)
	var cards []models.Card
	for _, r := range results {
		cards = append(cards, r...)
	}
	// Slides are normalized one at a time; repeats across slides go in the merge.
	return cards, slides, nil
}

var nonWordChars = regexp.MustCompile(`[^\p{L}\p{N}\s]`)

func words(s string) []string {
	return strings.Fields(nonWordChars.ReplaceAllString(strings.ToLower(s), " "))
}

// PickTimestamp grounds a slide in the transcript: the segment sharing the most
// words longer than three characters with the slide wins, and its start anchors a
// window of 10 to 40 seconds. It returns "" when nothing overlaps.
func PickTimestamp(slideText string, segments []models.TranscriptSegment) string {
	if len(segments) == 0 {
		return ""
	}

	terms := make(map[string]struct{})
	for _, w := range words(slideText) {
		if utf8.RuneCountInString(w) > 3 {
			terms[w] = struct{}{}
		}
	}
	if len(terms) == 0 {
		return ""
	}

	best, bestScore := -1, 0
	for i, seg := range segments {
		score := 0
		for _, w := range words(seg.Text) {
			if _, ok := terms[w]; ok {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 {
		return ""
	}

	seg := segments[best]
	dur := math.Max(10, math.Min(40, roundHalfUp(seg.End-seg.Start)))
	start := math.Max(0, roundHalfUp(seg.Start))
	return pipeline.TimestampRange(start, start+dur)
}

func roundHalfUp(x float64) float64 {
	return math.Floor(x + 0.5)
}

var (
	adminSlideKeys = []string{"references", "bibliography", "reading list", "course info", "assessment", "housekeeping", "outline"}
	keepSlideKeys  = []string{"learning objectives", "learning outcomes", "objectives", "outcomes"}
)

// IsAdminSlide reports slides about course logistics rather than content. Slides that
// state objectives or outcomes are always kept.
func IsAdminSlide(title, text string) bool {
	t := strings.ToLower(title)
	body := strings.ToLower(text)
	for _, k := range keepSlideKeys {
		if strings.Contains(t, k) || strings.Contains(body, k) {
			return false
		}
	}
	for _, k := range adminSlideKeys {
		if strings.Contains(t, k) {
			return true
		}
	}
	return false
}
