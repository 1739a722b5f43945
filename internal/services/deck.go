package services

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"lecture-anki-backend/internal/models"
	"lecture-anki-backend/internal/pipeline"
)

const deckPipeline = "deck"

// DeckService combines the slide-image path and the transcript path into one deck.
type DeckService struct {
	engine   *Engine
	sections *SectionService
	cards    *CardService
	slides   *SlideService
}

func NewDeckService(engine *Engine, sections *SectionService, cards *CardService, slides *SlideService) *DeckService {
	return &DeckService{engine: engine, sections: sections, cards: cards, slides: slides}
}

// Generate runs both paths concurrently and merges them, slide cards first, under one
// target count. Either path failing fails the deck.
func (s *DeckService) Generate(ctx context.Context, requestID, deckPath, filename string, req models.GenerateDeckRequest) (models.GenerateDeckResponse, error) {
	log := s.engine.Log.WithFields(logrus.Fields{"request_id": requestID, "pipeline": deckPipeline})
	tr := newTracker(s.engine.Progress, requestID, deckPipeline)

	if _, err := DeckExt(filename); err != nil {
		return models.GenerateDeckResponse{}, err
	}

	opts := resolveSlideOptions(SlideDeck{
		Filename: filename,
		Options: models.SlideCardsOptions{
			LectureTitle: req.LectureTitle,
			LectureSlug:  req.LectureSlug,
			CardType:     req.CardType,
			Segments:     req.Segments,
		},
	})

	sections := req.Sections
	if len(sections) == 0 && len(req.Segments) > 0 {
		var err error
		sections, err = s.sections.Generate(ctx, requestID, models.GenerateSectionsRequest{
			Segments:       req.Segments,
			LectureTitle:   opts.LectureTitle,
			SlidesText:     req.SlidesText,
			TranscriptText: req.TranscriptText,
		})
		if err != nil {
			return models.GenerateDeckResponse{}, err
		}
	}

	slidesText := req.SlidesText
	if strings.TrimSpace(slidesText) == "" {
		text, err := s.slides.ExtractText(deckPath)
		if err != nil {
			log.WithError(err).Warn("slide text unavailable for transcript prompts")
		}
		slidesText = text
	}

	var (
		imageCards, textCards []models.Card
		slides                []models.Slide
	)
	paths := []func(ctx context.Context) error{
		func(ctx context.Context) error {
			var err error
			imageCards, slides, err = s.slides.imageCards(ctx, newTracker(s.engine.Progress, requestID, slidesPipeline), requestID, SlideDeck{
				Path:     deckPath,
				Filename: filename,
				Options:  opts,
			})
			return err
		},
		func(ctx context.Context) error {
			var err error
			textCards, err = s.cards.textCards(ctx, newTracker(s.engine.Progress, requestID, cardsPipeline), requestID, models.GenerateCardsRequest{
				LectureTitle:   opts.LectureTitle,
				LectureSlug:    opts.LectureSlug,
				CardType:       opts.CardType,
				TargetCount:    req.TargetCount,
				Sections:       sections,
				SlidesText:     slidesText,
				TranscriptText: req.TranscriptText,
			})
			return err
		},
	}
	// The first failing path fails the deck without waiting on the other one.
	if _, err := pipeline.MapWithConcurrency(ctx, paths, len(paths), func(ctx context.Context, run func(context.Context) error, _ int) (struct{}, error) {
		return struct{}{}, run(ctx)
	}); err != nil {
		tr.fail(ctx, err)
		return models.GenerateDeckResponse{}, err
	}

	tr.stage(ctx, models.StageMerging)
	final := pipeline.Merge(imageCards, textCards, req.TargetCount, s.engine.ceiling())
	logShortfall(log, req.TargetCount, len(final))

	resp := models.GenerateDeckResponse{Cards: final, Slides: slides}
	for _, c := range final {
		if c.SourceType == models.SourceSlides {
			resp.SlideCardCount++
		} else {
			resp.TextCardCount++
		}
	}
	tr.done(ctx, len(final))
	return resp, nil
}
