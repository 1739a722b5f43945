package services

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"lecture-anki-backend/internal/models"
	"lecture-anki-backend/internal/pipeline"
)

const cardsPipeline = "cards"

type CardService struct {
	engine *Engine
}

func NewCardService(engine *Engine) *CardService {
	return &CardService{engine: engine}
}

// Generate produces cards for every section. With a target count the budget is split
// across sections by text length and the result holds at most that many cards; without
// one each section is covered exhaustively up to the card ceiling.
func (s *CardService) Generate(ctx context.Context, requestID string, req models.GenerateCardsRequest) ([]models.Card, error) {
	tr := newTracker(s.engine.Progress, requestID, cardsPipeline)

	cards, err := s.textCards(ctx, tr, requestID, req)
	if err != nil {
		return nil, err
	}

	tr.stage(ctx, models.StageMerging)
	final := pipeline.Merge(nil, cards, req.TargetCount, s.engine.ceiling())
	logShortfall(s.engine.Log.WithField("request_id", requestID), req.TargetCount, len(final))

	tr.done(ctx, len(final))
	return final, nil
}

// textCards runs the transcript path up to normalization. The cards are not yet merged
// or truncated.
func (s *CardService) textCards(ctx context.Context, tr *tracker, requestID string, req models.GenerateCardsRequest) ([]models.Card, error) {
	log := s.engine.Log.WithFields(logrus.Fields{"request_id": requestID, "pipeline": tr.pipeline})

	if len(req.Sections) == 0 {
		return []models.Card{}, nil
	}

	var quotas []int
	if !req.Exhaustive() {
		tr.stage(ctx, models.StageAllocating)
		texts := make([]string, len(req.Sections))
		for i, sec := range req.Sections {
			texts[i] = sec.Text
		}
		quotas = pipeline.Allocate(texts, *req.TargetCount)
	}

	tr.generating(ctx, len(req.Sections))
	results, err := pipeline.MapWithConcurrency(ctx, req.Sections, s.engine.concurrency(),
		func(ctx context.Context, sec models.Section, i int) ([]pipeline.Candidate, error) {
			in := cardPromptInput{
				LectureTitle:   req.LectureTitle,
				LectureSlug:    req.LectureSlug,
				CardType:       req.CardType,
				Section:        sec,
				SlidesText:     req.SlidesText,
				TranscriptText: req.TranscriptText,
			}
			if quotas != nil {
				in.Quota = max(1, quotas[i])
			}

			raw, err := s.engine.generate(ctx, "generate-cards", GenerateRequest{
				System:          cardSystemPrompt,
				Prompt:          buildCardPrompt(in),
				JSON:            true,
				MaxOutputTokens: cardMaxOutputTokens,
			})
			if err != nil {
				return nil, err
			}

			res := pipeline.ParseCandidates(raw)
			if !res.OK() {
				log.WithField("section", i).WithError(res.Err).Warn("section produced no parseable cards")
			} else if res.Recovered {
				log.WithField("section", i).Debug("recovered cards from loose model output")
			}
			tr.unitDone(ctx)
			return res.Candidates, nil
		})
	if err != nil {
		gerr := &GenerationError{Stage: "card generation", Err: err}
		tr.fail(ctx, gerr)
		return nil, gerr
	}

	tr.stage(ctx, models.StageNormalizing)
	var flat []pipeline.Candidate
	for _, r := range results {
		flat = append(flat, r...)
	}
	return pipeline.Normalize(flat, pipeline.NormalizeContext{
		LectureSlug: req.LectureSlug,
		CardType:    req.CardType,
		SourceType:  models.SourceTranscript,
	}), nil
}

func logShortfall(log *logrus.Entry, target *int, got int) {
	if target != nil && got < *target {
		log.WithFields(logrus.Fields{"target": *target, "cards": got}).Info("fewer cards than requested")
	}
}

// defaultCardType treats anything but an explicit cloze request as basic.
func defaultCardType(t models.CardType) models.CardType {
	if models.CardType(strings.ToLower(string(t))) == models.CardTypeCloze {
		return models.CardTypeCloze
	}
	return models.CardTypeBasic
}
