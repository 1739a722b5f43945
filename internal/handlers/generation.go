package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"lecture-anki-backend/internal/logger"
	"lecture-anki-backend/internal/models"
	"lecture-anki-backend/internal/services"
)

type SectionGenerator interface {
	Generate(ctx context.Context, requestID string, req models.GenerateSectionsRequest) ([]models.Section, error)
}

type CardGenerator interface {
	Generate(ctx context.Context, requestID string, req models.GenerateCardsRequest) ([]models.Card, error)
}

type SlideCardGenerator interface {
	GenerateCards(ctx context.Context, requestID string, deck services.SlideDeck) (models.SlideCardsResponse, error)
	ExtractText(path string) (string, error)
}

type DeckGenerator interface {
	Generate(ctx context.Context, requestID, deckPath, filename string, req models.GenerateDeckRequest) (models.GenerateDeckResponse, error)
}

type GenerationHandler struct {
	sections SectionGenerator
	cards    CardGenerator
	slides   SlideCardGenerator
	deck     DeckGenerator
	uploads  uploads
	log      *logger.Logger
}

func NewGenerationHandler(sections SectionGenerator, cards CardGenerator, slides SlideCardGenerator, deck DeckGenerator, uploadDir string, maxUploadBytes int64, log *logger.Logger) *GenerationHandler {
	return &GenerationHandler{
		sections: sections,
		cards:    cards,
		slides:   slides,
		deck:     deck,
		uploads:  uploads{dir: uploadDir, maxBytes: maxUploadBytes},
		log:      log,
	}
}

func (h *GenerationHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	entry := h.log.WithRequest(r).WithError(err)
	var verr *services.ValidationError
	if errors.As(err, &verr) {
		entry.Info("rejected generation request")
	} else {
		entry.Error("generation request failed")
	}
	handleServiceError(w, r, err)
}

func (h *GenerationHandler) GenerateSections(w http.ResponseWriter, r *http.Request) {
	var req models.GenerateSectionsRequest
	if err := decodeAndValidate(r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	sections, err := h.sections.Generate(r.Context(), logger.RequestID(r), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.GenerateSectionsResponse{Sections: sections})
}

func (h *GenerationHandler) GenerateCards(w http.ResponseWriter, r *http.Request) {
	var req models.GenerateCardsRequest
	if err := decodeAndValidate(r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	cards, err := h.cards.Generate(r.Context(), logger.RequestID(r), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.GenerateCardsResponse{Cards: cards})
}

// GenerateSlideCards takes a multipart deck upload with optional lectureTitle,
// lectureSlug, cardType and segments (JSON) fields.
func (h *GenerationHandler) GenerateSlideCards(w http.ResponseWriter, r *http.Request) {
	if err := h.uploads.parse(w, r); err != nil {
		handleServiceError(w, r, err)
		return
	}

	opts := models.SlideCardsOptions{
		LectureTitle: r.FormValue("lectureTitle"),
		LectureSlug:  r.FormValue("lectureSlug"),
		CardType:     models.CardType(strings.ToLower(strings.TrimSpace(r.FormValue("cardType")))),
	}
	if raw := strings.TrimSpace(r.FormValue("segments")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &opts.Segments); err != nil {
			handleServiceError(w, r, &services.ValidationError{
				Message: "Validation failed",
				Fields:  map[string]string{"segments": "must be a JSON array of segments"},
			})
			return
		}
	}
	if err := validateStruct(opts); err != nil {
		handleServiceError(w, r, err)
		return
	}

	path, filename, cleanup, err := h.uploads.saveDeck(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	defer cleanup()

	resp, err := h.slides.GenerateCards(r.Context(), logger.RequestID(r), services.SlideDeck{
		Path:     path,
		Filename: filename,
		Options:  opts,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// GenerateDeck takes a deck upload plus a JSON payload field and runs both generation
// paths.
func (h *GenerationHandler) GenerateDeck(w http.ResponseWriter, r *http.Request) {
	if err := h.uploads.parse(w, r); err != nil {
		handleServiceError(w, r, err)
		return
	}

	var req models.GenerateDeckRequest
	if err := json.Unmarshal([]byte(r.FormValue("payload")), &req); err != nil {
		handleServiceError(w, r, &services.ValidationError{
			Message: "Validation failed",
			Fields:  map[string]string{"payload": "must be a JSON object"},
		})
		return
	}
	if err := validateStruct(req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	path, filename, cleanup, err := h.uploads.saveDeck(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	defer cleanup()

	resp, err := h.deck.Generate(r.Context(), logger.RequestID(r), path, filename, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.log.WithRequest(r).WithFields(logrus.Fields{
		"cards":       len(resp.Cards),
		"slide_cards": resp.SlideCardCount,
		"text_cards":  resp.TextCardCount,
	}).Info("deck generated")
	writeJSON(w, http.StatusOK, resp)
}

// SlidesText returns the flattened text of an uploaded deck.
func (h *GenerationHandler) SlidesText(w http.ResponseWriter, r *http.Request) {
	if err := h.uploads.parse(w, r); err != nil {
		handleServiceError(w, r, err)
		return
	}

	path, _, cleanup, err := h.uploads.saveDeck(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	defer cleanup()

	text, err := h.slides.ExtractText(path)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.SlidesTextResponse{Text: text})
}
