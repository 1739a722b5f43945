package handlers

import (
	"context"
	"net/http"

	"lecture-anki-backend/internal/logger"
	"lecture-anki-backend/internal/models"
)

type Transcriber interface {
	TranscribeMedia(ctx context.Context, media []byte, mimeType string) (models.TranscribeResponse, error)
	TranscribeText(text string) models.TranscribeResponse
	TranscribeYouTube(ctx context.Context, url, lang string) (models.TranscribeResponse, error)
}

type TranscribeHandler struct {
	transcriber Transcriber
	uploads     uploads
	log         *logger.Logger
}

func NewTranscribeHandler(transcriber Transcriber, maxUploadBytes int64, log *logger.Logger) *TranscribeHandler {
	return &TranscribeHandler{
		transcriber: transcriber,
		uploads:     uploads{maxBytes: maxUploadBytes},
		log:         log,
	}
}

// Transcribe accepts an audio or video upload in the "file" field.
func (h *TranscribeHandler) Transcribe(w http.ResponseWriter, r *http.Request) {
	if err := h.uploads.parse(w, r); err != nil {
		handleServiceError(w, r, err)
		return
	}

	media, mimeType, err := readMedia(r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	resp, err := h.transcriber.TranscribeMedia(r.Context(), media, mimeType)
	if err != nil {
		h.log.WithRequest(r).WithError(err).Warn("transcription failed")
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *TranscribeHandler) TranscribeText(w http.ResponseWriter, r *http.Request) {
	var req models.TranscribeTextRequest
	if err := decodeAndValidate(r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.transcriber.TranscribeText(req.Text))
}

func (h *TranscribeHandler) TranscribeYouTube(w http.ResponseWriter, r *http.Request) {
	var req models.TranscribeYouTubeRequest
	if err := decodeAndValidate(r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	resp, err := h.transcriber.TranscribeYouTube(r.Context(), req.URL, req.Language)
	if err != nil {
		h.log.WithRequest(r).WithError(err).Warn("youtube transcription failed")
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
