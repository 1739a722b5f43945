package handlers

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"lecture-anki-backend/internal/export"
	"lecture-anki-backend/internal/logger"
	"lecture-anki-backend/internal/models"
)

type ExportHandler struct {
	log *logger.Logger
}

func NewExportHandler(log *logger.Logger) *ExportHandler {
	return &ExportHandler{log: log}
}

// Export renders {cards, deck?} as a downloadable file in the format named by the path.
func (h *ExportHandler) Export(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(chi.URLParam(r, "format"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", err.Error(), r))
		return
	}

	var req models.ExportRequest
	if err := decodeAndValidate(r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, format, req.Cards); err != nil {
		h.log.WithRequest(r).WithError(err).Error("export failed")
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to export cards", r))
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, export.Filename(req.Deck, format)))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}
