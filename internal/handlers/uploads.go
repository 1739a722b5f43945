package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"lecture-anki-backend/internal/services"
)

const multipartMemory = 32 << 20

// mediaTypes covers lecture recordings; the mime package only knows these when the host
// ships a mime.types file.
var mediaTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
	".flac": "audio/flac",
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".webm": "video/webm",
}

// uploads parses multipart bodies and spools uploaded decks to disk, where the
// extractors and renderers read them.
type uploads struct {
	dir      string
	maxBytes int64
}

func (u uploads) parse(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, u.maxBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return &services.ValidationError{Message: fmt.Sprintf("File exceeds %d MB limit", u.maxBytes>>20)}
		}
		return &services.ValidationError{Message: "Invalid multipart form"}
	}
	return nil
}

func formFile(r *http.Request) (multipart.File, *multipart.FileHeader, error) {
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, nil, &services.ValidationError{Message: "No file uploaded"}
	}
	return file, header, nil
}

// saveDeck writes the uploaded slide deck to a uniquely named file. The returned
// cleanup removes it.
func (u uploads) saveDeck(r *http.Request) (path, filename string, cleanup func(), err error) {
	file, header, err := formFile(r)
	if err != nil {
		return "", "", nil, err
	}
	defer file.Close()

	ext, err := services.DeckExt(header.Filename)
	if err != nil {
		return "", "", nil, err
	}

	if err := os.MkdirAll(u.dir, 0o755); err != nil {
		return "", "", nil, fmt.Errorf("create upload dir: %w", err)
	}
	path = filepath.Join(u.dir, uuid.NewString()+ext)
	dst, err := os.Create(path)
	if err != nil {
		return "", "", nil, fmt.Errorf("create upload: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		os.Remove(path)
		return "", "", nil, fmt.Errorf("save upload: %w", err)
	}
	return path, header.Filename, func() { os.Remove(path) }, nil
}

// readMedia returns the uploaded media and its MIME type, guessed from the extension or
// the content when the client sent none.
func readMedia(r *http.Request) ([]byte, string, error) {
	file, header, err := formFile(r)
	if err != nil {
		return nil, "", err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", fmt.Errorf("read upload: %w", err)
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		ext := strings.ToLower(filepath.Ext(header.Filename))
		if mimeType = mediaTypes[ext]; mimeType == "" {
			mimeType = mime.TypeByExtension(ext)
		}
	}
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	return data, mimeType, nil
}
