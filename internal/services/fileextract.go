package services

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
)

// maxSlidesTextLen keeps the slides context within what the prompts can carry.
const maxSlidesTextLen = 20000

// Supported slide deck extensions.
const (
	extPDF  = ".pdf"
	extPPTX = ".pptx"
)

type FileExtractService struct{}

func NewFileExtractService() *FileExtractService {
	return &FileExtractService{}
}

// DeckExt returns the lower-cased extension of a slide deck, or a ValidationError for
// anything but PDF and PPTX.
func DeckExt(name string) (string, error) {
	ext := strings.ToLower(filepath.Ext(name))
	if ext != extPDF && ext != extPPTX {
		return "", invalid("Unsupported slides type. Use .pdf or .pptx")
	}
	return ext, nil
}

// SlideTexts returns the text of each slide (PPTX) or page (PDF), in order. Entries may
// be empty for image-only slides.
func (s *FileExtractService) SlideTexts(path string) ([]string, error) {
	ext, err := DeckExt(path)
	if err != nil {
		return nil, err
	}
	if ext == extPPTX {
		return s.pptxSlideTexts(path)
	}
	return s.pdfPageTexts(path)
}

// DeckText flattens a deck into one text block for use as slide context.
func (s *FileExtractService) DeckText(path string) (string, error) {
	ext, err := DeckExt(path)
	if err != nil {
		return "", err
	}
	texts, err := s.SlideTexts(path)
	if err != nil {
		return "", err
	}

	var text string
	if ext == extPPTX {
		blocks := make([]string, len(texts))
		for i, t := range texts {
			blocks[i] = fmt.Sprintf("Slide %d:\n%s", i+1, t)
		}
		text = strings.Join(blocks, "\n\n")
	} else {
		text = normalizeExtractedText(strings.Join(texts, "\n"))
	}
	return truncate(text, maxSlidesTextLen), nil
}

func (s *FileExtractService) pdfPageTexts(path string) ([]string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	totalPage := reader.NumPage()
	texts := make([]string, 0, totalPage)
	for pageIndex := 1; pageIndex <= totalPage; pageIndex++ {
		page := reader.Page(pageIndex)
		if page.V.IsNull() {
			texts = append(texts, "")
			continue
		}

		content, err := page.GetPlainText(nil)
		if err != nil {
			texts = append(texts, "")
			continue
		}
		texts = append(texts, normalizeExtractedText(content))
	}
	return texts, nil
}

var slideXMLPattern = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

func (s *FileExtractService) pptxSlideTexts(path string) ([]string, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open pptx: %w", err)
	}
	defer r.Close()

	type slideFile struct {
		n int
		f *zip.File
	}
	var slides []slideFile
	for _, f := range r.File {
		m := slideXMLPattern.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		slides = append(slides, slideFile{n: n, f: f})
	}
	if len(slides) == 0 {
		return nil, invalid("pptx contains no slides")
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].n < slides[j].n })

	texts := make([]string, len(slides))
	for i, sl := range slides {
		rc, err := sl.f.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, err
		}
		texts[i] = slideXMLText(data)
	}
	return texts, nil
}

// slideXMLText collects the text runs (<a:t>) of one slide, one line per run.
func slideXMLText(data []byte) string {
	dec := xml.NewDecoder(bytes.NewReader(data))
	var (
		lines  []string
		inText bool
		cur    strings.Builder
	)
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
				cur.Reset()
			}
		case xml.CharData:
			if inText {
				cur.Write(t)
			}
		case xml.EndElement:
			if t.Name.Local == "t" && inText {
				inText = false
				if line := strings.Join(strings.Fields(cur.String()), " "); line != "" {
					lines = append(lines, line)
				}
			}
		}
	}
	return strings.Join(lines, "\n")
}

func normalizeExtractedText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	lines := strings.Split(s, "\n")
	buf := bytes.Buffer{}

	emptyCount := 0
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			emptyCount++
			if emptyCount > 1 {
				continue
			}
			buf.WriteString("\n")
			continue
		}
		emptyCount = 0
		buf.WriteString(trimmed)
		buf.WriteString("\n")
	}

	return strings.TrimSpace(buf.String())
}

// slideTitle is the first non-empty line of a slide's text.
func slideTitle(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return truncate(line, maxTitleLen)
		}
	}
	return ""
}
