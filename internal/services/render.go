package services

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Renderer turns a slide deck into one JPEG per slide, in slide order.
type Renderer interface {
	Render(ctx context.Context, deckPath string) ([][]byte, error)
}

// CommandRenderer shells out to LibreOffice (PPTX to PDF) and poppler's pdftoppm
// (PDF to JPEG).
type CommandRenderer struct {
	Pdftoppm string
	Soffice  string
	Timeout  time.Duration
}

func NewCommandRenderer(pdftoppm, soffice string) *CommandRenderer {
	return &CommandRenderer{Pdftoppm: pdftoppm, Soffice: soffice, Timeout: time.Minute}
}

func toolHelp(name, url string) string {
	return fmt.Sprintf("Missing `%s` on PATH. Install: macOS `brew install %s`, Ubuntu `sudo apt-get install -y %s`. More: %s", name, name, name, url)
}

func (c *CommandRenderer) Render(ctx context.Context, deckPath string) ([][]byte, error) {
	ext, err := DeckExt(deckPath)
	if err != nil {
		return nil, err
	}

	workDir, err := os.MkdirTemp("", "slides-")
	if err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	pdfPath := deckPath
	if ext == extPPTX {
		if pdfPath, err = c.pptxToPDF(ctx, deckPath, workDir); err != nil {
			return nil, err
		}
	}
	return c.pdfToJPEGs(ctx, pdfPath, workDir)
}

func (c *CommandRenderer) run(ctx context.Context, bin string, args ...string) error {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, bin, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", filepath.Base(bin), err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (c *CommandRenderer) pptxToPDF(ctx context.Context, pptxPath, workDir string) (string, error) {
	soffice, err := exec.LookPath(c.Soffice)
	if err != nil {
		return "", invalid("%s", toolHelp("libreoffice", "https://wiki.documentfoundation.org/Documentation/HowTo/Install"))
	}

	outDir := filepath.Join(workDir, "pdf")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", err
	}
	if err := c.run(ctx, soffice, "--headless", "--convert-to", "pdf", "--outdir", outDir, pptxPath); err != nil {
		return "", fmt.Errorf("convert pptx: %w", err)
	}

	entries, err := os.ReadDir(outDir)
	if err != nil {
		return "", err
	}
	for _, e := range entries {
		if strings.EqualFold(filepath.Ext(e.Name()), extPDF) {
			return filepath.Join(outDir, e.Name()), nil
		}
	}
	return "", fmt.Errorf("convert pptx: no pdf produced")
}

func (c *CommandRenderer) pdfToJPEGs(ctx context.Context, pdfPath, workDir string) ([][]byte, error) {
	pdftoppm, err := exec.LookPath(c.Pdftoppm)
	if err != nil {
		return nil, invalid("%s", toolHelp("poppler", "https://poppler.freedesktop.org"))
	}

	outDir := filepath.Join(workDir, "pages")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, err
	}
	if err := c.run(ctx, pdftoppm, pdfPath, filepath.Join(outDir, "page"), "-jpeg", "-scale-to", "1024"); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}

	entries, err := os.ReadDir(outDir)
	if err != nil {
		return nil, err
	}
	pages := make([]string, 0, len(entries))
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "page-") && strings.HasSuffix(e.Name(), ".jpg") {
			pages = append(pages, e.Name())
		}
	}
	sort.Slice(pages, func(i, j int) bool { return pageNumber(pages[i]) < pageNumber(pages[j]) })

	images := make([][]byte, len(pages))
	for i, p := range pages {
		if images[i], err = os.ReadFile(filepath.Join(outDir, p)); err != nil {
			return nil, err
		}
	}
	return images, nil
}

// pageNumber parses N out of pdftoppm's page-N.jpg (N may be zero-padded).
func pageNumber(name string) int {
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, "page-"), ".jpg"))
	if err != nil {
		return 0
	}
	return n
}
