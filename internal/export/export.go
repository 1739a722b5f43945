// Package export renders card decks in the formats Anki and spreadsheets import.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/xuri/excelize/v2"

	"lecture-anki-backend/internal/models"
)

type Format string

const (
	FormatTSV  Format = "tsv"
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatXLSX Format = "xlsx"
)

const (
	defaultDeckName = "lecture-cards"
	sheetName       = "Cards"
)

var header = []string{"Question", "Answer", "Tags", "SourceTimestamp"}

// ParseFormat maps a path segment to a Format.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatTSV, FormatCSV, FormatJSON, FormatXLSX:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported export format %q (use tsv, csv, json or xlsx)", s)
	}
}

func (f Format) ContentType() string {
	switch f {
	case FormatTSV:
		return "text/tab-separated-values; charset=utf-8"
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatJSON:
		return "application/json; charset=utf-8"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "application/octet-stream"
}

// Filename is the attachment name for a deck, falling back to lecture-cards.
func Filename(deck string, f Format) string {
	name := strings.TrimSpace(deck)
	name = strings.Map(func(r rune) rune {
		if r == '"' || r == '/' || r == '\\' || r < 0x20 {
			return -1
		}
		return r
	}, name)
	if name == "" {
		name = defaultDeckName
	}
	return name + "." + string(f)
}

// Write renders cards to w.
func Write(w io.Writer, f Format, cards []models.Card) error {
	switch f {
	case FormatTSV:
		return writeTSV(w, cards)
	case FormatCSV:
		return writeCSV(w, cards)
	case FormatJSON:
		return writeJSON(w, cards)
	case FormatXLSX:
		return writeXLSX(w, cards)
	}
	return fmt.Errorf("unsupported export format %q", f)
}

var fieldBreaks = regexp.MustCompile(`[\t\r\n]+`)

// SanitizeField removes tabs and line breaks, which Anki's importer treats as delimiters.
func SanitizeField(s string) string {
	return strings.TrimSpace(fieldBreaks.ReplaceAllString(s, " "))
}

func row(c models.Card) []string {
	return []string{
		SanitizeField(c.Question),
		SanitizeField(c.Answer),
		SanitizeField(strings.Join(c.Tags, " ")),
		SanitizeField(c.SourceTimestamp),
	}
}

func writeTSV(w io.Writer, cards []models.Card) error {
	lines := make([]string, 0, len(cards)+1)
	lines = append(lines, strings.Join(header, "\t"))
	for _, c := range cards {
		lines = append(lines, strings.Join(row(c), "\t"))
	}
	_, err := io.WriteString(w, strings.Join(lines, "\n"))
	return err
}

func writeCSV(w io.Writer, cards []models.Card) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, c := range cards {
		if err := cw.Write(row(c)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeJSON(w io.Writer, cards []models.Card) error {
	if cards == nil {
		cards = []models.Card{}
	}
	return json.NewEncoder(w).Encode(struct {
		Cards []models.Card `json:"cards"`
	}{cards})
}

func writeXLSX(w io.Writer, cards []models.Card) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	cols := append(append([]string{}, header...), "SlideIndex", "SourceType")
	if err := setRow(f, 1, toAny(cols)); err != nil {
		return err
	}
	for i, c := range cards {
		values := toAny(row(c))
		if c.SlideIndex != nil {
			values = append(values, *c.SlideIndex)
		} else {
			values = append(values, "")
		}
		values = append(values, string(c.SourceType))
		if err := setRow(f, i+2, values); err != nil {
			return err
		}
	}

	if err := f.SetColWidth(sheetName, "A", "B", 60); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}
	if err := f.SetPanes(sheetName, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, n int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, n)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
		return fmt.Errorf("write row %d: %w", n, err)
	}
	return nil
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
