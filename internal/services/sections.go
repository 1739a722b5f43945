package services

import (
	"context"
	"math"
	"strings"

	"github.com/sirupsen/logrus"

	"lecture-anki-backend/internal/models"
	"lecture-anki-backend/internal/pipeline"
)

const (
	maxTitleLen      = 140
	maxKeyPoints     = 8
	defaultTitle     = "Untitled"
	sectionsPipeline = "sections"
)

type SectionService struct {
	engine *Engine
	window pipeline.WindowOptions
}

func NewSectionService(engine *Engine, window pipeline.WindowOptions) *SectionService {
	return &SectionService{engine: engine, window: window}
}

// Label is the model's title and key points for one window.
type Label struct {
	Title     string
	KeyPoints []string
}

// Generate windows the transcript deterministically and asks the model to label each
// window. The model never changes window boundaries.
func (s *SectionService) Generate(ctx context.Context, requestID string, req models.GenerateSectionsRequest) ([]models.Section, error) {
	log := s.engine.Log.WithFields(logrus.Fields{"request_id": requestID, "pipeline": sectionsPipeline})
	tr := newTracker(s.engine.Progress, requestID, sectionsPipeline)

	if len(req.Segments) == 0 {
		tr.done(ctx, 0)
		return []models.Section{}, nil
	}

	tr.stage(ctx, models.StageWindowing)
	windows := pipeline.Chunk(req.Segments, s.window)
	log.WithField("windows", len(windows)).Info("transcript windowed")

	tr.stage(ctx, models.StageLabeling)
	raw, err := s.engine.generate(ctx, "label-sections", GenerateRequest{
		System: labelSystemPrompt,
		Prompt: buildLabelPrompt(req.LectureTitle, windows, req.SlidesText, req.TranscriptText),
		JSON:   true,
	})
	if err != nil {
		gerr := &GenerationError{Stage: "labeling", Err: err}
		tr.fail(ctx, gerr)
		return nil, gerr
	}

	labels, perr := ParseLabels(raw)
	if perr != nil {
		log.WithError(perr).Warn("unparseable labels, using defaults")
	}

	sections := JoinLabels(windows, labels)
	tr.done(ctx, 0)
	return sections, nil
}

// ParseLabels reads {"labels":[{idx,title,key_points}]} leniently. Entries without a
// numeric idx are skipped; a later entry for the same idx wins.
func ParseLabels(raw string) (map[int]Label, error) {
	var doc struct {
		Labels []map[string]any `json:"labels"`
	}
	if err := pipeline.ExtractJSONObject(raw, &doc); err != nil {
		return map[int]Label{}, err
	}

	labels := make(map[int]Label, len(doc.Labels))
	for _, l := range doc.Labels {
		idx, ok := l["idx"].(float64)
		if !ok || idx != math.Trunc(idx) {
			continue
		}

		title, _ := l["title"].(string)
		label := Label{Title: truncate(strings.TrimSpace(title), maxTitleLen)}

		if points, ok := l["key_points"].([]any); ok {
			if len(points) > maxKeyPoints {
				points = points[:maxKeyPoints]
			}
			for _, p := range points {
				s, ok := p.(string)
				if !ok {
					continue
				}
				if s = strings.TrimSpace(s); s != "" {
					label.KeyPoints = append(label.KeyPoints, s)
				}
			}
		}
		labels[int(idx)] = label
	}
	return labels, nil
}

// JoinLabels attaches labels to windows by index. Windows without a label get the default
// title; labels for indices that do not exist are ignored.
func JoinLabels(windows []models.Window, labels map[int]Label) []models.Section {
	sections := make([]models.Section, len(windows))
	for i, w := range windows {
		label := labels[w.Index]
		title := label.Title
		if title == "" {
			title = defaultTitle
		}
		keyPoints := label.KeyPoints
		if keyPoints == nil {
			keyPoints = []string{}
		}
		sections[i] = models.Section{
			Index:     w.Index,
			Title:     title,
			Start:     w.Start,
			End:       w.End,
			KeyPoints: keyPoints,
			Text:      w.Text,
		}
	}
	return sections
}
