package pipeline

import (
	"strings"

	"lecture-anki-backend/internal/models"
)

// WindowOptions bounds window durations, in seconds.
type WindowOptions struct {
	Target float64
	Min    float64
	Max    float64
}

func DefaultWindowOptions() WindowOptions {
	return WindowOptions{Target: 150, Min: 90, Max: 210}
}

// Chunk groups ordered transcript segments into windows of roughly opts.Target seconds.
//
// A window is closed as soon as adding a segment brings it into [Target, Max]. A segment
// that would push the window past Max starts a new window instead. A trailing window
// shorter than Min is folded into its predecessor. The result is indexed from 0 and is
// empty when segments is empty.
func Chunk(segments []models.TranscriptSegment, opts WindowOptions) []models.Window {
	out := make([]models.Window, 0, len(segments)/4+1)

	var (
		buf        []string
		start, end float64
	)

	flush := func() {
		out = append(out, models.Window{
			Index: len(out),
			Start: start,
			End:   end,
			Text:  collapseSpace(strings.Join(buf, " ")),
		})
		buf = buf[:0]
	}

	for _, seg := range segments {
		if len(buf) == 0 {
			start, end = seg.Start, seg.End
			buf = append(buf, seg.Text)
			continue
		}

		dur := seg.End - start
		switch {
		case dur >= opts.Target && dur <= opts.Max:
			buf = append(buf, seg.Text)
			end = seg.End
			flush()
		case dur > opts.Max:
			flush()
			start, end = seg.Start, seg.End
			buf = append(buf, seg.Text)
		default:
			buf = append(buf, seg.Text)
			end = seg.End
		}
	}
	if len(buf) > 0 {
		flush()
	}

	if n := len(out); n >= 2 && out[n-1].Duration() < opts.Min {
		last := out[n-1]
		prev := &out[n-2]
		prev.End = last.End
		prev.Text = collapseSpace(prev.Text + " " + last.Text)
		out = out[:n-1]
	}

	for i := range out {
		out[i].Index = i
	}
	return out
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
