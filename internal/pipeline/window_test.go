package pipeline

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"lecture-anki-backend/internal/models"
)

func TestChunk_ClosesWindowWithinTarget(t *testing.T) {
	segs := []models.TranscriptSegment{
		{Start: 0, End: 95, Text: "A"},
		{Start: 95, End: 200, Text: "B"},
	}

	got := Chunk(segs, DefaultWindowOptions())
	if len(got) != 1 {
		t.Fatalf("expected 1 window, got %d", len(got))
	}
	if got[0].Start != 0 || got[0].End != 200 || got[0].Text != "A B" {
		t.Fatalf("unexpected window: %+v", got[0])
	}
}

func TestChunk_SplitsWhenPastMax(t *testing.T) {
	segs := []models.TranscriptSegment{
		{Start: 0, End: 100, Text: "first"},
		{Start: 100, End: 250, Text: "second"},
		{Start: 250, End: 260, Text: "third"},
	}

	got := Chunk(segs, DefaultWindowOptions())
	if len(got) != 2 {
		t.Fatalf("expected 2 windows, got %d: %+v", len(got), got)
	}
	if got[0].Text != "first" || got[0].End != 100 {
		t.Errorf("unexpected first window: %+v", got[0])
	}
	if got[1].Text != "second third" || got[1].Start != 100 || got[1].End != 260 {
		t.Errorf("unexpected second window: %+v", got[1])
	}
}

func TestChunk_MergesShortTail(t *testing.T) {
	segs := []models.TranscriptSegment{
		{Start: 0, End: 100, Text: "a"},
		{Start: 100, End: 160, Text: "b"},
		{Start: 160, End: 170, Text: "  tail  "},
	}

	got := Chunk(segs, DefaultWindowOptions())
	if len(got) != 1 {
		t.Fatalf("expected short tail to be merged, got %d windows", len(got))
	}
	if got[0].End != 170 || got[0].Text != "a b tail" {
		t.Fatalf("unexpected merged window: %+v", got[0])
	}
}

func TestChunk_SingleShortWindowIsKept(t *testing.T) {
	got := Chunk([]models.TranscriptSegment{{Start: 0, End: 10, Text: "hello\n world"}}, DefaultWindowOptions())
	if len(got) != 1 || got[0].Text != "hello world" {
		t.Fatalf("unexpected windows: %+v", got)
	}
}

func TestChunk_Empty(t *testing.T) {
	got := Chunk(nil, DefaultWindowOptions())
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
}

func TestChunk_IndexesAreSequential(t *testing.T) {
	var segs []models.TranscriptSegment
	for i := 0; i < 40; i++ {
		segs = append(segs, models.TranscriptSegment{Start: float64(i * 30), End: float64(i*30 + 30), Text: "x"})
	}

	got := Chunk(segs, DefaultWindowOptions())
	for i, w := range got {
		if w.Index != i {
			t.Fatalf("window %d has index %d", i, w.Index)
		}
		if w.End < w.Start {
			t.Fatalf("window %d ends before it starts: %+v", i, w)
		}
	}
	if got[0].Start != 0 || got[len(got)-1].End != 1200 {
		t.Fatalf("windows do not cover the transcript: %+v", got)
	}
}

// Back-to-back segments no longer than Max-Min can only close a window early once it
// has passed Min, so every window but the last must reach Min.
func TestChunk_CoversSegmentsInOrder(t *testing.T) {
	opts := DefaultWindowOptions()

	for seed := int64(1); seed <= 25; seed++ {
		rng := rand.New(rand.NewSource(seed))

		var (
			segs  []models.TranscriptSegment
			words []string
			at    float64
		)
		n := 1 + rng.Intn(80)
		for i := 0; i < n; i++ {
			dur := 1 + rng.Float64()*(opts.Max-opts.Min-1)
			word := fmt.Sprintf("s%d", i)
			segs = append(segs, models.TranscriptSegment{Start: at, End: at + dur, Text: "  " + word + "\n"})
			words = append(words, word)
			at += dur
		}

		got := Chunk(segs, opts)

		var texts []string
		for _, w := range got {
			texts = append(texts, w.Text)
		}
		if joined := strings.Join(texts, " "); joined != strings.Join(words, " ") {
			t.Fatalf("seed %d: windows do not cover segments once and in order:\n got %q\nwant %q", seed, joined, strings.Join(words, " "))
		}

		for i, w := range got {
			if i > 0 && w.Start != got[i-1].End {
				t.Fatalf("seed %d: window %d starts at %v, previous ended at %v", seed, i, w.Start, got[i-1].End)
			}
			if i < len(got)-1 && w.Duration() < opts.Min {
				t.Fatalf("seed %d: window %d of %d lasts %.1fs, below min %.0fs", seed, i, len(got), w.Duration(), opts.Min)
			}
		}
		if got[0].Start != 0 || got[len(got)-1].End != at {
			t.Fatalf("seed %d: windows span [%v, %v], want [0, %v]", seed, got[0].Start, got[len(got)-1].End, at)
		}
	}
}
