package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Candidate is an unvalidated card-shaped record produced by the model.
type Candidate struct {
	Question        string
	Answer          string
	Tags            []string
	SourceTimestamp string
	SlideIndex      *int
}

// ParseError explains why a model response yielded no candidates.
type ParseError struct {
	Snippet string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unparseable model output %q: %v", e.Snippet, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ParseResult is the outcome of reading one model response. When Err is set,
// Candidates is empty; the caller treats the unit as having produced no cards.
type ParseResult struct {
	Candidates []Candidate
	Recovered  bool
	Err        *ParseError
}

func (r ParseResult) OK() bool { return r.Err == nil }

var errNoJSONObject = errors.New("no JSON object found")

// ParseCandidates reads {"cards":[...]} from raw model text. A strict parse is tried
// first, then the span between the first '{' and the last '}'.
func ParseCandidates(raw string) ParseResult {
	text := stripCodeFence(raw)

	if items, err := decodeCards(text); err == nil {
		return ParseResult{Candidates: toCandidates(items)}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ParseResult{Err: &ParseError{Snippet: snippet(text), Err: errNoJSONObject}}
	}

	items, err := decodeCards(text[start : end+1])
	if err != nil {
		return ParseResult{Err: &ParseError{Snippet: snippet(text), Err: err}}
	}
	return ParseResult{Candidates: toCandidates(items), Recovered: true}
}

// ExtractJSONObject applies the same two-stage strategy to any JSON object payload.
func ExtractJSONObject(raw string, v any) error {
	text := stripCodeFence(raw)
	if err := json.Unmarshal([]byte(text), v); err == nil {
		return nil
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return errNoJSONObject
	}
	return json.Unmarshal([]byte(text[start:end+1]), v)
}

func decodeCards(text string) ([]map[string]any, error) {
	var doc any
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		return nil, err
	}

	var list []any
	switch v := doc.(type) {
	case map[string]any:
		list, _ = v["cards"].([]any)
	case []any:
		list = v
	default:
		return nil, fmt.Errorf("unexpected JSON %T", doc)
	}

	items := make([]map[string]any, 0, len(list))
	for _, el := range list {
		if m, ok := el.(map[string]any); ok {
			items = append(items, m)
		}
	}
	return items, nil
}

func toCandidates(items []map[string]any) []Candidate {
	out := make([]Candidate, 0, len(items))
	for _, m := range items {
		out = append(out, Candidate{
			Question:        asString(m["question"]),
			Answer:          asString(m["answer"]),
			Tags:            asStrings(m["tags"]),
			SourceTimestamp: asString(m["source_timestamp"]),
			SlideIndex:      asInt(m["slide_index"]),
		})
	}
	return out
}

func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

func asStrings(v any) []string {
	switch t := v.(type) {
	case []any:
		out := make([]string, 0, len(t))
		for _, el := range t {
			if s := strings.TrimSpace(asString(el)); s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if s := strings.TrimSpace(t); s != "" {
			return []string{s}
		}
	}
	return nil
}

func asInt(v any) *int {
	switch t := v.(type) {
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) || t != math.Trunc(t) {
			return nil
		}
		n := int(t)
		return &n
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return nil
		}
		return &n
	}
	return nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func snippet(s string) string {
	const n = 120
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
