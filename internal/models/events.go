package models

// Stage is a step of the per-request generation state machine.
type Stage string

const (
	StageIdle        Stage = "idle"
	StageWindowing   Stage = "windowing"
	StageLabeling    Stage = "labeling"
	StageAllocating  Stage = "allocating"
	StageGenerating  Stage = "generating"
	StageNormalizing Stage = "normalizing"
	StageMerging     Stage = "merging"
	StageDone        Stage = "done"
	StageFailed      Stage = "failed"
)

// WebSocket message types
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type ProgressUpdate struct {
	RequestID string `json:"request_id"`
	Pipeline  string `json:"pipeline"` // "sections" | "cards" | "slides" | "deck"
	Stage     Stage  `json:"stage"`
	Completed int    `json:"completed,omitempty"`
	Total     int    `json:"total,omitempty"`
	CardCount int    `json:"card_count,omitempty"`
	Error     string `json:"error,omitempty"`
}

// API Error response
type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}
