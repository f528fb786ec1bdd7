// Package mcp exposes a docchat session as Model Context Protocol tools.
package mcp

import "time"

// AskInput defines the input parameters for the ask tool.
type AskInput struct {
	// Question is the follow up question for the conversation.
	Question string `json:"question" jsonschema:"the question to answer from the ingested documents"`
}

// AskOutput contains the answer and the chunks it was grounded on.
type AskOutput struct {
	Answer  string      `json:"answer"`
	Sources []SourceRef `json:"sources"`
	// Turn is the 1-based position of this exchange in the history.
	Turn int `json:"turn"`
}

// SourceRef is one retrieved chunk cited by an answer.
type SourceRef struct {
	Path    string  `json:"path"`
	Score   float64 `json:"score"`
	Excerpt string  `json:"excerpt"`
}

// StatusInput defines the input parameters for the get_session_status tool.
// This tool takes no parameters.
type StatusInput struct{}

// StatusOutput reports ingestion progress and readiness.
type StatusOutput struct {
	SessionID string   `json:"session_id"`
	Status    string   `json:"status"`
	Ready     bool     `json:"ready"`
	Folder    string   `json:"folder"`
	Files     int      `json:"files"`
	Documents int      `json:"documents"`
	Chunks    int      `json:"chunks"`
	ChunkSize int      `json:"chunk_size"`
	Skipped   []string `json:"skipped"`
	Failed    []string `json:"failed"`
	Turns     int      `json:"turns"`
	Error     string   `json:"error,omitempty"`
	Duration  string   `json:"duration,omitempty"`
}

// HistoryInput defines the input parameters for the get_chat_history tool.
type HistoryInput struct {
	// Limit keeps only the most recent turns.
	Limit int `json:"limit,omitempty" jsonschema:"return only the most recent turns (default all)"`
}

// HistoryOutput contains the conversation, oldest turn first.
type HistoryOutput struct {
	Turns []TurnOutput `json:"turns"`
	Count int          `json:"count"`
}

// TurnOutput is one question and answer.
type TurnOutput struct {
	Question string    `json:"question"`
	Answer   string    `json:"answer"`
	Sources  []string  `json:"sources"`
	AskedAt  time.Time `json:"asked_at"`
}
