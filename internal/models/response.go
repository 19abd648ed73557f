package models

import "time"

// HealthResponse is returned by GET /health
type HealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// EventView is the wire form of one turn event
type EventView struct {
	Kind    string                 `json:"kind"`
	Agent   string                 `json:"agent"`
	Text    string                 `json:"text,omitempty"`
	Tool    string                 `json:"tool,omitempty"`
	Input   map[string]interface{} `json:"input,omitempty"`
	Output  string                 `json:"output,omitempty"`
	IsError bool                   `json:"is_error,omitempty"`
	From    string                 `json:"from,omitempty"`
	To      string                 `json:"to,omitempty"`
}

// SessionResponse describes a conversation session
type SessionResponse struct {
	Status       string         `json:"status"`
	SessionID    string         `json:"session_id"`
	CurrentAgent string         `json:"current_agent"`
	Context      WeatherContext `json:"context"`
	Turns        int            `json:"turns"`
	Ended        bool           `json:"ended,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// TurnResponse is returned by POST /api/v1/sessions/{id}/messages
type TurnResponse struct {
	Status       string         `json:"status"`
	SessionID    string         `json:"session_id"`
	Reply        string         `json:"reply,omitempty"`
	CurrentAgent string         `json:"current_agent,omitempty"`
	Events       []EventView    `json:"events"`
	Context      WeatherContext `json:"context"`
	Ended        bool           `json:"ended,omitempty"`
	DurationMs   int64          `json:"duration_ms"`
}

// TranscriptionResponse is returned by POST /api/v1/transcribe
type TranscriptionResponse struct {
	Status     string        `json:"status"`
	Transcript string        `json:"transcript"`
	Turn       *TurnResponse `json:"turn,omitempty"`
}
