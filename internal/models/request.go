package models

import "strings"

// ExitCommand ends a conversation when sent as a message
const ExitCommand = "exit"

// MessageRequest for POST /api/v1/sessions/{id}/messages
type MessageRequest struct {
	Message string `json:"message"`
	Timeout int    `json:"timeout"` // seconds
}

func (r *MessageRequest) SetDefaults() {
	r.Message = strings.TrimSpace(r.Message)
	if r.Timeout == 0 {
		r.Timeout = 120
	}
	if r.Timeout < 10 {
		r.Timeout = 10
	}
	if r.Timeout > 600 {
		r.Timeout = 600
	}
}
