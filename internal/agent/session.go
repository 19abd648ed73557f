package agent

import (
	"time"

	"github.com/google/uuid"
	"github.com/skycast/skycast/internal/llm"
	"github.com/skycast/skycast/internal/models"
)

// Session is the persistent state of one conversation between turns
type Session struct {
	ID        string                `json:"id"`
	Current   Role                  `json:"current_agent"`
	History   []llm.Message         `json:"history"`
	State     models.WeatherContext `json:"context"`
	Ended     bool                  `json:"ended"`
	CreatedAt time.Time             `json:"created_at"`
	UpdatedAt time.Time             `json:"updated_at"`
}

// NewSession starts a conversation with the coordinator in control
func NewSession() *Session {
	now := time.Now().UTC()
	return &Session{
		ID:        uuid.NewString(),
		Current:   Coordinator,
		History:   []llm.Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a copy that shares no slices with s
func (s *Session) Clone() *Session {
	c := *s
	c.History = append([]llm.Message(nil), s.History...)
	return &c
}

// View is the wire form of the session
func (s *Session) View() models.SessionResponse {
	return models.SessionResponse{
		Status:       "success",
		SessionID:    s.ID,
		CurrentAgent: s.Current.DisplayName(),
		Context:      s.State,
		Turns:        countUserMessages(s.History),
		Ended:        s.Ended,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}

func countUserMessages(msgs []llm.Message) int {
	n := 0
	for _, m := range msgs {
		if m.Role == llm.RoleUser {
			n++
		}
	}
	return n
}
