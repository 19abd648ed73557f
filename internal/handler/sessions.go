package handler

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	"github.com/skycast/skycast/internal/agent"
	"github.com/skycast/skycast/internal/models"
	"github.com/skycast/skycast/internal/store"
)

// SessionHandler serves the conversation endpoints. Turns of one session
// are serialized with a per-session lock.
type SessionHandler struct {
	runner      *agent.Runner
	sessions    store.SessionStore
	turnTimeout time.Duration
	locks       keyedMutex
}

func NewSessionHandler(runner *agent.Runner, sessions store.SessionStore, turnTimeout time.Duration) *SessionHandler {
	return &SessionHandler{runner: runner, sessions: sessions, turnTimeout: turnTimeout}
}

// keyedMutex hands out one mutex per key. An entry lives only while some
// caller holds or waits on it.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

// Lock blocks until key is held and returns the matching unlock func.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*refMutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// Len reports how many keys are currently locked or awaited.
func (k *keyedMutex) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}

// ActiveLocks reports how many sessions have a turn running or queued.
func (h *SessionHandler) ActiveLocks() int { return h.locks.Len() }

// Create handles POST /api/v1/sessions
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	s := agent.NewSession()
	if err := h.sessions.Save(r.Context(), s); err != nil {
		log.Error().Err(err).Msg("failed to save session")
		models.WriteError(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	models.WriteJSON(w, http.StatusCreated, s.View())
}

// Get handles GET /api/v1/sessions/{id}
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeTurnError(w, err)
		return
	}
	models.WriteJSON(w, http.StatusOK, s.View())
}

// Delete handles DELETE /api/v1/sessions/{id}
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	defer h.locks.Lock(id)()

	if err := h.sessions.Delete(r.Context(), id); err != nil {
		writeTurnError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SendMessage handles POST /api/v1/sessions/{id}/messages
func (h *SessionHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req models.MessageRequest
	if err := models.DecodeJSON(r, &req); err != nil {
		models.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.SetDefaults()
	if req.Message == "" {
		models.WriteError(w, http.StatusBadRequest, "message is required")
		return
	}

	timeout := time.Duration(req.Timeout) * time.Second
	if h.turnTimeout > 0 && h.turnTimeout < timeout {
		timeout = h.turnTimeout
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	resp, err := h.Converse(ctx, chi.URLParam(r, "id"), req.Message)
	if err != nil {
		writeTurnError(w, err)
		return
	}
	models.WriteJSON(w, http.StatusOK, resp)
}

// Converse runs one utterance against session id and persists the outcome.
// The exit command ends the turn loop and removes the session.
func (h *SessionHandler) Converse(ctx context.Context, id, utterance string) (*models.TurnResponse, error) {
	defer h.locks.Lock(id)()

	s, err := h.sessions.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	turn, err := h.runner.Turn(ctx, s, utterance)
	if err != nil {
		return nil, err
	}

	if turn.Ended {
		if err := h.sessions.Delete(ctx, id); err != nil && !errors.Is(err, store.ErrSessionNotFound) {
			return nil, err
		}
	} else if err := h.sessions.Save(ctx, s); err != nil {
		return nil, err
	}

	return &models.TurnResponse{
		Status:       "success",
		SessionID:    s.ID,
		Reply:        turn.Reply,
		CurrentAgent: s.Current.DisplayName(),
		Events:       agent.Views(turn.Events),
		Context:      s.State,
		Ended:        turn.Ended,
		DurationMs:   turn.Duration.Milliseconds(),
	}, nil
}

// writeTurnError maps conversation errors to HTTP statuses
func writeTurnError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrSessionNotFound):
		models.WriteError(w, http.StatusNotFound, "session not found")
	case errors.Is(err, agent.ErrRejectedInput):
		models.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, agent.ErrSessionEnded):
		models.WriteError(w, http.StatusConflict, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		models.WriteError(w, http.StatusGatewayTimeout, "turn timed out")
	default:
		log.Error().Err(err).Msg("turn failed")
		models.WriteError(w, http.StatusBadGateway, "turn failed: "+err.Error())
	}
}
