package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/skycast/skycast/internal/models"
	"github.com/skycast/skycast/internal/service"
)

// Transcriber turns uploaded audio into text
type Transcriber interface {
	Transcribe(ctx context.Context, name string, r io.Reader) (string, error)
}

// TranscribeHandler handles POST /api/v1/transcribe
type TranscribeHandler struct {
	transcriber Transcriber
	sessions    *SessionHandler
	maxBytes    int64
}

func NewTranscribeHandler(t Transcriber, sessions *SessionHandler, maxBytes int64) *TranscribeHandler {
	return &TranscribeHandler{transcriber: t, sessions: sessions, maxBytes: maxBytes}
}

// Transcribe reads the multipart "audio" file. With a session_id form value
// the transcript is also sent to that session as the next utterance.
func (h *TranscribeHandler) Transcribe(w http.ResponseWriter, r *http.Request) {
	if h.transcriber == nil {
		models.WriteError(w, http.StatusServiceUnavailable, "transcription is not configured")
		return
	}

	if r.ContentLength > h.maxBytes {
		models.WriteError(w, http.StatusRequestEntityTooLarge, "audio file too large")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			models.WriteError(w, http.StatusRequestEntityTooLarge, "audio file too large")
			return
		}
		models.WriteError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("audio")
	if err != nil {
		models.WriteError(w, http.StatusBadRequest, "audio file is required")
		return
	}
	defer file.Close()

	text, err := h.transcriber.Transcribe(r.Context(), header.Filename, file)
	if err != nil {
		if errors.Is(err, service.ErrEmptyTranscript) {
			models.WriteError(w, http.StatusUnprocessableEntity, "no speech recognised")
			return
		}
		log.Error().Err(err).Str("file", header.Filename).Msg("transcription failed")
		models.WriteError(w, http.StatusBadGateway, "transcription failed")
		return
	}

	resp := models.TranscriptionResponse{Status: "success", Transcript: text}
	if id := r.FormValue("session_id"); id != "" && h.sessions != nil {
		turn, err := h.sessions.Converse(r.Context(), id, text)
		if err != nil {
			writeTurnError(w, err)
			return
		}
		resp.Turn = turn
	}
	models.WriteJSON(w, http.StatusOK, resp)
}
