package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"
	"github.com/skycast/skycast/internal/metrics"
)

// ErrEmptyTranscript means the audio produced no text
var ErrEmptyTranscript = errors.New("empty transcript")

// Transcriber turns recorded speech into text with Whisper
type Transcriber struct {
	client *openai.Client
	model  string
}

func NewTranscriber(client *openai.Client, model string) *Transcriber {
	if model == "" {
		model = openai.Whisper1
	}
	return &Transcriber{client: client, model: model}
}

// TranscribeFile transcribes the audio file at path
func (t *Transcriber) TranscribeFile(ctx context.Context, path string) (string, error) {
	return t.transcribe(ctx, openai.AudioRequest{
		Model:    t.model,
		FilePath: path,
		Format:   openai.AudioResponseFormatText,
	})
}

// Transcribe transcribes audio read from r; name carries the file extension
// the service uses to detect the container format.
func (t *Transcriber) Transcribe(ctx context.Context, name string, r io.Reader) (string, error) {
	if name == "" {
		name = "audio.wav"
	}
	return t.transcribe(ctx, openai.AudioRequest{
		Model:    t.model,
		FilePath: filepath.Base(name),
		Reader:   r,
		Format:   openai.AudioResponseFormatText,
	})
}

func (t *Transcriber) transcribe(ctx context.Context, req openai.AudioRequest) (_ string, err error) {
	start := time.Now()
	defer func() { metrics.ObserveProvider("whisper", "transcribe", err, time.Since(start)) }()

	resp, err := t.client.CreateTranscription(ctx, req)
	if err != nil {
		return "", fmt.Errorf("transcribe %s: %w", req.FilePath, err)
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", fmt.Errorf("transcribe %s: %w", req.FilePath, ErrEmptyTranscript)
	}
	log.Debug().Str("file", req.FilePath).Int("chars", len(text)).Dur("took", time.Since(start)).Msg("transcribed audio")
	return text, nil
}
