package agent

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/skycast/skycast/internal/service"
)

// Archiver persists finished turns
type Archiver interface {
	Store(ctx context.Context, doc service.TurnDocument) error
}

// Masker scrubs free text before it leaves the process
type Masker interface {
	MaskText(s string) string
}

// ArchiveObserver writes every turn to an Archiver. Store failures are logged
// and never fail the turn.
type ArchiveObserver struct {
	archive Archiver
	masker  Masker
	timeout time.Duration
}

func NewArchiveObserver(archive Archiver, masker Masker) *ArchiveObserver {
	return &ArchiveObserver{archive: archive, masker: masker, timeout: 5 * time.Second}
}

// Document builds the archived form of a turn
func (o *ArchiveObserver) Document(s *Session, t *Turn, err error) service.TurnDocument {
	doc := service.TurnDocument{
		ID:         uuid.NewString(),
		SessionID:  s.ID,
		Utterance:  t.Utterance,
		Reply:      t.Reply,
		Agent:      t.Agent.DisplayName(),
		Events:     Views(t.Events),
		Context:    s.State,
		DurationMs: t.Duration.Milliseconds(),
		Timestamp:  time.Now().UTC(),
	}
	if err != nil {
		doc.Error = err.Error()
	}
	if o.masker != nil {
		doc.Utterance = o.masker.MaskText(doc.Utterance)
		doc.Reply = o.masker.MaskText(doc.Reply)
		doc.Error = o.masker.MaskText(doc.Error)
		// Replies and tool output can echo what the user typed.
		for i := range doc.Events {
			doc.Events[i].Text = o.masker.MaskText(doc.Events[i].Text)
			doc.Events[i].Output = o.masker.MaskText(doc.Events[i].Output)
		}
	}
	return doc
}

func (o *ArchiveObserver) TurnFinished(ctx context.Context, s *Session, t *Turn, err error) {
	doc := o.Document(s, t, err)
	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.timeout)
	defer cancel()
	if err := o.archive.Store(storeCtx, doc); err != nil {
		log.Warn().Err(err).Str("session_id", s.ID).Msg("failed to archive turn")
	}
}
