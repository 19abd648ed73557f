package security

import (
	"context"
	"crypto/sha256"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/skycast/skycast/internal/agent"
)

type apiKeyCtxKey struct{}

// WithAPIKey stores the caller's API key for audit records
func WithAPIKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, apiKeyCtxKey{}, key)
}

// APIKeyFrom returns the API key stored by WithAPIKey, or ""
func APIKeyFrom(ctx context.Context) string {
	key, _ := ctx.Value(apiKeyCtxKey{}).(string)
	return key
}

// AuditLogger logs one record per conversation turn with hashed identifiers
type AuditLogger struct {
	enabled bool
	pii     *PIIDetector
}

func NewAuditLogger(enabled bool, pii *PIIDetector) *AuditLogger {
	return &AuditLogger{enabled: enabled, pii: pii}
}

// TurnFinished implements agent.TurnObserver
func (a *AuditLogger) TurnFinished(ctx context.Context, s *agent.Session, t *agent.Turn, err error) {
	if !a.enabled {
		return
	}

	handoffs, toolCalls := 0, 0
	for _, e := range t.Events {
		switch e.(type) {
		case agent.HandoffEvent:
			handoffs++
		case agent.ToolCallEvent:
			toolCalls++
		}
	}

	evt := log.Info().
		Str("event", "turn_audit").
		Str("session_id", s.ID).
		Str("utterance_hash", hashStr(t.Utterance)[:16]).
		Str("last_agent", t.Agent.String()).
		Int("handoffs", handoffs).
		Int("tool_calls", toolCalls).
		Int64("execution_time_ms", t.Duration.Milliseconds()).
		Bool("success", err == nil)

	if key := APIKeyFrom(ctx); key != "" {
		evt = evt.Str("api_key_hash", hashStr(key)[:16])
	}
	if a.pii != nil {
		if found, kw := a.pii.Detect(t.Utterance); found {
			evt = evt.Str("pii_keyword", kw)
		}
	}
	if err != nil {
		evt = evt.Str("error", err.Error())
	}
	evt.Msg("audit")
}

func hashStr(s string) string {
	h := sha256.Sum256([]byte(s))
	return fmt.Sprintf("%x", h)
}
