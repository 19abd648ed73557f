package agent

import (
	"github.com/skycast/skycast/internal/llm"
	"github.com/skycast/skycast/internal/models"
)

// EventKind tags the four kinds of turn events
type EventKind string

const (
	KindMessage    EventKind = "message"
	KindToolCall   EventKind = "tool_call"
	KindToolResult EventKind = "tool_result"
	KindHandoff    EventKind = "handoff"
)

// Event is one item produced during a turn. The set of implementations is closed.
type Event interface {
	Kind() EventKind
	Agent() Role
	event()
}

// MessageEvent is plain text from an agent
type MessageEvent struct {
	From Role
	Text string
}

// ToolCallEvent is a tool or handoff invocation requested by an agent
type ToolCallEvent struct {
	From Role
	Call llm.ToolCall
}

// ToolResultEvent is the output returned for a tool call
type ToolResultEvent struct {
	From    Role
	CallID  string
	Tool    string
	Output  string
	IsError bool
}

// HandoffEvent is a transfer of control. Automatic marks transfers made by the
// runner rather than requested by a model.
type HandoffEvent struct {
	Source    Role
	Target    Role
	Automatic bool
}

func (MessageEvent) Kind() EventKind    { return KindMessage }
func (ToolCallEvent) Kind() EventKind   { return KindToolCall }
func (ToolResultEvent) Kind() EventKind { return KindToolResult }
func (HandoffEvent) Kind() EventKind    { return KindHandoff }

func (e MessageEvent) Agent() Role    { return e.From }
func (e ToolCallEvent) Agent() Role   { return e.From }
func (e ToolResultEvent) Agent() Role { return e.From }
func (e HandoffEvent) Agent() Role    { return e.Source }

func (MessageEvent) event()    {}
func (ToolCallEvent) event()   {}
func (ToolResultEvent) event() {}
func (HandoffEvent) event()    {}

// View converts an event to its wire form
func View(e Event) models.EventView {
	v := models.EventView{Kind: string(e.Kind()), Agent: e.Agent().DisplayName()}
	switch ev := e.(type) {
	case MessageEvent:
		v.Text = ev.Text
	case ToolCallEvent:
		v.Tool = ev.Call.Name
		v.Input = ev.Call.Input
	case ToolResultEvent:
		v.Tool = ev.Tool
		v.Output = ev.Output
		v.IsError = ev.IsError
	case HandoffEvent:
		v.From = ev.Source.DisplayName()
		v.To = ev.Target.DisplayName()
	}
	return v
}

// Views converts a slice of events
func Views(events []Event) []models.EventView {
	out := make([]models.EventView, 0, len(events))
	for _, e := range events {
		out = append(out, View(e))
	}
	return out
}
