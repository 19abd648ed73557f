// Package agent implements the Forecast / Geo / Weather agent team and the
// runner that moves control between them.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/skycast/skycast/internal/llm"
	"github.com/skycast/skycast/internal/metrics"
	"github.com/skycast/skycast/internal/models"
	"github.com/skycast/skycast/internal/tools"
)

const DefaultMaxSteps = 10

var (
	// ErrStepLimit aborts a turn that did not settle within the step budget
	ErrStepLimit = errors.New("turn exceeded step limit")
	// ErrRejectedInput means the utterance failed validation and no agent ran
	ErrRejectedInput = errors.New("utterance rejected")
	// ErrSessionEnded is returned for turns on a session closed with exit
	ErrSessionEnded = errors.New("session has ended")
)

// Metadata keys attached to every llm.Request
const (
	MetaAgent    = "agent"
	MetaCity     = "city"
	MetaResolved = "resolved_name"
	MetaLat      = "lat"
	MetaLon      = "lon"
)

// Validator screens an utterance before any agent sees it
type Validator interface {
	Check(text string) error
}

// TurnObserver is notified after every turn, successful or not
type TurnObserver interface {
	TurnFinished(ctx context.Context, s *Session, t *Turn, err error)
}

// Turn is the outcome of one user utterance
type Turn struct {
	Utterance string
	Events    []Event
	Reply     string
	Agent     Role
	Ended     bool
	Duration  time.Duration
}

// RunResult is what a single Run produced
type RunResult struct {
	Events    []Event
	History   []llm.Message
	LastAgent Role
	State     models.WeatherContext
}

// Runner drives the handoff workflow over an llm.Model
type Runner struct {
	model     llm.Model
	team      *Team
	maxSteps  int
	validator Validator
	observers []TurnObserver
}

// Option configures a Runner
type Option func(*Runner)

// WithMaxSteps bounds the number of model calls and automatic handoffs per turn
func WithMaxSteps(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.maxSteps = n
		}
	}
}

func WithValidator(v Validator) Option {
	return func(r *Runner) { r.validator = v }
}

func WithObserver(o TurnObserver) Option {
	return func(r *Runner) { r.observers = append(r.observers, o) }
}

// NewRunner creates a runner for team backed by model
func NewRunner(model llm.Model, team *Team, opts ...Option) *Runner {
	r := &Runner{model: model, team: team, maxSteps: DefaultMaxSteps}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ModelName identifies the backing model
func (r *Runner) ModelName() string {
	return r.model.Name()
}

// Turn runs one utterance against s. On success s adopts the new history,
// context and current agent; on error s is left exactly as it was.
func (r *Runner) Turn(ctx context.Context, s *Session, utterance string) (*Turn, error) {
	started := time.Now()
	utterance = strings.TrimSpace(utterance)
	if s.Ended {
		return nil, ErrSessionEnded
	}
	if utterance == models.ExitCommand {
		s.Ended = true
		s.UpdatedAt = time.Now().UTC()
		return &Turn{Utterance: utterance, Agent: s.Current, Ended: true}, nil
	}
	if utterance == "" {
		return nil, fmt.Errorf("%w: message is empty", ErrRejectedInput)
	}
	if r.validator != nil {
		if err := r.validator.Check(utterance); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRejectedInput, err)
		}
	}

	history := make([]llm.Message, 0, len(s.History)+1)
	history = append(history, s.History...)
	history = append(history, llm.UserMessage(utterance))

	res, err := r.Run(ctx, s.Current, history, s.State)
	turn := &Turn{Utterance: utterance, Agent: s.Current}
	if err != nil {
		turn.Duration = time.Since(started)
		metrics.TurnsTotal.WithLabelValues("error").Inc()
		log.Error().Err(err).Str("session_id", s.ID).Msg("turn aborted")
		r.notify(ctx, s, turn, err)
		return nil, err
	}

	turn.Events = res.Events
	turn.Reply = replyOf(res.Events)
	turn.Agent = res.LastAgent
	turn.Duration = time.Since(started)

	s.Current = res.LastAgent
	s.History = res.History
	s.State = res.State
	s.UpdatedAt = time.Now().UTC()

	metrics.TurnsTotal.WithLabelValues("ok").Inc()
	metrics.TurnDuration.Observe(turn.Duration.Seconds())
	log.Info().
		Str("session_id", s.ID).
		Int("events", len(turn.Events)).
		Str("last_agent", res.LastAgent.String()).
		Dur("duration", turn.Duration).
		Msg("turn completed")
	r.notify(ctx, s, turn, nil)
	return turn, nil
}

func (r *Runner) notify(ctx context.Context, s *Session, t *Turn, err error) {
	for _, o := range r.observers {
		o.TurnFinished(ctx, s, t, err)
	}
}

// replyOf picks the coordinator's last message, falling back to any agent's
func replyOf(events []Event) string {
	var fallback string
	for i := len(events) - 1; i >= 0; i-- {
		m, ok := events[i].(MessageEvent)
		if !ok {
			continue
		}
		if m.From == Coordinator {
			return m.Text
		}
		if fallback == "" {
			fallback = m.Text
		}
	}
	return fallback
}

// Run executes agents starting from start until the coordinator produces a
// final message. history must already end with the new user message.
func (r *Runner) Run(ctx context.Context, start Role, history []llm.Message, state models.WeatherContext) (*RunResult, error) {
	x := &run{
		r:       r,
		agent:   start,
		history: append([]llm.Message(nil), history...),
		state:   state,
	}
	return x.execute(ctx)
}

// run is the mutable state of one Run
type run struct {
	r         *Runner
	agent     Role
	history   []llm.Message
	events    []Event
	state     models.WeatherContext
	usedTool  bool
	geoFailed bool
}

func (x *run) execute(ctx context.Context) (*RunResult, error) {
	for step := 0; step < x.r.maxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// Resolved coordinates always go to the weather step before the
		// coordinator may answer.
		if x.agent == Coordinator && x.state.NeedsForecast() {
			x.autoHandoff(WeatherSpecialist)
			continue
		}

		a := x.r.team.Agent(x.agent)
		req := llm.Request{
			System:   a.systemPrompt(x.state),
			Messages: x.history,
			Tools:    a.toolSpecs(),
			Metadata: metadata(x.agent, x.state),
		}

		started := time.Now()
		resp, err := x.r.model.Complete(ctx, req)
		metrics.ObserveProvider(x.r.model.Name(), "complete", err, time.Since(started))
		if err != nil {
			return nil, fmt.Errorf("%s: model call failed: %w", x.agent.DisplayName(), err)
		}

		log.Debug().
			Int("step", step).
			Str("agent", x.agent.String()).
			Str("stop_reason", resp.StopReason).
			Int("tool_calls", len(resp.ToolCalls)).
			Msg("agent step")

		done, err := x.apply(ctx, resp)
		if err != nil {
			return nil, err
		}
		if done {
			return &RunResult{
				Events:    x.events,
				History:   x.history,
				LastAgent: x.agent,
				State:     x.state,
			}, nil
		}
	}
	return nil, fmt.Errorf("%w (%d)", ErrStepLimit, x.r.maxSteps)
}

// apply records one model response and executes its tool calls. It reports
// true when the turn is over.
func (x *run) apply(ctx context.Context, resp *llm.Response) (bool, error) {
	calls := make([]llm.ToolCall, len(resp.ToolCalls))
	for i, tc := range resp.ToolCalls {
		if tc.ID == "" {
			tc.ID = newCallID()
		}
		if tc.Input == nil {
			tc.Input = map[string]interface{}{}
		}
		calls[i] = tc
	}
	text := strings.TrimSpace(resp.Text)

	x.history = append(x.history, llm.Message{
		Role:      llm.RoleAssistant,
		Content:   text,
		ToolCalls: calls,
		Agent:     x.agent.String(),
	})
	if text != "" {
		x.events = append(x.events, MessageEvent{From: x.agent, Text: text})
	}

	if len(calls) == 0 {
		if x.agent == Coordinator {
			return true, nil
		}
		// specialists always give control back once they stop calling tools
		x.autoHandoff(Coordinator)
		return false, nil
	}

	var target Role
	handoff := false
	for _, tc := range calls {
		x.events = append(x.events, ToolCallEvent{From: x.agent, Call: tc})

		if to, ok := handoffTarget(tc.Name); ok {
			if handoff {
				x.toolResult(tc, "error: only one handoff per response is allowed", true)
				continue
			}
			if err := x.checkHandoff(to); err != nil {
				log.Warn().Err(err).Str("agent", x.agent.String()).Msg("handoff refused")
				x.toolResult(tc, "error: "+err.Error(), true)
				continue
			}
			x.toolResult(tc, transferOutput(to), false)
			target, handoff = to, true
			continue
		}

		if err := x.invoke(ctx, tc); err != nil {
			return false, err
		}
	}

	if handoff {
		x.switchTo(target, false)
	}
	return false, nil
}

// invoke runs a capability tool owned by the current agent
func (x *run) invoke(ctx context.Context, tc llm.ToolCall) error {
	tool, ok := x.r.team.Agent(x.agent).tool(tc.Name)
	if !ok {
		metrics.ToolCallsTotal.WithLabelValues(tc.Name, "refused").Inc()
		x.toolResult(tc, fmt.Sprintf("error: %s has no tool named %s", x.agent.DisplayName(), tc.Name), true)
		return nil
	}
	if x.usedTool {
		metrics.ToolCallsTotal.WithLabelValues(tc.Name, "refused").Inc()
		x.toolResult(tc, fmt.Sprintf("error: %s was already used; transfer back to the %s", tc.Name, Coordinator.DisplayName()), true)
		return nil
	}
	x.usedTool = true

	res, err := tool.Execute(ctx, tools.Call{Input: tc.Input, State: x.state})
	if tc.Name == tools.GeoToolName {
		x.geoFailed = err != nil
	}
	if err != nil {
		if !tools.Reportable(err) {
			metrics.ToolCallsTotal.WithLabelValues(tc.Name, "error").Inc()
			return fmt.Errorf("%s: %w", tc.Name, err)
		}
		metrics.ToolCallsTotal.WithLabelValues(tc.Name, "rejected").Inc()
		log.Warn().Err(err).Str("tool", tc.Name).Msg("tool call rejected")
		x.toolResult(tc, "error: "+err.Error(), true)
		return nil
	}

	metrics.ToolCallsTotal.WithLabelValues(tc.Name, "ok").Inc()
	x.state = res.State
	x.toolResult(tc, res.Output, false)
	return nil
}

func (x *run) checkHandoff(to Role) error {
	if !CanHandoff(x.agent, to) {
		return fmt.Errorf("%w: %s cannot transfer to %s", ErrIllegalHandoff, x.agent.DisplayName(), to.DisplayName())
	}
	if to == WeatherSpecialist {
		if x.geoFailed {
			return fmt.Errorf("%w: the requested city could not be resolved", ErrIllegalHandoff)
		}
		if !x.state.HasCoordinates() {
			return fmt.Errorf("%w: coordinates are unknown, resolve the city with the %s first", ErrIllegalHandoff, GeoSpecialist.DisplayName())
		}
	}
	return nil
}

func (x *run) toolResult(tc llm.ToolCall, output string, isError bool) {
	msg := llm.ToolResult(tc.ID, tc.Name, output, isError)
	msg.Agent = x.agent.String()
	x.history = append(x.history, msg)
	x.events = append(x.events, ToolResultEvent{
		From:    x.agent,
		CallID:  tc.ID,
		Tool:    tc.Name,
		Output:  output,
		IsError: isError,
	})
}

// autoHandoff transfers control without a model request. The transfer is
// written to history as a regular handoff call so providers see a coherent
// conversation.
func (x *run) autoHandoff(to Role) {
	tc := llm.ToolCall{ID: newCallID(), Name: HandoffToolName(to), Input: map[string]interface{}{}}
	x.history = append(x.history, llm.Message{
		Role:      llm.RoleAssistant,
		ToolCalls: []llm.ToolCall{tc},
		Agent:     x.agent.String(),
	})
	result := llm.ToolResult(tc.ID, tc.Name, transferOutput(to), false)
	result.Agent = x.agent.String()
	x.history = append(x.history, result)
	x.switchTo(to, true)
}

func (x *run) switchTo(to Role, automatic bool) {
	if x.agent == WeatherSpecialist && x.state.NeedsForecast() {
		x.state = x.state.WithForecast(nil)
	}
	x.events = append(x.events, HandoffEvent{Source: x.agent, Target: to, Automatic: automatic})
	metrics.HandoffsTotal.WithLabelValues(x.agent.String(), to.String()).Inc()
	log.Debug().Str("from", x.agent.String()).Str("to", to.String()).Bool("automatic", automatic).Msg("handoff")
	x.agent = to
	x.usedTool = false
}

func transferOutput(to Role) string {
	return fmt.Sprintf(`{"assistant": %q}`, to.DisplayName())
}

func newCallID() string {
	return "call_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:24]
}

func metadata(role Role, state models.WeatherContext) map[string]string {
	md := map[string]string{MetaAgent: role.String()}
	if state.CityName != "" {
		md[MetaCity] = state.CityName
	}
	if state.ResolvedName != "" {
		md[MetaResolved] = state.ResolvedName
	}
	if c, ok := state.Coordinates(); ok {
		md[MetaLat] = strconv.FormatFloat(c.Lat, 'f', -1, 64)
		md[MetaLon] = strconv.FormatFloat(c.Lon, 'f', -1, 64)
	}
	return md
}
