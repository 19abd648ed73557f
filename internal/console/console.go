// Package console runs the interactive turn loop on a terminal.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/skycast/skycast/internal/agent"
)

const Prompt = "😎 Enter your message: "

// Console reads one utterance per line and prints the events of each turn.
// The literal "exit" or end of input ends the loop.
type Console struct {
	runner      *agent.Runner
	in          *bufio.Scanner
	out         io.Writer
	turnTimeout time.Duration
	session     *agent.Session
}

func New(runner *agent.Runner, in io.Reader, out io.Writer, turnTimeout time.Duration) *Console {
	return &Console{
		runner:      runner,
		in:          bufio.NewScanner(in),
		out:         out,
		turnTimeout: turnTimeout,
		session:     agent.NewSession(),
	}
}

// Session is the conversation driven by the console
func (c *Console) Session() *agent.Session {
	return c.session
}

// Run loops until exit, end of input or ctx cancellation
func (c *Console) Run(ctx context.Context) error {
	log.Debug().Str("session_id", c.session.ID).Str("model", c.runner.ModelName()).Msg("console session started")
	for {
		fmt.Fprint(c.out, Prompt)
		if !c.in.Scan() {
			fmt.Fprintln(c.out)
			return c.in.Err()
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		line := strings.TrimSpace(c.in.Text())
		if line == "" {
			continue
		}
		ended, err := c.Say(ctx, line)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fmt.Fprintf(c.out, "⚠️  %s\n", describe(err))
			continue
		}
		if ended {
			return nil
		}
	}
}

// Say runs one utterance and renders its events. It reports whether the
// conversation ended.
func (c *Console) Say(ctx context.Context, utterance string) (bool, error) {
	if c.turnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.turnTimeout)
		defer cancel()
	}
	turn, err := c.runner.Turn(ctx, c.session, utterance)
	if err != nil {
		return false, err
	}
	for _, e := range turn.Events {
		Render(c.out, e)
	}
	return turn.Ended, nil
}

func describe(err error) string {
	switch {
	case errors.Is(err, agent.ErrRejectedInput):
		return "message rejected: " + err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return "the turn took too long, please try again"
	}
	return "turn failed: " + err.Error()
}

// Render prints one event as a single line, by kind
func Render(w io.Writer, e agent.Event) {
	name := e.Agent().DisplayName()
	switch ev := e.(type) {
	case agent.MessageEvent:
		fmt.Fprintf(w, "🤖 %s: %s\n", name, ev.Text)
	case agent.HandoffEvent:
		fmt.Fprintf(w, "👉 Handed off from %s to %s\n", ev.Source.DisplayName(), ev.Target.DisplayName())
	case agent.ToolCallEvent:
		fmt.Fprintf(w, "🤖 %s: Calling %s\n", name, ev.Call.Name)
	case agent.ToolResultEvent:
		if ev.IsError {
			fmt.Fprintf(w, "🤖 %s: Tool %s failed: %s\n", name, ev.Tool, ev.Output)
			return
		}
		fmt.Fprintf(w, "🤖 %s: Tool call output: %s\n", name, ev.Output)
	default:
		fmt.Fprintf(w, "🤖 %s: Skipping event %s\n", name, e.Kind())
	}
}
