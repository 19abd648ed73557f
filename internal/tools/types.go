// Package tools defines the capability tool contract and the two capabilities
// the specialists are bound to.
package tools

import (
	"context"
	"errors"

	"github.com/skycast/skycast/internal/llm"
	"github.com/skycast/skycast/internal/models"
	"github.com/skycast/skycast/internal/service"
)

// ErrInvalidInput means the model called a tool with unusable arguments
var ErrInvalidInput = errors.New("invalid tool input")

// Call is one tool invocation: the model's arguments plus the conversation context
type Call struct {
	Input map[string]interface{}
	State models.WeatherContext
}

// Result is the tool output shown to the model and the context after the call
type Result struct {
	Output string
	State  models.WeatherContext
}

// Tool represents a callable function the LLM can invoke
type Tool struct {
	Name        string
	Description string
	InputSchema map[string]interface{}
	Execute     func(ctx context.Context, call Call) (Result, error)
}

// Spec returns the provider-neutral declaration of t
func (t Tool) Spec() llm.ToolSpec {
	return llm.ToolSpec{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema}
}

// Geocoder resolves a place name to its first match
type Geocoder interface {
	Geocode(ctx context.Context, city string) (models.GeoResult, error)
}

// WeatherProvider reports current conditions at a point
type WeatherProvider interface {
	CurrentWeather(ctx context.Context, c models.Coordinates) (models.WeatherReport, error)
}

// Reportable reports whether err should go back to the model as a tool error
// instead of aborting the turn.
func Reportable(err error) bool {
	return errors.Is(err, ErrInvalidInput) || errors.Is(err, service.ErrLocationNotFound)
}
