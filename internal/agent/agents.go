package agent

import (
	"fmt"
	"strings"

	"github.com/skycast/skycast/internal/llm"
	"github.com/skycast/skycast/internal/models"
	"github.com/skycast/skycast/internal/tools"
)

const handoffPreamble = `You are one agent in a team of agents that answer weather questions together.
Control moves between agents through handoff functions named transfer_to_<agent>.
Call a handoff function to pass the conversation on; do not mention the handoff to the user.`

const coordinatorInstructions = `You are the Forecast Agent. You understand the user's message in any language.
You never answer weather questions from your own knowledge and you have no tools of your own.
You only delegate to the Geo Agent or the Weather Agent.

Workflow:
1. Extract the city name, or ask the user for one if none is given.
2. Hand off to the Geo Agent so it can resolve the city to coordinates.
3. Once coordinates are known, hand off to the Weather Agent.

Never stop after step 2. When the Geo Agent reports that a city could not be found,
tell the user and ask for another city instead of calling the Weather Agent.
When the Weather Agent has reported, summarise the weather for the user in their language.`

const geoInstructions = `You are the Geo Agent. You extract the city name from the conversation in any language.
Call get_geo exactly once with that city name.
Then transfer back to the Forecast Agent, whether the lookup succeeded or not.`

const weatherInstructions = `You are the Weather Agent. Call get_forecast exactly once with the latitude and
longitude from the conversation context.
Then transfer back to the Forecast Agent, whether the lookup succeeded or not.`

// Agent is one participant of the team: its instructions and the capability
// tools it may execute.
type Agent struct {
	Role         Role
	Instructions string
	Tools        []tools.Tool
}

func (a *Agent) tool(name string) (tools.Tool, bool) {
	for _, t := range a.Tools {
		if t.Name == name {
			return t, true
		}
	}
	return tools.Tool{}, false
}

// toolSpecs lists the capabilities followed by one handoff function per allowed target
func (a *Agent) toolSpecs() []llm.ToolSpec {
	specs := make([]llm.ToolSpec, 0, len(a.Tools)+len(a.Role.Targets()))
	for _, t := range a.Tools {
		specs = append(specs, t.Spec())
	}
	for _, target := range a.Role.Targets() {
		specs = append(specs, llm.ToolSpec{
			Name:        HandoffToolName(target),
			Description: fmt.Sprintf("Hand off the conversation to the %s.", target.DisplayName()),
			InputSchema: llm.ObjectSchema(nil),
		})
	}
	return specs
}

// systemPrompt renders instructions plus the current context
func (a *Agent) systemPrompt(state models.WeatherContext) string {
	var b strings.Builder
	b.WriteString(handoffPreamble)
	b.WriteString("\n\n")
	b.WriteString(a.Instructions)
	b.WriteString("\n\nConversation context: ")
	b.WriteString(describeState(state))
	return b.String()
}

func describeState(state models.WeatherContext) string {
	c, ok := state.Coordinates()
	if !ok {
		return "no city has been resolved yet."
	}
	s := fmt.Sprintf("city %q resolved to %s at lat=%.4f lon=%.4f", state.CityName, state.ResolvedName, c.Lat, c.Lon)
	switch {
	case state.Forecast != nil:
		s += "; current weather: " + state.Forecast.String()
	case state.ForecastAttempted:
		s += "; the weather lookup for these coordinates failed"
	default:
		s += "; weather not looked up yet"
	}
	return s + "."
}

// Team holds the three agents of the weather workflow
type Team struct {
	agents map[Role]*Agent
}

// NewTeam binds the Geo Agent to get_geo and the Weather Agent to get_forecast.
// The coordinator has no capability tools.
func NewTeam(geo tools.Geocoder, weather tools.WeatherProvider) *Team {
	return &Team{agents: map[Role]*Agent{
		Coordinator:       {Role: Coordinator, Instructions: coordinatorInstructions},
		GeoSpecialist:     {Role: GeoSpecialist, Instructions: geoInstructions, Tools: []tools.Tool{tools.GeoTool(geo)}},
		WeatherSpecialist: {Role: WeatherSpecialist, Instructions: weatherInstructions, Tools: []tools.Tool{tools.ForecastTool(weather)}},
	}}
}

// Agent returns the definition for r
func (t *Team) Agent(r Role) *Agent {
	return t.agents[r]
}
