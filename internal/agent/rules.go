package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/skycast/skycast/internal/llm"
	"github.com/skycast/skycast/internal/models"
	"github.com/skycast/skycast/internal/service"
	"github.com/skycast/skycast/internal/tools"
)

// RulesModel is an offline llm.Model that plays every role from keyword
// routing and request metadata. It needs no API key and is deterministic.
type RulesModel struct {
	router *service.IntentRouter
}

func NewRulesModel() *RulesModel {
	return &RulesModel{router: service.NewIntentRouter()}
}

func (m *RulesModel) Name() string { return "rules" }

func (m *RulesModel) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	idx := llm.LastUserIndex(req.Messages)
	var utterance string
	if idx >= 0 {
		utterance = req.Messages[idx].Content
	}
	recent := req.Messages[idx+1:]

	role, err := ParseRole(req.Metadata[MetaAgent])
	if err != nil {
		return nil, err
	}
	switch role {
	case GeoSpecialist:
		return m.geo(utterance, recent), nil
	case WeatherSpecialist:
		return m.weather(req.Metadata, recent), nil
	default:
		return m.coordinate(utterance, req.Metadata, recent), nil
	}
}

func (m *RulesModel) coordinate(utterance string, md map[string]string, recent []llm.Message) *llm.Response {
	if res, ok := lastResult(recent, tools.ForecastToolName); ok {
		place := placeName(md)
		var w models.WeatherReport
		if res.IsError || json.Unmarshal([]byte(res.Content), &w) != nil {
			return say(fmt.Sprintf("Sorry, I could not get the weather for %s right now.", place))
		}
		return say(fmt.Sprintf("Weather in %s: %s, between %.1f°C and %.1f°C.", place, w.Main, w.TempMin, w.TempMax))
	}

	route := m.router.Route(utterance)
	if res, ok := lastResult(recent, tools.GeoToolName); ok && res.IsError {
		return say(fmt.Sprintf("I couldn't find a place called %q. Which city do you mean?", route.City))
	}
	if len(recent) > 0 {
		// someone already acted on this utterance without producing weather
		return say("Which city would you like the weather for?")
	}

	switch {
	case route.City != "" && knows(md, route.City):
		return handoff(WeatherSpecialist)
	case route.City != "":
		return handoff(GeoSpecialist)
	case route.Intent == service.IntentWeather && md[MetaLat] != "":
		return handoff(WeatherSpecialist)
	case route.Intent == service.IntentGreeting:
		return say("Hi! Tell me a city and I'll look up its weather.")
	}
	return say("Which city would you like the weather for?")
}

func (m *RulesModel) geo(utterance string, recent []llm.Message) *llm.Response {
	if res, ok := lastResult(recent, tools.GeoToolName); ok {
		var g models.GeoResult
		if res.IsError || json.Unmarshal([]byte(res.Content), &g) != nil {
			return say("I could not find that place.")
		}
		return say(fmt.Sprintf("%s is at %.4f, %.4f.", g.Name, g.Lat, g.Lon))
	}
	city := m.router.Route(utterance).City
	if city == "" {
		return say("I could not find a city name in that message.")
	}
	return call(tools.GeoToolName, map[string]interface{}{"city": city})
}

func (m *RulesModel) weather(md map[string]string, recent []llm.Message) *llm.Response {
	if res, ok := lastResult(recent, tools.ForecastToolName); ok {
		var w models.WeatherReport
		if res.IsError || json.Unmarshal([]byte(res.Content), &w) != nil {
			return say("The weather lookup failed.")
		}
		return say(w.String())
	}
	lat, errLat := strconv.ParseFloat(md[MetaLat], 64)
	lon, errLon := strconv.ParseFloat(md[MetaLon], 64)
	if errLat != nil || errLon != nil {
		return say("I need coordinates before I can look up the weather.")
	}
	return call(tools.ForecastToolName, map[string]interface{}{"lat": lat, "lon": lon})
}

func lastResult(msgs []llm.Message, tool string) (llm.Message, bool) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == llm.RoleTool && msgs[i].ToolName == tool {
			return msgs[i], true
		}
	}
	return llm.Message{}, false
}

func knows(md map[string]string, city string) bool {
	if md[MetaLat] == "" || md[MetaLon] == "" {
		return false
	}
	city = strings.TrimSpace(city)
	return strings.EqualFold(city, md[MetaCity]) || strings.EqualFold(city, md[MetaResolved])
}

func placeName(md map[string]string) string {
	if md[MetaResolved] != "" {
		return md[MetaResolved]
	}
	if md[MetaCity] != "" {
		return md[MetaCity]
	}
	return "that place"
}

func say(text string) *llm.Response {
	return &llm.Response{Text: text, StopReason: "end_turn"}
}

func call(name string, input map[string]interface{}) *llm.Response {
	return &llm.Response{
		ToolCalls:  []llm.ToolCall{{Name: name, Input: input}},
		StopReason: "tool_use",
	}
}

func handoff(to Role) *llm.Response {
	return call(HandoffToolName(to), map[string]interface{}{})
}
