package agent_test

import (
	"encoding/json"
	"testing"

	"github.com/skycast/skycast/internal/agent"
)

// ─── Transition table ─────────────────────────────────────────────────────────

func TestCanHandoff(t *testing.T) {
	tests := []struct {
		from, to agent.Role
		want     bool
	}{
		{agent.Coordinator, agent.GeoSpecialist, true},
		{agent.Coordinator, agent.WeatherSpecialist, true},
		{agent.GeoSpecialist, agent.Coordinator, true},
		{agent.WeatherSpecialist, agent.Coordinator, true},
		{agent.GeoSpecialist, agent.WeatherSpecialist, false},
		{agent.WeatherSpecialist, agent.GeoSpecialist, false},
		{agent.Coordinator, agent.Coordinator, false},
		{agent.GeoSpecialist, agent.GeoSpecialist, false},
	}
	for _, tt := range tests {
		t.Run(tt.from.String()+"->"+tt.to.String(), func(t *testing.T) {
			if got := agent.CanHandoff(tt.from, tt.to); got != tt.want {
				t.Errorf("CanHandoff(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestHandoffToolName(t *testing.T) {
	tests := map[agent.Role]string{
		agent.Coordinator:       "transfer_to_forecast_agent",
		agent.GeoSpecialist:     "transfer_to_geo_agent",
		agent.WeatherSpecialist: "transfer_to_weather_agent",
	}
	for role, want := range tests {
		if got := agent.HandoffToolName(role); got != want {
			t.Errorf("HandoffToolName(%s) = %q, want %q", role, got, want)
		}
	}
}

// ─── Parsing ──────────────────────────────────────────────────────────────────

func TestParseRole(t *testing.T) {
	tests := []struct {
		in      string
		want    agent.Role
		wantErr bool
	}{
		{"coordinator", agent.Coordinator, false},
		{"Forecast Agent", agent.Coordinator, false},
		{"geo", agent.GeoSpecialist, false},
		{" Geo Agent ", agent.GeoSpecialist, false},
		{"WEATHER", agent.WeatherSpecialist, false},
		{"pilot", agent.Coordinator, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := agent.ParseRole(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseRole(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseRole(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestRoleJSON(t *testing.T) {
	b, err := json.Marshal(map[string]agent.Role{"current": agent.WeatherSpecialist})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"current":"weather"}` {
		t.Errorf("marshal = %s", b)
	}

	var back map[string]agent.Role
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatal(err)
	}
	if back["current"] != agent.WeatherSpecialist {
		t.Errorf("round trip = %s", back["current"])
	}
}
