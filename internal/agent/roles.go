package agent

import (
	"errors"
	"fmt"
	"strings"
)

// Role identifies which agent holds control of the conversation
type Role int

const (
	Coordinator Role = iota
	GeoSpecialist
	WeatherSpecialist
)

// ErrIllegalHandoff is returned for transfers outside the transition table
var ErrIllegalHandoff = errors.New("illegal handoff")

var roleNames = [...]string{
	Coordinator:       "coordinator",
	GeoSpecialist:     "geo",
	WeatherSpecialist: "weather",
}

var displayNames = [...]string{
	Coordinator:       "Forecast Agent",
	GeoSpecialist:     "Geo Agent",
	WeatherSpecialist: "Weather Agent",
}

// transitions is the complete set of allowed handoffs
var transitions = map[Role][]Role{
	Coordinator:       {GeoSpecialist, WeatherSpecialist},
	GeoSpecialist:     {Coordinator},
	WeatherSpecialist: {Coordinator},
}

// Roles lists every role in declaration order
func Roles() []Role {
	return []Role{Coordinator, GeoSpecialist, WeatherSpecialist}
}

func (r Role) valid() bool {
	return r >= Coordinator && r <= WeatherSpecialist
}

func (r Role) String() string {
	if !r.valid() {
		return fmt.Sprintf("role(%d)", int(r))
	}
	return roleNames[r]
}

// DisplayName is the human-facing agent name
func (r Role) DisplayName() string {
	if !r.valid() {
		return r.String()
	}
	return displayNames[r]
}

// Targets returns the roles r may hand control to
func (r Role) Targets() []Role {
	return transitions[r]
}

// CanHandoff reports whether from → to is in the transition table
func CanHandoff(from, to Role) bool {
	for _, t := range transitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// ParseRole accepts the short name ("geo") or the display name ("Geo Agent")
func ParseRole(s string) (Role, error) {
	s = strings.TrimSpace(s)
	for _, r := range Roles() {
		if strings.EqualFold(s, r.String()) || strings.EqualFold(s, r.DisplayName()) {
			return r, nil
		}
	}
	return Coordinator, fmt.Errorf("unknown agent role %q", s)
}

func (r Role) MarshalText() ([]byte, error) {
	if !r.valid() {
		return nil, fmt.Errorf("invalid role %d", int(r))
	}
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(b []byte) error {
	parsed, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

const handoffPrefix = "transfer_to_"

// HandoffToolName is the pseudo-tool a model calls to transfer control to r
func HandoffToolName(r Role) string {
	return handoffPrefix + strings.ReplaceAll(strings.ToLower(r.DisplayName()), " ", "_")
}

// handoffTarget maps a pseudo-tool name back to its role
func handoffTarget(toolName string) (Role, bool) {
	if !strings.HasPrefix(toolName, handoffPrefix) {
		return Coordinator, false
	}
	for _, r := range Roles() {
		if toolName == HandoffToolName(r) {
			return r, true
		}
	}
	return Coordinator, false
}
