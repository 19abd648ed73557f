package models

import "strings"

// WeatherContext is the state shared by every agent of one conversation.
// It is a value: updates return a modified copy.
type WeatherContext struct {
	CityName          string         `json:"city_name,omitempty"`
	ResolvedName      string         `json:"resolved_name,omitempty"`
	Lat               *float64       `json:"lat,omitempty"`
	Lon               *float64       `json:"lon,omitempty"`
	Forecast          *WeatherReport `json:"forecast,omitempty"`
	ForecastAttempted bool           `json:"forecast_attempted,omitempty"`
}

// Coordinates returns the resolved point, if any
func (c WeatherContext) Coordinates() (Coordinates, bool) {
	if c.Lat == nil || c.Lon == nil {
		return Coordinates{}, false
	}
	return Coordinates{Lat: *c.Lat, Lon: *c.Lon}, true
}

func (c WeatherContext) HasCoordinates() bool {
	return c.Lat != nil && c.Lon != nil
}

// NeedsForecast is true while resolved coordinates have not been sent to the weather step
func (c WeatherContext) NeedsForecast() bool {
	return c.HasCoordinates() && !c.ForecastAttempted
}

// WithLocation records a newly resolved city. Any previous forecast is dropped.
func (c WeatherContext) WithLocation(city string, g GeoResult) WeatherContext {
	lat, lon := g.Lat, g.Lon
	return WeatherContext{
		CityName:     strings.TrimSpace(city),
		ResolvedName: g.Name,
		Lat:          &lat,
		Lon:          &lon,
	}
}

// WithForecast marks the current coordinates as handled; r is nil when the lookup failed
func (c WeatherContext) WithForecast(r *WeatherReport) WeatherContext {
	next := c
	next.ForecastAttempted = true
	if r != nil {
		report := *r
		next.Forecast = &report
	}
	return next
}
