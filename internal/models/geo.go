package models

import "fmt"

// Coordinates is a WGS84 point
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func (c Coordinates) String() string {
	return fmt.Sprintf("%.4f,%.4f", c.Lat, c.Lon)
}

// GeoResult is the first match of a geocoding lookup
type GeoResult struct {
	Name    string  `json:"name"`
	Country string  `json:"country,omitempty"`
	State   string  `json:"state,omitempty"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// WeatherReport is the normalized current-weather summary, temperatures in Celsius
type WeatherReport struct {
	Main        string  `json:"main"`
	Description string  `json:"description,omitempty"`
	TempMin     float64 `json:"temp_min"`
	TempMax     float64 `json:"temp_max"`
}

func (w WeatherReport) String() string {
	return fmt.Sprintf("%s, %.1f°C to %.1f°C", w.Main, w.TempMin, w.TempMax)
}
