package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/skycast/skycast/internal/llm"
	"github.com/skycast/skycast/internal/models"
)

const ForecastToolName = "get_forecast"

// ForecastTool reports current conditions for numeric coordinates
func ForecastTool(w WeatherProvider) Tool {
	return Tool{
		Name:        ForecastToolName,
		Description: "Get weather details for a latitude and longitude. Returns the main condition with min and max temperature in Celsius.",
		InputSchema: llm.ObjectSchema(map[string]interface{}{
			"lat": map[string]interface{}{
				"type":        "number",
				"description": "Latitude of the city",
			},
			"lon": map[string]interface{}{
				"type":        "number",
				"description": "Longitude of the city",
			},
		}, "lat", "lon"),
		Execute: func(ctx context.Context, call Call) (Result, error) {
			lat, err := number(call.Input, "lat", 90)
			if err != nil {
				return Result{}, err
			}
			lon, err := number(call.Input, "lon", 180)
			if err != nil {
				return Result{}, err
			}

			report, err := w.CurrentWeather(ctx, models.Coordinates{Lat: lat, Lon: lon})
			if err != nil {
				return Result{}, err
			}
			log.Info().Float64("lat", lat).Float64("lon", lon).Str("main", report.Main).
				Float64("temp_min", report.TempMin).Float64("temp_max", report.TempMax).Msg("weather resolved")

			b, err := json.Marshal(report)
			if err != nil {
				return Result{}, fmt.Errorf("marshal weather: %w", err)
			}
			return Result{
				Output: string(b),
				State:  call.State.WithForecast(&report),
			}, nil
		},
	}
}

// number reads a coordinate that models sometimes send as a string
func number(input map[string]interface{}, key string, limit float64) (float64, error) {
	var v float64
	switch raw := input[key].(type) {
	case float64:
		v = raw
	case int:
		v = float64(raw)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %s must be a number, got %q", ErrInvalidInput, key, raw)
		}
		v = f
	case nil:
		return 0, fmt.Errorf("%w: %s is required", ErrInvalidInput, key)
	default:
		return 0, fmt.Errorf("%w: %s must be a number", ErrInvalidInput, key)
	}
	if v < -limit || v > limit {
		return 0, fmt.Errorf("%w: %s %.4f out of range", ErrInvalidInput, key, v)
	}
	return v, nil
}
