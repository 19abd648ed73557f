package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/skycast/skycast/internal/llm"
)

const GeoToolName = "get_geo"

// GeoTool resolves a city name and stores the coordinates in the conversation context
func GeoTool(g Geocoder) Tool {
	return Tool{
		Name:        GeoToolName,
		Description: "Get geolocation details of a city. Returns the matched name with its latitude and longitude.",
		InputSchema: llm.ObjectSchema(map[string]interface{}{
			"city": map[string]interface{}{
				"type":        "string",
				"description": "The name of the city to get location info for",
			},
		}, "city"),
		Execute: func(ctx context.Context, call Call) (Result, error) {
			city, _ := call.Input["city"].(string)
			city = strings.TrimSpace(city)
			if city == "" {
				return Result{}, fmt.Errorf("%w: city is required", ErrInvalidInput)
			}

			geo, err := g.Geocode(ctx, city)
			if err != nil {
				return Result{}, err
			}
			log.Info().Str("city", city).Str("name", geo.Name).Float64("lat", geo.Lat).Float64("lon", geo.Lon).Msg("geolocation resolved")

			b, err := json.Marshal(map[string]interface{}{
				"name": geo.Name,
				"lat":  geo.Lat,
				"lon":  geo.Lon,
			})
			if err != nil {
				return Result{}, fmt.Errorf("marshal geo: %w", err)
			}
			return Result{
				Output: string(b),
				State:  call.State.WithLocation(city, geo),
			}, nil
		},
	}
}
