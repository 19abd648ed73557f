package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/skycast/skycast/internal/metrics"
	"github.com/skycast/skycast/internal/models"
)

var (
	// ErrLocationNotFound means the geocoder returned no match
	ErrLocationNotFound = errors.New("location not found")
	// ErrMalformedResponse means a provider answered without the expected fields
	ErrMalformedResponse = errors.New("malformed provider response")
)

const (
	DefaultGeoBaseURL  = "http://api.openweathermap.org"
	DefaultDataBaseURL = "https://api.openweathermap.org"
)

// OpenWeatherConfig configures the OpenWeather client
type OpenWeatherConfig struct {
	APIKey      string
	GeoBaseURL  string
	DataBaseURL string
	Timeout     time.Duration
	MaxRetries  int
	RatePerSec  float64
}

// OpenWeatherService resolves place names and current conditions via OpenWeather
type OpenWeatherService struct {
	apiKey  string
	geoURL  string
	dataURL string
	client  *retryingClient
}

func NewOpenWeatherService(cfg OpenWeatherConfig) *OpenWeatherService {
	if cfg.GeoBaseURL == "" {
		cfg.GeoBaseURL = DefaultGeoBaseURL
	}
	if cfg.DataBaseURL == "" {
		cfg.DataBaseURL = DefaultDataBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &OpenWeatherService{
		apiKey:  cfg.APIKey,
		geoURL:  strings.TrimSuffix(cfg.GeoBaseURL, "/") + "/geo/1.0/direct",
		dataURL: strings.TrimSuffix(cfg.DataBaseURL, "/") + "/data/2.5/weather",
		client:  newRetryingClient(cfg.Timeout, cfg.MaxRetries, cfg.RatePerSec),
	}
}

type geoEntry struct {
	Name    string   `json:"name"`
	Country string   `json:"country"`
	State   string   `json:"state"`
	Lat     *float64 `json:"lat"`
	Lon     *float64 `json:"lon"`
}

type weatherResponse struct {
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
	Main *struct {
		TempMin *float64 `json:"temp_min"`
		TempMax *float64 `json:"temp_max"`
	} `json:"main"`
}

// Geocode returns the first match for city
func (s *OpenWeatherService) Geocode(ctx context.Context, city string) (_ models.GeoResult, err error) {
	start := time.Now()
	defer func() { metrics.ObserveProvider("openweather", "geocode", err, time.Since(start)) }()

	city = strings.TrimSpace(city)
	if city == "" {
		return models.GeoResult{}, fmt.Errorf("geocode: %w: empty city", ErrLocationNotFound)
	}

	q := url.Values{}
	q.Set("q", city)
	q.Set("limit", "1")
	q.Set("appid", s.apiKey)
	endpoint := s.geoURL + "?" + q.Encode()

	resp, err := s.client.get(ctx, func() (*http.Request, error) {
		return s.newRequest(ctx, endpoint)
	})
	if err != nil {
		return models.GeoResult{}, fmt.Errorf("geocode %q: %w", city, err)
	}
	defer resp.Body.Close()

	var entries []geoEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return models.GeoResult{}, fmt.Errorf("geocode %q: decode: %w: %v", city, ErrMalformedResponse, err)
	}
	if len(entries) == 0 {
		return models.GeoResult{}, fmt.Errorf("geocode %q: %w", city, ErrLocationNotFound)
	}

	first := entries[0]
	if first.Lat == nil || first.Lon == nil {
		return models.GeoResult{}, fmt.Errorf("geocode %q: %w: missing lat/lon", city, ErrMalformedResponse)
	}
	name := first.Name
	if name == "" {
		name = city
	}

	log.Debug().Str("city", city).Str("name", name).Float64("lat", *first.Lat).Float64("lon", *first.Lon).Msg("geocoded")
	return models.GeoResult{
		Name:    name,
		Country: first.Country,
		State:   first.State,
		Lat:     *first.Lat,
		Lon:     *first.Lon,
	}, nil
}

// CurrentWeather returns the metric current-weather summary at c
func (s *OpenWeatherService) CurrentWeather(ctx context.Context, c models.Coordinates) (_ models.WeatherReport, err error) {
	start := time.Now()
	defer func() { metrics.ObserveProvider("openweather", "weather", err, time.Since(start)) }()

	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(c.Lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(c.Lon, 'f', -1, 64))
	q.Set("appid", s.apiKey)
	q.Set("units", "metric")
	endpoint := s.dataURL + "?" + q.Encode()

	resp, err := s.client.get(ctx, func() (*http.Request, error) {
		return s.newRequest(ctx, endpoint)
	})
	if err != nil {
		return models.WeatherReport{}, fmt.Errorf("weather at %s: %w", c, err)
	}
	defer resp.Body.Close()

	var decoded weatherResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return models.WeatherReport{}, fmt.Errorf("weather at %s: decode: %w: %v", c, ErrMalformedResponse, err)
	}
	if len(decoded.Weather) == 0 || decoded.Main == nil || decoded.Main.TempMin == nil || decoded.Main.TempMax == nil {
		return models.WeatherReport{}, fmt.Errorf("weather at %s: %w: missing weather[0] or main", c, ErrMalformedResponse)
	}

	return models.WeatherReport{
		Main:        decoded.Weather[0].Main,
		Description: decoded.Weather[0].Description,
		TempMin:     *decoded.Main.TempMin,
		TempMax:     *decoded.Main.TempMax,
	}, nil
}

// TestConnection checks that the geocoding endpoint answers
func (s *OpenWeatherService) TestConnection(ctx context.Context) error {
	_, err := s.Geocode(ctx, "London")
	if errors.Is(err, ErrLocationNotFound) {
		return nil
	}
	return err
}

func (s *OpenWeatherService) newRequest(ctx context.Context, endpoint string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}
