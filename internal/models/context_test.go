package models_test

import (
	"encoding/json"
	"testing"

	"github.com/skycast/skycast/internal/models"
)

func TestWeatherContextProgression(t *testing.T) {
	var c models.WeatherContext
	if c.HasCoordinates() || c.NeedsForecast() {
		t.Fatal("empty context has no coordinates")
	}

	c = c.WithLocation(" Paris ", models.GeoResult{Name: "Paris", Lat: 48.8566, Lon: 2.3522})
	if c.CityName != "Paris" || !c.NeedsForecast() {
		t.Fatalf("after location: %+v", c)
	}

	failed := c.WithForecast(nil)
	if failed.NeedsForecast() || failed.Forecast != nil {
		t.Errorf("a failed lookup is still an attempt: %+v", failed)
	}

	report := models.WeatherReport{Main: "Clear", TempMin: 15, TempMax: 22}
	done := c.WithForecast(&report)
	report.Main = "Rain"
	if done.Forecast == nil || done.Forecast.Main != "Clear" {
		t.Errorf("forecast must be copied: %+v", done.Forecast)
	}
	if c.ForecastAttempted {
		t.Error("WithForecast must not modify the receiver")
	}

	moved := done.WithLocation("Oslo", models.GeoResult{Name: "Oslo", Lat: 59.91, Lon: 10.75})
	if moved.Forecast != nil || !moved.NeedsForecast() {
		t.Errorf("a new location drops the old forecast: %+v", moved)
	}
}

func TestWeatherContextJSON(t *testing.T) {
	b, err := json.Marshal(models.WeatherContext{})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "{}" {
		t.Errorf("empty context = %s", b)
	}
}

func TestMessageRequestDefaults(t *testing.T) {
	cases := []struct {
		in, want int
	}{
		{0, 120},
		{3, 10},
		{60, 60},
		{9000, 600},
	}
	for _, tc := range cases {
		r := models.MessageRequest{Message: "  hi  ", Timeout: tc.in}
		r.SetDefaults()
		if r.Timeout != tc.want || r.Message != "hi" {
			t.Errorf("timeout %d: got %d %q", tc.in, r.Timeout, r.Message)
		}
	}
}
