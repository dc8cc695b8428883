package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/inkwell-ai/inkwell/internal/llm"
)

// WeatherTool fetches current conditions from an open-meteo compatible API.
type WeatherTool struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewWeatherTool builds the tool. timeout bounds each upstream request.
func NewWeatherTool(baseURL string, timeout time.Duration, logger *zap.Logger) *WeatherTool {
	if baseURL == "" {
		baseURL = "https://api.open-meteo.com/v1/forecast"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WeatherTool{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type weatherResponse struct {
	Current struct {
		Time          string  `json:"time"`
		Temperature2M float64 `json:"temperature_2m"`
		WeatherCode   int     `json:"weather_code"`
		WindSpeed10M  float64 `json:"wind_speed_10m"`
	} `json:"current"`
	CurrentUnits struct {
		Temperature2M string `json:"temperature_2m"`
	} `json:"current_units"`
}

// Current returns the current weather at the coordinates.
func (t *WeatherTool) Current(ctx context.Context, lat, lon float64) (map[string]interface{}, error) {
	q := url.Values{}
	q.Set("latitude", fmt.Sprintf("%.4f", lat))
	q.Set("longitude", fmt.Sprintf("%.4f", lon))
	q.Set("current", "temperature_2m,weather_code,wind_speed_10m")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("weather request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, &llm.StatusError{Provider: "weather", Status: resp.StatusCode}
	}

	var wr weatherResponse
	if err := json.NewDecoder(resp.Body).Decode(&wr); err != nil {
		return nil, fmt.Errorf("decode weather response: %w", err)
	}

	t.logger.Debug("weather fetched",
		zap.Float64("lat", lat),
		zap.Float64("lon", lon),
		zap.Float64("temperature", wr.Current.Temperature2M))

	return map[string]interface{}{
		"temperature":      wr.Current.Temperature2M,
		"temperature_unit": wr.CurrentUnits.Temperature2M,
		"weather_code":     wr.Current.WeatherCode,
		"wind_speed":       wr.Current.WindSpeed10M,
		"time":             wr.Current.Time,
	}, nil
}
