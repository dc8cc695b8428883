package tools

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/inkwell-ai/inkwell/internal/llm"
)

func TestWeatherCurrent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "52.5200", r.URL.Query().Get("latitude"))
		require.Equal(t, "13.4050", r.URL.Query().Get("longitude"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"current": {"time": "2026-08-25T12:00", "temperature_2m": 21.4, "weather_code": 3, "wind_speed_10m": 9.7},
			"current_units": {"temperature_2m": "°C"}
		}`))
	}))
	defer srv.Close()

	tool := NewWeatherTool(srv.URL, time.Second, nil)
	result, err := tool.Current(context.Background(), 52.52, 13.405)
	require.NoError(t, err)
	require.Equal(t, 21.4, result["temperature"])
	require.Equal(t, "°C", result["temperature_unit"])
	require.Equal(t, 3, result["weather_code"])
}

func TestWeatherUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	tool := NewWeatherTool(srv.URL, time.Second, nil)
	_, err := tool.Current(context.Background(), 1, 2)
	var se *llm.StatusError
	require.ErrorAs(t, err, &se)
	require.Equal(t, http.StatusBadGateway, se.Status)
}
