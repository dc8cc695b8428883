package tools

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/inkwell-ai/inkwell/internal/tools"
)

func TestSchemaHandler(t *testing.T) {
	reg := tools.NewRegistry(nil, nil, tools.NewWeatherTool("", time.Second, nil))
	h := SchemaHandler{Registry: reg}

	req := httptest.NewRequest(http.MethodGet, "/tools/schemas", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var schemas []tools.Schema
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &schemas))
	require.Len(t, schemas, 1)
	require.Equal(t, "weather.get", schemas[0].Name)

	post := httptest.NewRequest(http.MethodPost, "/tools/schemas", nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, post)
	require.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
