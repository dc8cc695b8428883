package tools

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/inkwell-ai/inkwell/internal/llm"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	store := NewDocumentStore()
	models := llm.NewRegistry()
	docs := NewDocumentTool(store, models, "", nil, nil)
	sug := NewSuggestionsTool(store, models, "", nil, nil)
	weather := NewWeatherTool("", time.Second, nil)
	return NewRegistry(docs, sug, weather)
}

func TestValidateCallUnknownTool(t *testing.T) {
	reg := testRegistry(t)
	require.Error(t, ValidateCall(reg, "fs.read_file", nil))
	require.Error(t, ValidateCall(nil, "weather.get", nil))
}

func TestValidateCallRequiredAndTypes(t *testing.T) {
	reg := testRegistry(t)

	require.Error(t, ValidateCall(reg, "document.create", map[string]interface{}{}))
	require.Error(t, ValidateCall(reg, "document.create", map[string]interface{}{"title": 42}))
	require.NoError(t, ValidateCall(reg, "document.create", map[string]interface{}{"title": "Notes"}))

	// Enum constraint on kind.
	require.Error(t, ValidateCall(reg, "document.create", map[string]interface{}{"title": "Notes", "kind": "video"}))
	require.NoError(t, ValidateCall(reg, "document.create", map[string]interface{}{"title": "Notes", "kind": "code"}))
}

func TestValidateCallDocumentExistence(t *testing.T) {
	reg := testRegistry(t)

	args := map[string]interface{}{"id": "missing", "description": "tighten intro"}
	require.Error(t, ValidateCall(reg, "document.update", args))

	reg.Documents.store.Put(Document{ID: "doc-1", Title: "Notes", Kind: "text"})
	args["id"] = "doc-1"
	require.NoError(t, ValidateCall(reg, "document.update", args))
	require.NoError(t, ValidateCall(reg, "suggestions.request", map[string]interface{}{"id": "doc-1"}))
}

func TestValidateCallWeatherBounds(t *testing.T) {
	reg := testRegistry(t)

	require.NoError(t, ValidateCall(reg, "weather.get", map[string]interface{}{"latitude": 52.52, "longitude": 13.405}))
	// JSON numbers arrive as float64; integers are accepted too.
	require.NoError(t, ValidateCall(reg, "weather.get", map[string]interface{}{"latitude": 52, "longitude": 13}))
	require.Error(t, ValidateCall(reg, "weather.get", map[string]interface{}{"latitude": "52", "longitude": 13.4}))
	require.Error(t, ValidateCall(reg, "weather.get", map[string]interface{}{"latitude": 99.0, "longitude": 13.4}))
	require.Error(t, ValidateCall(reg, "weather.get", map[string]interface{}{"latitude": 52.0}))
}

func TestDefinitionsCarryJSONSchema(t *testing.T) {
	reg := testRegistry(t)
	defs := reg.Definitions()
	require.Len(t, defs, 4)

	byName := map[string]llm.ToolDefinition{}
	for _, d := range defs {
		byName[d.Name] = d
	}
	create := byName["document.create"]
	require.Equal(t, "object", create.Parameters["type"])
	props := create.Parameters["properties"].(map[string]interface{})
	kind := props["kind"].(map[string]interface{})
	require.Equal(t, []string{"text", "code"}, kind["enum"])
	require.Equal(t, []string{"title"}, create.Parameters["required"])
}
