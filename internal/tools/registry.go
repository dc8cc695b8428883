package tools

import (
	"context"
	"fmt"

	"github.com/inkwell-ai/inkwell/internal/stream"
)

// Registry exposes shared tool instances. A nil tool is disabled and absent
// from schemas.
type Registry struct {
	Documents   *DocumentTool
	Suggestions *SuggestionsTool
	Weather     *WeatherTool
}

// NewRegistry builds a registry from instantiated tools.
func NewRegistry(docs *DocumentTool, sug *SuggestionsTool, weather *WeatherTool) *Registry {
	return &Registry{Documents: docs, Suggestions: sug, Weather: weather}
}

// Schema returns the schema for a given tool name if present.
func (r *Registry) Schema(name string) (Schema, bool) {
	for _, s := range r.Schemas() {
		if s.Name == name {
			return s, true
		}
	}
	return Schema{}, false
}

// Execute runs a tool by name. Tools that stream artifact content write
// through em, which must be the same multiplexer the outer response loop
// writes to. The returned map is the tool result payload appended to the
// conversation.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]interface{}, em stream.Emitter) (map[string]interface{}, error) {
	switch name {
	case "document.create":
		title, _ := args["title"].(string)
		kind, _ := args["kind"].(string)
		return r.Documents.Create(ctx, title, kind, em)
	case "document.update":
		id, _ := args["id"].(string)
		desc, _ := args["description"].(string)
		return r.Documents.Update(ctx, id, desc, em)
	case "suggestions.request":
		id, _ := args["id"].(string)
		return r.Suggestions.Request(ctx, id)
	case "weather.get":
		lat, _ := toFloat(args["latitude"])
		lon, _ := toFloat(args["longitude"])
		return r.Weather.Current(ctx, lat, lon)
	default:
		return nil, fmt.Errorf("unknown tool %q", name)
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
