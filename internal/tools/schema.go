package tools

import "github.com/inkwell-ai/inkwell/internal/llm"

// Schema describes a tool for JSON schema/tool-calling.
type Schema struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Parameters  []SchemaField `json:"parameters"`
}

// SchemaField describes a single parameter.
type SchemaField struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Required    bool     `json:"required"`
	Enum        []string `json:"enum,omitempty"`
}

// Definition converts the schema into the JSON-schema shape providers expect.
func (s Schema) Definition() llm.ToolDefinition {
	props := make(map[string]interface{}, len(s.Parameters))
	var required []string
	for _, f := range s.Parameters {
		p := map[string]interface{}{"type": f.Type}
		if f.Description != "" {
			p["description"] = f.Description
		}
		if len(f.Enum) > 0 {
			p["enum"] = f.Enum
		}
		props[f.Name] = p
		if f.Required {
			required = append(required, f.Name)
		}
	}
	params := map[string]interface{}{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		params["required"] = required
	}
	return llm.ToolDefinition{
		Name:        s.Name,
		Description: s.Description,
		Parameters:  params,
	}
}

// Schemas provides descriptors for the enabled tools.
func (r *Registry) Schemas() []Schema {
	var s []Schema
	if r.Documents != nil {
		s = append(s,
			Schema{
				Name:        "document.create",
				Description: "Create a document artifact and stream its content to the user",
				Parameters: []SchemaField{
					{Name: "title", Type: "string", Description: "Document title", Required: true},
					{Name: "kind", Type: "string", Description: "Artifact kind", Required: false, Enum: []string{"text", "code"}},
				},
			},
			Schema{
				Name:        "document.update",
				Description: "Rewrite an existing document according to a change description",
				Parameters: []SchemaField{
					{Name: "id", Type: "string", Description: "Document id", Required: true},
					{Name: "description", Type: "string", Description: "What to change", Required: true},
				},
			},
		)
	}
	if r.Suggestions != nil {
		s = append(s, Schema{
			Name:        "suggestions.request",
			Description: "Propose follow-up edits for a document",
			Parameters: []SchemaField{
				{Name: "id", Type: "string", Description: "Document id", Required: true},
			},
		})
	}
	if r.Weather != nil {
		s = append(s, Schema{
			Name:        "weather.get",
			Description: "Get the current weather at a location",
			Parameters: []SchemaField{
				{Name: "latitude", Type: "number", Required: true},
				{Name: "longitude", Type: "number", Required: true},
			},
		})
	}
	return s
}

// Definitions returns provider-facing tool declarations for all enabled tools.
func (r *Registry) Definitions() []llm.ToolDefinition {
	schemas := r.Schemas()
	defs := make([]llm.ToolDefinition, 0, len(schemas))
	for _, s := range schemas {
		defs = append(defs, s.Definition())
	}
	return defs
}
