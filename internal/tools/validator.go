package tools

import (
	"errors"
	"fmt"
)

// ValidateCall checks tool call arguments against the declared schema before
// anything executes. A validation failure must surface as a tool-error frame
// without running the tool body.
func ValidateCall(reg *Registry, name string, args map[string]interface{}) error {
	if reg == nil {
		return errors.New("tool registry unavailable")
	}
	schema, ok := reg.Schema(name)
	if !ok {
		return fmt.Errorf("unknown tool %q", name)
	}
	if err := validateAgainstSchema(schema, args); err != nil {
		return err
	}
	switch name {
	case "document.update", "suggestions.request":
		if reg.Documents == nil {
			return fmt.Errorf("document tools disabled")
		}
		if id, _ := args["id"].(string); id != "" {
			if _, ok := reg.Documents.store.Get(id); !ok {
				return fmt.Errorf("document %q not found", id)
			}
		}
	case "weather.get":
		lat, _ := toFloat(args["latitude"])
		lon, _ := toFloat(args["longitude"])
		if lat < -90 || lat > 90 {
			return fmt.Errorf("latitude out of range")
		}
		if lon < -180 || lon > 180 {
			return fmt.Errorf("longitude out of range")
		}
	}
	return nil
}

func validateAgainstSchema(schema Schema, args map[string]interface{}) error {
	for _, field := range schema.Parameters {
		val, exists := args[field.Name]
		if field.Required && !exists {
			return fmt.Errorf("%s is required", field.Name)
		}
		if !exists {
			continue
		}
		switch field.Type {
		case "string":
			if _, ok := val.(string); !ok {
				return fmt.Errorf("%s must be string", field.Name)
			}
		case "boolean":
			if _, ok := val.(bool); !ok {
				return fmt.Errorf("%s must be boolean", field.Name)
			}
		case "array":
			if _, ok := val.([]interface{}); !ok {
				return fmt.Errorf("%s must be array", field.Name)
			}
		case "number", "integer":
			if _, ok := toFloat(val); !ok {
				return fmt.Errorf("%s must be number", field.Name)
			}
		}
		if len(field.Enum) > 0 {
			s, _ := val.(string)
			valid := false
			for _, allowed := range field.Enum {
				if s == allowed {
					valid = true
					break
				}
			}
			if !valid {
				return fmt.Errorf("%s must be one of %v", field.Name, field.Enum)
			}
		}
	}
	return nil
}
