package frame

// Type identifies the kind of a stream frame.
type Type string

const (
	TypeTextDelta    Type = "text-delta"
	TypeToolStart    Type = "tool-start"
	TypeToolCall     Type = "tool-call"
	TypeToolResult   Type = "tool-result"
	TypeToolComplete Type = "tool-complete"
	TypeToolError    Type = "tool-error"
	TypeClear        Type = "clear"
	TypeFinish       Type = "finish"
	TypeTitle        Type = "title"
	TypeID           Type = "id"
	TypeKind         Type = "kind"
	TypeModelRouting Type = "model-routing"
)

// Frame is the atomic unit of the streaming protocol. Content carries the
// payload for text and string-valued lifecycle frames; Data carries structured
// payloads for tool and routing frames. A payload is JSON-encoded exactly once
// by Encode; Decode absorbs payloads that arrive string-encoded anyway.
type Frame struct {
	Type    Type                   `json:"type"`
	Content interface{}            `json:"content,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

// Text returns the content as a string when it is one.
func (f Frame) Text() string {
	s, _ := f.Content.(string)
	return s
}

// IsContentBearing reports whether the frame contributes to artifact content
// accumulation. Kind-specific delta types (code-delta and friends) count too.
func (f Frame) IsContentBearing() bool {
	if f.Type == TypeTextDelta {
		return true
	}
	t := string(f.Type)
	return len(t) > len("-delta") && t[len(t)-len("-delta"):] == "-delta"
}

// IsLifecycle reports whether the frame type carries a structured or
// string-valued payload rather than raw text.
func (f Frame) IsLifecycle() bool {
	return f.Type != TypeTextDelta
}
