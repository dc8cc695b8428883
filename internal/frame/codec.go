package frame

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// Sentinel is the optional terminal marker some producers append. Stream
// closure is an equally valid termination; consumers must not require it.
const Sentinel = "[DONE]"

// DecodeError marks a frame that failed to decode. Callers drop the frame
// with a warning and continue; it is never fatal to the stream.
type DecodeError struct {
	Line string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode frame: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsDecodeError reports whether err is a droppable frame decode failure.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

// Encode serializes a frame as a single newline-delimited JSON record.
// The payload is encoded exactly once; callers must never pre-serialize
// Content or Data themselves.
func Encode(f Frame) ([]byte, error) {
	if f.Type == "" {
		return nil, fmt.Errorf("encode frame: empty type")
	}
	b, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return append(b, '\n'), nil
}

// Decode parses one wire line into a Frame. Both co-existing encodings are
// accepted: the structured JSON record and the legacy numeric-prefixed text
// form ("1:<text>"). The sentinel marker decodes to a finish frame. Malformed
// tool/lifecycle payloads yield a *DecodeError so the caller can drop the
// frame and keep reading.
func Decode(line []byte) (Frame, error) {
	raw := strings.TrimSpace(string(line))
	if raw == "" {
		return Frame{}, &DecodeError{Line: raw, Err: fmt.Errorf("empty line")}
	}
	if raw == Sentinel {
		return Frame{Type: TypeFinish}, nil
	}
	if f, ok := decodeLegacy(raw); ok {
		return f, nil
	}

	var f Frame
	if err := unmarshalRepaired([]byte(raw), &f); err != nil {
		return Frame{}, &DecodeError{Line: raw, Err: err}
	}
	if f.Type == "" {
		return Frame{}, &DecodeError{Line: raw, Err: fmt.Errorf("missing frame type")}
	}
	return Normalize(f), nil
}

// decodeLegacy handles the "1:<text>" raw text-delta form: everything after
// the first colon is the content.
func decodeLegacy(raw string) (Frame, bool) {
	idx := strings.IndexByte(raw, ':')
	if idx <= 0 {
		return Frame{}, false
	}
	prefix := raw[:idx]
	for _, c := range prefix {
		if c < '0' || c > '9' {
			return Frame{}, false
		}
	}
	return Frame{Type: TypeTextDelta, Content: raw[idx+1:]}, true
}

// Normalize converts a string-encoded structured payload back into its
// structured form. Producers on different code paths (main model stream vs.
// tool sub-stream) do not share a serialization point, so this is the single
// place where the double-encoding class of bug is absorbed. Plain string
// payloads (titles, ids) pass through untouched.
func Normalize(f Frame) Frame {
	if !f.IsLifecycle() {
		return f
	}
	s, ok := f.Content.(string)
	if !ok {
		return f
	}
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "{") && !strings.HasPrefix(trimmed, "[") {
		return f
	}
	var v interface{}
	if err := unmarshalRepaired([]byte(trimmed), &v); err != nil {
		return f
	}
	if m, ok := v.(map[string]interface{}); ok && f.Data == nil {
		f.Data = m
		f.Content = nil
		return f
	}
	f.Content = v
	return f
}

// unmarshalRepaired unmarshals JSON, attempting a jsonrepair pass when the
// input is syntactically broken before giving up.
func unmarshalRepaired(data []byte, v interface{}) error {
	err := json.Unmarshal(data, v)
	if err == nil {
		return nil
	}
	if _, ok := err.(*json.SyntaxError); !ok {
		return err
	}
	fixed, repairErr := jsonrepair.JSONRepair(string(data))
	if repairErr != nil {
		return err
	}
	return json.Unmarshal([]byte(fixed), v)
}
