package interpreter

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/inkwell-ai/inkwell/internal/frame"
)

// Interpreter is a single-consumer state machine over a frame log. A cursor
// makes repeated Consume calls over an appended log idempotent: already-seen
// frames are never reprocessed.
type Interpreter struct {
	cursor   int
	artifact Artifact
	logger   *zap.Logger

	// OnFrame observes every accepted frame, in order; may be nil.
	OnFrame func(f frame.Frame)
}

// New creates an interpreter with an idle, empty artifact.
func New(logger *zap.Logger) *Interpreter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Interpreter{
		artifact: Artifact{Status: StatusIdle},
		logger:   logger,
	}
}

// Artifact returns the current reconstruction.
func (i *Interpreter) Artifact() Artifact {
	return i.artifact
}

// Cursor returns the number of frames consumed so far.
func (i *Interpreter) Cursor() int {
	return i.cursor
}

// Consume processes the unseen tail of the frame log.
func (i *Interpreter) Consume(log []frame.Frame) {
	for ; i.cursor < len(log); i.cursor++ {
		i.Apply(log[i.cursor])
	}
}

// Apply dispatches a single frame to the artifact state machine. A tool or
// lifecycle frame whose payload arrives string-encoded but unparseable is
// logged and skipped; subsequent frames still process.
func (i *Interpreter) Apply(f frame.Frame) {
	f, ok := i.normalize(f)
	if !ok {
		return
	}
	if i.OnFrame != nil {
		i.OnFrame(f)
	}

	switch f.Type {
	case frame.TypeID:
		i.artifact.DocumentID = f.Text()
		i.openArtifact()
	case frame.TypeTitle:
		i.artifact.Title = f.Text()
		i.openArtifact()
	case frame.TypeKind:
		i.artifact.Kind = f.Text()
		i.openArtifact()
	case frame.TypeToolStart:
		i.openArtifact()
	case frame.TypeClear:
		// Content resets; streaming status is unchanged.
		i.artifact.Content = ""
	case frame.TypeFinish, frame.TypeToolComplete, frame.TypeToolError:
		i.artifact.Status = StatusIdle
	default:
		if f.IsContentBearing() {
			i.artifact.Content += f.Text()
			i.artifact.Status = StatusStreaming
		}
	}
}

// openArtifact marks the artifact streaming and visible.
func (i *Interpreter) openArtifact() {
	i.artifact.Status = StatusStreaming
	i.artifact.Visible = true
}

// normalize parses string-encoded structured payloads on tool frames. The
// producer encodes payloads exactly once, but intermediaries re-encode; a
// payload that fails to parse drops only this frame.
func (i *Interpreter) normalize(f frame.Frame) (frame.Frame, bool) {
	if !isToolFrame(f.Type) || f.Data != nil {
		return f, true
	}
	s, ok := f.Content.(string)
	if !ok || !strings.HasPrefix(strings.TrimSpace(s), "{") {
		return f, true
	}
	var data map[string]interface{}
	if err := json.Unmarshal([]byte(s), &data); err != nil {
		i.logger.Warn("unparseable tool payload, skipping frame",
			zap.String("type", string(f.Type)), zap.Error(err))
		return frame.Frame{}, false
	}
	f.Data = data
	f.Content = nil
	return f, true
}

func isToolFrame(t frame.Type) bool {
	switch t {
	case frame.TypeToolStart, frame.TypeToolCall, frame.TypeToolResult,
		frame.TypeToolComplete, frame.TypeToolError:
		return true
	}
	return false
}

// ReadStream consumes newline-delimited frames from r until EOF or the
// sentinel. Droppable decode failures skip the line; anything else stops the
// read.
func (i *Interpreter) ReadStream(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		f, err := frame.Decode(scanner.Bytes())
		if err != nil {
			if frame.IsDecodeError(err) {
				i.logger.Warn("dropping malformed frame", zap.Error(err))
				continue
			}
			return err
		}
		i.Apply(f)
	}
	return scanner.Err()
}
