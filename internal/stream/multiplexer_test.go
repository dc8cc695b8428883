package stream

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/inkwell-ai/inkwell/internal/frame"
)

func TestMultiplexerWritesOrderedFrames(t *testing.T) {
	var buf bytes.Buffer
	mux := New(NewWriterSink(&buf), nil)

	require.NoError(t, mux.WriteLifecycle(frame.TypeID, "doc-1"))
	require.NoError(t, mux.WriteToolEvent(frame.TypeToolStart, map[string]interface{}{"name": "document.create"}))
	require.NoError(t, mux.WriteTextDelta("Hello "))
	require.NoError(t, mux.WriteTextDelta("World"))
	require.NoError(t, mux.WriteToolEvent(frame.TypeToolComplete, map[string]interface{}{"name": "document.create"}))
	require.NoError(t, mux.WriteLifecycle(frame.TypeFinish, nil))

	var types []frame.Type
	scanner := bufio.NewScanner(&buf)
	for scanner.Scan() {
		f, err := frame.Decode(scanner.Bytes())
		require.NoError(t, err)
		types = append(types, f.Type)
	}
	require.Equal(t, []frame.Type{
		frame.TypeID, frame.TypeToolStart, frame.TypeTextDelta,
		frame.TypeTextDelta, frame.TypeToolComplete, frame.TypeFinish,
	}, types)
	require.Equal(t, int64(6), mux.Frames())
}

func TestSharedMultiplexerInterleavesToolOutput(t *testing.T) {
	var buf bytes.Buffer
	mux := New(NewWriterSink(&buf), nil)

	// The tool body writes through the same emitter it was handed.
	toolBody := func(em Emitter) {
		_ = em.WriteTextDelta("generated ")
		_ = em.WriteTextDelta("content")
	}

	require.NoError(t, mux.WriteTextDelta("before "))
	require.NoError(t, mux.WriteToolEvent(frame.TypeToolStart, map[string]interface{}{"name": "document.create"}))
	toolBody(mux)
	require.NoError(t, mux.WriteToolEvent(frame.TypeToolComplete, nil))
	require.NoError(t, mux.WriteTextDelta(" after"))

	var content strings.Builder
	scanner := bufio.NewScanner(&buf)
	for scanner.Scan() {
		f, err := frame.Decode(scanner.Bytes())
		require.NoError(t, err)
		if f.Type == frame.TypeTextDelta {
			content.WriteString(f.Text())
		}
	}
	require.Equal(t, "before generated content after", content.String())
}

type failingSink struct{ calls int }

func (s *failingSink) WriteFrame(frame.Frame) error {
	s.calls++
	return fmt.Errorf("broken pipe")
}

func TestMultiplexerErrorIsSticky(t *testing.T) {
	sink := &failingSink{}
	mux := New(sink, nil)

	require.Error(t, mux.WriteTextDelta("a"))
	require.Error(t, mux.WriteTextDelta("b"))
	require.Error(t, mux.Err())
	// After the first failure no further sink writes are attempted.
	require.Equal(t, 1, sink.calls)
	require.Equal(t, int64(0), mux.Frames())
}

func TestMultiplexerLifecycleStructuredContent(t *testing.T) {
	var buf bytes.Buffer
	mux := New(NewWriterSink(&buf), nil)

	require.NoError(t, mux.WriteLifecycle(frame.TypeModelRouting, map[string]interface{}{
		"provider": "openai", "model": "gpt-4o",
	}))

	f, err := frame.Decode(buf.Bytes())
	require.NoError(t, err)
	require.Equal(t, frame.TypeModelRouting, f.Type)
	require.Equal(t, "gpt-4o", f.Data["model"])
}
