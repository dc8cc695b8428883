package stream

import (
	"io"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/inkwell-ai/inkwell/internal/frame"
)

// Emitter is the write capability handed to tool bodies. A tool that streams
// its own generated content must receive the same underlying multiplexer as
// the outer response loop; constructing a second, disconnected writer for a
// tool sub-stream silently discards its output.
type Emitter interface {
	WriteTextDelta(content string) error
	WriteToolEvent(t frame.Type, data map[string]interface{}) error
	WriteLifecycle(t frame.Type, content interface{}) error
}

// Sink delivers an encoded frame to the transport.
type Sink interface {
	WriteFrame(f frame.Frame) error
}

// Multiplexer serializes frame emission from the model-token loop and tool
// bodies onto a single ordered sink. Frames leave in the exact order the
// writes happen; the mutex is the only ordering mechanism and the only one
// needed because tool execution is synchronous with the outer loop.
type Multiplexer struct {
	mu     sync.Mutex
	sink   Sink
	logger *zap.Logger

	err    error // sticky first write error
	frames int64
}

// New builds a multiplexer over a sink.
func New(sink Sink, logger *zap.Logger) *Multiplexer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Multiplexer{sink: sink, logger: logger}
}

// WriteTextDelta emits a text-delta frame.
func (m *Multiplexer) WriteTextDelta(content string) error {
	return m.write(frame.Frame{Type: frame.TypeTextDelta, Content: content})
}

// WriteToolEvent emits a tool lifecycle frame (tool-start, tool-call,
// tool-result, tool-complete, tool-error).
func (m *Multiplexer) WriteToolEvent(t frame.Type, data map[string]interface{}) error {
	return m.write(frame.Frame{Type: t, Data: data})
}

// WriteLifecycle emits id/title/kind/clear/finish/model-routing frames.
// Content may be a plain string or a structured value; it is serialized
// exactly once by the codec.
func (m *Multiplexer) WriteLifecycle(t frame.Type, content interface{}) error {
	f := frame.Frame{Type: t}
	if data, ok := content.(map[string]interface{}); ok {
		f.Data = data
	} else {
		f.Content = content
	}
	return m.write(f)
}

// Frames returns the number of frames successfully written.
func (m *Multiplexer) Frames() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frames
}

// Err returns the sticky write error, if any.
func (m *Multiplexer) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

func (m *Multiplexer) write(f frame.Frame) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return m.err
	}
	if err := m.sink.WriteFrame(f); err != nil {
		m.err = err
		m.logger.Warn("frame write failed", zap.String("type", string(f.Type)), zap.Error(err))
		return err
	}
	m.frames++
	return nil
}

var _ Emitter = (*Multiplexer)(nil)

// WriterSink encodes frames as newline-delimited JSON onto an io.Writer,
// flushing after every frame when the writer supports it.
type WriterSink struct {
	w     io.Writer
	flush func()
}

// NewWriterSink wraps a writer; http.ResponseWriter flushers are detected.
func NewWriterSink(w io.Writer) *WriterSink {
	s := &WriterSink{w: w}
	if f, ok := w.(http.Flusher); ok {
		s.flush = f.Flush
	}
	return s
}

// WriteFrame encodes and writes one frame.
func (s *WriterSink) WriteFrame(f frame.Frame) error {
	b, err := frame.Encode(f)
	if err != nil {
		return err
	}
	if _, err := s.w.Write(b); err != nil {
		return err
	}
	if s.flush != nil {
		s.flush()
	}
	return nil
}
