package tools

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/inkwell-ai/inkwell/internal/frame"
	"github.com/inkwell-ai/inkwell/internal/llm"
	"github.com/inkwell-ai/inkwell/internal/llm/mock"
	"github.com/inkwell-ai/inkwell/internal/observability"
	"github.com/inkwell-ai/inkwell/internal/resilience"
	"github.com/inkwell-ai/inkwell/internal/stream"
)

type captureSink struct {
	frames []frame.Frame
}

func (s *captureSink) WriteFrame(f frame.Frame) error {
	s.frames = append(s.frames, f)
	return nil
}

func docModels(chunks ...llm.StreamChunk) *llm.Registry {
	models := llm.NewRegistry()
	models.RegisterProvider("mock", &mock.Provider{StreamChunks: chunks})
	models.RegisterModel("writer", llm.ModelRoute{Provider: "mock", Model: "writer-1"}, true)
	return models
}

func TestDocumentCreateStreamsAnnouncementThenContent(t *testing.T) {
	models := docModels(llm.StreamChunk{Content: "Hello "}, llm.StreamChunk{Content: "World"})
	tool := NewDocumentTool(NewDocumentStore(), models, "", nil, nil)

	sink := &captureSink{}
	mux := stream.New(sink, nil)

	result, err := tool.Create(context.Background(), "Report", "text", mux)
	require.NoError(t, err)

	id, _ := result["id"].(string)
	require.NotEmpty(t, id)
	require.Equal(t, "Report", result["title"])
	require.Equal(t, "text", result["kind"])

	types := make([]frame.Type, 0, len(sink.frames))
	for _, f := range sink.frames {
		types = append(types, f.Type)
	}
	require.Equal(t, []frame.Type{
		frame.TypeKind, frame.TypeID, frame.TypeTitle, frame.TypeClear,
		frame.TypeTextDelta, frame.TypeTextDelta,
	}, types)
	require.Equal(t, id, sink.frames[1].Text())
	require.Equal(t, "Hello ", sink.frames[4].Text())

	doc, ok := tool.Store().Get(id)
	require.True(t, ok)
	require.Equal(t, "Hello World", doc.Content)
}

func TestDocumentCreateDefaultsKind(t *testing.T) {
	tool := NewDocumentTool(NewDocumentStore(), docModels(llm.StreamChunk{Content: "x"}), "", nil, nil)

	sink := &captureSink{}
	result, err := tool.Create(context.Background(), "Notes", "", stream.New(sink, nil))
	require.NoError(t, err)
	require.Equal(t, "text", result["kind"])
	require.Equal(t, "text", sink.frames[0].Text())
}

func TestDocumentUpdateClearsAndRewrites(t *testing.T) {
	store := NewDocumentStore()
	store.Put(Document{ID: "doc-1", Title: "Report", Kind: "text", Content: "old"})
	tool := NewDocumentTool(store, docModels(llm.StreamChunk{Content: "new content"}), "", nil, nil)

	sink := &captureSink{}
	result, err := tool.Update(context.Background(), "doc-1", "rewrite it", stream.New(sink, nil))
	require.NoError(t, err)
	require.Equal(t, "doc-1", result["id"])

	// The clear frame precedes the replacement content.
	require.Equal(t, frame.TypeClear, sink.frames[3].Type)
	require.Equal(t, frame.TypeTextDelta, sink.frames[4].Type)

	doc, _ := store.Get("doc-1")
	require.Equal(t, "new content", doc.Content)
}

func TestDocumentUpdateMissing(t *testing.T) {
	tool := NewDocumentTool(NewDocumentStore(), docModels(), "", nil, nil)
	_, err := tool.Update(context.Background(), "nope", "x", stream.New(&captureSink{}, nil))
	require.Error(t, err)
}

func TestSuggestionsRequestParsesArray(t *testing.T) {
	store := NewDocumentStore()
	store.Put(Document{ID: "doc-1", Title: "Report", Kind: "text", Content: "body"})

	models := llm.NewRegistry()
	models.RegisterProvider("mock", &mock.Provider{
		ChatFn: func(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
			// Trailing comma: repairable, not valid JSON.
			return llm.ChatResponse{Message: llm.ChatMessage{
				Role:    llm.RoleAssistant,
				Content: `["add a summary", "fix the title",]`,
			}}, nil
		},
	})
	models.RegisterModel("writer", llm.ModelRoute{Provider: "mock"}, true)

	tool := NewSuggestionsTool(store, models, "", nil, nil)
	result, err := tool.Request(context.Background(), "doc-1")
	require.NoError(t, err)
	require.Equal(t, []string{"add a summary", "fix the title"}, result["suggestions"])
}

func TestDocumentGenerationCountsTowardBreakerAndMonitor(t *testing.T) {
	models := llm.NewRegistry()
	models.RegisterProvider("mock", &mock.Provider{
		StreamChunks: []llm.StreamChunk{{Content: "partial"}},
		StreamErr:    &llm.StatusError{Provider: "mock", Status: 502},
	})
	models.RegisterModel("writer", llm.ModelRoute{Provider: "mock", Model: "writer-1"}, true)

	breaker := resilience.NewBreaker(1, time.Hour)
	monitor := observability.NewMonitor()
	guard := resilience.NewExecutor(breaker, nil, nil, monitor, nil)
	tool := NewDocumentTool(NewDocumentStore(), models, "", guard, nil)

	_, err := tool.Create(context.Background(), "Report", "text", stream.New(&captureSink{}, nil))
	require.Error(t, err)
	require.Equal(t, resilience.StateOpen, breaker.State())

	snap := monitor.Snapshot()
	require.Equal(t, int64(1), snap.RequestCount)
	require.Equal(t, int64(1), snap.ErrorCount)
}

func TestDocumentCreateFailsFastWhileCircuitOpen(t *testing.T) {
	breaker := resilience.NewBreaker(1, time.Hour)
	breaker.RecordFailure()
	guard := resilience.NewExecutor(breaker, nil, nil, nil, nil)
	tool := NewDocumentTool(NewDocumentStore(), docModels(llm.StreamChunk{Content: "never"}), "", guard, nil)

	sink := &captureSink{}
	_, err := tool.Create(context.Background(), "Report", "text", stream.New(sink, nil))
	require.ErrorIs(t, err, resilience.ErrServiceDegraded)

	// Announcement frames precede admission; no content streamed, nothing stored.
	require.Len(t, sink.frames, 4)
	require.Zero(t, tool.Store().Len())
}

func TestSuggestionsRequestFailsFastWhileCircuitOpen(t *testing.T) {
	store := NewDocumentStore()
	store.Put(Document{ID: "doc-1", Kind: "text", Content: "body"})

	calls := 0
	models := llm.NewRegistry()
	models.RegisterProvider("mock", &mock.Provider{
		ChatFn: func(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
			calls++
			return llm.ChatResponse{}, nil
		},
	})
	models.RegisterModel("writer", llm.ModelRoute{Provider: "mock"}, true)

	breaker := resilience.NewBreaker(1, time.Hour)
	breaker.RecordFailure()
	tool := NewSuggestionsTool(store, models, "", resilience.NewExecutor(breaker, nil, nil, nil, nil), nil)

	_, err := tool.Request(context.Background(), "doc-1")
	require.ErrorIs(t, err, resilience.ErrServiceDegraded)
	require.Zero(t, calls)
}
