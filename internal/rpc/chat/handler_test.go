package chat

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/inkwell-ai/inkwell/internal/coordinator"
	"github.com/inkwell-ai/inkwell/internal/frame"
	"github.com/inkwell-ai/inkwell/internal/observability"
	"github.com/inkwell-ai/inkwell/internal/resilience"
	"github.com/inkwell-ai/inkwell/internal/stream"
)

type fakeRunner struct {
	readyErr error
	runErr   error
	lastReq  coordinator.Request
	frames   []frame.Frame
}

func (f *fakeRunner) Ready() error {
	return f.readyErr
}

func (f *fakeRunner) Run(ctx context.Context, req coordinator.Request, mux *stream.Multiplexer) error {
	f.lastReq = req
	for _, fr := range f.frames {
		switch {
		case fr.Type == frame.TypeTextDelta:
			if err := mux.WriteTextDelta(fr.Text()); err != nil {
				return err
			}
		case fr.Data != nil:
			if err := mux.WriteToolEvent(fr.Type, fr.Data); err != nil {
				return err
			}
		default:
			if err := mux.WriteLifecycle(fr.Type, fr.Content); err != nil {
				return err
			}
		}
	}
	return f.runErr
}

type denyAuth struct{}

func (denyAuth) Authenticate(r *http.Request) error {
	return errors.New("no token")
}

func postChat(t *testing.T, h *Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHandlerStreamsFrames(t *testing.T) {
	runner := &fakeRunner{frames: []frame.Frame{
		{Type: frame.TypeTextDelta, Content: "Hello "},
		{Type: frame.TypeTextDelta, Content: "World"},
		{Type: frame.TypeFinish, Data: map[string]interface{}{"reason": "stop"}},
	}}
	h := NewHandler(runner, nil, observability.NewMetrics(), nil)

	w := postChat(t, h, `{"conversationId": "conv-1", "message": "hi", "modelId": "chat", "visibility": "private"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "application/x-ndjson", w.Header().Get("Content-Type"))

	require.Equal(t, "conv-1", runner.lastReq.ConversationID)
	require.Equal(t, "chat", runner.lastReq.Model)
	require.Equal(t, "private", runner.lastReq.Visibility)

	var decoded []frame.Frame
	scanner := bufio.NewScanner(w.Body)
	for scanner.Scan() {
		f, err := frame.Decode(scanner.Bytes())
		require.NoError(t, err)
		decoded = append(decoded, f)
	}
	require.Len(t, decoded, 3)
	require.Equal(t, "Hello ", decoded[0].Text())
	require.Equal(t, frame.TypeFinish, decoded[2].Type)
	require.Equal(t, "stop", decoded[2].Data["reason"])
}

func TestHandlerServiceDegraded(t *testing.T) {
	runner := &fakeRunner{readyErr: resilience.ErrServiceDegraded}
	h := NewHandler(runner, nil, observability.NewMetrics(), nil)

	w := postChat(t, h, `{"message": "hi"}`)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHandlerUnauthenticated(t *testing.T) {
	h := NewHandler(&fakeRunner{}, denyAuth{}, observability.NewMetrics(), nil)

	w := postChat(t, h, `{"message": "hi"}`)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHandlerRejectsBadRequests(t *testing.T) {
	h := NewHandler(&fakeRunner{}, nil, observability.NewMetrics(), nil)

	req := httptest.NewRequest(http.MethodGet, "/chat", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusMethodNotAllowed, w.Code)

	w = postChat(t, h, `{not json`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = postChat(t, h, `{"message": ""}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandlerContainsRunnerFailureMidStream(t *testing.T) {
	runner := &fakeRunner{
		frames: []frame.Frame{{Type: frame.TypeTextDelta, Content: "partial"}},
		runErr: errors.New("upstream exploded"),
	}
	h := NewHandler(runner, nil, observability.NewMetrics(), nil)

	w := postChat(t, h, `{"message": "hi"}`)
	// Status already committed; the body carries what was streamed.
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, strings.Contains(w.Body.String(), "partial"))
}
