package chat

import (
	"context"
	"errors"
	"net/http"

	"github.com/bufbuild/connect-go"
	"go.uber.org/zap"

	"github.com/inkwell-ai/inkwell/internal/coordinator"
	"github.com/inkwell-ai/inkwell/internal/frame"
	"github.com/inkwell-ai/inkwell/internal/observability"
	"github.com/inkwell-ai/inkwell/internal/resilience"
	"github.com/inkwell-ai/inkwell/internal/rpc"
	"github.com/inkwell-ai/inkwell/internal/rpc/connectjson"
	"github.com/inkwell-ai/inkwell/internal/stream"
)

const ConnectChatProcedure = "/connect.chat.v1.ChatService/Chat"

// NewConnectHandler builds a Connect bidi stream handler for Chat. The client
// sends the chat turn first and may send a cancel message at any time.
func NewConnectHandler(runner coordinator.Runner, metrics *observability.Metrics, logger *zap.Logger) (string, http.Handler) {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &connectChatHandler{runner: runner, metrics: metrics, logger: logger}
	return ConnectChatProcedure, connect.NewBidiStreamHandler(ConnectChatProcedure, h.handle, connect.WithCodec(connectjson.Codec{}))
}

type connectChatHandler struct {
	runner  coordinator.Runner
	metrics *observability.Metrics
	logger  *zap.Logger
}

func (h *connectChatHandler) handle(ctx context.Context, bidi *connect.BidiStream[rpc.ChatStreamRequest, frame.Frame]) error {
	h.metrics.IncActiveSessions("connect")
	defer h.metrics.DecActiveSessions("connect")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	first, err := bidi.Receive()
	if err != nil {
		h.metrics.RecordTransportError("connect", "receive_first")
		return err
	}
	if first == nil || first.Chat == nil {
		h.metrics.RecordTransportError("connect", "missing_chat")
		return connect.NewError(connect.CodeInvalidArgument, errors.New("first message must include chat payload"))
	}

	if err := h.runner.Ready(); err != nil {
		if errors.Is(err, resilience.ErrServiceDegraded) {
			return connect.NewError(connect.CodeUnavailable, err)
		}
		return connect.NewError(connect.CodeInternal, err)
	}

	// Listen for cancellation messages from the client.
	go func() {
		for {
			msg, recvErr := bidi.Receive()
			if recvErr != nil {
				if !errors.Is(recvErr, context.Canceled) {
					h.metrics.RecordTransportError("connect", "receive_stream")
				}
				cancel()
				return
			}
			if msg != nil && msg.Cancel {
				cancel()
				return
			}
		}
	}()

	sink := observedSink{sink: bidiSink{bidi: bidi}, metrics: h.metrics}
	mux := stream.New(sink, h.logger)

	req := coordinator.Request{
		ConversationID: first.Chat.ConversationID,
		Message:        first.Chat.Message,
		Model:          first.Chat.ModelID,
		Visibility:     first.Chat.Visibility,
	}
	if err := h.runner.Run(ctx, req, mux); err != nil {
		h.metrics.RecordTransportError("connect", "runner_error")
		if mux.Frames() == 0 {
			return connect.NewError(connect.CodeInternal, err)
		}
		// Failure already travelled in-stream as a finish frame.
		h.logger.Warn("chat turn failed", zap.Error(err))
	}
	return nil
}

// bidiSink adapts the Connect send side to the multiplexer sink.
type bidiSink struct {
	bidi *connect.BidiStream[rpc.ChatStreamRequest, frame.Frame]
}

func (s bidiSink) WriteFrame(f frame.Frame) error {
	return s.bidi.Send(&f)
}
