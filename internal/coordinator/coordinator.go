package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kaptinlin/jsonrepair"
	"go.uber.org/zap"

	"github.com/inkwell-ai/inkwell/internal/config"
	"github.com/inkwell-ai/inkwell/internal/frame"
	"github.com/inkwell-ai/inkwell/internal/llm"
	"github.com/inkwell-ai/inkwell/internal/observability"
	"github.com/inkwell-ai/inkwell/internal/resilience"
	"github.com/inkwell-ai/inkwell/internal/stream"
	"github.com/inkwell-ai/inkwell/internal/tools"
)

// Request is one user chat turn.
type Request struct {
	ConversationID string
	Message        string
	Model          string
	Visibility     string
}

// Runner is the transport-facing contract: run one turn, streaming frames
// through the multiplexer.
type Runner interface {
	Run(ctx context.Context, req Request, mux *stream.Multiplexer) error
	Ready() error
}

// Session stores per-conversation history.
type Session struct {
	ID      string
	History []llm.ChatMessage
}

// Coordinator drives the model/tool loop for chat turns. Tool calls within a
// turn execute sequentially; each tool writes through the same multiplexer as
// the outer loop, so frames interleave in execution order.
type Coordinator struct {
	registry *llm.Registry
	executor *resilience.Executor
	tools    *tools.Registry
	metrics  *observability.Metrics
	cfg      config.ChatConfig
	logger   *zap.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// New creates a coordinator. tools may be nil to disable tool calling.
func New(registry *llm.Registry, executor *resilience.Executor, toolReg *tools.Registry, metrics *observability.Metrics, cfg config.ChatConfig, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		registry: registry,
		executor: executor,
		tools:    toolReg,
		metrics:  metrics,
		cfg:      cfg,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// Ready reports whether the upstream model dependency is accepting calls.
func (c *Coordinator) Ready() error {
	return c.executor.Ready()
}

// Run executes one chat turn: announce the model route, loop generation and
// tool execution up to the step budget, then close the stream with a finish
// frame. A tool failure is contained in its tool-error frame; the turn
// continues.
func (c *Coordinator) Run(ctx context.Context, req Request, mux *stream.Multiplexer) error {
	if strings.TrimSpace(req.Message) == "" {
		return fmt.Errorf("message is required")
	}

	provider, route, err := c.registry.Resolve(req.Model)
	if err != nil {
		return err
	}

	if err := mux.WriteLifecycle(frame.TypeModelRouting, map[string]interface{}{
		"model":    route.Name,
		"provider": provider.Name(),
	}); err != nil {
		return err
	}

	session := c.ensureSession(req.ConversationID)
	userMsg := llm.ChatMessage{Role: llm.RoleUser, Content: req.Message}

	messages := make([]llm.ChatMessage, 0, len(session.History)+2)
	if c.cfg.SystemPrompt != "" {
		messages = append(messages, llm.ChatMessage{Role: llm.RoleSystem, Content: c.cfg.SystemPrompt})
	}
	messages = append(messages, c.history(session)...)
	messages = append(messages, userMsg)

	var toolDefs []llm.ToolDefinition
	if c.tools != nil {
		toolDefs = c.tools.Definitions()
	}
	// Turns that may trigger side effects are never served from cache.
	cacheable := len(toolDefs) == 0

	start := time.Now()
	maxSteps := c.cfg.MaxSteps
	if maxSteps <= 0 {
		maxSteps = 5
	}

	for step := 0; step < maxSteps; step++ {
		chatReq := llm.ChatRequest{
			Model:       route.Model,
			Messages:    messages,
			Tools:       toolDefs,
			MaxTokens:   c.cfg.MaxTokens,
			Temperature: pickTemperature(c.cfg.Temperature, route.Temperature),
		}

		key := resilience.Fingerprint(route.Name, messages, req.Visibility)
		resp, err := c.executor.Do(ctx, key, cacheable, func(ctx context.Context) (llm.ChatResponse, error) {
			return provider.Chat(ctx, chatReq)
		})
		if err != nil {
			kind := resilience.Classify(err)
			c.logger.Warn("model call failed",
				zap.String("conversation", session.ID),
				zap.String("kind", string(kind)),
				zap.Error(err))
			c.metrics.RecordChatRequest("error", time.Since(start))
			_ = mux.WriteLifecycle(frame.TypeFinish, map[string]interface{}{
				"reason": "error",
				"kind":   string(kind),
			})
			return err
		}

		if resp.Message.Content != "" {
			if err := c.emitText(resp.Message.Content, mux); err != nil {
				return err
			}
		}

		if len(resp.Message.ToolCalls) == 0 || step == maxSteps-1 {
			reason := resp.FinishReason
			if len(resp.Message.ToolCalls) > 0 {
				reason = "max_steps"
			}
			c.appendHistory(session, userMsg, llm.ChatMessage{Role: llm.RoleAssistant, Content: resp.Message.Content})
			c.metrics.RecordChatRequest(reason, time.Since(start))
			return mux.WriteLifecycle(frame.TypeFinish, map[string]interface{}{"reason": reason})
		}

		messages = append(messages, resp.Message)
		for _, call := range resp.Message.ToolCalls {
			messages = append(messages, c.runTool(ctx, call, mux))
		}
	}
	return nil
}

// runTool drives one tool invocation through its lifecycle and returns the
// tool result message for the conversation. Every exit path emits a terminal
// frame (tool-complete or tool-error) so the client state machine closes.
func (c *Coordinator) runTool(ctx context.Context, call llm.ToolCall, mux *stream.Multiplexer) llm.ChatMessage {
	name := call.Function.Name
	callID := call.ID
	if callID == "" {
		callID = uuid.NewString()
	}

	args, err := decodeArgs(call.Function.Arguments)
	if err == nil {
		err = tools.ValidateCall(c.tools, name, args)
	}
	if err != nil {
		c.logger.Warn("tool call rejected", zap.String("tool", name), zap.Error(err))
		c.metrics.RecordToolExecution(name, "rejected")
		_ = mux.WriteToolEvent(frame.TypeToolError, map[string]interface{}{
			"toolCallId": callID,
			"toolName":   name,
			"reason":     "invalid_arguments",
			"error":      err.Error(),
		})
		return toolResultMessage(callID, name, map[string]interface{}{"error": err.Error()})
	}

	_ = mux.WriteToolEvent(frame.TypeToolStart, map[string]interface{}{
		"toolCallId": callID,
		"toolName":   name,
		"args":       args,
	})

	result, err := c.tools.Execute(ctx, name, args, mux)
	if err != nil {
		c.logger.Warn("tool execution failed", zap.String("tool", name), zap.Error(err))
		c.metrics.RecordToolExecution(name, "failed")
		_ = mux.WriteToolEvent(frame.TypeToolError, map[string]interface{}{
			"toolCallId": callID,
			"toolName":   name,
			"reason":     "tool_execution_error",
			"error":      err.Error(),
		})
		return toolResultMessage(callID, name, map[string]interface{}{"error": err.Error()})
	}

	c.metrics.RecordToolExecution(name, "completed")
	_ = mux.WriteToolEvent(frame.TypeToolResult, map[string]interface{}{
		"toolCallId": callID,
		"toolName":   name,
		"result":     result,
	})
	_ = mux.WriteToolEvent(frame.TypeToolComplete, map[string]interface{}{
		"toolCallId": callID,
		"toolName":   name,
	})
	return toolResultMessage(callID, name, result)
}

// emitText streams assistant content as word-granularity text deltas.
func (c *Coordinator) emitText(content string, mux *stream.Multiplexer) error {
	for _, chunk := range strings.SplitAfter(content, " ") {
		if chunk == "" {
			continue
		}
		if err := mux.WriteTextDelta(chunk); err != nil {
			return err
		}
	}
	return nil
}

func toolResultMessage(callID, name string, result map[string]interface{}) llm.ChatMessage {
	b, err := json.Marshal(result)
	if err != nil {
		b = []byte(`{}`)
	}
	return llm.ChatMessage{
		Role:       llm.RoleTool,
		Name:       name,
		ToolCallID: callID,
		Content:    string(b),
	}
}

// decodeArgs parses tool call arguments, repairing sloppy provider JSON
// before rejecting.
func decodeArgs(raw json.RawMessage) (map[string]interface{}, error) {
	if len(raw) == 0 {
		return map[string]interface{}{}, nil
	}
	var args map[string]interface{}
	if err := json.Unmarshal(raw, &args); err == nil {
		return args, nil
	}
	fixed, err := jsonrepair.JSONRepair(string(raw))
	if err != nil {
		return nil, fmt.Errorf("malformed tool arguments: %w", err)
	}
	if err := json.Unmarshal([]byte(fixed), &args); err != nil {
		return nil, fmt.Errorf("malformed tool arguments: %w", err)
	}
	return args, nil
}

func (c *Coordinator) ensureSession(id string) *Session {
	c.mu.Lock()
	defer c.mu.Unlock()

	if id == "" {
		id = uuid.NewString()
	}
	if s, ok := c.sessions[id]; ok {
		return s
	}
	s := &Session{ID: id, History: make([]llm.ChatMessage, 0, 8)}
	c.sessions[id] = s
	return s
}

func (c *Coordinator) history(s *Session) []llm.ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]llm.ChatMessage, len(s.History))
	copy(out, s.History)
	return out
}

func (c *Coordinator) appendHistory(s *Session, userMsg, assistantMsg llm.ChatMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s.History = append(s.History, userMsg, assistantMsg)
}

func pickTemperature(cfgTemp, routeTemp float64) float64 {
	if cfgTemp > 0 {
		return cfgTemp
	}
	if routeTemp > 0 {
		return routeTemp
	}
	return 0.2
}

var _ Runner = (*Coordinator)(nil)
