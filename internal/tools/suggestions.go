package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kaptinlin/jsonrepair"
	"go.uber.org/zap"

	"github.com/inkwell-ai/inkwell/internal/llm"
	"github.com/inkwell-ai/inkwell/internal/resilience"
)

// SuggestionsTool asks the model for follow-up edit suggestions on a document.
type SuggestionsTool struct {
	store  *DocumentStore
	models *llm.Registry
	model  string
	guard  *resilience.Executor
	logger *zap.Logger
}

// NewSuggestionsTool builds the tool over a shared document store. guard
// admits the model call; nil disables admission.
func NewSuggestionsTool(store *DocumentStore, models *llm.Registry, model string, guard *resilience.Executor, logger *zap.Logger) *SuggestionsTool {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SuggestionsTool{store: store, models: models, model: model, guard: guard, logger: logger}
}

// Request returns up to three improvement suggestions for the document.
func (t *SuggestionsTool) Request(ctx context.Context, id string) (map[string]interface{}, error) {
	doc, ok := t.store.Get(id)
	if !ok {
		return nil, fmt.Errorf("document %q not found", id)
	}

	provider, route, err := t.models.Resolve(t.model)
	if err != nil {
		return nil, err
	}

	record, err := t.guard.Admit(ctx)
	if err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf("Suggest up to three concrete improvements for the following %s document. Respond with a JSON array of strings, nothing else.\n\n%s",
		doc.Kind, doc.Content)
	resp, err := provider.Chat(ctx, llm.ChatRequest{
		Model:       route.Model,
		Messages:    []llm.ChatMessage{{Role: llm.RoleUser, Content: prompt}},
		MaxTokens:   route.MaxTokens,
		Temperature: route.Temperature,
	})
	record(err)
	if err != nil {
		return nil, err
	}

	suggestions, err := parseSuggestions(resp.Message.Content)
	if err != nil {
		t.logger.Warn("unparseable suggestions payload", zap.Error(err))
		// The raw text is still useful to the model as a tool result.
		return map[string]interface{}{"id": id, "suggestions": []string{resp.Message.Content}}, nil
	}
	return map[string]interface{}{"id": id, "suggestions": suggestions}, nil
}

// parseSuggestions extracts a string array from the model reply, repairing
// sloppy JSON (markdown fences, trailing commas) before giving up.
func parseSuggestions(raw string) ([]string, error) {
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err == nil {
		return out, nil
	}
	repaired, err := jsonrepair.JSONRepair(raw)
	if err != nil {
		return nil, fmt.Errorf("repair suggestions: %w", err)
	}
	if err := json.Unmarshal([]byte(repaired), &out); err != nil {
		return nil, fmt.Errorf("decode suggestions: %w", err)
	}
	return out, nil
}
