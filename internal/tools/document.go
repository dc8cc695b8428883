package tools

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/inkwell-ai/inkwell/internal/frame"
	"github.com/inkwell-ai/inkwell/internal/llm"
	"github.com/inkwell-ai/inkwell/internal/resilience"
	"github.com/inkwell-ai/inkwell/internal/stream"
)

// Document is an artifact produced by the document tools.
type Document struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Kind      string    `json:"kind"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DocumentStore holds documents in memory, keyed by id.
type DocumentStore struct {
	mu   sync.RWMutex
	docs map[string]Document
}

// NewDocumentStore creates an empty store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{docs: make(map[string]Document)}
}

// Get returns a document by id.
func (s *DocumentStore) Get(id string) (Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.docs[id]
	return d, ok
}

// Put stores a document, overwriting any previous version.
func (s *DocumentStore) Put(d Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[d.ID] = d
}

// Len returns the number of stored documents.
func (s *DocumentStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// DocumentTool creates and rewrites document artifacts. Content is generated
// by its own model call and streamed to the client through the shared
// emitter, interleaved with the outer response.
type DocumentTool struct {
	store  *DocumentStore
	models *llm.Registry
	model  string
	guard  *resilience.Executor
	logger *zap.Logger
}

// NewDocumentTool builds the tool. model is the logical route used for
// document generation; empty selects the registry default. guard admits the
// generation calls; nil disables admission.
func NewDocumentTool(store *DocumentStore, models *llm.Registry, model string, guard *resilience.Executor, logger *zap.Logger) *DocumentTool {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentTool{store: store, models: models, model: model, guard: guard, logger: logger}
}

// Store exposes the backing store.
func (t *DocumentTool) Store() *DocumentStore {
	return t.store
}

// Create generates a new document and streams it. The artifact announcement
// frames (kind, id, title, clear) precede the content deltas so the client
// interpreter can open the artifact before content arrives.
func (t *DocumentTool) Create(ctx context.Context, title, kind string, em stream.Emitter) (map[string]interface{}, error) {
	if kind == "" {
		kind = "text"
	}
	id := uuid.NewString()

	if err := announce(em, id, title, kind); err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf("Write a %s document titled %q. Respond with the document content only.", kind, title)
	content, err := t.generate(ctx, prompt, em)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	t.store.Put(Document{ID: id, Title: title, Kind: kind, Content: content, CreatedAt: now, UpdatedAt: now})
	t.logger.Info("document created", zap.String("id", id), zap.String("kind", kind))

	return map[string]interface{}{"id": id, "title": title, "kind": kind}, nil
}

// Update rewrites an existing document per the change description. The clear
// frame resets the client artifact before the new content streams.
func (t *DocumentTool) Update(ctx context.Context, id, description string, em stream.Emitter) (map[string]interface{}, error) {
	doc, ok := t.store.Get(id)
	if !ok {
		return nil, fmt.Errorf("document %q not found", id)
	}

	if err := announce(em, doc.ID, doc.Title, doc.Kind); err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf("Rewrite the following %s document applying this change: %s\n\n%s\n\nRespond with the full updated content only.",
		doc.Kind, description, doc.Content)
	content, err := t.generate(ctx, prompt, em)
	if err != nil {
		return nil, err
	}

	doc.Content = content
	doc.UpdatedAt = time.Now()
	t.store.Put(doc)
	t.logger.Info("document updated", zap.String("id", id))

	return map[string]interface{}{"id": doc.ID, "title": doc.Title, "kind": doc.Kind}, nil
}

func announce(em stream.Emitter, id, title, kind string) error {
	if err := em.WriteLifecycle(frame.TypeKind, kind); err != nil {
		return err
	}
	if err := em.WriteLifecycle(frame.TypeID, id); err != nil {
		return err
	}
	if err := em.WriteLifecycle(frame.TypeTitle, title); err != nil {
		return err
	}
	return em.WriteLifecycle(frame.TypeClear, "")
}

// generate streams model output token by token through em while accumulating
// the full content for the store. The call goes through the guard so it
// counts toward the breaker and the monitor like every other upstream call.
func (t *DocumentTool) generate(ctx context.Context, prompt string, em stream.Emitter) (string, error) {
	provider, route, err := t.models.Resolve(t.model)
	if err != nil {
		return "", err
	}

	record, err := t.guard.Admit(ctx)
	if err != nil {
		return "", err
	}

	req := llm.ChatRequest{
		Model:       route.Model,
		Messages:    []llm.ChatMessage{{Role: llm.RoleUser, Content: prompt}},
		MaxTokens:   route.MaxTokens,
		Temperature: route.Temperature,
		Stream:      true,
	}

	var b strings.Builder
	chunks, errs := provider.Stream(ctx, req)
	for chunk := range chunks {
		if chunk.Content == "" {
			continue
		}
		b.WriteString(chunk.Content)
		if werr := em.WriteTextDelta(chunk.Content); werr != nil {
			// Client-side write failure, not an upstream outcome.
			record(nil)
			return "", werr
		}
	}
	if err := <-errs; err != nil {
		record(err)
		return "", err
	}
	record(nil)
	return b.String(), nil
}
