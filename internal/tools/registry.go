// Package tools defines the invocable tool handlers and their registry.
package tools

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/rotisserie/eris"
)

// Handler executes a named tool against raw JSON arguments and returns the
// serialized result content.
type Handler interface {
	Name() string
	Description() string
	Call(ctx context.Context, args json.RawMessage) (string, error)
}

// Registry holds the available tool handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register adds a handler; duplicate names are rejected.
func (r *Registry) Register(h Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[h.Name()]; exists {
		return eris.Errorf("tools: duplicate tool %q", h.Name())
	}
	r.handlers[h.Name()] = h
	return nil
}

// Get returns the handler for name.
func (r *Registry) Get(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

// List returns all handlers sorted by name.
func (r *Registry) List() []Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Handler, 0, len(r.handlers))
	for _, h := range r.handlers {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Default locale applied when a tool call omits location or language.
const (
	DefaultLocation = "United States"
	DefaultLanguage = "en"
)

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

// encodeResult renders a tool result payload as indented JSON.
func encodeResult(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", eris.Wrap(err, "tools: encode result")
	}
	return string(data), nil
}
