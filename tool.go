package discogs

import (
	"context"
	"encoding/json"
	"strings"
)

// Tool is a capability exposed to the model for function calling.
// One Tool may serve several named functions (Definitions returns all).
type Tool interface {
	// Definitions lists the functions this tool serves.
	Definitions() []ToolDefinition

	// Execute runs one named function. User-visible failures belong in
	// ToolResult.Error; the error return is for infrastructure problems
	// (the loop aborts on it).
	Execute(ctx context.Context, name string, args json.RawMessage) (ToolResult, error)
}

// ToolRegistry routes tool calls by function name.
type ToolRegistry struct {
	tools map[string]Tool
	order []string
}

// NewToolRegistry creates an empty registry.
func NewToolRegistry(tools ...Tool) *ToolRegistry {
	r := &ToolRegistry{tools: make(map[string]Tool)}
	for _, t := range tools {
		r.Add(t)
	}
	return r
}

// Add registers every function the tool defines. Later registrations win
// on name collision.
func (r *ToolRegistry) Add(t Tool) {
	for _, def := range t.Definitions() {
		if _, exists := r.tools[def.Name]; !exists {
			r.order = append(r.order, def.Name)
		}
		r.tools[def.Name] = t
	}
}

// AllDefinitions returns definitions in registration order, for attaching
// to a ChatRequest.
func (r *ToolRegistry) AllDefinitions() []ToolDefinition {
	defs := make([]ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		for _, def := range r.tools[name].Definitions() {
			if def.Name == name {
				defs = append(defs, def)
			}
		}
	}
	return defs
}

// Execute dispatches one call. Some models qualify tool names with a
// namespace prefix ("functions:web_research"); the prefix is stripped
// before lookup. An unknown name is reported to the model as a result
// string, not an error, so the conversation can continue.
func (r *ToolRegistry) Execute(ctx context.Context, name string, args json.RawMessage) (ToolResult, error) {
	lookup := name
	if i := strings.LastIndex(lookup, ":"); i >= 0 {
		lookup = lookup[i+1:]
	}
	t, ok := r.tools[lookup]
	if !ok {
		return ToolResult{Error: "Error: Tool " + name + " not found."}, nil
	}
	return t.Execute(ctx, lookup, args)
}
