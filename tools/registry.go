// Package tools implements the calendar tool registry handed to the dialog
// engine. Tools receive JSON-encoded parameters and return JSON-encoded
// output, so the language model and the deterministic handlers share one
// contract.
package tools

import (
	"fmt"

	"github.com/hrygo/ajanda/dialog"
)

// Registry is the in-process tool catalog.
type Registry struct {
	order []string
	tools map[string]dialog.Tool
}

// NewRegistry creates a registry with the given tools.
func NewRegistry(ts ...dialog.Tool) *Registry {
	r := &Registry{tools: map[string]dialog.Tool{}}
	for _, t := range ts {
		r.Register(t)
	}
	return r
}

// Register adds a tool, replacing any previous tool of the same name.
func (r *Registry) Register(t dialog.Tool) {
	if _, exists := r.tools[t.Name()]; !exists {
		r.order = append(r.order, t.Name())
	}
	r.tools[t.Name()] = t
}

// Get returns the named tool.
func (r *Registry) Get(name string) (dialog.Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// ValidateCall checks a proposed call against the tool's schema: the tool
// must exist and every required parameter must be present.
func (r *Registry) ValidateCall(name string, params map[string]any) (bool, string) {
	t, ok := r.tools[name]
	if !ok {
		return false, fmt.Sprintf("unknown tool: %s", name)
	}
	required, _ := t.InputType()["required"].([]string)
	for _, field := range required {
		if _, present := params[field]; !present {
			return false, fmt.Sprintf("missing required parameter: %s", field)
		}
	}
	return true, ""
}

// AsLLMCatalog renders the registry as descriptors for the language model, in
// registration order.
func (r *Registry) AsLLMCatalog() []dialog.ToolDescriptor {
	catalog := make([]dialog.ToolDescriptor, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		catalog = append(catalog, dialog.ToolDescriptor{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.InputType(),
		})
	}
	return catalog
}
