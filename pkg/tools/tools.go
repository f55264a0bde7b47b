// Package tools exposes the calendar operations as a named tool surface and
// dispatches free-form natural-language requests onto it through a language
// model.
package tools

import (
	"context"
	"time"

	"github.com/convene-dev/convene/pkg/registry"
)

// ToolInfo describes a tool to callers and to the model. Parameters is a
// JSON Schema object.
type ToolInfo struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
}

// ToolResult is the outcome of one tool execution.
type ToolResult struct {
	Success       bool                   `json:"success"`
	Content       string                 `json:"content,omitempty"`
	Error         string                 `json:"error,omitempty"`
	ToolName      string                 `json:"tool_name"`
	ExecutionTime time.Duration          `json:"execution_time,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

// Tool is one named calendar operation.
type Tool interface {
	GetInfo() ToolInfo
	Execute(ctx context.Context, args map[string]interface{}) (ToolResult, error)
}

// Registry holds the tool catalog.
type Registry struct {
	*registry.BaseRegistry[Tool]
}

func NewRegistry() *Registry {
	return &Registry{BaseRegistry: registry.NewBaseRegistry[Tool]()}
}

// Catalog returns ToolInfo for every registered tool, name-ordered.
func (r *Registry) Catalog() []ToolInfo {
	names := r.List()
	infos := make([]ToolInfo, 0, len(names))
	for _, name := range names {
		if tool, ok := r.Get(name); ok {
			infos = append(infos, tool.GetInfo())
		}
	}
	return infos
}
