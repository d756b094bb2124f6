package toolexecutor

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

// Registry maps tool names to tools.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]*Tool
	logger zerolog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		tools:  make(map[string]*Tool),
		logger: logger.With().Str("component", "tool_registry").Logger(),
	}
}

// Register adds a tool. Names must be unique.
func (r *Registry) Register(tool *Tool) error {
	if tool == nil {
		return fmt.Errorf("tool cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[tool.Name()]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, tool.Name())
	}
	r.tools[tool.Name()] = tool

	r.logger.Info().
		Str("tool", tool.Name()).
		Str("risk_level", string(tool.RiskLevel())).
		Bool("requires_confirmation", tool.RequiresConfirmation()).
		Msg("Tool registered")

	return nil
}

// MustRegister registers tool and panics on error.
func (r *Registry) MustRegister(tool *Tool) {
	if err := r.Register(tool); err != nil {
		panic(err)
	}
}

// Unregister removes a tool by name.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.tools, name)
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (*Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return tool, nil
}

// List returns all tools sorted by name.
func (r *Registry) List() []*Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]*Tool, 0, len(r.tools))
	for _, tool := range r.tools {
		tools = append(tools, tool)
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i].Name() < tools[j].Name() })
	return tools
}

// Count returns the number of registered tools.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.tools)
}

// Execute looks up name and executes it.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]interface{}, execCtx ExecutionContext, opts ExecutionOptions) (*ExecutionResult, error) {
	tool, err := r.Get(name)
	if err != nil {
		r.logger.Error().Str("tool", name).Msg("Tool not found")
		return nil, err
	}
	return tool.Execute(ctx, args, execCtx, opts)
}
