package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"inspection/pkg/logx"
)

// Registry holds the fixed tool catalog. It is populated once at startup and
// read-only afterwards; Invoke is the single choke point through which both
// the fast path and the LLM orchestrator execute tools, so its error
// conversion IS the propagation policy: a tool may fail, a turn may not.
type Registry struct {
	mu       sync.RWMutex
	tools    map[string]Tool
	logger   *logx.Logger
	observer func(name string, success bool)
}

// SetObserver installs a per-invocation callback, used for metrics. Call it
// during startup wiring, before Invoke runs.
func (r *Registry) SetObserver(fn func(name string, success bool)) {
	r.observer = fn
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tools:  make(map[string]Tool),
		logger: logx.NewLogger("tools"),
	}
}

// Register adds a tool. Duplicate names are an error.
func (r *Registry) Register(tool Tool) error {
	if tool == nil {
		return fmt.Errorf("tool cannot be nil")
	}
	name := tool.Name()
	if name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %s already registered", name)
	}
	r.tools[name] = tool
	return nil
}

// MustRegister is Register but panics on error. Use during startup wiring.
func (r *Registry) MustRegister(tool Tool) {
	if err := r.Register(tool); err != nil {
		panic(err)
	}
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, exists := r.tools[name]
	if !exists {
		return nil, fmt.Errorf("tool %s not found", name)
	}
	return tool, nil
}

// Definitions returns every tool's definition, sorted by name for stable
// LLM prompts.
func (r *Registry) Definitions() []ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]ToolDefinition, 0, len(r.tools))
	for _, tool := range r.tools {
		defs = append(defs, tool.Definition())
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Invoke executes a tool for one session. It never panics and never returns
// an unguarded error: unknown tools, thrown errors, and panics all become a
// failed Result whose message is safe to show the user.
func (r *Registry) Invoke(ctx context.Context, sessionID, name string, args map[string]any) (result Result) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("tool %s panicked: %v", name, rec)
			result = Failf("Sorry, something went wrong handling that. Please try again.")
		}
	}()

	tool, err := r.Get(name)
	if err != nil {
		r.logger.Warn("unknown tool requested: %s", name)
		return Failf("Sorry, I can't do that. Please pick an option from the menu.")
	}

	res, err := tool.Exec(WithSessionID(ctx, sessionID), args)
	if err != nil {
		r.logger.Error("tool %s failed: %v", name, err)
		return Failf("Sorry, that action failed. Please try again.")
	}
	if res.Success {
		r.logger.Debug("tool %s succeeded for session %s", name, sessionID)
	} else {
		r.logger.Debug("tool %s rejected input for session %s: %s", name, sessionID, res.Error)
	}
	if r.observer != nil {
		r.observer(name, res.Success)
	}
	return res
}

// InvokeJSON is Invoke with the result rendered to its wire form, used when
// feeding tool outputs back to the LLM.
func (r *Registry) InvokeJSON(ctx context.Context, sessionID, name string, args map[string]any) string {
	return r.Invoke(ctx, sessionID, name, args).JSON()
}
