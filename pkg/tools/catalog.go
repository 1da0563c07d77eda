package tools

// NewCatalog builds a registry populated with the full tool set bound to one
// environment. Both the fast path and the LLM orchestrator share this one
// registry.
func NewCatalog(env *Env) *Registry {
	r := NewRegistry()
	r.MustRegister(NewTodayJobsTool(env))
	r.MustRegister(NewConfirmJobTool(env))
	r.MustRegister(NewStartJobTool(env))
	r.MustRegister(NewUpdateJobTool(env))
	r.MustRegister(NewJobLocationsTool(env))
	r.MustRegister(NewSubLocationsTool(env))
	r.MustRegister(NewTasksTool(env))
	r.MustRegister(NewMarkLocationCompleteTool(env))
	r.MustRegister(NewCompleteTaskTool(env))
	r.MustRegister(NewAddTaskMediaTool(env))
	r.MustRegister(NewCollectInspectorInfoTool(env))
	r.MustRegister(NewTaskMediaTool(env))
	r.MustRegister(NewLocationMediaTool(env))
	r.MustRegister(NewDeleteTaskMediaTool(env))
	return r
}
