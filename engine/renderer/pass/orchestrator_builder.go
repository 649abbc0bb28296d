package pass

// OrchestratorBuilderOption is a functional option for configuring an Orchestrator.
// Use the With* functions to create options.
type OrchestratorBuilderOption func(o *Orchestrator)

// WithTrace registers a callback that receives every executed pass name and its CPU recording time.
//
// Parameters:
//   - fn: the trace callback
//
// Returns:
//   - OrchestratorBuilderOption: option function to apply
func WithTrace(fn TraceFunc) OrchestratorBuilderOption {
	return func(o *Orchestrator) {
		o.trace = fn
	}
}
