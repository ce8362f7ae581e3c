// Package models contains the shared data types for subtask dispatch.
package models

// MaxParallel is the maximum number of tasks accepted in one parallel request.
const MaxParallel = 8

// DefaultPlaceholder is the token in a chain step's task text that is
// replaced with the previous step's output.
const DefaultPlaceholder = "{previous}"

// TaskSpec describes one unit of work to hand to an agent.
// It is immutable once created.
type TaskSpec struct {
	// Agent is the name of the agent definition to run the task with.
	Agent string `json:"agent"`
	// Task is the task text passed to the worker.
	Task string `json:"task"`
	// WorkingDir is the directory the worker runs in. Empty means inherit.
	WorkingDir string `json:"working_dir,omitempty"`
}

// ChainStep is a TaskSpec whose position in a chain is implied by slice
// order. The task text may contain the placeholder token, which is
// substituted with the previous step's output before execution.
type ChainStep struct {
	TaskSpec
}

// Scope selects which agent definitions a request may resolve against.
type Scope string

const (
	// ScopeUser resolves only user-level agent definitions.
	ScopeUser Scope = "user"
	// ScopeProject resolves only project-level agent definitions.
	ScopeProject Scope = "project"
	// ScopeAll resolves project definitions first, then user definitions.
	ScopeAll Scope = "all"
)

// ExecutionRequest is one top-level dispatch request. Exactly one of
// Single, Parallel, or Chain must be populated.
type ExecutionRequest struct {
	// Single runs one task.
	Single *TaskSpec `json:"single,omitempty"`
	// Parallel runs up to MaxParallel independent tasks concurrently.
	Parallel []TaskSpec `json:"parallel,omitempty"`
	// Chain runs steps sequentially with placeholder substitution.
	Chain []ChainStep `json:"chain,omitempty"`
	// Async launches detached jobs and returns immediately.
	// Dispatch requests default to async; see DefaultExecutionRequest.
	Async bool `json:"async"`
	// Scope is the agent-lookup scope for this request.
	Scope Scope `json:"scope,omitempty"`
}

// DefaultExecutionRequest returns a request with the defaults applied:
// async on, all-scope agent lookup.
func DefaultExecutionRequest() ExecutionRequest {
	return ExecutionRequest{Async: true, Scope: ScopeAll}
}

// Modes returns how many of the mode fields are populated.
func (r *ExecutionRequest) Modes() int {
	n := 0
	if r.Single != nil {
		n++
	}
	if len(r.Parallel) > 0 {
		n++
	}
	if len(r.Chain) > 0 {
		n++
	}
	return n
}

// Tasks returns the task specs of whichever mode is populated, in order.
func (r *ExecutionRequest) Tasks() []TaskSpec {
	switch {
	case r.Single != nil:
		return []TaskSpec{*r.Single}
	case len(r.Parallel) > 0:
		return r.Parallel
	default:
		specs := make([]TaskSpec, len(r.Chain))
		for i, step := range r.Chain {
			specs[i] = step.TaskSpec
		}
		return specs
	}
}
