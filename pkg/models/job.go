package models

import "strings"

// JobStep is one step of a detached job with its agent metadata resolved
// at dispatch time, so the runner process needs no registry access.
type JobStep struct {
	// Agent is the agent name, for labels and per-step results.
	Agent string `json:"agent"`
	// Task is the task text, possibly containing the placeholder token.
	Task string `json:"task"`
	// Cwd is the working directory for the worker, if any.
	Cwd string `json:"cwd,omitempty"`
	// Model is the resolved model override, if any.
	Model string `json:"model,omitempty"`
	// Tools is the resolved tool allowlist, if any.
	Tools []string `json:"tools,omitempty"`
	// SystemPrompt is the resolved system prompt text, if any.
	SystemPrompt string `json:"system_prompt,omitempty"`
}

// JobConfig is the single-use hand-off document between the async
// dispatcher and the detached runner. It is written to a temp file at
// launch and deleted by the runner immediately after reading.
type JobConfig struct {
	// ID is the job identifier, shared across all tasks of one
	// parallel request.
	ID string `json:"id"`
	// Steps are the resolved steps to run sequentially.
	Steps []JobStep `json:"steps"`
	// ResultPath is where the completion payload is written.
	ResultPath string `json:"result_path"`
	// Cwd is the default working directory for all steps.
	Cwd string `json:"cwd,omitempty"`
	// Placeholder is the chain substitution token.
	Placeholder string `json:"placeholder,omitempty"`
	// TaskIndex is this job's index within a parallel request.
	TaskIndex *int `json:"task_index,omitempty"`
	// TotalTasks is the size of the originating parallel request.
	TotalTasks *int `json:"total_tasks,omitempty"`
}

// Label returns the composite job label: the single agent's name, or
// "chain:a->b->c" when the job has multiple steps.
func (c *JobConfig) Label() string {
	if len(c.Steps) == 1 {
		return c.Steps[0].Agent
	}
	names := make([]string, len(c.Steps))
	for i, s := range c.Steps {
		names[i] = s.Agent
	}
	return "chain:" + strings.Join(names, "->")
}

// StepOutcome is one per-step entry of a completion payload.
type StepOutcome struct {
	// Agent is the agent name the step ran as.
	Agent string `json:"agent"`
	// Output is the step's final text output.
	Output string `json:"output"`
	// Success reports whether the step exited zero.
	Success bool `json:"success"`
}

// CompletionPayload is the job's single result document. The detached
// runner writes it once; the completion correlator reads it exactly once
// and deletes the backing file.
type CompletionPayload struct {
	// ID is the job identifier.
	ID string `json:"id"`
	// Agent is the composite job label.
	Agent string `json:"agent"`
	// Success reports whether every step exited zero.
	Success bool `json:"success"`
	// Summary is the final output of the last completed step, or the
	// failure message.
	Summary string `json:"summary"`
	// Results holds the per-step outcomes in execution order.
	Results []StepOutcome `json:"results"`
	// ExitCode is the exit code of the last step that ran.
	ExitCode int `json:"exit_code"`
	// Timestamp is the completion time in RFC 3339 form.
	Timestamp string `json:"timestamp"`
	// TaskIndex is the job's index within a parallel request.
	TaskIndex *int `json:"task_index,omitempty"`
	// TotalTasks is the size of the originating parallel request.
	TotalTasks *int `json:"total_tasks,omitempty"`
}
