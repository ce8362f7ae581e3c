package models

// Usage accumulates token and cost counters across one run.
// It only ever increases within a run and is never shared across runs.
type Usage struct {
	// InputTokens is the total input tokens consumed.
	InputTokens int64 `json:"input_tokens"`
	// OutputTokens is the total output tokens produced.
	OutputTokens int64 `json:"output_tokens"`
	// CacheReadTokens is the total tokens read from prompt cache.
	CacheReadTokens int64 `json:"cache_read_tokens"`
	// CacheWriteTokens is the total tokens written to prompt cache.
	CacheWriteTokens int64 `json:"cache_write_tokens"`
	// CostUSD is the accumulated cost in dollars.
	CostUSD float64 `json:"cost_usd"`
	// Turns is the number of completed assistant turns.
	Turns int `json:"turns"`
}

// Add accumulates another usage delta into u.
func (u *Usage) Add(other Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.CacheReadTokens += other.CacheReadTokens
	u.CacheWriteTokens += other.CacheWriteTokens
	u.CostUSD += other.CostUSD
	u.Turns += other.Turns
}

// MessageKind distinguishes entries in a StepResult message log.
type MessageKind string

const (
	// MessageAssistant is a completed assistant turn.
	MessageAssistant MessageKind = "assistant"
	// MessageToolResult is a completed tool invocation result.
	MessageToolResult MessageKind = "tool_result"
)

// Message is one entry in a step's ordered event log.
type Message struct {
	// Kind is the message kind.
	Kind MessageKind `json:"kind"`
	// Text is the assistant text or tool output.
	Text string `json:"text,omitempty"`
	// Tool is the tool name for tool results.
	Tool string `json:"tool,omitempty"`
	// IsError marks a tool result the worker flagged as failed.
	IsError bool `json:"is_error,omitempty"`
}

// StepResult is the outcome of one worker run. It is created with
// ExitCode 0 at run start, mutated as events arrive, and finalized once
// the process exits and failure detection has run.
type StepResult struct {
	// Agent is the agent name the step ran as.
	Agent string `json:"agent"`
	// Task is the task text after placeholder substitution.
	Task string `json:"task"`
	// ExitCode is the effective exit code of the step.
	ExitCode int `json:"exit_code"`
	// Messages is the ordered event log.
	Messages []Message `json:"messages,omitempty"`
	// Usage is the accumulated usage for the step.
	Usage Usage `json:"usage"`
	// Model is the model that served the run, first non-empty value wins.
	Model string `json:"model,omitempty"`
	// Error holds the failure message if the step failed.
	Error string `json:"error,omitempty"`
}

// Failed reports whether the step ended in failure.
func (r *StepResult) Failed() bool {
	return r.ExitCode != 0 || r.Error != ""
}

// FinalText returns the last assistant text in the message log,
// or the empty string if no assistant turn produced text.
func (r *StepResult) FinalText() string {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Kind == MessageAssistant && r.Messages[i].Text != "" {
			return r.Messages[i].Text
		}
	}
	return ""
}
