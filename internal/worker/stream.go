// Package worker runs the external worker CLI and interprets its output.
package worker

import (
	"encoding/json"
	"fmt"

	"github.com/ShayCichocki/subtask/pkg/models"
)

// EventType identifies a stream event from the worker CLI.
type EventType string

const (
	// EventMessageEnd is a completed assistant turn.
	EventMessageEnd EventType = "message_end"
	// EventToolResultEnd is a completed tool invocation.
	EventToolResultEnd EventType = "tool_result_end"
	// EventToolStart announces a tool invocation. It is used only to
	// correlate the matching tool_result_end for progress display.
	EventToolStart EventType = "tool_start"
)

// StreamEvent is one parsed line of the worker's NDJSON output.
type StreamEvent struct {
	// Type is the event type.
	Type EventType `json:"type"`
	// Message carries the event content.
	Message *EventMessage `json:"message"`
}

// EventMessage is the message body of a stream event. Which fields are
// populated depends on the event type.
type EventMessage struct {
	// Model identifies the model serving the turn.
	Model string `json:"model,omitempty"`
	// Text is the assistant text or captured tool output.
	Text string `json:"text,omitempty"`
	// Tool names the tool on tool events.
	Tool string `json:"tool,omitempty"`
	// ToolUseID correlates a tool_start with its tool_result_end.
	ToolUseID string `json:"tool_use_id,omitempty"`
	// IsError marks a tool result the worker flagged as failed.
	IsError bool `json:"is_error,omitempty"`
	// Error is an explicit error reported on an assistant turn.
	Error string `json:"error,omitempty"`
	// Usage is the turn's token usage delta.
	Usage *EventUsage `json:"usage,omitempty"`
	// CostUSD is the turn's cost delta.
	CostUSD float64 `json:"cost_usd,omitempty"`
}

// EventUsage mirrors the worker's per-turn usage counters.
type EventUsage struct {
	InputTokens              int64 `json:"input_tokens"`
	OutputTokens             int64 `json:"output_tokens"`
	CacheReadInputTokens     int64 `json:"cache_read_input_tokens"`
	CacheCreationInputTokens int64 `json:"cache_creation_input_tokens"`
}

// UsageDelta converts the turn counters into an accumulator delta for
// one completed turn.
func (m *EventMessage) UsageDelta() models.Usage {
	delta := models.Usage{CostUSD: m.CostUSD, Turns: 1}
	if m.Usage != nil {
		delta.InputTokens = m.Usage.InputTokens
		delta.OutputTokens = m.Usage.OutputTokens
		delta.CacheReadTokens = m.Usage.CacheReadInputTokens
		delta.CacheWriteTokens = m.Usage.CacheCreationInputTokens
	}
	return delta
}

// ParseStreamEvent parses one NDJSON line into a StreamEvent.
func ParseStreamEvent(line []byte) (StreamEvent, error) {
	var event StreamEvent
	if err := json.Unmarshal(line, &event); err != nil {
		return StreamEvent{}, fmt.Errorf("unmarshal event: %w", err)
	}
	if event.Type == "" {
		return StreamEvent{}, fmt.Errorf("event missing type")
	}
	return event, nil
}
