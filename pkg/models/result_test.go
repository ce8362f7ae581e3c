package models

import "testing"

func TestUsageAdd(t *testing.T) {
	u := Usage{InputTokens: 10, OutputTokens: 5, CostUSD: 0.01, Turns: 1}
	u.Add(Usage{InputTokens: 20, OutputTokens: 7, CacheReadTokens: 100, CostUSD: 0.02, Turns: 1})

	if u.InputTokens != 30 {
		t.Errorf("InputTokens = %d, want 30", u.InputTokens)
	}
	if u.OutputTokens != 12 {
		t.Errorf("OutputTokens = %d, want 12", u.OutputTokens)
	}
	if u.CacheReadTokens != 100 {
		t.Errorf("CacheReadTokens = %d, want 100", u.CacheReadTokens)
	}
	if u.CostUSD != 0.03 {
		t.Errorf("CostUSD = %v, want 0.03", u.CostUSD)
	}
	if u.Turns != 2 {
		t.Errorf("Turns = %d, want 2", u.Turns)
	}
}

func TestStepResultFailed(t *testing.T) {
	tests := []struct {
		name   string
		result StepResult
		want   bool
	}{
		{"clean", StepResult{}, false},
		{"nonzero exit", StepResult{ExitCode: 2}, true},
		{"error with zero exit", StepResult{Error: "boom"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.result.Failed(); got != tt.want {
				t.Errorf("Failed() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStepResultFinalText(t *testing.T) {
	r := StepResult{Messages: []Message{
		{Kind: MessageAssistant, Text: "thinking"},
		{Kind: MessageToolResult, Tool: "bash", Text: "tool output"},
		{Kind: MessageAssistant, Text: "final answer"},
		{Kind: MessageToolResult, Tool: "bash", Text: "trailing tool output"},
	}}
	if got := r.FinalText(); got != "final answer" {
		t.Errorf("FinalText() = %q, want %q", got, "final answer")
	}

	empty := StepResult{Messages: []Message{
		{Kind: MessageToolResult, Tool: "bash", Text: "only tools"},
	}}
	if got := empty.FinalText(); got != "" {
		t.Errorf("FinalText() = %q, want empty", got)
	}
}

func TestJobConfigLabel(t *testing.T) {
	single := JobConfig{Steps: []JobStep{{Agent: "helper"}}}
	if got := single.Label(); got != "helper" {
		t.Errorf("Label() = %q, want %q", got, "helper")
	}

	chain := JobConfig{Steps: []JobStep{{Agent: "scout"}, {Agent: "writer"}, {Agent: "editor"}}}
	if got := chain.Label(); got != "chain:scout->writer->editor" {
		t.Errorf("Label() = %q, want %q", got, "chain:scout->writer->editor")
	}
}
