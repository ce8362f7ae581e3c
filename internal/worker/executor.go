package worker

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ShayCichocki/subtask/internal/agentdef"
	"github.com/ShayCichocki/subtask/pkg/models"
)

// ProgressFunc receives the best-available partial output while a step
// is still running.
type ProgressFunc func(partial string)

// workingPlaceholder is reported as progress before any assistant text
// has arrived.
const workingPlaceholder = "(working...)"

// Executor runs single worker steps in streaming mode.
type Executor struct {
	// WorkerBin is the worker CLI executable name or path.
	WorkerBin string
}

// NewExecutor creates an Executor for the given worker binary.
func NewExecutor(workerBin string) *Executor {
	return &Executor{WorkerBin: workerBin}
}

// Execute runs one task to completion and returns its StepResult.
// The result is never nil; failures are reported through its ExitCode
// and Error fields. Cancelling ctx terminates the subprocess.
func (e *Executor) Execute(ctx context.Context, spec models.TaskSpec, def *agentdef.Definition, onProgress ProgressFunc) *models.StepResult {
	result := &models.StepResult{
		Agent: spec.Agent,
		Task:  spec.Task,
	}

	opts := StartOptions{
		WorkingDir: spec.WorkingDir,
	}
	if def != nil {
		opts.Model = def.Model
		opts.Tools = def.Tools

		if def.SystemPrompt != "" {
			promptPath, err := writePromptFile(def.SystemPrompt)
			if err != nil {
				result.ExitCode = 1
				return result
			}
			defer os.Remove(promptPath)
			opts.SystemPromptPath = promptPath
		}
	}

	proc := NewProcess()
	if err := proc.Start(ctx, e.WorkerBin, spec.Task, opts); err != nil {
		result.ExitCode = 1
		return result
	}

	e.consumeEvents(proc, result, onProgress)

	result.ExitCode = proc.Wait()
	e.finalize(proc, result)
	return result
}

// consumeEvents drains the process event stream into the result.
func (e *Executor) consumeEvents(proc *Process, result *models.StepResult, onProgress ProgressFunc) {
	// pendingTools correlates tool_start with tool_result_end. The map
	// is private to this invocation.
	pendingTools := make(map[string]string)
	lastText := ""

	report := func() {
		if onProgress == nil {
			return
		}
		if lastText == "" {
			onProgress(workingPlaceholder)
			return
		}
		onProgress(lastText)
	}

	for event := range proc.Events() {
		msg := event.Message
		if msg == nil {
			continue
		}

		switch event.Type {
		case EventToolStart:
			if msg.ToolUseID != "" {
				pendingTools[msg.ToolUseID] = msg.Tool
			}

		case EventMessageEnd:
			result.Messages = append(result.Messages, models.Message{
				Kind: models.MessageAssistant,
				Text: msg.Text,
			})
			result.Usage.Add(msg.UsageDelta())
			if result.Model == "" && msg.Model != "" {
				result.Model = msg.Model
			}
			if result.Error == "" && msg.Error != "" {
				result.Error = msg.Error
			}
			if msg.Text != "" {
				lastText = msg.Text
			}
			report()

		case EventToolResultEnd:
			tool := msg.Tool
			if tool == "" {
				tool = pendingTools[msg.ToolUseID]
			}
			delete(pendingTools, msg.ToolUseID)
			result.Messages = append(result.Messages, models.Message{
				Kind:    models.MessageToolResult,
				Text:    msg.Text,
				Tool:    tool,
				IsError: msg.IsError,
			})
			report()
		}
	}
}

// finalize applies exit diagnostics and failure detection to a result
// whose process has exited.
func (e *Executor) finalize(proc *Process, result *models.StepResult) {
	if result.ExitCode != 0 {
		if result.Error == "" {
			if stderr := strings.TrimSpace(proc.Stderr()); stderr != "" {
				result.Error = stderr
			} else {
				result.Error = fmt.Sprintf("worker exited with code %d", result.ExitCode)
			}
		}
		return
	}

	if result.Error != "" {
		return
	}

	if err := proc.ScanErr(); err != nil {
		result.ExitCode = 1
		result.Error = fmt.Sprintf("reading worker stream: %v", err)
		return
	}

	if verdict := DetectFailure(result.Messages); verdict.HasError {
		result.ExitCode = verdict.ExitCode
		tool := verdict.Tool
		if tool == "" {
			tool = "tool"
		}
		result.Error = fmt.Sprintf("%s failed (exit code %d): %s", tool, verdict.ExitCode, verdict.Detail)
	}
}

// writePromptFile stores system prompt text in an owner-only temp file
// and returns its path. The caller removes the file after the run.
func writePromptFile(prompt string) (string, error) {
	f, err := os.CreateTemp("", "subtask-prompt-*.txt")
	if err != nil {
		return "", fmt.Errorf("create prompt file: %w", err)
	}
	if _, err := f.WriteString(prompt); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("write prompt file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("close prompt file: %w", err)
	}
	return f.Name(), nil
}
