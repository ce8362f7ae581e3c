package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	execpkg "github.com/ShayCichocki/subtask/internal/exec"
	"github.com/ShayCichocki/subtask/internal/worker"
	"github.com/ShayCichocki/subtask/pkg/models"
)

// ReadConfigFile reads a job config and deletes the file immediately:
// the config is a single-use hand-off artifact.
func ReadConfigFile(path string) (*models.JobConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading job config: %w", err)
	}
	os.Remove(path)

	return parseConfig(data)
}

// ReadConfig parses a job config streamed on r, for pipe-based
// invocation of the runner.
func ReadConfig(r io.Reader) (*models.JobConfig, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading job config: %w", err)
	}
	return parseConfig(data)
}

func parseConfig(data []byte) (*models.JobConfig, error) {
	var cfg models.JobConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing job config: %w", err)
	}
	if len(cfg.Steps) == 0 {
		return nil, fmt.Errorf("job config has no steps")
	}
	if cfg.ResultPath == "" {
		return nil, fmt.Errorf("job config has no result path")
	}
	return &cfg, nil
}

// Runner executes a detached job: the chain semantics of the sync path,
// but with blocking worker invocations since no parent is listening for
// progress.
type Runner struct {
	// WorkerBin is the worker CLI executable.
	WorkerBin string
	// Exec runs the blocking worker invocations.
	Exec execpkg.CommandRunner
}

// NewRunner creates a Runner using the real command runner.
func NewRunner(workerBin string) *Runner {
	return &Runner{WorkerBin: workerBin, Exec: execpkg.NewRunner()}
}

// Run executes the job's steps sequentially and returns the completion
// payload. Placeholder substitution and short-circuit-on-failure match
// the synchronous chain runner.
func (r *Runner) Run(ctx context.Context, cfg *models.JobConfig) *models.CompletionPayload {
	placeholder := cfg.Placeholder
	if placeholder == "" {
		placeholder = models.DefaultPlaceholder
	}

	payload := &models.CompletionPayload{
		ID:         cfg.ID,
		Agent:      cfg.Label(),
		Success:    true,
		TaskIndex:  cfg.TaskIndex,
		TotalTasks: cfg.TotalTasks,
	}

	previousOutput := ""
	for _, step := range cfg.Steps {
		task := strings.ReplaceAll(step.Task, placeholder, previousOutput)

		output, exitCode, err := r.runStep(ctx, cfg, step, task)
		if err != nil {
			payload.Results = append(payload.Results, models.StepOutcome{
				Agent:   step.Agent,
				Output:  err.Error(),
				Success: false,
			})
			payload.Success = false
			payload.ExitCode = 1
			payload.Summary = err.Error()
			break
		}

		payload.Results = append(payload.Results, models.StepOutcome{
			Agent:   step.Agent,
			Output:  output,
			Success: exitCode == 0,
		})

		if exitCode != 0 {
			payload.Success = false
			payload.ExitCode = exitCode
			payload.Summary = output
			break
		}

		previousOutput = output
		payload.Summary = output
	}

	payload.Timestamp = time.Now().Format(time.RFC3339)
	return payload
}

// runStep performs one blocking worker invocation.
func (r *Runner) runStep(ctx context.Context, cfg *models.JobConfig, step models.JobStep, task string) (string, int, error) {
	opts := worker.StartOptions{
		Model: step.Model,
		Tools: step.Tools,
	}

	if step.SystemPrompt != "" {
		f, err := os.CreateTemp("", "subtask-prompt-*.txt")
		if err != nil {
			return "", 1, fmt.Errorf("create prompt file: %w", err)
		}
		if _, err := f.WriteString(step.SystemPrompt); err != nil {
			f.Close()
			os.Remove(f.Name())
			return "", 1, fmt.Errorf("write prompt file: %w", err)
		}
		f.Close()
		defer os.Remove(f.Name())
		opts.SystemPromptPath = f.Name()
	}

	workDir := step.Cwd
	if workDir == "" {
		workDir = cfg.Cwd
	}

	res, err := r.Exec.Run(ctx, workDir, r.WorkerBin, worker.BlockingArgs(task, opts)...)
	if err != nil {
		return "", 1, fmt.Errorf("run worker: %w", err)
	}

	output := strings.TrimSpace(string(res.Stdout))
	if res.ExitCode != 0 && output == "" {
		output = strings.TrimSpace(string(res.Stderr))
	}
	return output, res.ExitCode, nil
}

// WriteResult writes the completion payload to its result path, creating
// parent directories as needed. This is the job's only persisted state.
func WriteResult(payload *models.CompletionPayload, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create results directory: %w", err)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal completion payload: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write completion payload: %w", err)
	}
	return nil
}
