package orchestrator

import (
	"context"
	"fmt"

	"github.com/ShayCichocki/subtask/internal/agentdef"
	"github.com/ShayCichocki/subtask/pkg/models"
)

// LaunchSpec is a resolved async request handed to a job launcher.
// Each unit is independently dispatchable: one unit per parallel task,
// or a single unit holding a whole chain or single task.
type LaunchSpec struct {
	// Units are the resolved step lists, one per detached job.
	Units [][]models.JobStep
}

// Ack acknowledges an async dispatch.
type Ack struct {
	// JobID is the identifier shared by all jobs of the request.
	JobID string
	// Label describes the dispatched topology.
	Label string
}

// AsyncLauncher hands resolved jobs off to the OS as detached processes.
// It returns no handle: once launched, a job can be neither cancelled
// nor queried by the parent.
type AsyncLauncher interface {
	Launch(spec LaunchSpec) (*Ack, error)
}

// Outcome is the synchronous return value of one dispatch.
type Outcome struct {
	// IsError reports a validation or execution failure.
	IsError bool
	// Error is the failure message when IsError is set.
	Error string
	// ExitCode is 1 for failed outcomes, 0 otherwise.
	ExitCode int
	// Async reports whether the request took the async path.
	Async bool
	// JobID and Label acknowledge an async dispatch.
	JobID string
	Label string
	// Results holds sync-path step results, index-aligned for parallel
	// requests, partial for short-circuited chains.
	Results []*models.StepResult
}

// Progress carries live updates from the sync path.
type Progress struct {
	// TaskIndex is the task the update belongs to.
	TaskIndex int
	// Partial is the best-available partial output.
	Partial string
	// Completed holds finished chain steps, chain mode only.
	Completed []*models.StepResult
}

// Config assembles a Dispatcher.
type Config struct {
	// Registry resolves agent names.
	Registry agentdef.Registry
	// Runner executes sync steps.
	Runner StepRunner
	// Launcher dispatches async jobs.
	Launcher AsyncLauncher
	// Concurrency is the fan-out pool ceiling. Zero means DefaultConcurrency.
	Concurrency int
	// Placeholder is the chain substitution token.
	// Zero means models.DefaultPlaceholder.
	Placeholder string
}

// Dispatcher validates execution requests and routes them to the sync
// executor, fan-out pool, chain runner, or async launcher.
type Dispatcher struct {
	cfg Config
}

// New creates a Dispatcher.
func New(cfg Config) *Dispatcher {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.Placeholder == "" {
		cfg.Placeholder = models.DefaultPlaceholder
	}
	return &Dispatcher{cfg: cfg}
}

// Dispatch validates and runs one execution request. Validation failures
// return an error outcome without spawning anything. onProgress may be
// nil.
func (d *Dispatcher) Dispatch(ctx context.Context, req models.ExecutionRequest, onProgress func(Progress)) *Outcome {
	if req.Modes() != 1 {
		return errOutcome("Provide exactly one of: single, parallel, chain")
	}
	if len(req.Parallel) > models.MaxParallel {
		return errOutcome(fmt.Sprintf("Max %d tasks", models.MaxParallel))
	}

	resolved, err := d.resolveAll(req)
	if err != nil {
		return errOutcome(err.Error())
	}

	if req.Async {
		return d.dispatchAsync(req, resolved)
	}
	return d.dispatchSync(ctx, req, resolved, onProgress)
}

// resolveAll resolves every referenced agent before anything is spawned.
// One unresolved name fails the whole request.
func (d *Dispatcher) resolveAll(req models.ExecutionRequest) ([]ResolvedTask, error) {
	specs := req.Tasks()
	resolved := make([]ResolvedTask, len(specs))
	for i, spec := range specs {
		def, err := d.cfg.Registry.Resolve(spec.Agent, req.Scope)
		if err != nil {
			return nil, err
		}
		resolved[i] = ResolvedTask{Spec: spec, Def: def}
	}
	return resolved, nil
}

func (d *Dispatcher) dispatchSync(ctx context.Context, req models.ExecutionRequest, resolved []ResolvedTask, onProgress func(Progress)) *Outcome {
	switch {
	case req.Single != nil:
		var progress func(string)
		if onProgress != nil {
			progress = func(partial string) {
				onProgress(Progress{Partial: partial})
			}
		}
		result := d.cfg.Runner.Execute(ctx, resolved[0].Spec, resolved[0].Def, progress)
		out := &Outcome{Results: []*models.StepResult{result}}
		if result.Failed() {
			out.IsError = true
			out.Error = result.Error
			out.ExitCode = 1
		}
		return out

	case len(req.Parallel) > 0:
		var progress FanOutProgressFunc
		if onProgress != nil {
			progress = func(index int, partial string) {
				onProgress(Progress{TaskIndex: index, Partial: partial})
			}
		}
		results := RunFanOut(ctx, d.cfg.Runner, resolved, d.cfg.Concurrency, progress)
		return &Outcome{Results: results}

	default:
		var progress ChainProgressFunc
		if onProgress != nil {
			progress = func(p ChainProgress) {
				onProgress(Progress{
					TaskIndex: p.StepIndex,
					Partial:   p.Partial,
					Completed: p.Completed,
				})
			}
		}
		results, err := RunChain(ctx, d.cfg.Runner, resolved, d.cfg.Placeholder, progress)
		out := &Outcome{Results: results}
		if err != nil {
			out.IsError = true
			out.Error = err.Error()
			out.ExitCode = 1
		}
		return out
	}
}

func (d *Dispatcher) dispatchAsync(req models.ExecutionRequest, resolved []ResolvedTask) *Outcome {
	spec := LaunchSpec{}

	steps := make([]models.JobStep, len(resolved))
	for i, task := range resolved {
		steps[i] = models.JobStep{
			Agent:        task.Spec.Agent,
			Task:         task.Spec.Task,
			Cwd:          task.Spec.WorkingDir,
			Model:        task.Def.Model,
			Tools:        task.Def.Tools,
			SystemPrompt: task.Def.SystemPrompt,
		}
	}

	if len(req.Parallel) > 0 {
		// Each parallel task becomes its own detached job.
		for _, step := range steps {
			spec.Units = append(spec.Units, []models.JobStep{step})
		}
	} else {
		// A single task or a whole chain is one unit.
		spec.Units = [][]models.JobStep{steps}
	}

	ack, err := d.cfg.Launcher.Launch(spec)
	if err != nil {
		return errOutcome(err.Error())
	}
	return &Outcome{Async: true, JobID: ack.JobID, Label: ack.Label}
}

func errOutcome(msg string) *Outcome {
	return &Outcome{IsError: true, Error: msg, ExitCode: 1}
}
