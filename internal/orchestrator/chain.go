package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/ShayCichocki/subtask/pkg/models"
)

// ChainProgress is an aggregate progress snapshot of a running chain:
// everything finished so far plus the current step's live output.
type ChainProgress struct {
	// Completed holds the results of finished steps, in order.
	Completed []*models.StepResult
	// StepIndex is the index of the step currently running.
	StepIndex int
	// Partial is the current step's best-available partial output.
	Partial string
}

// ChainProgressFunc receives chain progress snapshots.
type ChainProgressFunc func(progress ChainProgress)

// RunChain executes steps one at a time. Before each step, every literal
// occurrence of placeholder in the step's task text is replaced with the
// previous step's final output (the empty string for the first step).
// There is no escaping; task text that happens to contain the token
// elsewhere is substituted too. A failing step stops the chain and the
// partial results are returned alongside an error.
func RunChain(ctx context.Context, runner StepRunner, steps []ResolvedTask, placeholder string, onProgress ChainProgressFunc) ([]*models.StepResult, error) {
	if placeholder == "" {
		placeholder = models.DefaultPlaceholder
	}

	results := make([]*models.StepResult, 0, len(steps))
	previousOutput := ""

	for i, step := range steps {
		spec := step.Spec
		spec.Task = strings.ReplaceAll(spec.Task, placeholder, previousOutput)

		var progress func(string)
		if onProgress != nil {
			idx := i
			progress = func(partial string) {
				onProgress(ChainProgress{
					Completed: results,
					StepIndex: idx,
					Partial:   partial,
				})
			}
		}

		result := runner.Execute(ctx, spec, step.Def, progress)
		results = append(results, result)

		if result.ExitCode != 0 {
			return results, fmt.Errorf("chain step %d (%s) failed: %s", i+1, spec.Agent, result.Error)
		}

		previousOutput = result.FinalText()

		if onProgress != nil {
			onProgress(ChainProgress{
				Completed: results,
				StepIndex: i,
				Partial:   previousOutput,
			})
		}
	}

	return results, nil
}
