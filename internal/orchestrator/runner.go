// Package orchestrator routes execution requests to the sync and async
// dispatch paths and runs the sync topologies.
package orchestrator

import (
	"context"

	"github.com/ShayCichocki/subtask/internal/agentdef"
	"github.com/ShayCichocki/subtask/internal/worker"
	"github.com/ShayCichocki/subtask/pkg/models"
)

// StepRunner executes one resolved task to completion.
// *worker.Executor is the production implementation.
type StepRunner interface {
	Execute(ctx context.Context, spec models.TaskSpec, def *agentdef.Definition, onProgress worker.ProgressFunc) *models.StepResult
}

// Verify the worker executor satisfies StepRunner at compile time.
var _ StepRunner = (*worker.Executor)(nil)

// ResolvedTask pairs a task spec with its resolved agent definition.
type ResolvedTask struct {
	Spec models.TaskSpec
	Def  *agentdef.Definition
}
