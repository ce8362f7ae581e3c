package orchestrator

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/ShayCichocki/subtask/internal/worker"
	"github.com/ShayCichocki/subtask/pkg/models"
)

// DefaultConcurrency is the fan-out worker-pool ceiling used when no
// ceiling is configured.
const DefaultConcurrency = 4

// FanOutProgressFunc receives live partial output for one fan-out task.
type FanOutProgressFunc func(index int, partial string)

// RunFanOut executes tasks concurrently under a fixed-size worker pool.
// Each pool worker claims the next unclaimed index from a shared cursor
// until the list is exhausted, so results are index-aligned to the input
// regardless of completion order. All workers share ctx; cancelling it
// cancels every in-flight subprocess.
func RunFanOut(ctx context.Context, runner StepRunner, tasks []ResolvedTask, concurrency int, onProgress FanOutProgressFunc) []*models.StepResult {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if concurrency > len(tasks) {
		concurrency = len(tasks)
	}

	results := make([]*models.StepResult, len(tasks))
	var cursor atomic.Int64

	var wg sync.WaitGroup
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(cursor.Add(1)) - 1
				if i >= len(tasks) {
					return
				}
				var progress worker.ProgressFunc
				if onProgress != nil {
					idx := i
					progress = func(partial string) {
						onProgress(idx, partial)
					}
				}
				results[i] = runner.Execute(ctx, tasks[i].Spec, tasks[i].Def, progress)
			}
		}()
	}
	wg.Wait()

	return results
}

// Succeeded counts the zero-exit-code results.
func Succeeded(results []*models.StepResult) int {
	n := 0
	for _, r := range results {
		if r != nil && r.ExitCode == 0 {
			n++
		}
	}
	return n
}
