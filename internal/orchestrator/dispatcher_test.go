package orchestrator

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/ShayCichocki/subtask/internal/agentdef"
	"github.com/ShayCichocki/subtask/internal/worker"
	"github.com/ShayCichocki/subtask/pkg/models"
)

// fakeLauncher records launch specs without spawning anything.
type fakeLauncher struct {
	specs []LaunchSpec
	ack   Ack
}

func (f *fakeLauncher) Launch(spec LaunchSpec) (*Ack, error) {
	f.specs = append(f.specs, spec)
	return &f.ack, nil
}

func testRegistry() *agentdef.StaticRegistry {
	return agentdef.NewStaticRegistry(
		&agentdef.Definition{Name: "helper", Model: "test-model"},
		&agentdef.Definition{Name: "reviewer"},
	)
}

func testDispatcher(launcher AsyncLauncher, spawned *atomic.Int64) *Dispatcher {
	runner := runnerFunc(func(ctx context.Context, spec models.TaskSpec, def *agentdef.Definition, _ worker.ProgressFunc) *models.StepResult {
		if spawned != nil {
			spawned.Add(1)
		}
		return okResult(spec, "done")
	})
	return New(Config{
		Registry: testRegistry(),
		Runner:   runner,
		Launcher: launcher,
	})
}

func syncSingle(agent, task string) models.ExecutionRequest {
	req := models.DefaultExecutionRequest()
	req.Async = false
	req.Single = &models.TaskSpec{Agent: agent, Task: task}
	return req
}

func TestDispatchRejectsAmbiguousModes(t *testing.T) {
	tests := []struct {
		name string
		req  models.ExecutionRequest
	}{
		{"no mode", models.ExecutionRequest{}},
		{"single and parallel", models.ExecutionRequest{
			Single:   &models.TaskSpec{Agent: "helper", Task: "a"},
			Parallel: []models.TaskSpec{{Agent: "helper", Task: "b"}},
		}},
		{"parallel and chain", models.ExecutionRequest{
			Parallel: []models.TaskSpec{{Agent: "helper", Task: "a"}},
			Chain:    []models.ChainStep{{TaskSpec: models.TaskSpec{Agent: "helper", Task: "b"}}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var spawned atomic.Int64
			d := testDispatcher(&fakeLauncher{}, &spawned)

			outcome := d.Dispatch(context.Background(), tt.req, nil)

			if !outcome.IsError {
				t.Error("IsError = false, want true")
			}
			if spawned.Load() != 0 {
				t.Errorf("spawned %d processes, want 0", spawned.Load())
			}
		})
	}
}

func TestDispatchUnknownAgent(t *testing.T) {
	var spawned atomic.Int64
	d := testDispatcher(&fakeLauncher{}, &spawned)

	outcome := d.Dispatch(context.Background(), syncSingle("ghost", "boo"), nil)

	if !outcome.IsError {
		t.Fatal("IsError = false, want true")
	}
	if outcome.ExitCode != 1 {
		t.Errorf("ExitCode = %d, want 1", outcome.ExitCode)
	}
	if outcome.Error != "Unknown agent: ghost" {
		t.Errorf("Error = %q, want %q", outcome.Error, "Unknown agent: ghost")
	}
	if spawned.Load() != 0 {
		t.Errorf("spawned %d processes, want 0", spawned.Load())
	}
}

func TestDispatchRejectsOversizedParallel(t *testing.T) {
	var spawned atomic.Int64
	d := testDispatcher(&fakeLauncher{}, &spawned)

	req := models.DefaultExecutionRequest()
	req.Async = false
	for i := 0; i < 9; i++ {
		req.Parallel = append(req.Parallel, models.TaskSpec{Agent: "helper", Task: "t"})
	}

	outcome := d.Dispatch(context.Background(), req, nil)

	if !outcome.IsError {
		t.Fatal("IsError = false, want true")
	}
	if outcome.Error != "Max 8 tasks" {
		t.Errorf("Error = %q, want %q", outcome.Error, "Max 8 tasks")
	}
	if spawned.Load() != 0 {
		t.Errorf("spawned %d processes, want 0", spawned.Load())
	}
}

func TestDispatchChainWithUnknownStepAgent(t *testing.T) {
	// One unresolved name anywhere fails the whole request up front.
	var spawned atomic.Int64
	d := testDispatcher(&fakeLauncher{}, &spawned)

	req := models.DefaultExecutionRequest()
	req.Async = false
	req.Chain = []models.ChainStep{
		{TaskSpec: models.TaskSpec{Agent: "helper", Task: "a"}},
		{TaskSpec: models.TaskSpec{Agent: "phantom", Task: "b"}},
	}

	outcome := d.Dispatch(context.Background(), req, nil)
	if !outcome.IsError {
		t.Fatal("IsError = false, want true")
	}
	if spawned.Load() != 0 {
		t.Errorf("spawned %d processes, want 0 (step 1 must not start)", spawned.Load())
	}
}

func TestDispatchSyncSingle(t *testing.T) {
	d := testDispatcher(&fakeLauncher{}, nil)

	outcome := d.Dispatch(context.Background(), syncSingle("helper", "do work"), nil)

	if outcome.IsError {
		t.Fatalf("IsError = true: %s", outcome.Error)
	}
	if len(outcome.Results) != 1 {
		t.Fatalf("len(Results) = %d, want 1", len(outcome.Results))
	}
	if outcome.Results[0].Agent != "helper" {
		t.Errorf("Agent = %q, want %q", outcome.Results[0].Agent, "helper")
	}
}

func TestDispatchAsyncSingleReturnsAck(t *testing.T) {
	launcher := &fakeLauncher{ack: Ack{JobID: "job-1", Label: "helper"}}
	var spawned atomic.Int64
	d := testDispatcher(launcher, &spawned)

	req := models.DefaultExecutionRequest()
	req.Single = &models.TaskSpec{Agent: "helper", Task: "background work"}

	outcome := d.Dispatch(context.Background(), req, nil)

	if !outcome.Async {
		t.Fatal("Async = false, want true")
	}
	if outcome.JobID != "job-1" {
		t.Errorf("JobID = %q, want %q", outcome.JobID, "job-1")
	}
	if spawned.Load() != 0 {
		t.Errorf("sync runner ran %d times on the async path, want 0", spawned.Load())
	}

	if len(launcher.specs) != 1 {
		t.Fatalf("launcher called %d times, want 1", len(launcher.specs))
	}
	units := launcher.specs[0].Units
	if len(units) != 1 || len(units[0]) != 1 {
		t.Fatalf("units = %v, want one unit with one step", units)
	}
	if units[0][0].Model != "test-model" {
		t.Errorf("step Model = %q, want resolved %q", units[0][0].Model, "test-model")
	}
}

func TestDispatchAsyncParallelUnitPerTask(t *testing.T) {
	launcher := &fakeLauncher{ack: Ack{JobID: "job-2", Label: "3 tasks"}}
	d := testDispatcher(launcher, nil)

	req := models.DefaultExecutionRequest()
	req.Parallel = []models.TaskSpec{
		{Agent: "helper", Task: "a"},
		{Agent: "reviewer", Task: "b"},
		{Agent: "helper", Task: "c"},
	}

	d.Dispatch(context.Background(), req, nil)

	units := launcher.specs[0].Units
	if len(units) != 3 {
		t.Fatalf("len(units) = %d, want 3 (one per parallel task)", len(units))
	}
	for i, unit := range units {
		if len(unit) != 1 {
			t.Errorf("units[%d] has %d steps, want 1", i, len(unit))
		}
	}
}

func TestDispatchAsyncChainSingleUnit(t *testing.T) {
	launcher := &fakeLauncher{ack: Ack{JobID: "job-3"}}
	d := testDispatcher(launcher, nil)

	req := models.DefaultExecutionRequest()
	req.Chain = []models.ChainStep{
		{TaskSpec: models.TaskSpec{Agent: "helper", Task: "a"}},
		{TaskSpec: models.TaskSpec{Agent: "reviewer", Task: "use {previous}"}},
	}

	d.Dispatch(context.Background(), req, nil)

	units := launcher.specs[0].Units
	if len(units) != 1 {
		t.Fatalf("len(units) = %d, want 1 (whole chain is one unit)", len(units))
	}
	if len(units[0]) != 2 {
		t.Errorf("chain unit has %d steps, want 2", len(units[0]))
	}
	// Placeholder must survive untouched for the detached runner.
	if !strings.Contains(units[0][1].Task, "{previous}") {
		t.Errorf("step 2 task = %q, placeholder must not be substituted at dispatch time", units[0][1].Task)
	}
}

func TestDispatchSyncFanOut(t *testing.T) {
	d := testDispatcher(&fakeLauncher{}, nil)

	req := models.DefaultExecutionRequest()
	req.Async = false
	req.Parallel = []models.TaskSpec{
		{Agent: "helper", Task: "a"},
		{Agent: "reviewer", Task: "b"},
	}

	outcome := d.Dispatch(context.Background(), req, nil)

	if outcome.IsError {
		t.Fatalf("IsError = true: %s", outcome.Error)
	}
	if len(outcome.Results) != 2 {
		t.Fatalf("len(Results) = %d, want 2", len(outcome.Results))
	}
	if outcome.Results[0].Task != "a" || outcome.Results[1].Task != "b" {
		t.Errorf("results misaligned: %q / %q", outcome.Results[0].Task, outcome.Results[1].Task)
	}
}
