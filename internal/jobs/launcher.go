// Package jobs implements the asynchronous dispatch path: launching
// detached runner processes, the runner's own execution loop, and the
// correlator that turns result files into completion notifications.
package jobs

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"

	"github.com/ShayCichocki/subtask/internal/orchestrator"
	"github.com/ShayCichocki/subtask/pkg/models"
)

// Launcher dispatches jobs as detached runner processes. Ownership of a
// job transfers entirely to the OS at launch: the parent keeps no handle
// and never learns whether the job finished, except through the result
// file the runner eventually writes.
type Launcher struct {
	// RunnerBin is the detached runner executable.
	RunnerBin string
	// ResultsDir is the shared directory result files are written to.
	ResultsDir string
	// Placeholder is the chain substitution token handed to the runner.
	Placeholder string
	// Cwd is the default working directory stamped into every job
	// config; per-step working directories take precedence in the runner.
	Cwd string
}

// NewLauncher creates a Launcher.
func NewLauncher(runnerBin, resultsDir string) *Launcher {
	return &Launcher{
		RunnerBin:   runnerBin,
		ResultsDir:  resultsDir,
		Placeholder: models.DefaultPlaceholder,
	}
}

// Launch writes one single-use config file per unit and starts a
// detached runner process for each. All units share one job id; parallel
// units get index-suffixed result paths. Individual launch failures are
// logged and otherwise lost, matching the fire-and-forget contract.
func (l *Launcher) Launch(spec orchestrator.LaunchSpec) (*orchestrator.Ack, error) {
	if len(spec.Units) == 0 {
		return nil, fmt.Errorf("no units to launch")
	}

	id := uuid.New().String()
	fanout := len(spec.Units) > 1
	total := len(spec.Units)

	for i, unit := range spec.Units {
		cfg := &models.JobConfig{
			ID:          id,
			Steps:       unit,
			ResultPath:  l.resultPath(id, i, fanout),
			Cwd:         l.Cwd,
			Placeholder: l.Placeholder,
		}
		if fanout {
			idx := i
			cfg.TaskIndex = &idx
			cfg.TotalTasks = &total
		}
		if err := l.launchOne(cfg); err != nil {
			log.Printf("[launcher] job %s unit %d not launched: %v", id, i, err)
		}
	}

	return &orchestrator.Ack{JobID: id, Label: l.label(spec)}, nil
}

func (l *Launcher) resultPath(id string, index int, fanout bool) string {
	name := id
	if fanout {
		name = fmt.Sprintf("%s-%d", id, index)
	}
	return filepath.Join(l.ResultsDir, name+".json")
}

func (l *Launcher) label(spec orchestrator.LaunchSpec) string {
	if len(spec.Units) > 1 {
		return fmt.Sprintf("%d tasks", len(spec.Units))
	}
	cfg := models.JobConfig{Steps: spec.Units[0]}
	return cfg.Label()
}

// launchOne serializes the config and starts one runner process fully
// decoupled from this process: own session, no inherited stdio, not
// awaited.
func (l *Launcher) launchOne(cfg *models.JobConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal job config: %w", err)
	}

	f, err := os.CreateTemp("", "subtask-job-*.json")
	if err != nil {
		return fmt.Errorf("create job config: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return fmt.Errorf("write job config: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return fmt.Errorf("close job config: %w", err)
	}

	cmd := exec.Command(l.RunnerBin, f.Name())
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		os.Remove(f.Name())
		return fmt.Errorf("start runner: %w", err)
	}

	// Detach: the runner outlives this process and is never waited on.
	return cmd.Process.Release()
}
