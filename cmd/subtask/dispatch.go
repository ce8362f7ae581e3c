package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/subtask/internal/agentdef"
	"github.com/ShayCichocki/subtask/internal/jobs"
	"github.com/ShayCichocki/subtask/internal/orchestrator"
	"github.com/ShayCichocki/subtask/internal/worker"
	"github.com/ShayCichocki/subtask/pkg/models"
)

var (
	dispatchChain       bool
	dispatchParallel    bool
	dispatchSync        bool
	dispatchScope       string
	dispatchCwd         string
	dispatchConcurrency int
	dispatchVerbose     bool
)

var dispatchCmd = &cobra.Command{
	Use:   "dispatch [flags] AGENT:TASK [AGENT:TASK...]",
	Short: "Dispatch agent sub-tasks",
	Long: `Dispatch one or more agent sub-tasks. Each argument is an agent name
and task text separated by the first colon.

One argument runs a single task. Several arguments run in parallel by
default (max 8); pass --chain to run them sequentially instead, with
"{previous}" in a step's task replaced by the prior step's output.

By default jobs are launched detached and the command returns a job id
immediately; completions arrive via "subtask watch". Pass --sync to run
in the foreground and stream results.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDispatch,
}

func init() {
	dispatchCmd.Flags().BoolVar(&dispatchChain, "chain", false, "Run tasks sequentially as a chain")
	dispatchCmd.Flags().BoolVar(&dispatchParallel, "parallel", false, "Run tasks concurrently (default for multiple tasks)")
	dispatchCmd.Flags().BoolVar(&dispatchSync, "sync", false, "Run in the foreground instead of dispatching detached jobs")
	dispatchCmd.Flags().StringVar(&dispatchScope, "scope", "all", "Agent lookup scope: user, project, or all")
	dispatchCmd.Flags().StringVar(&dispatchCwd, "cwd", "", "Working directory for the worker processes")
	dispatchCmd.Flags().IntVar(&dispatchConcurrency, "concurrency", 0, "Fan-out pool size (default 4)")
	dispatchCmd.Flags().BoolVar(&dispatchVerbose, "verbose", false, "Stream partial output while tasks run")
}

func runDispatch(cmd *cobra.Command, args []string) error {
	if dispatchChain && dispatchParallel {
		return fmt.Errorf("--chain and --parallel are mutually exclusive")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := CheckWorkerCLI(cfg.Worker.Bin); err != nil {
		return err
	}

	registry, err := buildRegistry(cfg.Agents.File)
	if err != nil {
		return err
	}

	req, err := buildRequest(args)
	if err != nil {
		return err
	}

	concurrency := dispatchConcurrency
	if concurrency <= 0 {
		concurrency = cfg.Dispatch.Concurrency
	}

	launcher := jobs.NewLauncher(cfg.Dispatch.RunnerBin, cfg.Results.Dir)
	launcher.Placeholder = cfg.Dispatch.Placeholder
	launcher.Cwd = dispatchCwd

	dispatcher := orchestrator.New(orchestrator.Config{
		Registry:    registry,
		Runner:      worker.NewExecutor(cfg.Worker.Bin),
		Launcher:    launcher,
		Concurrency: concurrency,
		Placeholder: cfg.Dispatch.Placeholder,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var onProgress func(orchestrator.Progress)
	if dispatchVerbose && !req.Async {
		onProgress = func(p orchestrator.Progress) {
			fmt.Fprintf(os.Stderr, "[task %d] %s\n", p.TaskIndex, lastLine(p.Partial))
		}
	}

	outcome := dispatcher.Dispatch(ctx, req, onProgress)
	printOutcome(outcome)
	return outcomeErr(cmd, outcome)
}

// outcomeErr converts a failed outcome into a command error so Execute
// exits non-zero. printOutcome already reported the details, so usage
// help and cobra's error echo are silenced.
func outcomeErr(cmd *cobra.Command, outcome *orchestrator.Outcome) error {
	if !outcome.IsError {
		return nil
	}
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	return errors.New(outcome.Error)
}

// buildRequest turns AGENT:TASK arguments into an ExecutionRequest.
func buildRequest(args []string) (models.ExecutionRequest, error) {
	req := models.DefaultExecutionRequest()
	req.Async = !dispatchSync
	req.Scope = models.Scope(dispatchScope)

	specs := make([]models.TaskSpec, len(args))
	for i, arg := range args {
		agent, task, ok := strings.Cut(arg, ":")
		if !ok || agent == "" || task == "" {
			return req, fmt.Errorf("argument %q is not AGENT:TASK", arg)
		}
		specs[i] = models.TaskSpec{
			Agent:      strings.TrimSpace(agent),
			Task:       strings.TrimSpace(task),
			WorkingDir: dispatchCwd,
		}
	}

	switch {
	case dispatchChain:
		steps := make([]models.ChainStep, len(specs))
		for i, s := range specs {
			steps[i] = models.ChainStep{TaskSpec: s}
		}
		req.Chain = steps
	case len(specs) == 1 && !dispatchParallel:
		req.Single = &specs[0]
	default:
		req.Parallel = specs
	}
	return req, nil
}

// buildRegistry loads the agents file, or returns an empty registry when
// none is configured so unknown-agent errors stay uniform.
func buildRegistry(path string) (agentdef.Registry, error) {
	if path == "" {
		return agentdef.NewStaticRegistry(), nil
	}
	return agentdef.LoadFile(path)
}

func printOutcome(outcome *orchestrator.Outcome) {
	if outcome.Async {
		fmt.Printf("%s dispatched %s (job %s)\n", color.GreenString("✓"), outcome.Label, outcome.JobID)
		fmt.Println("Completions will appear in the results directory; run 'subtask watch' to observe them.")
		return
	}

	for i, result := range outcome.Results {
		if result == nil {
			continue
		}
		mark := color.GreenString("✓")
		if result.Failed() {
			mark = color.RedString("✗")
		}
		fmt.Printf("%s [%d] %s: %s\n", mark, i, result.Agent, summarize(result))
		fmt.Printf("    %d in / %d out tokens, $%.4f, %d turns\n",
			result.Usage.InputTokens, result.Usage.OutputTokens, result.Usage.CostUSD, result.Usage.Turns)
	}

	if outcome.IsError {
		fmt.Printf("%s %s\n", color.RedString("✗"), outcome.Error)
		return
	}
	if len(outcome.Results) > 1 {
		fmt.Printf("%d/%d tasks succeeded\n", orchestrator.Succeeded(outcome.Results), len(outcome.Results))
	}
}

func summarize(result *models.StepResult) string {
	if result.Failed() {
		return result.Error
	}
	return lastLine(result.FinalText())
}

func lastLine(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.LastIndexByte(text, '\n'); i >= 0 {
		text = text[i+1:]
	}
	if len(text) > 120 {
		return text[:117] + "..."
	}
	return text
}
