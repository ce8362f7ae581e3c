package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/subtask/internal/config"
)

// CheckWorkerCLI verifies that the configured worker CLI is available in
// PATH. Returns an error with installation guidance if not found.
func CheckWorkerCLI(bin string) error {
	_, err := exec.LookPath(bin)
	if err != nil {
		return fmt.Errorf("worker CLI %q not found in PATH\n\n"+
			"subtask dispatches agent tasks through an external worker CLI.\n"+
			"Install it, or point worker.bin in the config (or SUBTASK_WORKER_BIN)\n"+
			"at the right executable.", bin)
	}
	return nil
}

// loadConfig loads the layered configuration for a command.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

var rootCmd = &cobra.Command{
	Use:   "subtask",
	Short: "Agent sub-task dispatcher",
	Long: `subtask dispatches independent agent sub-tasks through an external
worker CLI, in three topologies:

  single    one task
  parallel  up to 8 independent tasks under a bounded pool
  chain     sequential steps, each seeing the previous step's output

Dispatch is asynchronous by default: jobs run as detached processes that
survive this one, and their completions surface later through the results
directory. Use --sync to stream a run in the foreground instead.`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	// A project .env may carry worker credentials; missing files are fine.
	_ = godotenv.Load()

	rootCmd.AddCommand(dispatchCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(agentsCmd)
	rootCmd.AddCommand(versionCmd)
}
