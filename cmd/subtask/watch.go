package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/subtask/internal/jobs"
	"github.com/ShayCichocki/subtask/pkg/models"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the results directory for job completions",
	Long: `Watch the shared results directory and print each job completion as
it arrives. Result files already present are reported immediately; each
file is consumed exactly once and then deleted.`,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	correlator := jobs.NewCorrelator(cfg.Results.Dir, printCompletion)
	if cfg.Results.StaleAge > 0 {
		correlator.SetStaleAge(cfg.Results.StaleAge)
	}

	if err := correlator.Start(); err != nil {
		return fmt.Errorf("starting correlator: %w", err)
	}
	defer correlator.Stop()

	fmt.Printf("Watching %s (ctrl-c to stop)\n", cfg.Results.Dir)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	return nil
}

func printCompletion(payload *models.CompletionPayload) {
	mark := color.GreenString("✓")
	if !payload.Success {
		mark = color.RedString("✗")
	}

	position := ""
	if payload.TaskIndex != nil && payload.TotalTasks != nil {
		position = fmt.Sprintf(" [%d/%d]", *payload.TaskIndex+1, *payload.TotalTasks)
	}

	fmt.Printf("%s %s%s (job %s, exit %d) at %s\n",
		mark, payload.Agent, position, payload.ID, payload.ExitCode, payload.Timestamp)
	if payload.Summary != "" {
		fmt.Printf("    %s\n", lastLine(payload.Summary))
	}
}
