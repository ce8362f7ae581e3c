// Command subtask-runner executes one detached job. It takes a job
// config file path as its sole argument (the file is deleted right after
// reading), or reads the config JSON from stdin when invoked with "-" or
// no argument, runs the steps with blocking worker calls, and writes a
// single completion payload to the configured result path.
package main

import (
	"context"
	"log"
	"os"

	"github.com/ShayCichocki/subtask/internal/config"
	"github.com/ShayCichocki/subtask/internal/jobs"
	"github.com/ShayCichocki/subtask/pkg/models"
)

func main() {
	log.SetPrefix("[subtask-runner] ")

	jobCfg, err := readJobConfig()
	if err != nil {
		// No result path is known yet, so there is nowhere to report this.
		log.Fatalf("job config: %v", err)
	}

	workerBin := "claude"
	if cfg, err := config.Load(); err == nil && cfg.Worker.Bin != "" {
		workerBin = cfg.Worker.Bin
	}

	runner := jobs.NewRunner(workerBin)
	payload := runner.Run(context.Background(), jobCfg)

	if err := jobs.WriteResult(payload, jobCfg.ResultPath); err != nil {
		log.Fatalf("write result: %v", err)
	}
}

func readJobConfig() (*models.JobConfig, error) {
	if len(os.Args) > 1 && os.Args[1] != "-" {
		return jobs.ReadConfigFile(os.Args[1])
	}
	return jobs.ReadConfig(os.Stdin)
}
