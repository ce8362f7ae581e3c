package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/subtask/pkg/models"
)

var agentsScope string

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List resolvable agent definitions",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		registry, err := buildRegistry(cfg.Agents.File)
		if err != nil {
			return err
		}

		defs := registry.List(models.Scope(agentsScope))
		if len(defs) == 0 {
			fmt.Println("No agents defined. Set agents.file in the config to a YAML agents file.")
			return nil
		}
		for _, d := range defs {
			model := d.Model
			if model == "" {
				model = "(default model)"
			}
			fmt.Printf("%-20s %s  scope=%s", d.Name, model, d.Scope)
			if len(d.Tools) > 0 {
				fmt.Printf("  tools=%s", strings.Join(d.Tools, ","))
			}
			fmt.Println()
		}
		return nil
	},
}

func init() {
	agentsCmd.Flags().StringVar(&agentsScope, "scope", "all", "Agent lookup scope: user, project, or all")
}
