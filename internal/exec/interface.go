// Package exec provides an interface for blocking command execution.
package exec

import (
	"context"
)

// Result holds the captured output of a finished command.
type Result struct {
	// Stdout is the captured standard output.
	Stdout []byte
	// Stderr is the captured standard error.
	Stderr []byte
	// ExitCode is the process exit code. Zero on success.
	ExitCode int
}

// CommandRunner defines the interface for running external commands to
// completion. This abstraction allows mocking worker invocations in tests.
type CommandRunner interface {
	// Run executes a command and blocks until it exits. The working
	// directory is set to workDir if non-empty. A non-zero exit code is
	// reported via Result, not err; err is reserved for spawn failures.
	Run(ctx context.Context, workDir string, name string, args ...string) (*Result, error)
}
