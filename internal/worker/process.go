package worker

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"
)

// killGrace is how long a cancelled worker gets between SIGTERM and SIGKILL.
const killGrace = 3 * time.Second

// Process manages one worker CLI subprocess in streaming mode.
type Process struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr io.ReadCloser

	eventCh   chan StreamEvent
	stderrBuf []byte
	scanErr   error
	mu        sync.Mutex
	started   bool
	done      chan struct{}
}

// StartOptions contains optional parameters for starting a worker process.
type StartOptions struct {
	// Model is the model override, if any.
	Model string
	// Tools is the tool allowlist, if any.
	Tools []string
	// SystemPromptPath points to a file with system prompt text, if any.
	SystemPromptPath string
	// WorkingDir is the subprocess working directory, if any.
	WorkingDir string
}

// NewProcess creates a Process that has not been started yet.
func NewProcess() *Process {
	return &Process{
		eventCh: make(chan StreamEvent, 100),
		done:    make(chan struct{}),
	}
}

// StreamArgs builds the worker command line for a streaming invocation.
func StreamArgs(task string, opts StartOptions) []string {
	args := []string{"--mode", "json"}
	args = append(args, BlockingArgs(task, opts)...)
	return args
}

// BlockingArgs builds the worker command line for a blocking invocation,
// where stdout is the plain final answer.
func BlockingArgs(task string, opts StartOptions) []string {
	args := []string{"-p", "--no-session"}
	if opts.Model != "" {
		args = append(args, "--model", opts.Model)
	}
	if len(opts.Tools) > 0 {
		args = append(args, "--tools", strings.Join(opts.Tools, ","))
	}
	if opts.SystemPromptPath != "" {
		args = append(args, "--append-system-prompt", opts.SystemPromptPath)
	}
	args = append(args, "Task: "+task)
	return args
}

// Start launches the worker subprocess in streaming mode. Cancelling ctx
// sends SIGTERM, then SIGKILL after the kill grace period.
func (p *Process) Start(ctx context.Context, workerBin, task string, opts StartOptions) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return fmt.Errorf("process already started")
	}

	cmd := exec.CommandContext(ctx, workerBin, StreamArgs(task, opts)...)
	if opts.WorkingDir != "" {
		cmd.Dir = opts.WorkingDir
	}
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = killGrace

	var err error
	p.stdout, err = cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}
	p.stderr, err = cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start process: %w", err)
	}

	p.cmd = cmd
	p.started = true

	go p.readEvents()
	go p.readStderr()

	return nil
}

// readEvents reads NDJSON events from stdout. Lines that do not parse
// as events are skipped; a truncated trailing line is dropped.
func (p *Process) readEvents() {
	defer close(p.eventCh)
	defer close(p.done)

	scanner := bufio.NewScanner(p.stdout)
	// Large buffer for big tool outputs embedded in one JSON line.
	buf := make([]byte, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		event, err := ParseStreamEvent(line)
		if err != nil {
			continue
		}
		p.eventCh <- event
	}

	if err := scanner.Err(); err != nil {
		p.mu.Lock()
		p.scanErr = err
		p.mu.Unlock()
		// A line over the scanner ceiling stops parsing mid-stream. Keep
		// reading so the worker never blocks writing into a full pipe.
		io.Copy(io.Discard, p.stdout)
	}
}

// readStderr accumulates stderr for post-exit diagnostics.
func (p *Process) readStderr() {
	scanner := bufio.NewScanner(p.stderr)
	buf := make([]byte, 16*1024)
	scanner.Buffer(buf, 256*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		p.mu.Lock()
		p.stderrBuf = append(p.stderrBuf, line...)
		p.stderrBuf = append(p.stderrBuf, '\n')
		p.mu.Unlock()
	}
}

// Events returns the channel of parsed stream events. It is closed when
// stdout is exhausted.
func (p *Process) Events() <-chan StreamEvent {
	return p.eventCh
}

// Wait blocks until the process exits and returns its exit code.
// A process that died to a signal reports exit code 1.
func (p *Process) Wait() int {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return 1
	}
	p.mu.Unlock()

	<-p.done

	if err := p.cmd.Wait(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() >= 0 {
			return exitErr.ExitCode()
		}
		return 1
	}
	return 0
}

// ScanErr returns the stdout read error, if any. Events after the
// failing line are lost; the remaining stream is drained and discarded.
func (p *Process) ScanErr() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.scanErr
}

// Stderr returns the stderr text captured so far.
func (p *Process) Stderr() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return string(p.stderrBuf)
}
