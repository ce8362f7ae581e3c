package worker

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/ShayCichocki/subtask/pkg/models"
)

// maxDetailLen caps the failure detail carried into a verdict.
const maxDetailLen = 200

// Verdict is the outcome of failure detection over a message log.
type Verdict struct {
	// HasError reports whether a failure signature was found.
	HasError bool
	// ExitCode is the inferred exit code, 1 when no code was embedded.
	ExitCode int
	// Tool names the tool whose result triggered the verdict.
	Tool string
	// Detail is the truncated failure text.
	Detail string
}

// exitCodePattern matches embedded exit-code phrases such as
// "exit code 2", "exit status 127" and "exited with status 1".
var exitCodePattern = regexp.MustCompile(`(?i)\bexit(?:ed)?\s+(?:with\s+)?(?:code|status)\s+(\d+)`)

// fatalPhrases are output fragments that mark a command as failed even
// when the worker reported overall success.
var fatalPhrases = []string{
	"command not found",
	"permission denied",
	"no such file or directory",
	"segmentation fault",
	"killed",
	"terminated",
	"out of memory",
	"connection refused",
	"timeout",
}

// commandTools are the tool names treated as command execution for the
// pattern-match pass.
var commandTools = map[string]bool{
	"bash":    true,
	"shell":   true,
	"command": true,
	"exec":    true,
}

// DetectFailure inspects a completed run's message log for failures the
// worker did not surface in its exit code. The worker can exit zero even
// when a tool operation failed; this is the only place such failures
// become visible to the orchestration layer.
//
// Two passes, first match wins: explicitly error-flagged tool results,
// then pattern matching over command-execution tool output.
func DetectFailure(messages []models.Message) Verdict {
	if v := detectFlaggedError(messages); v.HasError {
		return v
	}
	return detectCommandFailure(messages)
}

// detectFlaggedError finds the first tool result the worker itself
// flagged as an error.
func detectFlaggedError(messages []models.Message) Verdict {
	for _, msg := range messages {
		if msg.Kind != models.MessageToolResult || !msg.IsError {
			continue
		}
		return Verdict{
			HasError: true,
			ExitCode: embeddedExitCode(msg.Text, 1),
			Tool:     msg.Tool,
			Detail:   truncateDetail(msg.Text),
		}
	}
	return Verdict{}
}

// detectCommandFailure scans command-execution tool output for embedded
// nonzero exit codes or known fatal phrases.
func detectCommandFailure(messages []models.Message) Verdict {
	for _, msg := range messages {
		if msg.Kind != models.MessageToolResult || !commandTools[strings.ToLower(msg.Tool)] {
			continue
		}
		code := embeddedExitCode(msg.Text, 0)
		if code == 0 && !containsFatalPhrase(msg.Text) {
			continue
		}
		if code == 0 {
			code = 1
		}
		return Verdict{
			HasError: true,
			ExitCode: code,
			Tool:     msg.Tool,
			Detail:   truncateDetail(msg.Text),
		}
	}
	return Verdict{}
}

// embeddedExitCode extracts an exit-code phrase from text, returning
// fallback if none is found.
func embeddedExitCode(text string, fallback int) int {
	m := exitCodePattern.FindStringSubmatch(text)
	if m == nil {
		return fallback
	}
	code, err := strconv.Atoi(m[1])
	if err != nil {
		return fallback
	}
	return code
}

func containsFatalPhrase(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range fatalPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

func truncateDetail(text string) string {
	text = strings.TrimSpace(text)
	if len(text) <= maxDetailLen {
		return text
	}
	// Back off to a rune boundary so the cut never splits a UTF-8 sequence.
	cut := maxDetailLen
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}
