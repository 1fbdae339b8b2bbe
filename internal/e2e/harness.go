// Package e2e provides testing infrastructure for end-to-end CLI tests.
// It includes a test harness for running CLI commands against throwaway
// replica pairs, fixture management, and output capture utilities.
package e2e

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/refsync/refsync/internal/cli"
)

// Result contains the outcome of running a CLI command.
type Result struct {
	// Stdout contains the captured standard output.
	Stdout string
	// Err is the error returned by the CLI command, if any.
	Err error
	// ExitCode is the inferred exit code (0 for success, 1 for error).
	ExitCode int
}

// Success returns true if the command completed without error.
func (r *Result) Success() bool {
	return r.Err == nil
}

// Harness provides a test harness for running E2E CLI tests.
// It manages environment isolation, a pair of replica roots under a
// temp home directory, and stdout capture.
type Harness struct {
	t          *testing.T
	homeDir    string
	localRoot  string
	remoteRoot string
}

// NewHarness creates a new E2E test harness.
// It points HOME at a temp directory so the config file lookup never
// touches the real user config, disables color and progress output for
// stable assertions, and wires REFSYNC_LOCAL/REFSYNC_REMOTE at two
// replica roots inside the test home.
func NewHarness(t *testing.T) *Harness {
	t.Helper()

	homeDir := t.TempDir()

	h := &Harness{
		t:          t,
		homeDir:    homeDir,
		localRoot:  filepath.Join(homeDir, "library-a"),
		remoteRoot: filepath.Join(homeDir, "library-b"),
	}

	t.Setenv("HOME", homeDir)
	t.Setenv("REFSYNC_LOCAL", h.localRoot)
	t.Setenv("REFSYNC_REMOTE", h.remoteRoot)
	t.Setenv("REFSYNC_OUTPUT_COLOR", "never")
	t.Setenv("REFSYNC_OUTPUT_PROGRESS", "never")

	return h
}

// HomeDir returns the isolated home directory for this test harness.
func (h *Harness) HomeDir() string {
	return h.homeDir
}

// LocalRoot returns the path of the local replica root.
func (h *Harness) LocalRoot() string {
	return h.localRoot
}

// RemoteRoot returns the path of the remote replica root.
func (h *Harness) RemoteRoot() string {
	return h.remoteRoot
}

// Run executes a CLI command with the given arguments and captures the output.
// The command is run in an isolated environment with proper stdout capture.
func (h *Harness) Run(args ...string) *Result {
	h.t.Helper()
	return h.run("", args)
}

// RunWithStdin executes a CLI command with stdin input and captures output.
// This is useful for testing the interactive conflict prompt.
func (h *Harness) RunWithStdin(stdin string, args ...string) *Result {
	h.t.Helper()
	return h.run(stdin, args)
}

func (h *Harness) run(stdin string, args []string) *Result {
	h.t.Helper()

	// Prepend "refsync" as the program name if not provided
	if len(args) == 0 || args[0] != "refsync" {
		args = append([]string{"refsync"}, args...)
	}

	if stdin != "" {
		oldStdin := os.Stdin
		stdinR, stdinW, err := os.Pipe()
		if err != nil {
			h.t.Fatalf("failed to create stdin pipe: %v", err)
		}
		go func() {
			defer func() {
				_ = stdinW.Close()
			}()
			_, _ = stdinW.WriteString(stdin)
		}()
		os.Stdin = stdinR
		defer func() { os.Stdin = oldStdin }()
	}

	// Capture stdout
	oldStdout := os.Stdout
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		h.t.Fatalf("failed to create stdout pipe: %v", err)
	}
	os.Stdout = stdoutW

	// Read stdout concurrently to avoid pipe buffer deadlock.
	// If the command outputs more than the pipe buffer size (~64KB),
	// it will block waiting for the buffer to drain. We must read
	// concurrently while the command runs.
	var stdoutBuf bytes.Buffer
	var copyErr error
	copyDone := make(chan struct{})
	go func() {
		defer close(copyDone)
		_, copyErr = io.Copy(&stdoutBuf, stdoutR)
	}()

	ctx := context.Background()
	cmdErr := cli.Run(ctx, args)

	// Restore stdout and close writer to signal EOF to the reader goroutine
	if err := stdoutW.Close(); err != nil {
		h.t.Fatalf("failed to close stdout pipe writer: %v", err)
	}
	os.Stdout = oldStdout

	<-copyDone
	if copyErr != nil {
		h.t.Fatalf("failed to read captured stdout: %v", copyErr)
	}

	exitCode := 0
	if cmdErr != nil {
		exitCode = 1
	}

	return &Result{
		Stdout:   stdoutBuf.String(),
		Err:      cmdErr,
		ExitCode: exitCode,
	}
}
