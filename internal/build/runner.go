// Package build compiles generated backend code to verify it.
package build

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/dyluth/autumn/internal/logging"
	"go.uber.org/zap"
)

// maxOutputSize is the maximum number of bytes kept from build stdout/stderr (10MB)
const maxOutputSize = 10 * 1024 * 1024

// Result is the outcome of one build.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// Succeeded reports whether the build exited zero.
func (r Result) Succeeded() bool {
	return r.ExitCode == 0
}

// Runner compiles the project in dir. A build that runs and fails is a Result
// with a non-zero exit code, not an error; errors mean the build could not run.
type Runner interface {
	RunBuild(ctx context.Context, dir string) (Result, error)
}

// CommandRunner runs a fixed command as a subprocess.
type CommandRunner struct {
	command []string
	timeout time.Duration
	logger  *zap.Logger
}

// NewCommandRunner creates a runner for command (e.g. ["cargo", "build"]).
func NewCommandRunner(command []string, timeout time.Duration, logger *zap.Logger) *CommandRunner {
	return &CommandRunner{
		command: append([]string(nil), command...),
		timeout: timeout,
		logger:  logger.With(logging.Component("build")),
	}
}

// RunBuild implements Runner.
func (r *CommandRunner) RunBuild(ctx context.Context, dir string) (Result, error) {
	if len(r.command) == 0 {
		return Result{ExitCode: -1}, fmt.Errorf("build command is empty")
	}

	// Fail fast on a missing build directory
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return Result{ExitCode: -1}, fmt.Errorf("build directory %s does not exist", dir)
	}

	execCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, r.command[0], r.command[1:]...)
	cmd.Dir = dir

	stdoutBuf := &bytes.Buffer{}
	stderrBuf := &bytes.Buffer{}
	cmd.Stdout = &limitedWriter{w: stdoutBuf, limit: maxOutputSize}
	cmd.Stderr = &limitedWriter{w: stderrBuf, limit: maxOutputSize}

	r.logger.Info("build started",
		logging.Event("build_started"),
		zap.Strings("command", r.command),
		zap.String("dir", dir))

	start := time.Now()
	err := cmd.Run()
	result := Result{
		Stdout:   stdoutBuf.String(),
		Stderr:   stderrBuf.String(),
		Duration: time.Since(start),
	}

	if err != nil {
		var exitErr *exec.ExitError
		switch {
		case execCtx.Err() == context.DeadlineExceeded:
			result.ExitCode = -1
			return result, fmt.Errorf("build timed out after %s", r.timeout)
		case errors.As(err, &exitErr):
			result.ExitCode = exitErr.ExitCode()
		default:
			result.ExitCode = -1
			return result, fmt.Errorf("failed to run %s: %w", r.command[0], err)
		}
	}

	r.logger.Info("build finished",
		logging.Event("build_finished"),
		zap.Int("exit_code", result.ExitCode),
		zap.Duration("duration", result.Duration))

	return result, nil
}

// limitedWriter wraps a writer and enforces a size limit.
// Writes past the limit are discarded but reported as successful so the
// subprocess is never blocked.
type limitedWriter struct {
	w       io.Writer
	limit   int
	written int
}

func (lw *limitedWriter) Write(p []byte) (n int, err error) {
	remaining := lw.limit - lw.written
	if remaining <= 0 {
		return len(p), nil
	}

	toWrite := p
	if len(p) > remaining {
		toWrite = p[:remaining]
	}

	n, err = lw.w.Write(toWrite)
	lw.written += n
	return len(p), err
}
