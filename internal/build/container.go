package build

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/dyluth/autumn/internal/docker"
	"github.com/dyluth/autumn/internal/logging"
	"go.uber.org/zap"
)

// containerWorkdir is where the build directory is mounted inside the container.
const containerWorkdir = "/workspace"

// removeTimeout bounds container cleanup, which runs after the build context may
// already be cancelled.
const removeTimeout = 10 * time.Second

// ContainerRunner runs the build command in a throwaway container with the build
// directory bind-mounted read-write, so the host needs Docker but no toolchain.
type ContainerRunner struct {
	cli     *client.Client
	image   string
	command []string
	timeout time.Duration
	runID   string
	logger  *zap.Logger
}

// NewContainerRunner creates a runner that executes command inside image.
// runID labels the containers it creates and may be empty.
func NewContainerRunner(cli *client.Client, image string, command []string, timeout time.Duration, runID string, logger *zap.Logger) *ContainerRunner {
	return &ContainerRunner{
		cli:     cli,
		image:   image,
		command: append([]string(nil), command...),
		timeout: timeout,
		runID:   runID,
		logger:  logger.With(logging.Component("build"), zap.String("image", image)),
	}
}

// RunBuild implements Runner.
func (r *ContainerRunner) RunBuild(ctx context.Context, dir string) (Result, error) {
	if len(r.command) == 0 {
		return Result{ExitCode: -1}, fmt.Errorf("build command is empty")
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return Result{ExitCode: -1}, fmt.Errorf("failed to resolve build directory %s: %w", dir, err)
	}
	if info, err := os.Stat(abs); err != nil || !info.IsDir() {
		return Result{ExitCode: -1}, fmt.Errorf("build directory %s does not exist", dir)
	}

	execCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	name := docker.ContainerName("build")
	resp, err := r.cli.ContainerCreate(execCtx, &container.Config{
		Image:      r.image,
		Cmd:        r.command,
		WorkingDir: containerWorkdir,
		Labels:     docker.BuildLabels(r.runID, abs, "build"),
	}, &container.HostConfig{
		Mounts: []mount.Mount{{
			Type:   mount.TypeBind,
			Source: abs,
			Target: containerWorkdir,
		}},
	}, nil, nil, name)
	if err != nil {
		return Result{ExitCode: -1}, fmt.Errorf("failed to create build container from %s (is the image pulled?): %w", r.image, err)
	}
	defer r.remove(resp.ID)

	r.logger.Info("build started",
		logging.Event("build_started"),
		zap.String("container_name", name),
		zap.Strings("command", r.command),
		zap.String("dir", abs))

	start := time.Now()
	if err := r.cli.ContainerStart(execCtx, resp.ID, container.StartOptions{}); err != nil {
		return Result{ExitCode: -1}, fmt.Errorf("failed to start build container: %w", err)
	}

	result := Result{ExitCode: -1}
	statusCh, errCh := r.cli.ContainerWait(execCtx, resp.ID, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		result.Duration = time.Since(start)
		if execCtx.Err() == context.DeadlineExceeded {
			return result, fmt.Errorf("build timed out after %s", r.timeout)
		}
		return result, fmt.Errorf("failed waiting for build container: %w", err)
	case status := <-statusCh:
		result.Duration = time.Since(start)
		if status.Error != nil {
			return result, fmt.Errorf("build container failed: %s", status.Error.Message)
		}
		result.ExitCode = int(status.StatusCode)
	}

	result.Stdout, result.Stderr = r.logs(ctx, resp.ID)

	r.logger.Info("build finished",
		logging.Event("build_finished"),
		zap.Int("exit_code", result.ExitCode),
		zap.Duration("duration", result.Duration))

	return result, nil
}

// logs returns the container's demultiplexed stdout and stderr, each capped at
// maxOutputSize. A log retrieval failure is reported in stderr.
func (r *ContainerRunner) logs(ctx context.Context, id string) (string, string) {
	reader, err := r.cli.ContainerLogs(ctx, id, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
	})
	if err != nil {
		return "", fmt.Sprintf("(failed to retrieve logs: %v)", err)
	}
	defer reader.Close()

	stdoutBuf := &bytes.Buffer{}
	stderrBuf := &bytes.Buffer{}
	if _, err := stdcopy.StdCopy(
		&limitedWriter{w: stdoutBuf, limit: maxOutputSize},
		&limitedWriter{w: stderrBuf, limit: maxOutputSize},
		reader,
	); err != nil {
		fmt.Fprintf(stderrBuf, "\n(failed to read logs: %v)", err)
	}
	return stdoutBuf.String(), stderrBuf.String()
}

func (r *ContainerRunner) remove(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), removeTimeout)
	defer cancel()

	if err := r.cli.ContainerRemove(ctx, id, container.RemoveOptions{Force: true}); err != nil {
		r.logger.Warn("failed to remove build container",
			zap.String("container_id", id),
			zap.Error(err))
	}
}
