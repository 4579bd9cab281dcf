// Package git reports uncommitted work that a run is about to overwrite.
package git

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrGitNotFound is returned when the git binary is not on PATH.
var ErrGitNotFound = errors.New("git not found in PATH")

// Checker inspects the Git repository containing Dir.
type Checker struct {
	Dir string
}

// NewChecker creates a checker rooted at dir ("" means the working directory).
func NewChecker(dir string) *Checker {
	return &Checker{Dir: dir}
}

func (c *Checker) command(ctx context.Context, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = c.Dir
	return cmd
}

// IsGitRepository checks if Dir is within a Git repository.
func (c *Checker) IsGitRepository(ctx context.Context) (bool, error) {
	if err := c.command(ctx, "rev-parse", "--git-dir").Run(); err != nil {
		var execErr *exec.Error
		if errors.As(err, &execErr) {
			return false, ErrGitNotFound
		}
		return false, nil
	}
	return true, nil
}

// DirtyPaths returns the porcelain status lines for the given paths that have
// uncommitted changes, untracked files included. Outside a repository it
// returns nothing.
func (c *Checker) DirtyPaths(ctx context.Context, paths ...string) ([]string, error) {
	isRepo, err := c.IsGitRepository(ctx)
	if err != nil || !isRepo {
		return nil, err
	}

	args := append([]string{"status", "--porcelain", "--untracked-files=all", "--"}, paths...)
	output, err := c.command(ctx, args...).Output()
	if err != nil {
		return nil, fmt.Errorf("failed to check Git status: %w", err)
	}

	var dirty []string
	for _, line := range strings.Split(strings.TrimRight(string(output), "\n"), "\n") {
		if len(line) < 3 {
			continue
		}
		dirty = append(dirty, line)
	}
	return dirty, nil
}
