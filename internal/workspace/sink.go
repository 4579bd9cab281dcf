// Package workspace reads code templates and writes generated code to disk.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
)

// Sink stores generated artefacts. Write fully replaces any existing content.
type Sink interface {
	Write(path, content string) error
	Read(path string) (string, error)
}

// FileSink is a Sink on the local filesystem. Relative paths resolve against Root.
type FileSink struct {
	Root string
}

// NewFileSink creates a sink rooted at root ("" means the working directory).
func NewFileSink(root string) *FileSink {
	return &FileSink{Root: root}
}

func (s *FileSink) resolve(path string) string {
	if filepath.IsAbs(path) || s.Root == "" {
		return path
	}
	return filepath.Join(s.Root, path)
}

// Write creates parent directories as needed and overwrites path with content.
func (s *FileSink) Write(path, content string) error {
	full := s.resolve(path)
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", full, err)
	}
	if err := os.WriteFile(full, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", full, err)
	}
	return nil
}

// Read returns the content of path.
func (s *FileSink) Read(path string) (string, error) {
	data, err := os.ReadFile(s.resolve(path))
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", s.resolve(path), err)
	}
	return string(data), nil
}
