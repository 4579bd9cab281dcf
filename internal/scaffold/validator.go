package scaffold

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dyluth/autumn/internal/config"
)

// CheckExisting returns an error if root already holds an autumn config or code
// template.
func CheckExisting(root string) error {
	var existingFiles []string

	for _, p := range []string{config.DefaultPath, config.DefaultTemplatePath} {
		if _, err := os.Stat(filepath.Join(root, p)); err == nil {
			existingFiles = append(existingFiles, p)
		}
	}

	if len(existingFiles) == 0 {
		return nil
	}

	var b strings.Builder
	b.WriteString("project already initialized\n\nFound existing")
	if len(existingFiles) == 1 {
		fmt.Fprintf(&b, ": %s\n", existingFiles[0])
	} else {
		b.WriteString(" files:\n")
		for _, file := range existingFiles {
			fmt.Fprintf(&b, "  - %s\n", file)
		}
	}
	b.WriteString("\nUse 'autumn init --force' to reinitialize (this will overwrite existing configuration)")

	return fmt.Errorf("%s", b.String())
}
