// Package scaffold creates the files `autumn init` lays down: a config file, the
// backend code template and the Cargo project the backend is built in.
package scaffold

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dyluth/autumn/internal/config"
	"github.com/dyluth/autumn/internal/printer"
	"gopkg.in/yaml.v3"
)

//go:embed templates/*
var templatesFS embed.FS

// FileInfo represents a file to be created during initialization.
type FileInfo struct {
	Path        string
	Content     []byte
	Permissions os.FileMode
}

// Initialize creates the autumn project structure under root.
// If force is true, existing files it would create are removed first.
func Initialize(root string, force bool) ([]string, error) {
	cfg := config.Default()

	files, err := getTemplateFiles(cfg)
	if err != nil {
		return nil, err
	}

	if force {
		if err := handleForce(root, files); err != nil {
			return nil, err
		}
	}

	created := make([]string, 0, len(files)+1)

	if err := config.Write(filepath.Join(root, config.DefaultPath), cfg); err != nil {
		return nil, err
	}
	created = append(created, config.DefaultPath)

	for _, file := range files {
		path := filepath.Join(root, file.Path)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory for %s: %w", file.Path, err)
		}
		if err := os.WriteFile(path, file.Content, file.Permissions); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", file.Path, err)
		}
		created = append(created, file.Path)
	}

	if err := validateCreatedFiles(root); err != nil {
		return nil, err
	}

	return created, nil
}

// handleForce removes the config file and any template output that would be
// overwritten.
func handleForce(root string, files []FileInfo) error {
	paths := []string{config.DefaultPath}
	for _, f := range files {
		paths = append(paths, f.Path)
	}

	for _, p := range paths {
		full := filepath.Join(root, p)
		if _, err := os.Stat(full); err != nil {
			continue
		}
		printer.Warning("Removing existing %s...\n", p)
		if err := os.Remove(full); err != nil {
			return fmt.Errorf("failed to remove %s: %w", p, err)
		}
	}

	return nil
}

// getTemplateFiles places the embedded templates at the paths cfg expects.
func getTemplateFiles(cfg *config.Config) ([]FileInfo, error) {
	webserver, err := templatesFS.ReadFile("templates/webserver.rs.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to read webserver template: %w", err)
	}

	cargo, err := templatesFS.ReadFile("templates/Cargo.toml.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to read Cargo.toml template: %w", err)
	}

	return []FileInfo{
		{Path: cfg.Workspace.TemplatePath, Content: webserver, Permissions: 0644},
		{Path: filepath.Join(cfg.Workspace.BuildDir, "Cargo.toml"), Content: cargo, Permissions: 0644},
	}, nil
}

// validateCreatedFiles checks the written config is valid YAML.
func validateCreatedFiles(root string) error {
	content, err := os.ReadFile(filepath.Join(root, config.DefaultPath))
	if err != nil {
		return fmt.Errorf("failed to read created %s: %w", config.DefaultPath, err)
	}

	var yamlData interface{}
	if err := yaml.Unmarshal(content, &yamlData); err != nil {
		return fmt.Errorf("created %s is not valid YAML: %w", config.DefaultPath, err)
	}

	return nil
}

// PrintSuccess prints the success message with created files.
func PrintSuccess(created []string) {
	printer.Success("Successfully initialized autumn project!\n")
	printer.Println("\nCreated:")
	for _, p := range created {
		printer.Printf("  ✓ %s\n", p)
	}
	printer.Println("\nNext steps:")
	printer.Printf("  1. Set provider.organization and provider.api_key in %s\n", config.DefaultPath)
	printer.Println("     (or export AUTUMN_PROVIDER_ORGANIZATION and AUTUMN_PROVIDER_API_KEY)")
	printer.Println("  2. Run 'autumn run' and describe the website you want")
}
