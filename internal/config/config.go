package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/dyluth/autumn/internal/abort"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	"go.uber.org/zap/zapcore"
	yamlv3 "gopkg.in/yaml.v3"
)

// DefaultPath is the config file autumn looks for in the working directory.
const DefaultPath = "autumn.yml"

// EnvPrefix prefixes every environment override, e.g. AUTUMN_PROVIDER_API_KEY.
const EnvPrefix = "AUTUMN_"

// Config represents the top-level autumn.yml configuration
type Config struct {
	Provider  ProviderConfig  `koanf:"provider" yaml:"provider"`
	Workspace WorkspaceConfig `koanf:"workspace" yaml:"workspace"`
	Build     BuildConfig     `koanf:"build" yaml:"build"`
	Probe     ProbeConfig     `koanf:"probe" yaml:"probe"`
	Journal   JournalConfig   `koanf:"journal" yaml:"journal"`
	Logging   LoggingConfig   `koanf:"logging" yaml:"logging"`
	Operator  OperatorConfig  `koanf:"operator" yaml:"operator"`
}

// ProviderConfig locates the chat-completions endpoint. All fields but Timeout are required.
type ProviderConfig struct {
	BaseURL      string   `koanf:"base_url" yaml:"base_url"`
	Organization string   `koanf:"organization" yaml:"organization"`
	APIKey       Secret   `koanf:"api_key" yaml:"api_key"`
	Model        string   `koanf:"model" yaml:"model"`
	Timeout      Duration `koanf:"timeout" yaml:"timeout"` // 0 = transport default
}

// WorkspaceConfig names the files the agents read and write.
type WorkspaceConfig struct {
	TemplatePath   string `koanf:"template_path" yaml:"template_path"`
	BackendOutput  string `koanf:"backend_output" yaml:"backend_output"`
	FrontendOutput string `koanf:"frontend_output" yaml:"frontend_output"`
	BuildDir       string `koanf:"build_dir" yaml:"build_dir"`
}

// BuildConfig specifies how generated backend code is compiled
type BuildConfig struct {
	Command []string `koanf:"command" yaml:"command"`
	Timeout Duration `koanf:"timeout" yaml:"timeout"`
	Image   string   `koanf:"image" yaml:"image,omitempty"` // run Command in this Docker image instead of on the host
}

// ProbeConfig bounds the external URL liveness checks
type ProbeConfig struct {
	Timeout     Duration `koanf:"timeout" yaml:"timeout"`
	Concurrency int      `koanf:"concurrency" yaml:"concurrency"`
}

// JournalConfig enables the Redis audit trail when RedisURL is set.
type JournalConfig struct {
	RedisURL  string `koanf:"redis_url" yaml:"redis_url"`
	RunPrefix string `koanf:"run_prefix" yaml:"run_prefix"`
}

// LoggingConfig controls the structured log written to stderr
type LoggingConfig struct {
	Level  string `koanf:"level" yaml:"level"`
	Format string `koanf:"format" yaml:"format"` // "console" or "json"
}

// OperatorConfig controls the human safety gate
type OperatorConfig struct {
	AutoApprove bool `koanf:"auto_approve" yaml:"auto_approve"`
}

// Defaults
const (
	DefaultTemplatePath   = "templates/webserver.rs"
	DefaultBackendOutput  = "web_server/src/main.rs"
	DefaultFrontendOutput = "web_server/static/index.html"
	DefaultBuildDir       = "web_server"
	DefaultBuildTimeout   = 5 * time.Minute
	DefaultProbeTimeout   = 5 * time.Second
	DefaultProbeWorkers   = 4
	DefaultRunPrefix      = "autumn"
	DefaultLogLevel       = "warn"
	DefaultLogFormat      = "console"
)

// DefaultBuildCommand is run in the build directory to verify generated backend code.
var DefaultBuildCommand = []string{"cargo", "build"}

// legacyEnv maps the environment variables of earlier autumn releases onto config keys.
// AUTUMN_* variables take precedence.
var legacyEnv = map[string]string{
	"OPEN_AI_URL":          "provider.base_url",
	"OPEN_AI_ORG":          "provider.organization",
	"OPEN_AI_KEY":          "provider.api_key",
	"LLM_MODEL":            "provider.model",
	"CODE_FILEPATH":        "workspace.template_path",
	"CODE_OUTPUT_FILEPATH": "workspace.backend_output",
}

// Default returns the configuration written by `autumn init`. Provider credentials
// are left empty.
func Default() *Config {
	cfg := &Config{
		Provider: ProviderConfig{
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-4o-mini",
		},
	}
	applyDefaults(cfg)
	return cfg
}

// Load reads autumn.yml from path (skipped when path is empty), applies AUTUMN_*
// environment overrides and defaults, and validates the result. Every failure is
// an abort.KindConfig error.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, abort.New(abort.KindConfig, "load config", fmt.Errorf("failed to read config: %w", err))
		}
		if err := k.Load(rawbytes.Provider(data), yaml.Parser()); err != nil {
			return nil, abort.New(abort.KindConfig, "load config", fmt.Errorf("failed to parse YAML: %w", err))
		}
	}

	if err := k.Load(env.ProviderWithValue("", ".", func(key, value string) (string, interface{}) {
		if value == "" {
			return "", nil
		}
		return legacyEnv[key], value
	}), nil); err != nil {
		return nil, abort.New(abort.KindConfig, "load config", fmt.Errorf("failed to load legacy environment variables: %w", err))
	}

	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, abort.New(abort.KindConfig, "load config", fmt.Errorf("failed to load environment variables: %w", err))
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, abort.New(abort.KindConfig, "load config", fmt.Errorf("failed to unmarshal config: %w", err))
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, abort.New(abort.KindConfig, "load config", fmt.Errorf("invalid configuration: %w", err))
	}

	return &cfg, nil
}

// envKey maps AUTUMN_SECTION_FIELD_NAME to section.field_name. Empty values are
// ignored so an exported-but-blank variable never clears a file setting.
func envKey(key, value string) (string, interface{}) {
	if value == "" {
		return "", nil
	}
	lower := strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 1 {
		return lower, value
	}
	path := parts[0] + "." + parts[1]
	if path == "build.command" {
		// argv, split on whitespace like a shell without quoting
		return path, strings.Fields(value)
	}
	return path, value
}

func applyDefaults(cfg *Config) {
	// Some providers document the full endpoint; the client appends it itself.
	cfg.Provider.BaseURL = strings.TrimSuffix(strings.TrimRight(cfg.Provider.BaseURL, "/"), "/chat/completions")

	if cfg.Workspace.TemplatePath == "" {
		cfg.Workspace.TemplatePath = DefaultTemplatePath
	}
	if cfg.Workspace.BackendOutput == "" {
		cfg.Workspace.BackendOutput = DefaultBackendOutput
	}
	if cfg.Workspace.FrontendOutput == "" {
		cfg.Workspace.FrontendOutput = DefaultFrontendOutput
	}
	if cfg.Workspace.BuildDir == "" {
		cfg.Workspace.BuildDir = DefaultBuildDir
	}
	if len(cfg.Build.Command) == 0 {
		cfg.Build.Command = append([]string(nil), DefaultBuildCommand...)
	}
	if cfg.Build.Timeout == 0 {
		cfg.Build.Timeout = Duration(DefaultBuildTimeout)
	}
	if cfg.Probe.Timeout == 0 {
		cfg.Probe.Timeout = Duration(DefaultProbeTimeout)
	}
	if cfg.Probe.Concurrency == 0 {
		cfg.Probe.Concurrency = DefaultProbeWorkers
	}
	if cfg.Journal.RunPrefix == "" {
		cfg.Journal.RunPrefix = DefaultRunPrefix
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLogFormat
	}
}

// Validate performs strict validation on the configuration
func (c *Config) Validate() error {
	// Required: provider connection
	if c.Provider.BaseURL == "" {
		return fmt.Errorf("provider.base_url is required")
	}
	u, err := url.Parse(c.Provider.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("provider.base_url must be an http(s) URL, got %q", c.Provider.BaseURL)
	}
	if c.Provider.Organization == "" {
		return fmt.Errorf("provider.organization is required")
	}
	if !c.Provider.APIKey.IsSet() {
		return fmt.Errorf("provider.api_key is required")
	}
	if c.Provider.Model == "" {
		return fmt.Errorf("provider.model is required")
	}

	if len(c.Build.Command) == 0 || c.Build.Command[0] == "" {
		return fmt.Errorf("build.command must name an executable")
	}
	if strings.ContainsAny(c.Build.Image, " \t\n") {
		return fmt.Errorf("build.image must be an image reference, got %q", c.Build.Image)
	}

	if c.Probe.Concurrency < 1 {
		return fmt.Errorf("probe.concurrency must be >= 1, got %d", c.Probe.Concurrency)
	}

	if c.Journal.RedisURL != "" && strings.ContainsAny(c.Journal.RunPrefix, ":*") {
		return fmt.Errorf("journal.run_prefix must not contain ':' or '*', got %q", c.Journal.RunPrefix)
	}

	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("invalid logging.level: %s", c.Logging.Level)
	}
	if c.Logging.Format != "console" && c.Logging.Format != "json" {
		return fmt.Errorf("invalid logging.format: %s (must be 'console' or 'json')", c.Logging.Format)
	}

	return nil
}

// Write serializes cfg as YAML to path.
func Write(path string, cfg *Config) error {
	data, err := yamlv3.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
