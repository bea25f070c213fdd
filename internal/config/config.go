// internal/config/config.go
//
// This package handles configuration and the .reflex directory structure.
// The console keeps its settings and diagnostics log in a .reflex/ folder
// under the directory it is launched from. Run state is never stored here;
// the server owns it.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	// ReflexDir is the name of the directory we create in the working directory
	ReflexDir = ".reflex"

	DefaultBaseURL      = "http://127.0.0.1:8000"
	DefaultPollInterval = 2 * time.Second
	DefaultLogLevel     = "info"
)

const defaultProjectConfigYAML = `# reflex console configuration
version: 1

api:
  # Where the REFLEX pipeline server listens.
  base_url: http://127.0.0.1:8000
  # Per-request timeout. 0 waits for as long as the server takes.
  timeout: 0s

poll:
  interval: 2s

ui:
  # Show provenance (model, prompt, repair attempts) in the detail view.
  show_provenance: false
  # Re-open the current stage when the provenance toggle changes. When false
  # the view updates the next time a stage is selected.
  reactive_provenance: false

log:
  level: info
`

// APIConfig describes how to reach the server.
type APIConfig struct {
	BaseURL string        `yaml:"base_url" validate:"required,url"`
	Timeout time.Duration `yaml:"timeout" validate:"min=0s"`
}

// PollConfig controls the state refresh cadence.
type PollConfig struct {
	Interval time.Duration `yaml:"interval" validate:"min=100ms"`
}

// UIConfig holds viewer preferences.
type UIConfig struct {
	ShowProvenance     bool `yaml:"show_provenance"`
	ReactiveProvenance bool `yaml:"reactive_provenance"`
}

// LogConfig controls the diagnostics log.
type LogConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
}

// ProjectConfig models .reflex/config.yaml.
type ProjectConfig struct {
	Version int        `yaml:"version" validate:"gte=1"`
	API     APIConfig  `yaml:"api"`
	Poll    PollConfig `yaml:"poll"`
	UI      UIConfig   `yaml:"ui"`
	Log     LogConfig  `yaml:"log"`
}

// Overrides carries command-line values that win over file and environment.
// Zero values leave the setting alone.
type Overrides struct {
	BaseURL      string
	PollInterval time.Duration
	Timeout      time.Duration
	LogLevel     string
}

// Config holds the runtime configuration for the console.
type Config struct {
	// ProjectDir is the directory the console was launched from
	ProjectDir string

	// ReflexProjectDir is ProjectDir/.reflex
	ReflexProjectDir string

	Project ProjectConfig
}

var validate = validator.New()

// InitReflexDir creates the .reflex directory structure in the given project
// directory and writes a default config.yaml if none exists.
//
// Structure created:
// .reflex/
// ├── config.yaml
// └── logs/        <- diagnostics log (reflex.log)
func InitReflexDir(projectDir string) error {
	reflexDir := filepath.Join(projectDir, ReflexDir)
	if err := os.MkdirAll(filepath.Join(reflexDir, "logs"), 0o755); err != nil {
		return fmt.Errorf("config: ensure reflex dir: %w", err)
	}
	return ensureProjectConfig(filepath.Join(reflexDir, "config.yaml"))
}

// NewConfig loads .reflex/config.yaml (if present), applies REFLEX_*
// environment variables and then overrides, and validates the result.
func NewConfig(projectDir string, overrides Overrides) (*Config, error) {
	cfg := &Config{
		ProjectDir:       projectDir,
		ReflexProjectDir: filepath.Join(projectDir, ReflexDir),
		Project:          defaultProjectConfig(),
	}
	if err := cfg.loadProjectConfig(); err != nil {
		return nil, err
	}
	cfg.Project.applyEnv()
	cfg.Project.apply(overrides)
	cfg.Project.normalize()
	if err := cfg.Project.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// LogsDir returns the path to the logs directory
func (c *Config) LogsDir() string {
	return filepath.Join(c.ReflexProjectDir, "logs")
}

// LogPath returns the diagnostics log file.
func (c *Config) LogPath() string {
	return filepath.Join(c.LogsDir(), "reflex.log")
}

// ProjectConfigPath returns the on-disk location for the project config file.
func (c *Config) ProjectConfigPath() string {
	return filepath.Join(c.ReflexProjectDir, "config.yaml")
}

// BaseURL returns the server root.
func (c *Config) BaseURL() string {
	return c.Project.API.BaseURL
}

// PollInterval returns the state refresh cadence.
func (c *Config) PollInterval() time.Duration {
	return c.Project.Poll.Interval
}

// SetShowProvenance updates the default provenance toggle and persists it so
// the next session starts the same way.
func (c *Config) SetShowProvenance(show bool) error {
	if c == nil {
		return fmt.Errorf("config: nil receiver")
	}
	if err := c.setFileBool([]string{"ui", "show_provenance"}, show); err != nil {
		return err
	}
	c.Project.UI.ShowProvenance = show
	return nil
}

func (c *Config) loadProjectConfig() error {
	path := c.ProjectConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	parsed := defaultProjectConfig()
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	parsed.normalize()
	if err := parsed.validate(); err != nil {
		return fmt.Errorf("config: %s: %w", path, err)
	}
	c.Project = parsed
	return nil
}

func defaultProjectConfig() ProjectConfig {
	return ProjectConfig{
		Version: 1,
		API:     APIConfig{BaseURL: DefaultBaseURL},
		Poll:    PollConfig{Interval: DefaultPollInterval},
		Log:     LogConfig{Level: DefaultLogLevel},
	}
}

func (pc *ProjectConfig) applyEnv() {
	if base := strings.TrimSpace(os.Getenv("REFLEX_API_BASE")); base != "" {
		pc.API.BaseURL = base
	}
	if value := strings.TrimSpace(os.Getenv("REFLEX_API_TIMEOUT")); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			pc.API.Timeout = d
		}
	}
	if value := strings.TrimSpace(os.Getenv("REFLEX_POLL_INTERVAL")); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			pc.Poll.Interval = d
		} else if ms, err := strconv.Atoi(value); err == nil {
			pc.Poll.Interval = time.Duration(ms) * time.Millisecond
		}
	}
	if level := strings.TrimSpace(os.Getenv("REFLEX_LOG_LEVEL")); level != "" {
		pc.Log.Level = level
	}
	if value := strings.TrimSpace(os.Getenv("REFLEX_SHOW_PROVENANCE")); value != "" {
		if show, err := strconv.ParseBool(value); err == nil {
			pc.UI.ShowProvenance = show
		}
	}
}

func (pc *ProjectConfig) apply(o Overrides) {
	if base := strings.TrimSpace(o.BaseURL); base != "" {
		pc.API.BaseURL = base
	}
	if o.PollInterval > 0 {
		pc.Poll.Interval = o.PollInterval
	}
	if o.Timeout > 0 {
		pc.API.Timeout = o.Timeout
	}
	if level := strings.TrimSpace(o.LogLevel); level != "" {
		pc.Log.Level = level
	}
}

func (pc *ProjectConfig) normalize() {
	if pc.Version == 0 {
		pc.Version = 1
	}
	pc.API.BaseURL = strings.TrimRight(strings.TrimSpace(pc.API.BaseURL), "/")
	if pc.API.BaseURL == "" {
		pc.API.BaseURL = DefaultBaseURL
	}
	if pc.Poll.Interval == 0 {
		pc.Poll.Interval = DefaultPollInterval
	}
	pc.Log.Level = strings.ToLower(strings.TrimSpace(pc.Log.Level))
	if pc.Log.Level == "" {
		pc.Log.Level = DefaultLogLevel
	}
}

func (pc *ProjectConfig) validate() error {
	if err := validate.Struct(pc); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			parts := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				parts = append(parts, fmt.Sprintf("%s failed %q (got %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
			return errors.New(strings.Join(parts, "; "))
		}
		return err
	}
	return nil
}

func ensureProjectConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(defaultProjectConfigYAML), 0644)
}

// setFileBool writes one boolean into the config file. Every other key and
// comment is kept as the file had it; env and flag overrides never reach disk.
func (c *Config) setFileBool(path []string, value bool) error {
	if err := os.MkdirAll(c.ReflexProjectDir, 0o755); err != nil {
		return fmt.Errorf("config: ensure reflex dir: %w", err)
	}
	file := c.ProjectConfigPath()
	data, err := os.ReadFile(file)
	if errors.Is(err, fs.ErrNotExist) {
		data = []byte(defaultProjectConfigYAML)
	} else if err != nil {
		return fmt.Errorf("config: read %s: %w", file, err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("config: parse %s: %w", file, err)
	}
	if doc.Kind == 0 {
		doc = yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}}}
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return fmt.Errorf("config: %s: top level is not a mapping", file)
	}
	setScalar(doc.Content[0], path, "!!bool", strconv.FormatBool(value))

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return fmt.Errorf("config: encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("config: encode config: %w", err)
	}
	if err := os.WriteFile(file, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("config: write project config: %w", err)
	}
	return nil
}

// setScalar sets the value at path inside mapping m, creating missing keys.
func setScalar(m *yaml.Node, path []string, tag, value string) {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value != path[0] {
			continue
		}
		child := m.Content[i+1]
		if len(path) == 1 {
			child.Kind, child.Tag, child.Value, child.Style, child.Content = yaml.ScalarNode, tag, value, 0, nil
			return
		}
		if child.Kind != yaml.MappingNode {
			child.Kind, child.Tag, child.Value, child.Style, child.Content = yaml.MappingNode, "!!map", "", 0, nil
		}
		setScalar(child, path[1:], tag, value)
		return
	}
	key := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: path[0]}
	if len(path) == 1 {
		m.Content = append(m.Content, key, &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: value})
		return
	}
	child := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	m.Content = append(m.Content, key, child)
	setScalar(child, path[1:], tag, value)
}
