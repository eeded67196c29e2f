package models

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/andybalholm/cascadia"
	"github.com/dtnitsch/rn-table-scraper/internal/common"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. RNSCRAPE_URLS_MAIN_URL.
const EnvPrefix = "RNSCRAPE"

// Rotation modes.
const (
	RotateAll  = "all"
	RotateLast = "last"
)

// Header modes.
const (
	HeaderModeFlat     = "flat"
	HeaderModeFirstRow = "first-row"
)

// Config is the runtime configuration loaded from config.yaml.
type Config struct {
	URLs       URLsConfig       `yaml:"urls" envconfig:"URLS"`
	Output     OutputConfig     `yaml:"output" envconfig:"OUTPUT"`
	Extraction ExtractionConfig `yaml:"extraction" envconfig:"EXTRACTION"`
	Fetch      FetchConfig      `yaml:"fetch" envconfig:"FETCH"`
	Logging    LogConfig        `yaml:"logging" envconfig:"LOGGING"`
	History    HistoryConfig    `yaml:"history" envconfig:"HISTORY"`
	Metrics    MetricsConfig    `yaml:"metrics" envconfig:"METRICS"`
}

type URLsConfig struct {
	MainURL       string        `yaml:"main_url" envconfig:"MAIN_URL"`
	LinkSelectors LinkSelectors `yaml:"link_selectors" envconfig:"LINK_SELECTORS"`
}

// LinkSelectors locate the latest release notes link on the main page.
type LinkSelectors struct {
	Container string `yaml:"container" envconfig:"CONTAINER"`
	List      string `yaml:"list" envconfig:"LIST"`
}

type OutputConfig struct {
	BaseDir     string `yaml:"base_dir" envconfig:"BASE_DIR"`
	CurrentDir  string `yaml:"current_dir" envconfig:"CURRENT_DIR"`
	PreviousDir string `yaml:"previous_dir" envconfig:"PREVIOUS_DIR"`
	Rotation    string `yaml:"rotation" envconfig:"ROTATION"`
}

type ExtractionConfig struct {
	SectionSelector string `yaml:"section_selector" envconfig:"SECTION_SELECTOR"`
	LabelSelector   string `yaml:"label_selector" envconfig:"LABEL_SELECTOR"`
	TitleTag        string `yaml:"title_tag" envconfig:"TITLE_TAG"`
	HeaderMode      string `yaml:"header_mode" envconfig:"HEADER_MODE"`
}

// FetchConfig controls the HTTP collaborator. Retries default to zero.
type FetchConfig struct {
	Timeout   time.Duration `yaml:"timeout" envconfig:"TIMEOUT"`
	Retries   int           `yaml:"retries" envconfig:"RETRIES"`
	UserAgent string        `yaml:"user_agent" envconfig:"USER_AGENT"`
}

type LogConfig struct {
	Level       string `yaml:"level" envconfig:"LEVEL"`
	Development bool   `yaml:"development" envconfig:"DEVELOPMENT"`
	Dir         string `yaml:"dir" envconfig:"DIR"`
}

type HistoryConfig struct {
	DBPath string `yaml:"db_path" envconfig:"DB_PATH"`
}

type MetricsConfig struct {
	Textfile string `yaml:"textfile" envconfig:"TEXTFILE"`
}

// DefaultConfig returns a config with every optional field filled in.
func DefaultConfig() *Config {
	return &Config{
		Output: OutputConfig{
			BaseDir:     "data",
			CurrentDir:  "current",
			PreviousDir: "previous",
			Rotation:    RotateAll,
		},
		Extraction: ExtractionConfig{
			SectionSelector: `div[class*="rnsub"]`,
			LabelSelector:   "span.AlmaRNTag",
			TitleTag:        "h2",
			HeaderMode:      HeaderModeFlat,
		},
		Fetch: FetchConfig{
			Timeout:   30 * time.Second,
			UserAgent: "rn-table-scraper/1.0",
		},
		Logging: LogConfig{
			Level: "info",
		},
	}
}

// LoadConfig reads the YAML file at path over the defaults, applies
// environment overrides and validates the result.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return nil, &ConfigurationError{Field: "config", Reason: fmt.Sprintf("file not found: %s", path), Err: err}
	case err != nil:
		return nil, &ConfigurationError{Field: "config", Reason: "read failed", Err: err}
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, &ConfigurationError{Field: "config", Reason: "invalid YAML", Err: err}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, &ConfigurationError{Field: "env", Reason: "invalid environment override", Err: err}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every field the pipeline depends on before any network activity.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.URLs.MainURL) == "" {
		return &ConfigurationError{Field: "urls.main_url", Reason: "required"}
	}
	sanitized, invalid := common.SanitizeAndValidateURLs([]string{c.URLs.MainURL})
	if len(invalid) > 0 {
		return &ConfigurationError{Field: "urls.main_url", Reason: fmt.Sprintf("malformed URL %q", c.URLs.MainURL)}
	}
	c.URLs.MainURL = sanitized[0]

	selectors := []struct {
		field string
		value string
	}{
		{"urls.link_selectors.container", c.URLs.LinkSelectors.Container},
		{"urls.link_selectors.list", c.URLs.LinkSelectors.List},
		{"extraction.section_selector", c.Extraction.SectionSelector},
		{"extraction.label_selector", c.Extraction.LabelSelector},
	}
	for _, s := range selectors {
		if strings.TrimSpace(s.value) == "" {
			return &ConfigurationError{Field: s.field, Reason: "required"}
		}
		if _, err := cascadia.Compile(s.value); err != nil {
			return &ConfigurationError{Field: s.field, Reason: "invalid selector", Err: err}
		}
	}

	tag := strings.TrimSpace(c.Extraction.TitleTag)
	if tag == "" || strings.ContainsAny(tag, " .#[>:") {
		return &ConfigurationError{Field: "extraction.title_tag", Reason: fmt.Sprintf("must be a bare tag name, got %q", c.Extraction.TitleTag)}
	}
	c.Extraction.TitleTag = strings.ToLower(tag)

	switch c.Extraction.HeaderMode {
	case HeaderModeFlat, HeaderModeFirstRow:
	default:
		return &ConfigurationError{Field: "extraction.header_mode", Reason: fmt.Sprintf("unknown mode %q", c.Extraction.HeaderMode)}
	}

	if strings.TrimSpace(c.Output.BaseDir) == "" {
		return &ConfigurationError{Field: "output.base_dir", Reason: "required"}
	}
	for field, name := range map[string]string{
		"output.current_dir":  c.Output.CurrentDir,
		"output.previous_dir": c.Output.PreviousDir,
	} {
		if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
			return &ConfigurationError{Field: field, Reason: fmt.Sprintf("must be a plain directory name, got %q", name)}
		}
	}
	if c.Output.CurrentDir == c.Output.PreviousDir {
		return &ConfigurationError{Field: "output.previous_dir", Reason: "must differ from output.current_dir"}
	}
	switch c.Output.Rotation {
	case RotateAll, RotateLast:
	default:
		return &ConfigurationError{Field: "output.rotation", Reason: fmt.Sprintf("unknown mode %q", c.Output.Rotation)}
	}

	if c.Fetch.Timeout < 0 {
		return &ConfigurationError{Field: "fetch.timeout", Reason: "must not be negative"}
	}
	if c.Fetch.Retries < 0 {
		return &ConfigurationError{Field: "fetch.retries", Reason: "must not be negative"}
	}

	return nil
}
