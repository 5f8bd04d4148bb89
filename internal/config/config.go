package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultAnalyzerURL is the upstream transcript-analysis service used when no
// override is configured.
const DefaultAnalyzerURL = "https://loom-intergration-production.up.railway.app/api/scrape/loom"

// Config models loomify.yml.
type Config struct {
	Analyzer struct {
		URL            string `yaml:"url"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"analyzer"`
	Server struct {
		Addr     string `yaml:"addr"`
		BasePath string `yaml:"base_path"`
	} `yaml:"server"`
}

// Load reads and validates config from the workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns the default config if the file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	var cfg Config
	cfg.Analyzer.URL = DefaultAnalyzerURL
	cfg.Analyzer.TimeoutSeconds = 30
	cfg.Server.Addr = "127.0.0.1:8080"
	cfg.Server.BasePath = "/v0"
	return &cfg
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Analyzer.URL == "" {
		return fmt.Errorf("config.analyzer.url is required")
	}
	u, err := url.Parse(c.Analyzer.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("config.analyzer.url must be an absolute URL")
	}
	if c.Analyzer.TimeoutSeconds <= 0 {
		return fmt.Errorf("config.analyzer.timeout_seconds must be positive")
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("config.server.addr is required")
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "loomify.yml")
}
