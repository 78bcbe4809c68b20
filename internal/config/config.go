package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models catreview.yml.
type Config struct {
	Category struct {
		ID   string `yaml:"id"`
		Name string `yaml:"name"`
	} `yaml:"category"`
	Auth struct {
		// Password guards the dashboard login. A bearer token minted at
		// login is required for every other endpoint.
		Password        string `yaml:"password"`
		TokenTTLSeconds int    `yaml:"token_ttl_seconds"`
	} `yaml:"auth"`
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	Seed struct {
		// Auto merges the bundled fixture into the workflow at startup.
		Auto bool `yaml:"auto"`
	} `yaml:"seed"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// WebhookConfig describes one event delivery target. An empty events list
// subscribes to everything.
type WebhookConfig struct {
	URL            string   `yaml:"url"`
	Events         []string `yaml:"events"`
	Secret         string   `yaml:"secret"`
	Enabled        *bool    `yaml:"enabled"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create it with catreview init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Category.ID == "" {
		return fmt.Errorf("config.category.id is required")
	}
	if c.Category.Name == "" {
		return fmt.Errorf("config.category.name is required")
	}
	if c.Auth.Password == "" {
		return fmt.Errorf("config.auth.password is required")
	}
	if c.Auth.TokenTTLSeconds < 0 {
		return fmt.Errorf("config.auth.token_ttl_seconds must not be negative")
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "catreview.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault(categoryID string) string {
	return fmt.Sprintf(defaultTemplate, categoryID, categoryID)
}

// Default returns the default Config struct for a category.
func Default(categoryID string) *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(GenerateDefault(categoryID))).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `category:
  id: %s
  name: %s

auth:
  password: demo2024
  token_ttl_seconds: 86400

server:
  addr: :8080

seed:
  auto: true
`
