package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Source Source `yaml:"source"`
	Model  Model  `yaml:"model"`
	Topics Topics `yaml:"topics"`
	Output Output `yaml:"output"`
	Server Server `yaml:"server"`
}

// Source configures the Reddit listing API client.
type Source struct {
	Subreddit string `yaml:"subreddit"`
	BaseURL   string `yaml:"base_url"`
	UserAgent string `yaml:"user_agent"`
	PauseMS   int    `yaml:"pause_ms"`
	MaxPosts  int    `yaml:"max_posts"`
}

// Model configures the inference server and the flagging thresholds.
// Swapping model variants (7-facet toxicity vs binary hate) is a config
// change only: point base_url/name at the other server and supply its
// threshold table.
type Model struct {
	BaseURL    string               `yaml:"base_url"`
	Name       string               `yaml:"name"`
	BatchSize  int                  `yaml:"batch_size"`
	MaxLength  int                  `yaml:"max_length"`
	Thresholds map[string]Threshold `yaml:"thresholds"`
}

// Threshold is a pair of probability cutoffs for one label. High flags the
// item; medium is the dashboard's warning bucket. High should be >= medium.
type Threshold struct {
	High   float64 `yaml:"high"`
	Medium float64 `yaml:"medium"`
}

// Topics configures the mention aggregator's term patterns. Terms is the
// legacy flat table; Categories groups terms for the categorized rollup.
type Topics struct {
	Terms      map[string]string            `yaml:"terms"`
	Categories map[string]map[string]string `yaml:"categories"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Server struct {
	Port int `yaml:"port"`
}

// ConfigDir returns the XDG config directory for subscope.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "subscope")
}

// DataDir returns the XDG data directory for subscope.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "subscope")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/subscope/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'subscope init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// Default returns the built-in configuration.
func Default() (*Config, error) {
	return parse(nil)
}

// parse layers user YAML over the embedded defaults. Maps supplied by the
// user (thresholds, term tables) replace the default map wholesale.
func parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(DefaultConfigYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing default config: %w", err)
	}
	if len(data) > 0 {
		var user Config
		if err := yaml.Unmarshal(data, &user); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
		// yaml merges into existing maps, but a user-supplied table must win
		// outright: merging cutoffs across model variants makes no sense.
		if user.Model.Thresholds != nil {
			cfg.Model.Thresholds = nil
		}
		if user.Topics.Terms != nil {
			cfg.Topics.Terms = nil
		}
		if user.Topics.Categories != nil {
			cfg.Topics.Categories = nil
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}
	return cfg, nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
