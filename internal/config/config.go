// internal/config/config.go
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileNames are probed in order inside the repository metadata directory
var FileNames = []string{"config.yaml", "config.yml", "config.json"}

type Config struct {
	LogLevel        string   `json:"log_level" yaml:"log_level"` // debug, info, warn, error
	Compress        bool     `json:"compress" yaml:"compress"`
	Strict          bool     `json:"strict" yaml:"strict"` // always re-hash files
	Workers         int      `json:"workers" yaml:"workers"`
	CacheSize       int      `json:"cache_size" yaml:"cache_size"`
	Ignores         []string `json:"ignores" yaml:"ignores"`
	IgnoreDirs      []string `json:"ignore_dirs" yaml:"ignore_dirs"`
	DefaultEncoding string   `json:"default_encoding" yaml:"default_encoding"`
	EOL             string   `json:"eol" yaml:"eol"` // forced output EOL: lf, crlf, cr
}

// Default returns the settings used when no config file exists
func Default() *Config {
	return &Config{
		LogLevel:        "warn",
		Compress:        true,
		Workers:         runtime.NumCPU(),
		CacheSize:       256,
		Ignores:         []string{"*.pyc", "*.o", "*.tmp", "*~"},
		IgnoreDirs:      []string{".git", ".svn", ".hg", ".sos", "node_modules", "__pycache__"},
		DefaultEncoding: "utf-8",
	}
}

// Load reads a JSON or YAML config file on top of the defaults
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, config)
	default:
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadDir loads the first config file found in dir, or the defaults
func LoadDir(dir string) (*Config, error) {
	for _, name := range FileNames {
		config, err := Load(filepath.Join(dir, name))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		return config, err
	}
	return Default(), nil
}

// Validate normalizes and checks the settings
func (c *Config) Validate() error {
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.CacheSize <= 0 {
		c.CacheSize = 1
	}
	if c.DefaultEncoding == "" {
		c.DefaultEncoding = "utf-8"
	}
	if _, err := c.OutputEOL(); err != nil {
		return err
	}
	return nil
}

// OutputEOL translates the eol setting; "" means keep the detected style
func (c *Config) OutputEOL() (string, error) {
	switch strings.ToLower(c.EOL) {
	case "":
		return "", nil
	case "lf":
		return "\n", nil
	case "crlf":
		return "\r\n", nil
	case "cr":
		return "\r", nil
	}
	return "", fmt.Errorf("invalid eol setting %q", c.EOL)
}

// Save writes the config as YAML or JSON depending on the extension of path
func (c *Config) Save(path string) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
