package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// FromFile loads configuration from a file, auto-detecting format by extension.
// Supported extensions: .yaml, .yml, .json, .toml
func FromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	return FromBytes(data, filepath.Ext(path))
}

// FromBytes parses data in the format named by ext (".yaml", "json", ...).
func FromBytes(data []byte, ext string) (Config, error) {
	switch strings.TrimPrefix(strings.ToLower(ext), ".") {
	case "yaml", "yml":
		return FromYAML(data)
	case "json":
		return FromJSON(data)
	case "toml":
		return FromTOML(data)
	default:
		return Config{}, fmt.Errorf("unsupported config file extension: %s", ext)
	}
}

// FromYAML parses YAML data into a Config.
func FromYAML(data []byte) (Config, error) {
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Config{}, fmt.Errorf("parse yaml: %w", err)
	}
	return New(m), nil
}

// FromJSON parses JSON data into a Config.
func FromJSON(data []byte) (Config, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return Config{}, fmt.Errorf("parse json: %w", err)
	}
	return New(m), nil
}

// FromTOML parses TOML data into a Config.
func FromTOML(data []byte) (Config, error) {
	var m map[string]any
	if err := toml.Unmarshal(data, &m); err != nil {
		return Config{}, fmt.Errorf("parse toml: %w", err)
	}
	return New(m), nil
}
