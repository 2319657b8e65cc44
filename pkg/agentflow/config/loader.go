package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// decoders maps a file extension to its parser.
var decoders = map[string]func([]byte) (Config, error){
	".yaml": FromYAML,
	".yml":  FromYAML,
	".json": FromJSON,
}

// FromFile loads a service configuration file, picking the parser by
// extension. Deployments typically keep the store section here (driver,
// database path) and pass the result to the checkpoint store factory.
func FromFile(path string) (Config, error) {
	decode, ok := decoders[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return Config{}, fmt.Errorf("config %s: unsupported file extension", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return decode(data)
}

// FromYAML parses a YAML document into a Config.
// Nested mappings stay reachable through Config.Map.
func FromYAML(data []byte) (Config, error) {
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Config{}, fmt.Errorf("parse yaml config: %w", err)
	}
	return New(m), nil
}

// FromJSON parses a JSON document into a Config.
func FromJSON(data []byte) (Config, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return Config{}, fmt.Errorf("parse json config: %w", err)
	}
	return New(m), nil
}
