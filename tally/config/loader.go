package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultPath is picked up from the working directory when present.
	DefaultPath = "stravatally.yaml"
	// EnvPath names an alternate configuration file.
	EnvPath = "STRAVATALLY_CONFIG"
)

// LoadConfig loads and validates configuration from a YAML file.
func LoadConfig(path string) (*TallyConfig, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, &ConfigError{
			Message: fmt.Sprintf("Configuration file not found: %s", path),
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{
			Message: fmt.Sprintf("Error reading configuration file: %v", err),
		}
	}

	cfg, err := parse(data)
	if err != nil {
		return nil, err
	}
	cfg.Digest = HashFromBytes(data)
	return cfg, nil
}

func parse(data []byte) (*TallyConfig, error) {
	// Version may be written unquoted, which YAML reads as a float.
	var head struct {
		Version interface{} `yaml:"version"`
	}
	if err := yaml.Unmarshal(data, &head); err != nil {
		return nil, &ConfigError{
			Message: fmt.Sprintf("Error parsing YAML file: %v", err),
		}
	}
	if version := versionString(head.Version); version != Version {
		return nil, &ConfigError{
			Message: fmt.Sprintf("Invalid version: %v. Expected %s", head.Version, Version),
		}
	}

	var cfg TallyConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, &ConfigError{
			Message: fmt.Sprintf("Invalid configuration: %v", err),
		}
	}
	cfg.Version = Version

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func versionString(v interface{}) string {
	switch v := v.(type) {
	case string:
		return v
	case float64:
		s := strconv.FormatFloat(v, 'f', -1, 64)
		if !strings.Contains(s, ".") {
			s += ".0"
		}
		return s
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Resolve picks the configuration for a run. An explicit path wins, then
// $STRAVATALLY_CONFIG, then ./stravatally.yaml when it exists. With none of
// those the built-in defaults are used. The returned path is empty for
// defaults.
func Resolve(explicit string) (*TallyConfig, string, error) {
	path := explicit
	if path == "" {
		path = os.Getenv(EnvPath)
	}
	if path != "" {
		cfg, err := LoadConfig(path)
		return cfg, path, err
	}

	if _, err := os.Stat(DefaultPath); err == nil {
		cfg, err := LoadConfig(DefaultPath)
		return cfg, DefaultPath, err
	}
	return DefaultConfig(), "", nil
}
