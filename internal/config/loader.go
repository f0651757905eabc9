package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

const (
	defaultLogLevel      = "info"
	defaultLogFormat     = "json"
	defaultAPIHost       = "127.0.0.1"
	defaultAPIPort       = 8080
	defaultLoadFraction  = 1.0
	defaultFailurePolicy = "abort"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads, parses and validates a configuration file
func Load(configPath string) (*Config, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", absPath, err)
	}
	cfg.BaseDir = filepath.Dir(absPath)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", absPath, err)
	}
	return cfg, nil
}

// Parse decodes configuration data, expands ${VAR} references and applies defaults.
// Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	expanded, err := interpolateEnv(string(data))
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	decoder := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyDefaults(cfg)
	return cfg, nil
}

// ResolvePath makes a relative path absolute with respect to the configuration directory
func (c *Config) ResolvePath(path string) string {
	if path == "" || filepath.IsAbs(path) || c.BaseDir == "" {
		return path
	}
	return filepath.Join(c.BaseDir, path)
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = defaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = defaultLogFormat
	}
	if cfg.API.Host == "" {
		cfg.API.Host = defaultAPIHost
	}
	if cfg.API.Port == 0 {
		cfg.API.Port = defaultAPIPort
	}
	if cfg.Run.Threads == 0 && cfg.Run.LoadFraction == 0 {
		cfg.Run.LoadFraction = defaultLoadFraction
	}
	if cfg.Run.FailurePolicy == "" {
		cfg.Run.FailurePolicy = defaultFailurePolicy
	}
}

// interpolateEnv replaces ${VAR} with the value of the environment variable.
// An unset variable is an error.
func interpolateEnv(input string) (string, error) {
	var missing []string
	out := envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		name := envVarPattern.FindStringSubmatch(match)[1]
		value, ok := os.LookupEnv(name)
		if !ok {
			missing = append(missing, name)
			return match
		}
		return value
	})

	if len(missing) > 0 {
		return "", fmt.Errorf("unresolved environment variables: %v", missing)
	}
	return out, nil
}
