package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	cfg, err := Load(filepath.Join("testdata", "run.yaml"))
	require.NoError(t, err)

	t.Run("Sections are decoded", func(t *testing.T) {
		assert.Equal(t, 4, cfg.Run.Threads)
		assert.Equal(t, "continue", cfg.Run.FailurePolicy)
		assert.Equal(t, "debug", cfg.Log.Level)
		assert.Equal(t, "text", cfg.Log.Format)
		assert.True(t, cfg.API.Enabled)
		assert.Equal(t, 9090, cfg.API.Port)
	})

	t.Run("Defaults fill missing values", func(t *testing.T) {
		assert.Equal(t, defaultAPIHost, cfg.API.Host)
	})

	t.Run("Units keep declaration order", func(t *testing.T) {
		require.Len(t, cfg.Plugins, 2)
		assert.Equal(t, "Counter", cfg.Plugins[0].Name)
		assert.Equal(t, []string{"Reader"}, cfg.Plugins[0].DependsOn)
		assert.Equal(t, "output/%.sqlite", cfg.Services[0].Options["path"])
	})

	t.Run("Paths resolve against the config directory", func(t *testing.T) {
		abs, _ := filepath.Abs("testdata")
		assert.Equal(t, abs, cfg.BaseDir)
		assert.Equal(t, filepath.Join(abs, "datasets.json"), cfg.ResolvePath(cfg.Datasets.Database))
		assert.Equal(t, "/abs/file", cfg.ResolvePath("/abs/file"))
	})

	t.Run("Missing file is an error", func(t *testing.T) {
		_, err := Load(filepath.Join("testdata", "missing.yaml"))
		assert.Error(t, err)
	})
}

func TestParse(t *testing.T) {
	t.Run("Empty document gets defaults", func(t *testing.T) {
		cfg, err := Parse(nil)
		require.NoError(t, err)
		assert.Equal(t, defaultLoadFraction, cfg.Run.LoadFraction)
		assert.Equal(t, defaultFailurePolicy, cfg.Run.FailurePolicy)
		assert.Equal(t, defaultLogFormat, cfg.Log.Format)
		assert.NoError(t, Validate(cfg))
	})

	t.Run("Unknown keys are rejected", func(t *testing.T) {
		_, err := Parse([]byte("run:\n  treads: 2\n"))
		assert.Error(t, err)
	})

	t.Run("Environment variables are expanded", func(t *testing.T) {
		t.Setenv("MENSURA_THREADS", "3")
		cfg, err := Parse([]byte("run:\n  threads: ${MENSURA_THREADS}\n"))
		require.NoError(t, err)
		assert.Equal(t, 3, cfg.Run.Threads)
	})

	t.Run("Unset environment variables are an error", func(t *testing.T) {
		os.Unsetenv("MENSURA_UNSET_VARIABLE")
		_, err := Parse([]byte("log:\n  level: ${MENSURA_UNSET_VARIABLE}\n"))
		assert.ErrorContains(t, err, "MENSURA_UNSET_VARIABLE")
	})
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, _ := Parse(nil)
		return cfg
	}

	testCases := []struct {
		name    string
		mutate  func(*Config)
		message string
	}{
		{name: "Negative threads", mutate: func(c *Config) { c.Run.Threads = -1 }, message: "run.threads"},
		{name: "Unknown policy", mutate: func(c *Config) { c.Run.FailurePolicy = "retry" }, message: "failure_policy"},
		{name: "Unknown log level", mutate: func(c *Config) { c.Log.Level = "trace" }, message: "log.level"},
		{name: "Unknown log format", mutate: func(c *Config) { c.Log.Format = "xml" }, message: "log.format"},
		{name: "Port out of range", mutate: func(c *Config) { c.API.Port = 70000 }, message: "api.port"},
		{name: "IDs without database", mutate: func(c *Config) { c.Datasets.IDs = []string{"ttbar"} }, message: "datasets.ids"},
		{name: "Plugin without type", mutate: func(c *Config) { c.Plugins = []UnitConfig{{Name: "Reader"}} }, message: "type is required"},
		{
			name: "Duplicate plugin names",
			mutate: func(c *Config) {
				c.Plugins = []UnitConfig{{Name: "JetMET", Type: "RangeFilter"}, {Name: "JetMET", Type: "RangeFilter"}}
			},
			message: "duplicate name",
		},
		{
			name: "Service with dependencies",
			mutate: func(c *Config) {
				c.Services = []UnitConfig{{Name: "Output", Type: "OutputService", DependsOn: []string{"Reader"}}}
			},
			message: "depends_on",
		},
		{
			name:    "Simulated dataset without normalisation",
			mutate:  func(c *Config) { c.Datasets.Inline = []DatasetConfig{{ID: "ttbar", Files: []string{"a.mpk"}}} },
			message: "cross section",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(cfg)
			assert.ErrorContains(t, Validate(cfg), tc.message)
		})
	}

	t.Run("All problems are reported together", func(t *testing.T) {
		cfg := valid()
		cfg.Run.Threads = -1
		cfg.Log.Level = "trace"
		err := Validate(cfg)
		assert.ErrorContains(t, err, "run.threads")
		assert.ErrorContains(t, err, "log.level")
	})
}
