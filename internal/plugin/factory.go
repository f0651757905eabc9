package plugin

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/sliink/mensura/internal/log"
	"github.com/sliink/mensura/internal/model"
)

// Env carries process-wide resources shared by the units a factory creates
type Env struct {
	// Lock guards Out, which is shared by every worker
	Lock   model.LibraryLock
	Out    io.Writer
	Logger *slog.Logger
	// BaseDir is used to resolve relative paths found in options
	BaseDir string
}

// DefaultEnv returns an environment writing to stdout behind a fresh lock
func DefaultEnv() Env {
	return Env{
		Lock:   &sync.Mutex{},
		Out:    os.Stdout,
		Logger: log.Get(),
	}
}

// Resolve makes a relative path absolute with respect to BaseDir
func (e Env) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) || e.BaseDir == "" {
		return path
	}
	return filepath.Join(e.BaseDir, path)
}

// PluginCreator validates the options of a plugin once and returns a factory that builds
// instances for every processor
type PluginCreator func(name string, opts Options, env Env) (model.PluginFactory, error)

// ServiceCreator is the service counterpart of PluginCreator
type ServiceCreator func(name string, opts Options, env Env) (model.ServiceFactory, error)

// Factory creates plugin and service factories based on their type name
type Factory struct {
	env             Env
	pluginCreators  map[string]PluginCreator
	serviceCreators map[string]ServiceCreator
}

// NewFactory creates a new factory. Missing environment fields are filled from DefaultEnv.
func NewFactory(env Env) *Factory {
	def := DefaultEnv()
	if env.Lock == nil {
		env.Lock = def.Lock
	}
	if env.Out == nil {
		env.Out = def.Out
	}
	if env.Logger == nil {
		env.Logger = def.Logger
	}

	return &Factory{
		env:             env,
		pluginCreators:  make(map[string]PluginCreator),
		serviceCreators: make(map[string]ServiceCreator),
	}
}

// Env returns the environment handed to creators
func (f *Factory) Env() Env {
	return f.env
}

// RegisterPlugin registers a plugin creator
func (f *Factory) RegisterPlugin(typeName string, creator PluginCreator) {
	f.pluginCreators[typeName] = creator
}

// RegisterService registers a service creator
func (f *Factory) RegisterService(typeName string, creator ServiceCreator) {
	f.serviceCreators[typeName] = creator
}

// CreatePlugin returns a factory for a plugin of the given type
func (f *Factory) CreatePlugin(typeName, name string, opts Options) (model.PluginFactory, error) {
	creator, exists := f.pluginCreators[typeName]
	if !exists {
		return nil, fmt.Errorf("unknown plugin type: %s", typeName)
	}

	factory, err := creator(name, opts, f.env)
	if err != nil {
		return nil, fmt.Errorf("plugin %q (%s): %w", name, typeName, err)
	}
	return factory, nil
}

// CreateService returns a factory for a service of the given type
func (f *Factory) CreateService(typeName, name string, opts Options) (model.ServiceFactory, error) {
	creator, exists := f.serviceCreators[typeName]
	if !exists {
		return nil, fmt.Errorf("unknown service type: %s", typeName)
	}

	factory, err := creator(name, opts, f.env)
	if err != nil {
		return nil, fmt.Errorf("service %q (%s): %w", name, typeName, err)
	}
	return factory, nil
}

// PluginTypes returns the registered plugin type names in sorted order
func (f *Factory) PluginTypes() []string {
	return sortedKeys(f.pluginCreators)
}

// ServiceTypes returns the registered service type names in sorted order
func (f *Factory) ServiceTypes() []string {
	return sortedKeys(f.serviceCreators)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
