package core

import (
	"fmt"
	"sync"

	"github.com/sliink/mensura/internal/model"
)

// PluginRegistration describes one plugin of the path
type PluginRegistration struct {
	Name         string
	Category     model.PluginCategory
	Dependencies []string
	Factory      model.PluginFactory
}

// ServiceRegistration describes one service of a processor
type ServiceRegistration struct {
	Name    string
	Factory model.ServiceFactory
}

// Registry keeps the ordered plugin and service registrations of a processor
type Registry struct {
	plugins      []PluginRegistration
	pluginIndex  map[string]int
	services     []ServiceRegistration
	serviceIndex map[string]int
	readers      int
	mutex        sync.RWMutex
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		pluginIndex:  make(map[string]int),
		serviceIndex: make(map[string]int),
	}
}

// AddPlugin appends a plugin after all previously registered ones
func (r *Registry) AddPlugin(reg PluginRegistration) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if reg.Name == "" {
		return ErrEmptyName
	}
	if _, exists := r.pluginIndex[reg.Name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicatePlugin, reg.Name)
	}

	// Dependencies must already be in the path
	for _, dep := range reg.Dependencies {
		if dep == reg.Name {
			return fmt.Errorf("%w: %q", ErrSelfDependency, reg.Name)
		}
		if _, exists := r.pluginIndex[dep]; !exists {
			return fmt.Errorf("%w: plugin %q requires %q", ErrUnknownDependency, reg.Name, dep)
		}
	}

	if reg.Category == model.CategoryReader && r.readers > 0 {
		return fmt.Errorf("%w: %q would be a second reader", ErrReaderCount, reg.Name)
	}

	if reg.Category == model.CategoryReader {
		r.readers++
	}
	reg.Dependencies = append([]string(nil), reg.Dependencies...)
	r.pluginIndex[reg.Name] = len(r.plugins)
	r.plugins = append(r.plugins, reg)
	return nil
}

// AddService registers a service
func (r *Registry) AddService(reg ServiceRegistration) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if reg.Name == "" {
		return ErrEmptyName
	}
	if _, exists := r.serviceIndex[reg.Name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateService, reg.Name)
	}

	r.serviceIndex[reg.Name] = len(r.services)
	r.services = append(r.services, reg)
	return nil
}

// Plugins returns the plugin registrations in path order
func (r *Registry) Plugins() []PluginRegistration {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return append([]PluginRegistration(nil), r.plugins...)
}

// Services returns the service registrations in registration order
func (r *Registry) Services() []ServiceRegistration {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return append([]ServiceRegistration(nil), r.services...)
}

// PluginIndex returns the position of a plugin in the path
func (r *Registry) PluginIndex(name string) (int, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	idx, exists := r.pluginIndex[name]
	return idx, exists
}

// ServiceIndex returns the position of a service in registration order
func (r *Registry) ServiceIndex(name string) (int, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	idx, exists := r.serviceIndex[name]
	return idx, exists
}

// Readers returns the number of registered readers
func (r *Registry) Readers() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return r.readers
}

// Validate checks that the path holds exactly one reader
func (r *Registry) Validate() error {
	if n := r.Readers(); n != 1 {
		return fmt.Errorf("%w: found %d", ErrReaderCount, n)
	}
	return nil
}

// Snapshot returns an independent copy of the registry
func (r *Registry) Snapshot() *Registry {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	c := NewRegistry()
	c.readers = r.readers
	for _, reg := range r.plugins {
		reg.Dependencies = append([]string(nil), reg.Dependencies...)
		c.pluginIndex[reg.Name] = len(c.plugins)
		c.plugins = append(c.plugins, reg)
	}
	for _, reg := range r.services {
		c.serviceIndex[reg.Name] = len(c.services)
		c.services = append(c.services, reg)
	}
	return c
}
