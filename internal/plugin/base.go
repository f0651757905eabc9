package plugin

import (
	"github.com/sliink/mensura/internal/model"
)

// BasePlugin provides the name and category of a plugin and no-op lifecycle hooks
type BasePlugin struct {
	name     string
	category model.PluginCategory
}

// NewBasePlugin creates a new base plugin
func NewBasePlugin(name string, category model.PluginCategory) BasePlugin {
	return BasePlugin{
		name:     name,
		category: category,
	}
}

// Name returns the plugin's unique name within the path
func (p *BasePlugin) Name() string {
	return p.name
}

// Category returns the plugin category
func (p *BasePlugin) Category() model.PluginCategory {
	return p.category
}

// BeginRun does nothing by default
func (p *BasePlugin) BeginRun(model.RunContext, model.Dataset) error {
	return nil
}

// EndRun does nothing by default
func (p *BasePlugin) EndRun(model.RunContext) error {
	return nil
}

// BaseService provides the name of a service and no-op lifecycle hooks
type BaseService struct {
	name string
}

// NewBaseService creates a new base service
func NewBaseService(name string) BaseService {
	return BaseService{name: name}
}

// Name returns the service's unique name
func (s *BaseService) Name() string {
	return s.name
}

// BeginRun does nothing by default
func (s *BaseService) BeginRun(model.RunContext, model.Dataset) error {
	return nil
}

// EndRun does nothing by default
func (s *BaseService) EndRun(model.RunContext) error {
	return nil
}
