package plugin

import (
	"fmt"

	"github.com/sliink/mensura/internal/config"
	"github.com/sliink/mensura/internal/core"
	"github.com/sliink/mensura/internal/model"
)

// Target receives the units built from a configuration. Both core.Processor and
// core.RunManager implement it.
type Target interface {
	RegisterService(factory model.ServiceFactory) error
	RegisterPlugin(factory model.PluginFactory, dependencies ...string) error
}

var (
	_ Target = (*core.Processor)(nil)
	_ Target = (*core.RunManager)(nil)
)

// Install creates the configured services and plugins and registers them with target. Plugins
// are registered in dependency order, keeping the configured order where it is unconstrained.
// It returns the resulting path.
func Install(target Target, cfg *config.Config, factory *Factory) ([]string, error) {
	for _, unit := range cfg.Services {
		svc, err := factory.CreateService(unit.Type, unit.Name, Options(unit.Options))
		if err != nil {
			return nil, err
		}
		if err := target.RegisterService(svc); err != nil {
			return nil, fmt.Errorf("registering service %q: %w", unit.Name, err)
		}
	}

	specs := make([]core.PluginSpec, 0, len(cfg.Plugins))
	units := make(map[string]config.UnitConfig, len(cfg.Plugins))
	for _, unit := range cfg.Plugins {
		specs = append(specs, core.PluginSpec{Name: unit.Name, DependsOn: unit.DependsOn})
		units[unit.Name] = unit
	}

	order, err := core.ResolveOrder(specs)
	if err != nil {
		return nil, err
	}

	path := make([]string, 0, len(order))
	for _, spec := range order {
		unit := units[spec.Name]
		plugin, err := factory.CreatePlugin(unit.Type, unit.Name, Options(unit.Options))
		if err != nil {
			return nil, err
		}
		if err := target.RegisterPlugin(plugin, unit.DependsOn...); err != nil {
			return nil, fmt.Errorf("registering plugin %q: %w", unit.Name, err)
		}
		path = append(path, unit.Name)
	}
	return path, nil
}
