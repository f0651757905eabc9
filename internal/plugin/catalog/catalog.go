// Package catalog registers every plugin and service type shipped with mensura.
package catalog

import (
	"github.com/sliink/mensura/internal/config"
	"github.com/sliink/mensura/internal/plugin"
	"github.com/sliink/mensura/internal/plugin/inputs"
	"github.com/sliink/mensura/internal/plugin/outputs"
	"github.com/sliink/mensura/internal/plugin/processors"
	"github.com/sliink/mensura/internal/plugin/services"
)

// Type names used in configuration files
const (
	TypeNtupleReader   = "NtupleReader"
	TypeEventIDFilter  = "EventIDFilter"
	TypeLumiMaskFilter = "LumiMaskFilter"
	TypeRangeFilter    = "RangeFilter"
	TypeEventWeight    = "EventWeight"
	TypeEventCounter   = "EventCounter"
	TypeEventPrinter   = "EventPrinter"
	TypeTreeWriter     = "TreeWriter"
	TypeOutputService  = "OutputService"
)

// NewFactory returns a factory knowing all standard types
func NewFactory(env plugin.Env) *plugin.Factory {
	f := plugin.NewFactory(env)
	RegisterStandard(f)
	return f
}

// RegisterStandard registers all standard types with f
func RegisterStandard(f *plugin.Factory) {
	f.RegisterPlugin(TypeNtupleReader, inputs.NewNtupleReaderCreator())

	f.RegisterPlugin(TypeEventIDFilter, processors.NewEventIDFilterCreator())
	f.RegisterPlugin(TypeLumiMaskFilter, processors.NewLumiMaskFilterCreator())
	f.RegisterPlugin(TypeRangeFilter, processors.NewRangeFilterCreator())
	f.RegisterPlugin(TypeEventWeight, processors.NewEventWeightCreator())

	f.RegisterPlugin(TypeEventCounter, outputs.NewEventCounterCreator())
	f.RegisterPlugin(TypeEventPrinter, outputs.NewEventPrinterCreator())
	f.RegisterPlugin(TypeTreeWriter, outputs.NewTreeWriterCreator())

	f.RegisterService(TypeOutputService, services.NewOutputServiceCreator())
}

// Install builds the units declared in cfg with the standard types and registers them with
// target. Relative option paths are resolved against the configuration directory.
func Install(target plugin.Target, cfg *config.Config, env plugin.Env) ([]string, error) {
	if env.BaseDir == "" {
		env.BaseDir = cfg.BaseDir
	}
	return plugin.Install(target, cfg, NewFactory(env))
}
