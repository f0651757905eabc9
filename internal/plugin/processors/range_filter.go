package processors

import (
	"errors"
	"fmt"
	"math"

	"github.com/sliink/mensura/internal/model"
	"github.com/sliink/mensura/internal/plugin"
)

// RangeFilter keeps events whose value of one branch lies in [Min, Max)
type RangeFilter struct {
	plugin.BasePlugin
	source string
	branch string
	min    float64
	max    float64

	events model.EventSource
}

// NewRangeFilter creates a new range filter. Use math.Inf to leave a side open.
func NewRangeFilter(name, source, branch string, min, max float64) *RangeFilter {
	return &RangeFilter{
		BasePlugin: plugin.NewBasePlugin(name, model.CategoryAnalysis),
		source:     source,
		branch:     branch,
		min:        min,
		max:        max,
	}
}

// NewRangeFilterCreator returns the catalog creator of the filter.
// Options: branch (required), min, max (at least one), source (default "Reader").
func NewRangeFilterCreator() plugin.PluginCreator {
	return func(name string, opts plugin.Options, env plugin.Env) (model.PluginFactory, error) {
		if err := opts.Check("branch", "min", "max", "source"); err != nil {
			return nil, err
		}
		branch, err := opts.RequiredString("branch")
		if err != nil {
			return nil, err
		}
		source, err := opts.String("source", "Reader")
		if err != nil {
			return nil, err
		}
		if !opts.Has("min") && !opts.Has("max") {
			return nil, errors.New("at least one of min and max is required")
		}
		min, err := opts.Float("min", math.Inf(-1))
		if err != nil {
			return nil, err
		}
		max, err := opts.Float("max", math.Inf(1))
		if err != nil {
			return nil, err
		}
		if min >= max {
			return nil, fmt.Errorf("empty range [%v, %v)", min, max)
		}

		return func() model.Plugin {
			return NewRangeFilter(name, source, branch, min, max)
		}, nil
	}
}

// BeginRun locates the plugin providing events
func (f *RangeFilter) BeginRun(rc model.RunContext, dataset model.Dataset) error {
	events, err := model.DependencyAs[model.EventSource](rc, f.source)
	if err != nil {
		return err
	}
	f.events = events
	return nil
}

// ProcessEvent applies the cut. A missing branch is an error.
func (f *RangeFilter) ProcessEvent(rc model.RunContext) (bool, error) {
	event := f.events.Event()
	v, ok := event.Value(f.branch)
	if !ok {
		return false, fmt.Errorf("event %s has no branch %q", event.ID, f.branch)
	}
	return v >= f.min && v < f.max, nil
}
