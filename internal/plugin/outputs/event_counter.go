package outputs

import (
	"github.com/sliink/mensura/internal/model"
	"github.com/sliink/mensura/internal/plugin"
	"github.com/sliink/mensura/internal/plugin/services"
	"github.com/sliink/mensura/internal/storage"
)

// EventCounter counts the events reaching its position in the path. Placed after every
// selection step, a set of counters forms a cut flow.
type EventCounter struct {
	plugin.BasePlugin
	weight   string
	output   string
	position int

	weights      model.WeightSource
	store        services.OutputStore
	events       int64
	sumWeights   float64
	sumWeightsSq float64
}

// NewEventCounter creates a new event counter. When weight names a plugin, weighted sums are
// accumulated as well. When output names a service, the counts are stored in its file.
func NewEventCounter(name, weight, output string, position int) *EventCounter {
	return &EventCounter{
		BasePlugin: plugin.NewBasePlugin(name, model.CategoryAnalysis),
		weight:     weight,
		output:     output,
		position:   position,
	}
}

// NewEventCounterCreator returns the catalog creator of the counter.
// Options: weight (plugin), output (service), position (order in the stored cut flow).
func NewEventCounterCreator() plugin.PluginCreator {
	return func(name string, opts plugin.Options, env plugin.Env) (model.PluginFactory, error) {
		if err := opts.Check("weight", "output", "position"); err != nil {
			return nil, err
		}
		weight, err := opts.String("weight", "")
		if err != nil {
			return nil, err
		}
		output, err := opts.String("output", "")
		if err != nil {
			return nil, err
		}
		position, err := opts.Int("position", 0)
		if err != nil {
			return nil, err
		}

		return func() model.Plugin {
			return NewEventCounter(name, weight, output, position)
		}, nil
	}
}

// BeginRun resets the counts
func (c *EventCounter) BeginRun(rc model.RunContext, dataset model.Dataset) error {
	c.events, c.sumWeights, c.sumWeightsSq = 0, 0, 0
	c.weights, c.store = nil, nil

	if c.weight != "" {
		weights, err := model.DependencyAs[model.WeightSource](rc, c.weight)
		if err != nil {
			return err
		}
		c.weights = weights
	}
	if c.output != "" {
		store, err := model.ServiceAs[services.OutputStore](rc, c.output)
		if err != nil {
			return err
		}
		c.store = store
	}
	return nil
}

// ProcessEvent counts the current event. It never rejects events.
func (c *EventCounter) ProcessEvent(rc model.RunContext) (bool, error) {
	w := 1.0
	if c.weights != nil {
		w = c.weights.Weight()
	}
	c.events++
	c.sumWeights += w
	c.sumWeightsSq += w * w
	return true, nil
}

// EndRun reports the counts and stores them if an output service is configured. Nothing is
// reported for a failed dataset.
func (c *EventCounter) EndRun(rc model.RunContext) error {
	if rc.Failed() {
		rc.Logger().Debug("Counts of the failed dataset discarded", "events", c.events)
		return nil
	}

	rc.Logger().Info("Events counted", "events", c.events, "sum_weights", c.sumWeights)
	if c.store == nil || c.store.DB() == nil {
		return nil
	}

	return storage.WriteCutflow(rc.Context(), c.store.DB(), storage.CutflowRow{
		Counter:      c.Name(),
		Position:     c.position,
		Events:       c.events,
		SumWeights:   c.sumWeights,
		SumWeightsSq: c.sumWeightsSq,
	})
}

// Events returns the number of events counted in the current dataset
func (c *EventCounter) Events() int64 {
	return c.events
}

// SumWeights returns the sum of event weights and the sum of their squares
func (c *EventCounter) SumWeights() (float64, float64) {
	return c.sumWeights, c.sumWeightsSq
}
