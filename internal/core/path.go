package core

import (
	"fmt"
	"sync/atomic"

	"github.com/sliink/mensura/internal/model"
)

// pathStage represents a single plugin of the path with its counters
type pathStage struct {
	plugin   model.Plugin
	category model.PluginCategory
	rc       *runContext
	visited  atomic.Uint64
	passed   atomic.Uint64
}

// Path is the ordered list of plugins every event goes through
type Path struct {
	stages []*pathStage
}

func (p *Path) append(stage *pathStage) {
	p.stages = append(p.stages, stage)
}

// Len returns the number of plugins in the path
func (p *Path) Len() int {
	return len(p.stages)
}

// Walk sends the current event through the path. It stops at the first plugin whose outcome is
// not Ok and returns that outcome. A plugin that returns NoEvents has not seen an event and is
// not counted as visited. When an error is returned the outcome must be ignored. An empty path
// has no reader and ends the dataset at once.
func (p *Path) Walk(file string) (model.EventOutcome, error) {
	if len(p.stages) == 0 {
		return model.OutcomeNoEvents, nil
	}

	for _, stage := range p.stages {
		var decision bool
		err := guard(func() error {
			var err error
			decision, err = stage.plugin.ProcessEvent(stage.rc)
			return err
		})
		if err != nil {
			stage.visited.Add(1)
			return model.OutcomeNoEvents, &DatasetError{File: file, Stage: StageProcessEvent, Unit: stage.plugin.Name(), Err: err}
		}

		outcome := stage.category.Outcome(decision)
		if outcome == model.OutcomeNoEvents {
			return outcome, nil
		}

		stage.visited.Add(1)
		if outcome != model.OutcomeOk {
			return outcome, nil
		}
		stage.passed.Add(1)
	}

	return model.OutcomeOk, nil
}

// Stats returns the counters of every plugin in path order
func (p *Path) Stats() []model.PluginStat {
	stats := make([]model.PluginStat, 0, len(p.stages))
	for _, stage := range p.stages {
		stats = append(stats, model.PluginStat{
			Plugin:  stage.plugin.Name(),
			Visited: stage.visited.Load(),
			Passed:  stage.passed.Load(),
		})
	}
	return stats
}

// ResetStats zeroes all counters
func (p *Path) ResetStats() {
	for _, stage := range p.stages {
		stage.visited.Store(0)
		stage.passed.Store(0)
	}
}

// guard runs a unit callback and converts a panic into an error
func guard(call func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrUnitPanic, r)
		}
	}()
	return call()
}
