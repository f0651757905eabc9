package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sliink/mensura/internal/log"
	"github.com/sliink/mensura/internal/model"
)

type serviceSlot struct {
	service model.Service
	rc      *runContext
}

// Processor runs the plugin path over the events of one dataset at a time.
// A processor is not safe for concurrent use; every worker owns its own clone.
type Processor struct {
	registry *Registry
	services []*serviceSlot
	path     *Path

	worker int
	runID  string
	base   *slog.Logger
	logger *slog.Logger

	ctx           context.Context
	dataset       model.Dataset
	begunServices int
	begunPlugins  int
	failed        bool

	BaseComponent
}

// ProcessorOption configures a processor
type ProcessorOption func(*Processor)

// WithLogger sets the logger the processor and its units derive from
func WithLogger(logger *slog.Logger) ProcessorOption {
	return func(p *Processor) {
		p.base = logger
	}
}

// WithWorker sets the worker index used in logs and summaries
func WithWorker(worker int) ProcessorOption {
	return func(p *Processor) {
		p.worker = worker
	}
}

// WithRunID sets the identifier reported through RunContext.RunID
func WithRunID(runID string) ProcessorOption {
	return func(p *Processor) {
		p.runID = runID
	}
}

// NewProcessor creates a processor with an empty path
func NewProcessor(opts ...ProcessorOption) *Processor {
	p := &Processor{
		registry:      NewRegistry(),
		path:          &Path{},
		ctx:           context.Background(),
		BaseComponent: NewBaseComponent("processor", "Processor"),
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.base == nil {
		p.base = log.Get()
	}
	p.logger = log.WithComponent(p.base, "processor").With(slog.Int("worker", p.worker))
	p.id = fmt.Sprintf("processor-%d", p.worker)
	return p
}

// Worker returns the worker index of the processor
func (p *Processor) Worker() int {
	return p.worker
}

// RunID returns the identifier of the run the processor belongs to
func (p *Processor) RunID() string {
	return p.runID
}

// RegisterService instantiates a service through its factory and adds it to the processor
func (p *Processor) RegisterService(factory model.ServiceFactory) error {
	if p.GetStatus() != model.StatusIdle {
		return ErrDatasetOpen
	}

	svc, err := newService(factory)
	if err != nil {
		return err
	}

	if err := p.registry.AddService(ServiceRegistration{Name: svc.Name(), Factory: factory}); err != nil {
		return err
	}

	p.appendService(svc)
	p.logger.Debug("Service registered", "service", svc.Name())
	return nil
}

// RegisterPlugin instantiates a plugin through its factory and appends it to the path.
// All dependencies must already be registered, so the plugin is placed after them.
func (p *Processor) RegisterPlugin(factory model.PluginFactory, dependencies ...string) error {
	if p.GetStatus() != model.StatusIdle {
		return ErrDatasetOpen
	}

	plugin, err := newPlugin(factory)
	if err != nil {
		return err
	}

	reg := PluginRegistration{
		Name:         plugin.Name(),
		Category:     plugin.Category(),
		Dependencies: dependencies,
		Factory:      factory,
	}
	if err := p.registry.AddPlugin(reg); err != nil {
		return err
	}

	p.appendPlugin(plugin, reg.Category)
	p.logger.Debug("Plugin registered", "plugin", plugin.Name(), "category", reg.Category, "position", p.path.Len()-1)
	return nil
}

// Validate checks that the path can process datasets
func (p *Processor) Validate() error {
	return p.registry.Validate()
}

// Clone builds an independent processor from the same registrations.
// Every unit is produced anew by its factory, so no runtime state is shared.
func (p *Processor) Clone(worker int) (*Processor, error) {
	c := NewProcessor(WithLogger(p.base), WithWorker(worker), WithRunID(p.runID))
	c.registry = p.registry.Snapshot()

	for _, reg := range c.registry.Services() {
		svc, err := newService(reg.Factory)
		if err != nil {
			return nil, err
		}
		if svc.Name() != reg.Name {
			return nil, fmt.Errorf("%w: expected service %q, got %q", ErrNameMismatch, reg.Name, svc.Name())
		}
		c.appendService(svc)
	}

	for _, reg := range c.registry.Plugins() {
		plugin, err := newPlugin(reg.Factory)
		if err != nil {
			return nil, err
		}
		if plugin.Name() != reg.Name {
			return nil, fmt.Errorf("%w: expected plugin %q, got %q", ErrNameMismatch, reg.Name, plugin.Name())
		}
		c.appendPlugin(plugin, reg.Category)
	}

	return c, nil
}

// OpenDataset calls BeginRun on all services in registration order, then on all plugins in path order.
// If one of them fails, the units already begun are closed again and the error is returned.
func (p *Processor) OpenDataset(ctx context.Context, dataset model.Dataset) error {
	if p.GetStatus() == model.StatusRunActive {
		return ErrDatasetOpen
	}

	p.ctx = ctx
	p.dataset = dataset
	p.failed = false
	p.annotate(dataset)
	p.SetStatus(model.StatusRunActive)

	label := datasetLabel(dataset)
	p.logger.Debug("Opening dataset", "dataset", dataset.ID, "file", label)

	for i, slot := range p.services {
		if err := guard(func() error { return slot.service.BeginRun(slot.rc, dataset) }); err != nil {
			beginErr := &DatasetError{File: label, Stage: StageBeginRun, Unit: slot.service.Name(), Err: err}
			p.failed = true
			return errors.Join(beginErr, p.CloseDataset())
		}
		p.begunServices = i + 1
	}

	for i, stage := range p.path.stages {
		if err := guard(func() error { return stage.plugin.BeginRun(stage.rc, dataset) }); err != nil {
			beginErr := &DatasetError{File: label, Stage: StageBeginRun, Unit: stage.plugin.Name(), Err: err}
			p.failed = true
			return errors.Join(beginErr, p.CloseDataset())
		}
		p.begunPlugins = i + 1
	}

	return nil
}

// ProcessEvent runs the path once. A NoEvents outcome closes the dataset. After an error the
// dataset is marked as failed and stays open; it has to be closed with CloseDataset.
func (p *Processor) ProcessEvent(ctx context.Context) (model.EventOutcome, error) {
	if p.GetStatus() != model.StatusRunActive {
		return model.OutcomeNoEvents, ErrNoDatasetOpen
	}
	if err := ctx.Err(); err != nil {
		p.failed = true
		return model.OutcomeNoEvents, err
	}
	p.ctx = ctx

	outcome, err := p.path.Walk(datasetLabel(p.dataset))
	if err != nil {
		p.failed = true
		return outcome, err
	}

	if outcome == model.OutcomeNoEvents {
		return outcome, p.CloseDataset()
	}
	return outcome, nil
}

// CloseDataset calls EndRun on the opened plugins in reverse path order, then on the opened
// services in reverse registration order. It does nothing when no dataset is open.
func (p *Processor) CloseDataset() error {
	if p.GetStatus() != model.StatusRunActive {
		return nil
	}

	label := datasetLabel(p.dataset)
	var errs []error

	for i := p.begunPlugins - 1; i >= 0; i-- {
		stage := p.path.stages[i]
		if err := guard(func() error { return stage.plugin.EndRun(stage.rc) }); err != nil {
			errs = append(errs, &DatasetError{File: label, Stage: StageEndRun, Unit: stage.plugin.Name(), Err: err})
		}
	}

	for i := p.begunServices - 1; i >= 0; i-- {
		slot := p.services[i]
		if err := guard(func() error { return slot.service.EndRun(slot.rc) }); err != nil {
			errs = append(errs, &DatasetError{File: label, Stage: StageEndRun, Unit: slot.service.Name(), Err: err})
		}
	}

	p.begunPlugins = 0
	p.begunServices = 0
	p.SetStatus(model.StatusIdle)
	p.logger.Debug("Dataset closed", "dataset", p.dataset.ID, "file", label)

	return errors.Join(errs...)
}

// ProcessDataset opens a dataset, runs the path until the reader is exhausted and closes it.
// It returns the number of events read.
func (p *Processor) ProcessDataset(ctx context.Context, dataset model.Dataset) (int64, error) {
	if err := p.OpenDataset(ctx, dataset); err != nil {
		return 0, err
	}

	var events int64
	for {
		outcome, err := p.ProcessEvent(ctx)
		if err != nil {
			return events, errors.Join(err, p.CloseDataset())
		}
		if outcome == model.OutcomeNoEvents {
			return events, nil
		}
		events++
	}
}

// Stats returns visited and passed counters of every plugin in path order
func (p *Processor) Stats() []model.PluginStat {
	return p.path.Stats()
}

// ResetStats zeroes the counters of every plugin
func (p *Processor) ResetStats() {
	p.path.ResetStats()
}

// Path returns plugin names in path order
func (p *Processor) Path() []string {
	names := make([]string, 0, p.path.Len())
	for _, stage := range p.path.stages {
		names = append(names, stage.plugin.Name())
	}
	return names
}

// Plugins returns the plugin registrations in path order
func (p *Processor) Plugins() []PluginRegistration {
	return p.registry.Plugins()
}

// Plugin returns the plugin with the given name
func (p *Processor) Plugin(name string) (model.Plugin, bool) {
	idx, exists := p.registry.PluginIndex(name)
	if !exists {
		return nil, false
	}
	return p.path.stages[idx].plugin, true
}

// Service returns the service with the given name
func (p *Processor) Service(name string) (model.Service, error) {
	idx, exists := p.registry.ServiceIndex(name)
	if !exists {
		return nil, fmt.Errorf("%w: %q", ErrServiceNotFound, name)
	}
	return p.services[idx].service, nil
}

// pluginBefore finds a plugin placed strictly before the given position
func (p *Processor) pluginBefore(name string, position int, caller string) (model.Plugin, error) {
	idx, exists := p.registry.PluginIndex(name)
	if !exists {
		return nil, fmt.Errorf("%w: %q requested by %q", ErrDependencyNotFound, name, caller)
	}
	if position < 0 || idx >= position {
		return nil, fmt.Errorf("%w: %q requested by %q", ErrDependencyOrder, name, caller)
	}
	return p.path.stages[idx].plugin, nil
}

func (p *Processor) context() context.Context {
	return p.ctx
}

func (p *Processor) appendService(svc model.Service) {
	base := log.WithService(p.logger, svc.Name())
	p.services = append(p.services, &serviceSlot{
		service: svc,
		rc: &runContext{
			processor: p,
			unit:      svc.Name(),
			position:  -1,
			base:      base,
			logger:    base,
		},
	})
}

func (p *Processor) appendPlugin(plugin model.Plugin, category model.PluginCategory) {
	base := log.WithPlugin(p.logger, plugin.Name())
	p.path.append(&pathStage{
		plugin:   plugin,
		category: category,
		rc: &runContext{
			processor: p,
			unit:      plugin.Name(),
			position:  p.path.Len(),
			base:      base,
			logger:    base,
		},
	})
}

// annotate adds the dataset to the loggers handed to units
func (p *Processor) annotate(dataset model.Dataset) {
	label := datasetLabel(dataset)
	for _, slot := range p.services {
		slot.rc.logger = log.WithDataset(slot.rc.base, dataset.ID, label)
	}
	for _, stage := range p.path.stages {
		stage.rc.logger = log.WithDataset(stage.rc.base, dataset.ID, label)
	}
}

func newPlugin(factory model.PluginFactory) (plugin model.Plugin, err error) {
	if factory == nil {
		return nil, errors.New("plugin factory is nil")
	}
	err = guard(func() error {
		plugin = factory()
		return nil
	})
	if err != nil {
		return nil, err
	}
	if plugin == nil {
		return nil, errors.New("plugin factory returned nil")
	}
	if plugin.Name() == "" {
		return nil, ErrEmptyName
	}
	return plugin, nil
}

func newService(factory model.ServiceFactory) (svc model.Service, err error) {
	if factory == nil {
		return nil, errors.New("service factory is nil")
	}
	err = guard(func() error {
		svc = factory()
		return nil
	})
	if err != nil {
		return nil, err
	}
	if svc == nil {
		return nil, errors.New("service factory returned nil")
	}
	if svc.Name() == "" {
		return nil, ErrEmptyName
	}
	return svc, nil
}

// datasetLabel names a dataset in errors: the file for atomic datasets, the ID otherwise
func datasetLabel(dataset model.Dataset) string {
	if dataset.IsAtomic() {
		return dataset.Files()[0].Name
	}
	return dataset.ID
}
