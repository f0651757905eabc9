package model

import (
	"context"
	"fmt"
	"log/slog"
)

// Plugin is a unit of the per-event execution path
type Plugin interface {
	// Name returns the unique name of the plugin within a path
	Name() string

	// Category tells how the ProcessEvent decision is interpreted
	Category() PluginCategory

	// BeginRun is called when a new dataset is opened
	BeginRun(rc RunContext, dataset Dataset) error

	// ProcessEvent handles the current event and returns its decision
	ProcessEvent(rc RunContext) (bool, error)

	// EndRun is called when the current dataset is closed
	EndRun(rc RunContext) error
}

// Service is a named helper that lives through a dataset but never sees events
type Service interface {
	// Name returns the unique name of the service
	Name() string

	// BeginRun is called when a new dataset is opened, before any plugin
	BeginRun(rc RunContext, dataset Dataset) error

	// EndRun is called after all plugins have been closed
	EndRun(rc RunContext) error
}

// PluginFactory produces a fresh plugin instance for a processor
type PluginFactory func() Plugin

// ServiceFactory produces a fresh service instance for a processor
type ServiceFactory func() Service

//go:generate mockgen -destination=mocks/mock_runcontext.go -package=mocks github.com/sliink/mensura/internal/model RunContext

// RunContext is handed to every lifecycle call and gives access to the owning processor
type RunContext interface {
	// Context returns the context of the current run
	Context() context.Context

	// Logger returns a logger annotated with the calling unit
	Logger() *slog.Logger

	// RunID returns the identifier of the current run
	RunID() string

	// Service looks up a service registered in the same processor
	Service(name string) (Service, error)

	// DependencyPlugin looks up a plugin placed earlier in the path than the caller
	DependencyPlugin(name string) (Plugin, error)

	// Failed reports whether the current dataset failed. Units that write results check it in
	// EndRun and discard what they produced for the dataset.
	Failed() bool
}

// LibraryLock serializes access to a process-wide resource that is not safe for concurrent use
type LibraryLock interface {
	Lock()
	Unlock()
}

// EventSource is implemented by plugins that expose the current event record
type EventSource interface {
	Event() *Event
}

// EventIDSource is implemented by plugins that expose the ID of the current event
type EventIDSource interface {
	EventID() EventID
}

// WeightSource is implemented by plugins that expose a per-event weight
type WeightSource interface {
	Weight() float64
}

// FileSource is implemented by readers that expose the input file being read
type FileSource interface {
	CurrentFile() File
}

// ServiceAs looks up a service and asserts it provides capability T
func ServiceAs[T any](rc RunContext, name string) (T, error) {
	var zero T

	svc, err := rc.Service(name)
	if err != nil {
		return zero, err
	}

	typed, ok := svc.(T)
	if !ok {
		return zero, fmt.Errorf("service %q is %T and does not provide %T", name, svc, &zero)
	}
	return typed, nil
}

// DependencyAs looks up a preceding plugin and asserts it provides capability T
func DependencyAs[T any](rc RunContext, name string) (T, error) {
	var zero T

	p, err := rc.DependencyPlugin(name)
	if err != nil {
		return zero, err
	}

	typed, ok := p.(T)
	if !ok {
		return zero, fmt.Errorf("plugin %q is %T and does not provide %T", name, p, &zero)
	}
	return typed, nil
}
