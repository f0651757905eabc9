package core

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyName is returned when a plugin or service reports an empty name
	ErrEmptyName = errors.New("unit name must not be empty")
	// ErrDuplicatePlugin is returned when a plugin name is registered twice
	ErrDuplicatePlugin = errors.New("duplicate plugin name")
	// ErrDuplicateService is returned when a service name is registered twice
	ErrDuplicateService = errors.New("duplicate service name")
	// ErrUnknownDependency is returned when a plugin depends on a plugin that is not registered yet
	ErrUnknownDependency = errors.New("unknown dependency")
	// ErrSelfDependency is returned when a plugin lists itself as a dependency
	ErrSelfDependency = errors.New("plugin depends on itself")
	// ErrDependencyCycle is returned when declared dependencies form a cycle
	ErrDependencyCycle = errors.New("dependency cycle")
	// ErrReaderCount is returned when the path does not hold exactly one reader
	ErrReaderCount = errors.New("path must contain exactly one reader")
	// ErrNameMismatch is returned when a factory produces a unit with a different name
	ErrNameMismatch = errors.New("factory produced a unit with a different name")

	// ErrDependencyNotFound is returned when a requested plugin is not in the path
	ErrDependencyNotFound = errors.New("dependency plugin not found")
	// ErrDependencyOrder is returned when a requested plugin does not precede the caller
	ErrDependencyOrder = errors.New("dependency plugin is not placed before the caller")
	// ErrServiceNotFound is returned when a requested service is not registered
	ErrServiceNotFound = errors.New("service not found")

	// ErrNoDatasetOpen is returned when events are requested without an open dataset
	ErrNoDatasetOpen = errors.New("no dataset is open")
	// ErrDatasetOpen is returned when a dataset is opened while another one is active
	ErrDatasetOpen = errors.New("a dataset is already open")
	// ErrUnitPanic wraps a panic raised inside a plugin or service
	ErrUnitPanic = errors.New("unit panicked")

	// ErrInvalidThreadCount is returned when a run is requested with fewer than one worker
	ErrInvalidThreadCount = errors.New("number of threads must be at least one")
	// ErrRunActive is returned when the run manager is modified during a run
	ErrRunActive = errors.New("a run is already active")
)

// Stage names the lifecycle call in which an error occurred
type Stage string

const (
	// StageBeginRun is the dataset opening stage
	StageBeginRun Stage = "BeginRun"
	// StageProcessEvent is the per-event stage
	StageProcessEvent Stage = "ProcessEvent"
	// StageEndRun is the dataset closing stage
	StageEndRun Stage = "EndRun"
)

// DatasetError reports a failure of one unit while processing a dataset
type DatasetError struct {
	File  string
	Stage Stage
	Unit  string
	Err   error
}

func (e *DatasetError) Error() string {
	return fmt.Sprintf("%s: %s of %q failed: %v", e.File, e.Stage, e.Unit, e.Err)
}

func (e *DatasetError) Unwrap() error {
	return e.Err
}
