package core

import (
	"context"
	"log/slog"

	"github.com/sliink/mensura/internal/model"
)

// runContext is the handle a processor passes to one of its units
type runContext struct {
	processor *Processor
	unit      string
	position  int // index in the path, -1 for services
	base      *slog.Logger
	logger    *slog.Logger
}

func (rc *runContext) Context() context.Context {
	return rc.processor.context()
}

func (rc *runContext) Logger() *slog.Logger {
	return rc.logger
}

func (rc *runContext) RunID() string {
	return rc.processor.RunID()
}

func (rc *runContext) Service(name string) (model.Service, error) {
	return rc.processor.Service(name)
}

func (rc *runContext) DependencyPlugin(name string) (model.Plugin, error) {
	return rc.processor.pluginBefore(name, rc.position, rc.unit)
}

func (rc *runContext) Failed() bool {
	return rc.processor.failed
}
