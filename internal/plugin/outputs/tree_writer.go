package outputs

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/sliink/mensura/internal/model"
	"github.com/sliink/mensura/internal/plugin"
	"github.com/sliink/mensura/internal/plugin/services"
	"github.com/sliink/mensura/internal/storage"
)

const defaultBatchSize = 1000

// TreeWriter stores the events reaching it in the output file of the dataset.
// All events of a dataset are written in a single transaction.
type TreeWriter struct {
	plugin.BasePlugin
	source    string
	weight    string
	output    string
	branches  []string
	batchSize int

	events  model.EventSource
	weights model.WeightSource
	tx      *sql.Tx
	pending []storage.EventRow
	written int64
}

// NewTreeWriter creates a new tree writer. When weight names a plugin, its weight is stored
// instead of the generator weight.
func NewTreeWriter(name, source, weight, output string, branches []string, batchSize int) *TreeWriter {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &TreeWriter{
		BasePlugin: plugin.NewBasePlugin(name, model.CategoryAnalysis),
		source:     source,
		weight:     weight,
		output:     output,
		branches:   branches,
		batchSize:  batchSize,
	}
}

// NewTreeWriterCreator returns the catalog creator of the writer.
// Options: output (service, default "Output"), source (default "Reader"), weight (plugin),
// branches, batch_size.
func NewTreeWriterCreator() plugin.PluginCreator {
	return func(name string, opts plugin.Options, env plugin.Env) (model.PluginFactory, error) {
		if err := opts.Check("output", "source", "weight", "branches", "batch_size"); err != nil {
			return nil, err
		}
		output, err := opts.String("output", "Output")
		if err != nil {
			return nil, err
		}
		source, err := opts.String("source", "Reader")
		if err != nil {
			return nil, err
		}
		weight, err := opts.String("weight", "")
		if err != nil {
			return nil, err
		}
		branches, err := opts.Strings("branches")
		if err != nil {
			return nil, err
		}
		batchSize, err := opts.Int("batch_size", defaultBatchSize)
		if err != nil {
			return nil, err
		}
		if batchSize <= 0 {
			return nil, errors.New("batch_size must be positive")
		}

		return func() model.Plugin {
			return NewTreeWriter(name, source, weight, output, branches, batchSize)
		}, nil
	}
}

// BeginRun starts the transaction of the dataset
func (w *TreeWriter) BeginRun(rc model.RunContext, dataset model.Dataset) error {
	events, err := model.DependencyAs[model.EventSource](rc, w.source)
	if err != nil {
		return err
	}
	var weights model.WeightSource
	if w.weight != "" {
		if weights, err = model.DependencyAs[model.WeightSource](rc, w.weight); err != nil {
			return err
		}
	}
	store, err := model.ServiceAs[services.OutputStore](rc, w.output)
	if err != nil {
		return err
	}
	if store.DB() == nil {
		return fmt.Errorf("output service %q has no open file", w.output)
	}

	tx, err := store.DB().BeginTx(rc.Context(), nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	w.events = events
	w.weights = weights
	w.tx = tx
	w.pending = w.pending[:0]
	w.written = 0
	return nil
}

// ProcessEvent queues the current event for writing
func (w *TreeWriter) ProcessEvent(rc model.RunContext) (bool, error) {
	event := w.events.Event()
	row := storage.EventRow{
		Writer: w.Name(),
		ID:     event.ID,
		Weight: event.Weight,
	}
	if w.weights != nil {
		row.Weight = w.weights.Weight()
	}
	if w.branches != nil {
		row.Values = make(map[string]float64, len(w.branches))
		for _, name := range w.branches {
			v, ok := event.Value(name)
			if !ok {
				return false, fmt.Errorf("event %s has no branch %q", event.ID, name)
			}
			row.Values[name] = v
		}
	} else {
		row.Values = make(map[string]float64, len(event.Values))
		for k, v := range event.Values {
			row.Values[k] = v
		}
	}

	w.pending = append(w.pending, row)
	if len(w.pending) >= w.batchSize {
		if err := w.flush(rc, w.tx); err != nil {
			return false, err
		}
	}
	return true, nil
}

// EndRun writes the remaining events and commits. The events of a failed dataset are rolled back.
func (w *TreeWriter) EndRun(rc model.RunContext) error {
	if w.tx == nil {
		return nil
	}
	tx := w.tx
	w.tx = nil

	if rc.Failed() {
		w.pending = w.pending[:0]
		// A cancelled context has already rolled the transaction back
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			return fmt.Errorf("failed to roll back events: %w", err)
		}
		rc.Logger().Debug("Events of the failed dataset discarded")
		return nil
	}

	if err := w.flush(rc, tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit events: %w", err)
	}

	rc.Logger().Debug("Events written", "events", w.written)
	return nil
}

// Written returns the number of events stored in the current dataset
func (w *TreeWriter) Written() int64 {
	return w.written
}

func (w *TreeWriter) flush(rc model.RunContext, tx *sql.Tx) error {
	if len(w.pending) == 0 {
		return nil
	}
	if err := storage.InsertEvents(rc.Context(), tx, w.pending); err != nil {
		return err
	}
	w.written += int64(len(w.pending))
	w.pending = w.pending[:0]
	return nil
}
