package processors

import (
	"errors"
	"fmt"

	"github.com/sliink/mensura/internal/model"
	"github.com/sliink/mensura/internal/plugin"
)

// EventWeight normalises simulated events to an integrated luminosity.
//
// The weight of a simulated event is xsec * lumi / (eventsProcessed * meanWeight) * genWeight,
// where the first factors come from the input file and genWeight from the reader. Events of
// collision data get weight 1.
type EventWeight struct {
	plugin.BasePlugin
	source     string
	luminosity float64

	isMC    bool
	reader  model.WeightSource
	files   model.FileSource
	file    string
	scale   float64
	current float64
}

// NewEventWeight creates a new event weight plugin. The luminosity is in inverse picobarns.
func NewEventWeight(name, source string, luminosity float64) *EventWeight {
	return &EventWeight{
		BasePlugin: plugin.NewBasePlugin(name, model.CategoryAnalysis),
		source:     source,
		luminosity: luminosity,
	}
}

// NewEventWeightCreator returns the catalog creator of the plugin.
// Options: luminosity (inverse picobarns, default 1), source (default "Reader").
func NewEventWeightCreator() plugin.PluginCreator {
	return func(name string, opts plugin.Options, env plugin.Env) (model.PluginFactory, error) {
		if err := opts.Check("luminosity", "source"); err != nil {
			return nil, err
		}
		source, err := opts.String("source", "Reader")
		if err != nil {
			return nil, err
		}
		lumi, err := opts.Float("luminosity", 1)
		if err != nil {
			return nil, err
		}
		if lumi <= 0 {
			return nil, errors.New("luminosity must be positive")
		}

		return func() model.Plugin {
			return NewEventWeight(name, source, lumi)
		}, nil
	}
}

// BeginRun locates the reader. Nothing is needed for collision data.
func (w *EventWeight) BeginRun(rc model.RunContext, dataset model.Dataset) error {
	w.isMC = dataset.IsMC()
	w.file = ""
	w.current = 1
	if !w.isMC {
		return nil
	}

	reader, err := model.DependencyAs[model.WeightSource](rc, w.source)
	if err != nil {
		return err
	}
	files, err := model.DependencyAs[model.FileSource](rc, w.source)
	if err != nil {
		return err
	}
	w.reader = reader
	w.files = files
	return nil
}

// ProcessEvent computes the weight of the current event. It never rejects events.
func (w *EventWeight) ProcessEvent(rc model.RunContext) (bool, error) {
	if !w.isMC {
		w.current = 1
		return true, nil
	}

	if file := w.files.CurrentFile(); file.Name != w.file {
		scale, err := normalisation(file, w.luminosity)
		if err != nil {
			return false, err
		}
		w.file = file.Name
		w.scale = scale
	}

	w.current = w.scale * w.reader.Weight()
	return true, nil
}

// Weight returns the weight of the current event
func (w *EventWeight) Weight() float64 {
	return w.current
}

func normalisation(file model.File, luminosity float64) (float64, error) {
	if file.EventsProcessed == 0 || file.MeanWeight == 0 {
		return 0, fmt.Errorf("file %s lacks the number of processed events or the mean weight", file.Name)
	}
	return file.CrossSection * luminosity / (float64(file.EventsProcessed) * file.MeanWeight), nil
}
