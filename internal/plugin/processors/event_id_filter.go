package processors

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sliink/mensura/internal/model"
	"github.com/sliink/mensura/internal/plugin"
)

// ErrNotAtomic is returned by filters that need to know which input file an event comes from
var ErrNotAtomic = errors.New("only atomic datasets can be filtered")

// EventIDLists maps the base name of an input file to the IDs of events listed for it
type EventIDLists map[string]map[model.EventID]struct{}

// LoadEventIDLists reads a JSON object mapping input file names to lists of "run:lumi:event"
// strings. Directories in the file names are ignored.
func LoadEventIDLists(path string) (EventIDLists, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read event lists: %w", err)
	}

	var raw map[string][]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse event lists %s: %w", path, err)
	}

	lists := make(EventIDLists, len(raw))
	for file, ids := range raw {
		set := make(map[model.EventID]struct{}, len(ids))
		for _, s := range ids {
			id, err := model.ParseEventID(s)
			if err != nil {
				return nil, fmt.Errorf("%s: file %q: %w", path, file, err)
			}
			set[id] = struct{}{}
		}
		lists[filepath.Base(file)] = set
	}
	return lists, nil
}

// EventIDFilter selects events by their ID using lists given per input file
type EventIDFilter struct {
	plugin.BasePlugin
	source string
	reject bool
	lists  EventIDLists

	ids     model.EventIDSource
	current map[model.EventID]struct{}
}

// NewEventIDFilter creates a new event ID filter. With reject set, listed events are dropped
// and all events of unlisted files pass. Otherwise only listed events pass.
func NewEventIDFilter(name, source string, lists EventIDLists, reject bool) *EventIDFilter {
	return &EventIDFilter{
		BasePlugin: plugin.NewBasePlugin(name, model.CategoryAnalysis),
		source:     source,
		reject:     reject,
		lists:      lists,
	}
}

// NewEventIDFilterCreator returns the catalog creator of the filter.
// Options: lists (path, required), source (default "Reader"), reject (default true).
func NewEventIDFilterCreator() plugin.PluginCreator {
	return func(name string, opts plugin.Options, env plugin.Env) (model.PluginFactory, error) {
		if err := opts.Check("lists", "source", "reject"); err != nil {
			return nil, err
		}
		path, err := opts.RequiredString("lists")
		if err != nil {
			return nil, err
		}
		source, err := opts.String("source", "Reader")
		if err != nil {
			return nil, err
		}
		reject, err := opts.Bool("reject", true)
		if err != nil {
			return nil, err
		}

		// Lists are read once and shared read-only by all instances
		lists, err := LoadEventIDLists(env.Resolve(path))
		if err != nil {
			return nil, err
		}

		return func() model.Plugin {
			return NewEventIDFilter(name, source, lists, reject)
		}, nil
	}
}

// BeginRun selects the list of the input file
func (f *EventIDFilter) BeginRun(rc model.RunContext, dataset model.Dataset) error {
	if !dataset.IsAtomic() {
		return fmt.Errorf("%w: dataset %s", ErrNotAtomic, dataset)
	}

	ids, err := model.DependencyAs[model.EventIDSource](rc, f.source)
	if err != nil {
		return err
	}
	f.ids = ids

	file := dataset.Files()[0]
	f.current = f.lists[filepath.Base(file.Name)]
	if f.current == nil {
		rc.Logger().Debug("No event list for input file", "file", file.Name)
	}
	return nil
}

// ProcessEvent looks the current event up in the list of the input file
func (f *EventIDFilter) ProcessEvent(rc model.RunContext) (bool, error) {
	if f.current == nil {
		return f.reject, nil
	}

	id := f.ids.EventID()
	_, found := f.current[model.EventID{Run: id.Run, LumiBlock: id.LumiBlock, Event: id.Event}]
	return found != f.reject, nil
}
