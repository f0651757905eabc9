package outputs

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/sliink/mensura/internal/model"
	"github.com/sliink/mensura/internal/plugin"
)

const (
	colorReset = "\033[0m"
	colorRed   = "\033[31m"
	colorGreen = "\033[32m"
	colorCyan  = "\033[36m"
)

// EventPrinter writes every event reaching it to a writer shared by all workers
type EventPrinter struct {
	plugin.BasePlugin
	source   string
	format   string
	colorize bool
	branches []string
	out      io.Writer
	lock     model.LibraryLock

	events  model.EventSource
	dataset string
	printed int64
}

// NewEventPrinter creates a new event printer. Access to out is serialized through lock.
func NewEventPrinter(name, source, format string, colorize bool, branches []string, out io.Writer, lock model.LibraryLock) *EventPrinter {
	return &EventPrinter{
		BasePlugin: plugin.NewBasePlugin(name, model.CategoryAnalysis),
		source:     source,
		format:     format,
		colorize:   colorize,
		branches:   branches,
		out:        out,
		lock:       lock,
	}
}

// NewEventPrinterCreator returns the catalog creator of the printer.
// Options: format ("text" or "json"), colorize, branches, source (default "Reader").
func NewEventPrinterCreator() plugin.PluginCreator {
	return func(name string, opts plugin.Options, env plugin.Env) (model.PluginFactory, error) {
		if err := opts.Check("format", "colorize", "branches", "source"); err != nil {
			return nil, err
		}
		format, err := opts.String("format", "text")
		if err != nil {
			return nil, err
		}
		if format != "text" && format != "json" {
			return nil, fmt.Errorf("unknown format %q", format)
		}
		colorize, err := opts.Bool("colorize", false)
		if err != nil {
			return nil, err
		}
		branches, err := opts.Strings("branches")
		if err != nil {
			return nil, err
		}
		source, err := opts.String("source", "Reader")
		if err != nil {
			return nil, err
		}

		return func() model.Plugin {
			return NewEventPrinter(name, source, format, colorize, branches, env.Out, env.Lock)
		}, nil
	}
}

// BeginRun locates the plugin providing events
func (p *EventPrinter) BeginRun(rc model.RunContext, dataset model.Dataset) error {
	events, err := model.DependencyAs[model.EventSource](rc, p.source)
	if err != nil {
		return err
	}
	p.events = events
	p.dataset = dataset.ID
	p.printed = 0
	return nil
}

// ProcessEvent prints the current event. Write errors fail the dataset.
func (p *EventPrinter) ProcessEvent(rc model.RunContext) (bool, error) {
	var line string
	if p.format == "json" {
		data := p.events.Event().ToMap()
		data["dataset"] = p.dataset
		if p.branches != nil {
			data["values"] = p.selected(p.events.Event())
		}
		encoded, err := json.Marshal(data)
		if err != nil {
			return false, err
		}
		line = string(encoded) + "\n"
	} else {
		line = p.text(p.events.Event())
	}

	p.lock.Lock()
	_, err := io.WriteString(p.out, line)
	p.lock.Unlock()
	if err != nil {
		return false, fmt.Errorf("failed to print event: %w", err)
	}

	p.printed++
	return true, nil
}

// EndRun logs the number of printed events
func (p *EventPrinter) EndRun(rc model.RunContext) error {
	rc.Logger().Debug("Events printed", "events", p.printed)
	return nil
}

// text formats an event as "[dataset] run:lumi:event weight=w name=value ..."
func (p *EventPrinter) text(event *model.Event) string {
	id := event.ID.String()
	weight := fmt.Sprintf("weight=%g", event.Weight)
	if p.colorize {
		id = colorGreen + id + colorReset
		if event.Weight < 0 {
			weight = colorRed + weight + colorReset
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s %s", p.dataset, id, weight)

	values := p.selected(event)
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		key := name
		if p.colorize {
			key = colorCyan + name + colorReset
		}
		fmt.Fprintf(&b, " %s=%g", key, values[name])
	}
	b.WriteString("\n")
	return b.String()
}

// selected returns the configured branches, or all of them when none are configured
func (p *EventPrinter) selected(event *model.Event) map[string]float64 {
	if p.branches == nil {
		return event.Values
	}
	values := make(map[string]float64, len(p.branches))
	for _, name := range p.branches {
		if v, ok := event.Value(name); ok {
			values[name] = v
		}
	}
	return values
}
