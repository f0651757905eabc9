package processors

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/sliink/mensura/internal/model"
	"github.com/sliink/mensura/internal/plugin"
)

// LumiRange is an inclusive range of luminosity blocks
type LumiRange struct {
	First uint64
	Last  uint64
}

// LumiMask lists the certified luminosity blocks of every run
type LumiMask map[uint64][]LumiRange

// LoadLumiMask reads a mask in the certification JSON format, {"run": [[first, last], ...]}
func LoadLumiMask(path string) (LumiMask, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read lumi mask: %w", err)
	}
	mask, err := ParseLumiMask(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return mask, nil
}

// ParseLumiMask decodes a mask and sorts the ranges of every run
func ParseLumiMask(data []byte) (LumiMask, error) {
	var raw map[string][][]uint64
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse lumi mask: %w", err)
	}

	mask := make(LumiMask, len(raw))
	for key, ranges := range raw {
		run, err := strconv.ParseUint(key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("run number %q is not an integer", key)
		}

		parsed := make([]LumiRange, 0, len(ranges))
		for _, r := range ranges {
			if len(r) != 2 || r[0] > r[1] {
				return nil, fmt.Errorf("run %d: malformed range %v", run, r)
			}
			parsed = append(parsed, LumiRange{First: r[0], Last: r[1]})
		}
		sort.Slice(parsed, func(i, j int) bool { return parsed[i].First < parsed[j].First })
		mask[run] = parsed
	}
	return mask, nil
}

// Contains reports whether the luminosity block of id is certified
func (m LumiMask) Contains(id model.EventID) bool {
	ranges := m[id.Run]

	// First range whose upper edge is not below the block
	i := sort.Search(len(ranges), func(i int) bool { return ranges[i].Last >= id.LumiBlock })
	return i < len(ranges) && ranges[i].First <= id.LumiBlock
}

// LumiMaskFilter keeps events from certified luminosity blocks
type LumiMaskFilter struct {
	plugin.BasePlugin
	source string
	reject bool
	mask   LumiMask

	ids model.EventIDSource
}

// NewLumiMaskFilter creates a new lumi mask filter. With reject set, the selection is inverted.
func NewLumiMaskFilter(name, source string, mask LumiMask, reject bool) *LumiMaskFilter {
	return &LumiMaskFilter{
		BasePlugin: plugin.NewBasePlugin(name, model.CategoryAnalysis),
		source:     source,
		reject:     reject,
		mask:       mask,
	}
}

// NewLumiMaskFilterCreator returns the catalog creator of the filter.
// Options: mask (path, required), source (default "Reader"), reject (default false).
func NewLumiMaskFilterCreator() plugin.PluginCreator {
	return func(name string, opts plugin.Options, env plugin.Env) (model.PluginFactory, error) {
		if err := opts.Check("mask", "source", "reject"); err != nil {
			return nil, err
		}
		path, err := opts.RequiredString("mask")
		if err != nil {
			return nil, err
		}
		source, err := opts.String("source", "Reader")
		if err != nil {
			return nil, err
		}
		reject, err := opts.Bool("reject", false)
		if err != nil {
			return nil, err
		}

		mask, err := LoadLumiMask(env.Resolve(path))
		if err != nil {
			return nil, err
		}

		return func() model.Plugin {
			return NewLumiMaskFilter(name, source, mask, reject)
		}, nil
	}
}

// BeginRun locates the plugin providing event IDs
func (f *LumiMaskFilter) BeginRun(rc model.RunContext, dataset model.Dataset) error {
	ids, err := model.DependencyAs[model.EventIDSource](rc, f.source)
	if err != nil {
		return err
	}
	f.ids = ids
	return nil
}

// ProcessEvent checks the luminosity block of the current event against the mask
func (f *LumiMaskFilter) ProcessEvent(rc model.RunContext) (bool, error) {
	return f.mask.Contains(f.ids.EventID()) != f.reject, nil
}
