package inputs

import (
	"errors"
	"fmt"
	"io"

	"github.com/sliink/mensura/internal/model"
	"github.com/sliink/mensura/internal/ntuple"
	"github.com/sliink/mensura/internal/plugin"
)

// NtupleReader reads events from the ntuple files of a dataset, one file after another
type NtupleReader struct {
	plugin.BasePlugin
	verify   bool
	branches []string

	files   []model.File
	current int
	reader  *ntuple.Reader
	event   model.Event
	read    int64
}

// NewNtupleReader creates a new ntuple reader. Files carrying a checksum are verified before
// they are opened when verify is set. Every file must declare the given branches.
func NewNtupleReader(name string, verify bool, branches ...string) *NtupleReader {
	return &NtupleReader{
		BasePlugin: plugin.NewBasePlugin(name, model.CategoryReader),
		verify:     verify,
		branches:   branches,
	}
}

// NewNtupleReaderCreator returns the catalog creator of the reader.
// Options: verify_checksums (bool, default true), branches (list of required branches).
func NewNtupleReaderCreator() plugin.PluginCreator {
	return func(name string, opts plugin.Options, env plugin.Env) (model.PluginFactory, error) {
		if err := opts.Check("verify_checksums", "branches"); err != nil {
			return nil, err
		}
		verify, err := opts.Bool("verify_checksums", true)
		if err != nil {
			return nil, err
		}
		branches, err := opts.Strings("branches")
		if err != nil {
			return nil, err
		}

		return func() model.Plugin {
			return NewNtupleReader(name, verify, branches...)
		}, nil
	}
}

// BeginRun prepares reading the files of the dataset. Files are opened lazily.
func (r *NtupleReader) BeginRun(rc model.RunContext, dataset model.Dataset) error {
	r.files = dataset.Files()
	r.current = 0
	r.read = 0
	r.event = model.Event{}
	return nil
}

// ProcessEvent reads the next event. It returns false once all files are exhausted.
func (r *NtupleReader) ProcessEvent(rc model.RunContext) (bool, error) {
	for {
		if r.reader == nil {
			if r.current >= len(r.files) {
				return false, nil
			}
			if err := r.open(rc, r.files[r.current]); err != nil {
				return false, err
			}
		}

		err := r.reader.Next(&r.event)
		if err == nil {
			r.read++
			return true, nil
		}
		if !errors.Is(err, io.EOF) {
			return false, fmt.Errorf("%s: %w", r.files[r.current].Name, err)
		}

		// Move to the next file
		rc.Logger().Debug("Input file exhausted", "file", r.files[r.current].Name, "events", r.reader.Read())
		if err := r.closeFile(); err != nil {
			return false, err
		}
		r.current++
	}
}

// EndRun closes the file being read, if any
func (r *NtupleReader) EndRun(rc model.RunContext) error {
	rc.Logger().Debug("Reader finished", "events", r.read)
	return r.closeFile()
}

// Event returns the current event
func (r *NtupleReader) Event() *model.Event {
	return &r.event
}

// EventID returns the ID of the current event
func (r *NtupleReader) EventID() model.EventID {
	return r.event.ID
}

// Weight returns the generator weight of the current event
func (r *NtupleReader) Weight() float64 {
	return r.event.Weight
}

// CurrentFile returns the file the current event was read from
func (r *NtupleReader) CurrentFile() model.File {
	if r.current < len(r.files) {
		return r.files[r.current]
	}
	return model.File{}
}

// EventsRead returns the number of events read in the current dataset
func (r *NtupleReader) EventsRead() int64 {
	return r.read
}

func (r *NtupleReader) open(rc model.RunContext, file model.File) error {
	if r.verify && file.Checksum != "" {
		if err := ntuple.VerifyChecksum(file.Name, file.Checksum); err != nil {
			return err
		}
	}

	reader, err := ntuple.Open(file.Name)
	if err != nil {
		return err
	}

	declared := make(map[string]bool)
	for _, b := range reader.Branches() {
		declared[b] = true
	}
	for _, b := range r.branches {
		if !declared[b] {
			reader.Close()
			return fmt.Errorf("%s: required branch %q is missing", file.Name, b)
		}
	}

	r.reader = reader
	rc.Logger().Debug("Input file opened", "file", file.Name, "branches", len(declared))
	return nil
}

func (r *NtupleReader) closeFile() error {
	if r.reader == nil {
		return nil
	}
	err := r.reader.Close()
	r.reader = nil
	return err
}
