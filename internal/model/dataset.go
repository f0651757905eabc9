package model

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// Process is a classification code of a dataset
type Process string

const (
	// ProcessUndefined is used when no code has been given
	ProcessUndefined Process = "Undefined"
	// ProcessData marks collision data
	ProcessData Process = "Data"
)

// Generator names the event generator a simulated dataset was produced with
type Generator string

const (
	// GeneratorUndefined is used when no generator has been given
	GeneratorUndefined Generator = "Undefined"
	// GeneratorNature is assigned to collision data
	GeneratorNature Generator = "Nature"
)

// File describes one input file of a dataset
type File struct {
	Name            string  `json:"name" yaml:"name"`
	CrossSection    float64 `json:"cross_section" yaml:"cross_section"`
	EventsProcessed uint64  `json:"events_processed" yaml:"events_processed"`
	MeanWeight      float64 `json:"mean_weight" yaml:"mean_weight"`
	Checksum        string  `json:"checksum,omitempty" yaml:"checksum,omitempty"`
}

// BaseName returns the file name without directory and extension
func (f File) BaseName() string {
	base := filepath.Base(f.Name)
	if ext := filepath.Ext(base); ext != "" && ext != base {
		return strings.TrimSuffix(base, ext)
	}
	return base
}

// DirName returns the directory of the file with a trailing separator
func (f File) DirName() string {
	dir := filepath.Dir(f.Name)
	return dir + string(filepath.Separator)
}

// Dataset is an ordered collection of input files sharing the same metadata. Copies of a
// Dataset are independent: mutators never modify storage another copy can see.
type Dataset struct {
	ID           string
	files        []File
	processCodes []Process
	generator    Generator
	flags        map[string]struct{}
}

// NewDataset creates a dataset with the given process codes. The last code is
// the most specific one.
func NewDataset(id string, generator Generator, codes ...Process) Dataset {
	if len(codes) == 0 {
		codes = []Process{ProcessUndefined}
	}
	if generator == "" {
		generator = GeneratorUndefined
	}

	d := Dataset{
		ID:           id,
		processCodes: append([]Process(nil), codes...),
		generator:    generator,
		flags:        make(map[string]struct{}),
	}

	if !d.IsMC() && d.generator == GeneratorUndefined {
		d.generator = GeneratorNature
	}
	return d
}

// AddFile appends a file to the dataset
func (d *Dataset) AddFile(file File) {
	if file.MeanWeight == 0 {
		file.MeanWeight = 1
	}
	d.files = append(d.files[:len(d.files):len(d.files)], file)
}

// Files returns a copy of the file list
func (d Dataset) Files() []File {
	return append([]File(nil), d.files...)
}

// IsAtomic reports whether the dataset holds exactly one file
func (d Dataset) IsAtomic() bool {
	return len(d.files) == 1
}

// Process returns the most specific process code
func (d Dataset) Process() Process {
	if len(d.processCodes) == 0 {
		return ProcessUndefined
	}
	return d.processCodes[len(d.processCodes)-1]
}

// ProcessCodes returns all process codes
func (d Dataset) ProcessCodes() []Process {
	return append([]Process(nil), d.processCodes...)
}

// TestProcess checks whether the dataset carries the given code
func (d Dataset) TestProcess(code Process) bool {
	for _, c := range d.processCodes {
		if c == code {
			return true
		}
	}
	return false
}

// IsMC reports whether the dataset is simulated
func (d Dataset) IsMC() bool {
	return !d.TestProcess(ProcessData)
}

// Generator returns the generator tag
func (d Dataset) Generator() Generator {
	return d.generator
}

// SetFlag sets a flag. Setting a flag twice is an error.
func (d *Dataset) SetFlag(flag string) error {
	if _, exists := d.flags[flag]; exists {
		return fmt.Errorf("flag %q has already been set for dataset %q", flag, d.ID)
	}
	d.flags = d.copyFlags()
	d.flags[flag] = struct{}{}
	return nil
}

// UnsetFlag removes a flag if present
func (d *Dataset) UnsetFlag(flag string) {
	if _, exists := d.flags[flag]; !exists {
		return
	}
	d.flags = d.copyFlags()
	delete(d.flags, flag)
}

func (d Dataset) copyFlags() map[string]struct{} {
	flags := make(map[string]struct{}, len(d.flags)+1)
	for f := range d.flags {
		flags[f] = struct{}{}
	}
	return flags
}

// TestFlag checks whether a flag is set
func (d Dataset) TestFlag(flag string) bool {
	_, exists := d.flags[flag]
	return exists
}

// Flags returns the sorted list of flags
func (d Dataset) Flags() []string {
	flags := make([]string, 0, len(d.flags))
	for f := range d.flags {
		flags = append(flags, f)
	}
	sort.Strings(flags)
	return flags
}

// CopyParameters returns a dataset with the same metadata and no files
func (d Dataset) CopyParameters() Dataset {
	return Dataset{
		ID:           d.ID,
		processCodes: append([]Process(nil), d.processCodes...),
		generator:    d.generator,
		flags:        d.copyFlags(),
	}
}

// Atomize splits the dataset into one dataset per file
func (d Dataset) Atomize() []Dataset {
	atoms := make([]Dataset, 0, len(d.files))
	for _, file := range d.files {
		atom := d.CopyParameters()
		atom.AddFile(file)
		atoms = append(atoms, atom)
	}
	return atoms
}

// String returns a short description used in logs
func (d Dataset) String() string {
	if d.IsAtomic() {
		return d.ID + ":" + d.files[0].BaseName()
	}
	return fmt.Sprintf("%s (%d files)", d.ID, len(d.files))
}
