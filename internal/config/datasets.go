package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sliink/mensura/internal/model"
)

// Database is a catalogue of datasets read from a JSON file
type Database struct {
	path    string
	baseDir string
	entries map[string]DatasetConfig
	order   []string
}

// LoadDatabase reads a JSON array of dataset entries. Relative file paths in the entries are
// resolved against the directory of the database file.
func LoadDatabase(path string) (*Database, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve database path %q: %w", path, err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset database: %w", err)
	}

	var entries []DatasetConfig
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("dataset database %s does not contain a list of datasets: %w", absPath, err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("dataset database %s is empty", absPath)
	}

	db := &Database{
		path:    absPath,
		baseDir: filepath.Dir(absPath),
		entries: make(map[string]DatasetConfig, len(entries)),
	}
	for i, entry := range entries {
		if entry.ID == "" {
			return nil, fmt.Errorf("entry #%d in %s has no datasetId", i, absPath)
		}
		if _, exists := db.entries[entry.ID]; exists {
			return nil, fmt.Errorf("dataset %q is listed twice in %s", entry.ID, absPath)
		}
		db.entries[entry.ID] = entry
		db.order = append(db.order, entry.ID)
	}

	return db, nil
}

// Path returns the location of the database file
func (db *Database) Path() string {
	return db.path
}

// IDs returns all dataset IDs in file order
func (db *Database) IDs() []string {
	return append([]string(nil), db.order...)
}

// Entry returns the raw entry of a dataset
func (db *Database) Entry(id string) (DatasetConfig, bool) {
	entry, ok := db.entries[id]
	return entry, ok
}

// Build constructs the datasets with the given IDs in the requested order
func (db *Database) Build(ids ...string) ([]model.Dataset, error) {
	datasets := make([]model.Dataset, 0, len(ids))
	for _, id := range ids {
		entry, ok := db.entries[id]
		if !ok {
			return nil, fmt.Errorf("dataset %q is not found in %s", id, db.path)
		}

		ds, err := BuildDataset(entry, db.baseDir)
		if err != nil {
			return nil, err
		}
		datasets = append(datasets, ds)
	}
	return datasets, nil
}

// BuildDataset converts a dataset entry into a model dataset
func BuildDataset(entry DatasetConfig, baseDir string) (model.Dataset, error) {
	if err := validateDataset(entry); err != nil {
		return model.Dataset{}, err
	}

	var codes []model.Process
	if entry.IsData {
		codes = append(codes, model.ProcessData)
	}
	for _, p := range entry.Process {
		codes = append(codes, model.Process(p))
	}

	ds := model.NewDataset(entry.ID, model.Generator(entry.Generator), codes...)
	for _, flag := range entry.Flags {
		if err := ds.SetFlag(flag); err != nil {
			return model.Dataset{}, err
		}
	}

	meanWeight := entry.MeanWeight
	if meanWeight == 0 {
		meanWeight = 1
	}

	for _, name := range entry.Files {
		path := name
		if !filepath.IsAbs(path) && baseDir != "" {
			path = filepath.Join(baseDir, path)
		}

		ds.AddFile(model.File{
			Name:            path,
			CrossSection:    entry.CrossSection,
			EventsProcessed: entry.EventsProcessed,
			MeanWeight:      meanWeight,
			Checksum:        entry.Checksums[name],
		})
	}

	return ds, nil
}

// BuildDatasets returns the datasets selected from the database followed by the inline ones
func (c *Config) BuildDatasets() ([]model.Dataset, error) {
	var datasets []model.Dataset

	if c.Datasets.Database != "" {
		db, err := LoadDatabase(c.ResolvePath(c.Datasets.Database))
		if err != nil {
			return nil, err
		}

		ids := c.Datasets.IDs
		if len(ids) == 0 {
			ids = db.IDs()
		}
		built, err := db.Build(ids...)
		if err != nil {
			return nil, err
		}
		datasets = append(datasets, built...)
	}

	for _, entry := range c.Datasets.Inline {
		ds, err := BuildDataset(entry, c.BaseDir)
		if err != nil {
			return nil, err
		}
		datasets = append(datasets, ds)
	}

	if len(datasets) == 0 {
		return nil, errors.New("no datasets configured")
	}
	return datasets, nil
}
