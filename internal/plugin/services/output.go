package services

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sliink/mensura/internal/model"
	"github.com/sliink/mensura/internal/plugin"
	"github.com/sliink/mensura/internal/storage"
)

// OutputExtension is appended to output paths that have no extension
const OutputExtension = ".sqlite"

// OutputStore is the capability plugins look up to write into the per-dataset output file
type OutputStore interface {
	DB() *sql.DB
	Path() string
}

// OutputService creates one SQLite output file per dataset.
//
// The file name may contain one "%", which is replaced by the base name of the first input
// file of the dataset. An existing file is overwritten.
type OutputService struct {
	plugin.BaseService
	pattern string

	path string
	db   *sql.DB
}

// NewOutputService creates a new output service after checking the path pattern
func NewOutputService(name, pattern string) (*OutputService, error) {
	pattern, err := CheckOutputPattern(pattern)
	if err != nil {
		return nil, err
	}
	return &OutputService{
		BaseService: plugin.NewBaseService(name),
		pattern:     pattern,
	}, nil
}

// NewOutputServiceCreator returns the catalog creator of the service.
// Options: path (required), relative to the configuration directory.
func NewOutputServiceCreator() plugin.ServiceCreator {
	return func(name string, opts plugin.Options, env plugin.Env) (model.ServiceFactory, error) {
		if err := opts.Check("path"); err != nil {
			return nil, err
		}
		path, err := opts.RequiredString("path")
		if err != nil {
			return nil, err
		}
		pattern, err := CheckOutputPattern(env.Resolve(path))
		if err != nil {
			return nil, err
		}

		return func() model.Service {
			return &OutputService{BaseService: plugin.NewBaseService(name), pattern: pattern}
		}, nil
	}
}

// CheckOutputPattern validates an output path pattern and adds the default extension if needed
func CheckOutputPattern(pattern string) (string, error) {
	dir, file := filepath.Split(pattern)
	if file == "" || file == "." || file == ".." {
		return "", fmt.Errorf("output path %q does not include a valid file name", pattern)
	}
	if strings.Contains(dir, "%") {
		return "", fmt.Errorf("output path %q has a substitution in the directory", pattern)
	}
	if strings.Count(file, "%") > 1 {
		return "", fmt.Errorf("output path %q has more than one substitution", pattern)
	}

	if filepath.Ext(file) == "" {
		pattern += OutputExtension
	}
	return pattern, nil
}

// OutputPath returns the output file for a dataset
func (s *OutputService) OutputPath(dataset model.Dataset) string {
	files := dataset.Files()
	if len(files) == 0 {
		return s.pattern
	}
	return strings.Replace(s.pattern, "%", files[0].BaseName(), 1)
}

// BeginRun recreates the output file of the dataset
func (s *OutputService) BeginRun(rc model.RunContext, dataset model.Dataset) error {
	path := s.OutputPath(dataset)
	if err := removeOutput(path); err != nil {
		return err
	}

	db, err := storage.OpenSQLite(rc.Context(), path)
	if err != nil {
		return err
	}

	meta := map[string]string{
		"run_id":  rc.RunID(),
		"dataset": dataset.ID,
		"process": string(dataset.Process()),
		"inputs":  strings.Join(fileNames(dataset), ","),
	}
	for k, v := range meta {
		if err := storage.SetMeta(rc.Context(), db, k, v); err != nil {
			db.Close()
			return err
		}
	}

	s.path = path
	s.db = db
	rc.Logger().Debug("Output file created", "path", path)
	return nil
}

// EndRun closes the output file. The file of a failed dataset is removed.
func (s *OutputService) EndRun(rc model.RunContext) error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	if err != nil {
		return fmt.Errorf("failed to close %s: %w", s.path, err)
	}

	if rc.Failed() {
		if err := removeOutput(s.path); err != nil {
			return err
		}
		rc.Logger().Debug("Output file of the failed dataset removed", "path", s.path)
		return nil
	}

	rc.Logger().Debug("Output file written", "path", s.path)
	return nil
}

// removeOutput deletes a database file together with its journal files
func removeOutput(path string) error {
	for _, f := range []string{path, path + "-wal", path + "-shm"} {
		if err := os.Remove(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove %s: %w", f, err)
		}
	}
	return nil
}

// DB returns the database of the current dataset, nil outside of a dataset
func (s *OutputService) DB() *sql.DB {
	return s.db
}

// Path returns the output file of the current or last dataset
func (s *OutputService) Path() string {
	return s.path
}

func fileNames(dataset model.Dataset) []string {
	files := dataset.Files()
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Name
	}
	return names
}
