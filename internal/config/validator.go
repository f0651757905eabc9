package config

import (
	"errors"
	"fmt"
	"strings"
)

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Validate checks a configuration and returns all problems at once
func Validate(cfg *Config) error {
	var errs []error

	// Run section
	if cfg.Run.Threads < 0 {
		errs = append(errs, fmt.Errorf("run.threads must not be negative, got %d", cfg.Run.Threads))
	}
	if cfg.Run.LoadFraction < 0 {
		errs = append(errs, fmt.Errorf("run.load_fraction must not be negative, got %g", cfg.Run.LoadFraction))
	}
	switch strings.ToLower(cfg.Run.FailurePolicy) {
	case "abort", "continue":
	default:
		errs = append(errs, fmt.Errorf("run.failure_policy must be abort or continue, got %q", cfg.Run.FailurePolicy))
	}

	// Log and API sections
	if !validLogLevels[strings.ToLower(cfg.Log.Level)] {
		errs = append(errs, fmt.Errorf("log.level %q is not one of debug, info, warn, error", cfg.Log.Level))
	}
	if f := strings.ToLower(cfg.Log.Format); f != "json" && f != "text" {
		errs = append(errs, fmt.Errorf("log.format must be json or text, got %q", cfg.Log.Format))
	}
	if cfg.API.Port < 1 || cfg.API.Port > 65535 {
		errs = append(errs, fmt.Errorf("api.port %d is out of range", cfg.API.Port))
	}

	// Datasets
	if len(cfg.Datasets.IDs) > 0 && cfg.Datasets.Database == "" {
		errs = append(errs, errors.New("datasets.ids requires datasets.database"))
	}
	for i, ds := range cfg.Datasets.Inline {
		if err := validateDataset(ds); err != nil {
			errs = append(errs, fmt.Errorf("datasets.inline[%d]: %w", i, err))
		}
	}

	// Units
	errs = append(errs, validateUnits("services", cfg.Services)...)
	errs = append(errs, validateUnits("plugins", cfg.Plugins)...)
	for i, svc := range cfg.Services {
		if len(svc.DependsOn) > 0 {
			errs = append(errs, fmt.Errorf("services[%d] %q: services cannot declare depends_on", i, svc.Name))
		}
	}

	return errors.Join(errs...)
}

func validateUnits(section string, units []UnitConfig) []error {
	var errs []error
	seen := make(map[string]bool, len(units))

	for i, unit := range units {
		if unit.Name == "" {
			errs = append(errs, fmt.Errorf("%s[%d]: name is required", section, i))
		} else if seen[unit.Name] {
			errs = append(errs, fmt.Errorf("%s[%d]: duplicate name %q", section, i, unit.Name))
		}
		seen[unit.Name] = true

		if unit.Type == "" {
			errs = append(errs, fmt.Errorf("%s[%d] %q: type is required", section, i, unit.Name))
		}
	}
	return errs
}

// validateDataset checks the fields a dataset needs to be built
func validateDataset(ds DatasetConfig) error {
	var errs []error

	if ds.ID == "" {
		errs = append(errs, errors.New("dataset ID is required"))
	}
	if len(ds.Files) == 0 {
		errs = append(errs, fmt.Errorf("dataset %q has no files", ds.ID))
	}
	for _, f := range ds.Files {
		if f == "" {
			errs = append(errs, fmt.Errorf("dataset %q contains an empty path", ds.ID))
		}
	}
	if !ds.IsData {
		if ds.CrossSection <= 0 {
			errs = append(errs, fmt.Errorf("simulated dataset %q needs a positive cross section", ds.ID))
		}
		if ds.EventsProcessed == 0 {
			errs = append(errs, fmt.Errorf("simulated dataset %q needs the number of processed events", ds.ID))
		}
	}
	if ds.MeanWeight < 0 {
		errs = append(errs, fmt.Errorf("dataset %q has a negative mean weight", ds.ID))
	}

	return errors.Join(errs...)
}
