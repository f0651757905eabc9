package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sliink/mensura/internal/config"
	"github.com/sliink/mensura/internal/core"
	"github.com/sliink/mensura/internal/ntuple"
	"github.com/sliink/mensura/internal/plugin"
	"github.com/sliink/mensura/internal/plugin/catalog"
)

func newDatasetsCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "datasets",
		Short: "List the atomic datasets a run would process",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}
			datasets, err := cfg.BuildDatasets()
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "DATASET\tKIND\tPROCESS\tXSEC\tFILE")
			for _, ds := range datasets {
				kind := "data"
				if ds.IsMC() {
					kind = "mc"
				}
				for _, atomic := range ds.Atomize() {
					file := atomic.Files()[0]
					fmt.Fprintf(tw, "%s\t%s\t%s\t%g\t%s\n", atomic.ID, kind, atomic.Process(), file.CrossSection, file.Name)
				}
			}
			return tw.Flush()
		},
	}
	addConfigFlag(cmd, &configFile)
	return cmd
}

func newValidateCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Build the configured path and datasets without processing any event",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}
			logger := quietLogger()

			datasets, err := cfg.BuildDatasets()
			if err != nil {
				return err
			}

			p := core.NewProcessor(core.WithLogger(logger))
			path, err := catalog.Install(p, cfg, plugin.Env{Logger: logger})
			if err != nil {
				return err
			}
			if err := p.Validate(); err != nil {
				return err
			}

			atomic := 0
			for _, ds := range datasets {
				atomic += len(ds.Files())
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Configuration %s is valid\n", configFile)
			fmt.Fprintf(out, "Path: %s\n", strings.Join(path, " -> "))
			fmt.Fprintf(out, "Datasets: %d (%d atomic)\n", len(datasets), atomic)
			return nil
		},
	}
	addConfigFlag(cmd, &configFile)
	return cmd
}

// generateFlags control the toy production of the generate command
type generateFlags struct {
	dir          string
	files        int
	events       int
	seed         uint64
	crossSection float64
	negative     float64
	data         bool
}

func newGenerateCmd() *cobra.Command {
	flags := &generateFlags{}

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write toy ntuple files and a dataset database describing them",
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := generateToys(flags)
			if err != nil {
				return err
			}

			dbPath := filepath.Join(flags.dir, "datasets.json")
			data, err := json.MarshalIndent(entries, "", "  ")
			if err != nil {
				return err
			}
			if err := os.WriteFile(dbPath, data, 0o644); err != nil {
				return fmt.Errorf("failed to write dataset database: %w", err)
			}

			out := cmd.OutOrStdout()
			for _, entry := range entries {
				fmt.Fprintf(out, "%s: %d files\n", entry.ID, len(entry.Files))
			}
			fmt.Fprintf(out, "Dataset database written to %s\n", dbPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&flags.dir, "dir", "d", ".", "Output directory")
	cmd.Flags().IntVar(&flags.files, "files", 2, "Files per dataset")
	cmd.Flags().IntVar(&flags.events, "events", 1000, "Events per file")
	cmd.Flags().Uint64Var(&flags.seed, "seed", 1, "Random seed")
	cmd.Flags().Float64Var(&flags.crossSection, "cross-section", 1.0, "Cross section of the simulated dataset in pb")
	cmd.Flags().Float64Var(&flags.negative, "negative-fraction", 0, "Share of simulated events with a negative weight")
	cmd.Flags().BoolVar(&flags.data, "data", true, "Also produce a collision data dataset")
	return cmd
}

// generateToys writes the toy files and returns the matching database entries
func generateToys(flags *generateFlags) ([]config.DatasetConfig, error) {
	if flags.files < 1 {
		return nil, fmt.Errorf("files must be positive, got %d", flags.files)
	}
	if flags.events < 0 {
		return nil, fmt.Errorf("events must not be negative, got %d", flags.events)
	}
	if err := os.MkdirAll(flags.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	mc := config.DatasetConfig{
		ID:              "toy_mc",
		CrossSection:    flags.crossSection,
		EventsProcessed: uint64(flags.files * flags.events),
		Process:         []string{"Toy"},
		Generator:       "toy",
	}
	entries := []*config.DatasetConfig{&mc}

	data := config.DatasetConfig{ID: "toy_data", IsData: true}
	if flags.data {
		entries = append(entries, &data)
	}

	seed := flags.seed
	for _, entry := range entries {
		entry.Checksums = make(map[string]string, flags.files)
		for i := 1; i <= flags.files; i++ {
			name := fmt.Sprintf("%s_%d%s", entry.ID, i, ntuple.Extension)
			checksum, err := ntuple.GenerateToy(filepath.Join(flags.dir, name), ntuple.ToyOptions{
				Events:           flags.events,
				Run:              uint64(i),
				Seed:             seed,
				IsData:           entry.IsData,
				NegativeFraction: flags.negative,
			})
			if err != nil {
				return nil, fmt.Errorf("failed to generate %s: %w", name, err)
			}
			seed++

			entry.Files = append(entry.Files, name)
			entry.Checksums[name] = checksum
		}
	}

	result := make([]config.DatasetConfig, 0, len(entries))
	for _, entry := range entries {
		result = append(result, *entry)
	}
	return result, nil
}

func newPluginsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plugins",
		Short: "List the plugin and service types that can be used in a configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			f := catalog.NewFactory(plugin.DefaultEnv())
			out := cmd.OutOrStdout()

			fmt.Fprintln(out, "Plugins:")
			for _, name := range f.PluginTypes() {
				fmt.Fprintf(out, "  %s\n", name)
			}
			fmt.Fprintln(out, "Services:")
			for _, name := range f.ServiceTypes() {
				fmt.Fprintf(out, "  %s\n", name)
			}
			return nil
		},
	}
}
