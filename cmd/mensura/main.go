package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sliink/mensura/internal/api"
	"github.com/sliink/mensura/internal/config"
	"github.com/sliink/mensura/internal/core"
	"github.com/sliink/mensura/internal/log"
	"github.com/sliink/mensura/internal/metrics"
	"github.com/sliink/mensura/internal/plugin"
	"github.com/sliink/mensura/internal/plugin/catalog"
)

const shutdownTimeout = 5 * time.Second

// runFlags override the matching configuration values when they are set on the command line
type runFlags struct {
	configFile   string
	threads      int
	loadFraction float64
	policy       string
	apiEnabled   bool
	apiHost      string
	apiPort      int
	wait         bool
	logLevel     string
	logFormat    string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "mensura",
		Short:         "mensura - Run event-processing paths over datasets of ntuple files",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newRunCmd(),
		newDatasetsCmd(),
		newValidateCmd(),
		newGenerateCmd(),
		newPluginsCmd(),
	)
	return rootCmd
}

func newRunCmd() *cobra.Command {
	flags := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process every configured dataset with a pool of workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPath(cmd, flags)
		},
	}

	addConfigFlag(cmd, &flags.configFile)
	cmd.Flags().IntVar(&flags.threads, "threads", 0, "Number of workers (overrides run.threads)")
	cmd.Flags().Float64Var(&flags.loadFraction, "load-fraction", 0, "Workers as a fraction of the CPU count (overrides run.load_fraction)")
	cmd.Flags().StringVar(&flags.policy, "policy", "", "Failure policy, abort or continue (overrides run.failure_policy)")

	// API server flags
	cmd.Flags().BoolVar(&flags.apiEnabled, "api", false, "Enable the status API server")
	cmd.Flags().StringVar(&flags.apiHost, "api-host", "", "API server host")
	cmd.Flags().IntVar(&flags.apiPort, "api-port", 0, "API server port")
	cmd.Flags().BoolVar(&flags.wait, "wait", false, "Keep the API server up after the run until interrupted")

	addLogFlags(cmd, &flags.logLevel, &flags.logFormat)
	return cmd
}

func addConfigFlag(cmd *cobra.Command, target *string) {
	cmd.Flags().StringVarP(target, "config", "c", "", "Path to the run configuration file")
	_ = cmd.MarkFlagRequired("config")
}

func addLogFlags(cmd *cobra.Command, level, format *string) {
	cmd.Flags().StringVar(level, "log-level", "", "Log level: debug, info, warn or error (overrides log.level)")
	cmd.Flags().StringVar(format, "log-format", "", "Log format: json or text (overrides log.format)")
}

// loadConfig reads the configuration and applies the flags that were set explicitly
func loadConfig(cmd *cobra.Command, flags *runFlags) (*config.Config, error) {
	cfg, err := config.Load(flags.configFile)
	if err != nil {
		return nil, err
	}

	set := cmd.Flags().Changed
	if set("threads") {
		cfg.Run.Threads = flags.threads
	}
	if set("load-fraction") {
		cfg.Run.LoadFraction = flags.loadFraction
		if !set("threads") {
			cfg.Run.Threads = 0
		}
	}
	if set("policy") {
		cfg.Run.FailurePolicy = flags.policy
	}
	if set("api") {
		cfg.API.Enabled = flags.apiEnabled
	}
	if set("api-host") {
		cfg.API.Host = flags.apiHost
	}
	if set("api-port") {
		cfg.API.Port = flags.apiPort
	}
	if set("log-level") {
		cfg.Log.Level = flags.logLevel
	}
	if set("log-format") {
		cfg.Log.Format = flags.logFormat
	}

	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runPath(cmd *cobra.Command, flags *runFlags) error {
	cfg, err := loadConfig(cmd, flags)
	if err != nil {
		return err
	}
	logger := log.Setup(cfg.Log.Level, cfg.Log.Format)

	policy, err := core.ParseFailurePolicy(cfg.Run.FailurePolicy)
	if err != nil {
		return err
	}
	datasets, err := cfg.BuildDatasets()
	if err != nil {
		return err
	}

	bus := core.NewEventBus()
	defer bus.Stop()
	monitor := core.NewMonitor(bus)

	manager := core.NewRunManager(datasets,
		core.WithEventBus(bus),
		core.WithFailurePolicy(policy),
		core.WithRunLogger(logger),
	)
	monitor.RegisterComponent(manager)
	collectors := metrics.New(bus, manager.Stats)

	out := cmd.OutOrStdout()
	path, err := catalog.Install(manager, cfg, plugin.Env{
		Lock:   &sync.Mutex{},
		Out:    out,
		Logger: logger,
	})
	if err != nil {
		return err
	}
	logger.Info("Path configured",
		slog.String("run_id", manager.RunID()),
		slog.String("path", strings.Join(path, " -> ")),
		slog.Int("datasets", len(manager.Datasets())))

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start API server if enabled
	var apiServer *api.API
	if cfg.API.Enabled {
		apiServer = api.NewAPI(manager, monitor, collectors.Handler(), cfg.API.Host, cfg.API.Port)
		go func() {
			logger.Info("Starting API server", slog.String("host", cfg.API.Host), slog.Int("port", cfg.API.Port))
			if err := apiServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("API server error", slog.Any("error", err))
			}
		}()
	}

	if cfg.Run.Threads > 0 {
		err = manager.Process(ctx, cfg.Run.Threads)
	} else {
		err = manager.ProcessFraction(ctx, cfg.Run.LoadFraction)
	}

	if printErr := manager.PrintSummary(out); printErr != nil {
		logger.Warn("Failed to print summary", slog.Any("error", printErr))
	}

	if apiServer != nil {
		if flags.wait && ctx.Err() == nil {
			logger.Info("Run finished, API server stays up until interrupted")
			<-ctx.Done()
		}
		stopAPI(apiServer, logger)
	}
	return err
}

func stopAPI(apiServer *api.API, logger *slog.Logger) {
	logger.Info("Shutting down API server")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := apiServer.Stop(ctx); err != nil {
		logger.Error("API server shutdown error", slog.Any("error", err))
	}
}

// quietLogger configures logging for the commands that only report on stdout
func quietLogger() *slog.Logger {
	return log.Setup("warn", "text")
}
