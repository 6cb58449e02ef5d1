package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/sliink/tuner/internal/api"
	"github.com/sliink/tuner/internal/core"
	"github.com/sliink/tuner/internal/hoststate"
	"github.com/sliink/tuner/internal/model"
	"github.com/sliink/tuner/internal/outputs"
	"github.com/sliink/tuner/internal/plugin"
	"github.com/sliink/tuner/internal/plugin/optimizers"
)

type rootOptions struct {
	configFile string
	statePath  string
	backupDir  string
	logLevel   string
	jsonFormat bool
	colorize   bool
	verbose    bool
}

// app is everything a command needs once the core is running
type app struct {
	core     *core.Core
	reporter *outputs.ConsoleReporter
	logger   zerolog.Logger
	closer   io.Closer
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "tuner",
		Short:         "Tuner - Apply and revert system optimizations with safety backups",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "Path to configuration file (YAML or JSON)")
	rootCmd.PersistentFlags().StringVar(&opts.statePath, "state", "", "Path to the host state file")
	rootCmd.PersistentFlags().StringVar(&opts.backupDir, "backup-dir", "", "Directory for backup bundles")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&opts.jsonFormat, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&opts.colorize, "color", outputs.ColorSupported(os.Stdout), "Colorize output")
	rootCmd.PersistentFlags().BoolVar(&opts.verbose, "verbose", false, "Show every individual change")

	rootCmd.AddCommand(
		newOptimizeCmd(opts),
		newBackupCmd(opts),
		newRestoreCmd(opts),
		newBackupsCmd(opts),
		newPluginsCmd(opts),
		newConfigCmd(opts),
		newServeCmd(opts),
	)

	return rootCmd
}

// setup builds the core, registers the standard optimizers against the host
// state and subscribes the console reporter
func (o *rootOptions) setup(cmd *cobra.Command) (*app, error) {
	cfg := model.DefaultConfig()
	loader := core.NewConfigManager(zerolog.Nop())
	if o.configFile != "" {
		if err := loader.LoadConfig(o.configFile); err != nil {
			return nil, fmt.Errorf("failed to load configuration: %w", err)
		}
		cfg = loader.GetConfig()
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	if o.statePath != "" {
		cfg.State.Path = o.statePath
	}
	if err := loader.Validate(cfg); err != nil {
		return nil, err
	}

	logger, closer, err := core.NewLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to open log output: %w", err)
	}

	c := core.NewCore(core.Options{
		Config:    cfg,
		Logger:    logger,
		BackupDir: o.backupDir,
	})
	if !c.Initialize() {
		_ = closer.Close()
		return nil, fmt.Errorf("failed to initialize core system")
	}
	if o.configFile != "" {
		// Track the file so status and hot reload know about it
		if err := c.ConfigManager().LoadConfig(o.configFile); err != nil {
			_ = closer.Close()
			return nil, fmt.Errorf("failed to load configuration: %w", err)
		}
		if err := c.ConfigManager().SetConfig(cfg); err != nil {
			_ = closer.Close()
			return nil, err
		}
	}

	host, err := hoststate.Open(cfg.State.Path)
	if err != nil {
		_ = closer.Close()
		return nil, fmt.Errorf("failed to open host state: %w", err)
	}
	logger.Debug().Str("file", host.Path()).Msg("host state opened")

	for _, p := range optimizers.Standard(optimizers.Deps{Host: host}) {
		if err := c.RegisterPlugin(p); err != nil {
			_ = closer.Close()
			return nil, err
		}
	}
	applyConfigOverrides(c, cfg, logger)

	if !c.Start() {
		_ = closer.Close()
		return nil, fmt.Errorf("failed to start core system")
	}

	format := outputs.FormatText
	if o.jsonFormat {
		format = outputs.FormatJSON
	}
	reporter := outputs.NewConsoleReporter(cmd.OutOrStdout(), outputs.Options{
		Format:   format,
		Colorize: o.colorize,
		Verbose:  o.verbose,
	})
	reporter.Subscribe(c.EventBus())

	return &app{
		core:     c,
		reporter: reporter,
		logger:   logger,
		closer:   closer,
	}, nil
}

func (a *app) close() {
	if !a.core.Stop() {
		a.logger.Warn().Msg("core system did not stop cleanly")
	}
	_ = a.closer.Close()
}

// applyConfigOverrides applies per-plugin overrides from cfg to the
// registered plugins
func applyConfigOverrides(c *core.Core, cfg *model.Config, logger zerolog.Logger) {
	plugins := c.Registry().GetAll()
	for _, name := range plugin.UnknownOverrides(plugins, cfg) {
		logger.Warn().Str("plugin", name).Msg("override for unknown plugin ignored")
	}
	for _, name := range plugin.ApplyOverrides(plugins, cfg) {
		logger.Info().Str("plugin", name).Msg("plugin override applied")
	}
}

func newOptimizeCmd(opts *rootOptions) *cobra.Command {
	var noBackup bool
	var mode string

	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Back up current state and run every enabled optimizer",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.setup(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			cfg := a.core.ConfigManager().GetConfig()
			if mode != "" {
				core.ApplyModePreset(cfg, model.OptimizationMode(mode))
				if err := a.core.ConfigManager().Validate(cfg); err != nil {
					return err
				}
			}

			report, err := a.core.Optimize(cfg, !noBackup)
			if err != nil {
				return err
			}
			if err := a.reporter.PrintSummary(report); err != nil {
				return err
			}
			if report.Summary.Failed > 0 {
				return fmt.Errorf("%d optimizers failed", report.Summary.Failed)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&noBackup, "no-backup", false, "Skip the safety backup")
	cmd.Flags().StringVar(&mode, "mode", "", "Optimization mode (balanced, gaming, development, custom)")
	return cmd
}

func newBackupCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Write a backup bundle of the current state",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.setup(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			if _, err := a.core.Backup(nil); err != nil {
				return err
			}
			return nil
		},
	}
}

func newRestoreCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "restore [file]",
		Short: "Restore a backup bundle, or the newest one when no file is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.setup(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			var path string
			if len(args) == 1 {
				path = args[0]
			}
			report, err := a.core.Restore(path)
			if err != nil {
				return err
			}
			if err := a.reporter.PrintRestoreReport(report); err != nil {
				return err
			}
			if report.Failed > 0 {
				return fmt.Errorf("%d plugins failed to restore", report.Failed)
			}
			return nil
		},
	}
}

func newBackupsCmd(opts *rootOptions) *cobra.Command {
	backupsCmd := &cobra.Command{
		Use:   "backups",
		Short: "Manage backup bundles",
	}

	var limit int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List backup bundles, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.setup(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			return a.reporter.PrintBackups(a.core.Backups().ListBackups(limit))
		},
	}
	listCmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of bundles to list (0 lists all)")

	var keep int
	cleanupCmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete all but the newest bundles",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.setup(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			if !cmd.Flags().Changed("keep") {
				keep = a.core.ConfigManager().GetConfig().Backup.MaxBackups
			}
			if keep < 1 {
				return fmt.Errorf("--keep must be at least 1")
			}
			removed := a.core.Backups().CleanupOldBackups(keep)
			return a.reporter.PrintMessage("Removed %d backups", removed)
		},
	}
	cleanupCmd.Flags().IntVar(&keep, "keep", 0, "Number of bundles to keep (defaults to backup.max_backups)")

	backupsCmd.AddCommand(listCmd, cleanupCmd)
	return backupsCmd
}

func newPluginsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "plugins",
		Short: "List plugins in execution order, disabled ones last",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.setup(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			sorted, err := a.core.Registry().GetSorted()
			if err != nil {
				return err
			}
			infos := make([]model.PluginInfo, 0, a.core.Registry().Count())
			for _, p := range sorted {
				infos = append(infos, model.Info(p))
			}
			// Disabled plugins follow in registration order
			for _, p := range a.core.Registry().GetAll() {
				if !p.Enabled() {
					infos = append(infos, model.Info(p))
				}
			}
			return a.reporter.PrintPlugins(infos)
		},
	}
}

func newConfigCmd(opts *rootOptions) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration files",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init <file>",
		Short: "Write the active configuration to a YAML or JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists, use --force to overwrite", path)
			}

			a, err := opts.setup(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.core.ConfigManager().SaveConfig(path); err != nil {
				return err
			}
			return a.reporter.PrintMessage("Configuration written to %s", path)
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")

	configCmd.AddCommand(initCmd)
	return configCmd
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the REST API",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.setup(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			cfg := a.core.ConfigManager().GetConfig()
			if !cmd.Flags().Changed("host") {
				host = cfg.API.Host
			}
			if !cmd.Flags().Changed("port") {
				port = cfg.API.Port
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if opts.configFile != "" {
				a.core.ConfigManager().WatchConfig(func(cfg *model.Config) {
					applyConfigOverrides(a.core, cfg, a.logger)
				})
				if err := a.core.ConfigManager().Watch(ctx); err != nil {
					a.logger.Warn().Err(err).Msg("configuration hot reload disabled")
				}
			}

			apiServer := api.NewAPI(a.core, host, port, a.logger)
			errCh := make(chan error, 1)
			go func() {
				errCh <- apiServer.Start()
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			a.logger.Info().Msg("shutting down API server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return apiServer.Stop(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "localhost", "API server host")
	cmd.Flags().IntVar(&port, "port", 8080, "API server port")
	return cmd
}
