package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/3-lines-studio/asgard"
	"github.com/3-lines-studio/asgard/internal/adapters/cli"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// newRenderer is replaced in tests.
var newRenderer = asgard.New

type app struct {
	v      *viper.Viper
	logger *slog.Logger
	cmd    *cobra.Command
}

func newRootCmd() *cobra.Command {
	return newApp().cmd
}

func newApp() *app {
	a := &app{v: viper.New()}
	a.v.SetEnvPrefix("asgard")
	a.v.AutomaticEnv()

	defaults, err := asgard.LoadConfig()
	if err != nil {
		defaults = asgard.DefaultConfig()
	}

	var configFile string

	cmd := &cobra.Command{
		Use:           "asgard",
		Short:         "Server-side render single-file view components",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.readConfig(configFile); err != nil {
				return err
			}
			return a.setupLogger(cmd.ErrOrStderr())
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "config file (default ./asgard.yaml)")
	flags.String("resources", defaults.Resources, "directory view paths are resolved against")
	flags.String("node-modules", defaults.NodeModules, "node_modules directory for bare imports")
	flags.String("mode", defaults.Mode, "build mode: development or production")
	flags.String("engine", defaults.Engine, "render engine: goja or node")
	flags.String("node", defaults.Node, "node executable for the node engine")
	flags.String("view-ext", defaults.ViewExt, "view file extension")
	flags.Int("concurrency", defaults.Concurrency, "views built in parallel by precompile (0 = GOMAXPROCS)")
	flags.String("log-level", "info", "log level: debug, info, warn or error")

	bindings := map[string]string{
		"resources":    "resources",
		"node_modules": "node-modules",
		"mode":         "mode",
		"engine":       "engine",
		"node":         "node",
		"view_ext":     "view-ext",
		"concurrency":  "concurrency",
		"log_level":    "log-level",
	}
	for key, flag := range bindings {
		_ = a.v.BindPFlag(key, flags.Lookup(flag))
	}

	cmd.AddCommand(
		newPrecompileCmd(a),
		newRenderCmd(a),
		newServeCmd(a),
	)
	a.cmd = cmd
	return a
}

func (a *app) readConfig(file string) error {
	if file != "" {
		a.v.SetConfigFile(file)
	} else {
		a.v.SetConfigName("asgard")
		a.v.SetConfigType("yaml")
		a.v.AddConfigPath(".")
	}

	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("could not read configuration file: %w", err)
		}
	}
	return nil
}

func (a *app) setupLogger(w io.Writer) error {
	level, err := log.ParseLevel(a.v.GetString("log_level"))
	if err != nil {
		return err
	}

	handler := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
		Level:           level,
	})
	a.logger = slog.New(handler)

	if used := a.v.ConfigFileUsed(); used != "" {
		a.logger.Debug("using configuration file", "path", used)
	}
	return nil
}

func (a *app) config() (asgard.Config, error) {
	var cfg asgard.Config
	if err := a.v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, cfg.Validate()
}

func (a *app) renderer(opts ...asgard.Option) (*asgard.Renderer, error) {
	cfg, err := a.config()
	if err != nil {
		return nil, err
	}
	return newRenderer(append([]asgard.Option{
		asgard.WithConfig(cfg),
		asgard.WithLogger(a.logger),
	}, opts...)...)
}

func output(cmd *cobra.Command) *cli.Output {
	return cli.NewOutput(cmd.OutOrStdout(), cmd.ErrOrStderr())
}
