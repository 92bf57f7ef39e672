package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/densenet-ml/densenet/internal/config"
)

// app holds state shared by all subcommands. It is filled in by the root
// command before any subcommand runs.
type app struct {
	configPath string
	logFormat  string
	logLevel   string

	logger *slog.Logger
	cfg    config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:          "densenet",
		Short:        "Train, evaluate and serve dense feed-forward classifiers",
		Long:         "densenet trains fully connected networks on MNIST digits (or a synthetic stand-in)\nand stores them in the .dnet model format.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "YAML run file; built-in defaults apply when empty")
	pf.StringVar(&a.logFormat, "log-format", "text", "log format: text or json")
	pf.StringVar(&a.logLevel, "log-level", "info", "log level: debug, info, warn or error")

	root.AddCommand(
		newTrainCmd(a),
		newEvalCmd(a),
		newPredictCmd(),
		newInspectCmd(),
		newVersionCmd(),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(a.logLevel)); err != nil {
		return fmt.Errorf("invalid --log-level %q: %w", a.logLevel, err)
	}
	opts := &slog.HandlerOptions{Level: level}

	w := cmd.ErrOrStderr()
	switch strings.ToLower(a.logFormat) {
	case "text":
		a.logger = slog.New(slog.NewTextHandler(w, opts))
	case "json":
		a.logger = slog.New(slog.NewJSONHandler(w, opts))
	default:
		return fmt.Errorf("invalid --log-format %q: want text or json", a.logFormat)
	}

	a.cfg = config.Default()
	if a.configPath != "" {
		cfg, err := config.Load(a.configPath)
		if err != nil {
			return err
		}
		a.cfg = cfg
	}
	return nil
}
