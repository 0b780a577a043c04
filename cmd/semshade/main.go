// Package main provides the semshade binary entry point.
// Semshade relocates Java namespaces in class files and sources, and
// verifies that relocated types keep the shape of their originals.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/c360studio/semshade/config"
	"github.com/c360studio/semshade/mapping"
	"github.com/c360studio/semshade/metrics"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "semshade"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app is the state shared by all subcommands, set up before each run.
type app struct {
	configPath  string
	logLevel    string
	metricsFile string

	logger  *slog.Logger
	cfg     *config.Config
	metrics *metrics.Recorder
}

func rootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Java namespace relocation",
		Long: `Semshade relocates ("shades") Java namespaces.

It rewrites every namespace-qualified reference in compiled class files and
in Java sources according to an ordered list of from=to rules, for single
files, directory trees and jars. The verify command checks that relocated
types are structurally interchangeable with their originals.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.flushMetrics()
		},
	}

	cmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&a.metricsFile, "metrics-file", "", "Write Prometheus metrics to this file after the run")

	cmd.AddCommand(relocateCmd(a), watchCmd(a), verifyCmd(a), rulesCmd(a), configCmd(a))
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	return cmd
}

func (a *app) setup(cmd *cobra.Command) error {
	level := slog.LevelInfo
	switch strings.ToLower(a.logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	slog.SetDefault(a.logger)

	cfg, err := config.NewLoader(a.logger).Load(a.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	a.cfg = cfg
	if a.metricsFile == "" {
		a.metricsFile = cfg.Metrics.Textfile
	}
	if a.metricsFile != "" {
		a.metrics = metrics.New()
	}
	return nil
}

func (a *app) flushMetrics() error {
	if err := a.metrics.WriteTextfile(a.metricsFile); err != nil {
		return err
	}
	if a.metrics != nil {
		a.logger.Debug("Wrote metrics", "path", a.metricsFile)
	}
	return nil
}

// ruleFlags are the table flags shared by relocate and watch.
type ruleFlags struct {
	rules    []string
	boundary bool
}

func (f *ruleFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringArrayVarP(&f.rules, "rule", "r", nil, "Relocation rule from=to; repeatable, first match wins (replaces configured rules)")
	cmd.Flags().BoolVar(&f.boundary, "boundary", false, "Only match whole namespace segments")
}

// apply overrides the configured rules with the command line.
func (f *ruleFlags) apply(cfg *config.Config) error {
	if len(f.rules) > 0 {
		rules, err := mapping.ParseRules(f.rules)
		if err != nil {
			return err
		}
		cfg.Rules = rules
	}
	if f.boundary {
		cfg.Boundary = true
	}
	return nil
}

var errNoRules = errors.New("no relocation rules: pass --rule from=to or configure rules")

func (a *app) table(f *ruleFlags) (*mapping.Table, error) {
	if err := f.apply(a.cfg); err != nil {
		return nil, err
	}
	if len(a.cfg.Rules) == 0 {
		return nil, errNoRules
	}
	return a.cfg.Table()
}

func rulesCmd(a *app) *cobra.Command {
	var flags ruleFlags
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Print the effective relocation rules in match order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := a.table(&flags)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for i, r := range table.Rules() {
				fmt.Fprintf(out, "%d. %s\n", i+1, r)
			}
			mode := "prefix"
			if table.Boundary() {
				mode = "boundary"
			}
			fmt.Fprintf(out, "matching: %s\n", mode)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}
