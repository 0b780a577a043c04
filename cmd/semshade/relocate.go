package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/c360studio/semshade/shade"
)

// shadeFlags are the relocation flags shared by relocate and watch.
type shadeFlags struct {
	ruleFlags
	charset       string
	include       []string
	exclude       []string
	workers       int
	relocatePaths bool
	overwrite     bool
	dryRun        bool
}

func (f *shadeFlags) register(cmd *cobra.Command) {
	f.ruleFlags.register(cmd)
	cmd.Flags().StringVar(&f.charset, "charset", "", "Charset of Java sources (IANA name, default UTF-8)")
	cmd.Flags().StringArrayVar(&f.include, "include", nil, "Only relocate files matching this pattern; repeatable")
	cmd.Flags().StringArrayVar(&f.exclude, "exclude", nil, "Copy files matching this pattern unchanged; repeatable")
	cmd.Flags().IntVar(&f.workers, "workers", 0, "Files relocated in parallel (default: number of CPUs)")
	cmd.Flags().BoolVar(&f.relocatePaths, "relocate-paths", false, "Move outputs into the directory of their new package")
}

func (a *app) shader(f *shadeFlags) (*shade.Shader, error) {
	table, err := a.table(&f.ruleFlags)
	if err != nil {
		return nil, err
	}
	opts := shade.Options{
		Table:         table,
		Charset:       a.cfg.Source.Charset,
		Include:       a.cfg.Files.Include,
		Exclude:       a.cfg.Files.Exclude,
		Workers:       a.cfg.Files.Workers,
		RelocatePaths: a.cfg.Files.RelocatePaths || f.relocatePaths,
		Overwrite:     f.overwrite,
		DryRun:        f.dryRun,
		Logger:        a.logger,
		Metrics:       a.metrics,
	}
	if f.charset != "" {
		opts.Charset = f.charset
	}
	if len(f.include) > 0 {
		opts.Include = f.include
	}
	if len(f.exclude) > 0 {
		opts.Exclude = f.exclude
	}
	if f.workers > 0 {
		opts.Workers = f.workers
	}
	return shade.New(opts)
}

func relocateCmd(a *app) *cobra.Command {
	var flags shadeFlags
	cmd := &cobra.Command{
		Use:   "relocate <in> <out>",
		Short: "Relocate a class file, Java source, directory or jar",
		Long: `Relocate rewrites namespace-qualified references in <in> and writes the
result to <out>. <in> may be a .class or .java file, a directory tree or a
.jar/.zip archive. Other files are copied unchanged. Output is committed only
when every file relocates successfully.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.shader(&flags)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			report, err := s.Run(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), report, flags.dryRun)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&flags.overwrite, "overwrite", false, "Replace an existing output")
	cmd.Flags().BoolVarP(&flags.dryRun, "dry-run", "n", false, "Show what would change without writing")
	return cmd
}

func printReport(w io.Writer, report *shade.Report, dryRun bool) {
	if dryRun {
		for _, c := range report.Changes {
			if c.Target != c.Path {
				fmt.Fprintf(w, "move %s -> %s\n", c.Path, c.Target)
			}
			fmt.Fprint(w, c.Diff)
		}
	}
	fmt.Fprintf(w, "%d files, %d relocated, %d copied in %s (run %s)\n",
		report.Files, report.Relocated, report.Copied, report.Duration.Round(time.Millisecond), report.RunID)
}

func watchCmd(a *app) *cobra.Command {
	var flags shadeFlags
	cmd := &cobra.Command{
		Use:   "watch <in-dir> <out-dir>",
		Short: "Relocate a directory and keep the output in sync as files change",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.shader(&flags)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return watch(ctx, cmd.OutOrStdout(), s, args[0], args[1], a)
		},
	}
	flags.register(cmd)
	return cmd
}

func watch(ctx context.Context, out io.Writer, s *shade.Shader, in, dst string, a *app) error {
	w, err := shade.NewWatcher(shade.WatcherConfig{
		Root:   in,
		Out:    dst,
		Shader: s,
		Logger: a.logger,
	})
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		return err
	}
	defer w.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events():
			if !ok {
				return nil
			}
			if ev.Error != nil {
				fmt.Fprintf(out, "error %s: %v\n", ev.Path, ev.Error)
				continue
			}
			fmt.Fprintf(out, "%s %s -> %s\n", ev.Operation, ev.Path, ev.Target)
			if err := a.flushMetrics(); err != nil {
				a.logger.Warn("Failed to write metrics", "error", err)
			}
		}
	}
}
