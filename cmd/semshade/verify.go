package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"

	"github.com/c360studio/semshade/classpath"
	"github.com/c360studio/semshade/verify"
)

var errDiagnostics = errors.New("relocated types differ from their originals")

type verifyFlags struct {
	from      string
	to        string
	classpath []string
	types     []string
	exclude   []string
}

func verifyCmd(a *app) *cobra.Command {
	var flags verifyFlags
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check that relocated types keep the shape of their originals",
		Long: `Verify loads every original type under --from (or the listed --type
names) from the class path, finds its counterpart under --to, and reports
each structural difference: visibility, modifiers, return and field types,
declared exceptions and constant values. The command fails when any
difference is found.

Members can be skipped with --exclude patterns over "Type#member", for
example "org.acme.Legacy#*" or "**#debug*".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.verify(cmd, &flags)
		},
	}
	cmd.Flags().StringVar(&flags.from, "from", "", "Original namespace")
	cmd.Flags().StringVar(&flags.to, "to", "", "Relocated namespace")
	cmd.Flags().StringArrayVar(&flags.classpath, "classpath", nil, "Directory or jar holding classes; repeatable")
	cmd.Flags().StringArrayVar(&flags.types, "type", nil, "Original type to verify; repeatable (default: all under --from)")
	cmd.Flags().StringArrayVar(&flags.exclude, "exclude", nil, `Skip types or members matching "Type#member"; repeatable`)
	return cmd
}

func (f *verifyFlags) merge(a *app) {
	c := a.cfg.Verify
	if f.from == "" {
		f.from = c.From
	}
	if f.to == "" {
		f.to = c.To
	}
	if len(f.classpath) == 0 {
		f.classpath = c.Classpath
	}
	if len(f.types) == 0 {
		f.types = c.Types
	}
	if len(f.exclude) == 0 {
		f.exclude = c.Exclude
	}
}

func (a *app) verify(cmd *cobra.Command, flags *verifyFlags) error {
	flags.merge(a)
	for _, p := range flags.exclude {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("invalid pattern %q: %w", p, doublestar.ErrBadPattern)
		}
	}
	if len(flags.classpath) == 0 {
		return errors.New("no class path: pass --classpath or configure verify.classpath")
	}

	path, err := classpath.Open(flags.classpath, classpath.WithLogger(a.logger))
	if err != nil {
		return err
	}
	defer path.Close()

	mapper, err := verify.NewNameMapper(flags.from, flags.to, path)
	if err != nil {
		return err
	}
	relocated := verify.MustDiffer(mapper)

	names := flags.types
	if len(names) == 0 {
		if names, err = path.Names(flags.from); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	checked, total := 0, 0
	for _, name := range names {
		if excluded(flags.exclude, name) {
			a.logger.Debug("Skipping excluded type", "type", name)
			continue
		}
		// the relocated copy may live inside the original namespace
		if strings.HasPrefix(name, flags.to+".") {
			continue
		}
		original, err := path.Resolve(name)
		if err != nil {
			return err
		}
		if _, err := relocated(original.Ref()); err != nil {
			return err
		}

		keep := func(m *verify.Member) bool {
			return !excluded(flags.exclude, name+"#"+m.Name)
		}
		v := verify.New(path, mapper,
			verify.WithConstructors(keep),
			verify.WithMethods(keep),
			verify.WithFields(keep),
			verify.WithLogger(a.logger))
		diags, err := v.Verify(original)
		if err != nil {
			return err
		}
		for _, d := range diags {
			fmt.Fprintf(out, "%s: %s\n", name, d.Message)
			a.metrics.Diagnostic(d.Kind.String())
		}
		checked++
		total += len(diags)
	}
	a.metrics.Run("verify", time.Now())

	fmt.Fprintf(out, "%d types checked, %d differences\n", checked, total)
	if total > 0 {
		return fmt.Errorf("%w: %d differences", errDiagnostics, total)
	}
	return nil
}

func excluded(patterns []string, name string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, name); ok {
			return true
		}
	}
	return false
}
