// Package shade applies a relocation table to whole artifacts: single files,
// directory trees and jar archives. Class files and Java sources are
// rewritten; everything else is copied byte for byte.
package shade

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/c360studio/semshade/mapping"
	"github.com/c360studio/semshade/metrics"
	"github.com/c360studio/semshade/relocate"
)

// Kind classifies a file by how it is relocated.
type Kind string

const (
	KindClass    Kind = "class"
	KindSource   Kind = "source"
	KindResource Kind = "resource"
)

// KindOf classifies a path by extension.
func KindOf(name string) Kind {
	switch strings.ToLower(path.Ext(filepath.ToSlash(name))) {
	case ".class":
		return KindClass
	case ".java":
		return KindSource
	}
	return KindResource
}

var (
	// ErrPathCollision is returned when two inputs relocate to the same
	// output path.
	ErrPathCollision = errors.New("relocated paths collide")

	// ErrOutputExists is returned when the output exists and Overwrite is
	// not set.
	ErrOutputExists = errors.New("output already exists")

	// ErrNoTable is returned by New without a relocation table.
	ErrNoTable = errors.New("relocation table is required")
)

// Options configures a Shader.
type Options struct {
	Table *mapping.Table

	// Charset of Java sources; empty means UTF-8.
	Charset string

	// Include and Exclude are doublestar patterns matched against
	// slash-separated paths relative to the input root. Files not
	// included, or excluded, are copied unchanged.
	Include []string
	Exclude []string

	// Workers bounds concurrent file processing; zero means NumCPU.
	Workers int

	// RelocatePaths moves relocated classes and sources into the package
	// directory of their new namespace. The input root must be the
	// package root.
	RelocatePaths bool

	// Overwrite replaces an existing output.
	Overwrite bool

	// DryRun computes the report, including source diffs, without writing.
	DryRun bool

	Logger  *slog.Logger
	Metrics *metrics.Recorder
}

// Shader relocates files according to its Options. It is safe for
// concurrent use.
type Shader struct {
	opts   Options
	logger *slog.Logger
}

// New validates opts and returns a Shader.
func New(opts Options) (*Shader, error) {
	if opts.Table == nil {
		return nil, ErrNoTable
	}
	for _, p := range append(append([]string{}, opts.Include...), opts.Exclude...) {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid pattern %q: %w", p, doublestar.ErrBadPattern)
		}
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Shader{opts: opts, logger: logger}, nil
}

// Result is the outcome of relocating one file.
type Result struct {
	// Path is the slash-separated input path; Target is where the output
	// belongs.
	Path    string
	Target  string
	Kind    Kind
	Content []byte
	Changed bool

	original []byte
}

// File relocates content found at the slash-separated relative path name.
func (s *Shader) File(name string, content []byte) (*Result, error) {
	start := time.Now()
	r := &Result{Path: name, Target: name, Kind: KindOf(name), Content: content, original: content}
	if r.Kind == KindResource || !s.selected(name) {
		s.opts.Metrics.File(string(r.Kind), metrics.ResultCopied, time.Since(start))
		return r, nil
	}

	var out []byte
	var err error
	switch r.Kind {
	case KindClass:
		out, err = relocate.Class(content, s.opts.Table)
	case KindSource:
		out, err = relocate.Source(content, s.opts.Charset, s.opts.Table)
	}
	if err != nil {
		s.opts.Metrics.File(string(r.Kind), metrics.ResultFailed, time.Since(start))
		return nil, fmt.Errorf("relocate %s: %w", name, err)
	}
	r.Content = out
	r.Changed = string(out) != string(content)
	if s.opts.RelocatePaths {
		if r.Target, err = s.relocatePath(name, r.Kind, content); err != nil {
			s.opts.Metrics.File(string(r.Kind), metrics.ResultFailed, time.Since(start))
			return nil, fmt.Errorf("relocate %s: %w", name, err)
		}
	}

	result := metrics.ResultUnchanged
	if r.Changed || r.Target != r.Path {
		result = metrics.ResultRelocated
	}
	s.opts.Metrics.File(string(r.Kind), result, time.Since(start))
	return r, nil
}

func (s *Shader) selected(name string) bool {
	if len(s.opts.Include) > 0 && !matchAny(s.opts.Include, name) {
		return false
	}
	return !matchAny(s.opts.Exclude, name)
}

func matchAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, name); ok {
			return true
		}
	}
	return false
}

// relocatePath moves a class to the path of its relocated internal name,
// keeping any directories above the package root. Sources map their path
// stem "a/b/C" through the table as an internal name.
func (s *Shader) relocatePath(name string, kind Kind, content []byte) (string, error) {
	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	if kind == KindClass {
		from, to, err := relocate.ClassName(content, s.opts.Table)
		if err != nil {
			return "", err
		}
		if stem == from || strings.HasSuffix(stem, "/"+from) {
			return stem[:len(stem)-len(from)] + to + ext, nil
		}
		return to + ext, nil
	}
	if out, ok := s.opts.Table.LookupBinary(stem); ok {
		return out + ext, nil
	}
	return name, nil
}

// relocateDir maps a directory entry ("a/b/") the same way.
func (s *Shader) relocateDir(name string) string {
	if !s.opts.RelocatePaths {
		return name
	}
	if out, ok := s.opts.Table.LookupBinary(strings.TrimSuffix(name, "/")); ok {
		return out + "/"
	}
	return name
}

// Run relocates in to out, choosing Dir, Jar or a single file from what in
// is.
func (s *Shader) Run(ctx context.Context, in, out string) (*Report, error) {
	info, err := os.Stat(in)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return s.Dir(ctx, in, out)
	}
	switch strings.ToLower(filepath.Ext(in)) {
	case ".jar", ".zip":
		return s.Jar(ctx, in, out)
	}
	return s.single(in, out)
}

func (s *Shader) single(in, out string) (*Report, error) {
	start := time.Now()
	report := s.newReport("file")
	if err := s.checkOutput(out); err != nil {
		return nil, err
	}
	content, err := os.ReadFile(in)
	if err != nil {
		return nil, err
	}
	r, err := s.File(filepath.Base(in), content)
	if err != nil {
		return nil, err
	}
	s.finish(report, []*Result{r}, start)
	if s.opts.DryRun {
		return report, nil
	}
	if err := os.WriteFile(out, r.Content, 0o644); err != nil {
		return nil, fmt.Errorf("write %s: %w", out, err)
	}
	return report, nil
}
