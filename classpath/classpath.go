// Package classpath resolves class structure from directories and jar
// files, the way a JVM class path does: the first entry holding a class
// wins.
package classpath

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/klauspost/compress/zip"

	"github.com/c360studio/semshade/verify"
)

// DefaultCacheSize is the number of parsed types kept in memory.
const DefaultCacheSize = 4096

// Option configures a Path.
type Option func(*options)

type options struct {
	cacheSize int
	logger    *slog.Logger
}

// WithCacheSize sets how many parsed types are cached.
func WithCacheSize(n int) Option {
	return func(o *options) { o.cacheSize = n }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// entry is one class path element.
type entry interface {
	// open returns the class file for an internal name, or fs.ErrNotExist.
	open(internalName string) (io.ReadCloser, error)
	// names lists the internal names of all classes in the entry.
	names() ([]string, error)
	close() error
	String() string
}

// Path is an ordered class path. It implements verify.Resolver and is safe
// for concurrent use.
type Path struct {
	entries []entry
	cache   *lru.Cache[string, *verify.Type]
	logger  *slog.Logger
}

var _ verify.Resolver = (*Path)(nil)

// Open builds a class path from directories and .jar/.zip files.
func Open(paths []string, opts ...Option) (*Path, error) {
	o := options{cacheSize: DefaultCacheSize}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	cache, err := lru.New[string, *verify.Type](o.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}

	p := &Path{cache: cache, logger: o.logger}
	for _, path := range paths {
		e, err := openEntry(path)
		if err != nil {
			p.Close()
			return nil, err
		}
		p.entries = append(p.entries, e)
	}
	return p, nil
}

func openEntry(path string) (entry, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("class path entry: %w", err)
	}
	if info.IsDir() {
		return dirEntry(path), nil
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jar", ".zip":
		r, err := zip.OpenReader(path)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		j := &jarEntry{path: path, r: r, files: make(map[string]*zip.File, len(r.File))}
		for _, f := range r.File {
			if strings.HasSuffix(f.Name, ".class") {
				j.files[strings.TrimSuffix(f.Name, ".class")] = f
			}
		}
		return j, nil
	}
	return nil, fmt.Errorf("class path entry %s: not a directory, jar or zip", path)
}

// Resolve returns the type with the given binary name ("pkg.Outer$Inner").
func (p *Path) Resolve(name string) (*verify.Type, error) {
	if t, ok := p.cache.Get(name); ok {
		return t, nil
	}
	internal := strings.ReplaceAll(name, ".", "/")
	for _, e := range p.entries {
		rc, err := e.open(internal)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s from %s: %w", name, e, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s from %s: %w", name, e, err)
		}
		t, err := verify.ParseType(content)
		if err != nil {
			return nil, fmt.Errorf("parse %s from %s: %w", name, e, err)
		}
		p.logger.Debug("Resolved type", "type", name, "entry", e.String())
		p.cache.Add(name, t)
		return t, nil
	}
	return nil, fmt.Errorf("%s: %w", name, verify.ErrTypeNotFound)
}

// Names returns the sorted binary names of all classes directly or
// indirectly under namespace. An empty namespace lists every class.
func (p *Path) Names(namespace string) ([]string, error) {
	prefix := ""
	if namespace != "" {
		prefix = strings.ReplaceAll(namespace, ".", "/") + "/"
	}
	seen := map[string]bool{}
	for _, e := range p.entries {
		names, err := e.names()
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", e, err)
		}
		for _, n := range names {
			if strings.HasPrefix(n, prefix) && n != "module-info" && !strings.HasSuffix(n, "/package-info") {
				seen[strings.ReplaceAll(n, "/", ".")] = true
			}
		}
	}
	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Strings(out)
	return out, nil
}

// Close releases open jar files.
func (p *Path) Close() error {
	var errs []error
	for _, e := range p.entries {
		if err := e.close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type dirEntry string

func (d dirEntry) open(internalName string) (io.ReadCloser, error) {
	return os.Open(filepath.Join(string(d), filepath.FromSlash(internalName)+".class"))
}

func (d dirEntry) names() ([]string, error) {
	var out []string
	err := filepath.WalkDir(string(d), func(path string, de fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if de.IsDir() || !strings.HasSuffix(path, ".class") {
			return nil
		}
		rel, err := filepath.Rel(string(d), path)
		if err != nil {
			return err
		}
		out = append(out, strings.TrimSuffix(filepath.ToSlash(rel), ".class"))
		return nil
	})
	return out, err
}

func (d dirEntry) close() error { return nil }

func (d dirEntry) String() string { return string(d) }

type jarEntry struct {
	path  string
	r     *zip.ReadCloser
	files map[string]*zip.File
}

func (j *jarEntry) open(internalName string) (io.ReadCloser, error) {
	f, ok := j.files[internalName]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return f.Open()
}

func (j *jarEntry) names() ([]string, error) {
	out := make([]string, 0, len(j.files))
	for n := range j.files {
		out = append(out, n)
	}
	return out, nil
}

func (j *jarEntry) close() error { return j.r.Close() }

func (j *jarEntry) String() string { return j.path }
