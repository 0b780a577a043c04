package shade

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zip"
	"golang.org/x/sync/errgroup"
)

// Change describes one file whose content or location changed.
type Change struct {
	Path   string
	Target string
	Kind   Kind
	// Diff is set for sources in dry-run mode.
	Diff string
}

// Report summarizes a run.
type Report struct {
	RunID     string
	Mode      string
	Files     int
	Relocated int
	Copied    int
	Changes   []Change
	Duration  time.Duration
}

func (s *Shader) newReport(mode string) *Report {
	return &Report{RunID: uuid.NewString(), Mode: mode}
}

func (s *Shader) finish(report *Report, results []*Result, start time.Time) {
	for _, r := range results {
		if r == nil || strings.HasSuffix(r.Path, "/") {
			continue
		}
		report.Files++
		if !r.Changed && r.Target == r.Path {
			report.Copied++
			continue
		}
		report.Relocated++
		c := Change{Path: r.Path, Target: r.Target, Kind: r.Kind}
		if s.opts.DryRun && r.Kind == KindSource {
			c.Diff = Diff(r.Path, r.original, r.Content)
		}
		report.Changes = append(report.Changes, c)
	}
	report.Duration = time.Since(start)
	s.opts.Metrics.Run(report.Mode, time.Now())
	s.logger.Info("Shade run complete",
		"run_id", report.RunID,
		"mode", report.Mode,
		"files", report.Files,
		"relocated", report.Relocated,
		"duration", report.Duration)
}

// checkCollisions fails when two files land on the same target.
// Directory entries may repeat and are deduplicated on write.
func checkCollisions(results []*Result) error {
	seen := make(map[string]string, len(results))
	for _, r := range results {
		if strings.HasSuffix(r.Target, "/") {
			continue
		}
		if prev, ok := seen[r.Target]; ok {
			return fmt.Errorf("%w: %s and %s both map to %s", ErrPathCollision, prev, r.Path, r.Target)
		}
		seen[r.Target] = r.Path
	}
	return nil
}

func (s *Shader) checkOutput(out string) error {
	if s.opts.DryRun || s.opts.Overwrite {
		return nil
	}
	if _, err := os.Stat(out); err == nil {
		return fmt.Errorf("%s: %w", out, ErrOutputExists)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Dir relocates every file under in into the directory out. Output is
// staged beside out and renamed into place only when every file succeeds.
func (s *Shader) Dir(ctx context.Context, in, out string) (*Report, error) {
	start := time.Now()
	report := s.newReport("dir")
	if err := s.checkOutput(out); err != nil {
		return nil, err
	}

	var names []string
	err := filepath.WalkDir(in, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(in, p)
		if err != nil {
			return err
		}
		names = append(names, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", in, err)
	}

	results := make([]*Result, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)
	for i, name := range names {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			content, err := os.ReadFile(filepath.Join(in, filepath.FromSlash(name)))
			if err != nil {
				return err
			}
			r, err := s.File(name, content)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Error("Shade run failed", "run_id", report.RunID, "error", err)
		return nil, err
	}
	if err := checkCollisions(results); err != nil {
		return nil, err
	}
	s.finish(report, results, start)
	if s.opts.DryRun {
		return report, nil
	}

	staging, err := os.MkdirTemp(filepath.Dir(filepath.Clean(out)), ".semshade-*")
	if err != nil {
		return nil, fmt.Errorf("create staging directory: %w", err)
	}
	defer os.RemoveAll(staging)
	if err := os.Chmod(staging, 0o755); err != nil {
		return nil, err
	}
	for _, r := range results {
		target := filepath.Join(staging, filepath.FromSlash(r.Target))
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return nil, err
		}
		if err := os.WriteFile(target, r.Content, 0o644); err != nil {
			return nil, err
		}
	}
	if err := s.commit(staging, out); err != nil {
		return nil, err
	}
	return report, nil
}

// Jar relocates every entry of the archive in into a new archive out,
// keeping entry order, compression method and timestamps.
func (s *Shader) Jar(ctx context.Context, in, out string) (*Report, error) {
	start := time.Now()
	report := s.newReport("jar")
	if err := s.checkOutput(out); err != nil {
		return nil, err
	}

	zr, err := zip.OpenReader(in)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", in, err)
	}
	defer zr.Close()

	results := make([]*Result, len(zr.File))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)
	for i, f := range zr.File {
		if strings.HasSuffix(f.Name, "/") {
			results[i] = &Result{Path: f.Name, Target: s.relocateDir(f.Name), Kind: KindResource}
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			content, err := readEntry(f)
			if err != nil {
				return fmt.Errorf("read %s: %w", f.Name, err)
			}
			r, err := s.File(f.Name, content)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Error("Shade run failed", "run_id", report.RunID, "error", err)
		return nil, err
	}
	if err := checkCollisions(results); err != nil {
		return nil, err
	}
	s.finish(report, results, start)
	if s.opts.DryRun {
		return report, nil
	}

	tmp, err := os.CreateTemp(filepath.Dir(filepath.Clean(out)), ".semshade-*.jar")
	if err != nil {
		return nil, fmt.Errorf("create staging file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if err := writeJar(tmp, zr.File, results); err != nil {
		tmp.Close()
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		return nil, err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return nil, err
	}
	if err := s.commit(tmp.Name(), out); err != nil {
		return nil, err
	}
	return report, nil
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func writeJar(w io.Writer, files []*zip.File, results []*Result) error {
	zw := zip.NewWriter(w)
	dirs := map[string]bool{}
	for i, f := range files {
		r := results[i]
		if strings.HasSuffix(r.Target, "/") {
			if dirs[r.Target] {
				continue
			}
			dirs[r.Target] = true
		}
		hdr := &zip.FileHeader{
			Name:     r.Target,
			Method:   f.Method,
			Modified: f.Modified,
			Comment:  f.Comment,
		}
		hdr.SetMode(f.Mode())
		out, err := zw.CreateHeader(hdr)
		if err != nil {
			return fmt.Errorf("write %s: %w", r.Target, err)
		}
		if _, err := out.Write(r.Content); err != nil {
			return fmt.Errorf("write %s: %w", r.Target, err)
		}
	}
	return zw.Close()
}

// commit moves staged output into place.
func (s *Shader) commit(staged, out string) error {
	if s.opts.Overwrite {
		if err := os.RemoveAll(out); err != nil {
			return fmt.Errorf("remove %s: %w", out, err)
		}
	}
	if err := os.Rename(staged, out); err != nil {
		return fmt.Errorf("commit %s: %w", out, err)
	}
	return nil
}
