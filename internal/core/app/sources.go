package app

import (
	"apimatch/internal/core/errors"
	"apimatch/internal/engine/parser"
	"apimatch/internal/engine/resolver"
	"apimatch/internal/engine/tracker"
	"apimatch/internal/shared/observability"
	"apimatch/internal/shared/util"
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gobwas/glob"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// ScanSources lists the supported source files under paths, skipping
// excluded directory and file names. Explicit file arguments are kept when
// supported. The result is sorted and free of duplicates.
func (s *Service) ScanSources(paths []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			files = append(files, path)
		}
	}

	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, errors.AddContext(errors.Wrap(err, errors.CodeNotFound, "stat source path"), errors.CtxPath, root)
		}
		if !info.IsDir() {
			if s.parser.IsSupportedPath(root) {
				add(filepath.Clean(root))
			}
			continue
		}

		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			base := filepath.Base(path)
			if d.IsDir() {
				if path != root && matchAny(s.excludeDirs, base) {
					return filepath.SkipDir
				}
				return nil
			}
			if !s.parser.IsSupportedPath(path) || matchAny(s.excludeFiles, base) {
				return nil
			}
			add(path)
			return nil
		})
		if err != nil {
			return nil, errors.AddContext(errors.Wrap(err, errors.CodeInternal, "walk source path"), errors.CtxPath, root)
		}
	}
	sort.Strings(files)
	return files, nil
}

// ResolveSources extracts and resolves every call site of the source units
// under paths. Units are processed in parallel, each with its own tracker;
// items keep file order. A unit that fails to parse becomes one failed item.
func (s *Service) ResolveSources(ctx context.Context, paths []string) (*Report, error) {
	ctx, span := observability.Tracer.Start(ctx, "app.ResolveSources", trace.WithAttributes(
		attribute.StringSlice("paths", paths),
	))
	defer span.End()

	files, err := s.ScanSources(paths)
	if err != nil {
		return nil, err
	}
	report := s.newReport(KindSources)
	report.Items = s.resolveFiles(ctx, files)
	report.finish()
	if err := ctx.Err(); err != nil {
		return report, err
	}
	s.persist(report)
	span.SetAttributes(attribute.Int("files", len(files)), attribute.Int("items", len(report.Items)))
	return report, nil
}

func (s *Service) resolveFiles(ctx context.Context, files []string) []Item {
	results := make([][]Item, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers())
	for i, path := range files {
		g.Go(func() error {
			content, err := os.ReadFile(path)
			if err != nil {
				results[i] = []Item{{Key: path, File: path, Err: errors.AddContext(errors.Wrap(err, errors.CodeNotFound, "read source"), errors.CtxPath, path)}}
				return nil
			}
			results[i] = s.resolveFile(gctx, path, content)
			return nil
		})
	}
	_ = g.Wait()

	var items []Item
	for _, r := range results {
		items = append(items, r...)
	}
	return items
}

func (s *Service) workers() int {
	if n := s.Config.Sources.Workers; n > 0 {
		return n
	}
	return 4
}

// resolveFile parses one unit and resolves its calls. It remembers the
// content hash so watch mode can skip unchanged saves.
func (s *Service) resolveFile(ctx context.Context, path string, content []byte) []Item {
	if ctx.Err() != nil {
		return nil
	}
	start := time.Now()
	unit, err := s.parser.ParseFile(path, content)
	observability.ParsingDuration.WithLabelValues("python").Observe(time.Since(start).Seconds())
	if err != nil {
		observability.ParseErrorsTotal.Inc()
		slog.Warn("skipping source unit", "path", path, "error", err)
		return []Item{{Key: path, File: path, Err: err}}
	}
	s.rememberHash(path, util.ContentHash(content))
	return s.resolveUnit(ctx, unit)
}

// resolveUnit walks the calls of unit in source order. Before each call the
// tracker learns the assignments completed on earlier lines, so receivers and
// variable arguments carry the types known at that point.
func (s *Service) resolveUnit(ctx context.Context, unit *parser.Unit) []Item {
	assignments := append([]parser.Assignment(nil), unit.Assignments...)
	sort.SliceStable(assignments, func(i, j int) bool {
		return before(assignments[i].Location, assignments[j].Location)
	})

	tr := tracker.New()
	next := 0
	items := make([]Item, 0, len(unit.Calls))
	for _, call := range unit.Calls {
		if ctx.Err() != nil {
			break
		}
		for next < len(assignments) && assignments[next].Location.Line < call.Location.Line {
			a := assignments[next]
			tr.Add(tracker.ObjectContext{
				Name:           a.Name,
				InferredType:   a.Type,
				CreationStep:   a.StepNumber,
				CreationMethod: a.Method,
			})
			next++
		}

		subject := resolver.CallSubject(call, unit.StepTitles[call.StepNumber])
		res := s.resolver.Resolve(ctx, subject, tr)
		items = append(items, Item{
			Key:          subject.Key,
			StepNumber:   call.StepNumber,
			Title:        subject.Title(),
			File:         call.Location.File,
			Line:         call.Location.Line,
			Matches:      res.Matches,
			FallbackUsed: res.FallbackUsed,
		})
	}
	return items
}

func before(a, b parser.Location) bool {
	if a.Line != b.Line {
		return a.Line < b.Line
	}
	return a.Column < b.Column
}

func matchAny(globs []glob.Glob, name string) bool {
	for _, g := range globs {
		if g.Match(name) {
			return true
		}
	}
	return false
}

func (s *Service) rememberHash(path, hash string) {
	s.hashMu.Lock()
	defer s.hashMu.Unlock()
	s.hashes[path] = hash
}

// unchanged reports whether content matches the last resolved version.
func (s *Service) unchanged(path string, content []byte) bool {
	s.hashMu.Lock()
	defer s.hashMu.Unlock()
	prev, ok := s.hashes[path]
	return ok && prev == util.ContentHash(content)
}

func (s *Service) forget(path string) {
	s.hashMu.Lock()
	defer s.hashMu.Unlock()
	delete(s.hashes, path)
}
