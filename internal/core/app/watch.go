package app

import (
	"apimatch/internal/core/errors"
	"apimatch/internal/core/watcher"
	"context"
	"log/slog"
	"os"
)

// Watch resolves paths once, then re-resolves changed source units until ctx
// is cancelled. Each non-empty batch is handed to onReport.
func (s *Service) Watch(ctx context.Context, paths []string, onReport func(*Report)) error {
	initial, err := s.ResolveSources(ctx, paths)
	if err != nil {
		return err
	}
	if onReport != nil {
		onReport(initial)
	}

	w, err := watcher.NewWatcher(watcher.Options{
		Debounce:     s.Config.Watch.Debounce,
		Extensions:   s.Config.Sources.Extensions,
		ExcludeDirs:  s.Config.Sources.ExcludeDirs,
		ExcludeFiles: s.Config.Sources.ExcludeFiles,
	}, func(changed []string) {
		report := s.HandleChanges(ctx, changed)
		if len(report.Items) > 0 && onReport != nil {
			onReport(report)
		}
	})
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "start watcher")
	}
	defer w.Close()

	if err := w.Watch(paths); err != nil {
		return errors.Wrap(err, errors.CodeInternal, "watch source paths")
	}
	slog.Info("watching for changes", "paths", paths, "debounce", s.Config.Watch.Debounce)
	<-ctx.Done()
	return nil
}

// HandleChanges re-resolves the changed units whose content differs from the
// last resolved version. Removed files are forgotten.
func (s *Service) HandleChanges(ctx context.Context, paths []string) *Report {
	report := s.newReport(KindSources)
	var changed []string
	for _, path := range paths {
		if !s.parser.IsSupportedPath(path) {
			continue
		}
		content, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				s.forget(path)
				slog.Debug("source removed", "path", path)
				continue
			}
			report.Items = append(report.Items, Item{Key: path, Err: errors.AddContext(errors.Wrap(err, errors.CodeNotFound, "read source"), errors.CtxPath, path)})
			continue
		}
		if s.unchanged(path, content) {
			slog.Debug("source unchanged, skipping", "path", path)
			continue
		}
		changed = append(changed, path)
	}
	if len(changed) > 0 {
		report.Items = append(report.Items, s.resolveFiles(ctx, changed)...)
	}
	report.finish()
	if len(report.Items) > 0 {
		s.persist(report)
	}
	return report
}
