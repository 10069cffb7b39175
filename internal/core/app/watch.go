package app

import (
	"context"
	"fmt"
	"log/slog"

	"apisurface/internal/core/errors"
	"apisurface/internal/core/model"
	"apisurface/internal/core/ports"
	"apisurface/internal/core/watcher"
	"apisurface/internal/shared/observability"
)

// Watch extracts req.Targets whenever their sources change and reports the
// comparison against the baseline to handler. It blocks until ctx is done.
func (s *surfaceService) Watch(ctx context.Context, req ports.WatchRequest, handler func(ports.WatchUpdate)) error {
	ctx, span := observability.Tracer.Start(ctx, "surfaceService.Watch")
	defer span.End()

	if s.app == nil {
		return fmt.Errorf("app is required")
	}
	if handler == nil {
		return errors.New(errors.CodeValidationError, "watch handler is required")
	}

	baseline := req.Baseline
	if baseline == nil {
		res, err := s.Dump(ctx, ports.DumpRequest{Targets: req.Targets})
		if err != nil {
			return err
		}
		baseline = res.Modules
	}
	roots, err := s.app.watchRoots(req.Targets)
	if err != nil {
		return err
	}

	onChange := func(files []string) {
		if ctx.Err() != nil {
			return
		}
		update := s.refresh(ctx, req.Targets, baseline)
		update.Files = files
		handler(update)
		if err := s.app.ExportMetrics(); err != nil {
			slog.Warn("metrics export failed", "error", err)
		}
	}
	if err := s.app.startWatcher(roots, onChange); err != nil {
		return errors.AddContext(err, errors.CtxOperation, "start_watcher")
	}
	slog.Info("watching for changes", "roots", roots)

	<-ctx.Done()
	return s.app.stopWatcher()
}

func (s *surfaceService) refresh(ctx context.Context, targets []string, baseline []*model.Module) ports.WatchUpdate {
	res, err := s.Dump(ctx, ports.DumpRequest{Targets: targets})
	if err != nil {
		return ports.WatchUpdate{Err: err}
	}
	cmp, err := s.Compare(ctx, ports.CompareRequest{Before: baseline, After: res.Modules})
	if err != nil {
		return ports.WatchUpdate{Err: err}
	}
	return ports.WatchUpdate{Changes: cmp.Changes, Level: cmp.Level}
}

func (a *App) startWatcher(roots []string, onChange func([]string)) error {
	a.watchMu.Lock()
	defer a.watchMu.Unlock()
	if a.activeWatcher != nil {
		return errors.New(errors.CodeValidationError, "a watcher is already running")
	}

	cfg := a.Config.Watch
	w, err := watcher.NewWatcher(cfg.Debounce, cfg.ExcludeDirs, onChange)
	if err != nil {
		return err
	}
	w.SetMinInterval(cfg.MinInterval)
	if err := w.Watch(roots); err != nil {
		_ = w.Close()
		return err
	}
	a.activeWatcher = w
	return nil
}

func (a *App) stopWatcher() error {
	a.watchMu.Lock()
	defer a.watchMu.Unlock()
	if a.activeWatcher == nil {
		return nil
	}
	err := a.activeWatcher.Close()
	a.activeWatcher = nil
	return err
}
