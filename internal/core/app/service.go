package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"apisurface/internal/core/errors"
	"apisurface/internal/core/model"
	"apisurface/internal/core/ports"
	"apisurface/internal/data/codec"
	"apisurface/internal/data/snapshots"
	"apisurface/internal/engine/diff"
	"apisurface/internal/engine/semver"
	"apisurface/internal/shared/observability"
)

type surfaceService struct {
	app *App
}

var _ ports.SurfaceService = (*surfaceService)(nil)

func NewSurfaceService(app *App) ports.SurfaceService {
	return &surfaceService{app: app}
}

func (a *App) SurfaceService() ports.SurfaceService {
	return NewSurfaceService(a)
}

func (s *surfaceService) Dump(ctx context.Context, req ports.DumpRequest) (ports.DumpResult, error) {
	ctx, span := observability.Tracer.Start(ctx, "surfaceService.Dump",
		trace.WithAttributes(attribute.StringSlice("targets", req.Targets)))
	defer span.End()

	if err := ctx.Err(); err != nil {
		return ports.DumpResult{}, err
	}
	if s.app == nil {
		return ports.DumpResult{}, fmt.Errorf("app is required")
	}

	start := time.Now()
	modules, stats, err := s.app.extractTargets(req.Targets)
	if err != nil {
		recordError(span, err)
		return ports.DumpResult{}, errors.AddContext(err, errors.CtxOperation, "dump")
	}
	span.SetAttributes(
		attribute.Int("files_parsed", stats.Parsed),
		attribute.Int("cache_hits", stats.CacheHits),
	)
	return ports.DumpResult{
		Modules:     modules,
		FilesParsed: stats.Parsed,
		CacheHits:   stats.CacheHits,
		Duration:    time.Since(start),
	}, nil
}

func (s *surfaceService) Compare(ctx context.Context, req ports.CompareRequest) (ports.CompareResult, error) {
	_, span := observability.Tracer.Start(ctx, "surfaceService.Compare")
	defer span.End()

	if err := ctx.Err(); err != nil {
		return ports.CompareResult{}, err
	}
	if s.app == nil {
		return ports.CompareResult{}, fmt.Errorf("app is required")
	}

	start := time.Now()
	identical := model.ModulesEqual(req.Before, req.After)
	changes := []diff.Change{}
	if !identical {
		changes = s.app.differ.Compare(req.Before, req.After)
	}
	observePhase("diff", start)

	level := diff.Worst(changes)
	for _, c := range changes {
		observability.ChangesTotal.WithLabelValues(c.Level.String()).Inc()
	}
	observability.LastLevel.Set(float64(level))
	span.SetAttributes(
		attribute.Int("changes", len(changes)),
		attribute.String("level", level.String()),
		attribute.Bool("identical", identical),
	)
	slog.Debug("comparison finished", "changes", len(changes), "level", level)

	return ports.CompareResult{
		Changes: changes,
		Level:   level,
		Summary: diff.Summarize(changes),
	}, nil
}

func (s *surfaceService) Bump(ctx context.Context, req ports.BumpRequest) (ports.BumpResult, error) {
	_, span := observability.Tracer.Start(ctx, "surfaceService.Bump")
	defer span.End()

	if err := ctx.Err(); err != nil {
		return ports.BumpResult{}, err
	}
	version := strings.TrimSpace(req.Version)
	next, err := semver.Bump(req.Level, version)
	if err != nil {
		recordError(span, err)
		return ports.BumpResult{}, errors.AddContext(err, errors.CtxVersion, version)
	}
	span.SetAttributes(attribute.String("version", next))
	return ports.BumpResult{Previous: version, Next: next}, nil
}

func (s *surfaceService) SaveSnapshot(ctx context.Context, req ports.SaveRequest) (snapshots.Ref, error) {
	_, span := observability.Tracer.Start(ctx, "surfaceService.SaveSnapshot")
	defer span.End()

	if err := ctx.Err(); err != nil {
		return snapshots.Ref{}, err
	}
	if s.app == nil {
		return snapshots.Ref{}, fmt.Errorf("app is required")
	}
	if len(req.Modules) == 0 {
		return snapshots.Ref{}, errors.New(errors.CodeValidationError, "no modules to save")
	}

	commit := strings.TrimSpace(req.Commit)
	if commit == "" {
		head, err := snapshots.ResolveCommit(s.app.Paths.ProjectRoot, "HEAD")
		if err != nil {
			recordError(span, err)
			return snapshots.Ref{}, errors.AddContext(err, errors.CtxOperation, "resolve_head")
		}
		commit = head
	}

	data, err := codec.Marshal(req.Modules, codec.FormatJSON)
	if err != nil {
		recordError(span, err)
		return snapshots.Ref{}, err
	}
	store, err := s.app.snapshotStore()
	if err != nil {
		recordError(span, err)
		return snapshots.Ref{}, err
	}

	start := time.Now()
	ref, err := store.Save(commit, moduleLabel(req.Modules), data)
	observePhase("store", start)
	if err != nil {
		recordError(span, err)
		return snapshots.Ref{}, errors.AddContext(err, errors.CtxCommit, commit)
	}
	observability.SnapshotsSavedTotal.Inc()
	span.SetAttributes(attribute.String("commit", ref.Commit), attribute.String("digest", ref.Digest))
	slog.Info("snapshot saved", "commit", ref.Commit, "module", ref.Module, "digest", ref.Digest)
	return ref, nil
}

// LoadSnapshot loads the snapshot saved under commit. A revision that is not
// stored verbatim, such as HEAD~1 or a short hash, is resolved through git.
func (s *surfaceService) LoadSnapshot(ctx context.Context, commit string) (ports.LoadResult, error) {
	_, span := observability.Tracer.Start(ctx, "surfaceService.LoadSnapshot")
	defer span.End()

	if err := ctx.Err(); err != nil {
		return ports.LoadResult{}, err
	}
	if s.app == nil {
		return ports.LoadResult{}, fmt.Errorf("app is required")
	}
	store, err := s.app.snapshotStore()
	if err != nil {
		recordError(span, err)
		return ports.LoadResult{}, err
	}

	commit = strings.TrimSpace(commit)
	if commit == "" {
		commit = "HEAD"
	}
	data, ref, err := store.Load(commit)
	if errors.IsCode(err, errors.CodeNotFound) {
		resolved, resolveErr := snapshots.ResolveCommit(s.app.Paths.ProjectRoot, commit)
		if resolveErr == nil && resolved != commit {
			data, ref, err = store.Load(resolved)
		}
	}
	if err != nil {
		recordError(span, err)
		return ports.LoadResult{}, errors.AddContext(err, errors.CtxCommit, commit)
	}

	modules, err := codec.Unmarshal(data, codec.FormatJSON)
	if err != nil {
		recordError(span, err)
		return ports.LoadResult{}, errors.AddContext(err, errors.CtxCommit, ref.Commit)
	}
	return ports.LoadResult{Modules: modules, Ref: ref}, nil
}

func (s *surfaceService) ListSnapshots(ctx context.Context) ([]snapshots.Ref, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.app == nil {
		return nil, fmt.Errorf("app is required")
	}
	store, err := s.app.snapshotStore()
	if err != nil {
		return nil, err
	}
	return store.Refs()
}

func moduleLabel(modules []*model.Module) string {
	names := make([]string, 0, len(modules))
	for _, m := range modules {
		names = append(names, m.Path)
	}
	return strings.Join(names, ",")
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
