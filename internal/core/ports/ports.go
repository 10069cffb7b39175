package ports

import (
	"context"
	"time"

	"apisurface/internal/core/model"
	"apisurface/internal/data/snapshots"
	"apisurface/internal/engine/diff"
)

// SnapshotStore abstracts persistence of encoded surfaces keyed by commit.
type SnapshotStore interface {
	Save(commit, module string, data []byte) (snapshots.Ref, error)
	Load(commit string) ([]byte, snapshots.Ref, error)
	Refs() ([]snapshots.Ref, error)
	Close() error
}

// DumpRequest names the modules to extract, as dotted names or paths.
type DumpRequest struct {
	Targets []string
}

// DumpResult holds the extracted surfaces in target order.
type DumpResult struct {
	Modules     []*model.Module
	FilesParsed int
	CacheHits   int
	Duration    time.Duration
}

// CompareRequest holds the two surfaces to compare.
type CompareRequest struct {
	Before []*model.Module
	After  []*model.Module
}

// CompareResult is the change set and its aggregated level.
type CompareResult struct {
	Changes []diff.Change
	Level   model.Level
	Summary diff.Summary
}

// BumpRequest applies Level to Version.
type BumpRequest struct {
	Level   model.Level
	Version string
}

type BumpResult struct {
	Previous string
	Next     string
}

// SaveRequest stores Modules under Commit; an empty commit means HEAD.
type SaveRequest struct {
	Commit  string
	Modules []*model.Module
}

// LoadResult is a decoded snapshot and where it came from.
type LoadResult struct {
	Modules []*model.Module
	Ref     snapshots.Ref
}

// WatchRequest re-extracts Targets on change and compares against Baseline.
// A nil Baseline uses the first extraction.
type WatchRequest struct {
	Targets  []string
	Baseline []*model.Module
}

// WatchUpdate contains state emitted to driving adapters during watch mode.
type WatchUpdate struct {
	Files   []string
	Changes []diff.Change
	Level   model.Level
	Err     error
}

// SurfaceService is the driving port over extraction and comparison use cases.
type SurfaceService interface {
	Dump(ctx context.Context, req DumpRequest) (DumpResult, error)
	Compare(ctx context.Context, req CompareRequest) (CompareResult, error)
	Bump(ctx context.Context, req BumpRequest) (BumpResult, error)
	SaveSnapshot(ctx context.Context, req SaveRequest) (snapshots.Ref, error)
	LoadSnapshot(ctx context.Context, commit string) (LoadResult, error)
	ListSnapshots(ctx context.Context) ([]snapshots.Ref, error)
	Watch(ctx context.Context, req WatchRequest, handler func(WatchUpdate)) error
}
