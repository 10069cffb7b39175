package cliapp

import (
	"fmt"
	"io"
	"strings"

	"apisurface/internal/core/errors"
	"apisurface/internal/core/model"
	"apisurface/internal/core/ports"
	"apisurface/internal/data/codec"
	"apisurface/internal/data/snapshots"
	"apisurface/internal/engine/diff"
	"apisurface/internal/shared/util"
	"apisurface/internal/ui/report"
)

func renderRefs(w io.Writer, refs []snapshots.Ref) {
	p := report.NewPalette(w)
	if len(refs) == 0 {
		fmt.Fprintln(w, p.Status.Render("No snapshots stored."))
		return
	}
	for _, ref := range refs {
		fmt.Fprintf(w, "%s  %s  %s  %s\n",
			p.Title.Render(shorten(ref.Commit, 12)),
			shorten(ref.Digest, 12),
			ref.SavedAt.Local().Format("2006-01-02 15:04:05"),
			ref.Module)
	}
}

func renderWatchUpdate(w io.Writer, u ports.WatchUpdate) {
	p := report.NewPalette(w)
	fmt.Fprintln(w, p.Status.Render("changed: "+strings.Join(u.Files, ", ")))
	if u.Err != nil {
		fmt.Fprintf(w, "%s %v\n", p.Major.Render("error:"), u.Err)
		return
	}
	report.WriteText(w, report.Comparison{Changes: u.Changes, Level: u.Level, Summary: diff.Summarize(u.Changes)})
}

func shorten(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// writeSnapshot writes modules to path, or to w when path is empty or "-".
func writeSnapshot(w io.Writer, path string, format codec.Format, modules []*model.Module) error {
	if path == "" || path == "-" {
		return codec.Encode(w, modules, format)
	}
	data, err := codec.Marshal(modules, format)
	if err != nil {
		return err
	}
	return util.WriteFileWithDirs(path, data, 0o644)
}

func decodeSnapshot(r io.Reader, format codec.Format, path string) ([]*model.Module, error) {
	modules, err := codec.Decode(r, format)
	if err != nil {
		return nil, errors.AddContext(err, errors.CtxPath, path)
	}
	return modules, nil
}

// snapshotFormat picks the explicit --format, then the file extension, then
// the configured default.
func snapshotFormat(flag, path, fallback string) (codec.Format, error) {
	if flag != "" {
		return codec.ParseFormat(flag)
	}
	if path != "" && path != "-" {
		return codec.FormatForPath(path), nil
	}
	return codec.ParseFormat(fallback)
}
