// Package report renders the result of comparing two API surfaces as
// terminal text, JSON, Markdown or SARIF.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"apisurface/internal/core/errors"
	"apisurface/internal/core/model"
	"apisurface/internal/engine/diff"
)

type Format string

const (
	FormatText     Format = "text"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatSARIF    Format = "sarif"
)

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "sarif":
		return FormatSARIF, nil
	}
	return "", errors.Newf(errors.CodeNotSupported, "unsupported report format %q", s)
}

// Comparison is everything a report shows about one compare run.
type Comparison struct {
	Before  string
	After   string
	Level   model.Level
	Summary diff.Summary
	Changes []diff.Change
	// Next is the recommended next version, when a current version was given.
	Next string
}

type Options struct {
	ProjectName string
	ToolVersion string
	GeneratedAt time.Time
}

// Write renders c to w in the given format.
func Write(w io.Writer, format Format, c Comparison, opts Options) error {
	switch format {
	case FormatText:
		WriteText(w, c)
		return nil
	case FormatJSON:
		return WriteJSON(w, c)
	case FormatMarkdown:
		_, err := io.WriteString(w, GenerateMarkdown(c, opts))
		return err
	case FormatSARIF:
		data, err := GenerateSARIF(c, opts)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "%s\n", data)
		return err
	}
	return errors.Newf(errors.CodeNotSupported, "unsupported report format %q", format)
}

type comparisonJSON struct {
	Before  string        `json:"before,omitempty"`
	After   string        `json:"after,omitempty"`
	Level   model.Level   `json:"level"`
	Summary diff.Summary  `json:"summary"`
	Changes []diff.Change `json:"changes"`
	Next    string        `json:"next_version,omitempty"`
}

func WriteJSON(w io.Writer, c Comparison) error {
	changes := c.Changes
	if changes == nil {
		changes = []diff.Change{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(comparisonJSON{
		Before:  c.Before,
		After:   c.After,
		Level:   c.Level,
		Summary: c.Summary,
		Changes: changes,
		Next:    c.Next,
	})
}

func nonEmpty(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
