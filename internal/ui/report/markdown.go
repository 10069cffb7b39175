package report

import (
	"fmt"
	"strings"
	"time"

	"apisurface/internal/core/model"
	"apisurface/internal/engine/diff"
)

// collapseAfter is the row count above which a section is folded into <details>.
const collapseAfter = 10

// GenerateMarkdown renders c as a Markdown document with a front matter
// header, a summary table and one section per change level.
func GenerateMarkdown(c Comparison, opts Options) string {
	if opts.GeneratedAt.IsZero() {
		opts.GeneratedAt = time.Now().UTC()
	}

	var b strings.Builder
	b.WriteString("---\n")
	b.WriteString("title: API Surface Report\n")
	b.WriteString("project: " + nonEmpty(opts.ProjectName, "unknown") + "\n")
	b.WriteString("generated_at: " + opts.GeneratedAt.UTC().Format(time.RFC3339) + "\n")
	b.WriteString("version: " + nonEmpty(opts.ToolVersion, "unknown") + "\n")
	b.WriteString("---\n\n")

	b.WriteString("# API Surface Report\n\n")
	if c.Before != "" || c.After != "" {
		b.WriteString(fmt.Sprintf("Comparing `%s` with `%s`.\n\n", nonEmpty(c.Before, "?"), nonEmpty(c.After, "?")))
	}

	b.WriteString("## Summary\n")
	b.WriteString("| Metric | Value |\n")
	b.WriteString("| --- | --- |\n")
	b.WriteString(fmt.Sprintf("| Recommended Bump | **%s** |\n", c.Level))
	if c.Next != "" {
		b.WriteString(fmt.Sprintf("| Next Version | `%s` |\n", c.Next))
	}
	b.WriteString(fmt.Sprintf("| Breaking Changes | %d |\n", c.Summary.Major))
	b.WriteString(fmt.Sprintf("| Additions | %d |\n", c.Summary.Minor))
	b.WriteString(fmt.Sprintf("| Compatible Changes | %d |\n\n", c.Summary.Patch))

	writeLevelSection(&b, "Breaking Changes", model.Major, c.Changes)
	writeLevelSection(&b, "Additions", model.Minor, c.Changes)
	writeLevelSection(&b, "Compatible Changes", model.Patch, c.Changes)
	return b.String()
}

func writeLevelSection(b *strings.Builder, title string, level model.Level, changes []diff.Change) {
	b.WriteString("## " + title + "\n")
	rows := make([]string, 0)
	for _, ch := range changes {
		if ch.Level != level {
			continue
		}
		rows = append(rows, fmt.Sprintf("| %s | `%s` |\n", ch.Category, escapePipes(ch.Detail)))
	}
	if len(rows) == 0 {
		b.WriteString("None.\n\n")
		return
	}
	writeTableWithCollapse(
		b,
		fmt.Sprintf("%d %s", len(rows), strings.ToLower(title)),
		len(rows) > collapseAfter,
		[]string{"| Category | API |\n", "| --- | --- |\n"},
		rows,
	)
}

func writeTableWithCollapse(b *strings.Builder, summary string, collapse bool, header, rows []string) {
	if collapse {
		b.WriteString("<details>\n")
		b.WriteString("<summary>")
		b.WriteString(summary)
		b.WriteString("</summary>\n\n")
	}
	for _, line := range header {
		b.WriteString(line)
	}
	for _, line := range rows {
		b.WriteString(line)
	}
	b.WriteString("\n")
	if collapse {
		b.WriteString("</details>\n\n")
	}
}

func escapePipes(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
