package diagfmt

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"svelab/internal/diag"
	"svelab/internal/source"
)

const tabWidth = 4

type palette struct {
	info    *color.Color
	warning *color.Color
	err     *color.Color
	path    *color.Color
	gutter  *color.Color
	caret   *color.Color
	note    *color.Color
}

func newPalette(enabled bool) palette {
	mk := func(attrs ...color.Attribute) *color.Color {
		c := color.New(attrs...)
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
		return c
	}
	return palette{
		info:    mk(color.FgCyan, color.Bold),
		warning: mk(color.FgYellow, color.Bold),
		err:     mk(color.FgRed, color.Bold),
		path:    mk(color.Bold),
		gutter:  mk(color.FgBlue),
		caret:   mk(color.FgRed, color.Bold),
		note:    mk(color.FgCyan),
	}
}

func (p palette) severity(s diag.Severity) *color.Color {
	switch s {
	case diag.SevInfo:
		return p.info
	case diag.SevWarning:
		return p.warning
	}
	return p.err
}

// Pretty форматирует диагностики в человекочитаемый вид.
// Идёт по bag.Items() (ожидается bag.Sort() заранее).
// Для каждого diag печатает:
// <path>:<line>:<col>: <SEV> <CODE>: <Message>
// затем контекст строки с подчёркиванием ^~~~ по Span, затем Notes.
func Pretty(w io.Writer, bag *diag.Bag, fs *source.FileSet, opts PrettyOpts) error {
	p := newPalette(opts.Color)
	var sb strings.Builder
	for _, d := range bag.Items() {
		sb.WriteString(p.path.Sprint(location(d.Primary, fs, opts.PathMode)))
		sb.WriteString(p.severity(d.Severity).Sprint(d.Severity.String() + " " + d.Code.ID()))
		sb.WriteString(": ")
		sb.WriteString(d.Message)
		sb.WriteByte('\n')
		writeSnippet(&sb, d.Primary, fs, opts, p)
		if !opts.ShowNotes && d.Code != diag.ObsTimings {
			continue
		}
		for _, n := range d.Notes {
			sb.WriteString("  ")
			sb.WriteString(p.note.Sprint("note: "))
			sb.WriteString(location(n.Span, fs, opts.PathMode))
			sb.WriteString(n.Msg)
			sb.WriteByte('\n')
		}
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

// Short prints one line per diagnostic and never includes source context.
func Short(w io.Writer, bag *diag.Bag, fs *source.FileSet, mode PathMode) error {
	var sb strings.Builder
	for _, d := range bag.Items() {
		fmt.Fprintf(&sb, "%s%s %s: %s\n", location(d.Primary, fs, mode), d.Severity, d.Code.ID(), d.Message)
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

// location renders "path:line:col: " or nothing for spans without a file.
func location(span source.Span, fs *source.FileSet, mode PathMode) string {
	f := fs.Get(span.File)
	if f == nil {
		return ""
	}
	start, _ := fs.Resolve(span)
	return formatPath(f, fs, mode) + ":" + strconv.FormatUint(uint64(start.Line), 10) + ":" +
		strconv.FormatUint(uint64(start.Col), 10) + ": "
}

func writeSnippet(sb *strings.Builder, span source.Span, fs *source.FileSet, opts PrettyOpts, p palette) {
	f := fs.Get(span.File)
	if f == nil || len(f.Content) == 0 {
		return
	}
	start, end := fs.Resolve(span)
	first := start.Line
	if ctx := uint32(max(opts.Context, 0)); ctx < first { // #nosec G115 -- clamped to non-negative
		first -= ctx
	} else {
		first = 1
	}
	gw := len(strconv.FormatUint(uint64(start.Line), 10))
	for ln := first; ln <= start.Line; ln++ {
		text := expandTabs(f.GetLine(ln))
		if opts.Width > 0 {
			text = runewidth.Truncate(text, int(opts.Width), "…")
		}
		fmt.Fprintf(sb, "%s %s\n", p.gutter.Sprintf("%*d |", gw, ln), text)
	}

	line := f.GetLine(start.Line)
	col := max(min(int(start.Col)-1, len(line)), 0)
	pad := runewidth.StringWidth(expandTabs(line[:col]))
	var width int
	if end.Line == start.Line {
		stop := min(int(end.Col)-1, len(line))
		if stop > col {
			width = runewidth.StringWidth(expandTabs(line[col:stop]))
		}
	} else {
		width = runewidth.StringWidth(expandTabs(line[col:]))
	}
	marker := "^" + strings.Repeat("~", max(width-1, 0))
	fmt.Fprintf(sb, "%s %s%s\n", p.gutter.Sprintf("%*s |", gw, ""), strings.Repeat(" ", pad), p.caret.Sprint(marker))
}

func expandTabs(s string) string {
	if !strings.Contains(s, "\t") {
		return s
	}
	return strings.ReplaceAll(s, "\t", strings.Repeat(" ", tabWidth))
}
