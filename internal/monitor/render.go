package monitor

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/openmech/subfarm/pkg/core"
)

const (
	// statusCellWidth fits the longest status name plus breathing room.
	statusCellWidth = 8

	// DefaultWrap is the number of subtask columns per table row.
	DefaultWrap = 18

	headerLabel = "task"
)

// Cell is one status column in a task row. A zero Cell renders as empty
// padding. Styled cells are colored by kind when writing to a terminal.
type Cell struct {
	Text   string
	Kind   core.Kind
	Styled bool
}

// StatusCell renders a subtask status.
func StatusCell(s core.Status) Cell {
	return Cell{Text: s.String(), Kind: s.Kind(), Styled: true}
}

// UnknownCell marks a subtask whose logs matched no aggregation rule.
func UnknownCell() Cell {
	return Cell{Text: "??", Kind: core.KindFailure, Styled: true}
}

// BlankCell fills a column the task does not cover.
func BlankCell() Cell {
	return Cell{}
}

// Row is one task line in a group table.
type Row struct {
	Label string
	Cells []Cell
}

// Renderer writes status tables and digests. Color is enabled only when
// the output is a terminal, so piped reports stay plain text.
type Renderer struct {
	out   io.Writer
	wrap  int
	color bool
}

// NewRenderer wraps out with the given column wrap. A wrap of zero or
// less falls back to DefaultWrap.
func NewRenderer(out io.Writer, wrap int) *Renderer {
	if wrap <= 0 {
		wrap = DefaultWrap
	}
	return &Renderer{out: out, wrap: wrap, color: isTTY(out)}
}

// Table writes one task group as a status grid. The label column is
// right-aligned to labelWidth, each cell is centered to a fixed width,
// and rows wrap after the configured number of columns with the label
// only on the first line. Wrapped tables get horizontal guides so the
// eye can track which lines belong to one row.
func (r *Renderer) Table(labelWidth int, keys []string, rows []Row) {
	r.guide(labelWidth, len(keys), '#')
	header := make([]Cell, len(keys))
	for i, k := range keys {
		header[i] = Cell{Text: k}
	}
	r.row(headerLabel, header, labelWidth)
	for _, row := range rows {
		r.row(row.Label, row.Cells, labelWidth)
	}
	fmt.Fprintln(r.out)
}

// Digest lists every log that needs attention, aligned in columns sized
// to their longest entry. The status column is styled after alignment so
// escape codes cannot skew it. A trailing blank line closes the report
// whether or not there was anything to digest.
func (r *Renderer) Digest(workPath string, records []core.LogRecord) {
	if len(records) > 0 {
		fmt.Fprintf(r.out, "Non-OK log files in %s:\n", workPath)
		var taskWidth, keyWidth, pathWidth int
		for _, rec := range records {
			taskWidth = max(taskWidth, len(rec.Task))
			keyWidth = max(keyWidth, len(rec.Key))
			pathWidth = max(pathWidth, len(rec.Path))
		}
		for _, rec := range records {
			status := rec.Status.String()
			if r.color {
				status = styleFor(rec.Status.Kind()).Render(status)
			}
			fmt.Fprintf(r.out, "%-*s %-*s %-*s %s\n",
				taskWidth, rec.Task, keyWidth, rec.Key, pathWidth, rec.Path, status)
		}
	}
	fmt.Fprintln(r.out)
}

// LogList prints one classified log per line, padding paths so the
// statuses line up. Styling follows the digest convention: applied after
// alignment, terminal only.
func (r *Renderer) LogList(logs []LogStatus) {
	var pathWidth int
	for _, l := range logs {
		pathWidth = max(pathWidth, len(l.Path))
	}
	for _, l := range logs {
		status := l.Status.String()
		if r.color {
			status = styleFor(l.Status.Kind()).Render(status)
		}
		fmt.Fprintf(r.out, "%-*s %s\n", pathWidth, l.Path, status)
	}
}

// Println writes a plain line to the renderer's output.
func (r *Renderer) Println(args ...any) {
	fmt.Fprintln(r.out, args...)
}

// Printf writes formatted text to the renderer's output.
func (r *Renderer) Printf(format string, args ...any) {
	fmt.Fprintf(r.out, format, args...)
}

func (r *Renderer) row(label string, cells []Cell, labelWidth int) {
	for start := 0; start < len(cells); start += r.wrap {
		end := min(start+r.wrap, len(cells))
		var b strings.Builder
		fmt.Fprintf(&b, "%*s", labelWidth, label)
		for i, c := range cells[start:end] {
			if i > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(r.cell(c))
		}
		fmt.Fprintln(r.out, b.String())
		label = ""
	}
	r.guide(labelWidth, len(cells), '-')
}

func (r *Renderer) cell(c Cell) string {
	text := center(c.Text, statusCellWidth)
	if r.color && c.Styled {
		text = styleFor(c.Kind).Render(text)
	}
	return text
}

func (r *Renderer) guide(labelWidth, ncols int, ch byte) {
	if ncols <= r.wrap {
		return
	}
	width := labelWidth + (statusCellWidth+1)*r.wrap
	fmt.Fprintln(r.out, strings.Repeat(string(ch), width))
}

// center pads s to width, putting any odd space on the right.
func center(s string, width int) string {
	if len(s) >= width {
		return s
	}
	left := (width - len(s)) / 2
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", width-len(s)-left)
}

func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
