package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/specialistvlad/bioflow/internal/app"
)

// printer writes command output, colored only on a terminal.
type printer struct {
	w     io.Writer
	bold  *color.Color
	ok    *color.Color
	fail  *color.Color
	faint *color.Color
}

func newPrinter(w io.Writer) *printer {
	p := &printer{
		w:     w,
		bold:  color.New(color.Bold),
		ok:    color.New(color.FgGreen),
		fail:  color.New(color.FgRed, color.Bold),
		faint: color.New(color.Faint),
	}
	if !app.IsTerminal(w) {
		for _, c := range []*color.Color{p.bold, p.ok, p.fail, p.faint} {
			c.DisableColor()
		}
	}
	return p
}

func (p *printer) plan(ids []string) {
	p.bold.Fprintf(p.w, "Execution plan (%d tasks):\n", len(ids))
	for i, id := range ids {
		fmt.Fprintf(p.w, "  %s %s\n", p.faint.Sprintf("%2d.", i+1), id)
	}
}

func (p *printer) result(id string, v any) {
	fmt.Fprintf(p.w, "  %s %s %s\n", p.ok.Sprint("✔"), id, p.faint.Sprint(formatValue(v)))
}

func (p *printer) failure(msg, traceback string) {
	p.fail.Fprintf(p.w, "✘ %s\n", msg)
	if traceback != "" {
		p.faint.Fprintln(p.w, traceback)
	}
}

func formatValue(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
