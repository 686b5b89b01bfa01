package report

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"golang.org/x/term"

	"github.com/chmouel/t262export/internal/models"
)

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Summary writes a per-outcome count table. Non-empty outcomes are highlighted when w is a terminal.
func Summary(w io.Writer, buckets *models.OutcomeBuckets) {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"#", "Outcome", "Files"})

	highlight := fmt.Sprint
	if isTerminal(w) {
		c := color.New(color.FgGreen, color.Bold)
		c.EnableColor()
		highlight = c.Sprint
	}
	for _, outcome := range models.AllOutcomes() {
		count := buckets.Count(outcome)
		name := outcome.String()
		if count > 0 {
			name = highlight(name)
		}
		tbl.AppendRow(table.Row{int(outcome), name, count})
	}
	tbl.AppendFooter(table.Row{"", "Total", buckets.Total()})
	tbl.Render()

	if !buckets.HasChanges() {
		_, _ = fmt.Fprintln(w, "No changes found")
	}
}
