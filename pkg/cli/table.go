package cli

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
)

// Table renders rows under a header. Nothing is written for a table
// without rows.
type Table struct {
	out  io.Writer
	tw   table.Writer
	rows int
}

// NewTable creates a table writing to out with the given column headers.
func NewTable(out io.Writer, headers ...string) *Table {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	hdr := make(table.Row, len(headers))
	for i, h := range headers {
		hdr[i] = h
	}
	tw.AppendHeader(hdr)
	return &Table{out: out, tw: tw}
}

// Row appends a row.
func (t *Table) Row(values ...interface{}) {
	t.tw.AppendRow(table.Row(values))
	t.rows++
}

// Len returns the number of rows appended.
func (t *Table) Len() int {
	return t.rows
}

// Render writes the table.
func (t *Table) Render() error {
	if t.rows == 0 {
		return nil
	}
	_, err := fmt.Fprintln(t.out, t.tw.Render())
	return err
}
