package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/newtron-network/nsxctl/pkg/record"
	"github.com/newtron-network/nsxctl/pkg/util"
)

// Format selects how results are printed.
type Format string

// Output formats
const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat accepts table, json or yaml. An empty string is table.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case "":
		return FormatTable, nil
	case FormatTable, FormatJSON, FormatYAML:
		return f, nil
	}
	return "", util.NewValidationError(fmt.Sprintf("unknown output format '%s' (table, json, yaml)", s))
}

// Printer writes records and listings in one format.
type Printer struct {
	Out    io.Writer
	Format Format
}

// NewPrinter creates a printer.
func NewPrinter(out io.Writer, format Format) *Printer {
	return &Printer{Out: out, Format: format}
}

// Value prints an arbitrary value as JSON or YAML. Table format prints
// indented JSON.
func (p *Printer) Value(v interface{}) error {
	if p.Format == FormatYAML {
		b, err := yaml.Marshal(v)
		if err != nil {
			return err
		}
		_, err = p.Out.Write(b)
		return err
	}
	b, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(p.Out, string(b))
	return err
}

// Record prints one record. A nil record prints nothing.
func (p *Printer) Record(rec *record.Record) error {
	if rec == nil {
		return nil
	}
	return p.Value(rec.Data())
}

// Listing prints the merged results of a listing with its count.
func (p *Printer) Listing(l *record.Listing) error {
	results := make([]interface{}, 0, l.Len())
	for _, r := range l.Results {
		results = append(results, r.Data())
	}
	return p.Value(map[string]interface{}{
		"results":      results,
		"result_count": l.Len(),
	})
}

// Brief describes a resource by name, id and path.
type Brief struct {
	Name string `json:"name" yaml:"name"`
	ID   string `json:"id" yaml:"id"`
	Path string `json:"path" yaml:"path"`
}

// BriefOf summarizes a record. nameField overrides display_name; a
// missing path is shown as "-".
func BriefOf(rec *record.Record, nameField string) Brief {
	name := rec.DisplayName()
	if nameField != "" {
		name = rec.String(nameField)
	}
	path := rec.Path()
	if path == "" {
		path = "-"
	}
	return Brief{Name: name, ID: rec.ID(), Path: path}
}

// BriefListing prints one name, id, path line per record.
func (p *Printer) BriefListing(l *record.Listing, nameField string) error {
	briefs := make([]Brief, 0, l.Len())
	for _, r := range l.Results {
		briefs = append(briefs, BriefOf(r, nameField))
	}
	if p.Format != FormatTable {
		return p.Value(briefs)
	}
	t := NewTable(p.Out, "NAME", "ID", "PATH")
	for _, b := range briefs {
		t.Row(b.Name, b.ID, b.Path)
	}
	return t.Render()
}
