package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/newtron-network/nsxctl/pkg/record"
	"github.com/newtron-network/nsxctl/pkg/util"
)

func testListing(t *testing.T) *record.Listing {
	t.Helper()
	var results []*record.Record
	for _, body := range []string{
		`{"display_name":"web","id":"web","path":"/infra/segments/web"}`,
		`{"display_name":"tnp1","id":"tnp-uuid"}`,
	} {
		rec, err := record.Parse([]byte(body))
		if err != nil {
			t.Fatal(err)
		}
		results = append(results, rec)
	}
	return &record.Listing{Results: results, ResultCount: 2, Pages: 1}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatTable, false},
		{"table", FormatTable, false},
		{"JSON", FormatJSON, false},
		{"yaml", FormatYAML, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if tt.wantErr {
			if !errors.Is(err, util.ErrValidationFailed) {
				t.Errorf("ParseFormat(%q) error = %v, want validation error", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}

func TestBriefOf(t *testing.T) {
	l := testListing(t)
	if got := BriefOf(l.Results[0], ""); got != (Brief{Name: "web", ID: "web", Path: "/infra/segments/web"}) {
		t.Errorf("BriefOf = %+v", got)
	}
	if got := BriefOf(l.Results[1], ""); got.Path != "-" {
		t.Errorf("missing path should render as -, got %q", got.Path)
	}

	role, _ := record.Parse([]byte(`{"role":"auditor"}`))
	if got := BriefOf(role, "role"); got.Name != "auditor" {
		t.Errorf("name field override: got %q", got.Name)
	}
}

func TestBriefListingTable(t *testing.T) {
	var buf bytes.Buffer
	if err := NewPrinter(&buf, FormatTable).BriefListing(testListing(t), ""); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"NAME", "PATH", "/infra/segments/web", "tnp-uuid", "-"} {
		if !strings.Contains(out, want) {
			t.Errorf("table output missing %q:\n%s", want, out)
		}
	}
}

func TestBriefListingJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := NewPrinter(&buf, FormatJSON).BriefListing(testListing(t), ""); err != nil {
		t.Fatal(err)
	}
	var got []Brief
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if len(got) != 2 || got[1].Path != "-" {
		t.Errorf("got %+v", got)
	}
}

func TestListingYAML(t *testing.T) {
	var buf bytes.Buffer
	if err := NewPrinter(&buf, FormatYAML).Listing(testListing(t)); err != nil {
		t.Fatal(err)
	}
	var got struct {
		Results     []map[string]interface{} `yaml:"results"`
		ResultCount int                      `yaml:"result_count"`
	}
	if err := yaml.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not YAML: %v\n%s", err, buf.String())
	}
	if got.ResultCount != 2 || got.Results[0]["display_name"] != "web" {
		t.Errorf("got %+v", got)
	}
}

func TestRecordNil(t *testing.T) {
	var buf bytes.Buffer
	if err := NewPrinter(&buf, FormatJSON).Record(nil); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 0 {
		t.Errorf("nil record printed %q", buf.String())
	}
}

func TestRecordJSONIndent(t *testing.T) {
	rec, _ := record.Parse([]byte(`{"id":"a","nested":{"k":"v"}}`))
	var buf bytes.Buffer
	if err := NewPrinter(&buf, FormatTable).Record(rec); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "\n    \"id\": \"a\"") {
		t.Errorf("expected 4-space indented JSON, got:\n%s", buf.String())
	}
}

func TestTableEmpty(t *testing.T) {
	var buf bytes.Buffer
	tbl := NewTable(&buf, "A", "B")
	if err := tbl.Render(); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 0 {
		t.Errorf("empty table should print nothing, got %q", buf.String())
	}
}

func TestTableRows(t *testing.T) {
	var buf bytes.Buffer
	tbl := NewTable(&buf, "NODE", "STATUS")
	tbl.Row("n1", "UP")
	tbl.Row("n2", 3)
	if tbl.Len() != 2 {
		t.Errorf("Len() = %d", tbl.Len())
	}
	if err := tbl.Render(); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"NODE", "STATUS", "n1", "UP", "n2", "3"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}
