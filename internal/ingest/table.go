// Package ingest reads lead and customer exports into domain records.
//
// Exports arrive as CSV files or as HTML pages holding a table. Both are
// read into a Table first; Leads and Customers then map columns by header
// name, accepting several aliases per field.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ErrSourceUnavailable is returned when an export is missing, unreadable
// or lacks the columns a record type needs.
var ErrSourceUnavailable = errors.New("source unavailable")

// Table is a header row plus data rows.
type Table struct {
	Header []string
	Rows   [][]string
}

// ReadCSV reads a CSV export.
func ReadCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: unable to read header: %v", ErrSourceUnavailable, err)
	}

	t := &Table{Header: header}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
		}
		t.Rows = append(t.Rows, record)
	}
	return t, nil
}

// ReadHTMLTable reads the first table on an HTML page. The first row is the
// header whether it uses th or td cells.
func ReadHTMLTable(r io.Reader) (*Table, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: unable to parse html: %v", ErrSourceUnavailable, err)
	}

	table := doc.Find("table").First()
	if table.Length() == 0 {
		return nil, fmt.Errorf("%w: no table found", ErrSourceUnavailable)
	}

	t := &Table{}
	table.Find("tr").Each(func(i int, row *goquery.Selection) {
		var cells []string
		row.Find("td, th").Each(func(j int, cell *goquery.Selection) {
			cells = append(cells, strings.TrimSpace(cell.Text()))
		})
		if len(cells) == 0 {
			return
		}
		if t.Header == nil {
			t.Header = cells
			return
		}
		t.Rows = append(t.Rows, cells)
	})

	if t.Header == nil {
		return nil, fmt.Errorf("%w: table has no rows", ErrSourceUnavailable)
	}
	return t, nil
}

// Open reads an export from disk, choosing the reader by file extension.
func Open(path string) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	defer file.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return ReadHTMLTable(file)
	case ".csv", ".txt":
		return ReadCSV(file)
	default:
		return nil, fmt.Errorf("%w: unsupported file type %q", ErrSourceUnavailable, filepath.Ext(path))
	}
}

// columns resolves field names to column positions through alias lists.
type columns struct {
	index map[string]int
}

func mapHeaders(header []string) columns {
	index := make(map[string]int, len(header))
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(name))
		key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)
		if _, dup := index[key]; !dup {
			index[key] = i
		}
	}
	return columns{index: index}
}

// find returns the position of the first alias present in the header.
func (c columns) find(aliases []string) (int, bool) {
	for _, a := range aliases {
		if i, ok := c.index[a]; ok {
			return i, true
		}
	}
	return -1, false
}

// missing lists the fields none of whose aliases are present.
func (c columns) missing(required map[string][]string, order []string) []string {
	var out []string
	for _, field := range order {
		if _, ok := c.find(required[field]); !ok {
			out = append(out, field)
		}
	}
	return out
}

// cell returns the trimmed value at position i, or "" when out of range.
func cell(record []string, i int) string {
	if i < 0 || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}
