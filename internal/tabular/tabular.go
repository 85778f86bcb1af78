// Package tabular reads the data rows of a merge from CSV, TSV or JSON.
package tabular

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/Lllllllleong/pdfmailmerge/internal/models"
)

var ErrNoData = errors.New("no data rows")

// Table is a parsed data source.
type Table struct {
	Headers []string
	Rows    []models.Row
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ParseCSV parses comma separated values with a header line. Cells missing
// from a short line are left out of that row.
func ParseCSV(data []byte) (Table, error) {
	return parseDelimited(data, ',')
}

// ParseTSV parses tab separated values, as copied from a spreadsheet.
func ParseTSV(data []byte) (Table, error) {
	return parseDelimited(data, '\t')
}

func parseDelimited(data []byte, comma rune) (Table, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM)))
	r.Comma = comma
	r.FieldsPerRecord = -1
	r.LazyQuotes = comma == '\t'
	r.TrimLeadingSpace = comma == ','

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return Table{}, ErrNoData
	}
	if err != nil {
		return Table{}, fmt.Errorf("failed to read header: %w", err)
	}
	headers := make([]string, len(header))
	for i, h := range header {
		headers[i] = strings.TrimSpace(h)
	}

	t := Table{Headers: dedupe(headers)}
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Table{}, fmt.Errorf("failed to read data: %w", err)
		}
		if blank(rec) {
			continue
		}
		row := make(models.Row, len(headers))
		for i, h := range headers {
			if h == "" || i >= len(rec) {
				continue
			}
			if _, seen := row[h]; !seen {
				row[h] = rec[i]
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// ParseJSON parses an array of flat objects. Headers are listed in the order
// keys are first seen.
func ParseJSON(data []byte) (Table, error) {
	dec := json.NewDecoder(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM)))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return Table{}, fmt.Errorf("failed to read JSON: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '[' {
		return Table{}, errors.New("JSON data must be an array of objects")
	}

	var t Table
	seen := make(map[string]bool)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return Table{}, fmt.Errorf("failed to read JSON: %w", err)
		}
		if d, ok := tok.(json.Delim); !ok || d != '{' {
			return Table{}, fmt.Errorf("row %d is not an object", len(t.Rows)+1)
		}
		row := make(models.Row)
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return Table{}, fmt.Errorf("failed to read JSON: %w", err)
			}
			key := keyTok.(string)
			var raw json.RawMessage
			if err := dec.Decode(&raw); err != nil {
				return Table{}, fmt.Errorf("failed to read value of %q: %w", key, err)
			}
			v, err := scalar(raw)
			if err != nil {
				return Table{}, fmt.Errorf("row %d, column %q: %w", len(t.Rows)+1, key, err)
			}
			row[key] = v
			if !seen[key] {
				seen[key] = true
				t.Headers = append(t.Headers, key)
			}
		}
		if _, err := dec.Token(); err != nil {
			return Table{}, fmt.Errorf("failed to read JSON: %w", err)
		}
		t.Rows = append(t.Rows, row)
	}
	if _, err := dec.Token(); err != nil {
		return Table{}, fmt.Errorf("failed to read JSON: %w", err)
	}
	return t, nil
}

// scalar decodes a JSON value that may be drawn as text. Numbers stay
// json.Number so they print exactly as written.
func scalar(raw json.RawMessage) (any, error) {
	var v any
	d := json.NewDecoder(bytes.NewReader(raw))
	d.UseNumber()
	if err := d.Decode(&v); err != nil {
		return nil, err
	}
	switch v.(type) {
	case map[string]any, []any:
		return nil, errors.New("nested values are not supported")
	default:
		return v, nil
	}
}

// Parse picks a parser from the file extension, falling back to the content.
func Parse(name string, data []byte) (Table, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return ParseCSV(data)
	case ".tsv", ".tab":
		return ParseTSV(data)
	case ".json":
		return ParseJSON(data)
	}

	trimmed := bytes.TrimSpace(bytes.TrimPrefix(data, utf8BOM))
	if len(trimmed) == 0 {
		return Table{}, ErrNoData
	}
	if trimmed[0] == '[' {
		return ParseJSON(trimmed)
	}
	firstLine, _, _ := bytes.Cut(trimmed, []byte("\n"))
	if bytes.Contains(firstLine, []byte("\t")) {
		return ParseTSV(trimmed)
	}
	return ParseCSV(trimmed)
}

func blank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// dedupe returns headers with later duplicates and empty names removed.
func dedupe(headers []string) []string {
	out := make([]string, 0, len(headers))
	seen := make(map[string]bool, len(headers))
	for _, h := range headers {
		if h == "" || seen[h] {
			continue
		}
		seen[h] = true
		out = append(out, h)
	}
	return out
}
