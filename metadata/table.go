// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package metadata

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/poiesic/voxbank/core"
)

// DefaultRequiredColumns are the columns every metadata table must carry.
var DefaultRequiredColumns = []string{core.ColumnFilename, core.ColumnDiagnosis}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// naMarkers are cell values treated as missing.
var naMarkers = map[string]struct{}{
	"#N/A": {}, "#N/A N/A": {}, "#NA": {}, "-1.#IND": {}, "-1.#QNAN": {},
	"-NaN": {}, "-nan": {}, "1.#IND": {}, "1.#QNAN": {}, "<NA>": {},
	"N/A": {}, "NA": {}, "NULL": {}, "NaN": {}, "None": {}, "n/a": {},
	"nan": {}, "null": {},
}

// Table is a validated metadata table.
type Table struct {
	Columns   []string // distinct normalized column names in order of first appearance
	Rows      []*core.MetadataRow
	Delimiter rune
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// NormalizeColumn trims a column name, lower-cases it and replaces spaces
// with underscores.
func NormalizeColumn(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
}

// Load reads and validates the metadata file at path.
func Load(path string, required []string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open metadata file: %w", err)
	}
	defer f.Close()
	return Parse(f, required)
}

// Parse reads delimited text with a header row and validates its columns.
// The delimiter is ',' unless the header only splits on ';'. Nil required
// means DefaultRequiredColumns; the filename column is always required.
//
// Headers that normalize to the same name are rejected only when the name
// is required. Other repeated columns collapse into one field holding the
// value of the rightmost cell.
//
// Row problems never fail the parse: short rows are padded with "", and
// rows with extra cells or no filename are flagged Malformed.
func Parse(r io.Reader, required []string) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &ValidationError{Empty: true}
	}

	delimiter, err := detectDelimiter(data)
	if err != nil {
		return nil, err
	}

	reader := newReader(data, delimiter)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: header: %w", ErrParse, err)
	}

	columns := make([]string, len(header))
	for i, name := range header {
		columns[i] = NormalizeColumn(name)
	}
	if err := validateColumns(columns, required); err != nil {
		return nil, err
	}

	table := &Table{Columns: distinct(columns), Delimiter: delimiter}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrParse, err)
		}
		line, _ := reader.FieldPos(0)
		table.Rows = append(table.Rows, newRow(line, columns, record))
	}
	return table, nil
}

func newReader(data []byte, delimiter rune) *csv.Reader {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	return reader
}

// detectDelimiter parses the header with ',' and falls back to ';' when
// that yields a single column containing ';'.
func detectDelimiter(data []byte) (rune, error) {
	header, err := newReader(data, ',').Read()
	if err != nil {
		return 0, fmt.Errorf("%w: header: %w", ErrParse, err)
	}
	if len(header) == 1 && strings.ContainsRune(header[0], ';') {
		return ';', nil
	}
	return ',', nil
}

func validateColumns(columns []string, required []string) error {
	if required == nil {
		required = DefaultRequiredColumns
	}
	want := []string{core.ColumnFilename}
	for _, name := range required {
		name = NormalizeColumn(name)
		if name != "" && !slices.Contains(want, name) {
			want = append(want, name)
		}
	}

	verr := &ValidationError{}
	seen := make(map[string]bool, len(columns))
	for _, name := range columns {
		// a repeated required column leaves identity or label ambiguous
		if seen[name] && slices.Contains(want, name) && !slices.Contains(verr.Duplicate, name) {
			verr.Duplicate = append(verr.Duplicate, name)
		}
		seen[name] = true
	}
	for _, name := range want {
		if !seen[name] {
			verr.Missing = append(verr.Missing, name)
		}
	}

	if len(verr.Missing) > 0 || len(verr.Duplicate) > 0 {
		return verr
	}
	return nil
}

func distinct(columns []string) []string {
	out := make([]string, 0, len(columns))
	for _, name := range columns {
		if !slices.Contains(out, name) {
			out = append(out, name)
		}
	}
	return out
}

// newRow maps cells onto columns. For repeated columns the rightmost cell wins.
func newRow(line int, columns []string, record []string) *core.MetadataRow {
	row := &core.MetadataRow{
		Line:   line,
		Fields: make(map[string]string, len(columns)),
	}
	for i, name := range columns {
		value := ""
		if i < len(record) {
			value = record[i]
		}
		if _, na := naMarkers[value]; na {
			value = ""
		}
		row.Fields[name] = value
	}

	switch {
	case len(record) > len(columns):
		row.Malformed = fmt.Sprintf("row has %d cells, header has %d", len(record), len(columns))
	case row.Filename() == "":
		row.Malformed = "empty filename"
	}
	return row
}
