package quality

import (
	"bufio"
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
)

// Delimiter separates fields in every delivery file.
const Delimiter = '|'

var (
	ErrParse     = errors.New("parse error")
	ErrEmptyData = errors.New("empty/all-null data")
	ErrStatistic = errors.New("statistic failed")
	ErrPairShape = errors.New("unexpected file pair")
)

var nullTokens = map[string]struct{}{
	"":     {},
	"NA":   {},
	"N/A":  {},
	"n/a":  {},
	"NULL": {},
	"null": {},
	"NaN":  {},
	"nan":  {},
	"#N/A": {},
	"None": {},
	"<NA>": {},
}

// IsNull reports whether a raw field counts as a missing value.
func IsNull(v string) bool {
	_, ok := nullTokens[strings.TrimSpace(v)]
	return ok
}

// Table is an in-memory, header-addressed view of a delimited file. Every
// row has exactly len(Headers) fields.
type Table struct {
	Headers []string
	Rows    [][]string
}

// LoadTable parses a pipe-delimited file whose first line is the header.
// Short rows are padded with nulls; long rows are rejected.
func LoadTable(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(ErrParse, "open %s: %v", path, err)
	}
	defer f.Close()
	return readTable(f)
}

func readTable(r io.Reader) (*Table, error) {
	cr := csv.NewReader(bufio.NewReader(r))
	cr.Comma = Delimiter
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.Wrap(ErrParse, "no header line")
	}
	if err != nil {
		return nil, errors.Wrapf(ErrParse, "header: %v", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	t := &Table{Headers: header}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(ErrParse, "%v", err)
		}
		for i, field := range rec {
			if strings.ContainsRune(field, '\n') {
				line, _ := cr.FieldPos(i)
				return nil, errors.Wrapf(ErrParse, "line %d: unterminated quote in field %d", line, i+1)
			}
		}
		if len(rec) > len(header) {
			line, _ := cr.FieldPos(0)
			return nil, errors.Wrapf(ErrParse, "line %d: expected %d fields, saw %d", line, len(header), len(rec))
		}
		for len(rec) < len(header) {
			rec = append(rec, "")
		}
		t.Rows = append(t.Rows, rec)
	}
	return t, nil
}

func (t *Table) ColumnIndex(name string) int {
	for i, h := range t.Headers {
		if h == name {
			return i
		}
	}
	return -1
}

// NonNull returns the non-null raw values of column idx in row order.
func (t *Table) NonNull(idx int) []string {
	var out []string
	for _, row := range t.Rows {
		if !IsNull(row[idx]) {
			out = append(out, row[idx])
		}
	}
	return out
}

// checkPopulated fails when the table holds no value at all or when any row
// consists solely of nulls.
func (t *Table) checkPopulated() error {
	seen := false
	for i, row := range t.Rows {
		rowHasValue := false
		for _, v := range row {
			if !IsNull(v) {
				rowHasValue = true
				break
			}
		}
		if !rowHasValue {
			return errors.Wrapf(ErrEmptyData, "row %d has only null values", i+1)
		}
		seen = true
	}
	if !seen {
		return errors.Wrap(ErrEmptyData, "no data rows")
	}
	return nil
}
