package exports

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"
)

// FormatCell renders one value the way it appears in an export.
func FormatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case time.Time:
		if x.IsZero() {
			return ""
		}
		return x.UTC().Format(DateLayout)
	case *time.Time:
		if x == nil {
			return ""
		}
		return FormatCell(*x)
	case *string:
		if x == nil {
			return ""
		}
		return *x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

// TableFromRecords builds a table from loosely shaped records. Columns are
// the keys of the first record in sorted order.
func TableFromRecords(records []map[string]any) Table {
	if len(records) == 0 {
		return Table{}
	}
	cols := make([]string, 0, len(records[0]))
	for k := range records[0] {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	t := Table{Columns: cols, Rows: make([][]any, len(records))}
	for i, rec := range records {
		row := make([]any, len(cols))
		for j, c := range cols {
			row[j] = rec[c]
		}
		t.Rows[i] = row
	}
	return t
}

// WriteCSV writes t as RFC 4180 CSV. An empty table writes nothing.
func WriteCSV(w io.Writer, t Table) error {
	if len(t.Columns) == 0 {
		return nil
	}
	writer := csv.NewWriter(w)
	if err := writer.Write(t.Columns); err != nil {
		return err
	}
	record := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i := range record {
			record[i] = ""
			if i < len(row) {
				record[i] = FormatCell(row[i])
			}
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// ReadCSV parses an export back into one map per row, keyed by header.
func ReadCSV(r io.Reader) ([]map[string]string, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err == io.EOF {
		return []map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	reader.FieldsPerRecord = len(header)
	out := []map[string]string{}
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row %d: %w", len(out)+1, err)
		}
		row := make(map[string]string, len(header))
		for i, h := range header {
			row[h] = rec[i]
		}
		out = append(out, row)
	}
}
