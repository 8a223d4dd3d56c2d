package ingest

import (
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/tbourn/complaints-backend/internal/domain"
)

// Result is the outcome of normalising one uploaded file.
type Result struct {
	Records []domain.Complaint
	Rows    int // data rows parsed; always len(Records)
}

// CanonicalHeader normalises a column header for matching: surrounding
// whitespace (and a stray BOM) removed, upper-cased. Matching is exact after
// this step.
func CanonicalHeader(h string) string {
	return strings.ToUpper(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
}

// ColumnIndex maps each canonical field present in header to its column.
// Unknown columns are ignored; for duplicated headers the first one wins.
func ColumnIndex(header []string) map[domain.Field]int {
	known := make(map[string]domain.Field, len(domain.Fields))
	for _, f := range domain.Fields {
		known[string(f)] = f
	}
	idx := make(map[domain.Field]int, len(domain.Fields))
	for i, h := range header {
		f, ok := known[CanonicalHeader(h)]
		if !ok {
			continue
		}
		if _, seen := idx[f]; !seen {
			idx[f] = i
		}
	}
	return idx
}

// Records maps every data row onto a canonical record, preserving order.
// Columns absent from the header (or cells past the end of a short row)
// take the Normalize defaults.
func (t *Table) Records(now time.Time) []domain.Complaint {
	cols := ColumnIndex(t.Header)
	out := make([]domain.Complaint, 0, len(t.Rows))
	for _, row := range t.Rows {
		raw := make(domain.RawRecord, len(cols))
		for f, i := range cols {
			if i < len(row) {
				raw[f] = row[i]
			}
		}
		if v, ok := raw[domain.FieldDate]; ok && t.Format == FormatSpreadsheet {
			raw[domain.FieldDate] = serialDate(v)
		}
		out = append(out, domain.Normalize(raw, now))
	}
	return out
}

// serialDate rewrites an unformatted Excel date serial ("45413") as a
// timestamp Normalize can read. Other values pass through unchanged.
func serialDate(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return v
	}
	if _, ok := domain.ParseImportedDate(v); ok {
		return v
	}
	serial, err := strconv.ParseFloat(v, 64)
	if err != nil || serial < 1 || serial > 2958465 {
		return v
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return v
	}
	return t.Format("2006-01-02 15:04:05")
}

// NormalizeFile parses an upload and maps it onto canonical records.
// A file with a header and no data rows succeeds with zero records.
func NormalizeFile(data []byte, filename string, now time.Time) (*Result, error) {
	t, err := Parse(data, filename)
	if err != nil {
		return nil, err
	}
	recs := t.Records(now)
	return &Result{Records: recs, Rows: len(recs)}, nil
}
