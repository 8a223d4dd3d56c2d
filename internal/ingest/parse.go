// Package ingest turns an uploaded CSV or Excel file into canonical complaint
// records. It is a pure transform: nothing here touches the store.
//
// The pipeline is:
//
//	DetectFormat(filename) -> Parse(data) -> Table -> Table.Records(now)
//
// NormalizeFile runs all three steps.
package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"

	"github.com/tbourn/complaints-backend/internal/domain"
)

// Format is the declared tabular format of an upload.
type Format string

const (
	FormatCSV         Format = "csv"
	FormatSpreadsheet Format = "spreadsheet"
)

// Table is a parsed upload: one header row plus data rows, in source order.
// Rows may be ragged.
type Table struct {
	Format Format
	Header []string
	Rows   [][]string
}

// DetectFormat infers the upload format from the filename extension.
// Only .csv, .xlsx and .xls are accepted (case-insensitive).
func DetectFormat(filename string) (Format, error) {
	switch strings.ToLower(filepath.Ext(strings.TrimSpace(filename))) {
	case ".csv":
		return FormatCSV, nil
	case ".xlsx", ".xls":
		return FormatSpreadsheet, nil
	}
	return "", &domain.UnsupportedFormatError{Name: filename}
}

// Parse reads data according to the format implied by filename. Empty input
// yields an empty table. Content that cannot be read returns *domain.ParseError.
func Parse(data []byte, filename string) (*Table, error) {
	format, err := DetectFormat(filename)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return &Table{Format: format}, nil
	}

	var records [][]string
	switch {
	case format == FormatCSV:
		records, err = readCSV(data)
	case isZip(data) || strings.EqualFold(filepath.Ext(strings.TrimSpace(filename)), ".xlsx"):
		// .xlsx, or an .xlsx saved with a legacy extension.
		records, err = readXLSX(data)
	default:
		records, err = readXLS(data)
	}
	if err != nil {
		return nil, err
	}
	return buildTable(format, records)
}

// buildTable splits header from data rows and drops fully blank rows. CSV
// rows wider than the header are malformed; spreadsheet cells past the
// header belong to unlabeled columns and are dropped.
func buildTable(format Format, records [][]string) (*Table, error) {
	t := &Table{Format: format}
	start := -1
	for i, r := range records {
		if !blank(r) {
			start = i
			break
		}
	}
	if start < 0 {
		return t, nil
	}
	t.Header = records[start]

	width := len(t.Header)
	for i, r := range records[start+1:] {
		if blank(r) {
			continue
		}
		if n := lastNonBlank(r) + 1; n > width {
			if format == FormatSpreadsheet {
				t.Rows = append(t.Rows, r[:width])
				continue
			}
			return nil, &domain.ParseError{
				Format: string(format),
				Line:   start + i + 2,
				Err:    fmt.Errorf("expected %d fields, saw %d", width, n),
			}
		}
		t.Rows = append(t.Rows, r)
	}
	return t, nil
}

func readCSV(data []byte) ([][]string, error) {
	data = bytes.TrimPrefix(sanitizeUTF8(data), []byte("\ufeff"))

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	records, err := r.ReadAll()
	if err != nil {
		pe := &domain.ParseError{Format: string(FormatCSV), Err: err}
		var csvErr *csv.ParseError
		if errors.As(err, &csvErr) {
			pe.Line = csvErr.Line
		}
		return nil, pe
	}
	return records, nil
}

func readXLSX(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, &domain.ParseError{Format: "xlsx", Err: err}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, &domain.ParseError{Format: "xlsx", Err: err}
	}
	if err := rawDates(f, sheets[0], rows); err != nil {
		return nil, &domain.ParseError{Format: "xlsx", Err: err}
	}
	return rows, nil
}

// rawDates swaps the formatted DATE cells in rows for their stored values.
// A typed date renders through its number format ("5/1/24 10:30"), while the
// raw serial converts exactly.
func rawDates(f *excelize.File, sheet string, rows [][]string) error {
	header := -1
	for i, r := range rows {
		if !blank(r) {
			header = i
			break
		}
	}
	if header < 0 {
		return nil
	}
	col, ok := ColumnIndex(rows[header])[domain.FieldDate]
	if !ok {
		return nil
	}

	raw, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return err
	}
	for i := header + 1; i < len(rows) && i < len(raw); i++ {
		if col < len(rows[i]) && col < len(raw[i]) {
			rows[i][col] = raw[i][col]
		}
	}
	return nil
}

// readXLS reads the first worksheet of a legacy BIFF workbook. The xls
// reader panics on some malformed inputs, so panics become parse errors.
func readXLS(data []byte) (records [][]string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			records = nil
			err = &domain.ParseError{Format: "xls", Err: fmt.Errorf("corrupt workbook: %v", rec)}
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, &domain.ParseError{Format: "xls", Err: err}
	}
	if wb.NumSheets() == 0 {
		return nil, nil
	}
	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, nil
	}
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		if row == nil {
			records = append(records, nil)
			continue
		}
		cells := make([]string, row.LastCol())
		for j := row.FirstCol(); j < row.LastCol(); j++ {
			cells[j] = row.Col(j)
		}
		records = append(records, cells)
	}
	return records, nil
}

func isZip(data []byte) bool {
	return bytes.HasPrefix(data, []byte("PK\x03\x04"))
}

// sanitizeUTF8 replaces invalid byte sequences with U+FFFD.
func sanitizeUTF8(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}
	var buf bytes.Buffer
	buf.Grow(len(data))
	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			buf.WriteRune(utf8.RuneError)
		} else {
			buf.WriteRune(r)
		}
		data = data[size:]
	}
	return buf.Bytes()
}

func blank(row []string) bool {
	return lastNonBlank(row) < 0
}

func lastNonBlank(row []string) int {
	for i := len(row) - 1; i >= 0; i-- {
		if strings.TrimSpace(row[i]) != "" {
			return i
		}
	}
	return -1
}
