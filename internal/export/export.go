// Package export serialises complaint records for download. Exports are pure
// transforms over an already materialised slice: nothing here queries the
// store. Columns follow the canonical field order, the header row uses the
// canonical names, and the store-assigned id is never written, so an export
// can be uploaded again unchanged.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/tbourn/complaints-backend/internal/domain"
)

// Format names an export encoding.
type Format string

const (
	FormatCSV         Format = "csv"
	FormatSpreadsheet Format = "spreadsheet"
)

const (
	ContentTypeCSV         = "text/csv"
	ContentTypeSpreadsheet = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	// SheetName is the single worksheet written by Spreadsheet.
	SheetName = "Complaints"
)

// File is a rendered export ready to be sent as an attachment.
type File struct {
	Data        []byte
	Filename    string
	ContentType string
}

// ParseFormat accepts "csv" or "spreadsheet" (also "xlsx" and "excel"),
// case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return FormatCSV, nil
	case "spreadsheet", "xlsx", "excel":
		return FormatSpreadsheet, nil
	}
	return "", &domain.UnsupportedFormatError{Name: s}
}

// Header returns the export header row.
func Header() []string {
	h := make([]string, len(domain.Fields))
	for i, f := range domain.Fields {
		h[i] = string(f)
	}
	return h
}

// CSV writes recs as UTF-8 comma-separated text with a header row.
func CSV(recs []domain.Complaint) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(Header()); err != nil {
		return nil, err
	}
	for i := range recs {
		if err := w.Write(recs[i].Row()); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Spreadsheet writes recs into a single-sheet .xlsx workbook. Every cell is
// stored as text so identifiers such as "00123" keep their leading zeros.
func Spreadsheet(recs []domain.Complaint) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return nil, err
	}
	if err := setRow(f, 1, Header()); err != nil {
		return nil, err
	}
	for i := range recs {
		if err := setRow(f, i+2, recs[i].Row()); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func setRow(f *excelize.File, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	cells := make([]any, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return f.SetSheetRow(SheetName, cell, &cells)
}

// Filename builds the suggested download name, e.g.
// complaints_20240501_093000.csv.
func Filename(format Format, now time.Time) string {
	ext := "csv"
	if format == FormatSpreadsheet {
		ext = "xlsx"
	}
	return fmt.Sprintf("complaints_%s.%s", now.Format("20060102_150405"), ext)
}

// Render encodes recs in the requested format. An unknown format returns
// *domain.UnsupportedFormatError.
func Render(format Format, recs []domain.Complaint, now time.Time) (*File, error) {
	var (
		data []byte
		ct   string
		err  error
	)
	switch format {
	case FormatCSV:
		data, err = CSV(recs)
		ct = ContentTypeCSV
	case FormatSpreadsheet:
		data, err = Spreadsheet(recs)
		ct = ContentTypeSpreadsheet
	default:
		return nil, &domain.UnsupportedFormatError{Name: string(format)}
	}
	if err != nil {
		return nil, fmt.Errorf("export %s: %w", format, err)
	}
	return &File{Data: data, Filename: Filename(format, now), ContentType: ct}, nil
}
