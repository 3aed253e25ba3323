// Package spreadsheet reads member import files (.csv, .xlsx, .xls) into rows of cells.
package spreadsheet

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

// Supported file extensions.
const (
	ExtCSV  = ".csv"
	ExtXLSX = ".xlsx"
	ExtXLS  = ".xls"
)

// maxXLSRows caps how many rows are read from a legacy workbook.
const maxXLSRows = 100000

// ErrUnsupportedType is returned for files that are not CSV or Excel.
var ErrUnsupportedType = errors.New("please select an Excel (.xlsx, .xls) or CSV file")

// ErrEmpty is returned when the file has no rows.
var ErrEmpty = errors.New("worksheet is empty")

// contentTypes lists the declared types accepted per extension. Browsers and
// command-line clients often send application/octet-stream, which is accepted
// for every extension.
var contentTypes = map[string][]string{
	ExtCSV:  {"text/csv", "application/csv", "text/plain", "application/vnd.ms-excel"},
	ExtXLSX: {"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"},
	ExtXLS:  {"application/vnd.ms-excel"},
}

// Columns is the import layout, in template order. The first three are required.
var Columns = []string{
	"full_name", "email", "subscription_due_date",
	"phone", "birthday", "membership_type", "is_active", "last_checkin_date",
}

// RequiredColumns must be present in the header row.
var RequiredColumns = Columns[:3]

// CheckFileType returns the normalised extension of filename after checking it
// and the declared content type.
// POST: Returns ErrUnsupportedType for anything but csv, xlsx or xls
func CheckFileType(filename, contentType string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	allowed, ok := contentTypes[ext]
	if !ok {
		return "", ErrUnsupportedType
	}
	if contentType == "" {
		return ext, nil
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", ErrUnsupportedType
	}
	if mediaType == "application/octet-stream" || slices.Contains(allowed, mediaType) {
		return ext, nil
	}
	return "", ErrUnsupportedType
}

// ReadRows reads every row of the first worksheet (or the CSV file).
// PRE: filename passed CheckFileType
// POST: Returns at least one row (the header) or an error
func ReadRows(r io.Reader, filename string) ([][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}

	var rows [][]string
	switch strings.ToLower(filepath.Ext(filename)) {
	case ExtCSV:
		cr := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))))
		cr.TrimLeadingSpace = true
		cr.FieldsPerRecord = -1
		rows, err = cr.ReadAll()
		if err != nil {
			return nil, fmt.Errorf("parse csv: %w", err)
		}
	case ExtXLS:
		workbook, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
		if err != nil {
			return nil, fmt.Errorf("open xls: %w", err)
		}
		if workbook.NumSheets() == 0 {
			return nil, errors.New("no worksheet found")
		}
		rows = workbook.ReadAllCells(maxXLSRows)
	case ExtXLSX:
		file, err := excelize.OpenReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("open xlsx: %w", err)
		}
		defer func() { _ = file.Close() }()

		sheetName := file.GetSheetName(0)
		if sheetName == "" {
			return nil, errors.New("no worksheet found")
		}
		rows, err = file.GetRows(sheetName)
		if err != nil {
			return nil, fmt.Errorf("read xlsx rows: %w", err)
		}
	default:
		return nil, ErrUnsupportedType
	}

	if len(rows) == 0 {
		return nil, ErrEmpty
	}
	return rows, nil
}

// Header maps normalised column names to their index.
type Header map[string]int

// NewHeader indexes a header row. Names are trimmed and lower-cased.
func NewHeader(row []string) Header {
	h := make(Header, len(row))
	for i, name := range row {
		key := strings.ToLower(strings.TrimSpace(name))
		if _, dup := h[key]; !dup && key != "" {
			h[key] = i
		}
	}
	return h
}

// Missing returns the names in cols that the header lacks.
func (h Header) Missing(cols []string) []string {
	var missing []string
	for _, c := range cols {
		if _, ok := h[c]; !ok {
			missing = append(missing, c)
		}
	}
	return missing
}

// Cell returns the trimmed cell for column in row, or "".
func (h Header) Cell(row []string, column string) string {
	i, ok := h[column]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// IsBlank reports whether every cell of row is empty.
func IsBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

var dateFormats = []string{
	"2006-01-02",
	"2006/01/02",
	"1/2/2006",
	"01/02/2006",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// NormalizeDate converts a spreadsheet date cell to YYYY-MM-DD.
// Excel serial numbers are accepted as well as common text layouts.
// POST: ok is false when value is not a recognisable date
func NormalizeDate(value string) (string, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	if serial, err := strconv.ParseFloat(value, 64); err == nil {
		// Plain years and small numbers are not serial dates.
		if serial < 3000 || serial > 2958465 {
			return "", false
		}
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return "", false
		}
		return t.Format("2006-01-02"), true
	}
	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, value); err == nil {
			return t.Format("2006-01-02"), true
		}
	}
	return "", false
}

// ParseBool reads an is_active cell. Empty means def.
func ParseBool(value string, def bool) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "":
		return def, nil
	case "true", "yes", "y", "1", "active":
		return true, nil
	case "false", "no", "n", "0", "inactive":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", value)
}

// TemplateCSV returns the downloadable import template with sample rows.
func TemplateCSV() []byte {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.WriteAll([][]string{
		Columns[:7],
		{"John Doe", "john@example.com", "2026-12-31", "+1234567890", "1990-01-15", "premium", "true"},
		{"Jane Smith", "jane@example.com", "2026-11-30", "", "1985-05-20", "basic", "true"},
		{"Mike Johnson", "mike@example.com", "2027-01-15", "+1987654321", "1992-03-10", "vip", "true"},
	})
	return buf.Bytes()
}
