package spreadsheet

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestCheckFileType(t *testing.T) {
	tests := []struct {
		name        string
		filename    string
		contentType string
		wantExt     string
		wantErr     bool
	}{
		{"csv", "members.csv", "text/csv", ExtCSV, false},
		{"csv with charset", "members.CSV", "text/csv; charset=utf-8", ExtCSV, false},
		{"xlsx", "members.xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", ExtXLSX, false},
		{"xls", "members.xls", "application/vnd.ms-excel", ExtXLS, false},
		{"octet stream", "members.xlsx", "application/octet-stream", ExtXLSX, false},
		{"no content type", "members.xls", "", ExtXLS, false},
		{"pdf", "members.pdf", "application/pdf", "", true},
		{"wrong type for extension", "members.xlsx", "image/png", "", true},
		{"no extension", "members", "text/csv", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ext, err := CheckFileType(tt.filename, tt.contentType)
			if tt.wantErr {
				if !errors.Is(err, ErrUnsupportedType) {
					t.Errorf("err = %v, want ErrUnsupportedType", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ext != tt.wantExt {
				t.Errorf("ext = %q, want %q", ext, tt.wantExt)
			}
		})
	}
}

func TestReadRows_CSV(t *testing.T) {
	data := "\xef\xbb\xbffull_name,email,subscription_due_date\nAna,ana@example.com,2026-07-01\nBen,ben@example.com\n"

	rows, err := ReadRows(strings.NewReader(data), "members.csv")
	if err != nil {
		t.Fatalf("ReadRows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	if rows[0][0] != "full_name" {
		t.Errorf("BOM not stripped: %q", rows[0][0])
	}
	if len(rows[2]) != 2 {
		t.Errorf("short row should keep its own width, got %v", rows[2])
	}
}

func TestReadRows_XLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	for i, row := range [][]any{
		{"full_name", "email", "subscription_due_date"},
		{"Ana", "ana@example.com", "2026-07-01"},
	} {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatal(err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatal(err)
	}

	rows, err := ReadRows(bytes.NewReader(buf.Bytes()), "members.xlsx")
	if err != nil {
		t.Fatalf("ReadRows: %v", err)
	}
	if len(rows) != 2 || rows[1][0] != "Ana" || rows[1][2] != "2026-07-01" {
		t.Errorf("rows = %v", rows)
	}
}

func TestReadRows_Errors(t *testing.T) {
	if _, err := ReadRows(strings.NewReader(""), "empty.csv"); !errors.Is(err, ErrEmpty) {
		t.Errorf("empty csv: err = %v, want ErrEmpty", err)
	}
	if _, err := ReadRows(strings.NewReader("not a zip"), "broken.xlsx"); err == nil {
		t.Error("expected error for corrupt xlsx")
	}
	if _, err := ReadRows(strings.NewReader("x"), "notes.txt"); !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("txt: err = %v, want ErrUnsupportedType", err)
	}
}

func TestHeader(t *testing.T) {
	h := NewHeader([]string{" Full_Name ", "EMAIL", "phone"})

	if missing := h.Missing(RequiredColumns); len(missing) != 1 || missing[0] != "subscription_due_date" {
		t.Errorf("Missing = %v", missing)
	}
	row := []string{"Ana", " ana@example.com "}
	if got := h.Cell(row, "email"); got != "ana@example.com" {
		t.Errorf("Cell(email) = %q", got)
	}
	if got := h.Cell(row, "phone"); got != "" {
		t.Errorf("Cell past row end = %q, want empty", got)
	}
}

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"2026-07-01", "2026-07-01", true},
		{"7/1/2026", "2026-07-01", true},
		{"2026-07-01 00:00:00", "2026-07-01", true},
		{"46204", "2026-07-01", true},
		{"2026", "", false},
		{"tomorrow", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := NormalizeDate(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("NormalizeDate(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestParseBool(t *testing.T) {
	if v, err := ParseBool("", true); err != nil || !v {
		t.Errorf("empty = %v, %v; want default true", v, err)
	}
	if v, err := ParseBool("FALSE", true); err != nil || v {
		t.Errorf("FALSE = %v, %v", v, err)
	}
	if _, err := ParseBool("maybe", true); err == nil {
		t.Error("expected error for maybe")
	}
}

func TestTemplateCSV(t *testing.T) {
	rows, err := ReadRows(bytes.NewReader(TemplateCSV()), "template.csv")
	if err != nil {
		t.Fatalf("template does not parse: %v", err)
	}
	h := NewHeader(rows[0])
	if missing := h.Missing(RequiredColumns); len(missing) != 0 {
		t.Errorf("template lacks %v", missing)
	}
	if len(rows) != 4 {
		t.Errorf("template rows = %d, want header plus 3 samples", len(rows))
	}
}
