// Package reports renders attendance tables as spreadsheets and documents.
package reports

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/xuri/excelize/v2"

	"github.com/presenca/backend/pkg/apperr"
)

// Status cells of the presence matrix. Renderers colour them.
const (
	Present = "PRESENTE"
	Absent  = "FALTOU"
)

// Table is a format-agnostic report: a title, a header row, body rows and an optional
// totals row. Cells are strings or integers.
type Table struct {
	Title    string
	Subtitle string
	Columns  []string
	Rows     [][]any
	Totals   []any
}

// Renderer turns a table into a document.
type Renderer interface {
	Render(t Table) ([]byte, error)
	ContentType() string
	Extension() string
}

// Format tags accepted by ForFormat.
const (
	FormatXLSX = "xlsx"
	FormatPDF  = "pdf"
)

// ForFormat returns the renderer for a format tag.
func ForFormat(tag string) (Renderer, error) {
	switch strings.ToLower(tag) {
	case FormatXLSX:
		return XLSX{}, nil
	case FormatPDF:
		return PDF{}, nil
	}
	return nil, apperr.Invalid("format", fmt.Sprintf("unsupported format %q", tag))
}

func cellText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}

// XLSX renders a single-sheet workbook.
type XLSX struct{}

const sheetName = "Resumo"

func (XLSX) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

func (XLSX) Extension() string { return FormatXLSX }

func (XLSX) Render(t Table) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"D9D9D9"}},
	})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}
	green, err := f.NewStyle(&excelize.Style{Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"C6EFCE"}}})
	if err != nil {
		return nil, fmt.Errorf("present style: %w", err)
	}
	red, err := f.NewStyle(&excelize.Style{Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"FFC7CE"}}})
	if err != nil {
		return nil, fmt.Errorf("absent style: %w", err)
	}

	put := func(col, row int, v any) (string, error) {
		cell, err := excelize.CoordinatesToCellName(col, row)
		if err != nil {
			return "", err
		}
		return cell, f.SetCellValue(sheetName, cell, v)
	}

	for i, name := range t.Columns {
		cell, err := put(i+1, 1, name)
		if err != nil {
			return nil, fmt.Errorf("header cell: %w", err)
		}
		if err := f.SetCellStyle(sheetName, cell, cell, header); err != nil {
			return nil, fmt.Errorf("header style: %w", err)
		}
	}
	rows := t.Rows
	if len(t.Totals) > 0 {
		rows = append(rows[:len(rows):len(rows)], t.Totals)
	}
	for r, row := range rows {
		for c, v := range row {
			cell, err := put(c+1, r+2, v)
			if err != nil {
				return nil, fmt.Errorf("cell: %w", err)
			}
			style := 0
			switch v {
			case Present:
				style = green
			case Absent:
				style = red
			}
			if style != 0 {
				if err := f.SetCellStyle(sheetName, cell, cell, style); err != nil {
					return nil, fmt.Errorf("cell style: %w", err)
				}
			}
		}
	}
	if n := len(t.Columns); n > 0 {
		last, _ := excelize.ColumnNumberToName(n)
		if err := f.SetColWidth(sheetName, "A", last, 18); err != nil {
			return nil, fmt.Errorf("column width: %w", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// PDF renders an A4 document with the table laid out in equal-width columns, repeating the
// header on every page. Wide tables switch to landscape.
type PDF struct{}

const (
	pdfLineHeight = 6.0
	pdfFooter     = "Lista de presença"
)

func (PDF) ContentType() string { return "application/pdf" }

func (PDF) Extension() string { return FormatPDF }

func (PDF) Render(t Table) ([]byte, error) {
	orientation := "P"
	if len(t.Columns) > 6 {
		orientation = "L"
	}
	pdf := fpdf.New(orientation, "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Helvetica", "", 8)
		pdf.CellFormat(0, 8, tr(fmt.Sprintf("%s - %d", pdfFooter, pdf.PageNo())), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 10, tr(t.Title), "", 1, "L", false, 0, "")
	if t.Subtitle != "" {
		pdf.SetFont("Helvetica", "", 11)
		pdf.CellFormat(0, 8, tr(t.Subtitle), "", 1, "L", false, 0, "")
	}
	pdf.Ln(2)

	if len(t.Columns) == 0 {
		return output(pdf)
	}
	pageW, pageH := pdf.GetPageSize()
	left, _, right, bottom := pdf.GetMargins()
	colW := (pageW - left - right) / float64(len(t.Columns))
	size := 9.0
	if len(t.Columns) > 10 {
		size = 7
	}

	header := func() {
		pdf.SetFont("Helvetica", "B", size)
		pdf.SetFillColor(217, 217, 217)
		for _, name := range t.Columns {
			pdf.CellFormat(colW, pdfLineHeight, tr(name), "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Helvetica", "", size)
	}
	header()

	line := func(row []any) {
		if pdf.GetY()+pdfLineHeight > pageH-bottom-12 {
			pdf.AddPage()
			header()
		}
		for _, v := range row {
			fill := false
			switch v {
			case Present:
				pdf.SetFillColor(198, 239, 206)
				fill = true
			case Absent:
				pdf.SetFillColor(255, 199, 206)
				fill = true
			}
			pdf.CellFormat(colW, pdfLineHeight, clip(tr(cellText(v)), colW, pdf), "1", 0, "L", fill, 0, "")
		}
		pdf.Ln(-1)
	}
	for _, row := range t.Rows {
		line(row)
	}
	if len(t.Totals) > 0 {
		pdf.SetFont("Helvetica", "B", size)
		line(t.Totals)
	}
	return output(pdf)
}

// clip shortens s until it fits in width, leaving a small padding. s must already be translated
// to the single-byte font encoding, which is what gets measured and drawn.
func clip(s string, width float64, pdf *fpdf.Fpdf) string {
	for len(s) > 1 && pdf.GetStringWidth(s)+2 > width {
		s = s[:len(s)-1]
	}
	return s
}

func output(pdf *fpdf.Fpdf) ([]byte, error) {
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), nil
}
