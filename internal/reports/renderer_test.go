package reports

import (
	"bytes"
	"testing"

	"github.com/go-pdf/fpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/presenca/backend/pkg/apperr"
)

func sampleTable() Table {
	return Table{
		Title:    "Lista de presença",
		Subtitle: "REUNIÃO - 10/06/2025",
		Columns:  []string{"Código", "Nome", "10/06/2025"},
		Rows: [][]any{
			{1, "ANA", Present},
			{2, "JOÃO", Absent},
		},
		Totals: []any{"", "Totais:", "P 1 / F 1"},
	}
}

func TestForFormat(t *testing.T) {
	r, err := ForFormat("XLSX")
	require.NoError(t, err)
	assert.Equal(t, "xlsx", r.Extension())

	r, err = ForFormat("pdf")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", r.ContentType())

	_, err = ForFormat("csv")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestXLSX_Render(t *testing.T) {
	body, err := XLSX{}.Render(sampleTable())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(body))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"Código", "Nome", "10/06/2025"}, rows[0])
	assert.Equal(t, []string{"1", "ANA", Present}, rows[1])
	assert.Equal(t, []string{"2", "JOÃO", Absent}, rows[2])
	assert.Equal(t, "P 1 / F 1", rows[3][2])

	plain, err := f.GetCellStyle(sheetName, "B2")
	require.NoError(t, err)
	present, err := f.GetCellStyle(sheetName, "C2")
	require.NoError(t, err)
	absent, err := f.GetCellStyle(sheetName, "C3")
	require.NoError(t, err)
	assert.NotEqual(t, plain, present)
	assert.NotEqual(t, present, absent)
}

func TestXLSX_DoesNotMutateRows(t *testing.T) {
	tbl := sampleTable()
	tbl.Rows = make([][]any, 1, 8)
	tbl.Rows[0] = []any{1, "ANA", Present}

	_, err := XLSX{}.Render(tbl)
	require.NoError(t, err)
	assert.Len(t, tbl.Rows, 1)
	assert.Len(t, tbl.Rows[:cap(tbl.Rows)][1], 0)
}

func TestPDF_Render(t *testing.T) {
	body, err := PDF{}.Render(sampleTable())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(body, []byte("%PDF-")))
}

func TestPDF_ManyRowsAndColumns(t *testing.T) {
	tbl := Table{Title: "Grande"}
	for i := 0; i < 14; i++ {
		tbl.Columns = append(tbl.Columns, "Coluna com nome comprido")
	}
	for i := 0; i < 120; i++ {
		row := make([]any, len(tbl.Columns))
		for c := range row {
			row[c] = Present
		}
		tbl.Rows = append(tbl.Rows, row)
	}
	body, err := PDF{}.Render(tbl)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(body, []byte("%PDF-")))
}

func TestClipMeasuresTranslatedText(t *testing.T) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Helvetica", "", 9)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	name := tr("JOÃO CONCEIÇÃO DE ASSUNÇÃO ÁVILA")
	width := pdf.GetStringWidth(tr("JOÃO CONCEIÇÃO")) + 2

	got := clip(name, width, pdf)
	assert.Equal(t, tr("JOÃO CONCEIÇÃO"), got)
	assert.LessOrEqual(t, pdf.GetStringWidth(got)+2, width)

	short := tr("ÉRICA")
	assert.Equal(t, short, clip(short, 100, pdf))
}
