package encode

import (
	"github.com/xuri/excelize/v2"

	"github.com/spherical/doc-converter/internal/domain"
)

const (
	// SheetName is the single worksheet every spreadsheet carries.
	SheetName = "Extracted"
	// TextColumnLabel heads the single column used for plain text content.
	TextColumnLabel = "Extracted Text"
)

// SheetEncoder writes one table to an .xlsx workbook.
type SheetEncoder struct{}

// EncodeTable writes the header (when present) followed by the rows, in order.
// Rows shorter or longer than the header are written as they are.
func (SheetEncoder) EncodeTable(t *domain.Table) ([]byte, error) {
	if t == nil {
		return nil, domain.EncodingFailureError("no table to encode", nil)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return nil, domain.EncodingFailureError("name sheet", err)
	}

	row := 1
	if len(t.Header) > 0 {
		if err := writeRow(f, row, t.Header); err != nil {
			return nil, err
		}
		row++
	}
	for _, r := range t.Rows {
		if err := writeRow(f, row, r); err != nil {
			return nil, err
		}
		row++
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, domain.EncodingFailureError("write workbook", err)
	}
	return buf.Bytes(), nil
}

// Encode writes plain text pages under the fixed text column label.
func (e SheetEncoder) Encode(pages []string) ([]byte, error) {
	return e.EncodeTable(TextTable(pages))
}

var _ domain.TextEncoder = SheetEncoder{}

func writeRow(f *excelize.File, row int, cells []string) error {
	if len(cells) == 0 {
		return nil
	}
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return domain.EncodingFailureError("cell name", err)
	}
	values := make([]interface{}, len(cells))
	for i, c := range cells {
		values[i] = c
	}
	if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
		return domain.EncodingFailureError("write row", err)
	}
	return nil
}

// TextTable holds the joined page text in one column. Text longer than a
// spreadsheet cell allows continues in the following rows.
func TextTable(pages []string) *domain.Table {
	t := &domain.Table{Header: []string{TextColumnLabel}}
	for _, chunk := range chunkRunes(JoinPages(pages), excelize.TotalCellChars) {
		t.Rows = append(t.Rows, []string{chunk})
	}
	return t
}

func chunkRunes(s string, size int) []string {
	runes := []rune(s)
	if len(runes) <= size {
		return []string{s}
	}
	var out []string
	for len(runes) > 0 {
		n := size
		if n > len(runes) {
			n = len(runes)
		}
		out = append(out, string(runes[:n]))
		runes = runes[n:]
	}
	return out
}
