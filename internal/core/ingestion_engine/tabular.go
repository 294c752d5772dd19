package ingestion_engine

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

// CSVChunks renders every non-blank data row of a CSV file as one chunk.
func CSVChunks(data []byte, filename string) ([]string, error) {
	text, _ := decodeText(data)

	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: parse csv: %v", ErrConversionFailed, err)
	}
	return renderRows(records, filename, ""), nil
}

// XLSXChunks renders every sheet of an XLSX workbook, sheets in workbook order.
func XLSXChunks(data []byte, filename string) ([]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: open xlsx: %v", ErrConversionFailed, err)
	}
	defer f.Close()

	var chunks []string
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("%w: read sheet %q: %v", ErrConversionFailed, sheet, err)
		}
		chunks = append(chunks, renderRows(rows, filename, sheet)...)
	}
	return chunks, nil
}

// XLSChunks renders every sheet of a legacy BIFF workbook.
func XLSChunks(data []byte, filename string) (chunks []string, err error) {
	// the BIFF parser panics on some truncated files
	defer func() {
		if r := recover(); r != nil {
			chunks, err = nil, fmt.Errorf("%w: read xls: %v", ErrConversionFailed, r)
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, fmt.Errorf("%w: open xls: %v", ErrConversionFailed, err)
	}

	for i := 0; i < wb.NumSheets(); i++ {
		sheet := wb.GetSheet(i)
		if sheet == nil {
			continue
		}
		rows := make([][]string, 0, int(sheet.MaxRow)+1)
		for r := 0; r <= int(sheet.MaxRow); r++ {
			row := sheetRow(sheet, r)
			if row == nil {
				rows = append(rows, nil)
				continue
			}
			cells := make([]string, row.LastCol())
			for c := row.FirstCol(); c < row.LastCol(); c++ {
				cells[c] = row.Col(c)
			}
			rows = append(rows, cells)
		}
		chunks = append(chunks, renderRows(rows, filename, sheet.Name)...)
	}
	return chunks, nil
}

// sheetRow returns nil for rows the sheet never recorded; Row panics on them.
func sheetRow(sheet *xls.WorkSheet, i int) (row *xls.Row) {
	defer func() {
		if recover() != nil {
			row = nil
		}
	}()
	return sheet.Row(i)
}

// renderRows turns rows[1:] into "Row {i} from {filename}: h: v | h: v" chunks using rows[0] as header.
// i is the row's position in rows, so skipped blank rows still consume their index.
func renderRows(rows [][]string, filename, sheet string) []string {
	if len(rows) < 2 {
		return nil
	}
	headers := trimCells(rows[0])

	var chunks []string
	for i := 1; i < len(rows); i++ {
		cells := trimCells(rows[i])
		if blankRow(cells) {
			continue
		}

		n := max(len(headers), len(cells))
		fields := make([]string, 0, n)
		for c := 0; c < n; c++ {
			label := ""
			if c < len(headers) {
				label = headers[c]
			}
			if label == "" {
				label = "Column " + strconv.Itoa(c+1)
			}
			value := ""
			if c < len(cells) {
				value = cells[c]
			}
			fields = append(fields, label+": "+value)
		}

		var b strings.Builder
		if sheet != "" {
			b.WriteString("Sheet: ")
			b.WriteString(sheet)
			b.WriteString(" | ")
		}
		fmt.Fprintf(&b, "Row %d from %s: %s", i, filename, strings.Join(fields, " | "))
		chunks = append(chunks, b.String())
	}
	return chunks
}

func trimCells(row []string) []string {
	out := make([]string, len(row))
	for i, c := range row {
		out[i] = strings.TrimSpace(c)
	}
	return out
}

func blankRow(cells []string) bool {
	for _, c := range cells {
		if c != "" {
			return false
		}
	}
	return true
}
