package ingestion_engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestCSVChunks(t *testing.T) {
	data := []byte("Name,Age\nAlice,30\n,\nBob,41\n")

	chunks, err := CSVChunks(data, "people.csv")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Row 1 from people.csv: Name: Alice | Age: 30",
		"Row 3 from people.csv: Name: Bob | Age: 41",
	}, chunks)
}

func TestCSVChunks_EmptyLinesAreSkipped(t *testing.T) {
	data := []byte("\xef\xbb\xbfName,Age\n\nAlice,30\n\n")

	chunks, err := CSVChunks(data, "people.csv")
	require.NoError(t, err)
	assert.Equal(t, []string{"Row 1 from people.csv: Name: Alice | Age: 30"}, chunks)
}

func TestCSVChunks_RaggedRows(t *testing.T) {
	data := []byte("Name,,Age\nAlice\nBob,x,41,extra\n")

	chunks, err := CSVChunks(data, "r.csv")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Row 1 from r.csv: Name: Alice | Column 2:  | Age: ",
		"Row 2 from r.csv: Name: Bob | Column 2: x | Age: 41 | Column 4: extra",
	}, chunks)
}

func TestCSVChunks_HeaderOnly(t *testing.T) {
	chunks, err := CSVChunks([]byte("Name,Age\n"), "h.csv")
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func buildWorkbook(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"Name", "Age"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]any{"Alice", 30}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A4", &[]any{"Bob", 41}))

	_, err := f.NewSheet("Totals")
	require.NoError(t, err)
	require.NoError(t, f.SetSheetRow("Totals", "A1", &[]any{"Metric", "Value"}))
	require.NoError(t, f.SetSheetRow("Totals", "A2", &[]any{"Count", 2}))

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestXLSXChunks(t *testing.T) {
	chunks, err := XLSXChunks(buildWorkbook(t), "test.xlsx")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"Sheet: Sheet1 | Row 1 from test.xlsx: Name: Alice | Age: 30",
		"Sheet: Sheet1 | Row 3 from test.xlsx: Name: Bob | Age: 41",
		"Sheet: Totals | Row 1 from test.xlsx: Metric: Count | Value: 2",
	}, chunks)
}

func TestXLSXChunks_NotAWorkbook(t *testing.T) {
	_, err := XLSXChunks([]byte("plain text"), "x.xlsx")
	assert.ErrorIs(t, err, ErrConversionFailed)
}

func TestXLSChunks(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("testdata", "people.xls"))
	require.NoError(t, err)

	chunks, err := XLSChunks(data, "test.xls")
	require.NoError(t, err)

	// Teams has no row 1, so its data row keeps index 2.
	assert.Equal(t, []string{
		"Sheet: People | Row 1 from test.xls: Name: Alice | Age: 30",
		"Sheet: People | Row 2 from test.xls: Name: Bob | Age: 25",
		"Sheet: Teams | Row 2 from test.xls: Team: Core | Lead: Alice",
	}, chunks)
}

func TestXLSChunks_NotAWorkbook(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("testdata", "people.xls"))
	require.NoError(t, err)

	cases := map[string][]byte{
		"plain text": []byte("plain text"),
		"empty":      nil,
		"truncated":  data[:16],
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			chunks, err := XLSChunks(input, "x.xls")
			assert.ErrorIs(t, err, ErrConversionFailed)
			assert.Nil(t, chunks)
		})
	}
}

func TestRenderRows(t *testing.T) {
	rows := [][]string{{"Name", "Age"}, {"Alice", "30"}, {" ", ""}, nil}

	assert.Equal(t,
		[]string{"Sheet: Sheet1 | Row 1 from test.xlsx: Name: Alice | Age: 30"},
		renderRows(rows, "test.xlsx", "Sheet1"))
	assert.Empty(t, renderRows(nil, "x", ""))
}
