package sink

import (
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MeKo-Tech/labelscan/internal/decode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var fixedNow = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

func clock() time.Time { return fixedNow }

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path) //nolint:gosec // G304: test file
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func readXLSX(t *testing.T, path, sheet string) [][]string {
	t.Helper()
	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	rows, err := f.GetRows(sheet)
	require.NoError(t, err)
	return rows
}

func TestDefaultFileName(t *testing.T) {
	assert.Equal(t, "label_texts_20260314_092653.xlsx", DefaultFileName(fixedNow, ""))
	assert.Equal(t, "label_texts_20260314_092653.csv", DefaultFileName(fixedNow, "CSV"))
}

func TestParseLayout(t *testing.T) {
	l, err := ParseLayout("")
	require.NoError(t, err)
	assert.Equal(t, LayoutText, l)

	l, err = ParseLayout("Barcode")
	require.NoError(t, err)
	assert.Equal(t, LayoutBarcode, l)

	_, err = ParseLayout("pdf")
	assert.Error(t, err)
}

func TestLayoutRows(t *testing.T) {
	r := Record{Source: "label_1.png", Content: "LOT 7", Method: decode.MethodOCR, Timestamp: fixedNow}
	assert.Equal(t, []string{"label_1.png", "LOT 7"}, LayoutText.Row(r))
	assert.Equal(t, []string{"2026-03-14 09:26:53", "LOT 7"}, LayoutBarcode.Row(r))
	assert.Equal(t, "Extracted Texts", LayoutText.SheetName())
	assert.Equal(t, "Barcodes", LayoutBarcode.SheetName())
}

func TestXLSX_HeaderThenOneRowPerRecord(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(Options{Dir: filepath.Join(dir, "results"), Clock: clock})
	require.NoError(t, err)
	path := s.Path()
	assert.Equal(t, filepath.Join(dir, "results", "label_texts_20260314_092653.xlsx"), path)

	assert.Equal(t, [][]string{{"Image Name", "Extracted Text"}}, readXLSX(t, path, "Extracted Texts"),
		"header is persisted before any append")

	for _, content := range []string{"first", "second", "third"} {
		require.NoError(t, s.Append(Record{Source: content + ".png", Content: content}))
	}
	assert.Equal(t, 3, s.Rows())

	rows := readXLSX(t, path, "Extracted Texts")
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"second.png", "second"}, rows[2])

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Append(Record{}), ErrWrite)
}

func TestXLSX_BarcodeLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "codes.xlsx")
	s, err := NewXLSX(path, LayoutBarcode)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	require.NoError(t, s.Append(Record{Content: "4006381333931", Symbology: "EAN13", Timestamp: fixedNow}))
	rows := readXLSX(t, path, "Barcodes")
	assert.Equal(t, [][]string{{"Timestamp", "Barcode"}, {"2026-03-14 09:26:53", "4006381333931"}}, rows)
}

func TestCSV_AppendIsDurable(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(Options{Format: FormatCSV, Dir: dir, File: "out.csv"})
	require.NoError(t, err)

	require.NoError(t, s.Append(Record{Source: "a.png", Content: "hello, world"}))
	// read back without closing: the row must already be on disk
	assert.Equal(t, [][]string{{"Image Name", "Extracted Text"}, {"a.png", "hello, world"}}, readCSV(t, s.Path()))
	assert.Equal(t, 1, s.Rows())

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Append(Record{}), ErrWrite)
}

func TestOpen_Failures(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	_, err := Open(Options{Dir: filepath.Join(blocker, "sub")})
	assert.ErrorIs(t, err, ErrWrite)

	_, err = Open(Options{Format: FormatCSV, Dir: filepath.Join(blocker, "sub")})
	assert.ErrorIs(t, err, ErrWrite)

	_, err = Open(Options{Format: "ods", Dir: dir})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrWrite)
}

func TestXLSX_AppendFailureWrapsErrWrite(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "gone")
	s, err := NewXLSX(filepath.Join(dir, "r.xlsx"), LayoutText)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	require.NoError(t, os.RemoveAll(dir))
	err = s.Append(Record{Source: "x", Content: "y"})
	assert.ErrorIs(t, err, ErrWrite)
	assert.Equal(t, 0, s.Rows(), "failed rows are not counted")
}

func TestMemory(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.Append(Record{Content: "a"}))
	assert.Equal(t, 1, m.Rows())
	assert.Equal(t, "a", m.Records()[0].Content)

	m.FailWith = errors.New("disk full")
	err := m.Append(Record{Content: "b"})
	assert.ErrorIs(t, err, ErrWrite)
	assert.Equal(t, 1, m.Rows())
	assert.Empty(t, m.Path())
	assert.NoError(t, m.Close())
}
