package sink

import (
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/xuri/excelize/v2"
)

// XLSX writes records into a single worksheet and saves the whole workbook
// after every row.
type XLSX struct {
	mu     sync.Mutex
	file   *excelize.File
	path   string
	sheet  string
	layout Layout
	rows   int
	closed bool
}

// NewXLSX creates the workbook at path with the layout's sheet and header.
func NewXLSX(path string, layout Layout) (*XLSX, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, writeErr("create dir for", path, err)
	}

	f := excelize.NewFile()
	sheet := layout.SheetName()
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		_ = f.Close()
		return nil, writeErr("name sheet in", path, err)
	}
	_ = f.SetColWidth(sheet, "A", "A", 32)
	_ = f.SetColWidth(sheet, "B", "B", 60)

	x := &XLSX{file: f, path: path, sheet: sheet, layout: layout}
	if err := x.writeRow(1, layout.Header()); err != nil {
		_ = f.Close()
		return nil, err
	}
	return x, nil
}

// Append writes r as the next row and saves the workbook.
func (x *XLSX) Append(r Record) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.closed {
		return writeErr("append to closed", x.path, os.ErrClosed)
	}
	if err := x.writeRow(x.rows+2, x.layout.Row(r)); err != nil {
		return err
	}
	x.rows++
	return nil
}

func (x *XLSX) writeRow(row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return writeErr("address row in", x.path, err)
	}
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	if err := x.file.SetSheetRow(x.sheet, cell, &cells); err != nil {
		return writeErr("set row in", x.path, err)
	}
	if err := x.file.SaveAs(x.path); err != nil {
		return writeErr("save", x.path, err)
	}
	return nil
}

// Rows reports the content rows written.
func (x *XLSX) Rows() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.rows
}

// Path returns the workbook path.
func (x *XLSX) Path() string { return x.path }

// Close releases the workbook. The file on disk is already complete.
func (x *XLSX) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.closed {
		return nil
	}
	x.closed = true
	if err := x.file.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		return writeErr("close", x.path, err)
	}
	return nil
}
