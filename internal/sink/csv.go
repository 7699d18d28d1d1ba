package sink

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"sync"
)

// CSV appends records to a comma separated file, syncing after every row.
type CSV struct {
	mu     sync.Mutex
	file   *os.File
	w      *csv.Writer
	path   string
	layout Layout
	rows   int
}

// NewCSV creates (truncating) the file at path and writes the header.
func NewCSV(path string, layout Layout) (*CSV, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, writeErr("create dir for", path, err)
	}
	f, err := os.Create(path) //nolint:gosec // G304: path comes from configuration
	if err != nil {
		return nil, writeErr("create", path, err)
	}
	c := &CSV{file: f, w: csv.NewWriter(f), path: path, layout: layout}
	if err := c.write(layout.Header()); err != nil {
		_ = f.Close()
		return nil, err
	}
	return c, nil
}

// Append writes r and syncs the file.
func (c *CSV) Append(r Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.file == nil {
		return writeErr("append to closed", c.path, os.ErrClosed)
	}
	if err := c.write(c.layout.Row(r)); err != nil {
		return err
	}
	c.rows++
	return nil
}

func (c *CSV) write(row []string) error {
	if err := c.w.Write(row); err != nil {
		return writeErr("write", c.path, err)
	}
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		return writeErr("flush", c.path, err)
	}
	if err := c.file.Sync(); err != nil {
		return writeErr("sync", c.path, err)
	}
	return nil
}

// Rows reports the content rows written.
func (c *CSV) Rows() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rows
}

// Path returns the file path.
func (c *CSV) Path() string { return c.path }

// Close closes the file.
func (c *CSV) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.file == nil {
		return nil
	}
	err := c.file.Close()
	c.file = nil
	if err != nil {
		return writeErr("close", c.path, err)
	}
	return nil
}
