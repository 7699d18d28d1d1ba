// Package sink appends decoded records to a durable spreadsheet.
//
// Every Append is persisted before it returns, so a crash loses at most the
// record being written.
package sink

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/MeKo-Tech/labelscan/internal/decode"
)

// ErrWrite wraps every I/O failure of a sink.
var ErrWrite = errors.New("sink: write failed")

// Output formats.
const (
	FormatXLSX = "xlsx"
	FormatCSV  = "csv"
)

// Layout selects the header and identifier column.
type Layout string

const (
	// LayoutText writes "Image Name, Extracted Text" rows keyed by the region name.
	LayoutText Layout = "text"
	// LayoutBarcode writes "Timestamp, Barcode" rows keyed by the decode time.
	LayoutBarcode Layout = "barcode"
)

// TimestampLayout formats the identifier column of LayoutBarcode rows.
const TimestampLayout = "2006-01-02 15:04:05"

const fileTimeLayout = "20060102_150405"

// Header returns the fixed header row of the layout.
func (l Layout) Header() []string {
	if l == LayoutBarcode {
		return []string{"Timestamp", "Barcode"}
	}
	return []string{"Image Name", "Extracted Text"}
}

// SheetName returns the worksheet name used by the XLSX sink.
func (l Layout) SheetName() string {
	if l == LayoutBarcode {
		return "Barcodes"
	}
	return "Extracted Texts"
}

// Row renders r as (identifier, content) for the layout.
func (l Layout) Row(r Record) []string {
	if l == LayoutBarcode {
		return []string{r.Timestamp.Format(TimestampLayout), r.Content}
	}
	return []string{r.Source, r.Content}
}

// ParseLayout validates a layout name. Empty selects LayoutText.
func ParseLayout(s string) (Layout, error) {
	switch l := Layout(strings.ToLower(strings.TrimSpace(s))); l {
	case "":
		return LayoutText, nil
	case LayoutText, LayoutBarcode:
		return l, nil
	default:
		return "", fmt.Errorf("unknown sink layout %q", s)
	}
}

// Record is one decoded content appended to the sink.
type Record struct {
	Source    string
	Content   string
	Method    decode.Method
	Symbology string
	Timestamp time.Time
}

// Sink is an append-only result log.
type Sink interface {
	// Append persists one record. I/O failures wrap ErrWrite.
	Append(r Record) error
	// Rows reports the number of content rows written, excluding the header.
	Rows() int
	// Path is the file backing the sink, empty for in-memory sinks.
	Path() string
	Close() error
}

// Options configures Open.
type Options struct {
	Format string
	Dir    string
	// File overrides the generated file name. Relative names are joined with Dir.
	File   string
	Layout Layout
	Clock  func() time.Time
}

// DefaultFileName returns label_texts_YYYYMMDD_HHMMSS with the format extension.
func DefaultFileName(now time.Time, format string) string {
	ext := FormatXLSX
	if strings.EqualFold(format, FormatCSV) {
		ext = FormatCSV
	}
	return "label_texts_" + now.Format(fileTimeLayout) + "." + ext
}

// Open creates the sink file, writes the header and persists it.
func Open(opts Options) (Sink, error) {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Layout == "" {
		opts.Layout = LayoutText
	}
	format := strings.ToLower(opts.Format)
	if format == "" {
		format = FormatXLSX
	}

	path := opts.File
	if path == "" {
		path = DefaultFileName(opts.Clock(), format)
	}
	if !filepath.IsAbs(path) && opts.Dir != "" {
		path = filepath.Join(opts.Dir, path)
	}

	switch format {
	case FormatXLSX:
		return NewXLSX(path, opts.Layout)
	case FormatCSV:
		return NewCSV(path, opts.Layout)
	default:
		return nil, fmt.Errorf("unknown sink format %q (want %s or %s)", opts.Format, FormatXLSX, FormatCSV)
	}
}

func writeErr(op, path string, err error) error {
	return fmt.Errorf("%w: %s %s: %w", ErrWrite, op, path, err)
}
