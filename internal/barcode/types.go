package barcode

import (
	"context"
	"image"
	"strings"
)

// Format represents a barcode symbology.
type Format int

const (
	FormatUnknown Format = iota
	FormatQR
	FormatDataMatrix
	FormatAztec
	FormatCode128
	FormatCode39
	FormatEAN8
	FormatEAN13
	FormatUPCA
	FormatUPCE
	FormatITF
	FormatCodabar
)

var formatNames = map[Format]string{
	FormatQR:         "QRCODE",
	FormatDataMatrix: "DATAMATRIX",
	FormatAztec:      "AZTEC",
	FormatCode128:    "CODE128",
	FormatCode39:     "CODE39",
	FormatEAN8:       "EAN8",
	FormatEAN13:      "EAN13",
	FormatUPCA:       "UPCA",
	FormatUPCE:       "UPCE",
	FormatITF:        "I25",
	FormatCodabar:    "CODABAR",
}

// String returns the symbology name written to result rows.
func (f Format) String() string {
	if s, ok := formatNames[f]; ok {
		return s
	}
	return "UNKNOWN"
}

// AllFormats lists every symbology the default backend can read.
func AllFormats() []Format {
	return []Format{
		FormatQR, FormatDataMatrix, FormatAztec,
		FormatCode128, FormatCode39, FormatEAN8, FormatEAN13,
		FormatUPCA, FormatUPCE, FormatITF, FormatCodabar,
	}
}

// ParseFormat maps a configuration name to a Format.
func ParseFormat(s string) (Format, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "qr", "qrcode", "qr-code":
		return FormatQR, true
	case "datamatrix", "data-matrix":
		return FormatDataMatrix, true
	case "aztec":
		return FormatAztec, true
	case "code128", "code-128":
		return FormatCode128, true
	case "code39", "code-39":
		return FormatCode39, true
	case "ean8", "ean-8":
		return FormatEAN8, true
	case "ean13", "ean-13":
		return FormatEAN13, true
	case "upca", "upc-a":
		return FormatUPCA, true
	case "upce", "upc-e":
		return FormatUPCE, true
	case "itf", "i25", "interleaved2of5":
		return FormatITF, true
	case "codabar":
		return FormatCodabar, true
	default:
		return FormatUnknown, false
	}
}

// ParseFormats maps names to formats, returning the names it did not recognize.
func ParseFormats(names []string) ([]Format, []string) {
	var formats []Format
	var unknown []string
	for _, n := range names {
		if f, ok := ParseFormat(n); ok {
			formats = append(formats, f)
		} else {
			unknown = append(unknown, n)
		}
	}
	return formats, unknown
}

// Options controls backend decoding behavior.
type Options struct {
	// Formats constrains the set of symbologies to search. Empty means all.
	Formats []Format

	// TryHarder enables more exhaustive search (slower but more robust).
	TryHarder bool

	// ROI optionally restricts decoding to a sub-rectangle of the image.
	// If zero-sized or out of bounds, backends ignore it.
	ROI image.Rectangle
}

// Point is an integer point in image coordinates.
type Point struct {
	X int
	Y int
}

// Result represents a decoded barcode.
type Result struct {
	Type   Format
	Value  string
	Points []Point         // Corner or key points if available
	BBox   image.Rectangle // Bounding box if derivable from points
}

// Backend is a pluggable barcode decoder implementation.
// An image without any symbol is not an error: Decode returns an empty slice.
type Backend interface {
	Decode(ctx context.Context, img image.Image, opts Options) ([]Result, error)
}

// NewBackend returns the default gozxing backend.
func NewBackend() Backend { return &gozxingBackend{} }
