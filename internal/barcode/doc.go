// Package barcode decodes 1D and 2D symbols in images.
//
// The default Backend is built on gozxing and is pure Go, so it is always
// linked. Each enabled symbology has its own reader; all readers run over the
// same binarized image and their results are merged, so a frame holding a QR
// code next to a Code 128 label reports both.
package barcode
