//go:build !ocr_tesseract

package decode

// NewTesseract reports that no OCR engine is available in this build.
func NewTesseract(EngineOptions) (Engine, error) {
	return nil, ErrNoEngine
}
