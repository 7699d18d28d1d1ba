package decode

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"strconv"
	"strings"
)

// ErrNoEngine is returned when no OCR engine is compiled in.
var ErrNoEngine = errors.New("decode: no OCR engine linked; build with -tags ocr_tesseract")

// DefaultEngineConfig mirrors the usual tesseract CLI flags for label text:
// default LSTM engine, one uniform block of text.
const DefaultEngineConfig = "--oem 3 --psm 6"

// Engine is an OCR backend. Engines may return errors or panic; OCR hides both.
type Engine interface {
	Text(ctx context.Context, img image.Image) (string, error)
	Close() error
}

// EngineOptions configures an OCR engine.
type EngineOptions struct {
	// Language is a tesseract language spec such as "eng" or "eng+deu".
	Language string
	// Config is passed through in tesseract CLI syntax, e.g. "--oem 3 --psm 6 -c key=value".
	Config string
	// Variables are extra engine variables, applied after Config.
	Variables map[string]string
	// TessdataPrefix overrides the tessdata directory.
	TessdataPrefix string
}

// DefaultEngineOptions returns English with DefaultEngineConfig.
func DefaultEngineOptions() EngineOptions {
	return EngineOptions{Language: "eng", Config: DefaultEngineConfig}
}

// EngineConfig is the parsed form of a tesseract CLI config string.
type EngineConfig struct {
	OEM       int // -1 when unset
	PSM       int // -1 when unset
	Variables map[string]string
}

// ParseEngineConfig reads "--oem N", "--psm N" and "-c key=value" from config.
// Unknown tokens are ignored.
func ParseEngineConfig(config string) EngineConfig {
	cfg := EngineConfig{OEM: -1, PSM: -1, Variables: map[string]string{}}
	fields := strings.Fields(config)
	for i := 0; i < len(fields); i++ {
		tok := fields[i]
		next := func() (string, bool) {
			if i+1 >= len(fields) {
				return "", false
			}
			i++
			return fields[i], true
		}
		switch {
		case tok == "--oem" || tok == "--psm":
			v, ok := next()
			if !ok {
				continue
			}
			n, err := strconv.Atoi(v)
			if err != nil {
				continue
			}
			if tok == "--oem" {
				cfg.OEM = n
			} else {
				cfg.PSM = n
			}
		case tok == "-c":
			v, ok := next()
			if !ok {
				continue
			}
			if key, val, found := strings.Cut(v, "="); found && key != "" {
				cfg.Variables[key] = val
			}
		}
	}
	return cfg
}

// OCR is the text variant of the content decoder.
type OCR struct {
	engine  Engine
	clean   CleanOptions
	enhance bool
}

// NewOCR wraps engine. When enhance is set, regions go through Enhance first.
func NewOCR(engine Engine, clean CleanOptions, enhance bool) *OCR {
	return &OCR{engine: engine, clean: clean, enhance: enhance}
}

// DecodeText returns the cleaned text in img. Empty regions, engine errors and
// engine panics all yield "".
func (o *OCR) DecodeText(ctx context.Context, img image.Image) (text string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Debug("OCR engine panicked", "panic", r)
			text = ""
		}
	}()

	if o == nil || o.engine == nil || !usable(img) {
		return ""
	}
	if o.enhance {
		img = Enhance(img)
	}

	raw, err := o.engine.Text(ctx, img)
	if err != nil {
		slog.Debug("OCR failed", "error", err)
		return ""
	}
	return CleanText(raw, o.clean)
}

// Close releases the engine.
func (o *OCR) Close() error {
	if o == nil || o.engine == nil {
		return nil
	}
	return o.engine.Close()
}
