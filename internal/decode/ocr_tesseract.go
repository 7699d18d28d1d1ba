//go:build ocr_tesseract

package decode

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"sync"

	"github.com/otiai10/gosseract/v2"
)

type tesseractEngine struct {
	mu     sync.Mutex
	client *gosseract.Client
}

// NewTesseract creates a tesseract engine through gosseract. The client is
// reused across calls and guarded by a mutex since it is not goroutine safe.
func NewTesseract(opts EngineOptions) (Engine, error) {
	client := gosseract.NewClient()

	if opts.TessdataPrefix != "" {
		if err := client.SetTessdataPrefix(opts.TessdataPrefix); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("tesseract: set tessdata prefix: %w", err)
		}
	}
	if opts.Language != "" {
		if err := client.SetLanguage(opts.Language); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("tesseract: set language %q: %w", opts.Language, err)
		}
	}

	cfg := ParseEngineConfig(opts.Config)
	if cfg.PSM >= 0 {
		if err := client.SetPageSegMode(gosseract.PageSegMode(cfg.PSM)); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("tesseract: set page segmentation mode %d: %w", cfg.PSM, err)
		}
	}
	if cfg.OEM >= 0 {
		// gosseract always initializes with the default engine mode (3).
		slog.Debug("Tesseract engine mode is fixed by gosseract", "requested_oem", cfg.OEM)
	}

	vars := cfg.Variables
	for k, v := range opts.Variables {
		vars[k] = v
	}
	for k, v := range vars {
		if err := client.SetVariable(gosseract.SettableVariable(k), v); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("tesseract: set variable %s: %w", k, err)
		}
	}

	slog.Debug("Tesseract engine ready", "version", gosseract.Version(), "language", opts.Language, "config", opts.Config)
	return &tesseractEngine{client: client}, nil
}

func (e *tesseractEngine) Text(ctx context.Context, img image.Image) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("tesseract: encode region: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.client.SetImageFromBytes(buf.Bytes()); err != nil {
		return "", fmt.Errorf("tesseract: set image: %w", err)
	}
	text, err := e.client.Text()
	if err != nil {
		return "", fmt.Errorf("tesseract: recognize: %w", err)
	}
	return text, nil
}

func (e *tesseractEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.client.Close()
}
