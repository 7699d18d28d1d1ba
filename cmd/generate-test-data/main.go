package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/labelscan/internal/barcode"
	"github.com/MeKo-Tech/labelscan/internal/testutil"
	"github.com/disintegration/imaging"
)

// Sample is one generated frame and the content a scan should produce for it.
type Sample struct {
	File      string `json:"file"`
	Kind      string `json:"kind"`
	Payload   string `json:"payload"`
	Symbology string `json:"symbology,omitempty"`
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	var (
		outDir  = flag.String("out", "testdata/labels", "output directory, relative to the project root")
		blanks  = flag.Int("blanks", 2, "number of frames without any label")
		verbose = flag.Bool("v", false, "Verbose output")
		help    = flag.Bool("h", false, "Show help")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Generate synthetic label photos for labelscan scan and bench.\n\n")
		fmt.Fprintf(os.Stderr, "OPTIONS:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEXAMPLES:\n")
		fmt.Fprintf(os.Stderr, "  %s                      # Write testdata/labels\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -out /tmp/photos -v  # Write elsewhere\n", os.Args[0])
	}
	flag.Parse()

	if *help {
		flag.Usage()
		return
	}

	root, err := testutil.GetProjectRoot()
	if err != nil {
		slog.Error("Failed to find project root", "error", err)
		os.Exit(1)
	}
	dir := *outDir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(root, dir)
	}
	if *verbose {
		slog.Info("Options", "out", dir, "blanks", *blanks)
	}

	samples, err := generate(dir, *blanks)
	if err != nil {
		slog.Error("Failed to generate label photos", "error", err)
		os.Exit(1)
	}
	if err := writeManifest(filepath.Join(dir, "manifest.json"), samples); err != nil {
		slog.Error("Failed to write manifest", "error", err)
		os.Exit(1)
	}
	slog.Info("Generated label photos", "dir", dir, "count", len(samples))
}

// generate writes one frame per sample into dir. File names sort in the
// order the samples are listed so a directory scan replays them in order.
func generate(dir string, blanks int) ([]Sample, error) {
	if err := testutil.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", dir, err)
	}
	size := testutil.MediumSize

	var samples []Sample
	save := func(img image.Image, s Sample) error {
		s.File = fmt.Sprintf("%03d_%s.png", len(samples)+1, s.Kind)
		if err := imaging.Save(img, filepath.Join(dir, s.File)); err != nil {
			return fmt.Errorf("failed to save %s: %w", s.File, err)
		}
		samples = append(samples, s)
		return nil
	}

	for _, payload := range []string{"PARCEL-0001", "https://example.com/track/42"} {
		symbol, err := testutil.EncodeQR(payload, 240)
		if err != nil {
			return nil, err
		}
		frame := centered(symbol, size)
		if err := save(frame, Sample{Kind: "qr", Payload: payload, Symbology: barcode.FormatQR.String()}); err != nil {
			return nil, err
		}
	}

	symbol, err := testutil.EncodeCode128("LOT-2024-0815", 420, 120)
	if err != nil {
		return nil, err
	}
	if err := save(centered(symbol, size), Sample{Kind: "code128", Payload: "LOT-2024-0815", Symbology: barcode.FormatCode128.String()}); err != nil {
		return nil, err
	}

	for _, text := range []string{"FRAGILE", "BATCH 7731"} {
		if err := save(testutil.GenerateTextImage(text, size), Sample{Kind: "text", Payload: text}); err != nil {
			return nil, err
		}
	}

	for range blanks {
		if err := save(testutil.GenerateTextImage("", size), Sample{Kind: "blank"}); err != nil {
			return nil, err
		}
	}
	return samples, nil
}

func centered(symbol image.Image, size testutil.ImageSize) image.Image {
	b := symbol.Bounds()
	return testutil.FrameWith(symbol, size, (size.Width-b.Dx())/2, (size.Height-b.Dy())/2)
}

func writeManifest(path string, samples []Sample) error {
	data, err := json.MarshalIndent(samples, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
