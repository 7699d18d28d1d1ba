package support

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/labelscan/internal/testutil"
	"github.com/cucumber/godog"
	"github.com/disintegration/imaging"
)

// RegisterImageSteps registers steps that lay out image directories.
func (testCtx *TestContext) RegisterImageSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a directory "([^"]*)" with a QR label "([^"]*)"$`, testCtx.aDirectoryWithQRLabel)
	sc.Step(`^a directory "([^"]*)" with (\d+) blank images?$`, testCtx.aDirectoryWithBlankImages)
	sc.Step(`^an empty directory "([^"]*)"$`, testCtx.anEmptyDirectory)
}

// qrFrame renders payload as a QR symbol centered on a white 640x480 frame.
func qrFrame(payload string) (image.Image, error) {
	symbol, err := testutil.EncodeQR(payload, 240)
	if err != nil {
		return nil, fmt.Errorf("encode QR payload: %w", err)
	}
	b := symbol.Bounds()
	size := testutil.MediumSize
	return testutil.FrameWith(symbol, size, (size.Width-b.Dx())/2, (size.Height-b.Dy())/2), nil
}

func (testCtx *TestContext) aDirectoryWithQRLabel(dir, payload string) error {
	frame, err := qrFrame(payload)
	if err != nil {
		return err
	}
	path := filepath.Join(testCtx.Path(dir), "label_001.png")
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	return imaging.Save(frame, path)
}

func (testCtx *TestContext) aDirectoryWithBlankImages(dir string, count int) error {
	root := testCtx.Path(dir)
	if err := os.MkdirAll(root, 0o750); err != nil {
		return err
	}
	blank := imaging.New(320, 240, color.White)
	for i := range count {
		if err := imaging.Save(blank, filepath.Join(root, fmt.Sprintf("blank_%03d.png", i+1))); err != nil {
			return err
		}
	}
	return nil
}

func (testCtx *TestContext) anEmptyDirectory(dir string) error {
	return os.MkdirAll(testCtx.Path(dir), 0o750)
}
