package detector

import (
	"errors"
	"fmt"
	"os"

	"github.com/MeKo-Tech/labelscan/internal/onnx"
)

// NMS methods.
const (
	NMSMethodHard     = "hard"
	NMSMethodLinear   = "linear"
	NMSMethodGaussian = "gaussian"
)

// DefaultModelPath is the exported YOLO label model.
const DefaultModelPath = "models/best.onnx"

// Config holds configuration for the YOLO label detector.
type Config struct {
	ModelPath           string         // Path to the ONNX export of the YOLO model
	InputSize           int            // Square model input side (default: 640)
	ConfidenceThreshold float64        // Minimum class score (default: 0.25)
	NMSThreshold        float64        // IoU threshold for NMS (default: 0.45)
	NMSMethod           string         // "hard" (default), "linear" or "gaussian" for Soft-NMS
	SoftNMSSigma        float64        // Sigma for Gaussian Soft-NMS
	ClassNames          []string       // Index to label name (default: ["Label"])
	MaxDetections       int            // Cap on detections per frame, 0 = unlimited
	NumThreads          int            // Number of CPU threads (default: 0 for auto)
	LibraryPath         string         // Explicit ONNX Runtime shared library, empty for discovery
	GPU                 onnx.GPUConfig // GPU acceleration configuration
}

// DefaultConfig returns a default detector configuration.
func DefaultConfig() Config {
	return Config{
		ModelPath:           DefaultModelPath,
		InputSize:           640,
		ConfidenceThreshold: 0.25,
		NMSThreshold:        0.45,
		NMSMethod:           NMSMethodHard,
		SoftNMSSigma:        0.5,
		ClassNames:          []string{"Label"},
		MaxDetections:       100,
		GPU:                 onnx.DefaultGPUConfig(),
	}
}

// LabelFor returns the configured name of class, or "class_N" when unnamed.
func (c Config) LabelFor(class int) string {
	if class >= 0 && class < len(c.ClassNames) && c.ClassNames[class] != "" {
		return c.ClassNames[class]
	}
	return fmt.Sprintf("class_%d", class)
}

// Validate checks the configuration without touching the model file.
func (c Config) Validate() error {
	if c.ModelPath == "" {
		return errors.New("model path cannot be empty")
	}
	if c.InputSize <= 0 || c.InputSize%32 != 0 {
		return fmt.Errorf("input size must be a positive multiple of 32, got %d", c.InputSize)
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence threshold must be in [0,1], got %f", c.ConfidenceThreshold)
	}
	if c.NMSThreshold < 0 || c.NMSThreshold > 1 {
		return fmt.Errorf("NMS threshold must be in [0,1], got %f", c.NMSThreshold)
	}
	switch c.NMSMethod {
	case "", NMSMethodHard, NMSMethodLinear, NMSMethodGaussian:
	default:
		return fmt.Errorf("unknown NMS method %q", c.NMSMethod)
	}
	return onnx.ValidateGPUConfig(c.GPU)
}

// validateModelFile checks if the model file exists.
func validateModelFile(modelPath string) error {
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		return fmt.Errorf("model file not found: %s", modelPath)
	}
	return nil
}
