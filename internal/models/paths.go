package models

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Model file names shipped in the models directory.
const (
	// LabelDetector is the YOLO export trained on the single "Label" class.
	LabelDetector = "best.onnx"
	// GeneralDetector is the stock YOLOv8 nano export, useful for smoke tests.
	GeneralDetector = "yolov8n.onnx"
)

// Directory layout below the models root.
const (
	TypeDetection = "detection"
	TypeTessdata  = "tessdata"
)

// DefaultModelsDir is used when nothing else is configured.
const DefaultModelsDir = "models"

// EnvModelsDir overrides the models directory.
const EnvModelsDir = "LABELSCAN_MODELS_DIR"

// findProjectRoot walks up from the working directory to the first go.mod.
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", errors.New("could not find project root (go.mod not found)")
}

// ModelInfo describes a known model file.
type ModelInfo struct {
	Name        string
	Type        string
	Description string
	Filename    string
}

// GetModelsDir returns the models directory.
// Priority: 1. explicit modelsDir, 2. environment variable, 3. project root + default.
func GetModelsDir(modelsDir string) string {
	if modelsDir != "" {
		return modelsDir
	}
	if envDir := os.Getenv(EnvModelsDir); envDir != "" {
		return envDir
	}
	if projectRoot, err := findProjectRoot(); err == nil {
		return filepath.Join(projectRoot, DefaultModelsDir)
	}
	return DefaultModelsDir
}

// ResolveModelPath resolves filename inside the models directory. The organized
// <type>/<file> layout wins over the flat layout when the file exists there.
func ResolveModelPath(modelsDir, modelType, filename string) string {
	baseDir := GetModelsDir(modelsDir)
	if modelType != "" {
		organized := filepath.Join(baseDir, modelType, filename)
		if _, err := os.Stat(organized); err == nil {
			return organized
		}
	}
	return filepath.Join(baseDir, filename)
}

// GetDetectorModelPath resolves the detector model. Paths containing a
// directory component are returned unchanged.
func GetDetectorModelPath(modelsDir, model string) string {
	if model == "" {
		model = LabelDetector
	}
	if filepath.IsAbs(model) || filepath.Base(model) != model {
		return model
	}
	return ResolveModelPath(modelsDir, TypeDetection, model)
}

// GetTessdataDir returns <models>/tessdata when it exists, or "" so the OCR
// engine falls back to its compiled-in search path.
func GetTessdataDir(modelsDir string) string {
	dir := filepath.Join(GetModelsDir(modelsDir), TypeTessdata)
	if st, err := os.Stat(dir); err == nil && st.IsDir() {
		return dir
	}
	return ""
}

// ValidateModelExists checks if a model file exists at the given path.
func ValidateModelExists(modelPath string) error {
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		return fmt.Errorf("model file not found: %s", modelPath)
	}
	return nil
}

// ListAvailableModels returns the model files this tool knows about.
func ListAvailableModels() []ModelInfo {
	return []ModelInfo{
		{
			Name:        "label-detector",
			Type:        TypeDetection,
			Description: "YOLO detector trained on shipping labels",
			Filename:    LabelDetector,
		},
		{
			Name:        "general-detector",
			Type:        TypeDetection,
			Description: "YOLOv8n COCO detector",
			Filename:    GeneralDetector,
		},
	}
}
