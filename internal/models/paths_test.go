package models

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetModelsDir_Priority(t *testing.T) {
	t.Setenv(EnvModelsDir, "/from/env")
	assert.Equal(t, "/explicit", GetModelsDir("/explicit"))
	assert.Equal(t, "/from/env", GetModelsDir(""))

	t.Setenv(EnvModelsDir, "")
	dir := GetModelsDir("")
	assert.Equal(t, DefaultModelsDir, filepath.Base(dir))
}

func TestResolveModelPath_OrganizedThenFlat(t *testing.T) {
	base := t.TempDir()

	flat := ResolveModelPath(base, TypeDetection, LabelDetector)
	assert.Equal(t, filepath.Join(base, LabelDetector), flat)

	require.NoError(t, os.MkdirAll(filepath.Join(base, TypeDetection), 0o750))
	organized := filepath.Join(base, TypeDetection, LabelDetector)
	require.NoError(t, os.WriteFile(organized, []byte("onnx"), 0o600))
	assert.Equal(t, organized, ResolveModelPath(base, TypeDetection, LabelDetector))
}

func TestGetDetectorModelPath(t *testing.T) {
	base := t.TempDir()
	assert.Equal(t, filepath.Join(base, LabelDetector), GetDetectorModelPath(base, ""))
	assert.Equal(t, filepath.Join(base, GeneralDetector), GetDetectorModelPath(base, GeneralDetector))
	assert.Equal(t, "weights/custom.onnx", GetDetectorModelPath(base, "weights/custom.onnx"))
	assert.Equal(t, "/abs/model.onnx", GetDetectorModelPath(base, "/abs/model.onnx"))
}

func TestGetTessdataDir(t *testing.T) {
	base := t.TempDir()
	assert.Empty(t, GetTessdataDir(base))

	require.NoError(t, os.Mkdir(filepath.Join(base, TypeTessdata), 0o750))
	assert.Equal(t, filepath.Join(base, TypeTessdata), GetTessdataDir(base))
}

func TestValidateModelExists(t *testing.T) {
	base := t.TempDir()
	path := filepath.Join(base, LabelDetector)
	assert.Error(t, ValidateModelExists(path))

	require.NoError(t, os.WriteFile(path, []byte("onnx"), 0o600))
	assert.NoError(t, ValidateModelExists(path))
}

func TestListAvailableModels(t *testing.T) {
	list := ListAvailableModels()
	require.NotEmpty(t, list)
	for _, m := range list {
		assert.NotEmpty(t, m.Filename)
		assert.Equal(t, TypeDetection, m.Type)
	}
}
