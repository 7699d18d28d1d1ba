package onnx

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestDefaultGPUConfig(t *testing.T) {
	config := DefaultGPUConfig()
	if config.UseGPU {
		t.Error("Expected UseGPU to be false by default")
	}
	if config.ArenaExtendStrategy != "kNextPowerOfTwo" {
		t.Errorf("Expected ArenaExtendStrategy to be 'kNextPowerOfTwo', got %s", config.ArenaExtendStrategy)
	}
}

func TestValidateGPUConfig(t *testing.T) {
	tests := []struct {
		name    string
		config  GPUConfig
		wantErr bool
	}{
		{name: "valid CPU config", config: DefaultGPUConfig()},
		{name: "valid GPU config", config: GPUConfig{UseGPU: true, ArenaExtendStrategy: "kSameAsRequested"}},
		{name: "negative device ID", config: GPUConfig{UseGPU: true, DeviceID: -1}, wantErr: true},
		{name: "bad strategy", config: GPUConfig{UseGPU: true, ArenaExtendStrategy: "grow"}, wantErr: true},
		{name: "CPU ignores bad values", config: GPUConfig{DeviceID: -3, ArenaExtendStrategy: "grow"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateGPUConfig(tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateGPUConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGetSystemLibraryPaths(t *testing.T) {
	cpu := getSystemLibraryPaths(false)
	gpu := getSystemLibraryPaths(true)
	if len(gpu) != len(cpu)+1 {
		t.Fatalf("expected GPU list to add one path, got %d vs %d", len(gpu), len(cpu))
	}
	if gpu[0] != "/opt/onnxruntime/gpu/lib/libonnxruntime.so" {
		t.Errorf("GPU path should come first, got %s", gpu[0])
	}
}

func TestGetLibraryName(t *testing.T) {
	name, err := getLibraryName()
	switch runtime.GOOS {
	case osLinux, osDarwin, osWindows:
		if err != nil || name == "" {
			t.Fatalf("getLibraryName() = %q, %v", name, err)
		}
	default:
		if err == nil {
			t.Fatal("expected error on unsupported OS")
		}
	}
}

func TestTrySetLibraryPath(t *testing.T) {
	tempDir := t.TempDir()
	libPath := filepath.Join(tempDir, "libonnxruntime.so")
	if err := os.WriteFile(libPath, []byte("fake library"), 0o600); err != nil {
		t.Fatalf("Failed to create fake library file: %v", err)
	}

	if !trySetLibraryPath(libPath) {
		t.Error("trySetLibraryPath() should return true for existing file")
	}
	if trySetLibraryPath(filepath.Join(tempDir, "nonexistent.so")) {
		t.Error("trySetLibraryPath() should return false for non-existing file")
	}
	if trySetLibraryPath("") {
		t.Error("trySetLibraryPath() should return false for empty path")
	}
}

func TestSetONNXLibraryPathExplicit(t *testing.T) {
	tempDir := t.TempDir()
	libPath := filepath.Join(tempDir, "custom.so")
	if err := os.WriteFile(libPath, []byte("fake"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := SetONNXLibraryPath(libPath, false); err != nil {
		t.Errorf("explicit path should be accepted: %v", err)
	}
	if err := SetONNXLibraryPath(filepath.Join(tempDir, "missing.so"), false); err == nil {
		t.Error("missing explicit path should fail without falling back")
	}
}

func TestSetONNXLibraryPathEnv(t *testing.T) {
	tempDir := t.TempDir()
	libPath := filepath.Join(tempDir, "env.so")
	if err := os.WriteFile(libPath, []byte("fake"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv(LibraryPathEnv, libPath)

	if err := SetONNXLibraryPath("", false); err != nil {
		t.Errorf("env path should be accepted: %v", err)
	}
}
