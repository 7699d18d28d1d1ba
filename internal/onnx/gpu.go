package onnx

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/yalue/onnxruntime_go"
)

const (
	osLinux    = "linux"
	osDarwin   = "darwin"
	osWindows  = "windows"
	libLinux   = "libonnxruntime.so"
	libDarwin  = "libonnxruntime.dylib"
	libWindows = "onnxruntime.dll"
)

// LibraryPathEnv overrides library discovery when set.
const LibraryPathEnv = "ONNXRUNTIME_LIB_PATH"

// GPUConfig holds configuration for GPU acceleration using CUDA.
type GPUConfig struct {
	UseGPU              bool   // Enable GPU acceleration
	DeviceID            int    // CUDA device ID (default: 0)
	GPUMemLimit         uint64 // GPU memory limit in bytes (0 = unlimited)
	ArenaExtendStrategy string // "kNextPowerOfTwo" or "kSameAsRequested"
}

// DefaultGPUConfig returns the CPU-only configuration.
func DefaultGPUConfig() GPUConfig {
	return GPUConfig{ArenaExtendStrategy: "kNextPowerOfTwo"}
}

// ValidateGPUConfig checks if the GPU configuration is valid.
func ValidateGPUConfig(config GPUConfig) error {
	if !config.UseGPU {
		return nil
	}
	if config.DeviceID < 0 {
		return fmt.Errorf("device ID must be non-negative, got %d", config.DeviceID)
	}
	switch config.ArenaExtendStrategy {
	case "", "kNextPowerOfTwo", "kSameAsRequested":
		return nil
	default:
		return fmt.Errorf("invalid arena extend strategy: %s", config.ArenaExtendStrategy)
	}
}

// ConfigureSessionForGPU appends the CUDA provider when GPU use is requested.
func ConfigureSessionForGPU(sessionOptions *onnxruntime_go.SessionOptions, gpuConfig GPUConfig) error {
	if !gpuConfig.UseGPU {
		return nil
	}

	cudaOpts, err := onnxruntime_go.NewCUDAProviderOptions()
	if err != nil {
		return fmt.Errorf("failed to create CUDA provider options (GPU may not be available): %w", err)
	}
	defer func() {
		if destroyErr := cudaOpts.Destroy(); destroyErr != nil {
			slog.Warn("Failed to destroy CUDA provider options", "error", destroyErr)
		}
	}()

	settings := map[string]string{"device_id": strconv.Itoa(gpuConfig.DeviceID)}
	if gpuConfig.GPUMemLimit > 0 {
		settings["gpu_mem_limit"] = strconv.FormatUint(gpuConfig.GPUMemLimit, 10)
	}
	if gpuConfig.ArenaExtendStrategy != "" {
		settings["arena_extend_strategy"] = gpuConfig.ArenaExtendStrategy
	}

	if err := cudaOpts.Update(settings); err != nil {
		return fmt.Errorf("failed to update CUDA provider options: %w", err)
	}
	if err := sessionOptions.AppendExecutionProviderCUDA(cudaOpts); err != nil {
		return fmt.Errorf("failed to append CUDA execution provider: %w", err)
	}
	return nil
}

// getSystemLibraryPaths returns system library paths to try, GPU builds first when requested.
func getSystemLibraryPaths(useGPU bool) []string {
	paths := []string{
		"/usr/local/lib/libonnxruntime.so",
		"/usr/lib/libonnxruntime.so",
		"/opt/onnxruntime/cpu/lib/libonnxruntime.so",
	}
	if useGPU {
		return append([]string{"/opt/onnxruntime/gpu/lib/libonnxruntime.so"}, paths...)
	}
	return paths
}

// findProjectRoot walks up from the working directory looking for go.mod.
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("could not find project root")
		}
		dir = parent
	}
}

// getLibraryName returns the appropriate library filename for the current OS.
func getLibraryName() (string, error) {
	switch runtime.GOOS {
	case osLinux:
		return libLinux, nil
	case osDarwin:
		return libDarwin, nil
	case osWindows:
		return libWindows, nil
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}
}

// trySetLibraryPath sets the ONNX library path if the file exists.
func trySetLibraryPath(path string) bool {
	if path == "" {
		return false
	}
	if _, err := os.Stat(path); err == nil {
		onnxruntime_go.SetSharedLibraryPath(path)
		return true
	}
	return false
}

// SetONNXLibraryPath locates the ONNX Runtime shared library. An explicit path
// wins, then ONNXRUNTIME_LIB_PATH, then system locations, then ./onnxruntime
// below the project root.
func SetONNXLibraryPath(explicit string, useGPU bool) error {
	if explicit != "" {
		if trySetLibraryPath(explicit) {
			return nil
		}
		return fmt.Errorf("ONNX Runtime library not found at %s", explicit)
	}
	if trySetLibraryPath(os.Getenv(LibraryPathEnv)) {
		return nil
	}
	for _, path := range getSystemLibraryPaths(useGPU) {
		if trySetLibraryPath(path) {
			return nil
		}
	}

	projectRoot, err := findProjectRoot()
	if err != nil {
		return err
	}
	libName, err := getLibraryName()
	if err != nil {
		return err
	}
	if useGPU && trySetLibraryPath(filepath.Join(projectRoot, "onnxruntime", "gpu", "lib", libName)) {
		return nil
	}
	libPath := filepath.Join(projectRoot, "onnxruntime", "lib", libName)
	if !trySetLibraryPath(libPath) {
		return fmt.Errorf("ONNX Runtime library not found at %s", libPath)
	}
	return nil
}

// InitializeEnvironment points onnxruntime_go at the shared library and
// initializes the process-wide environment once.
func InitializeEnvironment(libraryPath string, useGPU bool) error {
	if onnxruntime_go.IsInitialized() {
		return nil
	}
	if err := SetONNXLibraryPath(libraryPath, useGPU); err != nil {
		return fmt.Errorf("failed to set ONNX Runtime library path: %w", err)
	}
	if err := onnxruntime_go.InitializeEnvironment(); err != nil {
		return fmt.Errorf("failed to initialize ONNX Runtime: %w", err)
	}
	return nil
}

// RuntimeVersion initializes the environment and reports the version of the
// loaded ONNX Runtime library.
func RuntimeVersion(libraryPath string, useGPU bool) (string, error) {
	if err := InitializeEnvironment(libraryPath, useGPU); err != nil {
		return "", err
	}
	return onnxruntime_go.GetVersion(), nil
}
