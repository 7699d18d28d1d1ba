package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/MeKo-Tech/labelscan/internal/barcode"
	"github.com/MeKo-Tech/labelscan/internal/decode"
	"github.com/MeKo-Tech/labelscan/internal/detector"
	"github.com/MeKo-Tech/labelscan/internal/extract"
	"github.com/MeKo-Tech/labelscan/internal/models"
	"github.com/MeKo-Tech/labelscan/internal/onnx"
	"github.com/MeKo-Tech/labelscan/internal/pipeline"
	"github.com/MeKo-Tech/labelscan/internal/render"
	"github.com/MeKo-Tech/labelscan/internal/server"
	"github.com/MeKo-Tech/labelscan/internal/sink"
)

// DefaultSource is camera 0, the webcam the scanner was built around.
const DefaultSource = "0"

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	det := detector.DefaultConfig()
	srv := server.DefaultConfig()
	eng := decode.DefaultEngineOptions()

	return Config{
		ModelsDir: "",
		LogLevel:  "info",
		Verbose:   false,
		Capture: CaptureConfig{
			Source:        DefaultSource,
			DisplayWidth:  render.DisplayWidth,
			DisplayHeight: render.DisplayHeight,
			TickInterval:  pipeline.DefaultTickInterval.String(),
		},
		Detector: DetectorConfig{
			Model:               models.LabelDetector,
			InputSize:           det.InputSize,
			ConfidenceThreshold: det.ConfidenceThreshold,
			NMSThreshold:        det.NMSThreshold,
			NMSMethod:           det.NMSMethod,
			SoftNMSSigma:        det.SoftNMSSigma,
			ClassNames:          det.ClassNames,
			MaxDetections:       det.MaxDetections,
			NumThreads:          det.NumThreads,
		},
		Extract: ExtractConfig{
			OutputDir: extract.DefaultOutputDir,
			Naming:    extract.NamingSequence,
			SaveCrops: true,
		},
		Decode: DecodeConfig{
			Mode:            string(decode.ModeRegionOCR),
			Language:        eng.Language,
			TesseractConfig: eng.Config,
			Variables:       map[string]string{},
			BarcodeFormats:  []string{},
			TryHarder:       true,
			Enhance:         false,
		},
		Sink: SinkConfig{
			Format: sink.FormatXLSX,
			Dir:    ".",
			Layout: string(sink.LayoutText),
		},
		Server: ServerConfig{
			Host:              srv.Host,
			Port:              srv.Port,
			CORSOrigin:        srv.CORSOrigin,
			JPEGQuality:       srv.JPEGQuality,
			ShutdownTimeout:   int(srv.ShutdownTimeout / time.Second),
			RequestsPerMinute: 60,
			RequestsPerHour:   1000,
		},
		GPU: GPUConfig{
			Enabled:     false,
			Device:      0,
			MemoryLimit: "auto",
		},
	}
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	if c.Capture.DisplayWidth < 0 || c.Capture.DisplayHeight < 0 {
		return fmt.Errorf("invalid display size: %dx%d (must not be negative)", c.Capture.DisplayWidth, c.Capture.DisplayHeight)
	}
	if _, err := c.tickInterval(); err != nil {
		return err
	}

	if err := validateThreshold(c.Detector.ConfidenceThreshold, "detector.confidence_threshold"); err != nil {
		return err
	}
	if err := validateThreshold(c.Detector.NMSThreshold, "detector.nms_threshold"); err != nil {
		return err
	}
	validNMSMethods := []string{detector.NMSMethodHard, detector.NMSMethodLinear, detector.NMSMethodGaussian}
	if !contains(validNMSMethods, c.Detector.NMSMethod) {
		return fmt.Errorf("invalid NMS method: %s (must be one of: %s)", c.Detector.NMSMethod, strings.Join(validNMSMethods, ", "))
	}
	if c.Detector.InputSize <= 0 || c.Detector.InputSize%32 != 0 {
		return fmt.Errorf("invalid detector input size: %d (must be a positive multiple of 32)", c.Detector.InputSize)
	}
	if c.Detector.MaxDetections < 0 {
		return fmt.Errorf("invalid max detections: %d (must not be negative)", c.Detector.MaxDetections)
	}

	validNaming := []string{extract.NamingSequence, extract.NamingTimestamp}
	if !contains(validNaming, c.Extract.Naming) {
		return fmt.Errorf("invalid naming strategy: %s (must be one of: %s)", c.Extract.Naming, strings.Join(validNaming, ", "))
	}
	if c.Extract.SaveCrops && c.Extract.OutputDir == "" {
		return fmt.Errorf("extract.output_dir is required when save_crops is enabled")
	}

	if _, err := decode.ParseMode(c.Decode.Mode); err != nil {
		return err
	}
	if _, unknown := barcode.ParseFormats(c.Decode.BarcodeFormats); len(unknown) > 0 {
		return fmt.Errorf("unknown barcode formats: %s", strings.Join(unknown, ", "))
	}

	validFormats := []string{sink.FormatXLSX, sink.FormatCSV}
	if !contains(validFormats, strings.ToLower(c.Sink.Format)) {
		return fmt.Errorf("invalid sink format: %s (must be one of: %s)", c.Sink.Format, strings.Join(validFormats, ", "))
	}
	if _, err := sink.ParseLayout(c.Sink.Layout); err != nil {
		return err
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.JPEGQuality < 1 || c.Server.JPEGQuality > 100 {
		return fmt.Errorf("invalid jpeg quality: %d (must be between 1 and 100)", c.Server.JPEGQuality)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("invalid shutdown timeout: %d (must be positive)", c.Server.ShutdownTimeout)
	}

	if c.GPU.MemoryLimit != "auto" && c.GPU.MemoryLimit != "" {
		if err := validateMemoryLimit(c.GPU.MemoryLimit); err != nil {
			return fmt.Errorf("invalid GPU memory limit: %v", err)
		}
	}

	return nil
}

// ToDetectorConfig converts the config to the detector configuration.
func (c *Config) ToDetectorConfig() detector.Config {
	cfg := detector.DefaultConfig()
	cfg.ModelPath = models.GetDetectorModelPath(c.ModelsDir, c.Detector.Model)
	cfg.InputSize = c.Detector.InputSize
	cfg.ConfidenceThreshold = c.Detector.ConfidenceThreshold
	cfg.NMSThreshold = c.Detector.NMSThreshold
	cfg.NMSMethod = c.Detector.NMSMethod
	cfg.SoftNMSSigma = c.Detector.SoftNMSSigma
	if len(c.Detector.ClassNames) > 0 {
		cfg.ClassNames = c.Detector.ClassNames
	}
	cfg.MaxDetections = c.Detector.MaxDetections
	cfg.NumThreads = c.Detector.NumThreads
	cfg.LibraryPath = c.ONNX.LibraryPath
	cfg.GPU = c.toGPUConfig()
	return cfg
}

func (c *Config) toGPUConfig() onnx.GPUConfig {
	gpu := onnx.DefaultGPUConfig()
	gpu.UseGPU = c.GPU.Enabled
	gpu.DeviceID = c.GPU.Device
	gpu.GPUMemLimit = parseMemoryLimit(c.GPU.MemoryLimit)
	return gpu
}

// ToExtractOptions converts the config to extractor options. Persistence is
// off unless save_crops is set.
func (c *Config) ToExtractOptions() extract.Options {
	opts := extract.Options{Naming: c.Extract.Naming}
	if c.Extract.SaveCrops {
		opts.OutputDir = c.Extract.OutputDir
	}
	return opts
}

// ToEngineOptions converts the config to OCR engine options. An unset
// tessdata prefix falls back to <models_dir>/tessdata when present.
func (c *Config) ToEngineOptions() decode.EngineOptions {
	prefix := c.Decode.TessdataPrefix
	if prefix == "" {
		prefix = models.GetTessdataDir(c.ModelsDir)
	}
	return decode.EngineOptions{
		Language:       c.Decode.Language,
		Config:         c.Decode.TesseractConfig,
		Variables:      c.Decode.Variables,
		TessdataPrefix: prefix,
	}
}

// ToBarcodeOptions converts the config to barcode backend options.
func (c *Config) ToBarcodeOptions() (barcode.Options, error) {
	formats, unknown := barcode.ParseFormats(c.Decode.BarcodeFormats)
	if len(unknown) > 0 {
		return barcode.Options{}, fmt.Errorf("unknown barcode formats: %s", strings.Join(unknown, ", "))
	}
	return barcode.Options{Formats: formats, TryHarder: c.Decode.TryHarder}, nil
}

// ToSinkOptions converts the config to sink options.
func (c *Config) ToSinkOptions() (sink.Options, error) {
	layout, err := sink.ParseLayout(c.Sink.Layout)
	if err != nil {
		return sink.Options{}, err
	}
	return sink.Options{
		Format: strings.ToLower(c.Sink.Format),
		Dir:    c.Sink.Dir,
		File:   c.Sink.File,
		Layout: layout,
	}, nil
}

// ToPipelineConfig converts the config to the controller configuration.
func (c *Config) ToPipelineConfig() (pipeline.Config, error) {
	mode, err := decode.ParseMode(c.Decode.Mode)
	if err != nil {
		return pipeline.Config{}, err
	}
	tick, err := c.tickInterval()
	if err != nil {
		return pipeline.Config{}, err
	}
	return pipeline.Config{
		Source:        c.Capture.Source,
		TickInterval:  tick,
		Mode:          mode,
		DisplayWidth:  c.Capture.DisplayWidth,
		DisplayHeight: c.Capture.DisplayHeight,
	}, nil
}

// ToServerConfig converts the config to the HTTP server configuration.
func (c *Config) ToServerConfig() server.Config {
	return server.Config{
		Host:              c.Server.Host,
		Port:              c.Server.Port,
		CORSOrigin:        c.Server.CORSOrigin,
		JPEGQuality:       c.Server.JPEGQuality,
		ShutdownTimeout:   time.Duration(c.Server.ShutdownTimeout) * time.Second,
		RequestsPerMinute: c.Server.RequestsPerMinute,
		RequestsPerHour:   c.Server.RequestsPerHour,
	}
}

func (c *Config) tickInterval() (time.Duration, error) {
	if c.Capture.TickInterval == "" {
		return pipeline.DefaultTickInterval, nil
	}
	d, err := time.ParseDuration(c.Capture.TickInterval)
	if err != nil {
		return 0, fmt.Errorf("invalid tick interval %q: %w", c.Capture.TickInterval, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid tick interval %q (must not be negative)", c.Capture.TickInterval)
	}
	return d, nil
}

// Helper functions

// contains checks if a slice contains a string.
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// validateThreshold validates that a value is between 0.0 and 1.0.
func validateThreshold(value float64, name string) error {
	if value < 0.0 || value > 1.0 {
		return fmt.Errorf("invalid %s: %.2f (must be between 0.0 and 1.0)", name, value)
	}
	return nil
}

var memoryUnits = []struct {
	suffix string
	scale  float64
}{
	// Longest suffixes first so "MB" is not read as "B".
	{"GB", 1 << 30},
	{"MB", 1 << 20},
	{"KB", 1 << 10},
	{"B", 1},
}

// validateMemoryLimit validates GPU memory limit format (e.g., "1GB", "512MB").
func validateMemoryLimit(limit string) error {
	if limit == "" || limit == "auto" {
		return nil
	}
	upper := strings.ToUpper(limit)
	for _, u := range memoryUnits {
		if strings.HasSuffix(upper, u.suffix) {
			if _, err := strconv.ParseFloat(strings.TrimSuffix(upper, u.suffix), 64); err != nil {
				return fmt.Errorf("invalid number in memory limit: %s", limit)
			}
			return nil
		}
	}
	return fmt.Errorf("memory limit must end with one of: B, KB, MB, GB")
}

// parseMemoryLimit converts a validated limit to bytes, 0 for "auto".
func parseMemoryLimit(limit string) uint64 {
	upper := strings.ToUpper(limit)
	for _, u := range memoryUnits {
		if strings.HasSuffix(upper, u.suffix) {
			n, err := strconv.ParseFloat(strings.TrimSuffix(upper, u.suffix), 64)
			if err != nil || n <= 0 {
				return 0
			}
			return uint64(n * u.scale)
		}
	}
	return 0
}
