//nolint:lll
package config

// Config represents the complete configuration for labelscan.
// It covers every command (run, serve, scan) and supports loading from
// configuration files, environment variables and command-line flags.
type Config struct {
	// Global settings
	ModelsDir string `mapstructure:"models_dir" yaml:"models_dir" json:"models_dir"`
	LogLevel  string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose   bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	Capture  CaptureConfig  `mapstructure:"capture" yaml:"capture" json:"capture"`
	Detector DetectorConfig `mapstructure:"detector" yaml:"detector" json:"detector"`
	Extract  ExtractConfig  `mapstructure:"extract" yaml:"extract" json:"extract"`
	Decode   DecodeConfig   `mapstructure:"decode" yaml:"decode" json:"decode"`
	Sink     SinkConfig     `mapstructure:"sink" yaml:"sink" json:"sink"`

	// Server configuration (for serve command)
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`

	ONNX ONNXConfig `mapstructure:"onnx" yaml:"onnx" json:"onnx"`
	GPU  GPUConfig  `mapstructure:"gpu" yaml:"gpu" json:"gpu"`
}

// CaptureConfig selects the frame source and the display geometry.
type CaptureConfig struct {
	// Source is a camera index, a video file or URL, or a directory of images.
	Source        string `mapstructure:"source" yaml:"source" json:"source"`
	DisplayWidth  int    `mapstructure:"display_width" yaml:"display_width" json:"display_width"`
	DisplayHeight int    `mapstructure:"display_height" yaml:"display_height" json:"display_height"`
	// TickInterval is a duration string such as "10ms".
	TickInterval string `mapstructure:"tick_interval" yaml:"tick_interval" json:"tick_interval"`
}

// DetectorConfig contains label detection settings.
type DetectorConfig struct {
	// Model is a file name inside models_dir or a path.
	Model               string   `mapstructure:"model" yaml:"model" json:"model"`
	InputSize           int      `mapstructure:"input_size" yaml:"input_size" json:"input_size"`
	ConfidenceThreshold float64  `mapstructure:"confidence_threshold" yaml:"confidence_threshold" json:"confidence_threshold"`
	NMSThreshold        float64  `mapstructure:"nms_threshold" yaml:"nms_threshold" json:"nms_threshold"`
	NMSMethod           string   `mapstructure:"nms_method" yaml:"nms_method" json:"nms_method"`
	SoftNMSSigma        float64  `mapstructure:"soft_nms_sigma" yaml:"soft_nms_sigma" json:"soft_nms_sigma"`
	ClassNames          []string `mapstructure:"class_names" yaml:"class_names" json:"class_names"`
	MaxDetections       int      `mapstructure:"max_detections" yaml:"max_detections" json:"max_detections"`
	NumThreads          int      `mapstructure:"num_threads" yaml:"num_threads" json:"num_threads"`
}

// ExtractConfig controls region crops.
type ExtractConfig struct {
	OutputDir string `mapstructure:"output_dir" yaml:"output_dir" json:"output_dir"`
	Naming    string `mapstructure:"naming" yaml:"naming" json:"naming"`
	SaveCrops bool   `mapstructure:"save_crops" yaml:"save_crops" json:"save_crops"`
}

// DecodeConfig contains OCR and barcode settings.
type DecodeConfig struct {
	Mode            string            `mapstructure:"mode" yaml:"mode" json:"mode"`
	Language        string            `mapstructure:"language" yaml:"language" json:"language"`
	TesseractConfig string            `mapstructure:"tesseract_config" yaml:"tesseract_config" json:"tesseract_config"`
	Variables       map[string]string `mapstructure:"variables" yaml:"variables" json:"variables"`
	TessdataPrefix  string            `mapstructure:"tessdata_prefix" yaml:"tessdata_prefix" json:"tessdata_prefix"`
	BarcodeFormats  []string          `mapstructure:"barcode_formats" yaml:"barcode_formats" json:"barcode_formats"`
	TryHarder       bool              `mapstructure:"try_harder" yaml:"try_harder" json:"try_harder"`
	Enhance         bool              `mapstructure:"enhance" yaml:"enhance" json:"enhance"`
}

// SinkConfig selects the result spreadsheet.
type SinkConfig struct {
	Format string `mapstructure:"format" yaml:"format" json:"format"`
	Dir    string `mapstructure:"dir" yaml:"dir" json:"dir"`
	File   string `mapstructure:"file" yaml:"file" json:"file"`
	Layout string `mapstructure:"layout" yaml:"layout" json:"layout"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host              string `mapstructure:"host" yaml:"host" json:"host"`
	Port              int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin        string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	JPEGQuality       int    `mapstructure:"jpeg_quality" yaml:"jpeg_quality" json:"jpeg_quality"`
	ShutdownTimeout   int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	RequestsPerMinute int    `mapstructure:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute"`
	RequestsPerHour   int    `mapstructure:"requests_per_hour" yaml:"requests_per_hour" json:"requests_per_hour"`
}

// ONNXConfig locates the ONNX Runtime shared library.
type ONNXConfig struct {
	LibraryPath string `mapstructure:"library_path" yaml:"library_path" json:"library_path"`
}

// GPUConfig contains GPU acceleration settings.
type GPUConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Device      int    `mapstructure:"device" yaml:"device" json:"device"`
	MemoryLimit string `mapstructure:"memory_limit" yaml:"memory_limit" json:"memory_limit"`
}
