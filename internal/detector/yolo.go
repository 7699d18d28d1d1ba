package detector

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/MeKo-Tech/labelscan/internal/mempool"
	"github.com/MeKo-Tech/labelscan/internal/onnx"
	"github.com/MeKo-Tech/labelscan/internal/utils"
	"github.com/yalue/onnxruntime_go"
)

// YOLO runs an exported YOLO detection model through ONNX Runtime.
type YOLO struct {
	config     Config
	session    *onnxruntime_go.DynamicAdvancedSession
	inputInfo  onnxruntime_go.InputOutputInfo
	outputInfo onnxruntime_go.InputOutputInfo
	mu         sync.RWMutex
}

// NewYOLO loads the model and prepares an inference session.
func NewYOLO(config Config) (*YOLO, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if err := validateModelFile(config.ModelPath); err != nil {
		return nil, err
	}

	slog.Debug("Initializing detector",
		"model_path", config.ModelPath,
		"gpu_enabled", config.GPU.UseGPU,
		"input_size", config.InputSize,
		"conf_threshold", config.ConfidenceThreshold,
		"nms_method", config.NMSMethod)

	if err := onnx.InitializeEnvironment(config.LibraryPath, config.GPU.UseGPU); err != nil {
		return nil, err
	}

	inputInfo, outputInfo, err := inspectModel(config.ModelPath)
	if err != nil {
		return nil, err
	}
	config.InputSize = inputSizeFor(inputInfo, config.InputSize)

	session, err := createSession(inputInfo, outputInfo, config)
	if err != nil {
		return nil, err
	}

	slog.Debug("Detector initialized successfully", "input", inputInfo.Name, "output", outputInfo.Name)
	return &YOLO{config: config, session: session, inputInfo: inputInfo, outputInfo: outputInfo}, nil
}

// Config returns a copy of the detector's configuration.
func (d *YOLO) Config() Config {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.config
}

// Detect letterboxes img, runs the model and returns frame-space detections.
func (d *YOLO) Detect(ctx context.Context, img image.Image) ([]Detection, error) {
	if img == nil {
		return nil, errors.New("input image is nil")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	boxed, lb, err := utils.LetterboxImage(img, d.config.InputSize)
	if err != nil {
		return nil, fmt.Errorf("preprocessing failed: %w", err)
	}
	data, w, h, err := utils.NormalizeImagePooled(boxed)
	if err != nil {
		return nil, fmt.Errorf("preprocessing failed: %w", err)
	}
	defer mempool.PutFloat32(data)

	tensor, err := onnx.NewImageTensor(data, 3, h, w)
	if err != nil {
		return nil, fmt.Errorf("failed to create tensor: %w", err)
	}

	output, shape, err := d.run(tensor)
	if err != nil {
		return nil, err
	}
	head, err := onnx.ParseDetectionHead(shape)
	if err != nil {
		return nil, err
	}

	dets := postprocess(output, head, lb, img.Bounds(), d.config)
	slog.Debug("Detection finished", "detections", len(dets), "duration", time.Since(start))
	return dets, nil
}

// run performs the ONNX inference and copies out the first output.
func (d *YOLO) run(tensor onnx.Tensor) ([]float32, []int64, error) {
	if err := onnx.VerifyImageTensor(tensor); err != nil {
		return nil, nil, fmt.Errorf("invalid tensor: %w", err)
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.session == nil {
		return nil, nil, errors.New("detector session is closed")
	}

	inputTensor, err := onnxruntime_go.NewTensor(onnxruntime_go.NewShape(tensor.Shape...), tensor.Data)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer func() {
		if err := inputTensor.Destroy(); err != nil {
			slog.Warn("Error destroying input tensor", "error", err)
		}
	}()

	outputs := []onnxruntime_go.Value{nil}
	if err := d.session.Run([]onnxruntime_go.Value{inputTensor}, outputs); err != nil {
		return nil, nil, fmt.Errorf("inference failed: %w", err)
	}
	defer func() {
		if err := outputs[0].Destroy(); err != nil {
			slog.Warn("Error destroying output tensor", "error", err)
		}
	}()

	floatTensor, ok := outputs[0].(*onnxruntime_go.Tensor[float32])
	if !ok {
		return nil, nil, fmt.Errorf("expected float32 tensor, got %T", outputs[0])
	}
	src := floatTensor.GetData()
	data := make([]float32, len(src))
	copy(data, src)
	shape := outputs[0].GetShape()
	return data, []int64(shape), nil
}

// ModelInfo describes the loaded model for status endpoints.
func (d *YOLO) ModelInfo() map[string]interface{} {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return map[string]interface{}{
		"model_path":     d.config.ModelPath,
		"input_name":     d.inputInfo.Name,
		"output_name":    d.outputInfo.Name,
		"input_shape":    d.inputInfo.Dimensions,
		"output_shape":   d.outputInfo.Dimensions,
		"input_size":     d.config.InputSize,
		"class_names":    d.config.ClassNames,
		"conf_threshold": d.config.ConfidenceThreshold,
		"nms_threshold":  d.config.NMSThreshold,
		"gpu":            d.config.GPU.UseGPU,
	}
}

// Close releases the inference session. The ONNX environment stays initialized
// for the lifetime of the process.
func (d *YOLO) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.session == nil {
		return nil
	}
	err := d.session.Destroy()
	d.session = nil
	return err
}
