package detector

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/labelscan/internal/onnx"
	"github.com/yalue/onnxruntime_go"
)

// inspectModel reads the tensor layout of the model and checks it is a single
// NCHW image input feeding a YOLO detection head.
func inspectModel(modelPath string) (in, out onnxruntime_go.InputOutputInfo, err error) {
	desc, err := onnx.DescribeModel(modelPath)
	if err != nil {
		return in, out, err
	}
	if len(desc.Inputs) != 1 {
		return in, out, fmt.Errorf("expected 1 input, got %d", len(desc.Inputs))
	}
	if len(desc.Outputs) < 1 {
		return in, out, errors.New("model has no outputs")
	}
	in = desc.Inputs[0]
	if len(in.Dimensions) != 4 {
		return in, out, fmt.Errorf("expected 4D input tensor, got %dD", len(in.Dimensions))
	}
	// Segmentation exports carry a second (mask prototype) output; boxes come first.
	out = desc.Outputs[0]
	if staticShape(out.Dimensions) {
		head, err := desc.Head()
		if err != nil {
			return in, out, fmt.Errorf("unsupported model output: %w", err)
		}
		slog.Debug("Detector model", "path", modelPath, "classes", head.Classes, "anchors", head.Anchors,
			"producer", desc.Producer)
	}
	return in, out, nil
}

func staticShape(dims []int64) bool {
	for _, d := range dims {
		if d <= 0 {
			return false
		}
	}
	return len(dims) > 0
}

// createSession creates the ONNX session with the given configuration.
func createSession(inputInfo, outputInfo onnxruntime_go.InputOutputInfo,
	config Config,
) (*onnxruntime_go.DynamicAdvancedSession, error) {
	sessionOptions, err := onnxruntime_go.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer func() {
		if err := sessionOptions.Destroy(); err != nil {
			slog.Warn("Failed to destroy session options", "error", err)
		}
	}()

	if err := onnx.ConfigureSessionForGPU(sessionOptions, config.GPU); err != nil {
		return nil, fmt.Errorf("failed to configure GPU: %w", err)
	}

	if config.NumThreads > 0 {
		if err = sessionOptions.SetIntraOpNumThreads(config.NumThreads); err != nil {
			return nil, fmt.Errorf("failed to set thread count: %w", err)
		}
	}

	session, err := onnxruntime_go.NewDynamicAdvancedSession(config.ModelPath,
		[]string{inputInfo.Name}, []string{outputInfo.Name}, sessionOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}
	return session, nil
}

// inputSizeFor prefers a fixed square input baked into the model over the configured size.
func inputSizeFor(inputInfo onnxruntime_go.InputOutputInfo, configured int) int {
	dims := inputInfo.Dimensions
	if len(dims) == 4 && dims[2] > 0 && dims[2] == dims[3] {
		return int(dims[2])
	}
	return configured
}
