package onnx

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/yalue/onnxruntime_go"
)

// ModelDescription lists the tensors and metadata of an ONNX model file.
type ModelDescription struct {
	Path        string
	Inputs      []onnxruntime_go.InputOutputInfo
	Outputs     []onnxruntime_go.InputOutputInfo
	Producer    string
	Version     int64
	Description string
}

// DescribeModel reads the tensor layout and metadata of path. The runtime
// environment must already be initialized.
func DescribeModel(path string) (ModelDescription, error) {
	inputs, outputs, err := onnxruntime_go.GetInputOutputInfo(path)
	if err != nil {
		return ModelDescription{}, fmt.Errorf("failed to get model info: %w", err)
	}
	desc := ModelDescription{Path: path, Inputs: inputs, Outputs: outputs}

	metadata, err := onnxruntime_go.GetModelMetadata(path)
	if err != nil {
		return desc, nil
	}
	defer func() {
		if err := metadata.Destroy(); err != nil {
			slog.Error("Failed to destroy model metadata", "error", err)
		}
	}()
	if producer, err := metadata.GetProducerName(); err == nil {
		desc.Producer = producer
	}
	if version, err := metadata.GetVersion(); err == nil {
		desc.Version = version
	}
	if description, err := metadata.GetDescription(); err == nil {
		desc.Description = description
	}
	return desc, nil
}

// Head parses the first output as a YOLO detection head.
func (d ModelDescription) Head() (DetectionHead, error) {
	if len(d.Outputs) == 0 {
		return DetectionHead{}, fmt.Errorf("model %s has no outputs", d.Path)
	}
	return ParseDetectionHead(d.Outputs[0].Dimensions)
}

// Write prints the description in the indented layout of the doctor command.
func (d ModelDescription) Write(w io.Writer) {
	_, _ = fmt.Fprintf(w, "   - Inputs: %d\n", len(d.Inputs))
	for i, in := range d.Inputs {
		_, _ = fmt.Fprintf(w, "     [%d] %s: %v (type: %s)\n", i, in.Name, in.Dimensions, in.DataType)
	}
	_, _ = fmt.Fprintf(w, "   - Outputs: %d\n", len(d.Outputs))
	for i, out := range d.Outputs {
		_, _ = fmt.Fprintf(w, "     [%d] %s: %v (type: %s)\n", i, out.Name, out.Dimensions, out.DataType)
	}
	if head, err := d.Head(); err == nil {
		_, _ = fmt.Fprintf(w, "   - Classes: %d\n", head.Classes)
	}
	if d.Producer != "" {
		_, _ = fmt.Fprintf(w, "   - Producer: %s\n", d.Producer)
	}
	if d.Version != 0 {
		_, _ = fmt.Fprintf(w, "   - Version: %d\n", d.Version)
	}
	if d.Description != "" {
		_, _ = fmt.Fprintf(w, "   - Description: %s\n", d.Description)
	}
}
