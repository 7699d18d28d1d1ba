package onnx

import (
	"errors"
	"fmt"
)

// Tensor represents a simple float32 tensor prepared for ONNX input.
// Data layout is row-major, with NCHW for images.
type Tensor struct {
	Data  []float32
	Shape []int64 // e.g., [N, C, H, W]
}

// NewImageTensor builds a single-image tensor with shape [1, C, H, W].
// data must be length C*H*W in NCHW order.
func NewImageTensor(data []float32, c, h, w int) (Tensor, error) {
	if data == nil {
		return Tensor{}, errors.New("nil data")
	}
	expected := c * h * w
	if len(data) != expected {
		return Tensor{}, fmt.Errorf("unexpected data length: got %d, want %d", len(data), expected)
	}
	shape := []int64{1, int64(c), int64(h), int64(w)}
	return Tensor{Data: data, Shape: shape}, nil
}

// ValidateNCHW ensures a shape is [N, C, H, W] with positive dimensions.
func ValidateNCHW(shape []int64) error {
	if len(shape) != 4 {
		return fmt.Errorf("shape rank %d != 4", len(shape))
	}
	for i, v := range shape {
		if v <= 0 {
			return fmt.Errorf("dimension %d must be > 0, got %d", i, v)
		}
	}
	return nil
}

// VerifyImageTensor checks data length matches the provided NCHW shape.
func VerifyImageTensor(t Tensor) error {
	if err := ValidateNCHW(t.Shape); err != nil {
		return err
	}
	n, c, h, w := t.Shape[0], t.Shape[1], t.Shape[2], t.Shape[3]
	expected := int(n * c * h * w)
	if len(t.Data) != expected {
		return fmt.Errorf("tensor data length %d != expected %d for shape %v", len(t.Data), expected, t.Shape)
	}
	return nil
}

// DetectionHead describes a YOLO detection output of shape [1, 4+classes, anchors].
type DetectionHead struct {
	Classes int
	Anchors int
}

// ParseDetectionHead validates an output shape and extracts its dimensions.
// Dynamic dimensions (-1) are rejected; call it with the shape of a real output.
func ParseDetectionHead(shape []int64) (DetectionHead, error) {
	if len(shape) != 3 {
		return DetectionHead{}, fmt.Errorf("expected 3D detection output, got %dD", len(shape))
	}
	if shape[0] != 1 {
		return DetectionHead{}, fmt.Errorf("expected batch size 1, got %d", shape[0])
	}
	if shape[1] < 5 {
		return DetectionHead{}, fmt.Errorf("detection output needs at least 5 rows (box + 1 class), got %d", shape[1])
	}
	if shape[2] <= 0 {
		return DetectionHead{}, fmt.Errorf("invalid anchor count %d", shape[2])
	}
	return DetectionHead{Classes: int(shape[1]) - 4, Anchors: int(shape[2])}, nil
}
