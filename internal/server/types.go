package server

import (
	"errors"

	"github.com/MeKo-Tech/labelscan/internal/capture"
	"github.com/MeKo-Tech/labelscan/internal/pipeline"
)

// HealthResponse is returned by /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
}

// SourceRequest is the body of POST /source.
type SourceRequest struct {
	Source string `json:"source"`
}

// ControlResponse is returned by the control endpoints.
type ControlResponse struct {
	Success bool           `json:"success"`
	Status  pipeline.Stats `json:"status"`
	Error   string         `json:"error,omitempty"`
}

// ErrorResponse describes a failure.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Message is one WebSocket JSON message. Frames are sent as binary JPEG
// messages and carry no envelope.
type Message struct {
	Type    string      `json:"type"` // "status", "error", "command"
	Payload interface{} `json:"payload,omitempty"`
}

// Command is a client request received over the WebSocket.
type Command struct {
	Type   string `json:"type"` // "start", "stop", "status", "source"
	Source string `json:"source,omitempty"`
}

// errorKind maps sentinel errors to stable machine readable names.
func errorKind(err error) string {
	switch {
	case errors.Is(err, pipeline.ErrRunning):
		return "running"
	case errors.Is(err, capture.ErrEndOfStream):
		return "end_of_stream"
	case errors.Is(err, capture.ErrReadFailed):
		return "read_failed"
	case errors.Is(err, capture.ErrSourceUnavailable):
		return "source_unavailable"
	default:
		return "internal_error"
	}
}
