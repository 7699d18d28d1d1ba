package server

import (
	"encoding/json"
	"errors"
	"image/jpeg"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/MeKo-Tech/labelscan/internal/capture"
	"github.com/MeKo-Tech/labelscan/internal/pipeline"
	"github.com/MeKo-Tech/labelscan/internal/version"
)

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: version.Short(),
		Time:    time.Now().UTC().Format(time.RFC3339),
	})
}

// statusHandler returns the controller counters and state.
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.ctrl.Stats())
}

func (s *Server) startHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.control(w, s.ctrl.Start(s.baseCtx))
}

func (s *Server) stopHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.control(w, s.ctrl.Stop())
}

func (s *Server) sourceHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req SourceRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil || req.Source == "" {
		s.writeErrorResponse(w, "invalid_request", "body must be {\"source\": \"...\"}", http.StatusBadRequest)
		return
	}
	s.control(w, s.ctrl.OpenSource(req.Source))
}

// control writes the outcome of a control operation with the current status.
func (s *Server) control(w http.ResponseWriter, err error) {
	if s.hub != nil {
		s.hub.BroadcastJSON(Message{Type: "status", Payload: s.ctrl.Stats()})
	}
	if err == nil {
		writeJSON(w, http.StatusOK, ControlResponse{Success: true, Status: s.ctrl.Stats()})
		return
	}
	slog.Warn("Control request failed", "error", err)
	writeJSON(w, statusFor(err), ControlResponse{Status: s.ctrl.Stats(), Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, pipeline.ErrRunning):
		return http.StatusConflict
	case errors.Is(err, capture.ErrSourceUnavailable):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// frameHandler serves the latest annotated frame as JPEG.
func (s *Server) frameHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	img, seq, ok := s.ctrl.Frames().Latest()
	if !ok {
		s.writeErrorResponse(w, "no_frame", "no frame has been processed yet", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Frame-Seq", strconv.FormatUint(seq, 10))
	if err := jpeg.Encode(w, img, &jpeg.Options{Quality: s.jpegQuality}); err != nil {
		slog.Error("Failed to encode frame", "error", err)
	}
}

func (s *Server) writeErrorResponse(w http.ResponseWriter, kind, message string, statusCode int) {
	writeJSON(w, statusCode, ErrorResponse{Error: kind, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}
