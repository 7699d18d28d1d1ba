package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MeKo-Tech/labelscan/internal/capture"
	"github.com/MeKo-Tech/labelscan/internal/pipeline"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeController records control calls.
type fakeController struct {
	mu       sync.Mutex
	state    pipeline.State
	source   string
	openErr  error
	starts   int
	stops    int
	frames   *pipeline.FrameBuffer
	errs     chan error
	startCtx context.Context
}

func newFakeController() *fakeController {
	return &fakeController{frames: pipeline.NewFrameBuffer(), errs: make(chan error, 4)}
}

func (f *fakeController) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == pipeline.Running {
		return pipeline.ErrRunning
	}
	if f.source == "" {
		return fmt.Errorf("%w: no source", capture.ErrSourceUnavailable)
	}
	f.starts++
	f.startCtx = ctx
	f.state = pipeline.Running
	return nil
}

func (f *fakeController) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	f.state = pipeline.Idle
	return nil
}

func (f *fakeController) OpenSource(spec string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == pipeline.Running {
		return pipeline.ErrRunning
	}
	if f.openErr != nil {
		return f.openErr
	}
	f.source = spec
	return nil
}

func (f *fakeController) Stats() pipeline.Stats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return pipeline.Stats{State: f.state, Source: f.source}
}

func (f *fakeController) Frames() *pipeline.FrameBuffer { return f.frames }
func (f *fakeController) Errors() <-chan error          { return f.errs }

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeControl(t *testing.T, w *httptest.ResponseRecorder) ControlResponse {
	t.Helper()
	var resp ControlResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestHealthHandler(t *testing.T) {
	h := New(DefaultConfig(), newFakeController(), nil).Handler()

	tests := []struct {
		name           string
		method         string
		expectedStatus int
	}{
		{"GET request success", http.MethodGet, http.StatusOK},
		{"POST request not allowed", http.MethodPost, http.StatusMethodNotAllowed},
		{"OPTIONS preflight", http.MethodOptions, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, tt.method, "/health", "")
			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
			if tt.method == http.MethodGet {
				var resp HealthResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.Equal(t, "healthy", resp.Status)
				assert.NotEmpty(t, resp.Time)
				assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			}
		})
	}
}

func TestControlFlow(t *testing.T) {
	ctrl := newFakeController()
	h := New(DefaultConfig(), ctrl, nil).Handler()

	w := do(t, h, http.MethodGet, "/status", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"state":"IDLE"`)

	w = do(t, h, http.MethodPost, "/start", "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, "no source configured")
	assert.False(t, decodeControl(t, w).Success)

	w = do(t, h, http.MethodPost, "/source", `{"source": "0"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0", decodeControl(t, w).Status.Source)

	w = do(t, h, http.MethodPost, "/start", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, pipeline.Running, decodeControl(t, w).Status.State)
	require.NotNil(t, ctrl.startCtx)
	assert.NoError(t, ctrl.startCtx.Err(), "runs are not bound to the request context")

	w = do(t, h, http.MethodPost, "/start", "")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, h, http.MethodPost, "/source", `{"source": "video.mp4"}`)
	assert.Equal(t, http.StatusConflict, w.Code, "source switch while running")

	w = do(t, h, http.MethodPost, "/stop", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, pipeline.Idle, decodeControl(t, w).Status.State)

	w = do(t, h, http.MethodGet, "/stop", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestSourceHandler_BadRequests(t *testing.T) {
	ctrl := newFakeController()
	h := New(DefaultConfig(), ctrl, nil).Handler()

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/source", `not json`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/source", `{"source": ""}`).Code)

	ctrl.openErr = fmt.Errorf("%w: camera 3", capture.ErrSourceUnavailable)
	w := do(t, h, http.MethodPost, "/source", `{"source": "3"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, decodeControl(t, w).Error, "camera 3")
}

func TestFrameHandler(t *testing.T) {
	ctrl := newFakeController()
	h := New(DefaultConfig(), ctrl, nil).Handler()

	w := do(t, h, http.MethodGet, "/frame.jpg", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	ctrl.frames.Publish(image.NewRGBA(image.Rect(0, 0, 40, 30)), 7)
	w = do(t, h, http.MethodGet, "/frame.jpg", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/jpeg", w.Header().Get("Content-Type"))
	assert.Equal(t, "7", w.Header().Get("X-Frame-Seq"))

	img, err := jpeg.Decode(w.Body)
	require.NoError(t, err)
	assert.Equal(t, 40, img.Bounds().Dx())
}

func TestRateLimitedControl(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RequestsPerMinute = 1
	h := New(cfg, newFakeController(), nil).Handler()

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/stop", "").Code)
	w := do(t, h, http.MethodPost, "/stop", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "minute", w.Header().Get("X-RateLimit-Type"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "rate_limit_exceeded")

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/status", "").Code, "reads are not limited")
}

func TestMetricsEndpoint(t *testing.T) {
	h := New(DefaultConfig(), newFakeController(), nil).Handler()
	do(t, h, http.MethodGet, "/health", "")

	w := do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "labelscan_http_requests_total")
}

func TestWebSocketDisabledWithoutHub(t *testing.T) {
	h := New(DefaultConfig(), newFakeController(), nil).Handler()
	assert.Equal(t, http.StatusServiceUnavailable, do(t, h, http.MethodGet, "/ws", "").Code)
}

func readMessage(t *testing.T, conn *websocket.Conn) (int, []byte) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	kind, data, err := conn.ReadMessage()
	require.NoError(t, err)
	return kind, data
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	kind, data := readMessage(t, conn)
	require.Equal(t, websocket.TextMessage, kind)
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &m))
	return m
}

func TestWebSocketStream(t *testing.T) {
	ctrl := newFakeController()
	hub := NewHub(70)
	s := New(DefaultConfig(), ctrl, hub)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()
	defer hub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.forwardErrors(ctx)

	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()
	_ = resp.Body.Close()

	hello := readJSON(t, conn)
	assert.Equal(t, "status", hello["type"])
	assert.Equal(t, 1, hub.Clients())

	frame := image.NewRGBA(image.Rect(0, 0, 64, 48))
	frame.Set(1, 1, color.White)
	hub.Show(frame)
	kind, data := readMessage(t, conn)
	require.Equal(t, websocket.BinaryMessage, kind)
	img, err := jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 64, img.Bounds().Dx())

	require.NoError(t, conn.WriteJSON(Command{Type: "source", Source: "clip.mp4"}))
	status := readJSON(t, conn)
	assert.Equal(t, "status", status["type"])
	assert.Equal(t, "clip.mp4", status["payload"].(map[string]interface{})["source"])

	require.NoError(t, conn.WriteJSON(Command{Type: "start"}))
	status = readJSON(t, conn)
	assert.Equal(t, "RUNNING", status["payload"].(map[string]interface{})["state"])

	require.NoError(t, conn.WriteJSON(Command{Type: "jump"}))
	assert.Equal(t, "error", readJSON(t, conn)["type"])

	ctrl.errs <- fmt.Errorf("%w: clip.mp4", capture.ErrEndOfStream)
	msg := readJSON(t, conn)
	assert.Equal(t, "error", msg["type"])
	assert.Equal(t, "end_of_stream", msg["payload"].(map[string]interface{})["error"])
}

func TestHub_ShowWithoutClients(t *testing.T) {
	hub := NewHub(0)
	assert.NotPanics(t, func() {
		hub.Show(image.NewRGBA(image.Rect(0, 0, 4, 4)))
		hub.BroadcastJSON(Message{Type: "status"})
		hub.Close()
		hub.Close()
	})
	assert.Zero(t, hub.Clients())
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, "running", errorKind(pipeline.ErrRunning))
	assert.Equal(t, "read_failed", errorKind(fmt.Errorf("wrap: %w", capture.ErrReadFailed)))
	assert.Equal(t, "source_unavailable", errorKind(capture.ErrSourceUnavailable))
	assert.Equal(t, "internal_error", errorKind(io.EOF))
}

func TestRateLimiter_Windows(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(2, 3)
	rl.now = func() time.Time { return now }

	require.NoError(t, rl.Allow("a"))
	require.NoError(t, rl.Allow("a"))
	err := rl.Allow("a")
	var rle *RateLimitError
	require.ErrorAs(t, err, &rle)
	assert.Equal(t, "minute", rle.Type)
	require.NoError(t, rl.Allow("b"), "clients are tracked separately")

	now = now.Add(time.Minute)
	require.NoError(t, rl.Allow("a"))
	err = rl.Allow("a")
	require.ErrorAs(t, err, &rle)
	assert.Equal(t, "hour", rle.Type)

	now = now.Add(time.Hour)
	assert.NoError(t, rl.Allow("a"))
}

func TestConfigAddr(t *testing.T) {
	assert.Equal(t, "localhost:8080", DefaultConfig().Addr())
}

func TestClientKey(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"remote address", nil, "10.0.0.7:5123", "10.0.0.7"},
		{"first forwarded hop", map[string]string{"X-Forwarded-For": "203.0.113.9, 10.0.0.1"}, "10.0.0.1:80", "203.0.113.9"},
		{"real ip header", map[string]string{"X-Real-IP": " 198.51.100.4 "}, "10.0.0.1:80", "198.51.100.4"},
		{"unparseable remote", nil, "pipe", "pipe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/start", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, clientKey(r))
		})
	}
}
