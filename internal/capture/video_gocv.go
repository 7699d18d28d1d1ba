//go:build capture_gocv

package capture

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"gocv.io/x/gocv"
)

// VideoSource reads frames from a camera device or a video file through OpenCV.
type VideoSource struct {
	spec   string
	isFile bool
	video  *gocv.VideoCapture
	mat    gocv.Mat
	seq    uint64
}

// OpenVideo opens a camera when spec is a device index ("0", "1", ...) and a
// video file or stream URL otherwise.
func OpenVideo(spec string) (Source, error) {
	var device interface{} = spec
	isFile := true
	if id, err := strconv.Atoi(spec); err == nil {
		device = id
		isFile = false
	}

	video, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSourceUnavailable, spec, err)
	}
	if !video.IsOpened() {
		_ = video.Close()
		return nil, fmt.Errorf("%w: %s", ErrSourceUnavailable, spec)
	}

	slog.Debug("Opened video source", "source", spec, "file", isFile,
		"width", video.Get(gocv.VideoCaptureFrameWidth),
		"height", video.Get(gocv.VideoCaptureFrameHeight),
		"frames", video.Get(gocv.VideoCaptureFrameCount))

	return &VideoSource{spec: spec, isFile: isFile, video: video, mat: gocv.NewMat()}, nil
}

// Next reads one frame. On a file, a failed read after the last frame is the end
// of the stream; anywhere else it is a read failure.
func (s *VideoSource) Next(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}

	if ok := s.video.Read(&s.mat); !ok || s.mat.Empty() {
		if s.isFile && s.atEnd() {
			return Frame{}, ErrEndOfStream
		}
		return Frame{}, fmt.Errorf("%w: cannot read from %s", ErrReadFailed, s.spec)
	}

	img, err := s.mat.ToImage()
	if err != nil {
		return Frame{}, fmt.Errorf("%w: convert frame: %w", ErrReadFailed, err)
	}

	s.seq++
	return Frame{Image: img, Seq: s.seq, Timestamp: time.Now(), Source: s.spec}, nil
}

func (s *VideoSource) atEnd() bool {
	total := s.video.Get(gocv.VideoCaptureFrameCount)
	if total <= 0 {
		return true
	}
	return s.video.Get(gocv.VideoCapturePosFrames) >= total
}

// Name returns the camera index or file path.
func (s *VideoSource) Name() string { return s.spec }

// Close releases the capture device.
func (s *VideoSource) Close() error {
	if err := s.mat.Close(); err != nil {
		_ = s.video.Close()
		return err
	}
	return s.video.Close()
}
