//go:build !capture_gocv

package capture

import "fmt"

// OpenVideo reports the video backend as unavailable. Build with -tags capture_gocv
// to read cameras and video files through OpenCV.
func OpenVideo(spec string) (Source, error) {
	return nil, fmt.Errorf("%w: %s: video backend not compiled in (build with -tags capture_gocv)",
		ErrSourceUnavailable, spec)
}
