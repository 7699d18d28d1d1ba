package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/labelscan/internal/benchmark"
	"github.com/MeKo-Tech/labelscan/internal/capture"
	"github.com/MeKo-Tech/labelscan/internal/config"
	"github.com/MeKo-Tech/labelscan/internal/decode"
	"github.com/MeKo-Tech/labelscan/internal/pipeline"
	"github.com/MeKo-Tech/labelscan/internal/sink"
	"github.com/MeKo-Tech/labelscan/internal/testutil"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetBoolFlags(rootCmd)
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

// resetBoolFlags clears the help and version flags cobra leaves set on the
// shared command tree after an earlier Execute.
func resetBoolFlags(c *cobra.Command) {
	for _, fs := range []*pflag.FlagSet{c.Flags(), c.PersistentFlags()} {
		for _, name := range []string{"help", "version"} {
			if f := fs.Lookup(name); f != nil {
				_ = f.Value.Set("false")
				f.Changed = false
			}
		}
	}
	for _, sub := range c.Commands() {
		resetBoolFlags(sub)
	}
}

func TestRootCommand(t *testing.T) {
	assert.Equal(t, "labelscan", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
	assert.Same(t, rootCmd, GetRootCommand())
}

func TestRootCommandHelp(t *testing.T) {
	out, err := execute(t, "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "YOLO detector")
	assert.Contains(t, out, "Available Commands:")
}

func TestRootCommandVersionAfterHelp(t *testing.T) {
	_, err := execute(t, "--help")
	require.NoError(t, err)

	out, err := execute(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "labelscan dev")
	assert.NotContains(t, out, "Available Commands:")

	out, err = execute(t, "version")
	require.NoError(t, err)
	assert.NotContains(t, out, "Available Commands:")
}

func TestRootCommandVersion(t *testing.T) {
	out, err := execute(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "labelscan dev")
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "labelscan")
}

func TestRootCommandSubcommands(t *testing.T) {
	var names []string
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"run", "scan", "serve", "bench", "config", "doctor", "version"} {
		assert.Contains(t, names, want)
	}
}

func TestRootCommandInvalidFlag(t *testing.T) {
	_, err := execute(t, "--no-such-flag")
	assert.Error(t, err)
}

func TestScanRequiresDirectory(t *testing.T) {
	_, err := execute(t, "scan")
	assert.Error(t, err)
}

func TestConfigInitAndPaths(t *testing.T) {
	path := filepath.Join(t.TempDir(), "generated.yaml")
	out, err := execute(t, "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)
	_, err = os.Stat(path)
	require.NoError(t, err)

	out, err = execute(t, "config", "paths")
	require.NoError(t, err)
	assert.Contains(t, out, "/etc/labelscan")
	assert.Contains(t, out, "LABELSCAN_")
}

func TestLogLevel(t *testing.T) {
	tests := []struct {
		level   string
		verbose bool
		want    slog.Level
	}{
		{"debug", false, slog.LevelDebug},
		{"info", false, slog.LevelInfo},
		{"warn", false, slog.LevelWarn},
		{"error", false, slog.LevelError},
		{"bogus", false, slog.LevelInfo},
		{"error", true, slog.LevelDebug},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s-%v", tt.level, tt.verbose), func(t *testing.T) {
			assert.Equal(t, tt.want, logLevel(&config.Config{LogLevel: tt.level, Verbose: tt.verbose}))
		})
	}
}

func TestBindFlags_OnlyChangedFlagsOverride(t *testing.T) {
	v := viper.New()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("mode", "region-ocr", "")
	fs.String("sink-format", "xlsx", "")
	fs.String("unrelated", "", "")
	require.NoError(t, bindFlags(v, fs))
	require.NoError(t, fs.Parse([]string{"--mode", "frame-barcode"}))

	assert.Equal(t, "frame-barcode", v.GetString("decode.mode"))
	assert.Equal(t, "xlsx", v.GetString("sink.format"))
	assert.False(t, v.IsSet("unrelated"))
}

func TestEndedNormally(t *testing.T) {
	assert.True(t, endedNormally(nil))
	assert.True(t, endedNormally(fmt.Errorf("wrapped: %w", capture.ErrEndOfStream)))
	assert.False(t, endedNormally(capture.ErrReadFailed))
	assert.False(t, endedNormally(errors.New("boom")))
}

func newTestController(t *testing.T, frames int) (*pipeline.Controller, *sink.Memory) {
	t.Helper()
	mem := sink.NewMemory()
	ctrl, err := pipeline.New(pipeline.Config{Mode: decode.ModeRegionOCR}, pipeline.Components{
		Detector: testutil.FullFrame(0.9),
		Decoder:  decode.Decoder{OCR: &testutil.CountingText{Text: "PARCEL 7"}},
		Sink:     mem,
	})
	require.NoError(t, err)

	imgs := make([]image.Image, 0, frames)
	for range frames {
		imgs = append(imgs, testutil.CreateTestImage(64, 48, color.White))
	}
	require.NoError(t, ctrl.SetSource(capture.NewMemorySource("mem", imgs...)))
	return ctrl, mem
}

func TestRunUntilDone_SourceEnds(t *testing.T) {
	ctrl, mem := newTestController(t, 3)
	defer func() { _ = ctrl.Close() }()

	err := runUntilDone(context.Background(), ctrl)
	assert.ErrorIs(t, err, capture.ErrEndOfStream)
	assert.True(t, endedNormally(err))
	assert.Equal(t, pipeline.Idle, ctrl.State())
	assert.Equal(t, 3, mem.Rows())
	for _, r := range mem.Records() {
		assert.Equal(t, "PARCEL 7", r.Content)
		assert.Equal(t, decode.MethodOCR, r.Method)
	}
}

func TestRunUntilDone_Cancelled(t *testing.T) {
	ctrl, _ := newTestController(t, 1)
	defer func() { _ = ctrl.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, runUntilDone(ctx, ctrl))
	assert.Equal(t, pipeline.Idle, ctrl.State())
}

func TestStackClose_WithoutController(t *testing.T) {
	mem := sink.NewMemory()
	closed := 0
	st := &stack{sink: mem, closers: []func() error{
		func() error { closed++; return nil },
		func() error { closed++; return errors.New("engine busy") },
	}}
	assert.EqualError(t, st.Close(), "engine busy")
	assert.Equal(t, 2, closed)
}

func TestEncodeBenchCSV(t *testing.T) {
	var buf bytes.Buffer
	err := encodeBenchCSV(&buf, []benchmark.Result{
		{Name: "detect", Iterations: 2, Duration: 4 * time.Millisecond},
		{Name: "decode", Error: errors.New("no engine")},
	})
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "stage,iterations,avg_ms,total_ms,alloc_kb,error", lines[0])
	assert.Equal(t, "detect,2,2.000,4.000,0,", lines[1])
	assert.Equal(t, "decode,0,0.000,0.000,0,no engine", lines[2])
}

func TestComparisonLookup(t *testing.T) {
	c := comparison([]benchmark.Result{
		{Name: "detect", Iterations: 1, Duration: 2 * time.Second},
		{Name: "detect-gpu", Iterations: 1, Duration: time.Second},
	}, "detect", "detect-gpu")
	assert.InDelta(t, 2.0, c.Speedup(), 1e-9)
}

func TestLoadFrames(t *testing.T) {
	dir := t.TempDir()
	testutil.SaveImage(t, testutil.CreateTestImage(8, 8, color.White), filepath.Join(dir, "a.png"))
	testutil.SaveImage(t, testutil.CreateTestImage(8, 8, color.Black), filepath.Join(dir, "b.png"))

	frames, err := loadFrames(context.Background(), dir)
	require.NoError(t, err)
	assert.Len(t, frames, 2)

	_, err = loadFrames(context.Background(), filepath.Join(dir, "missing"))
	assert.ErrorIs(t, err, capture.ErrSourceUnavailable)
}
