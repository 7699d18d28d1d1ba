package cmd

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/MeKo-Tech/labelscan/internal/benchmark"
	"github.com/MeKo-Tech/labelscan/internal/capture"
	"github.com/MeKo-Tech/labelscan/internal/detector"
	"github.com/MeKo-Tech/labelscan/internal/extract"
	"github.com/MeKo-Tech/labelscan/internal/render"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// benchCmd times each pipeline stage over a directory of frames.
var benchCmd = &cobra.Command{
	Use:   "bench <directory>",
	Short: "Benchmark detection, extraction, decoding and annotation",
	Long: `Load every image of a directory and time each pipeline stage separately.
Nothing is written to disk. With --compare-gpu the detector is also run on CUDA
and the speedup over the CPU run is reported.

Examples:
  labelscan bench ./photos --iterations 20
  labelscan bench ./photos --compare-gpu --csv bench.csv`,
	Args: cobra.ExactArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return bindFlags(viper.GetViper(), cmd.Flags())
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		iterations, _ := cmd.Flags().GetInt("iterations")
		if iterations <= 0 {
			return fmt.Errorf("invalid iterations: %d (must be positive)", iterations)
		}
		frames, err := loadFrames(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		pcfg, err := cfg.ToPipelineConfig()
		if err != nil {
			return err
		}

		var closers []func() error
		defer func() {
			for i := len(closers) - 1; i >= 0; i-- {
				_ = closers[i]()
			}
		}()

		stages := benchmark.Stages{
			Extractor:     extract.New(extract.Options{Naming: cfg.Extract.Naming}),
			Annotator:     render.New(render.DefaultStyle()),
			DisplayWidth:  pcfg.DisplayWidth,
			DisplayHeight: pcfg.DisplayHeight,
		}
		det, err := newDetector(cfg, pcfg.Mode)
		if err != nil {
			return err
		}
		if det != nil {
			closers = append(closers, det.Close)
			stages.Detector = det
		}
		dec, decClosers, err := newDecoder(cfg, pcfg.Mode)
		closers = append(closers, decClosers...)
		if err != nil {
			return err
		}
		stages.Decoder = dec

		suite, err := benchmark.NewStageSuite(cmd.Context(), frames, stages)
		if err != nil {
			return err
		}

		compare, _ := cmd.Flags().GetBool("compare-gpu")
		if compare && det != nil {
			gcfg := cfg.ToDetectorConfig()
			gcfg.GPU.UseGPU = true
			gpu, err := detector.NewYOLO(gcfg)
			if err != nil {
				slog.Warn("GPU detector unavailable", "error", err)
				compare = false
			} else {
				closers = append(closers, gpu.Close)
				n := len(frames)
				suite.Add("detect-gpu", func(i int) error {
					_, err := gpu.Detect(cmd.Context(), frames[i%n])
					return err
				})
			}
		}

		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Benchmarking %d frame(s), %d iteration(s) per stage\n\n",
			len(frames), iterations)
		results := suite.RunAll(iterations)
		suite.Print(cmd.OutOrStdout())

		if compare {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), comparison(results, "detect", "detect-gpu"))
		}
		if path, _ := cmd.Flags().GetString("csv"); path != "" {
			if err := writeBenchCSV(path, results); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Results saved to: %s\n", path)
		}
		return nil
	},
}

// loadFrames reads every image of dir into memory.
func loadFrames(ctx context.Context, dir string) ([]image.Image, error) {
	src, err := capture.OpenDirectory(dir)
	if err != nil {
		return nil, err
	}
	defer func() { _ = src.Close() }()

	frames := make([]image.Image, 0, src.Len())
	for {
		f, err := src.Next(ctx)
		if errors.Is(err, capture.ErrEndOfStream) {
			return frames, nil
		}
		if err != nil {
			return nil, err
		}
		frames = append(frames, f.Image)
	}
}

func comparison(results []benchmark.Result, baseline, candidate string) benchmark.Comparison {
	var c benchmark.Comparison
	for _, r := range results {
		switch r.Name {
		case baseline:
			c.Baseline = r
		case candidate:
			c.Candidate = r
		}
	}
	return c
}

func writeBenchCSV(path string, results []benchmark.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := encodeBenchCSV(f, results); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func encodeBenchCSV(w io.Writer, results []benchmark.Result) error {
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"stage", "iterations", "avg_ms", "total_ms", "alloc_kb", "error"})
	for _, r := range results {
		errText := ""
		if r.Error != nil {
			errText = r.Error.Error()
		}
		_ = cw.Write([]string{
			r.Name,
			strconv.Itoa(r.Iterations),
			strconv.FormatFloat(float64(r.PerIteration().Microseconds())/1000, 'f', 3, 64),
			strconv.FormatFloat(float64(r.Duration.Microseconds())/1000, 'f', 3, 64),
			strconv.FormatUint(r.AllocatedKB(), 10),
			errText,
		})
	}
	cw.Flush()
	return cw.Error()
}

func init() {
	rootCmd.AddCommand(benchCmd)
	addPipelineFlags(benchCmd)
	benchCmd.Flags().IntP("iterations", "n", 10, "iterations per stage")
	benchCmd.Flags().Bool("compare-gpu", false, "also run the detector on CUDA and report the speedup")
	benchCmd.Flags().String("csv", "", "write results as CSV to this file")
}
