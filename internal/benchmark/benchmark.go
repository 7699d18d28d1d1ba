// Package benchmark times the pipeline stages over a fixed set of frames.
package benchmark

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"runtime"
	"sync"
	"time"

	"github.com/MeKo-Tech/labelscan/internal/decode"
	"github.com/MeKo-Tech/labelscan/internal/detector"
	"github.com/MeKo-Tech/labelscan/internal/extract"
	"github.com/MeKo-Tech/labelscan/internal/render"
)

// Timer measures one named span.
type Timer struct {
	start    time.Time
	name     string
	duration time.Duration
}

// NewTimer starts a timer with the given name.
func NewTimer(name string) *Timer {
	return &Timer{name: name, start: time.Now()}
}

// Stop stops the timer and returns the elapsed duration.
func (t *Timer) Stop() time.Duration {
	t.duration = time.Since(t.start)
	return t.duration
}

// Duration returns the recorded duration (only valid after Stop()).
func (t *Timer) Duration() time.Duration { return t.duration }

func (t *Timer) String() string { return fmt.Sprintf("%s: %v", t.name, t.duration) }

// MemoryStats holds memory usage statistics.
type MemoryStats struct {
	AllocBytes      uint64  // Currently allocated bytes
	TotalAllocBytes uint64  // Total allocated bytes (cumulative)
	SysBytes        uint64  // Total bytes from system
	NumGC           uint32  // Number of GC runs
	GCCPUFraction   float64 // Fraction of CPU time spent in GC
}

// GetMemoryStats returns current memory statistics.
func GetMemoryStats() MemoryStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return MemoryStats{
		AllocBytes:      m.Alloc,
		TotalAllocBytes: m.TotalAlloc,
		SysBytes:        m.Sys,
		NumGC:           m.NumGC,
		GCCPUFraction:   m.GCCPUFraction,
	}
}

// Result holds the outcome of one benchmark.
type Result struct {
	Name         string
	Duration     time.Duration
	MemoryBefore MemoryStats
	MemoryAfter  MemoryStats
	Iterations   int
	Error        error
}

// PerIteration returns the mean duration of one iteration.
func (r Result) PerIteration() time.Duration {
	if r.Iterations <= 0 {
		return 0
	}
	return r.Duration / time.Duration(r.Iterations)
}

// AllocatedKB is the growth of TotalAlloc during the run.
func (r Result) AllocatedKB() uint64 {
	return (r.MemoryAfter.TotalAllocBytes - r.MemoryBefore.TotalAllocBytes) / 1024
}

func (r Result) String() string {
	if r.Error != nil {
		return fmt.Sprintf("%s: ERROR - %v", r.Name, r.Error)
	}
	return fmt.Sprintf("%s: %d iterations, avg: %v, total: %v, alloc: %d KB",
		r.Name, r.Iterations, r.PerIteration(), r.Duration, r.AllocatedKB())
}

// Benchmark is a named function run once per iteration.
type Benchmark struct {
	Name string
	Func func(i int) error
}

// Suite manages multiple benchmarks.
type Suite struct {
	benchmarks []Benchmark
	results    []Result
	mu         sync.Mutex
}

// NewSuite creates an empty suite.
func NewSuite() *Suite {
	return &Suite{}
}

// Add registers a benchmark. fn receives the iteration index.
func (s *Suite) Add(name string, fn func(i int) error) {
	s.benchmarks = append(s.benchmarks, Benchmark{Name: name, Func: fn})
}

// Names lists the registered benchmarks in order.
func (s *Suite) Names() []string {
	names := make([]string, len(s.benchmarks))
	for i, b := range s.benchmarks {
		names[i] = b.Name
	}
	return names
}

// Run runs a single benchmark with the specified number of iterations.
func (s *Suite) Run(name string, iterations int) Result {
	for _, b := range s.benchmarks {
		if b.Name == name {
			return run(b, iterations)
		}
	}
	return Result{Name: name, Error: fmt.Errorf("benchmark '%s' not found", name)}
}

// RunAll runs every benchmark in registration order.
func (s *Suite) RunAll(iterations int) []Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.results = make([]Result, 0, len(s.benchmarks))
	for _, b := range s.benchmarks {
		s.results = append(s.results, run(b, iterations))
	}
	return s.results
}

func run(b Benchmark, iterations int) Result {
	runtime.GC()
	before := GetMemoryStats()
	timer := NewTimer(b.Name)

	done := 0
	var err error
	for i := range iterations {
		if err = b.Func(i); err != nil {
			break
		}
		done++
	}

	return Result{
		Name:         b.Name,
		Duration:     timer.Stop(),
		MemoryBefore: before,
		MemoryAfter:  GetMemoryStats(),
		Iterations:   done,
		Error:        err,
	}
}

// Results returns the last RunAll results.
func (s *Suite) Results() []Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.results
}

// Print writes the last results to w.
func (s *Suite) Print(w io.Writer) {
	_, _ = fmt.Fprintln(w, "Benchmark Results:")
	_, _ = fmt.Fprintln(w, "==================")
	for _, r := range s.Results() {
		_, _ = fmt.Fprintln(w, r.String())
	}
}

// Stages are the components measured by NewStageSuite. Nil components are
// skipped.
type Stages struct {
	Detector  detector.Detector
	Extractor *extract.Extractor
	Decoder   decode.Decoder
	Annotator *render.Annotator
	// DisplayWidth and DisplayHeight size the annotate stage output.
	DisplayWidth  int
	DisplayHeight int
}

// ErrNoFrames is returned when there is nothing to measure.
var ErrNoFrames = errors.New("benchmark: no frames")

// NewStageSuite detects every frame once so later stages see real regions, then
// registers one benchmark per stage: detect, extract, decode and annotate.
// Iteration i processes frame i modulo the frame count.
func NewStageSuite(ctx context.Context, frames []image.Image, st Stages) (*Suite, error) {
	if len(frames) == 0 {
		return nil, ErrNoFrames
	}
	if st.Extractor == nil {
		st.Extractor = extract.New(extract.Options{})
	}

	dets := make([][]detector.Detection, len(frames))
	if st.Detector != nil {
		for i, f := range frames {
			d, err := st.Detector.Detect(ctx, f)
			if err != nil {
				return nil, fmt.Errorf("benchmark: detect frame %d: %w", i, err)
			}
			dets[i] = d
		}
	}
	regions := make([][]image.Image, len(frames))
	for i, f := range frames {
		for _, d := range dets[i] {
			r, err := st.Extractor.Extract(f, d.Box)
			if err != nil {
				return nil, fmt.Errorf("benchmark: extract frame %d: %w", i, err)
			}
			regions[i] = append(regions[i], r.Image)
		}
	}

	n := len(frames)
	s := NewSuite()
	if st.Detector != nil {
		s.Add("detect", func(i int) error {
			_, err := st.Detector.Detect(ctx, frames[i%n])
			return err
		})
		s.Add("extract", func(i int) error {
			for _, d := range dets[i%n] {
				if _, err := st.Extractor.Extract(frames[i%n], d.Box); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if st.Decoder.Mode.PerRegion() && (st.Decoder.OCR != nil || st.Decoder.Barcodes != nil) {
		s.Add("decode", func(i int) error {
			for _, r := range regions[i%n] {
				st.Decoder.Region(ctx, r)
			}
			return ctx.Err()
		})
	} else if st.Decoder.Barcodes != nil {
		s.Add("decode", func(i int) error {
			st.Decoder.Frame(ctx, frames[i%n])
			return ctx.Err()
		})
	}
	if st.Annotator != nil {
		s.Add("annotate", func(i int) error {
			out := st.Annotator.Annotate(frames[i%n], dets[i%n])
			render.ForDisplay(out, st.DisplayWidth, st.DisplayHeight)
			return nil
		})
	}
	return s, nil
}

// Comparison relates a candidate run to a baseline, e.g. GPU against CPU.
type Comparison struct {
	Baseline  Result
	Candidate Result
}

// Speedup is baseline time per iteration over candidate time per iteration,
// 0 when either side failed.
func (c Comparison) Speedup() float64 {
	if c.Baseline.Error != nil || c.Candidate.Error != nil {
		return 0
	}
	cand := c.Candidate.PerIteration()
	if cand <= 0 {
		return 0
	}
	return float64(c.Baseline.PerIteration()) / float64(cand)
}

func (c Comparison) String() string {
	if s := c.Speedup(); s > 0 {
		return fmt.Sprintf("%s vs %s: %.2fx", c.Candidate.Name, c.Baseline.Name, s)
	}
	return fmt.Sprintf("%s vs %s: not comparable", c.Candidate.Name, c.Baseline.Name)
}
