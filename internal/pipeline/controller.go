// Package pipeline drives the capture, detect, extract, decode and sink loop.
//
// A Controller owns the frame source and the lifecycle state. While RUNNING a
// single worker goroutine processes one frame per tick; ticks never overlap.
// The worker never changes state itself: when the source ends or fails it
// reports the error and returns, and a controller-owned supervisor performs
// the transition back to IDLE.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MeKo-Tech/labelscan/internal/capture"
	"github.com/MeKo-Tech/labelscan/internal/decode"
	"github.com/MeKo-Tech/labelscan/internal/detector"
	"github.com/MeKo-Tech/labelscan/internal/extract"
	"github.com/MeKo-Tech/labelscan/internal/render"
	"github.com/MeKo-Tech/labelscan/internal/sink"
)

// DefaultTickInterval paces the worker at the 10ms redraw rate of the viewer.
const DefaultTickInterval = 10 * time.Millisecond

// Config holds controller settings.
type Config struct {
	// Source is opened by Start when no source was set explicitly.
	Source       string
	TickInterval time.Duration
	Mode         decode.Mode
	// DisplayWidth and DisplayHeight size the annotated frames; zero keeps the frame size.
	DisplayWidth  int
	DisplayHeight int
}

// DefaultConfig returns the default controller settings.
func DefaultConfig() Config {
	return Config{
		TickInterval:  DefaultTickInterval,
		Mode:          decode.ModeRegionOCR,
		DisplayWidth:  render.DisplayWidth,
		DisplayHeight: render.DisplayHeight,
	}
}

// Components are the collaborators of a Controller.
type Components struct {
	Detector  detector.Detector
	Extractor *extract.Extractor
	Decoder   decode.Decoder
	Sink      sink.Sink
	Annotator *render.Annotator
	Display   Display
	// Open resolves Config.Source; defaults to capture.Open.
	Open func(spec string) (capture.Source, error)
}

// Stats is a snapshot of controller counters.
type Stats struct {
	State         State       `json:"state"`
	Source        string      `json:"source"`
	Frames        uint64      `json:"frames"`
	Detections    uint64      `json:"detections"`
	Decodes       uint64      `json:"decodes"`
	Records       uint64      `json:"records"`
	WriteErrors   uint64      `json:"write_errors"`
	DetectErrors  uint64      `json:"detect_errors"`
	ExtractErrors uint64      `json:"extract_errors"`
	Buffer        BufferStats `json:"buffer"`
}

// run is the bookkeeping of one RUNNING period.
type run struct {
	cancel  context.CancelFunc
	src     capture.Source
	done    chan struct{} // worker returned
	idle    chan struct{} // controller is back to IDLE
	failure error         // terminal capture error, set before done closes
}

// Controller is the pipeline state machine.
type Controller struct {
	cfg    Config
	comp   Components
	frames *FrameBuffer
	errs   chan error

	mu    sync.Mutex
	state State
	src   capture.Source
	cur   *run
	last  error
	stats Stats
}

// New validates the components and returns an IDLE controller.
func New(cfg Config, comp Components) (*Controller, error) {
	if comp.Sink == nil {
		return nil, errors.New("pipeline: sink is required")
	}
	if cfg.Mode == "" {
		cfg.Mode = decode.ModeRegionOCR
	}
	if cfg.Mode.PerRegion() && comp.Detector == nil {
		return nil, fmt.Errorf("pipeline: mode %s requires a detector", cfg.Mode)
	}
	comp.Decoder.Mode = cfg.Mode
	if comp.Extractor == nil {
		comp.Extractor = extract.New(extract.Options{})
	}
	if comp.Annotator == nil {
		comp.Annotator = render.New(render.DefaultStyle())
	}
	if comp.Display == nil {
		comp.Display = NopDisplay{}
	}
	if comp.Open == nil {
		comp.Open = capture.Open
	}
	return &Controller{
		cfg:    cfg,
		comp:   comp,
		frames: NewFrameBuffer(),
		errs:   make(chan error, 16),
	}, nil
}

// Frames returns the buffer holding the latest annotated frame.
func (c *Controller) Frames() *FrameBuffer { return c.frames }

// Errors delivers terminal capture errors. Errors are dropped when nobody
// drains the channel.
func (c *Controller) Errors() <-chan error { return c.errs }

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Stats returns a snapshot of the counters.
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	s := c.stats
	s.State = c.state
	s.Source = c.cfg.Source
	if c.src != nil {
		s.Source = c.src.Name()
	}
	c.mu.Unlock()
	s.Buffer = c.frames.Stats()
	return s
}

// SetSource installs src for the next Start, closing a previously set source.
func (c *Controller) SetSource(src capture.Source) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Running {
		return ErrRunning
	}
	if c.src != nil && c.src != src {
		if err := c.src.Close(); err != nil {
			slog.Warn("Failed to close previous source", "source", c.src.Name(), "error", err)
		}
	}
	c.src = src
	if src != nil {
		c.cfg.Source = src.Name()
	}
	return nil
}

// OpenSource opens spec and installs it for the next Start. The spec is also
// remembered so later runs reopen it.
func (c *Controller) OpenSource(spec string) error {
	if c.State() == Running {
		return ErrRunning
	}
	src, err := c.comp.Open(spec)
	if err != nil {
		return err
	}
	if err := c.SetSource(src); err != nil {
		_ = src.Close()
		return err
	}
	c.mu.Lock()
	c.cfg.Source = spec
	c.mu.Unlock()
	return nil
}

// Start moves IDLE to RUNNING and spawns the worker. It opens the configured
// source when none is set; if that fails the controller stays IDLE.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Running {
		return ErrRunning
	}
	if c.src == nil {
		src, err := c.comp.Open(c.cfg.Source)
		if err != nil {
			return err
		}
		c.src = src
	}

	wctx, cancel := context.WithCancel(ctx)
	r := &run{cancel: cancel, src: c.src, done: make(chan struct{}), idle: make(chan struct{})}
	c.cur = r
	c.last = nil
	c.state = Running
	runningGauge.Set(1)
	slog.Info("Pipeline started", "source", r.src.Name(), "mode", c.cfg.Mode)

	go c.work(wctx, r)
	go c.supervise(r)
	return nil
}

// Stop cancels the worker, waits for its in-flight tick and releases the
// source. It is a no-op when IDLE.
func (c *Controller) Stop() error {
	c.mu.Lock()
	r := c.cur
	c.mu.Unlock()
	if r == nil {
		return nil
	}
	r.cancel()
	<-r.idle
	return nil
}

// Wait blocks until the current run is back to IDLE and returns its terminal
// capture error, nil when it was stopped.
func (c *Controller) Wait() error {
	c.mu.Lock()
	r := c.cur
	last := c.last
	c.mu.Unlock()
	if r == nil {
		return last
	}
	<-r.idle
	return r.failure
}

// Close stops the controller and closes any installed source and the sink.
func (c *Controller) Close() error {
	_ = c.Stop()
	c.mu.Lock()
	src := c.src
	c.src = nil
	c.mu.Unlock()

	var first error
	if src != nil {
		first = src.Close()
	}
	if err := c.comp.Sink.Close(); err != nil && first == nil {
		first = err
	}
	return first
}

// supervise performs the RUNNING to IDLE transition once the worker returns.
func (c *Controller) supervise(r *run) {
	<-r.done
	r.cancel()

	if err := r.src.Close(); err != nil {
		slog.Warn("Failed to release source", "source", r.src.Name(), "error", err)
	}

	c.mu.Lock()
	if c.cur == r {
		c.cur = nil
		c.state = Idle
		c.src = nil
		c.last = r.failure
	}
	c.mu.Unlock()
	runningGauge.Set(0)

	if r.failure != nil {
		slog.Info("Pipeline stopped by source", "source", r.src.Name(), "error", r.failure)
		select {
		case c.errs <- r.failure:
		default:
			slog.Warn("Dropped pipeline error, channel full", "error", r.failure)
		}
	} else {
		slog.Info("Pipeline stopped", "source", r.src.Name())
	}
	close(r.idle)
}

// work is the worker loop: one tick at a time until cancelled or the source
// reports a terminal error.
func (c *Controller) work(ctx context.Context, r *run) {
	defer close(r.done)

	var pace <-chan time.Time
	if c.cfg.TickInterval > 0 {
		ticker := time.NewTicker(c.cfg.TickInterval)
		defer ticker.Stop()
		pace = ticker.C
	}

	for {
		if ctx.Err() != nil {
			return
		}
		if err := c.tick(ctx, r.src); err != nil {
			r.failure = err
			return
		}
		if pace != nil {
			select {
			case <-ctx.Done():
				return
			case <-pace:
			}
		}
	}
}
