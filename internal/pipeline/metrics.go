package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	framesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "labelscan_frames_total",
			Help: "Total number of frames read from the source",
		},
	)

	detectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "labelscan_detections_total",
			Help: "Total number of label detections",
		},
	)

	decodesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labelscan_decode_attempts_total",
			Help: "Total number of decode attempts",
		},
		[]string{"outcome"}, // outcome: content, empty
	)

	recordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labelscan_records_total",
			Help: "Total number of records appended to the sink",
		},
		[]string{"method"},
	)

	sinkErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "labelscan_sink_write_errors_total",
			Help: "Total number of failed sink appends",
		},
	)

	tickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "labelscan_tick_duration_seconds",
			Help:    "Time spent processing one frame",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
	)

	runningGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "labelscan_pipeline_running",
			Help: "1 while a pipeline worker is running",
		},
	)
)
