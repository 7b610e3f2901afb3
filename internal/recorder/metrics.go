package recorder

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricEventsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "recorder_events_open",
		Help: "Events currently recording",
	})

	metricEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recorder_events_total",
		Help: "Events opened/closed by outcome",
	}, []string{"phase"})

	metricFramesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recorder_frames_total",
		Help: "Frames handled by classification",
	}, []string{"type"})

	metricFramesRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recorder_frames_rejected_total",
		Help: "Frames rejected for non-positive timestamps",
	})

	metricFlushesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recorder_frame_flushes_total",
		Help: "Frame buffer flushes issued",
	})

	metricBatchesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recorder_frame_batches_dropped_total",
		Help: "Frame insert batches dropped after a failed attempt",
	})

	metricStillWriteErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recorder_still_write_errors_total",
		Help: "Failed still image writes",
	})

	metricEncodeErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recorder_video_encode_errors_total",
		Help: "Failed video frame encodes",
	})
)
