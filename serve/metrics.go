package serve

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "cvvideo"

type metrics struct {
	framesServed   *prometheus.CounterVec
	frameErrors    *prometheus.CounterVec
	framesStreamed prometheus.Counter
	restarts       prometheus.Counter
	encodeSeconds  prometheus.Histogram
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		framesServed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_served_total",
			Help:      "Frames served by random access, by endpoint.",
		}, []string{"endpoint"}),
		frameErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frame_errors_total",
			Help:      "Frame requests that failed, by reason.",
		}, []string{"reason"}),
		framesStreamed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_streamed_total",
			Help:      "Frames pushed to MJPEG streams.",
		}),
		restarts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_restarts_total",
			Help:      "Times a looping stream wrapped back to frame 0.",
		}),
		encodeSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "jpeg_encode_seconds",
			Help:      "Time spent seeking, reading and encoding a requested frame.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
	}
	reg.MustRegister(m.framesServed, m.frameErrors, m.framesStreamed, m.restarts, m.encodeSeconds)
	return m
}
