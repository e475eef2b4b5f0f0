package serve

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"cvvideo/config"
	"cvvideo/video/process"
	"cvvideo/video/sink"
	"cvvideo/video/source"
)

// MJPEG stream names published by Run.
const (
	StreamRaw     = "raw"
	StreamDefault = "default"
)

// Server exposes a video source over HTTP:
//
//	/info     source properties as JSON
//	/frame    a single frame as JPEG, ?i=N[&width=W]
//	/mjpeg    live MJPEG, ?name=raw|default
//	/updates  websocket of "restart" and "config" events
//	/metrics  prometheus metrics
type Server struct {
	Frames  *RandomAccess
	MJPEG   *sink.MJPEGServer
	Updater *Updater

	config func() *config.Config
	reg    *prometheus.Registry
	m      *metrics

	raw, labeled *sink.MJPEGStream
}

// NewServer serves frames from ra. ra may be nil for sources without random
// access, such as capture devices; /info and /frame are then not served. cfg
// returns the live configuration; nil means config.Get.
func NewServer(ra *RandomAccess, cfg func() *config.Config) *Server {
	if cfg == nil {
		cfg = config.Get
	}
	s := &Server{
		Frames:  ra,
		MJPEG:   sink.NewMJPEGServer(),
		Updater: NewUpdater(),
		config:  cfg,
		reg:     prometheus.NewRegistry(),
	}
	s.m = newMetrics(s.reg)
	s.reg.MustRegister(
		collectors.NewGoCollector(),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mjpeg_listeners",
			Help:      "Connected MJPEG clients.",
		}, func() float64 { return float64(s.MJPEG.Listeners()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "update_clients",
			Help:      "Connected update websocket clients.",
		}, func() float64 { return float64(s.Updater.Clients()) }),
	)
	s.MJPEG.Quality = s.quality
	s.raw = s.MJPEG.NewStream(sink.MJPEGID{Name: StreamRaw})
	s.labeled = s.MJPEG.NewStream(sink.MJPEGID{Name: StreamDefault})
	return s
}

func (s *Server) cfg() *config.Config {
	if c := s.config(); c != nil {
		return c
	}
	return config.Default()
}

func (s *Server) quality() int {
	return s.cfg().JPEGQuality
}

// Handler returns the HTTP handler with access logging and panic recovery.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	if s.Frames != nil {
		mux.Handle("/info", &InfoServer{frames: s.Frames})
		mux.Handle("/frame", &FrameServer{frames: s.Frames, quality: s.quality, m: s.m})
	}
	mux.Handle("/mjpeg", s.MJPEG)
	mux.Handle("/updates", s.Updater)
	mux.Handle("/metrics", promhttp.HandlerFor(s.reg, promhttp.HandlerOpts{}))

	logged := handlers.CombinedLoggingHandler(log.StandardLogger().WriterLevel(log.DebugLevel), mux)
	return handlers.RecoveryHandler(
		handlers.RecoveryLogger(log.StandardLogger()),
		handlers.PrintRecoveryStack(true),
	)(logged)
}

// Restarted records that a looping source wrapped around.
func (s *Server) Restarted() {
	s.m.restarts.Inc()
	s.Updater.Broadcast("restart")
}

// ConfigChanged tells update clients the configuration was reloaded.
func (s *Server) ConfigChanged(*config.Config) {
	s.Updater.Broadcast("config")
}

// Run feeds the MJPEG streams from src until src ends or ctx is done. Every
// image is released once published.
func (s *Server) Run(ctx context.Context, src source.Source) error {
	c := src.Get()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case img, ok := <-c:
			if !ok {
				log.Infof("Source ended")
				return nil
			}
			s.publish(img)
			img.Release()
		}
	}
}

func (s *Server) publish(img source.Image) {
	s.raw.Put(img)
	if s.cfg().Label {
		process.DrawLabel(&img.Mat, fmt.Sprintf("frame %d", img.Index))
	}
	s.labeled.Put(img)
	s.m.framesStreamed.Inc()
}

func (s *Server) Close() error {
	s.raw.Close()
	s.labeled.Close()
	s.Updater.Close()
	if s.Frames == nil {
		return nil
	}
	return s.Frames.Close()
}
