package sink

import (
	"fmt"
	"net/http"
	"sync"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"cvvideo/video/process"
	"cvvideo/video/source"
)

// MJPEG multi-streaming, based on implementation by saljam:
// https://github.com/saljam/mjpeg/blob/master/stream.go

const boundaryWord = "MJPEGBOUNDARY"
const headerf = "\r\n" +
	"--" + boundaryWord + "\r\n" +
	"Content-Type: image/jpeg\r\n" +
	"Content-Length: %d\r\n" +
	"X-Timestamp: %.6f\r\n" +
	"\r\n"

type MJPEGID struct {
	Name string
}

type MJPEGServer struct {
	// Quality returns the JPEG quality to encode with. Nil means
	// process.DefaultJPEGQuality.
	Quality func() int

	m    map[MJPEGID]*MJPEGStream
	lock sync.Mutex
}

func NewMJPEGServer() *MJPEGServer {
	return &MJPEGServer{
		m: make(map[MJPEGID]*MJPEGStream),
	}
}

func (s *MJPEGServer) NewStream(id MJPEGID) *MJPEGStream {
	s.lock.Lock()
	defer s.lock.Unlock()

	if _, ok := s.m[id]; ok {
		log.Panicf("A stream for %v already exists", id)
	}

	ms := &MJPEGStream{
		id:     id,
		m:      make(map[chan []byte]bool),
		parent: s,
	}
	s.m[id] = ms
	return ms
}

func (s *MJPEGServer) getStream(id MJPEGID) *MJPEGStream {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.m[id]
}

// Listeners returns the number of connected clients across all streams.
func (s *MJPEGServer) Listeners() int {
	s.lock.Lock()
	streams := make([]*MJPEGStream, 0, len(s.m))
	for _, ms := range s.m {
		streams = append(streams, ms)
	}
	s.lock.Unlock()

	n := 0
	for _, ms := range streams {
		ms.lock.Lock()
		n += len(ms.m)
		ms.lock.Unlock()
	}
	return n
}

func (s *MJPEGServer) quality() int {
	if s.Quality == nil {
		return process.DefaultJPEGQuality
	}
	return s.Quality()
}

// ServeHTTP implements http.Handler interface, serving MJPEG.
func (s *MJPEGServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	id := MJPEGID{
		Name: r.Form.Get("name"),
	}
	if id.Name == "" {
		http.Error(w, "missing name", http.StatusBadRequest)
		return
	}

	stream := s.getStream(id)
	if stream == nil {
		http.Error(w, "unknown stream ID", http.StatusNotFound)
		return
	}

	clog := log.WithField("addr", r.RemoteAddr)
	clog.Infof("MJPEG stream connected to %v", id)
	w.Header().Add("Content-Type", "multipart/x-mixed-replace;boundary="+boundaryWord)

	c := make(chan []byte, 1)
	stream.lock.Lock()
	stream.m[c] = true
	stream.lock.Unlock()

	// Send headers right away so clients see the stream before the first
	// frame arrives.
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	if flusher != nil {
		flusher.Flush()
	}
loop:
	for {
		select {
		case <-r.Context().Done():
			break loop
		case b := <-c:
			if _, err := w.Write(b); err != nil {
				break loop
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
	}

	stream.lock.Lock()
	delete(stream.m, c)
	stream.lock.Unlock()
	clog.Infof("MJPEG stream disconnected from %v", id)
}

// MJPEGStream is a named stream of an MJPEGServer. It is a Sink, so any
// producer of images can feed browsers.
type MJPEGStream struct {
	id MJPEGID
	m  map[chan []byte]bool

	parent *MJPEGServer
	lock   sync.Mutex
}

var _ Sink = (*MJPEGStream)(nil)

func (s *MJPEGStream) empty() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return len(s.m) == 0
}

func (s *MJPEGStream) Put(input source.Image) error {
	if s.empty() {
		// Nobody is listening; don't bother encoding.
		return nil
	}
	return s.PutMat(input.Mat, float64(input.Time.UnixNano())/1e9)
}

// PutMat encodes m and hands it to every listener ready for a frame.
func (s *MJPEGStream) PutMat(m gocv.Mat, ts float64) error {
	jpeg, err := process.EncodeJPEG(m, s.parent.quality())
	if err != nil {
		log.Errorf("Error encoding to JPG for MJPEG stream %v: %v", s.id, err)
		return err
	}

	header := fmt.Sprintf(headerf, len(jpeg), ts)
	// Each listener gets its own slice; they are written asynchronously.
	frame := make([]byte, 0, len(header)+len(jpeg))
	frame = append(frame, header...)
	frame = append(frame, jpeg...)

	s.lock.Lock()
	defer s.lock.Unlock()
	for c := range s.m {
		select {
		case c <- frame:
		default:
			// Skip listeners not ready for next frame.
		}
	}
	return nil
}

func (s *MJPEGStream) Close() error {
	s.parent.lock.Lock()
	defer s.parent.lock.Unlock()
	delete(s.parent.m, s.id)
	return nil
}
