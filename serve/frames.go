package serve

import (
	"image"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"cvvideo/video/process"
	"cvvideo/video/source"
)

// RandomAccess serializes seek+read access to a Capture shared by concurrent
// HTTP requests.
type RandomAccess struct {
	c *source.Capture
	l sync.Mutex
}

func NewRandomAccess(c *source.Capture) *RandomAccess {
	return &RandomAccess{c: c}
}

func (r *RandomAccess) Info() source.Info {
	r.l.Lock()
	defer r.l.Unlock()
	return r.c.Info()
}

// FrameAt parses index as a single frame index, negative counting from the
// end, and reads that frame. The caller owns the returned Mat.
func (r *RandomAccess) FrameAt(index string) (int, gocv.Mat, error) {
	s, err := source.ParseSlice(index)
	if err != nil {
		return 0, gocv.Mat{}, err
	}

	r.l.Lock()
	defer r.l.Unlock()
	idx, err := s.Indices(r.c.Len())
	if err != nil {
		return 0, gocv.Mat{}, err
	}
	if len(idx) != 1 {
		return 0, gocv.Mat{}, source.ErrEndOfStream
	}
	m, err := r.c.FrameAt(idx[0])
	return idx[0], m, err
}

func (r *RandomAccess) Close() error {
	r.l.Lock()
	defer r.l.Unlock()
	return r.c.Close()
}

// FrameServer serves single frames as JPEG: /frame?i=N[&width=W].
type FrameServer struct {
	frames  *RandomAccess
	quality func() int
	m       *metrics
}

func (s *FrameServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var size image.Point
	if v := r.Form.Get("width"); v != "" {
		width, err := strconv.Atoi(v)
		if err != nil || width <= 0 {
			http.Error(w, "invalid width", http.StatusBadRequest)
			return
		}
		size.X = width
	}

	start := time.Now()
	i, m, err := s.frames.FrameAt(r.Form.Get("i"))
	switch {
	case errors.Is(err, source.ErrEndOfStream):
		s.m.frameErrors.WithLabelValues("not_found").Inc()
		http.Error(w, "no such frame", http.StatusNotFound)
		return
	case err != nil:
		s.m.frameErrors.WithLabelValues("bad_request").Inc()
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer m.Close()

	out := m
	if size.X > 0 {
		size.Y = m.Rows() * size.X / m.Cols()
		if size.Y < 1 {
			size.Y = 1
		}
		small := gocv.NewMat()
		defer small.Close()
		gocv.Resize(m, &small, size, 0, 0, gocv.InterpolationArea)
		out = small
	}
	jpeg, err := process.EncodeJPEG(out, s.quality())
	if err != nil {
		s.m.frameErrors.WithLabelValues("encode").Inc()
		log.Errorf("Failed to encode frame %d: %v", i, err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.m.encodeSeconds.Observe(time.Since(start).Seconds())
	s.m.framesServed.WithLabelValues("frame").Inc()

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("X-Frame-Index", strconv.Itoa(i))
	w.Write(jpeg)
}
