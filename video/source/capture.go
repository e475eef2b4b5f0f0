package source

import (
	"fmt"
	"image"
	"iter"
	"strconv"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"cvvideo/fourcc"
)

var (
	// ErrEndOfStream is returned by reads once the handle has no further
	// frames (end of file, device disconnected, or a seek past the end).
	ErrEndOfStream = errors.New("reached the end of video")

	// ErrClosed is returned when a Capture is closed twice.
	ErrClosed = errors.New("capture already closed")
)

// Handle is the native capture surface. *gocv.VideoCapture implements it.
type Handle interface {
	Read(m *gocv.Mat) bool
	Get(prop gocv.VideoCaptureProperties) float64
	Set(prop gocv.VideoCaptureProperties, param float64)
	IsOpened() bool
	Close() error
}

var _ Handle = (*gocv.VideoCapture)(nil)

// Capture is a video source: a file or a capture device. The read cursor is
// owned by the native handle; Capture never caches it. A Capture is not
// safe for concurrent use.
type Capture struct {
	src    string
	h      Handle
	closed bool
}

// Open opens a capture from a file path, an int device index, or a string
// holding a device index.
//
// gocv reports handles that failed to open, so Open fails immediately
// instead of deferring the failure to the first read.
func Open(src interface{}) (*Capture, error) {
	var id string
	switch v := src.(type) {
	case string:
		id = v
	case int:
		id = strconv.Itoa(v)
	default:
		return nil, errors.Errorf("unsupported capture source type %T", src)
	}
	h, err := gocv.OpenVideoCapture(src)
	if err != nil {
		if h != nil {
			h.Close()
		}
		return nil, errors.Wrapf(err, "failed to open video capture %q", id)
	}
	log.WithField("src", id).Debugf("Opened video capture")
	return NewCapture(h, id), nil
}

// NewCapture wraps an already opened handle.
func NewCapture(h Handle, src string) *Capture {
	return &Capture{
		src: src,
		h:   h,
	}
}

// WithCapture opens src, runs fn and closes the capture exactly once, even
// when fn panics.
func WithCapture(src interface{}, fn func(c *Capture) error) error {
	c, err := Open(src)
	if err != nil {
		return err
	}
	return c.Do(fn)
}

// Do runs fn and closes c afterwards, even when fn panics. The error from
// fn takes precedence over the error from Close.
func (c *Capture) Do(fn func(c *Capture) error) (err error) {
	defer func() {
		if cerr := c.Close(); err == nil {
			err = cerr
		}
	}()
	return fn(c)
}

// Source returns the path or device index the capture was opened from.
func (c *Capture) Source() string {
	return c.src
}

func (c *Capture) String() string {
	return fmt.Sprintf("Capture(%s)", c.src)
}

// Read returns the next frame and advances the cursor. The caller owns the
// returned Mat and must Close it.
func (c *Capture) Read() (gocv.Mat, error) {
	m := gocv.NewMat()
	if err := c.ReadInto(&m); err != nil {
		m.Close()
		return gocv.Mat{}, err
	}
	return m, nil
}

// ReadInto reads the next frame into dst, reusing its storage.
func (c *Capture) ReadInto(dst *gocv.Mat) error {
	if ok := c.h.Read(dst); !ok || dst.Empty() {
		return ErrEndOfStream
	}
	return nil
}

// Seek moves the cursor so the next read returns frame i. Bounds are not
// checked; seeking past the end makes the next read fail with
// ErrEndOfStream.
func (c *Capture) Seek(i int) {
	c.h.Set(gocv.VideoCapturePosFrames, float64(i))
}

// Position returns the index of the frame the next read returns.
func (c *Capture) Position() int {
	return int(c.h.Get(gocv.VideoCapturePosFrames))
}

// Len returns the frame count reported by the backend. Live and streamed
// sources may report 0 or a negative value.
func (c *Capture) Len() int {
	return int(c.h.Get(gocv.VideoCaptureFrameCount))
}

// Property setters below forward to the backend, which silently ignores
// requests it does not support. Use SetVerified to detect that.

func (c *Capture) Height() int {
	return int(c.h.Get(gocv.VideoCaptureFrameHeight))
}

func (c *Capture) SetHeight(height int) {
	c.h.Set(gocv.VideoCaptureFrameHeight, float64(height))
}

func (c *Capture) Width() int {
	return int(c.h.Get(gocv.VideoCaptureFrameWidth))
}

func (c *Capture) SetWidth(width int) {
	c.h.Set(gocv.VideoCaptureFrameWidth, float64(width))
}

// Size returns the frame dimensions as a point (X is width).
func (c *Capture) Size() image.Point {
	return image.Point{X: c.Width(), Y: c.Height()}
}

func (c *Capture) FPS() float64 {
	return c.h.Get(gocv.VideoCaptureFPS)
}

func (c *Capture) SetFPS(fps float64) {
	c.h.Set(gocv.VideoCaptureFPS, fps)
}

// Codec returns the four-character code of the stream codec.
func (c *Capture) Codec() string {
	return fourcc.FromFloat(c.h.Get(gocv.VideoCaptureFOURCC)).String()
}

// SetCodec requests a codec such as "MJPG". It only fails when code is not
// four bytes long.
func (c *Capture) SetCodec(code string) error {
	cc, err := fourcc.Parse(code)
	if err != nil {
		return err
	}
	c.h.Set(gocv.VideoCaptureFOURCC, cc.Float())
	return nil
}

// SetVerified sets prop and reads it back. ok reports whether the backend
// accepted the value.
func (c *Capture) SetVerified(prop gocv.VideoCaptureProperties, v float64) (got float64, ok bool) {
	c.h.Set(prop, v)
	got = c.h.Get(prop)
	if got != v {
		log.WithField("src", c.src).Debugf("Capture property %d: requested %v, backend reports %v", prop, v, got)
	}
	return got, got == v
}

// FrameAt seeks to frame i and reads it. The caller owns the returned Mat.
func (c *Capture) FrameAt(i int) (gocv.Mat, error) {
	c.Seek(i)
	return c.Read()
}

// FrameRange reads every frame selected by s, resolved against Len(). On
// error, frames read so far are closed and nothing is returned.
func (c *Capture) FrameRange(s Slice) ([]gocv.Mat, error) {
	indices, err := s.Indices(c.Len())
	if err != nil {
		return nil, err
	}
	frames := make([]gocv.Mat, 0, len(indices))
	for _, i := range indices {
		m, err := c.FrameAt(i)
		if err != nil {
			for _, f := range frames {
				f.Close()
			}
			return nil, errors.Wrapf(err, "frame %d", i)
		}
		frames = append(frames, m)
	}
	return frames, nil
}

// All iterates over every frame from the start. Each range seeks back to
// frame 0, so ranging twice yields the same frames twice. The yielded Mat is
// reused between steps; Clone it to keep it. Iteration moves the shared
// cursor, so interleaving it with other reads on the same Capture mixes
// their positions.
func (c *Capture) All() iter.Seq2[int, gocv.Mat] {
	return func(yield func(int, gocv.Mat) bool) {
		c.Seek(0)
		buf := gocv.NewMat()
		defer buf.Close()
		for i := 0; ; i++ {
			if err := c.ReadInto(&buf); err != nil {
				return
			}
			if !yield(i, buf) {
				return
			}
		}
	}
}

// Close releases the native handle. A second Close returns ErrClosed and
// leaves the handle alone.
func (c *Capture) Close() error {
	if c.closed {
		return ErrClosed
	}
	c.closed = true
	return c.h.Close()
}
